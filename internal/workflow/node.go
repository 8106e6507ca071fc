package workflow

// Iterable fans a node out over a list of values, one instance per value.
type Iterable struct {
	Field  string
	Values []string
}

// Node is a single vertex of a workflow declaration.
type Node struct {
	Name      string
	Interface Interface
	// Inputs are static values set on the node.
	Inputs Inputs

	IterFields []string
	JoinSource string
	JoinFields []string
	Iterables  *Iterable
}

// NewNode creates a plain node.
func NewNode(name string, iface Interface) *Node {
	return &Node{Name: name, Interface: iface, Inputs: Inputs{}}
}

// NewMapNode creates a node that runs once per element of iterFields.
func NewMapNode(name string, iface Interface, iterFields ...string) *Node {
	n := NewNode(name, iface)
	n.IterFields = iterFields
	return n
}

// NewJoinNode creates a node that collapses the instances produced by the
// iterable node named joinSource, collecting joinFields into lists.
func NewJoinNode(name string, iface Interface, joinSource string, joinFields ...string) *Node {
	n := NewNode(name, iface)
	n.JoinSource = joinSource
	n.JoinFields = joinFields
	return n
}

// Set assigns a static input and returns the node for chaining.
func (n *Node) Set(field string, value any) *Node {
	if n.Inputs == nil {
		n.Inputs = Inputs{}
	}
	n.Inputs[field] = value
	return n
}

// Iterate makes the node iterable over values of field.
func (n *Node) Iterate(field string, values ...string) *Node {
	n.Iterables = &Iterable{Field: field, Values: values}
	return n
}

// IsMap reports whether the node is a map node.
func (n *Node) IsMap() bool { return len(n.IterFields) > 0 }

// IsJoin reports whether the node is a join node.
func (n *Node) IsJoin() bool { return n.JoinSource != "" }

func (n *Node) isJoinField(field string) bool { return contains(n.JoinFields, field) }
