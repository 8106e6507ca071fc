package executor

// State is the lifecycle state of a single instance.
type State int32

const (
	Pending State = iota
	Running
	Done
	Cached
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Cached:
		return "cached"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
