// Package dag holds the instance graph that a workflow expands into: plain
// string IDs joined by dependency edges. It knows nothing about interfaces,
// inputs or execution; the workflow package builds it and the executor walks
// it.
package dag
