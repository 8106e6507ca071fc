// Package executor runs an expanded workflow plan on a fixed pool of
// workers.
//
// Instances become ready once every dependency has finished. The first
// failure cancels the run and marks every transitive dependent as skipped;
// the returned error names only the root-cause instances. Finished
// instances record their inputs hash and outputs in _result.json so that a
// later run with the same inputs can reuse them.
package executor
