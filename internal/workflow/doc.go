// Package workflow declares pipelines as graphs of nodes wired output-to-input,
// and expands those declarations into a concrete instance graph for the
// executor.
//
// A Node runs one Interface. Three node shapes cover everything the pipelines
// need:
//
//   - a plain node runs once per instance;
//   - a map node (IterFields) runs its interface once per element of the listed
//     inputs and returns lists;
//   - a join node (JoinSource, JoinFields) collapses every instance produced by
//     an iterable upstream node into one, receiving the joined fields as lists.
//
// A node with Iterables fans out: it and everything downstream of it run once
// per iterable value until a join node names it as its source.
package workflow
