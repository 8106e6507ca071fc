// Package interfaces holds the workflow.Interface implementations the
// pipelines are built from: wrappers around MRtrix3 command-line tools and a
// few file helpers.
package interfaces
