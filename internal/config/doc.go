// Package config defines the format-agnostic study model and the Loader
// interface implemented by the HCL and YAML study readers.
//
// A Study is the single source of truth for the pipelines package: it lists
// the subjects with their per-subject input images, and optionally the
// template inputs used for tractography.
package config
