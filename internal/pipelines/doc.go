// Package pipelines declares the group-analysis workflows: population
// templates built from FODs, tensor metrics and anatomical images, and
// template-space tractography.
package pipelines
