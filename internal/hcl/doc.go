// Package hcl provides the HCL implementation of config.Loader. It parses
// study files, evaluates attribute expressions against variables and the
// current subject, and translates the result into the config model.
package hcl
