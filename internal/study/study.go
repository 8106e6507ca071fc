// Package study loads study definitions, picking the reader by file
// extension.
package study

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vk/mrtpipelines/internal/config"
	"github.com/vk/mrtpipelines/internal/hcl"
	"github.com/vk/mrtpipelines/internal/study/yamlstudy"
)

// LoaderFor returns the loader for the file's extension. vars override HCL
// variable defaults and are rejected for formats without variables.
func LoaderFor(path string, vars map[string]string) (config.Loader, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".hcl":
		return hcl.NewLoader(vars), nil
	case ".yaml", ".yml":
		if len(vars) > 0 {
			return nil, fmt.Errorf("variables are not supported for %s study files", ext)
		}
		return yamlstudy.NewLoader(), nil
	default:
		return nil, fmt.Errorf("unsupported study file extension %q (want .hcl, .yaml or .yml)", ext)
	}
}

// Load reads the study at path.
func Load(ctx context.Context, path string, vars map[string]string) (*config.Study, error) {
	loader, err := LoaderFor(path, vars)
	if err != nil {
		return nil, err
	}
	return loader.Load(ctx, path)
}
