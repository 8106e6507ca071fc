package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
)

// File kinds a subject may declare.
const (
	KindDWI          = "dwi"
	KindMask         = "mask"
	KindWMResponse   = "wm_response"
	KindGMResponse   = "gm_response"
	KindCSFResponse  = "csf_response"
	KindFA           = "fa"
	KindMD           = "md"
	KindAD           = "ad"
	KindRD           = "rd"
	KindTemplateMask = "template_mask"
	KindT1w          = "t1w"
	KindT2w          = "t2w"
)

// Kinds lists every subject file kind in a stable order.
var Kinds = []string{
	KindDWI, KindMask, KindWMResponse, KindGMResponse, KindCSFResponse,
	KindFA, KindMD, KindAD, KindRD, KindTemplateMask, KindT1w, KindT2w,
}

// IsKind reports whether kind is a known subject file kind.
func IsKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Loader reads a study definition from a file.
type Loader interface {
	Load(ctx context.Context, path string) (*Study, error)
}

// Study is the format-agnostic representation of a study definition.
type Study struct {
	Name        string
	Description string
	Subjects    []*Subject
	Tract       *Tract
	// Source is the file the study was loaded from.
	Source string
}

// Subject holds the input images of one subject, keyed by kind.
type Subject struct {
	ID    string
	Files map[string]string
}

// File returns the path declared for kind, or "".
func (s *Subject) File(kind string) string {
	return s.Files[kind]
}

// Tract holds the template-space inputs for tractography.
type Tract struct {
	FOD  string
	Seed string
	// Backtrack lets tckgen retrack from earlier points on poor terminations.
	Backtrack bool
}

// SubjectIDs returns the subject IDs in declaration order.
func (s *Study) SubjectIDs() []string {
	ids := make([]string, len(s.Subjects))
	for i, sub := range s.Subjects {
		ids[i] = sub.ID
	}
	return ids
}

// Subject returns the subject with the given ID.
func (s *Study) Subject(id string) (*Subject, bool) {
	for _, sub := range s.Subjects {
		if sub.ID == id {
			return sub, true
		}
	}
	return nil, false
}

// Validate checks that the study has subjects with unique IDs and that
// every subject declares each of the required kinds.
func (s *Study) Validate(required ...string) error {
	if len(s.Subjects) == 0 {
		return errors.New("study declares no subjects")
	}
	var errs []error
	seen := make(map[string]bool, len(s.Subjects))
	for _, sub := range s.Subjects {
		if sub.ID == "" {
			errs = append(errs, errors.New("subject with empty id"))
			continue
		}
		if seen[sub.ID] {
			errs = append(errs, fmt.Errorf("duplicate subject id %q", sub.ID))
		}
		seen[sub.ID] = true

		for kind := range sub.Files {
			if !IsKind(kind) {
				errs = append(errs, fmt.Errorf("subject %q declares unknown file kind %q", sub.ID, kind))
			}
		}

		var missing []string
		for _, kind := range required {
			if sub.File(kind) == "" {
				missing = append(missing, kind)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			errs = append(errs, fmt.Errorf("subject %q is missing %v", sub.ID, missing))
		}
	}
	return errors.Join(errs...)
}

// ValidateTract checks that the tractography inputs are declared.
func (s *Study) ValidateTract() error {
	if s.Tract == nil {
		return errors.New("study declares no tract block")
	}
	if s.Tract.FOD == "" {
		return errors.New("tract block is missing fod")
	}
	return nil
}

// ResolvePaths makes every declared file path absolute. Relative paths are
// taken relative to dir, normally the directory holding the study file.
func (s *Study) ResolvePaths(dir string) error {
	base, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving study directory: %w", err)
	}
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for _, sub := range s.Subjects {
		for _, kind := range Kinds {
			if p, ok := sub.Files[kind]; ok {
				sub.Files[kind] = abs(p)
			}
		}
	}
	if s.Tract != nil {
		s.Tract.FOD = abs(s.Tract.FOD)
		s.Tract.Seed = abs(s.Tract.Seed)
	}
	return nil
}
