package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes the top-level blocks of a study file. Bodies are kept
// raw and evaluated once variables are known.
type fileRoot struct {
	Variables []*variableBlock `hcl:"variable,block"`
	Study     *studyBlock      `hcl:"study,block"`
	Templates []*subjectsBlock `hcl:"subjects,block"`
	Subjects  []*subjectBlock  `hcl:"subject,block"`
	Tract     *tractBlock      `hcl:"tract,block"`
}

type variableBlock struct {
	Name        string         `hcl:"name,label"`
	Default     hcl.Expression `hcl:"default,optional"`
	Description string         `hcl:"description,optional"`
}

type studyBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type studyAttrs struct {
	Name        *string `hcl:"name,optional"`
	Description *string `hcl:"description,optional"`
}

// subjectsBlock declares file patterns shared by many subjects.
type subjectsBlock struct {
	IDs  hcl.Expression `hcl:"ids"`
	Body hcl.Body       `hcl:",remain"`
}

type subjectBlock struct {
	ID   string   `hcl:"id,label"`
	Body hcl.Body `hcl:",remain"`
}

// fileAttrs are the per-subject file attributes.
type fileAttrs struct {
	DWI          *string `hcl:"dwi,optional"`
	Mask         *string `hcl:"mask,optional"`
	WMResponse   *string `hcl:"wm_response,optional"`
	GMResponse   *string `hcl:"gm_response,optional"`
	CSFResponse  *string `hcl:"csf_response,optional"`
	FA           *string `hcl:"fa,optional"`
	MD           *string `hcl:"md,optional"`
	AD           *string `hcl:"ad,optional"`
	RD           *string `hcl:"rd,optional"`
	TemplateMask *string `hcl:"template_mask,optional"`
	T1w          *string `hcl:"t1w,optional"`
	T2w          *string `hcl:"t2w,optional"`
}

type tractBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type tractAttrs struct {
	FOD       *string `hcl:"fod,optional"`
	Seed      *string `hcl:"seed,optional"`
	Backtrack *bool   `hcl:"backtrack,optional"`
}
