package hcl

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/vk/mrtpipelines/internal/config"
)

// functions are the functions available to study expressions.
var functions = map[string]function.Function{
	"format":    stdlib.FormatFunc,
	"lower":     stdlib.LowerFunc,
	"upper":     stdlib.UpperFunc,
	"join":      stdlib.JoinFunc,
	"replace":   stdlib.ReplaceFunc,
	"trimspace": stdlib.TrimSpaceFunc,
	"concat":    stdlib.ConcatFunc,
}

// baseContext returns the evaluation context holding variables and
// functions.
func baseContext(vars map[string]cty.Value) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"var": cty.ObjectVal(vars)},
		Functions: functions,
	}
}

// subjectContext extends parent with the subject object.
func subjectContext(parent *hcl.EvalContext, id string) *hcl.EvalContext {
	child := parent.NewChild()
	child.Variables = map[string]cty.Value{
		"subject": cty.ObjectVal(map[string]cty.Value{"id": cty.StringVal(id)}),
	}
	return child
}

// files flattens decoded attributes into a kind to path map.
func (a *fileAttrs) files() map[string]string {
	out := make(map[string]string)
	set := func(kind string, v *string) {
		if v != nil && *v != "" {
			out[kind] = *v
		}
	}
	set(config.KindDWI, a.DWI)
	set(config.KindMask, a.Mask)
	set(config.KindWMResponse, a.WMResponse)
	set(config.KindGMResponse, a.GMResponse)
	set(config.KindCSFResponse, a.CSFResponse)
	set(config.KindFA, a.FA)
	set(config.KindMD, a.MD)
	set(config.KindAD, a.AD)
	set(config.KindRD, a.RD)
	set(config.KindTemplateMask, a.TemplateMask)
	set(config.KindT1w, a.T1w)
	set(config.KindT2w, a.T2w)
	return out
}
