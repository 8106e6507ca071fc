package workflow

import (
	"fmt"
	"math"
)

// AsString returns v as a string.
func AsString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []string:
		if len(s) == 1 {
			return s[0], nil
		}
	case []any:
		if len(s) == 1 {
			return AsString(s[0])
		}
	}
	return "", fmt.Errorf("expected a string, got %T", v)
}

// AsStrings returns v as a string slice. A single string becomes a
// one-element slice.
func AsStrings(v any) ([]string, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{s}, nil
	case []string:
		return s, nil
	case []any:
		out := make([]string, 0, len(s))
		for i, e := range s {
			str, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("element %d: expected a string, got %T", i, e)
			}
			out = append(out, str)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list of strings, got %T", v)
}

// AsInt returns v as an int. Integral floats are accepted since cached
// results round-trip through JSON.
func AsInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == math.Trunc(n) {
			return int(n), nil
		}
	}
	return 0, fmt.Errorf("expected an integer, got %T", v)
}

// AsBool returns v as a bool.
func AsBool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expected a boolean, got %T", v)
	}
	return b, nil
}

// Normalize converts values decoded from JSON back to the shapes the
// interfaces produce: lists of strings become []string and integral numbers
// become int.
func Normalize(v any) any {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) {
			return int(x)
		}
		return x
	case []any:
		if strs, err := AsStrings(x); err == nil {
			return strs
		}
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	}
	return v
}

// list turns v into a slice of values, promoting scalars.
func list(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	}
	return []any{v}
}

// compact returns []string when every element is a string.
func compact(values []any) any {
	strs := make([]string, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			return values
		}
		strs = append(strs, s)
	}
	return strs
}
