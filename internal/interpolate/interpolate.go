// Package interpolate resolves @variable declarations in plaintext files.
//
//	@half = @[1/2]
//	scale = @[1-half]    # scale = 0.5
//
// Declarations may appear at any depth and may reference variables declared
// later in the file. They are removed from the output.
package interpolate

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rakaly/cli/internal/document"
)

// Error reports a failed interpolation.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

type declaration struct {
	name  string
	value string
}

// Apply rewrites doc in place: declarations are removed, @name and @[expr]
// values are replaced by numbers, and == and ?= become plain assignment.
func Apply(doc *document.Object) error {
	var decls []declaration
	collect(doc, &decls)

	vars, err := resolve(decls)
	if err != nil {
		return err
	}
	return rewrite(doc, vars)
}

func isDeclaration(e document.Entry) (declaration, bool) {
	k := e.Key
	if k.Kind != document.KindString || k.Quoted || !strings.HasPrefix(k.Text, "@") || strings.HasPrefix(k.Text, "@[") {
		return declaration{}, false
	}
	v, ok := e.Value.(document.Scalar)
	if !ok || v.Kind != document.KindString || v.Quoted {
		return declaration{}, false
	}
	if !isReference(v.Text) && !isExpression(v.Text) {
		if _, err := strconv.ParseFloat(v.Text, 64); err != nil {
			return declaration{}, false
		}
	}
	return declaration{name: k.Text[1:], value: v.Text}, true
}

func isExpression(s string) bool {
	return strings.HasPrefix(s, "@[") && strings.HasSuffix(s, "]")
}

func isReference(s string) bool {
	return strings.HasPrefix(s, "@") && !strings.HasPrefix(s, "@[")
}

func collect(n document.Node, out *[]declaration) {
	switch v := n.(type) {
	case *document.Object:
		for _, e := range v.Entries {
			if d, ok := isDeclaration(e); ok {
				*out = append(*out, d)
				continue
			}
			collect(e.Value, out)
		}
	case *document.Array:
		for _, x := range v.Values {
			collect(x, out)
		}
	}
}

// resolve evaluates declarations until no further progress is made, so
// forward references settle regardless of order.
func resolve(decls []declaration) (map[string]float64, error) {
	vars := make(map[string]float64, len(decls))
	pending := decls
	for len(pending) > 0 {
		var next []declaration
		for _, d := range pending {
			if _, ok := vars[d.name]; ok {
				continue
			}
			v, err := value(d.value, vars)
			var unknown *unknownVariable
			if errors.As(err, &unknown) {
				next = append(next, d)
				continue
			}
			if err != nil {
				return nil, err
			}
			vars[d.name] = v
		}
		if len(next) == len(pending) {
			return nil, unresolved(next, vars)
		}
		pending = next
	}
	return vars, nil
}

func value(s string, vars map[string]float64) (float64, error) {
	switch {
	case isExpression(s):
		return Eval(s[2:len(s)-1], vars)
	case isReference(s):
		v, ok := vars[s[1:]]
		if !ok {
			return 0, &unknownVariable{name: s[1:]}
		}
		return v, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &Error{Msg: fmt.Sprintf("invalid number %q", s)}
	}
	return v, nil
}

func unresolved(decls []declaration, vars map[string]float64) error {
	var refs []string
	for _, d := range decls {
		if isReference(d.value) {
			refs = append(refs, fmt.Sprintf("@%s -> %s", d.name, d.value))
		}
	}
	if len(refs) > 0 {
		return &Error{Msg: "Unresolved variable references: " + strings.Join(refs, ", ")}
	}
	_, err := value(decls[0].value, vars)
	return &Error{Msg: fmt.Sprintf("@%s: %v", decls[0].name, err)}
}

func rewrite(n document.Node, vars map[string]float64) error {
	switch v := n.(type) {
	case *document.Object:
		kept := v.Entries[:0]
		for _, e := range v.Entries {
			if d, ok := isDeclaration(e); ok {
				if _, known := vars[d.name]; known {
					continue
				}
			}
			if e.Op == document.OpExact || e.Op == document.OpExists {
				e.Op = document.OpEqual
			}
			nv, err := substitute(e.Value, vars)
			if err != nil {
				return err
			}
			e.Value = nv
			kept = append(kept, e)
		}
		v.Entries = kept
	case *document.Array:
		for i, x := range v.Values {
			nv, err := substitute(x, vars)
			if err != nil {
				return err
			}
			v.Values[i] = nv
		}
	}
	return nil
}

func substitute(n document.Node, vars map[string]float64) (document.Node, error) {
	s, ok := n.(document.Scalar)
	if !ok {
		return n, rewrite(n, vars)
	}
	if s.Kind != document.KindString || s.Quoted {
		return s, nil
	}
	switch {
	case isExpression(s.Text):
		v, err := Eval(s.Text[2:len(s.Text)-1], vars)
		var unknown *unknownVariable
		if errors.As(err, &unknown) {
			return nil, &Error{Msg: fmt.Sprintf("%s in %s", unknown.Error(), s.Text)}
		}
		if err != nil {
			return nil, err
		}
		return document.String(Format(v), false), nil
	case isReference(s.Text):
		if v, ok := vars[s.Text[1:]]; ok {
			return document.String(Format(v), false), nil
		}
	}
	return s, nil
}

// Format writes whole values as integers and others in their shortest form.
func Format(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e18 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
