package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tordrt/sqlmodel/internal/dialect"
)

var (
	interpolationPattern = regexp.MustCompile(`\$\{\s*([a-zA-Z]+[\w.]*)\s*\}`)
	statementPattern     = regexp.MustCompile(`#\{\s*([a-zA-Z]+[\w.]*)\s*\}`)
	identifierPattern    = regexp.MustCompile(`^[A-Za-z][\w.]*$`)
)

// Interpolate substitutes ${name} tokens textually. Values must be identifiers,
// or comma-separated lists of them. Unknown names are left unchanged.
func Interpolate(tpl string, vars map[string]any) (string, error) {
	var err error
	out := interpolationPattern.ReplaceAllStringFunc(tpl, func(token string) string {
		name := interpolationPattern.FindStringSubmatch(token)[1]
		v, ok := lookupVar(vars, name)
		if !ok {
			return token
		}
		s, e := identifierList(v)
		if e != nil && err == nil {
			err = fmt.Errorf("substitution %q: %w", name, e)
		}
		return s
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// Expand interpolates ${} tokens, then replaces each #{name} with a placeholder
// numbered from start and appends the value in appearance order. Unknown names bind NULL.
func Expand(tpl string, vars map[string]any, d *dialect.Dialect, start int) (string, []any, error) {
	sql, err := Interpolate(tpl, vars)
	if err != nil {
		return "", nil, err
	}

	var args []any
	out := statementPattern.ReplaceAllStringFunc(sql, func(token string) string {
		name := statementPattern.FindStringSubmatch(token)[1]
		v, _ := lookupVar(vars, name)
		args = append(args, v)
		return d.Bind(start + len(args) - 1)
	})
	return out, args, nil
}

// lookupVar resolves a name, walking nested maps for dotted names.
func lookupVar(vars map[string]any, name string) (any, bool) {
	if v, ok := vars[name]; ok {
		return v, true
	}
	parts := strings.Split(name, ".")
	var cur any = vars
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func identifierList(v any) (string, error) {
	var items []string
	switch x := v.(type) {
	case string:
		items = strings.Split(x, ",")
	case []string:
		items = x
	case fmt.Stringer:
		items = []string{x.String()}
	default:
		return "", fmt.Errorf("value of type %T is not an identifier", v)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if !identifierPattern.MatchString(item) {
			return "", fmt.Errorf("%q is not an identifier", item)
		}
		out = append(out, item)
	}
	return strings.Join(out, ", "), nil
}
