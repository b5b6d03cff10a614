package condition

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/prasenjit/go-assertive/internal/models"
)

// Kind is the closed set of predicate variants
type Kind int

const (
	KindEquals Kind = iota + 1
	KindEqualFold
	KindRegex
	KindExists
	KindNotExists
	KindRange
	KindJSONPath
	KindWildcard
	KindTemplate
	KindContains
	KindStartsWith
	KindEndsWith
)

// Specificity weights per predicate kind. Higher means the predicate constrains
// the request more narrowly.
const (
	WeightEquals    = 10
	WeightJSONPath  = 10
	WeightEqualFold = 9
	WeightTemplate  = 8
	WeightRegex     = 6
	WeightRange     = 4
	WeightSubstring = 4
	WeightWildcard  = 2
	WeightPresence  = 1
)

var operatorKinds = map[string]Kind{
	models.OpEquals:     KindEquals,
	models.OpEqualFold:  KindEqualFold,
	models.OpRegex:      KindRegex,
	models.OpExists:     KindExists,
	models.OpNotExists:  KindNotExists,
	models.OpRange:      KindRange,
	models.OpJSONPath:   KindJSONPath,
	models.OpWildcard:   KindWildcard,
	models.OpTemplate:   KindTemplate,
	models.OpContains:   KindContains,
	models.OpStartsWith: KindStartsWith,
	models.OpEndsWith:   KindEndsWith,
}

// Predicate is a compiled, immutable test against one request dimension
type Predicate struct {
	Source string
	Key    string
	Kind   Kind
	Value  string
	Min    *float64
	Max    *float64
	All    bool

	operator string
	re       *regexp.Regexp
	segments []string // path template segments, params kept as {name}
}

// Compile validates a condition and returns its compiled predicate.
// field names the condition in validation errors.
func Compile(field string, c models.Condition) (Predicate, error) {
	kind, ok := operatorKinds[c.Operator]
	if !ok {
		return Predicate{}, models.NewValidationError(field+".operator", "unknown operator %q, want one of %s",
			c.Operator, strings.Join(models.ValidOperators(), ", "))
	}

	p := Predicate{
		Source:   c.Source,
		Key:      c.Key,
		Kind:     kind,
		Value:    c.Value,
		Min:      c.Min,
		Max:      c.Max,
		All:      c.All,
		operator: c.Operator,
	}

	if !slices.Contains(models.ValidSources(), c.Source) {
		return Predicate{}, models.NewValidationError(field+".source", "unknown source %q, want one of %s",
			c.Source, strings.Join(models.ValidSources(), ", "))
	}
	switch {
	case models.KeyedSource(c.Source):
		if c.Key == "" {
			return Predicate{}, models.NewValidationError(field+".key", "%s condition needs a key", c.Source)
		}
	case c.Source == models.SourceBody:
		// body takes an optional key, read by jsonPath
	case c.Key != "":
		return Predicate{}, models.NewValidationError(field+".key", "%s does not take a key", c.Source)
	}
	if c.Source == models.SourceMethod && kind == KindEquals {
		p.Value = strings.ToUpper(p.Value)
	}

	switch kind {
	case KindRegex:
		re, err := regexp.Compile(c.Value)
		if err != nil {
			return Predicate{}, models.NewValidationError(field+".value", "invalid regex: %v", err)
		}
		p.re = re
	case KindRange:
		if c.Min == nil && c.Max == nil {
			return Predicate{}, models.NewValidationError(field, "range needs min or max")
		}
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			return Predicate{}, models.NewValidationError(field, "range min %v exceeds max %v", *c.Min, *c.Max)
		}
	case KindJSONPath:
		if c.Source != models.SourceBody {
			return Predicate{}, models.NewValidationError(field+".source", "jsonPath applies to body only")
		}
		if c.Key == "" {
			return Predicate{}, models.NewValidationError(field+".key", "jsonPath needs a path key")
		}
	case KindWildcard:
		if !doublestar.ValidatePattern(c.Value) {
			return Predicate{}, models.NewValidationError(field+".value", "invalid wildcard pattern %q", c.Value)
		}
	case KindTemplate:
		if c.Source != models.SourcePath {
			return Predicate{}, models.NewValidationError(field+".source", "template applies to path only")
		}
		segments, err := parsePathTemplate(c.Value)
		if err != nil {
			return Predicate{}, models.NewValidationError(field+".value", "%v", err)
		}
		p.segments = segments
	}

	return p, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and fixed tables.
func MustCompile(c models.Condition) Predicate {
	p, err := Compile("condition", c)
	if err != nil {
		panic(err)
	}
	return p
}

// Condition returns the wire form of the predicate
func (p Predicate) Condition() models.Condition {
	return models.Condition{
		Source:   p.Source,
		Key:      p.Key,
		Operator: p.operator,
		Value:    p.Value,
		Min:      p.Min,
		Max:      p.Max,
		All:      p.All,
	}
}

// Weight returns the specificity contribution of the predicate
func (p Predicate) Weight() int {
	switch p.Kind {
	case KindEquals:
		return WeightEquals
	case KindJSONPath:
		return WeightJSONPath
	case KindEqualFold:
		return WeightEqualFold
	case KindTemplate:
		return WeightTemplate
	case KindRegex:
		return WeightRegex
	case KindRange:
		return WeightRange
	case KindContains, KindStartsWith, KindEndsWith:
		return WeightSubstring
	case KindWildcard:
		if strings.Trim(p.Value, "*") == "" {
			return 0
		}
		return WeightWildcard
	case KindExists, KindNotExists:
		return WeightPresence
	default:
		return 0
	}
}

// Specificity sums the weights of a predicate set
func Specificity(preds []Predicate) int {
	total := 0
	for _, p := range preds {
		total += p.Weight()
	}
	return total
}

// String renders the predicate for diagnostics
func (p Predicate) String() string {
	target := p.Source
	if p.Key != "" {
		target += "." + p.Key
	}
	switch p.Kind {
	case KindExists, KindNotExists:
		return fmt.Sprintf("%s %s", target, p.operator)
	case KindRange:
		return fmt.Sprintf("%s in [%s, %s]", target, bound(p.Min), bound(p.Max))
	default:
		return fmt.Sprintf("%s %s %q", target, p.operator, p.Value)
	}
}

func bound(v *float64) string {
	if v == nil {
		return "*"
	}
	return fmt.Sprintf("%g", *v)
}

// HasPathParams reports whether a path contains {name} segments
func HasPathParams(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if isParam(seg) {
			return true
		}
	}
	return false
}

// parsePathTemplate splits a path template such as /users/{id} into segments
func parsePathTemplate(tmpl string) ([]string, error) {
	if !strings.HasPrefix(tmpl, "/") {
		return nil, fmt.Errorf("path template %q must start with /", tmpl)
	}

	segments := strings.Split(strings.Trim(tmpl, "/"), "/")
	seen := make(map[string]bool)
	for _, seg := range segments {
		if !strings.ContainsAny(seg, "{}") {
			continue
		}
		if !isParam(seg) {
			return nil, fmt.Errorf("path parameter %q must span a whole segment", seg)
		}
		name := seg[1 : len(seg)-1]
		if seen[name] {
			return nil, fmt.Errorf("duplicate path parameter %q", name)
		}
		seen[name] = true
	}
	return segments, nil
}

func isParam(seg string) bool {
	return len(seg) > 2 && strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") &&
		!strings.ContainsAny(seg[1:len(seg)-1], "{}/")
}
