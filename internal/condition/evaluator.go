package condition

import (
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/prasenjit/go-assertive/internal/models"
	"github.com/tidwall/gjson"
)

// MatchResult is the outcome of matching a request against a predicate set
type MatchResult struct {
	Matched     bool
	Specificity int
	Captures    map[string]string // Named path captures from template and regex predicates
}

// Evaluator evaluates predicates against request records
type Evaluator struct{}

// NewEvaluator creates a new condition evaluator
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Match evaluates all predicates against the record.
// All predicates must pass (AND logic); an empty set matches everything with specificity 0.
func (e *Evaluator) Match(rec *models.RequestRecord, preds []Predicate) MatchResult {
	captures := make(map[string]string)

	for _, p := range preds {
		ok, caps := e.Evaluate(p, rec)
		if !ok {
			return MatchResult{}
		}
		for k, v := range caps {
			captures[k] = v
		}
	}

	return MatchResult{
		Matched:     true,
		Specificity: Specificity(preds),
		Captures:    captures,
	}
}

// Evaluate evaluates a single predicate and returns any path captures it produced
func (e *Evaluator) Evaluate(p Predicate, rec *models.RequestRecord) (bool, map[string]string) {
	values, present := extractValues(p, rec)

	switch p.Kind {
	case KindExists:
		return present, nil
	case KindNotExists:
		return !present, nil
	}

	if !present && p.Source != models.SourceBody {
		return false, nil
	}

	if p.Kind == KindRange && p.Source == models.SourceBody && p.Key == "" {
		return inRange(float64(len(rec.Body)), p.Min, p.Max), nil
	}

	if len(values) == 0 {
		return false, nil
	}

	if p.All {
		var caps map[string]string
		for _, v := range values {
			ok, c := compare(p, v)
			if !ok {
				return false, nil
			}
			caps = c
		}
		return true, caps
	}

	for _, v := range values {
		if ok, caps := compare(p, v); ok {
			return true, caps
		}
	}
	return false, nil
}

// Values returns the request values a predicate inspects. Used for diagnostics.
func (e *Evaluator) Values(p Predicate, rec *models.RequestRecord) []string {
	values, _ := extractValues(p, rec)
	return values
}

// extractValues extracts the values addressed by a predicate and whether the
// dimension is present on the request at all
func extractValues(p Predicate, rec *models.RequestRecord) ([]string, bool) {
	switch p.Source {
	case models.SourceMethod:
		return []string{rec.Method}, true
	case models.SourcePath:
		return []string{rec.Path}, true
	case models.SourceHost:
		return []string{rec.Host}, rec.Host != ""
	case models.SourceQuery:
		vals := rec.QueryValues(p.Key)
		return vals, len(vals) > 0
	case models.SourceHeader:
		vals := rec.HeaderValues(p.Key)
		return vals, len(vals) > 0
	case models.SourceBody:
		if p.Key == "" {
			return []string{string(rec.Body)}, len(rec.Body) > 0
		}
		result := gjson.GetBytes(rec.Body, p.Key)
		if !result.Exists() {
			return nil, false
		}
		if result.IsArray() && p.Kind != KindJSONPath {
			var vals []string
			for _, item := range result.Array() {
				vals = append(vals, item.String())
			}
			return vals, true
		}
		return []string{result.String()}, true
	default:
		return nil, false
	}
}

// compare tests one value against a predicate
func compare(p Predicate, actual string) (bool, map[string]string) {
	switch p.Kind {
	case KindEquals, KindJSONPath:
		return actual == p.Value, nil
	case KindEqualFold:
		return strings.EqualFold(actual, p.Value), nil
	case KindContains:
		return strings.Contains(actual, p.Value), nil
	case KindStartsWith:
		return strings.HasPrefix(actual, p.Value), nil
	case KindEndsWith:
		return strings.HasSuffix(actual, p.Value), nil
	case KindRegex:
		m := p.re.FindStringSubmatch(actual)
		if m == nil {
			return false, nil
		}
		if p.Source != models.SourcePath {
			return true, nil
		}
		caps := make(map[string]string)
		for i, name := range p.re.SubexpNames() {
			if name != "" && i < len(m) {
				caps[name] = m[i]
			}
		}
		return true, caps
	case KindRange:
		v, err := strconv.ParseFloat(strings.TrimSpace(actual), 64)
		if err != nil {
			return false, nil
		}
		return inRange(v, p.Min, p.Max), nil
	case KindWildcard:
		ok, err := doublestar.Match(p.Value, actual)
		return err == nil && ok, nil
	case KindTemplate:
		return matchTemplate(p.segments, actual)
	default:
		return false, nil
	}
}

func inRange(v float64, min, max *float64) bool {
	if min != nil && v < *min {
		return false
	}
	if max != nil && v > *max {
		return false
	}
	return true
}

// matchTemplate matches a request path against template segments and captures parameters.
// Example: /users/{id} matches /users/42 with id=42
func matchTemplate(segments []string, path string) (bool, map[string]string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != len(segments) {
		return false, nil
	}

	caps := make(map[string]string)
	for i, seg := range segments {
		if isParam(seg) {
			if parts[i] == "" {
				return false, nil
			}
			caps[seg[1:len(seg)-1]] = parts[i]
			continue
		}
		if seg != parts[i] {
			return false, nil
		}
	}
	return true, caps
}
