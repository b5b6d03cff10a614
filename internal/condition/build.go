package condition

import (
	"fmt"
	"sort"

	"github.com/prasenjit/go-assertive/internal/models"
)

// BuildPredicates compiles a request definition plus explicit conditions into an
// ordered predicate set: method, path, host, headers, query, body, then conditions.
func BuildPredicates(req models.RequestInput, conditions []models.Condition) ([]Predicate, error) {
	var preds []Predicate

	add := func(field, source, key string, m models.Matcher) error {
		p, err := Compile(field, toCondition(source, key, m))
		if err != nil {
			return err
		}
		preds = append(preds, p)
		return nil
	}

	if req.Method != nil {
		if err := add("request.method", models.SourceMethod, "", *req.Method); err != nil {
			return nil, err
		}
	}
	if req.Path != nil {
		if err := add("request.path", models.SourcePath, "", *req.Path); err != nil {
			return nil, err
		}
	}
	if req.Host != nil {
		if err := add("request.host", models.SourceHost, "", *req.Host); err != nil {
			return nil, err
		}
	}

	for _, name := range sortedKeys(req.Headers) {
		if err := add("request.headers."+name, models.SourceHeader, name, req.Headers[name]); err != nil {
			return nil, err
		}
	}
	for _, name := range sortedKeys(req.Query) {
		if err := add("request.query."+name, models.SourceQuery, name, req.Query[name]); err != nil {
			return nil, err
		}
	}
	for i, m := range req.Body {
		if err := add(fmt.Sprintf("request.body[%d]", i), models.SourceBody, m.Key, m); err != nil {
			return nil, err
		}
	}

	for i, c := range conditions {
		p, err := Compile(fmt.Sprintf("conditions[%d]", i), c)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}

	return preds, nil
}

// toCondition expands a shorthand matcher into a full condition
func toCondition(source, key string, m models.Matcher) models.Condition {
	op := m.Operator
	if op == "" {
		op = models.OpEquals
		if source == models.SourcePath && HasPathParams(m.Value) {
			op = models.OpTemplate
		}
	}

	return models.Condition{
		Source:   source,
		Key:      key,
		Operator: op,
		Value:    m.Value,
		Min:      m.Min,
		Max:      m.Max,
		All:      m.All,
	}
}

func sortedKeys(m map[string]models.Matcher) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
