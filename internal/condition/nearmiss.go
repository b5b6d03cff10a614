package condition

import (
	"unicode/utf8"

	"github.com/prasenjit/go-assertive/internal/models"
)

// PredicateResult describes whether a single predicate matched a request
type PredicateResult struct {
	Predicate string   `json:"predicate"`
	Matched   bool     `json:"matched"`
	Actual    []string `json:"actual,omitempty"`
}

// Breakdown is the per-predicate evaluation of a predicate set without short-circuiting
type Breakdown struct {
	Results []PredicateResult `json:"results"`
	Passed  int               `json:"passed"`
	Total   int               `json:"total"`
}

// Score returns the fraction of predicates that passed, in percent
func (b Breakdown) Score() int {
	if b.Total == 0 {
		return 100
	}
	return b.Passed * 100 / b.Total
}

// Breakdown evaluates every predicate against the record and reports each outcome.
// Only predicates that failed carry the actual request values.
func (e *Evaluator) Breakdown(rec *models.RequestRecord, preds []Predicate) Breakdown {
	b := Breakdown{Total: len(preds)}

	for _, p := range preds {
		ok, _ := e.Evaluate(p, rec)
		r := PredicateResult{Predicate: p.String(), Matched: ok}
		if ok {
			b.Passed++
		} else {
			r.Actual = truncateValues(e.Values(p, rec))
		}
		b.Results = append(b.Results, r)
	}

	return b
}

const maxDiagnosticValue = 256

func truncateValues(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if len(v) > maxDiagnosticValue {
			cut := maxDiagnosticValue
			for cut > 0 && !utf8.RuneStart(v[cut]) {
				cut--
			}
			v = v[:cut] + "..."
		}
		out = append(out, v)
	}
	return out
}
