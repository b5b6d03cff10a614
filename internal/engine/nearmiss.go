package engine

import (
	"encoding/json"
	"sort"

	"github.com/prasenjit/go-assertive/internal/condition"
	"github.com/prasenjit/go-assertive/internal/models"
)

// NearMiss describes a registered expectation that almost matched a request
type NearMiss struct {
	ExpectationID string                      `json:"expectationId"`
	Name          string                      `json:"name,omitempty"`
	Score         int                         `json:"score"`
	Mismatches    []condition.PredicateResult `json:"mismatches"`
}

// unmatchedDiagnostics is the body returned for unmatched requests when diagnostics are on
type unmatchedDiagnostics struct {
	Error   string     `json:"error"`
	Seq     int64      `json:"requestSeq"`
	Method  string     `json:"method"`
	Path    string     `json:"path"`
	Closest []NearMiss `json:"closest"`
}

// unmatched builds the default response for a request no expectation answered
func (d *Dispatcher) unmatched(rec *models.RequestRecord) *models.ResponseRecord {
	resp := &models.ResponseRecord{
		StatusCode: d.opts.UnmatchedStatus,
		Headers:    map[string]string{"Content-Type": "text/plain; charset=utf-8"},
		Body:       []byte(d.opts.UnmatchedBody),
		RequestSeq: rec.Seq,
	}

	if d.opts.Diagnostics {
		resp.Headers["Content-Type"] = "application/json"
		resp.Body = mustJSON(unmatchedDiagnostics{
			Error:   d.opts.UnmatchedBody,
			Seq:     rec.Seq,
			Method:  rec.Method,
			Path:    rec.Path,
			Closest: d.NearMisses(rec, d.opts.Closest),
		})
	}

	return resp
}

// NearMisses returns up to limit active expectations closest to matching rec,
// best first. Expectations where nothing matched are left out.
func (d *Dispatcher) NearMisses(rec *models.RequestRecord, limit int) []NearMiss {
	misses := make([]NearMiss, 0)

	for _, exp := range d.store.Candidates() {
		if !exp.Active() {
			continue
		}
		b := d.evaluator.Breakdown(rec, exp.Predicates)
		if b.Passed == b.Total || b.Passed == 0 {
			continue
		}

		nm := NearMiss{ExpectationID: exp.ID, Name: exp.Name, Score: b.Score()}
		for _, r := range b.Results {
			if !r.Matched {
				nm.Mismatches = append(nm.Mismatches, r)
			}
		}
		misses = append(misses, nm)
	}

	sort.SliceStable(misses, func(i, j int) bool {
		return misses[i].Score > misses[j].Score
	})

	if limit > 0 && len(misses) > limit {
		misses = misses[:limit]
	}
	return misses
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"error":"failed to encode diagnostics"}`)
	}
	return data
}
