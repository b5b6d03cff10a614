package storage

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/prasenjit/go-assertive/internal/condition"
	"github.com/prasenjit/go-assertive/internal/models"
)

// ErrExhausted is returned by Claim when the match limit was reached by a
// concurrent request after the expectation was selected.
var ErrExhausted = errors.New("expectation match limit exhausted")

// Expectation is a registered request-matching rule bound to a response.
// Everything except the match counter is immutable after registration.
type Expectation struct {
	ID          string
	Name        string
	Priority    int
	Sequence    int64
	Predicates  []condition.Predicate
	Specificity int
	Response    *models.ResponseTemplate
	MaxMatches  int64
	CreatedAt   time.Time

	input models.ResponseInput
	count atomic.Int64
}

// Active reports whether the match limit has not been reached yet
func (e *Expectation) Active() bool {
	return e.MaxMatches == 0 || e.count.Load() < e.MaxMatches
}

// MatchCount returns how many requests this expectation has answered
func (e *Expectation) MatchCount() int64 {
	return e.count.Load()
}

// Claim takes one slot of the match limit. Concurrent callers never claim
// more than MaxMatches slots in total.
func (e *Expectation) Claim() error {
	for {
		n := e.count.Load()
		if e.MaxMatches > 0 && n >= e.MaxMatches {
			return ErrExhausted
		}
		if e.count.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

// View returns a read-only copy for listings
func (e *Expectation) View() models.ExpectationView {
	conds := make([]models.Condition, len(e.Predicates))
	for i, p := range e.Predicates {
		conds[i] = p.Condition()
	}

	resp := e.input
	if e.input.Headers != nil {
		resp.Headers = make(map[string]string, len(e.input.Headers))
		for k, v := range e.input.Headers {
			resp.Headers[k] = v
		}
	}
	if e.input.Delay != nil {
		d := *e.input.Delay
		resp.Delay = &d
	}
	resp.JSON = append([]byte(nil), e.input.JSON...)

	return models.ExpectationView{
		ID:          e.ID,
		Name:        e.Name,
		Priority:    e.Priority,
		Sequence:    e.Sequence,
		Specificity: e.Specificity,
		MaxMatches:  int(e.MaxMatches),
		MatchCount:  e.count.Load(),
		Active:      e.Active(),
		Conditions:  conds,
		Response:    resp,
		CreatedAt:   e.CreatedAt,
	}
}

// outranks reports whether e should be preferred over other for the same request
func outranks(e *Expectation, specificity int, other *Expectation, otherSpecificity int) bool {
	if e.Priority != other.Priority {
		return e.Priority > other.Priority
	}
	if specificity != otherSpecificity {
		return specificity > otherSpecificity
	}
	return e.Sequence < other.Sequence
}
