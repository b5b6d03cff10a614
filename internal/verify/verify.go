// Package verify evaluates count assertions against recorded request history.
package verify

import (
	"fmt"

	"github.com/prasenjit/go-assertive/internal/condition"
	"github.com/prasenjit/go-assertive/internal/models"
)

// History is the read side of the request log
type History interface {
	Query(match func(*models.RequestRecord) bool) []*models.RequestRecord
}

// Query is a compiled verification: a predicate set plus a count constraint
type Query struct {
	Predicates []condition.Predicate
	Constraint models.CountConstraint
}

// Compile validates a verification input. Without times the query expects
// at least one matching request.
func Compile(input *models.VerificationInput) (*Query, error) {
	if input == nil {
		input = &models.VerificationInput{}
	}

	preds, err := condition.BuildPredicates(input.Request, input.Conditions)
	if err != nil {
		return nil, err
	}

	constraint, err := input.Times.Constraint()
	if err != nil {
		return nil, err
	}

	return &Query{Predicates: preds, Constraint: constraint}, nil
}

// Verify counts the records in h matching q and checks the count constraint.
// It never modifies h. A violated constraint is reported in the result, not as an error.
func Verify(q *Query, h History) models.VerificationResult {
	evaluator := condition.NewEvaluator()
	matched := h.Query(func(rec *models.RequestRecord) bool {
		return evaluator.Match(rec, q.Predicates).Matched
	})

	count := len(matched)
	result := models.VerificationResult{
		Count:          count,
		Satisfied:      q.Constraint.Satisfied(count),
		Expected:       q.Constraint.String(),
		MatchedRecords: matched,
	}

	if result.Satisfied {
		result.Message = fmt.Sprintf("Request was received %d time(s), matching %s", count, result.Expected)
	} else {
		result.Message = fmt.Sprintf("Expected request to be received %s, but it was received %d time(s)", result.Expected, count)
	}

	return result
}
