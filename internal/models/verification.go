package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Count constraint kinds
const (
	CountExactly = "exactly"
	CountAtLeast = "atLeast"
	CountAtMost  = "atMost"
	CountBetween = "between"
)

// CountConstraint bounds how many recorded requests a verification expects
type CountConstraint struct {
	Kind string `json:"kind"`
	N    int    `json:"n"`
	M    int    `json:"m,omitempty"` // Upper bound for between
}

// Satisfied reports whether count meets the constraint
func (c CountConstraint) Satisfied(count int) bool {
	switch c.Kind {
	case CountExactly:
		return count == c.N
	case CountAtLeast:
		return count >= c.N
	case CountAtMost:
		return count <= c.N
	case CountBetween:
		return count >= c.N && count <= c.M
	default:
		return false
	}
}

func (c CountConstraint) String() string {
	switch c.Kind {
	case CountExactly:
		return fmt.Sprintf("exactly %d time(s)", c.N)
	case CountAtLeast:
		return fmt.Sprintf("at least %d time(s)", c.N)
	case CountAtMost:
		return fmt.Sprintf("at most %d time(s)", c.N)
	case CountBetween:
		return fmt.Sprintf("between %d and %d time(s)", c.N, c.M)
	default:
		return c.Kind
	}
}

// Validate checks the constraint is well formed
func (c CountConstraint) Validate() error {
	switch c.Kind {
	case CountExactly, CountAtLeast, CountAtMost:
		if c.N < 0 {
			return NewValidationError("times."+c.Kind, "must not be negative")
		}
	case CountBetween:
		if c.N < 0 || c.M < c.N {
			return NewValidationError("times.between", "needs 0 <= min <= max, got [%d,%d]", c.N, c.M)
		}
	default:
		return NewValidationError("times", "unknown count constraint %q", c.Kind)
	}
	return nil
}

// TimesInput is the wire form of a count constraint. A bare number means exactly.
type TimesInput struct {
	Exactly *int  `json:"exactly,omitempty"`
	AtLeast *int  `json:"atLeast,omitempty"`
	AtMost  *int  `json:"atMost,omitempty"`
	Between []int `json:"between,omitempty"`
	Never   bool  `json:"never,omitempty"`
}

// UnmarshalJSON accepts a number or a constraint object
func (t *TimesInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("times must be a number or an object: %w", err)
		}
		*t = TimesInput{Exactly: &n}
		return nil
	}

	type alias TimesInput
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*t = TimesInput(a)
	return nil
}

// Constraint converts the input into a CountConstraint. A nil input means at least once.
func (t *TimesInput) Constraint() (CountConstraint, error) {
	if t == nil {
		return CountConstraint{Kind: CountAtLeast, N: 1}, nil
	}

	var set []CountConstraint
	if t.Never {
		set = append(set, CountConstraint{Kind: CountExactly, N: 0})
	}
	if t.Exactly != nil {
		set = append(set, CountConstraint{Kind: CountExactly, N: *t.Exactly})
	}
	if t.AtLeast != nil {
		set = append(set, CountConstraint{Kind: CountAtLeast, N: *t.AtLeast})
	}
	if t.AtMost != nil {
		set = append(set, CountConstraint{Kind: CountAtMost, N: *t.AtMost})
	}
	if t.Between != nil {
		if len(t.Between) != 2 {
			return CountConstraint{}, NewValidationError("times.between", "expects [min, max]")
		}
		set = append(set, CountConstraint{Kind: CountBetween, N: t.Between[0], M: t.Between[1]})
	}

	switch len(set) {
	case 0:
		return CountConstraint{Kind: CountAtLeast, N: 1}, nil
	case 1:
		return set[0], set[0].Validate()
	default:
		// atLeast + atMost together is a between
		if len(set) == 2 && t.AtLeast != nil && t.AtMost != nil {
			c := CountConstraint{Kind: CountBetween, N: *t.AtLeast, M: *t.AtMost}
			return c, c.Validate()
		}
		return CountConstraint{}, NewValidationError("times", "only one of exactly, atLeast, atMost, between, never may be set")
	}
}

// VerificationInput represents input for a verification query
type VerificationInput struct {
	Request    RequestInput `json:"request"`
	Conditions []Condition  `json:"conditions,omitempty"`
	Times      *TimesInput  `json:"times,omitempty"`
}

// VerificationResult is the outcome of a verification. A violated constraint is
// a normal result, not an error.
type VerificationResult struct {
	Count          int              `json:"count"`
	Satisfied      bool             `json:"satisfied"`
	Expected       string           `json:"expected"`
	Message        string           `json:"message"`
	MatchedRecords []*RequestRecord `json:"matchedRecords"`
}
