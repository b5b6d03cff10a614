package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Matcher is the shorthand form of a condition used inside a request definition.
// It decodes from a plain scalar (an implicit eq, or template for paths with
// {name} segments) or from an object naming the operator.
type Matcher struct {
	Operator string   `json:"operator,omitempty"`
	Key      string   `json:"key,omitempty"`
	Value    string   `json:"value,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	All      bool     `json:"all,omitempty"`
}

// UnmarshalJSON accepts a string, number, boolean or matcher object
func (m *Matcher) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = Matcher{Value: s}
		return nil
	case '{':
		type alias Matcher
		var a alias
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		*m = Matcher(a)
		return nil
	case '[':
		return fmt.Errorf("matcher must be a string or an object, got a list")
	default:
		// numbers and booleans compare against their literal text
		*m = Matcher{Value: string(data)}
		return nil
	}
}

// BodyMatchers holds one or more body conditions. It decodes from a single
// matcher or a list of matchers.
type BodyMatchers []Matcher

// UnmarshalJSON accepts a single matcher or a list of matchers
func (b *BodyMatchers) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []Matcher
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*b = list
		return nil
	}

	var m Matcher
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*b = BodyMatchers{m}
	return nil
}

// RequestInput describes which requests an expectation (or verification) matches.
// Missing dimensions match anything.
type RequestInput struct {
	Method  *Matcher           `json:"method,omitempty"`
	Path    *Matcher           `json:"path,omitempty"`
	Host    *Matcher           `json:"host,omitempty"`
	Headers map[string]Matcher `json:"headers,omitempty"`
	Query   map[string]Matcher `json:"query,omitempty"`
	Body    BodyMatchers       `json:"body,omitempty"`
}

// DelayInput configures a response delay in milliseconds: either fixed or
// uniformly random between min and max.
type DelayInput struct {
	Fixed int `json:"fixed,omitempty"`
	Min   int `json:"min,omitempty"`
	Max   int `json:"max,omitempty"`
}

// ResponseInput describes the canned response of an expectation
type ResponseInput struct {
	StatusCode   int               `json:"status"`
	Headers      map[string]string `json:"headers,omitempty"`
	Body         string            `json:"body,omitempty"`         // Literal body
	JSON         json.RawMessage   `json:"json,omitempty"`         // Literal JSON body
	BodyTemplate string            `json:"bodyTemplate,omitempty"` // Body with {{...}} tokens
	Delay        *DelayInput       `json:"delay,omitempty"`
	Fault        string            `json:"fault,omitempty"` // closeConnection, truncate
}

// ExpectationInput represents input for registering an expectation
type ExpectationInput struct {
	ID         string        `json:"id,omitempty"`
	Name       string        `json:"name,omitempty"`
	Priority   int           `json:"priority"`
	MaxMatches int           `json:"maxMatches,omitempty"` // 0 means unlimited
	Request    RequestInput  `json:"request"`
	Conditions []Condition   `json:"conditions,omitempty"` // Explicit predicates, appended after Request
	Response   ResponseInput `json:"response"`
}

// ResponseTemplate is the validated response of a registered expectation
type ResponseTemplate struct {
	StatusCode   int
	Headers      map[string]string
	Body         []byte
	BodyTemplate string
	Templated    bool
	DelayFixed   time.Duration
	DelayMin     time.Duration
	DelayMax     time.Duration
	Fault        string
}

// HasDelay reports whether any delay is configured
func (t *ResponseTemplate) HasDelay() bool {
	return t.DelayFixed > 0 || t.DelayMax > 0
}

// ExpectationView is a read-only copy of a registered expectation for listings
type ExpectationView struct {
	ID          string        `json:"id"`
	Name        string        `json:"name,omitempty"`
	Priority    int           `json:"priority"`
	Sequence    int64         `json:"sequence"`
	Specificity int           `json:"specificity"`
	MaxMatches  int           `json:"maxMatches,omitempty"`
	MatchCount  int64         `json:"matchCount"`
	Active      bool          `json:"active"`
	Conditions  []Condition   `json:"conditions"`
	Response    ResponseInput `json:"response"`
	CreatedAt   time.Time     `json:"createdAt"`
}
