package storage

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prasenjit/go-assertive/internal/condition"
	"github.com/prasenjit/go-assertive/internal/models"
	"github.com/prasenjit/go-assertive/internal/template"
)

var templates = template.NewEngine()

// buildExpectation validates input and compiles it into an Expectation.
// Sequence, ID and CreatedAt are assigned by the store.
func buildExpectation(input *models.ExpectationInput) (*Expectation, error) {
	if input.MaxMatches < 0 {
		return nil, models.NewValidationError("maxMatches", "must not be negative, got %d", input.MaxMatches)
	}

	preds, err := condition.BuildPredicates(input.Request, input.Conditions)
	if err != nil {
		return nil, err
	}

	resp, err := buildResponse(input.Response)
	if err != nil {
		return nil, err
	}

	return &Expectation{
		Name:        input.Name,
		Priority:    input.Priority,
		Predicates:  preds,
		Specificity: condition.Specificity(preds),
		Response:    resp,
		MaxMatches:  int64(input.MaxMatches),
		input:       input.Response,
	}, nil
}

func buildResponse(in models.ResponseInput) (*models.ResponseTemplate, error) {
	tmpl := &models.ResponseTemplate{
		StatusCode: in.StatusCode,
		Headers:    make(map[string]string, len(in.Headers)),
	}
	if tmpl.StatusCode == 0 {
		tmpl.StatusCode = http.StatusOK
	}
	if tmpl.StatusCode < 100 || tmpl.StatusCode > 599 {
		return nil, models.NewValidationError("response.status", "must be between 100 and 599, got %d", in.StatusCode)
	}

	for k, v := range in.Headers {
		if k == "" {
			return nil, models.NewValidationError("response.headers", "header name must not be empty")
		}
		if err := templates.Validate(v); err != nil {
			return nil, models.NewValidationError("response.headers."+k, "%v", err)
		}
		tmpl.Headers[k] = v
	}

	sources := 0
	for _, set := range []bool{in.Body != "", len(in.JSON) > 0, in.BodyTemplate != ""} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return nil, models.NewValidationError("response", "only one of body, json or bodyTemplate may be set")
	}

	switch {
	case len(in.JSON) > 0:
		if !json.Valid(in.JSON) {
			return nil, models.NewValidationError("response.json", "not valid JSON")
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, in.JSON); err != nil {
			return nil, models.NewValidationError("response.json", "%v", err)
		}
		tmpl.Body = buf.Bytes()
		if !hasHeader(tmpl.Headers, "Content-Type") {
			tmpl.Headers["Content-Type"] = "application/json"
		}
	case in.BodyTemplate != "":
		if err := templates.Validate(in.BodyTemplate); err != nil {
			return nil, models.NewValidationError("response.bodyTemplate", "%v", err)
		}
		if template.HasTokens(in.BodyTemplate) {
			tmpl.BodyTemplate = in.BodyTemplate
			tmpl.Templated = true
		} else {
			// Only {name} captures to expand
			tmpl.Body = []byte(in.BodyTemplate)
		}
	default:
		tmpl.Body = []byte(in.Body)
	}

	switch in.Fault {
	case "", models.FaultCloseConnection, models.FaultTruncate:
		tmpl.Fault = in.Fault
	default:
		return nil, models.NewValidationError("response.fault", "unknown fault %q (want %s or %s)",
			in.Fault, models.FaultCloseConnection, models.FaultTruncate)
	}

	if d := in.Delay; d != nil {
		if d.Fixed < 0 || d.Min < 0 || d.Max < 0 {
			return nil, models.NewValidationError("response.delay", "must not be negative")
		}
		if d.Fixed > 0 && (d.Min > 0 || d.Max > 0) {
			return nil, models.NewValidationError("response.delay", "fixed cannot be combined with min/max")
		}
		if d.Min > d.Max && d.Max > 0 {
			return nil, models.NewValidationError("response.delay", "min %d exceeds max %d", d.Min, d.Max)
		}
		if d.Min > 0 && d.Max == 0 {
			return nil, models.NewValidationError("response.delay.max", "required when min is set")
		}
		tmpl.DelayFixed = time.Duration(d.Fixed) * time.Millisecond
		tmpl.DelayMin = time.Duration(d.Min) * time.Millisecond
		tmpl.DelayMax = time.Duration(d.Max) * time.Millisecond
	}

	return tmpl, nil
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if http.CanonicalHeaderKey(k) == http.CanonicalHeaderKey(name) {
			return true
		}
	}
	return false
}
