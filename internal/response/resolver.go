package response

import (
	"bytes"
	"context"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/prasenjit/go-assertive/internal/models"
	"github.com/prasenjit/go-assertive/internal/storage"
	"github.com/prasenjit/go-assertive/internal/template"
	"github.com/tidwall/gjson"
)

// Options configures a Resolver. Read once at construction.
type Options struct {
	FaultsEnabled bool
	MaxDelay      time.Duration // 0 means uncapped
}

// Resolver turns a matched expectation into a concrete response
type Resolver struct {
	templateEngine *template.Engine
	opts           Options
}

// NewResolver creates a new response resolver
func NewResolver(opts Options) *Resolver {
	return &Resolver{
		templateEngine: template.NewEngine(),
		opts:           opts,
	}
}

// Resolve claims one match of exp and renders its response for rec.
//
// It returns storage.ErrExhausted when the match limit was used up by a
// concurrent request, a *models.TemplateError when the response cannot be
// rendered, or ctx.Err() when ctx is done during the configured delay.
// Callers must not hold any store lock while calling Resolve.
func (r *Resolver) Resolve(ctx context.Context, exp *storage.Expectation, rec *models.RequestRecord, captures map[string]string) (*models.ResponseRecord, error) {
	if err := exp.Claim(); err != nil {
		return nil, err
	}

	tmpl := exp.Response
	delay := r.delayFor(tmpl)

	if tmpl.Fault != "" && r.opts.FaultsEnabled {
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
		return r.renderFault(exp, rec, captures, delay), nil
	}

	resp, err := r.render(exp, rec, captures)
	if err != nil {
		return nil, err
	}
	resp.Delay = delay

	if err := sleep(ctx, delay); err != nil {
		return nil, err
	}

	return resp, nil
}

// render produces the full response or an error, never a partial body
func (r *Resolver) render(exp *storage.Expectation, rec *models.RequestRecord, captures map[string]string) (*models.ResponseRecord, error) {
	tmpl := exp.Response
	ctx := template.NewContext(rec, captures)

	headers, err := r.templateEngine.RenderHeaders(tmpl.Headers, ctx)
	if err != nil {
		return nil, err
	}

	var body []byte
	switch {
	case tmpl.Templated:
		rendered, err := r.templateEngine.Render(tmpl.BodyTemplate, ctx)
		if err != nil {
			return nil, err
		}
		body = []byte(rendered)
	case len(captures) > 0:
		body = []byte(r.templateEngine.ExpandCaptures(string(tmpl.Body), captures))
	default:
		body = append([]byte(nil), tmpl.Body...)
	}

	if len(body) > 0 && headerValue(headers, "Content-Type") == "" {
		headers["Content-Type"] = defaultContentType(body)
	}

	return &models.ResponseRecord{
		StatusCode:    tmpl.StatusCode,
		Headers:       headers,
		Body:          body,
		ExpectationID: exp.ID,
	}, nil
}

// renderFault renders a fault response part by part. A header or body that
// fails to render is sent raw instead of failing the fault.
func (r *Resolver) renderFault(exp *storage.Expectation, rec *models.RequestRecord, captures map[string]string, delay time.Duration) *models.ResponseRecord {
	tmpl := exp.Response
	ctx := template.NewContext(rec, captures)

	headers := make(map[string]string, len(tmpl.Headers))
	for k, v := range tmpl.Headers {
		rendered, err := r.templateEngine.RenderHeaders(map[string]string{k: v}, ctx)
		if err != nil {
			headers[k] = v
			continue
		}
		headers[k] = rendered[k]
	}

	body := append([]byte(nil), tmpl.Body...)
	switch {
	case tmpl.Templated:
		if rendered, err := r.templateEngine.Render(tmpl.BodyTemplate, ctx); err == nil {
			body = []byte(rendered)
		} else {
			body = []byte(tmpl.BodyTemplate)
		}
	case len(captures) > 0:
		body = []byte(r.templateEngine.ExpandCaptures(string(tmpl.Body), captures))
	}

	return &models.ResponseRecord{
		StatusCode:    tmpl.StatusCode,
		Headers:       headers,
		Body:          body,
		Fault:         tmpl.Fault,
		ExpectationID: exp.ID,
		Delay:         delay,
	}
}

// delayFor picks the delay for one response, capped by MaxDelay
func (r *Resolver) delayFor(tmpl *models.ResponseTemplate) time.Duration {
	var d time.Duration
	switch {
	case tmpl.DelayFixed > 0:
		d = tmpl.DelayFixed
	case tmpl.DelayMax > tmpl.DelayMin:
		d = tmpl.DelayMin + rand.N(tmpl.DelayMax-tmpl.DelayMin+1)
	default:
		d = tmpl.DelayMin
	}

	if r.opts.MaxDelay > 0 && d > r.opts.MaxDelay {
		d = r.opts.MaxDelay
	}
	return d
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// defaultContentType sniffs a content type for bodies without an explicit one
func defaultContentType(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && gjson.ValidBytes(trimmed) {
		return "application/json"
	}
	return http.DetectContentType(body)
}

func headerValue(h map[string]string, name string) string {
	for k, v := range h {
		if http.CanonicalHeaderKey(k) == http.CanonicalHeaderKey(name) {
			return v
		}
	}
	return ""
}
