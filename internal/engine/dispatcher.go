// Package engine coordinates request dispatch: record, match, resolve, respond.
package engine

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prasenjit/go-assertive/internal/condition"
	"github.com/prasenjit/go-assertive/internal/history"
	"github.com/prasenjit/go-assertive/internal/models"
	"github.com/prasenjit/go-assertive/internal/response"
	"github.com/prasenjit/go-assertive/internal/stats"
	"github.com/prasenjit/go-assertive/internal/storage"
)

// DefaultUnmatchedBody is the body returned when no expectation matches
const DefaultUnmatchedBody = "NO_STUB_MATCH_FOUND"

// Options configures a Dispatcher. Read once at construction.
type Options struct {
	UnmatchedStatus int
	UnmatchedBody   string
	Diagnostics     bool // include closest expectations in unmatched responses
	Closest         int  // how many near misses to report
	Debug           bool // log every dispatch decision
}

// Dispatcher orchestrates the handling of one incoming request
type Dispatcher struct {
	store          storage.Store
	history        *history.Log
	resolver       *response.Resolver
	statsCollector *stats.Collector
	evaluator      *condition.Evaluator
	opts           Options
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(store storage.Store, h *history.Log, resolver *response.Resolver, statsCollector *stats.Collector, opts Options) *Dispatcher {
	if opts.UnmatchedStatus == 0 {
		opts.UnmatchedStatus = http.StatusNotFound
	}
	if opts.UnmatchedBody == "" {
		opts.UnmatchedBody = DefaultUnmatchedBody
	}
	if opts.Closest <= 0 {
		opts.Closest = 3
	}

	return &Dispatcher{
		store:          store,
		history:        h,
		resolver:       resolver,
		statsCollector: statsCollector,
		evaluator:      condition.NewEvaluator(),
		opts:           opts,
	}
}

// Dispatch records rec, selects the best expectation and resolves its response.
//
// The request is always recorded before matching, and stays recorded even if
// ctx is cancelled. The only error returned is ctx.Err() when the caller went
// away during a response delay; every other outcome is a response.
func (d *Dispatcher) Dispatch(ctx context.Context, rec models.RequestRecord) (*models.ResponseRecord, error) {
	startTime := time.Now()
	stored := d.history.Append(rec)

	for {
		exp, result, ok := d.store.FindBest(stored)
		if !ok {
			resp := d.unmatched(stored)
			d.statsCollector.RecordUnmatched(stored, time.Since(startTime))
			if d.opts.Debug {
				log.Printf("dispatch #%d %s %s: no match", stored.Seq, stored.Method, stored.Path)
			}
			return resp, nil
		}

		resp, err := d.resolver.Resolve(ctx, exp, stored, result.Captures)
		switch {
		case errors.Is(err, storage.ErrExhausted):
			// Lost the last slot to a concurrent request; pick again
			continue
		case models.IsTemplateError(err):
			log.Printf("dispatch #%d: expectation %s: %v", stored.Seq, exp.ID, err)
			d.statsCollector.RecordMatch(exp.ID, exp.Name, time.Since(startTime), true)
			return d.templateFailure(stored, exp, err), nil
		case err != nil:
			if d.opts.Debug {
				log.Printf("dispatch #%d: abandoned: %v", stored.Seq, err)
			}
			return nil, err
		}

		resp.RequestSeq = stored.Seq
		resp.Matched = true
		d.statsCollector.RecordMatch(exp.ID, exp.Name, time.Since(startTime), false)
		if d.opts.Debug {
			log.Printf("dispatch #%d %s %s: matched %s (priority %d, specificity %d) -> %d",
				stored.Seq, stored.Method, stored.Path, exp.ID, exp.Priority, result.Specificity, resp.StatusCode)
		}
		return resp, nil
	}
}

// Reject records rec without matching it and returns a plain error response
// with the given status. It serves requests that cannot be dispatched, such
// as bodies over the size limit.
func (d *Dispatcher) Reject(rec models.RequestRecord, status int, message string) *models.ResponseRecord {
	startTime := time.Now()
	stored := d.history.Append(rec)
	d.statsCollector.RecordUnmatched(stored, time.Since(startTime))
	if d.opts.Debug {
		log.Printf("dispatch #%d %s %s: rejected with %d: %s", stored.Seq, stored.Method, stored.Path, status, message)
	}

	return &models.ResponseRecord{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "text/plain; charset=utf-8"},
		Body:       []byte(message + "\n"),
		RequestSeq: stored.Seq,
	}
}

// Options returns the dispatcher configuration
func (d *Dispatcher) Options() Options {
	return d.opts
}

// templateFailure builds the diagnostic response for a template that could not be rendered
func (d *Dispatcher) templateFailure(rec *models.RequestRecord, exp *storage.Expectation, err error) *models.ResponseRecord {
	body := mustJSON(map[string]interface{}{
		"error":         "TEMPLATE_ERROR",
		"message":       err.Error(),
		"expectationId": exp.ID,
		"requestSeq":    rec.Seq,
	})

	return &models.ResponseRecord{
		StatusCode:    http.StatusInternalServerError,
		Headers:       map[string]string{"Content-Type": "application/json"},
		Body:          body,
		ExpectationID: exp.ID,
		RequestSeq:    rec.Seq,
		Matched:       true,
	}
}
