package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prasenjit/go-assertive/internal/condition"
	"github.com/prasenjit/go-assertive/internal/engine"
	"github.com/prasenjit/go-assertive/internal/history"
	"github.com/prasenjit/go-assertive/internal/models"
	"github.com/prasenjit/go-assertive/internal/parser"
	"github.com/prasenjit/go-assertive/internal/stats"
	"github.com/prasenjit/go-assertive/internal/storage"
	"github.com/prasenjit/go-assertive/internal/verify"
)

const defaultListLimit = 100

// Handler handles admin API requests
type Handler struct {
	store          storage.Store
	history        *history.Log
	statsCollector *stats.Collector
	dispatcher     *engine.Dispatcher
	parser         *parser.Parser
	evaluator      *condition.Evaluator
	prefix         string
}

// NewHandler creates a new admin API handler
func NewHandler(store storage.Store, h *history.Log, statsCollector *stats.Collector, dispatcher *engine.Dispatcher, prefix string) *Handler {
	return &Handler{
		store:          store,
		history:        h,
		statsCollector: statsCollector,
		dispatcher:     dispatcher,
		parser:         parser.NewParser(),
		evaluator:      condition.NewEvaluator(),
		prefix:         prefix,
	}
}

// Welcome describes the running server
func (h *Handler) Welcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":            "assertive mock server",
		"adminPrefix":        h.prefix,
		"activeExpectations": h.store.ActiveCount(),
		"recordedRequests":   h.history.Len(),
	})
}

// CreateExpectations registers one expectation or a list of them.
// A list is registered all or nothing.
func (h *Handler) CreateExpectations(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inputs, err := storage.DecodeExpectations(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid expectation: " + err.Error()})
		return
	}
	if len(inputs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No expectation given"})
		return
	}

	ids, err := h.store.RegisterAll(inputs)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ids": ids})
}

// ListExpectations returns every registered expectation in match order
func (h *Handler) ListExpectations(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Snapshot())
}

// GetExpectation returns a single expectation
func (h *Handler) GetExpectation(c *gin.Context) {
	view, err := h.store.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	stat := h.statsCollector.GetExpectationStats(view.ID)
	c.JSON(http.StatusOK, gin.H{"expectation": view, "stats": stat})
}

// DeleteExpectation removes an expectation. Unknown ids are not an error.
func (h *Handler) DeleteExpectation(c *gin.Context) {
	h.store.Remove(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"message": "Expectation removed"})
}

// ClearExpectations removes every expectation
func (h *Handler) ClearExpectations(c *gin.Context) {
	h.store.Clear()
	c.JSON(http.StatusOK, gin.H{"message": "Expectations cleared"})
}

// Verify checks a count constraint against the request history
func (h *Handler) Verify(c *gin.Context) {
	result, ok := h.runVerification(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result)
}

// Assert is Verify reduced to a single boolean
func (h *Handler) Assert(c *gin.Context) {
	result, ok := h.runVerification(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result.Satisfied})
}

func (h *Handler) runVerification(c *gin.Context) (models.VerificationResult, bool) {
	var input models.VerificationInput
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return models.VerificationResult{}, false
	}

	q, err := verify.Compile(&input)
	if err != nil {
		respondError(c, err)
		return models.VerificationResult{}, false
	}

	return verify.Verify(q, h.history), true
}

// ListRequests returns recorded requests, oldest first
func (h *Handler) ListRequests(c *gin.Context) {
	filter := &history.Filter{
		Method: c.Query("method"),
		Path:   c.Query("path"),
		Limit:  defaultListLimit,
	}

	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		filter.Limit = n
	}
	if v := c.Query("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "after must be a sequence number"})
			return
		}
		filter.AfterSeq = n
	}
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC3339 timestamp"})
			return
		}
		filter.Since = t
	}

	c.JSON(http.StatusOK, h.history.List(filter))
}

// QueryRequests returns every recorded request matching the given conditions
func (h *Handler) QueryRequests(c *gin.Context) {
	var input models.VerificationInput
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	preds, err := condition.BuildPredicates(input.Request, input.Conditions)
	if err != nil {
		respondError(c, err)
		return
	}

	records := h.history.Query(func(rec *models.RequestRecord) bool {
		return h.evaluator.Match(rec, preds).Matched
	})
	c.JSON(http.StatusOK, records)
}

// GetRequest returns one recorded request by sequence number
func (h *Handler) GetRequest(c *gin.Context) {
	rec, ok := h.lookupRequest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetNearMisses reports the expectations closest to matching a recorded request
func (h *Handler) GetNearMisses(c *gin.Context) {
	rec, ok := h.lookupRequest(c)
	if !ok {
		return
	}

	limit := h.dispatcher.Options().Closest
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	c.JSON(http.StatusOK, h.dispatcher.NearMisses(rec, limit))
}

func (h *Handler) lookupRequest(c *gin.Context) (*models.RequestRecord, bool) {
	seq, err := strconv.ParseInt(c.Param("seq"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sequence number"})
		return nil, false
	}

	rec, err := h.history.Get(seq)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return rec, true
}

// ClearRequests empties the request history. Sequence numbers keep increasing.
func (h *Handler) ClearRequests(c *gin.Context) {
	h.history.Clear()
	c.JSON(http.StatusOK, gin.H{"message": "Requests cleared"})
}

// Reset clears expectations, request history and statistics
func (h *Handler) Reset(c *gin.Context) {
	h.store.Clear()
	h.history.Clear()
	h.statsCollector.Reset()
	c.JSON(http.StatusOK, gin.H{"message": "Server reset"})
}

// GetGlobalStats returns global statistics
func (h *Handler) GetGlobalStats(c *gin.Context) {
	stats := h.statsCollector.GetGlobalStats(h.store.ActiveCount(), h.history.Len())
	c.JSON(http.StatusOK, stats)
}

// GetExpectationStats returns statistics for an expectation
func (h *Handler) GetExpectationStats(c *gin.Context) {
	stats := h.statsCollector.GetExpectationStats(c.Param("id"))
	if stats == nil {
		c.JSON(http.StatusOK, gin.H{"message": "No statistics available"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ResetStats resets all statistics
func (h *Handler) ResetStats(c *gin.Context) {
	h.statsCollector.Reset()
	c.JSON(http.StatusOK, gin.H{"message": "Statistics reset"})
}

// GetHistoryStats returns request log counters
func (h *Handler) GetHistoryStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.history.Stats())
}

// ImportOpenAPI generates expectations from the examples of an OpenAPI 3
// document. With dryRun=true the expectations are returned but not registered.
func (h *Handler) ImportOpenAPI(c *gin.Context) {
	content, err := io.ReadAll(c.Request.Body)
	if err != nil || len(content) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "OpenAPI document required"})
		return
	}

	opts := parser.ImportOptions{BasePath: c.Query("basePath")}
	if v := c.Query("priority"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "priority must be an integer"})
			return
		}
		opts.Priority = n
	}

	result, err := h.parser.Parse(content, opts)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid OpenAPI spec: " + err.Error()})
		return
	}

	if c.Query("dryRun") == "true" {
		c.JSON(http.StatusOK, result)
		return
	}

	ids, err := h.store.RegisterAll(result.Expectations)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"title":   result.Title,
		"version": result.Version,
		"ids":     ids,
		"skipped": result.Skipped,
	})
}

// HealthCheck returns health status
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// respondError maps domain errors onto HTTP status codes
func respondError(c *gin.Context, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		body := gin.H{"error": err.Error(), "field": ve.Field}
		var be *models.BatchError
		if errors.As(err, &be) {
			body["index"] = be.Index
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
