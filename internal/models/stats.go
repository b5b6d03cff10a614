package models

import (
	"sync/atomic"
	"time"
)

// GlobalStats represents global dispatch statistics
type GlobalStats struct {
	TotalRequests      int64             `json:"totalRequests"`
	MatchedRequests    int64             `json:"matchedRequests"`
	UnmatchedRequests  int64             `json:"unmatchedRequests"`
	TotalErrors        int64             `json:"totalErrors"`
	ActiveExpectations int               `json:"activeExpectations"`
	RecordedRequests   int               `json:"recordedRequests"`
	AvgResponseTimeMs  float64           `json:"avgResponseTimeMs"`
	RequestsPerSecond  float64           `json:"requestsPerSecond"`
	StartTime          time.Time         `json:"startTime"`
	Uptime             string            `json:"uptime"`
	TopExpectations    []ExpectationStat `json:"topExpectations"`
	RecentUnmatched    []UnmatchedStat   `json:"recentUnmatched"`
	RequestsByHour     []HourlyStat      `json:"requestsByHour"`
}

// ExpectationStat represents statistics for a single expectation
type ExpectationStat struct {
	ExpectationID     string  `json:"expectationId"`
	Name              string  `json:"name,omitempty"`
	TotalMatches      int64   `json:"totalMatches"`
	TotalErrors       int64   `json:"totalErrors"`
	AvgResponseTimeMs float64 `json:"avgResponseTimeMs"`
	MinResponseTimeMs float64 `json:"minResponseTimeMs"`
	MaxResponseTimeMs float64 `json:"maxResponseTimeMs"`
	LastMatchTime     string  `json:"lastMatchTime,omitempty"`
}

// UnmatchedStat represents a request that no expectation matched
type UnmatchedStat struct {
	Timestamp time.Time `json:"timestamp"`
	Seq       int64     `json:"seq"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
}

// HourlyStat represents hourly request statistics
type HourlyStat struct {
	Hour      string `json:"hour"`
	Requests  int64  `json:"requests"`
	Unmatched int64  `json:"unmatched"`
}

// AtomicExpectationStat is a thread-safe version of expectation statistics
type AtomicExpectationStat struct {
	ExpectationID string
	Name          string
	TotalMatches  atomic.Int64
	TotalErrors   atomic.Int64
	TotalTimeNs   atomic.Int64
	MinTimeNs     atomic.Int64
	MaxTimeNs     atomic.Int64
	LastMatchTime atomic.Value // stores time.Time
}

// ToExpectationStat converts to a regular ExpectationStat
func (a *AtomicExpectationStat) ToExpectationStat() ExpectationStat {
	total := a.TotalMatches.Load()
	totalTimeNs := a.TotalTimeNs.Load()
	var avgMs float64
	if total > 0 {
		avgMs = float64(totalTimeNs) / float64(total) / 1e6
	}

	var last string
	if t, ok := a.LastMatchTime.Load().(time.Time); ok && !t.IsZero() {
		last = t.Format(time.RFC3339)
	}

	return ExpectationStat{
		ExpectationID:     a.ExpectationID,
		Name:              a.Name,
		TotalMatches:      total,
		TotalErrors:       a.TotalErrors.Load(),
		AvgResponseTimeMs: avgMs,
		MinResponseTimeMs: float64(a.MinTimeNs.Load()) / 1e6,
		MaxResponseTimeMs: float64(a.MaxTimeNs.Load()) / 1e6,
		LastMatchTime:     last,
	}
}
