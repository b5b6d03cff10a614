package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/prasenjit/go-assertive/internal/models"
)

// Collector collects and aggregates dispatch statistics
type Collector struct {
	mu              sync.RWMutex
	startTime       time.Time
	expectations    map[string]*models.AtomicExpectationStat // expectationID -> stats
	totalRequests   int64
	unmatched       int64
	totalErrors     int64
	totalTimeNs     int64
	recentUnmatched []models.UnmatchedStat
	hourlyStats     map[string]*hourlyCounter // "YYYY-MM-DD-HH" -> counter
	maxUnmatched    int
	maxHourlySlots  int
}

type hourlyCounter struct {
	Hour      string
	Requests  int64
	Unmatched int64
}

// NewCollector creates a new statistics collector
func NewCollector() *Collector {
	return &Collector{
		startTime:       time.Now(),
		expectations:    make(map[string]*models.AtomicExpectationStat),
		recentUnmatched: make([]models.UnmatchedStat, 0),
		hourlyStats:     make(map[string]*hourlyCounter),
		maxUnmatched:    100,
		maxHourlySlots:  168, // 7 days
	}
}

// RecordMatch records a request answered by an expectation.
// isError marks responses that failed to render.
func (c *Collector) RecordMatch(expectationID, name string, duration time.Duration, isError bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expStats, ok := c.expectations[expectationID]
	if !ok {
		expStats = &models.AtomicExpectationStat{
			ExpectationID: expectationID,
			Name:          name,
		}
		expStats.MinTimeNs.Store(duration.Nanoseconds())
		c.expectations[expectationID] = expStats
	}

	expStats.TotalMatches.Add(1)
	expStats.TotalTimeNs.Add(duration.Nanoseconds())
	expStats.LastMatchTime.Store(time.Now())

	durationNs := duration.Nanoseconds()
	for {
		currentMin := expStats.MinTimeNs.Load()
		if durationNs >= currentMin || expStats.MinTimeNs.CompareAndSwap(currentMin, durationNs) {
			break
		}
	}
	for {
		currentMax := expStats.MaxTimeNs.Load()
		if durationNs <= currentMax || expStats.MaxTimeNs.CompareAndSwap(currentMax, durationNs) {
			break
		}
	}

	if isError {
		expStats.TotalErrors.Add(1)
		c.totalErrors++
	}

	c.totalRequests++
	c.totalTimeNs += durationNs
	c.hourly().Requests++
}

// RecordUnmatched records a request no expectation answered
func (c *Collector) RecordUnmatched(rec *models.RequestRecord, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests++
	c.unmatched++
	c.totalTimeNs += duration.Nanoseconds()

	hourly := c.hourly()
	hourly.Requests++
	hourly.Unmatched++

	c.recentUnmatched = append(c.recentUnmatched, models.UnmatchedStat{
		Timestamp: rec.Timestamp,
		Seq:       rec.Seq,
		Method:    rec.Method,
		Path:      rec.Path,
	})
	if len(c.recentUnmatched) > c.maxUnmatched {
		c.recentUnmatched = c.recentUnmatched[1:]
	}
}

// hourly returns the counter for the current hour. Caller holds the write lock.
func (c *Collector) hourly() *hourlyCounter {
	hourKey := time.Now().Format("2006-01-02-15")
	hourly, ok := c.hourlyStats[hourKey]
	if !ok {
		hourly = &hourlyCounter{Hour: hourKey}
		c.hourlyStats[hourKey] = hourly
		c.cleanupOldHourlyStats()
	}
	return hourly
}

// cleanupOldHourlyStats removes hourly stats older than maxHourlySlots
func (c *Collector) cleanupOldHourlyStats() {
	if len(c.hourlyStats) <= c.maxHourlySlots {
		return
	}

	keys := make([]string, 0, len(c.hourlyStats))
	for k := range c.hourlyStats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	toRemove := len(keys) - c.maxHourlySlots
	for i := 0; i < toRemove; i++ {
		delete(c.hourlyStats, keys[i])
	}
}

// GetGlobalStats returns global statistics
func (c *Collector) GetGlobalStats(activeExpectations, recordedRequests int) *models.GlobalStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	expStats := make([]models.ExpectationStat, 0, len(c.expectations))
	for _, exp := range c.expectations {
		expStats = append(expStats, exp.ToExpectationStat())
	}

	// Most matched first, id as a stable tie-break
	sort.Slice(expStats, func(i, j int) bool {
		if expStats[i].TotalMatches != expStats[j].TotalMatches {
			return expStats[i].TotalMatches > expStats[j].TotalMatches
		}
		return expStats[i].ExpectationID < expStats[j].ExpectationID
	})

	top := expStats
	if len(top) > 10 {
		top = top[:10]
	}

	var avgResponseTimeMs float64
	if c.totalRequests > 0 {
		avgResponseTimeMs = float64(c.totalTimeNs) / float64(c.totalRequests) / 1e6
	}

	uptime := time.Since(c.startTime).Seconds()
	var requestsPerSecond float64
	if uptime > 0 {
		requestsPerSecond = float64(c.totalRequests) / uptime
	}

	recent := make([]models.UnmatchedStat, len(c.recentUnmatched))
	copy(recent, c.recentUnmatched)

	return &models.GlobalStats{
		TotalRequests:      c.totalRequests,
		MatchedRequests:    c.totalRequests - c.unmatched,
		UnmatchedRequests:  c.unmatched,
		TotalErrors:        c.totalErrors,
		ActiveExpectations: activeExpectations,
		RecordedRequests:   recordedRequests,
		AvgResponseTimeMs:  avgResponseTimeMs,
		RequestsPerSecond:  requestsPerSecond,
		StartTime:          c.startTime,
		Uptime:             formatDuration(time.Since(c.startTime)),
		TopExpectations:    top,
		RecentUnmatched:    recent,
		RequestsByHour:     c.buildHourlyStats(),
	}
}

// GetExpectationStats returns statistics for a specific expectation
func (c *Collector) GetExpectationStats(expectationID string) *models.ExpectationStat {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if exp, ok := c.expectations[expectationID]; ok {
		stat := exp.ToExpectationStat()
		return &stat
	}

	return nil
}

// buildHourlyStats builds the hourly statistics for the last 24 hours
func (c *Collector) buildHourlyStats() []models.HourlyStat {
	now := time.Now()
	stats := make([]models.HourlyStat, 0, 24)

	for i := 23; i >= 0; i-- {
		hour := now.Add(-time.Duration(i) * time.Hour)
		hourKey := hour.Format("2006-01-02-15")

		stat := models.HourlyStat{
			Hour: hour.Format("15:00"),
		}

		if hourly, ok := c.hourlyStats[hourKey]; ok {
			stat.Requests = hourly.Requests
			stat.Unmatched = hourly.Unmatched
		}

		stats = append(stats, stat)
	}

	return stats
}

// Reset resets all statistics
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.expectations = make(map[string]*models.AtomicExpectationStat)
	c.totalRequests = 0
	c.unmatched = 0
	c.totalErrors = 0
	c.totalTimeNs = 0
	c.recentUnmatched = make([]models.UnmatchedStat, 0)
	c.hourlyStats = make(map[string]*hourlyCounter)
}

// formatDuration formats a duration in a human-readable format
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		return d.Round(time.Minute).String()
	case d >= time.Minute:
		return d.Round(time.Second).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}
