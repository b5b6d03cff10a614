package models

import (
	"testing"
	"time"
)

func TestAtomicExpectationStat_ToExpectationStat(t *testing.T) {
	aes := &AtomicExpectationStat{
		ExpectationID: "exp-1",
		Name:          "users",
	}

	aes.TotalMatches.Store(4)
	aes.TotalErrors.Store(1)
	aes.TotalTimeNs.Store(40000000) // 40ms
	aes.MinTimeNs.Store(5000000)    // 5ms
	aes.MaxTimeNs.Store(20000000)   // 20ms
	aes.LastMatchTime.Store(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))

	stat := aes.ToExpectationStat()

	if stat.ExpectationID != "exp-1" || stat.Name != "users" {
		t.Errorf("Unexpected identity %q/%q", stat.ExpectationID, stat.Name)
	}
	if stat.TotalMatches != 4 {
		t.Errorf("Expected 4 matches, got %d", stat.TotalMatches)
	}
	if stat.TotalErrors != 1 {
		t.Errorf("Expected 1 error, got %d", stat.TotalErrors)
	}
	if stat.AvgResponseTimeMs != 10 {
		t.Errorf("Expected avg 10ms, got %f", stat.AvgResponseTimeMs)
	}
	if stat.MinResponseTimeMs != 5 {
		t.Errorf("Expected min 5ms, got %f", stat.MinResponseTimeMs)
	}
	if stat.MaxResponseTimeMs != 20 {
		t.Errorf("Expected max 20ms, got %f", stat.MaxResponseTimeMs)
	}
	if stat.LastMatchTime != "2024-01-02T03:04:05Z" {
		t.Errorf("Unexpected last match time %q", stat.LastMatchTime)
	}
}

func TestAtomicExpectationStat_ZeroMatches(t *testing.T) {
	aes := &AtomicExpectationStat{ExpectationID: "exp-2"}

	stat := aes.ToExpectationStat()

	if stat.AvgResponseTimeMs != 0 {
		t.Errorf("Expected avg 0, got %f", stat.AvgResponseTimeMs)
	}
	if stat.LastMatchTime != "" {
		t.Errorf("Expected empty last match time, got %q", stat.LastMatchTime)
	}
}
