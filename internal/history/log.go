package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prasenjit/go-assertive/internal/models"
)

// Log is the append-only record of every request the server received
type Log struct {
	mu          sync.RWMutex
	records     []*models.RequestRecord
	maxRecords  int // 0 means unbounded
	lastSeq     int64
	subscribers map[string]chan *models.RequestRecord
}

// Filter selects records for listing. Zero fields are ignored.
type Filter struct {
	Method   string
	Path     string
	AfterSeq int64
	Since    time.Time
	Limit    int // newest records first when set
}

// NewLog creates a new history log. maxRecords <= 0 keeps every record.
func NewLog(maxRecords int) *Log {
	if maxRecords < 0 {
		maxRecords = 0
	}

	return &Log{
		records:     make([]*models.RequestRecord, 0),
		maxRecords:  maxRecords,
		subscribers: make(map[string]chan *models.RequestRecord),
	}
}

// Append stores a copy of rec with the next sequence number and returns it.
// Sequence numbers are strictly increasing in append order and survive Clear.
func (l *Log) Append(rec models.RequestRecord) *models.RequestRecord {
	l.mu.Lock()

	l.lastSeq++
	rec.Seq = l.lastSeq
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	stored := &rec

	l.records = append(l.records, stored)

	// Trim the oldest by reslicing. append reallocates once the backing
	// array is full, copying only the retained window.
	if l.maxRecords > 0 && len(l.records) > l.maxRecords {
		drop := len(l.records) - l.maxRecords
		clear(l.records[:drop])
		l.records = l.records[drop:]
	}

	l.mu.Unlock()

	l.notify(stored)
	return stored
}

// notify fans out to subscribers without blocking. The read lock keeps
// Unsubscribe from closing a channel mid-send.
func (l *Log) notify(rec *models.RequestRecord) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, ch := range l.subscribers {
		select {
		case ch <- rec:
		default:
			// Channel full, skip
		}
	}
}

// All returns every retained record in sequence order
func (l *Log) All() []*models.RequestRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*models.RequestRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Query returns the records for which match returns true, in sequence order.
// match runs outside the lock against a consistent snapshot.
func (l *Log) Query(match func(*models.RequestRecord) bool) []*models.RequestRecord {
	snapshot := l.All()
	if match == nil {
		return snapshot
	}

	result := make([]*models.RequestRecord, 0)
	for _, rec := range snapshot {
		if match(rec) {
			result = append(result, rec)
		}
	}
	return result
}

// List returns records selected by filter. With a limit, the newest records
// are kept, still returned in sequence order.
func (l *Log) List(filter *Filter) []*models.RequestRecord {
	if filter == nil {
		return l.All()
	}

	result := l.Query(func(rec *models.RequestRecord) bool {
		if filter.Method != "" && rec.Method != filter.Method {
			return false
		}
		if filter.Path != "" && rec.Path != filter.Path {
			return false
		}
		if filter.AfterSeq > 0 && rec.Seq <= filter.AfterSeq {
			return false
		}
		if !filter.Since.IsZero() && rec.Timestamp.Before(filter.Since) {
			return false
		}
		return true
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[len(result)-filter.Limit:]
	}
	return result
}

// Get returns a single record by sequence number
func (l *Log) Get(seq int64) (*models.RequestRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, rec := range l.records {
		if rec.Seq == seq {
			return rec, nil
		}
	}

	return nil, fmt.Errorf("request %d: %w", seq, models.ErrNotFound)
}

// Clear removes all records. The sequence counter is not reset.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = make([]*models.RequestRecord, 0)
}

// Len returns the number of retained records
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.records)
}

// Subscribe creates a subscription for live records
func (l *Log) Subscribe() (string, chan *models.RequestRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan *models.RequestRecord, 100)
	l.subscribers[id] = ch

	return id, ch
}

// Unsubscribe removes a subscription
func (l *Log) Unsubscribe(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ch, ok := l.subscribers[id]; ok {
		close(ch)
		delete(l.subscribers, id)
	}
}

// Stats returns history statistics
func (l *Log) Stats() map[string]interface{} {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return map[string]interface{}{
		"recordedRequests":  len(l.records),
		"maxRecords":        l.maxRecords,
		"lastSequence":      l.lastSeq,
		"activeSubscribers": len(l.subscribers),
	}
}
