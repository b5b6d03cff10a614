package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prasenjit/go-assertive/internal/condition"
	"github.com/prasenjit/go-assertive/internal/models"
)

// MemoryStore implements Store with an in-memory, lock-protected expectation set
type MemoryStore struct {
	mu           sync.RWMutex
	expectations []*Expectation // insertion order
	byID         map[string]*Expectation
	nextSeq      int64
	evaluator    *condition.Evaluator
}

// NewMemoryStore creates a new in-memory expectation store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:      make(map[string]*Expectation),
		evaluator: condition.NewEvaluator(),
	}
}

// Register validates and inserts an expectation, returning its id.
// Registering an id that already exists replaces the previous expectation.
func (m *MemoryStore) Register(input *models.ExpectationInput) (string, error) {
	exp, err := prepare(input)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.insertLocked(exp)
	return exp.ID, nil
}

// RegisterAll registers a batch atomically: every input is validated before
// any is inserted, so a failing batch leaves the store untouched. The error
// is a *models.BatchError naming the first invalid entry.
func (m *MemoryStore) RegisterAll(inputs []*models.ExpectationInput) ([]string, error) {
	built := make([]*Expectation, 0, len(inputs))
	for i, input := range inputs {
		exp, err := prepare(input)
		if err != nil {
			return nil, &models.BatchError{Index: i, Err: err}
		}
		built = append(built, exp)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(built))
	for _, exp := range built {
		m.insertLocked(exp)
		ids = append(ids, exp.ID)
	}
	return ids, nil
}

// prepare builds an expectation and assigns its id
func prepare(input *models.ExpectationInput) (*Expectation, error) {
	if input == nil {
		return nil, models.NewValidationError("expectation", "must not be empty")
	}

	exp, err := buildExpectation(input)
	if err != nil {
		return nil, err
	}

	exp.ID = input.ID
	if exp.ID == "" {
		exp.ID = uuid.New().String()
	}
	exp.CreatedAt = time.Now()
	return exp, nil
}

func (m *MemoryStore) insertLocked(exp *Expectation) {
	if _, exists := m.byID[exp.ID]; exists {
		m.removeLocked(exp.ID)
	}

	m.nextSeq++
	exp.Sequence = m.nextSeq
	m.expectations = append(m.expectations, exp)
	m.byID[exp.ID] = exp
}

// Remove deletes an expectation. Unknown ids are ignored.
func (m *MemoryStore) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeLocked(id)
}

func (m *MemoryStore) removeLocked(id string) {
	if _, exists := m.byID[id]; !exists {
		return
	}
	delete(m.byID, id)

	kept := make([]*Expectation, 0, len(m.expectations))
	for _, e := range m.expectations {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	m.expectations = kept
}

// Clear removes all expectations
func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expectations = nil
	m.byID = make(map[string]*Expectation)
}

// Get returns a view of a single expectation
func (m *MemoryStore) Get(id string) (models.ExpectationView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exp, exists := m.byID[id]
	if !exists {
		return models.ExpectationView{}, fmt.Errorf("expectation %s: %w", id, models.ErrNotFound)
	}

	return exp.View(), nil
}

// Snapshot returns copies of all expectations ordered by priority (highest
// first), then insertion order.
func (m *MemoryStore) Snapshot() []models.ExpectationView {
	m.mu.RLock()
	views := make([]models.ExpectationView, 0, len(m.expectations))
	for _, e := range m.expectations {
		views = append(views, e.View())
	}
	m.mu.RUnlock()

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Priority > views[j].Priority
	})

	return views
}

// Candidates returns the live expectation set in insertion order.
// The returned slice is a copy; the expectations themselves are shared.
func (m *MemoryStore) Candidates() []*Expectation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Expectation, len(m.expectations))
	copy(out, m.expectations)
	return out
}

// FindBest returns the active expectation with the highest
// (priority, specificity, -sequence) among those matching rec.
func (m *MemoryStore) FindBest(rec *models.RequestRecord) (*Expectation, condition.MatchResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		best       *Expectation
		bestResult condition.MatchResult
	)
	for _, e := range m.expectations {
		if !e.Active() {
			continue
		}
		result := m.evaluator.Match(rec, e.Predicates)
		if !result.Matched {
			continue
		}
		if best == nil || outranks(e, result.Specificity, best, bestResult.Specificity) {
			best = e
			bestResult = result
		}
	}

	return best, bestResult, best != nil
}

// ActiveCount returns the number of expectations that can still match
func (m *MemoryStore) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, e := range m.expectations {
		if e.Active() {
			n++
		}
	}
	return n
}
