package storage

import (
	"github.com/prasenjit/go-assertive/internal/condition"
	"github.com/prasenjit/go-assertive/internal/models"
)

// Store defines the operations over registered expectations
type Store interface {
	// Expectation operations
	Register(input *models.ExpectationInput) (string, error)
	RegisterAll(inputs []*models.ExpectationInput) ([]string, error)
	Remove(id string)
	Clear()
	Get(id string) (models.ExpectationView, error)
	Snapshot() []models.ExpectationView

	// Matching
	FindBest(rec *models.RequestRecord) (*Expectation, condition.MatchResult, bool)
	Candidates() []*Expectation

	// Utility
	ActiveCount() int
}
