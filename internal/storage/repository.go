package storage

import (
	"context"
	"errors"
	"time"

	"github.com/danceforge/backoffice/internal/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// Repository defines the interface for back-office persistence
type Repository interface {
	// Readiness runs
	RecordRun(ctx context.Context, run *models.RunRecord) error
	ListRuns(ctx context.Context, filters models.RunFilters) ([]*models.RunRecord, error)
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// API Clients
	GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
