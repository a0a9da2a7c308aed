package checklist

import (
	"context"

	"github.com/danceforge/backoffice/internal/models"
)

// ResultsKey is the cache key of the saved-results query
const ResultsKey = "readiness:results"

// Executor runs readiness tests on the remote test runner
type Executor interface {
	// SavedResults returns the results of the last persisted run, keyed by test id
	SavedResults(ctx context.Context) (map[string]*models.TestResult, error)

	// RunTest executes a single test
	RunTest(ctx context.Context, testID string) (*models.TestResult, error)

	// RunTests executes a batch of tests
	RunTests(ctx context.Context, testIDs []string) (map[string]*models.TestResult, error)

	// RunAllTests executes every test the runner knows about
	RunAllTests(ctx context.Context) (map[string]*models.TestResult, error)
}

// Invalidator marks a cached query stale so its next read refetches
type Invalidator interface {
	Invalidate(ctx context.Context, key string) error
}

// NotificationLevel is the severity of a user-facing notification
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
)

// Notification is a user-facing toast
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Target  string            `json:"target,omitempty"`
}

// Notifier delivers user-facing notifications
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Transition is one observed item status change
type Transition struct {
	ItemID     string             `json:"itemId"`
	CategoryID string             `json:"categoryId"`
	From       models.ItemStatus  `json:"from"`
	To         models.ItemStatus  `json:"to"`
	Result     *models.TestResult `json:"result,omitempty"`
}

// Observer receives item status transitions in the order they are committed
type Observer interface {
	OnTransition(t Transition)
}

// Recorder persists a summary of each checklist operation
type Recorder interface {
	RecordRun(ctx context.Context, run *models.RunRecord) error
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context, string) error { return nil }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notification) {}

type nopObserver struct{}

func (nopObserver) OnTransition(Transition) {}

type nopRecorder struct{}

func (nopRecorder) RecordRun(context.Context, *models.RunRecord) error { return nil }

// ObserverFunc adapts a function to Observer
type ObserverFunc func(t Transition)

// OnTransition calls f(t)
func (f ObserverFunc) OnTransition(t Transition) { f(t) }

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, n Notification)

// Notify calls f(ctx, n)
func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }
