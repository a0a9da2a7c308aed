package checklist

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/danceforge/backoffice/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeExecutor answers from canned maps and records what it was asked
type fakeExecutor struct {
	mu       sync.Mutex
	saved    map[string]*models.TestResult
	single   map[string]*models.TestResult
	batch    map[string]*models.TestResult
	err      error
	savedErr error
	batches  [][]string
	calls    int

	// onCall runs inside every Run* call before it answers
	onCall func()
}

func (f *fakeExecutor) SavedResults(ctx context.Context) (map[string]*models.TestResult, error) {
	if f.savedErr != nil {
		return nil, f.savedErr
	}
	return f.saved, nil
}

func (f *fakeExecutor) RunTest(ctx context.Context, testID string) (*models.TestResult, error) {
	// answer is fixed before the hook runs so a nested run can change it
	f.mu.Lock()
	result, err := f.single[testID], f.err
	f.mu.Unlock()

	f.called()
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (f *fakeExecutor) RunTests(ctx context.Context, testIDs []string) (map[string]*models.TestResult, error) {
	f.mu.Lock()
	f.batches = append(f.batches, append([]string(nil), testIDs...))
	f.mu.Unlock()
	f.called()
	if f.err != nil {
		return nil, f.err
	}
	return f.batch, nil
}

func (f *fakeExecutor) RunAllTests(ctx context.Context) (map[string]*models.TestResult, error) {
	f.called()
	if f.err != nil {
		return nil, f.err
	}
	return f.batch, nil
}

func (f *fakeExecutor) called() {
	f.mu.Lock()
	f.calls++
	hook := f.onCall
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
}

type countingInvalidator struct {
	mu   sync.Mutex
	keys []string
}

func (c *countingInvalidator) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, key)
	return nil
}

type memRecorder struct {
	mu   sync.Mutex
	runs []*models.RunRecord
}

func (m *memRecorder) RecordRun(ctx context.Context, run *models.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

const testDefinition = `
categories:
  - id: database
    title: Database
    items:
      - id: database-1
        title: Database Connection
        test_ids: [dbConnectivity, database-connection]
      - id: database-2
        title: Migrations
        test_ids: [dbMigrations]
  - id: email
    title: Email
    items:
      - id: email-1
        title: Email Delivery
        test_ids: [emailDelivery]
      - id: email-2
        title: Unmapped
`

func newTestEngine(t *testing.T, exec Executor, opts ...Option) *Engine {
	t.Helper()
	def, err := ParseDefinition([]byte(testDefinition))
	require.NoError(t, err)
	e, err := New(def, exec, opts...)
	require.NoError(t, err)
	return e
}

func statusOf(e *Engine, itemID string) models.ItemStatus {
	return e.Snapshot().Item(itemID).Status
}

func TestEngine_InitialState(t *testing.T) {
	e := newTestEngine(t, &fakeExecutor{})

	snap := e.Snapshot()
	for _, cat := range snap.Categories {
		for _, item := range cat.Items {
			assert.Equal(t, models.ItemPending, item.Status, item.ID)
			assert.Nil(t, item.Result, item.ID)
		}
	}
	assert.Equal(t, 0, snap.Counters.ProgressPercentage)
	assert.Equal(t, 4, snap.Counters.Total)
	assert.Equal(t, 4, snap.Counters.PendingOrRunning)
	assert.False(t, snap.IsRunningAll)
}

func TestEngine_RunSingleOptimisticThenResolve(t *testing.T) {
	var seen []models.ItemStatus
	obs := ObserverFunc(func(tr Transition) {
		if tr.ItemID == "database-1" {
			seen = append(seen, tr.To)
		}
	})

	exec := &fakeExecutor{
		single: map[string]*models.TestResult{
			"dbConnectivity": {Success: true, Message: "connected"},
		},
	}
	inv := &countingInvalidator{}
	e := newTestEngine(t, exec, WithObserver(obs), WithInvalidator(inv))

	// the item must already be running when the executor is called
	exec.onCall = func() {
		assert.Equal(t, models.ItemRunning, statusOf(e, "database-1"))
	}

	result, err := e.RunSingle(context.Background(), "dbConnectivity")
	require.NoError(t, err)
	assert.True(t, result.Success)

	assert.Equal(t, []models.ItemStatus{models.ItemRunning, models.ItemPassed}, seen)
	item := e.Snapshot().Item("database-1")
	assert.Equal(t, models.ItemPassed, item.Status)
	assert.Equal(t, "connected", item.Result.Message)
	assert.Equal(t, []string{ResultsKey}, inv.keys)
}

func TestEngine_RunSingleAliasResolves(t *testing.T) {
	exec := &fakeExecutor{
		single: map[string]*models.TestResult{
			"database-connection": {Success: true, Message: "ok"},
		},
	}
	e := newTestEngine(t, exec)

	_, err := e.RunSingle(context.Background(), "database-connection")
	require.NoError(t, err)
	assert.Equal(t, models.ItemPassed, statusOf(e, "database-1"))
}

func TestEngine_RunSingleUnknownTest(t *testing.T) {
	var notes []Notification
	exec := &fakeExecutor{}
	e := newTestEngine(t, exec, WithNotifier(NotifierFunc(func(ctx context.Context, n Notification) {
		notes = append(notes, n)
	})))

	before := e.Snapshot()
	_, err := e.RunSingle(context.Background(), "nope")
	require.ErrorIs(t, err, ErrTestNotFound)

	assert.Equal(t, before, e.Snapshot())
	assert.Equal(t, 0, exec.calls)
	require.Len(t, notes, 1)
	assert.Equal(t, LevelError, notes[0].Level)
}

func TestEngine_RunSingleFailureRevertsToPending(t *testing.T) {
	exec := &fakeExecutor{
		single: map[string]*models.TestResult{
			"dbConnectivity": {Success: true, Message: "connected"},
		},
	}
	inv := &countingInvalidator{}
	rec := &memRecorder{}
	e := newTestEngine(t, exec, WithInvalidator(inv), WithRecorder(rec))

	_, err := e.RunSingle(context.Background(), "dbConnectivity")
	require.NoError(t, err)
	require.Equal(t, models.ItemPassed, statusOf(e, "database-1"))

	exec.err = errors.New("connection reset")
	_, err = e.RunSingle(context.Background(), "dbConnectivity")
	require.ErrorIs(t, err, ErrExecutionFailure)

	assert.Equal(t, models.ItemPending, statusOf(e, "database-1"))
	// invalidation is attempted on failure too
	assert.Len(t, inv.keys, 2)
	require.Len(t, rec.runs, 2)
	assert.False(t, rec.runs[1].Succeeded())
	assert.Equal(t, models.RunScopeSingle, rec.runs[1].Scope)
}

func TestEngine_EndToEndFailedResult(t *testing.T) {
	exec := &fakeExecutor{
		single: map[string]*models.TestResult{
			"dbConnectivity": {Success: false, Message: "timeout"},
		},
	}
	e := newTestEngine(t, exec)

	_, err := e.RunSingle(context.Background(), "dbConnectivity")
	require.NoError(t, err)

	item := e.Snapshot().Item("database-1")
	assert.Equal(t, models.ItemFailed, item.Status)
	assert.Equal(t, "timeout", item.Result.Message)
}

func TestEngine_RunCategory(t *testing.T) {
	exec := &fakeExecutor{
		batch: map[string]*models.TestResult{
			"dbConnectivity": {Success: true, Message: "ok"},
			"dbMigrations":   {Success: false, Message: "2 pending"},
			// outside the category, must be ignored
			"emailDelivery": {Success: true, Message: "sent"},
		},
	}
	e := newTestEngine(t, exec)

	_, err := e.RunCategory(context.Background(), "database")
	require.NoError(t, err)

	require.Len(t, exec.batches, 1)
	assert.Equal(t, []string{"dbConnectivity", "dbMigrations"}, exec.batches[0])
	assert.Equal(t, models.ItemPassed, statusOf(e, "database-1"))
	assert.Equal(t, models.ItemFailed, statusOf(e, "database-2"))
	assert.Equal(t, models.ItemPending, statusOf(e, "email-1"))
}

func TestEngine_RunCategoryMissingResultsRevert(t *testing.T) {
	exec := &fakeExecutor{
		batch: map[string]*models.TestResult{
			"dbConnectivity": {Success: true, Message: "ok"},
		},
	}
	e := newTestEngine(t, exec)

	_, err := e.RunCategory(context.Background(), "database")
	require.NoError(t, err)
	assert.Equal(t, models.ItemPending, statusOf(e, "database-2"))
}

func TestEngine_RunCategoryFailure(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("502")}
	e := newTestEngine(t, exec)

	_, err := e.RunCategory(context.Background(), "database")
	require.ErrorIs(t, err, ErrExecutionFailure)
	assert.Equal(t, models.ItemPending, statusOf(e, "database-1"))
	assert.Equal(t, models.ItemPending, statusOf(e, "database-2"))
}

func TestEngine_RunCategoryUnknown(t *testing.T) {
	e := newTestEngine(t, &fakeExecutor{})
	_, err := e.RunCategory(context.Background(), "payments")
	require.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestEngine_RunCategorySkipsUnmappedItems(t *testing.T) {
	exec := &fakeExecutor{
		batch: map[string]*models.TestResult{"emailDelivery": {Success: true}},
	}
	e := newTestEngine(t, exec)

	_, err := e.RunCategory(context.Background(), "email")
	require.NoError(t, err)
	assert.Equal(t, []string{"emailDelivery"}, exec.batches[0])
	assert.Equal(t, models.ItemPending, statusOf(e, "email-2"))
}

func TestEngine_RunAll(t *testing.T) {
	exec := &fakeExecutor{
		batch: map[string]*models.TestResult{
			"dbConnectivity": {Success: true},
			"dbMigrations":   {Success: true, ActionItems: []string{"squash old migrations"}},
			"emailDelivery":  {Success: false, Message: "smtp auth"},
			"ghost":          {Success: true},
		},
	}
	e := newTestEngine(t, exec)
	exec.onCall = func() {
		assert.True(t, e.IsRunningAll())
		for _, id := range []string{"database-1", "database-2", "email-1", "email-2"} {
			assert.Equal(t, models.ItemRunning, statusOf(e, id), id)
		}
	}

	_, err := e.RunAll(context.Background())
	require.NoError(t, err)
	assert.False(t, e.IsRunningAll())

	c := e.Counters()
	assert.Equal(t, models.ChecklistCounters{
		Total:              4,
		Passed:             2,
		Failed:             1,
		PendingOrRunning:   1,
		ProgressPercentage: 50,
	}, c)
	// follow-up actions do not turn a pass into anything else
	assert.Equal(t, models.ItemPassed, statusOf(e, "database-2"))
}

func TestEngine_RunSingleSuccessWithActionItemsPasses(t *testing.T) {
	exec := &fakeExecutor{
		single: map[string]*models.TestResult{
			"dbConnectivity": {Success: true, Message: "ok", ActionItems: []string{"rotate creds"}},
		},
	}
	e := newTestEngine(t, exec)

	result, err := e.RunSingle(context.Background(), "dbConnectivity")
	require.NoError(t, err)
	assert.Equal(t, []string{"rotate creds"}, result.ActionItems)

	item := e.Snapshot().Item("database-1")
	assert.Equal(t, models.ItemPassed, item.Status)
	assert.Equal(t, []string{"rotate creds"}, item.Result.ActionItems)
	assert.Equal(t, 0, e.Counters().Warning)
}

func TestEngine_RunAllFailureRevertsEverything(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("runner down")}
	e := newTestEngine(t, exec)

	_, err := e.RunAll(context.Background())
	require.ErrorIs(t, err, ErrExecutionFailure)
	assert.False(t, e.IsRunningAll())
	assert.Equal(t, 4, e.Counters().PendingOrRunning)
	for _, cat := range e.Snapshot().Categories {
		for _, item := range cat.Items {
			assert.Equal(t, models.ItemPending, item.Status)
		}
	}
}

func TestEngine_RunAllRejectsOverlap(t *testing.T) {
	exec := &fakeExecutor{batch: map[string]*models.TestResult{}}
	e := newTestEngine(t, exec)

	var nested error
	exec.onCall = func() {
		_, nested = e.RunAll(context.Background())
	}
	_, err := e.RunAll(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, nested, ErrRunAllInProgress)
}

func TestEngine_LoadSavedResultsIsIdempotent(t *testing.T) {
	var transitions int
	exec := &fakeExecutor{
		saved: map[string]*models.TestResult{
			"dbConnectivity": {Success: true, Message: "ok"},
			"emailDelivery":  {Success: false, Message: "bounce"},
			"unknown":        {Success: true},
		},
	}
	e := newTestEngine(t, exec, WithObserver(ObserverFunc(func(Transition) { transitions++ })))

	changed, err := e.LoadSavedResults(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, changed)
	first := e.Snapshot()
	seen := transitions

	changed, err = e.LoadSavedResults(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
	assert.Equal(t, first, e.Snapshot())
	assert.Equal(t, seen, transitions)

	assert.Equal(t, models.ItemPassed, first.Item("database-1").Status)
	assert.Equal(t, models.ItemFailed, first.Item("email-1").Status)
}

func TestEngine_LoadSavedResultsError(t *testing.T) {
	e := newTestEngine(t, &fakeExecutor{savedErr: errors.New("boom")})
	_, err := e.LoadSavedResults(context.Background())
	require.ErrorIs(t, err, ErrSavedResultsFailed)
}

func TestEngine_StaleResponseIsDropped(t *testing.T) {
	exec := &fakeExecutor{
		single: map[string]*models.TestResult{
			"dbConnectivity": {Success: false, Message: "old"},
		},
	}
	e := newTestEngine(t, exec)

	// a second run starts while the first one is in flight; the first
	// response must not overwrite the newer run's state
	nested := false
	exec.onCall = func() {
		if nested {
			return
		}
		nested = true
		exec.single = map[string]*models.TestResult{
			"dbConnectivity": {Success: true, Message: "new"},
		}
		_, err := e.RunSingle(context.Background(), "dbConnectivity")
		require.NoError(t, err)
	}

	_, err := e.RunSingle(context.Background(), "dbConnectivity")
	require.NoError(t, err)

	item := e.Snapshot().Item("database-1")
	assert.Equal(t, models.ItemPassed, item.Status)
	assert.Equal(t, "new", item.Result.Message)
}

func TestEngine_ConcurrentRuns(t *testing.T) {
	exec := &fakeExecutor{
		single: map[string]*models.TestResult{
			"dbConnectivity": {Success: true},
			"dbMigrations":   {Success: true},
			"emailDelivery":  {Success: true},
		},
	}
	e := newTestEngine(t, exec)

	var wg sync.WaitGroup
	for _, id := range []string{"dbConnectivity", "dbMigrations", "emailDelivery"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := e.RunSingle(context.Background(), id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 3, e.Counters().Passed)
}

func TestEngine_CountersInvariant(t *testing.T) {
	exec := &fakeExecutor{
		batch: map[string]*models.TestResult{
			"dbConnectivity": {Success: true},
			"emailDelivery":  {Success: false},
		},
	}
	e := newTestEngine(t, exec)
	_, err := e.RunAll(context.Background())
	require.NoError(t, err)

	c := e.Counters()
	assert.Equal(t, c.Total, c.Passed+c.Failed+c.Warning+c.PendingOrRunning)
	assert.Equal(t, 25, c.ProgressPercentage)
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 0, progress(0, 0))
	assert.Equal(t, 33, progress(1, 3))
	assert.Equal(t, 67, progress(2, 3))
	assert.Equal(t, 100, progress(4, 4))
}

func TestNewRejectsNilExecutor(t *testing.T) {
	def, err := DefaultDefinition()
	require.NoError(t, err)
	_, err = New(def, nil)
	assert.Error(t, err)
}
