package checklist

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danceforge/backoffice/internal/models"
)

// Common errors
var (
	ErrTestNotFound       = errors.New("test not found")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrExecutionFailure   = errors.New("test execution failed")
	ErrRunAllInProgress   = errors.New("full readiness run already in progress")
	ErrSavedResultsFailed = errors.New("failed to load saved results")
)

// itemState tracks one item and the generation of its latest run.
// A response only lands on an item whose generation has not moved since
// the run that produced it started.
type itemState struct {
	item       *models.ChecklistItem
	categoryID string
	generation uint64
}

// Engine owns the readiness checklist tree and drives test runs against an
// Executor. All mutation goes through RunSingle, RunCategory, RunAll and
// LoadSavedResults. Observers are called with the engine lock held and must
// not call back into the engine.
type Engine struct {
	mu           sync.Mutex
	categories   []*models.ChecklistCategory
	items        map[string]*itemState
	isRunningAll bool

	ids         *TestIDMap
	executor    Executor
	invalidator Invalidator
	notifier    Notifier
	observer    Observer
	recorder    Recorder
	logger      *zap.Logger
	now         func() time.Time
}

// Option configures the engine
type Option func(*Engine)

// WithInvalidator sets the cache invalidator called after every run
func WithInvalidator(inv Invalidator) Option {
	return func(e *Engine) {
		e.invalidator = inv
	}
}

// WithNotifier sets the user-facing notification sink
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithObserver sets the status transition observer
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithRecorder sets the run history recorder
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the time source used for run records
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an engine with a fresh tree built from def
func New(def *Definition, executor Executor, opts ...Option) (*Engine, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: definition is nil", ErrInvalidDefinition)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if executor == nil {
		return nil, errors.New("executor is required")
	}

	e := &Engine{
		categories:  def.Tree(),
		items:       make(map[string]*itemState),
		ids:         def.TestIDMap(),
		executor:    executor,
		invalidator: nopInvalidator{},
		notifier:    nopNotifier{},
		observer:    nopObserver{},
		recorder:    nopRecorder{},
		logger:      zap.NewNop(),
		now:         time.Now,
	}

	for _, cat := range e.categories {
		for _, item := range cat.Items {
			e.items[item.ID] = &itemState{item: item, categoryID: cat.ID}
		}
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// TestIDs returns the test id mapping used by the engine
func (e *Engine) TestIDs() *TestIDMap {
	return e.ids
}

// RunSingle runs one test. The item is marked running before the executor
// is called; on execution failure it falls back to pending.
func (e *Engine) RunSingle(ctx context.Context, testID string) (*models.TestResult, error) {
	itemID, ok := e.ids.Resolve(testID)
	if !ok {
		e.notifier.Notify(ctx, Notification{
			Level:   LevelError,
			Title:   "Test not found",
			Message: fmt.Sprintf("No checklist item is mapped to test %q", testID),
			Target:  testID,
		})
		return nil, fmt.Errorf("%w: %s", ErrTestNotFound, testID)
	}

	run := e.newRun(models.RunScopeSingle, testID)
	gens := e.begin([]string{itemID})

	e.logger.Info("running readiness test", zap.String("test_id", testID), zap.String("item_id", itemID))

	result, err := e.executor.RunTest(ctx, testID)
	e.invalidate(ctx)

	if err != nil {
		e.settle(gens, nil)
		e.fail(ctx, run, testID, err)
		return nil, fmt.Errorf("%w: test %s: %w", ErrExecutionFailure, testID, err)
	}
	if result == nil {
		result = &models.TestResult{Message: "empty result"}
	}

	applied := e.settle(gens, map[string]*models.TestResult{itemID: result})
	e.finish(ctx, run, applied)

	if result.Success {
		e.notifier.Notify(ctx, Notification{
			Level:   LevelSuccess,
			Title:   "Test passed",
			Message: result.Message,
			Target:  testID,
		})
	} else {
		e.notifier.Notify(ctx, Notification{
			Level:   LevelError,
			Title:   "Test failed",
			Message: result.Message,
			Target:  testID,
		})
	}

	return result.Clone(), nil
}

// RunCategory runs every mapped item of a category in one batch.
// Results for test ids outside the category are ignored.
func (e *Engine) RunCategory(ctx context.Context, categoryID string) (map[string]*models.TestResult, error) {
	cat := e.category(categoryID)
	if cat == nil {
		return nil, fmt.Errorf("%w: %s", ErrCategoryNotFound, categoryID)
	}

	var itemIDs, testIDs []string
	for _, item := range cat.Items {
		testID, ok := e.ids.Canonical(item.ID)
		if !ok {
			e.logger.Debug("skipping unmapped checklist item", zap.String("item_id", item.ID))
			continue
		}
		itemIDs = append(itemIDs, item.ID)
		testIDs = append(testIDs, testID)
	}

	if len(testIDs) == 0 {
		return map[string]*models.TestResult{}, nil
	}

	run := e.newRun(models.RunScopeCategory, categoryID)
	gens := e.begin(itemIDs)

	e.logger.Info("running readiness category",
		zap.String("category_id", categoryID),
		zap.Strings("test_ids", testIDs),
	)

	results, err := e.executor.RunTests(ctx, testIDs)
	e.invalidate(ctx)

	if err != nil {
		e.settle(gens, nil)
		e.fail(ctx, run, categoryID, err)
		return nil, fmt.Errorf("%w: category %s: %w", ErrExecutionFailure, categoryID, err)
	}

	resolved := e.resolve(results, categoryID)
	applied := e.settle(gens, resolved)
	e.finish(ctx, run, applied)

	passed, failed := countOutcomes(resolved)
	e.notifier.Notify(ctx, Notification{
		Level:   LevelInfo,
		Title:   "Category tests completed",
		Message: fmt.Sprintf("%s: %d passed, %d failed", cat.Title, passed, failed),
		Target:  categoryID,
	})

	return cloneResults(results), nil
}

// RunAll runs the whole checklist. Only one full run may be in flight.
func (e *Engine) RunAll(ctx context.Context) (map[string]*models.TestResult, error) {
	e.mu.Lock()
	if e.isRunningAll {
		e.mu.Unlock()
		return nil, ErrRunAllInProgress
	}
	e.isRunningAll = true
	itemIDs := make([]string, 0, len(e.items))
	for _, cat := range e.categories {
		for _, item := range cat.Items {
			itemIDs = append(itemIDs, item.ID)
		}
	}
	e.mu.Unlock()

	run := e.newRun(models.RunScopeAll, "")
	gens := e.begin(itemIDs)

	e.logger.Info("running full readiness sweep", zap.Int("items", len(itemIDs)))

	results, err := e.executor.RunAllTests(ctx)
	e.invalidate(ctx)

	if err != nil {
		e.settle(gens, nil)
		e.setRunningAll(false)
		e.fail(ctx, run, "all", err)
		return nil, fmt.Errorf("%w: full run: %w", ErrExecutionFailure, err)
	}

	resolved := e.resolve(results, "")
	applied := e.settle(gens, resolved)
	e.setRunningAll(false)
	e.finish(ctx, run, applied)

	passed, failed := countOutcomes(resolved)
	e.notifier.Notify(ctx, Notification{
		Level:   LevelInfo,
		Title:   "All tests completed",
		Message: fmt.Sprintf("%d passed, %d failed", passed, failed),
	})

	return cloneResults(results), nil
}

// LoadSavedResults hydrates the tree from the last persisted run. An item is
// only touched when the stored result resolves to a different status than it
// has now, so repeated loads of the same payload are no-ops. Running items
// are left alone. It returns the number of items changed.
func (e *Engine) LoadSavedResults(ctx context.Context) (int, error) {
	results, err := e.executor.SavedResults(ctx)
	if err != nil {
		e.logger.Warn("failed to load saved readiness results", zap.Error(err))
		return 0, fmt.Errorf("%w: %w", ErrSavedResultsFailed, err)
	}

	started := e.now()
	changed := make(map[string]*models.TestResult)

	e.mu.Lock()
	for testID, result := range results {
		if result == nil {
			continue
		}
		itemID, ok := e.ids.Resolve(testID)
		if !ok {
			continue
		}
		st := e.items[itemID]
		if st == nil || st.item.Status == models.ItemRunning {
			continue
		}
		next := result.Status()
		if st.item.Status == next {
			continue
		}
		e.transition(st, next, result.Clone())
		changed[itemID] = result
	}
	e.mu.Unlock()

	if len(changed) > 0 {
		run := &models.RunRecord{
			ID:        uuid.NewString(),
			Scope:     models.RunScopeSync,
			StartedAt: started,
		}
		e.finish(ctx, run, changed)
		e.logger.Debug("saved readiness results applied", zap.Int("changed", len(changed)))
	}

	return len(changed), nil
}

// Counters computes the aggregate counters over the whole tree
func (e *Engine) Counters() models.ChecklistCounters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.countersLocked()
}

// IsRunningAll reports whether a full sweep is in flight
func (e *Engine) IsRunningAll() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isRunningAll
}

// Snapshot returns a deep copy of the tree and its counters
func (e *Engine) Snapshot() *models.ChecklistSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	cats := make([]*models.ChecklistCategory, 0, len(e.categories))
	for _, cat := range e.categories {
		c := &models.ChecklistCategory{
			ID:    cat.ID,
			Title: cat.Title,
			Items: make([]*models.ChecklistItem, 0, len(cat.Items)),
		}
		for _, item := range cat.Items {
			cp := *item
			cp.Result = item.Result.Clone()
			c.Items = append(c.Items, &cp)
		}
		cats = append(cats, c)
	}

	return &models.ChecklistSnapshot{
		Categories:   cats,
		Counters:     e.countersLocked(),
		IsRunningAll: e.isRunningAll,
	}
}

// CategoryIDs returns the category ids in display order
func (e *Engine) CategoryIDs() []string {
	ids := make([]string, 0, len(e.categories))
	for _, cat := range e.categories {
		ids = append(ids, cat.ID)
	}
	return ids
}

func (e *Engine) countersLocked() models.ChecklistCounters {
	var c models.ChecklistCounters
	for _, cat := range e.categories {
		for _, item := range cat.Items {
			c.Total++
			switch item.Status {
			case models.ItemPassed:
				c.Passed++
			case models.ItemFailed:
				c.Failed++
			case models.ItemWarning:
				c.Warning++
			default:
				c.PendingOrRunning++
			}
		}
	}
	c.ProgressPercentage = progress(c.Passed, c.Total)
	return c
}

func progress(passed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(passed) / float64(total) * 100))
}

func (e *Engine) category(id string) *models.ChecklistCategory {
	for _, cat := range e.categories {
		if cat.ID == id {
			return cat
		}
	}
	return nil
}

// begin marks items running and returns the generation each run owns
func (e *Engine) begin(itemIDs []string) map[string]uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	gens := make(map[string]uint64, len(itemIDs))
	for _, id := range itemIDs {
		st := e.items[id]
		if st == nil {
			continue
		}
		st.generation++
		gens[id] = st.generation
		e.transition(st, models.ItemRunning, st.item.Result)
	}
	return gens
}

// settle resolves the items of one run. Items with a result take its status;
// items without one go back to pending. Items that a newer run has claimed
// are skipped. It returns the results actually applied.
func (e *Engine) settle(gens map[string]uint64, results map[string]*models.TestResult) map[string]*models.TestResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	applied := make(map[string]*models.TestResult)
	for id, gen := range gens {
		st := e.items[id]
		if st == nil || st.generation != gen {
			continue
		}
		if result, ok := results[id]; ok && result != nil {
			e.transition(st, result.Status(), result.Clone())
			applied[id] = result
			continue
		}
		e.transition(st, models.ItemPending, st.item.Result)
	}
	return applied
}

// resolve maps a test id keyed response to item ids, optionally restricted
// to one category
func (e *Engine) resolve(results map[string]*models.TestResult, categoryID string) map[string]*models.TestResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]*models.TestResult, len(results))
	for testID, result := range results {
		itemID, ok := e.ids.Resolve(testID)
		if !ok {
			e.logger.Debug("ignoring result for unknown test", zap.String("test_id", testID))
			continue
		}
		st := e.items[itemID]
		if st == nil || (categoryID != "" && st.categoryID != categoryID) {
			continue
		}
		out[itemID] = result
	}
	return out
}

// transition must be called with e.mu held
func (e *Engine) transition(st *itemState, to models.ItemStatus, result *models.TestResult) {
	from := st.item.Status
	st.item.Status = to
	st.item.Result = result
	e.observer.OnTransition(Transition{
		ItemID:     st.item.ID,
		CategoryID: st.categoryID,
		From:       from,
		To:         to,
		Result:     result.Clone(),
	})
}

func (e *Engine) setRunningAll(v bool) {
	e.mu.Lock()
	e.isRunningAll = v
	e.mu.Unlock()
}

func (e *Engine) invalidate(ctx context.Context) {
	if err := e.invalidator.Invalidate(ctx, ResultsKey); err != nil {
		e.logger.Warn("failed to invalidate saved results", zap.Error(err))
	}
}

func (e *Engine) newRun(scope models.RunScope, target string) *models.RunRecord {
	return &models.RunRecord{
		ID:        uuid.NewString(),
		Scope:     scope,
		Target:    target,
		StartedAt: e.now(),
	}
}

func (e *Engine) fail(ctx context.Context, run *models.RunRecord, target string, err error) {
	e.logger.Error("readiness run failed",
		zap.String("scope", string(run.Scope)),
		zap.String("target", target),
		zap.Error(err),
	)

	e.notifier.Notify(ctx, Notification{
		Level:   LevelError,
		Title:   "Test run failed",
		Message: fmt.Sprintf("Could not run %s: %v", target, err),
		Target:  target,
	})

	run.Error = err.Error()
	run.FinishedAt = e.now()
	e.record(ctx, run)
}

func (e *Engine) finish(ctx context.Context, run *models.RunRecord, applied map[string]*models.TestResult) {
	run.Total = len(applied)
	for _, result := range applied {
		switch result.Status() {
		case models.ItemPassed:
			run.Passed++
		case models.ItemWarning:
			run.Warning++
		case models.ItemFailed:
			run.Failed++
		}
	}
	run.FinishedAt = e.now()
	e.record(ctx, run)
}

func (e *Engine) record(ctx context.Context, run *models.RunRecord) {
	if err := e.recorder.RecordRun(ctx, run); err != nil {
		e.logger.Warn("failed to record readiness run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func countOutcomes(results map[string]*models.TestResult) (passed, failed int) {
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Success {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

func cloneResults(in map[string]*models.TestResult) map[string]*models.TestResult {
	out := make(map[string]*models.TestResult, len(in))
	for k, v := range in {
		out[k] = v.Clone()
	}
	return out
}
