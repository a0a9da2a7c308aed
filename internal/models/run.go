package models

import (
	"time"
)

// RunScope identifies which checklist operation produced a run record
type RunScope string

const (
	RunScopeSingle   RunScope = "single"
	RunScopeCategory RunScope = "category"
	RunScopeAll      RunScope = "all"
	RunScopeSync     RunScope = "sync"
)

// RunRecord is the persisted summary of one checklist operation
type RunRecord struct {
	ID         string    `json:"id"`
	Scope      RunScope  `json:"scope"`
	Target     string    `json:"target,omitempty"` // test id or category id
	Total      int       `json:"total"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Warning    int       `json:"warning"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Succeeded reports whether the operation completed without an execution error
func (r *RunRecord) Succeeded() bool {
	return r.Error == ""
}

// Duration returns how long the operation took
func (r *RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunFilters defines filters for listing run records
type RunFilters struct {
	Scope  RunScope
	Limit  int
	Offset int
}
