package models

// ItemStatus represents the current state of a readiness checklist item
type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemRunning ItemStatus = "running"
	ItemPassed  ItemStatus = "passed"
	ItemFailed  ItemStatus = "failed"
	ItemWarning ItemStatus = "warning"
)

// IsResting returns true if the status is not transient
func (s ItemStatus) IsResting() bool {
	return s != ItemRunning
}

// IsValid reports whether s is one of the known statuses
func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemPending, ItemRunning, ItemPassed, ItemFailed, ItemWarning:
		return true
	}
	return false
}

// TestResult is the outcome of one executed readiness test.
// A result is never mutated after it is attached to an item; a re-run
// replaces it wholesale.
type TestResult struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	Details     string   `json:"details,omitempty"`
	ActionItems []string `json:"actionItems,omitempty"`
}

// Clone returns a deep copy of the result
func (r *TestResult) Clone() *TestResult {
	if r == nil {
		return nil
	}
	c := *r
	if r.ActionItems != nil {
		c.ActionItems = append([]string(nil), r.ActionItems...)
	}
	return &c
}

// Status derives the item status a result resolves to. Action items do not
// change the outcome; ItemWarning is never produced by a result.
func (r *TestResult) Status() ItemStatus {
	if r == nil {
		return ItemPending
	}
	if r.Success {
		return ItemPassed
	}
	return ItemFailed
}

// ChecklistItem is one leaf readiness check
type ChecklistItem struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Status      ItemStatus  `json:"status"`
	Result      *TestResult `json:"result,omitempty"`
}

// ChecklistCategory groups checklist items, rendered as one tab
type ChecklistCategory struct {
	ID    string           `json:"id"`
	Title string           `json:"title"`
	Items []*ChecklistItem `json:"items"`
}

// ChecklistCounters are the aggregate counters derived from the item tree
type ChecklistCounters struct {
	Total              int `json:"total"`
	Passed             int `json:"passed"`
	Failed             int `json:"failed"`
	Warning            int `json:"warning"`
	PendingOrRunning   int `json:"pendingOrRunning"`
	ProgressPercentage int `json:"progressPercentage"`
}

// ChecklistSnapshot is a read-only copy of the checklist state
type ChecklistSnapshot struct {
	Categories   []*ChecklistCategory `json:"categories"`
	Counters     ChecklistCounters    `json:"counters"`
	IsRunningAll bool                 `json:"isRunningAll"`
}

// Item looks up an item by id in the snapshot
func (s *ChecklistSnapshot) Item(id string) *ChecklistItem {
	for _, cat := range s.Categories {
		for _, item := range cat.Items {
			if item.ID == id {
				return item
			}
		}
	}
	return nil
}
