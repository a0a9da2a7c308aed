package checklist

// TestIDMap associates runner test ids with checklist item ids.
// Several test ids may point at one item; the first one added for an
// item is its canonical id.
type TestIDMap struct {
	toItem    map[string]string
	canonical map[string]string
}

// NewTestIDMap creates an empty mapping
func NewTestIDMap() *TestIDMap {
	return &TestIDMap{
		toItem:    make(map[string]string),
		canonical: make(map[string]string),
	}
}

// Add maps testID to itemID. Re-adding an existing test id is a no-op.
func (m *TestIDMap) Add(testID, itemID string) {
	if _, exists := m.toItem[testID]; exists {
		return
	}
	m.toItem[testID] = itemID
	if _, ok := m.canonical[itemID]; !ok {
		m.canonical[itemID] = testID
	}
}

// Resolve returns the item id a test id maps to
func (m *TestIDMap) Resolve(testID string) (string, bool) {
	itemID, ok := m.toItem[testID]
	return itemID, ok
}

// Canonical returns the test id used when running an item
func (m *TestIDMap) Canonical(itemID string) (string, bool) {
	testID, ok := m.canonical[itemID]
	return testID, ok
}

// Len returns the number of test ids, aliases included
func (m *TestIDMap) Len() int {
	return len(m.toItem)
}
