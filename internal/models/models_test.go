package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApiClientHasPermission(t *testing.T) {
	tests := []struct {
		name     string
		client   *ApiClient
		required string
		want     bool
	}{
		{"nil client", nil, PermCatalogRead, false},
		{"inactive", &ApiClient{Permissions: []string{"*"}}, PermCatalogRead, false},
		{"exact", &ApiClient{IsActive: true, Permissions: []string{PermCatalogRead}}, PermCatalogRead, true},
		{"wildcard scope", &ApiClient{IsActive: true, Permissions: []string{"readiness:*"}}, PermReadinessRun, true},
		{"wildcard other scope", &ApiClient{IsActive: true, Permissions: []string{"readiness:*"}}, PermCatalogRead, false},
		{"global", &ApiClient{IsActive: true, Permissions: []string{"*"}}, PermRunsRead, true},
		{"missing", &ApiClient{IsActive: true, Permissions: []string{PermReadinessRead}}, PermReadinessRun, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.client.HasPermission(tt.required))
		})
	}
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "***", MaskKey("short"))
	assert.Equal(t, "sk_live_...", MaskKey("sk_live_abcdef"))
}

func TestTestResultStatus(t *testing.T) {
	var nilResult *TestResult
	assert.Equal(t, ItemPending, nilResult.Status())
	assert.Equal(t, ItemPassed, (&TestResult{Success: true}).Status())
	assert.Equal(t, ItemFailed, (&TestResult{Success: false, ActionItems: []string{"x"}}).Status())
	assert.Equal(t, ItemPassed, (&TestResult{Success: true, ActionItems: []string{"rotate key"}}).Status())
}

func TestTestResultCloneIsDeep(t *testing.T) {
	orig := &TestResult{Success: true, ActionItems: []string{"a"}}
	c := orig.Clone()
	c.ActionItems[0] = "b"
	assert.Equal(t, "a", orig.ActionItems[0])
}

func TestSellerDisplayName(t *testing.T) {
	first, last := "Anna", "Pavlova"
	assert.Equal(t, "Anna Pavlova", (&Seller{FirstName: &first, LastName: &last, Username: "ap"}).DisplayName())
	assert.Equal(t, "Anna", (&Seller{FirstName: &first, Username: "ap"}).DisplayName())
	assert.Equal(t, "ap", (&Seller{Username: "ap"}).DisplayName())
}

func TestSortKeyIsValid(t *testing.T) {
	assert.True(t, SortPriceAsc.IsValid())
	assert.False(t, SortKey("rating").IsValid())
}
