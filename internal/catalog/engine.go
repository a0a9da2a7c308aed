// Package catalog joins marketplace resources with their sellers and derives
// the filtered, sorted and faceted views the storefront renders.
//
// Everything in this file is a pure function over snapshots owned by the
// caller. Facets are always computed from the unfiltered set, in a pass of
// their own, so a shopper can see how many listings every option would give.
package catalog

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/danceforge/backoffice/internal/models"
)

// Join attaches sellers to resources by seller id and drops ratings.
// The output keeps the order of resources and has one entry per non-nil
// resource; nil entries are dropped.
func Join(resources []*models.Resource, sellers []*models.Seller) []*models.JoinedResource {
	byID := make(map[int64]*models.Seller, len(sellers))
	for _, s := range sellers {
		if s != nil {
			byID[s.ID] = s
		}
	}

	out := make([]*models.JoinedResource, 0, len(resources))
	for _, r := range resources {
		if r == nil {
			continue
		}
		jr := &models.JoinedResource{Resource: *r, Seller: byID[r.SellerID]}
		jr.Rating = nil
		out = append(out, jr)
	}
	return out
}

// Filter returns the resources that satisfy every non-empty dimension of fs
func Filter(joined []*models.JoinedResource, fs models.FilterState) []*models.JoinedResource {
	fold := cases.Fold()
	search := fold.String(strings.TrimSpace(fs.Search))

	var sellerID int64
	sellerOK := true
	if fs.Seller != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(fs.Seller), 10, 64)
		sellerID, sellerOK = id, err == nil
	}

	out := make([]*models.JoinedResource, 0, len(joined))
	for _, r := range joined {
		if search != "" &&
			!strings.Contains(fold.String(r.Title), search) &&
			!strings.Contains(fold.String(r.Description), search) {
			continue
		}
		if fs.DanceStyle != "" && r.DanceStyle != fs.DanceStyle {
			continue
		}
		if fs.AgeRange != "" && r.AgeRange != fs.AgeRange {
			continue
		}
		if fs.DifficultyLevel != "" && r.DifficultyLevel != fs.DifficultyLevel {
			continue
		}
		if fs.Format != "" && !matchesFormat(fs.Format, r.FileType) {
			continue
		}
		if fs.PriceRange != "" && !inPriceBucket(fs.PriceRange, ParsePrice(r.Price)) {
			continue
		}
		if fs.Seller != "" && (!sellerOK || r.SellerID != sellerID) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Sort returns a stably sorted copy. Unknown keys sort newest first.
func Sort(items []*models.JoinedResource, key models.SortKey) []*models.JoinedResource {
	out := append([]*models.JoinedResource(nil), items...)

	var less func(a, b *models.JoinedResource) bool
	switch key {
	case models.SortOldest:
		less = func(a, b *models.JoinedResource) bool { return createdAt(a).Before(createdAt(b)) }
	case models.SortPriceAsc:
		less = func(a, b *models.JoinedResource) bool { return ParsePrice(a.Price).LessThan(ParsePrice(b.Price)) }
	case models.SortPriceDesc:
		less = func(a, b *models.JoinedResource) bool { return ParsePrice(a.Price).GreaterThan(ParsePrice(b.Price)) }
	case models.SortDownloads:
		less = func(a, b *models.JoinedResource) bool { return downloads(a) > downloads(b) }
	default:
		less = func(a, b *models.JoinedResource) bool { return createdAt(a).After(createdAt(b)) }
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Facets tallies every filter dimension over the full resource set
func Facets(all []*models.JoinedResource) *models.FacetCounts {
	fc := &models.FacetCounts{
		DanceStyle:      make(map[string]int),
		AgeRange:        make(map[string]int),
		DifficultyLevel: make(map[string]int),
		Format:          make(map[string]int),
		Price:           make(map[string]int),
	}

	for _, r := range all {
		if r.DanceStyle != "" {
			fc.DanceStyle[r.DanceStyle]++
		}
		if r.AgeRange != "" {
			fc.AgeRange[r.AgeRange]++
		}
		if r.DifficultyLevel != "" {
			fc.DifficultyLevel[r.DifficultyLevel]++
		}
		for _, format := range formatOrder {
			if matchesFormat(format, r.FileType) {
				fc.Format[format]++
			}
		}
		price := ParsePrice(r.Price)
		for _, bucket := range priceOrder {
			if inPriceBucket(bucket, price) {
				fc.Price[bucket]++
			}
		}
	}
	return fc
}

// Paginate returns the 1-based page of items. limit <= 0 returns everything.
func Paginate(items []*models.JoinedResource, page, limit int) *models.CatalogPage {
	total := len(items)
	if limit <= 0 {
		return &models.CatalogPage{Items: items, Total: total, Page: 1, Limit: total, TotalPages: 1}
	}
	if page < 1 {
		page = 1
	}

	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}

	// pages past the end are empty; checking first keeps (page-1)*limit in range
	start := total
	if page <= totalPages {
		start = (page - 1) * limit
	}
	end := start + min(limit, total-start)

	return &models.CatalogPage{
		Items:      items[start:end],
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}

func createdAt(r *models.JoinedResource) time.Time {
	if r.CreatedAt == nil || r.CreatedAt.IsZero() {
		return time.Unix(0, 0)
	}
	return *r.CreatedAt
}

func downloads(r *models.JoinedResource) int {
	if r.DownloadCount == nil {
		return 0
	}
	return *r.DownloadCount
}
