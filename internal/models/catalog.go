package models

import (
	"time"
)

// Resource is a marketplace listing (curriculum, lesson plan, recording...)
type Resource struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Price           string     `json:"price"` // decimal string, e.g. "9.99"
	SellerID        int64      `json:"sellerId"`
	DanceStyle      string     `json:"danceStyle,omitempty"`
	AgeRange        string     `json:"ageRange,omitempty"`
	DifficultyLevel string     `json:"difficultyLevel,omitempty"`
	FileType        string     `json:"fileType,omitempty"`
	IsFeatured      bool       `json:"isFeatured"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
	DownloadCount   *int       `json:"downloadCount,omitempty"`
	Rating          *float64   `json:"rating,omitempty"`
}

// Seller is the public profile of a resource seller
type Seller struct {
	ID              int64   `json:"id"`
	FirstName       *string `json:"first_name,omitempty"`
	LastName        *string `json:"last_name,omitempty"`
	Username        string  `json:"username"`
	ProfileImageURL *string `json:"profile_image_url"`
}

// DisplayName returns "First Last" when available, otherwise the username
func (s *Seller) DisplayName() string {
	if s == nil {
		return ""
	}
	name := ""
	if s.FirstName != nil {
		name = *s.FirstName
	}
	if s.LastName != nil && *s.LastName != "" {
		if name != "" {
			name += " "
		}
		name += *s.LastName
	}
	if name == "" {
		return s.Username
	}
	return name
}

// JoinedResource is a resource enriched with its seller. Rating is always nil.
type JoinedResource struct {
	Resource
	Seller *Seller `json:"seller,omitempty"`
}

// FilterState holds the active catalog filters. Empty fields do not constrain.
type FilterState struct {
	Search          string `json:"search,omitempty"`
	DanceStyle      string `json:"danceStyle,omitempty"`
	AgeRange        string `json:"ageRange,omitempty"`
	DifficultyLevel string `json:"difficultyLevel,omitempty"`
	PriceRange      string `json:"priceRange,omitempty"`
	Format          string `json:"format,omitempty"`
	Seller          string `json:"seller,omitempty"`
}

// SortKey selects the catalog ordering
type SortKey string

const (
	SortNewest    SortKey = "newest"
	SortOldest    SortKey = "oldest"
	SortPriceAsc  SortKey = "priceAsc"
	SortPriceDesc SortKey = "priceDesc"
	SortDownloads SortKey = "downloads"
)

// IsValid reports whether k is a known sort key
func (k SortKey) IsValid() bool {
	switch k {
	case SortNewest, SortOldest, SortPriceAsc, SortPriceDesc, SortDownloads:
		return true
	}
	return false
}

// Price buckets shared by the price filter and the price facet
const (
	PriceFree    = "free"
	PriceUnder10 = "under10"
	Price10To20  = "10to20"
	PriceOver20  = "over20"
)

// Format groups shared by the format filter and the format facet
const (
	FormatPDF   = "pdf"
	FormatVideo = "video"
	FormatAudio = "audio"
	FormatImage = "image"
)

// FacetCounts are per-value counts over the unfiltered catalog
type FacetCounts struct {
	DanceStyle      map[string]int `json:"danceStyle"`
	AgeRange        map[string]int `json:"ageRange"`
	DifficultyLevel map[string]int `json:"difficultyLevel"`
	Format          map[string]int `json:"format"`
	Price           map[string]int `json:"price"`
}

// CatalogQuery describes one catalog view request
type CatalogQuery struct {
	Filter FilterState
	Sort   SortKey
	Page   int
	Limit  int
}

// CatalogPage is one page of the filtered and sorted catalog
type CatalogPage struct {
	Items      []*JoinedResource `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"totalPages"`
}
