package catalog

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/danceforge/backoffice/internal/models"
)

// formatGroups maps a format filter value to the file types it accepts
var formatGroups = map[string][]string{
	models.FormatPDF:   {"pdf", "application/pdf"},
	models.FormatVideo: {"mp4", "video/mp4", "video"},
	models.FormatAudio: {"mp3", "audio/mpeg", "audio"},
	models.FormatImage: {"jpg", "jpeg", "png", "image/jpeg", "image/png", "image"},
}

// formatOrder fixes the iteration order of formatGroups
var formatOrder = []string{models.FormatPDF, models.FormatVideo, models.FormatAudio, models.FormatImage}

// priceOrder lists the price buckets in display order
var priceOrder = []string{models.PriceFree, models.PriceUnder10, models.Price10To20, models.PriceOver20}

var (
	ten    = decimal.NewFromInt(10)
	twenty = decimal.NewFromInt(20)
)

// matchesFormat reports whether fileType belongs to the format group.
// Formats outside the group table compare directly against the file type.
func matchesFormat(format, fileType string) bool {
	ft := strings.ToLower(strings.TrimSpace(fileType))
	group, ok := formatGroups[strings.ToLower(format)]
	if !ok {
		return ft != "" && ft == strings.ToLower(format)
	}
	for _, candidate := range group {
		if ft == candidate {
			return true
		}
	}
	return false
}

// inPriceBucket reports bucket membership. Adjacent buckets share their
// boundary: 0 is both free and under10, 10 is under10 and 10to20, 20 is
// 10to20 only. Unknown buckets match nothing.
func inPriceBucket(bucket string, price decimal.Decimal) bool {
	switch bucket {
	case models.PriceFree:
		return price.IsZero()
	case models.PriceUnder10:
		return price.LessThanOrEqual(ten)
	case models.Price10To20:
		return price.GreaterThanOrEqual(ten) && price.LessThanOrEqual(twenty)
	case models.PriceOver20:
		return price.GreaterThan(twenty)
	}
	return false
}

// ParsePrice parses a decimal price string; anything unparsable is zero
func ParsePrice(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
