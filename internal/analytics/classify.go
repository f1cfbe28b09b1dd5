package analytics

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind classifies a hierarchy node.
type Kind string

const (
	KindRevenue   Kind = "revenue"
	KindExpense   Kind = "expense"
	KindAsset     Kind = "asset"
	KindLiability Kind = "liability"
)

// DetermineKind matches keywords in the category name, falling back to the
// sign of the amount.
func DetermineKind(category string, amount decimal.Decimal) Kind {
	lower := strings.ToLower(category)
	switch {
	case strings.Contains(lower, "revenue"), strings.Contains(lower, "income"):
		return KindRevenue
	case strings.Contains(lower, "expense"), strings.Contains(lower, "cost"):
		return KindExpense
	case strings.Contains(lower, "asset"):
		return KindAsset
	case strings.Contains(lower, "liability"), strings.Contains(lower, "debt"):
		return KindLiability
	}
	if amount.IsNegative() {
		return KindExpense
	}
	return KindRevenue
}

// DisplayName turns snake_case or lower-case source labels into a title.
func DisplayName(label string) string {
	label = strings.TrimSpace(strings.ReplaceAll(label, "_", " "))
	if label == "" {
		return label
	}
	return cases.Title(language.English).String(strings.Join(strings.Fields(label), " "))
}
