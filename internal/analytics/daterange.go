package analytics

import "time"

const (
	monthLabelLayout = "Jan 2006"
	noDateRange      = "No date range"
	noDataAvailable  = "No data available"
)

// FormatDateRange renders a "Mon YYYY - Mon YYYY" span, collapsing to a single
// month when both ends fall in the same one.
func FormatDateRange(start, end *time.Time) string {
	if start == nil || end == nil {
		return noDateRange
	}
	from := start.Format(monthLabelLayout)
	to := end.Format(monthLabelLayout)
	if from == to {
		return from
	}
	return from + " - " + to
}
