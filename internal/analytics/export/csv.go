// Package export renders dashboard aggregates as CSV.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ledgerview/ledgerview/internal/analytics"
)

// WriteMetricsCSV serialises the metrics summary to a two column CSV.
func WriteMetricsCSV(w io.Writer, metrics analytics.MetricsSummary, company string) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	mostRecent := ""
	if metrics.MostRecentRecordTimestamp != nil {
		mostRecent = metrics.MostRecentRecordTimestamp.Format("2006-01-02")
	}
	records := [][]string{
		{"Company", company},
		{"Date Range", metrics.DateRangeLabel},
		{"Total Revenue", metrics.TotalRevenue.StringFixed(2)},
		{"Total Expenses", metrics.TotalExpenses.StringFixed(2)},
		{"Monthly Profit", metrics.MonthlyProfit.StringFixed(2)},
		{"Profit Margin %", strconv.FormatInt(metrics.ProfitMargin, 10)},
		{"Net Assets", metrics.NetAssets.StringFixed(2)},
		{"Revenue Change %", strconv.FormatInt(metrics.RevenueChangePercent, 10)},
		{"Most Recent Record", mostRecent},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteMonthlyCSV emits the month ordered revenue and expense series.
func WriteMonthlyCSV(w io.Writer, buckets []analytics.MonthlyBucket) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Month", "Revenue", "Expenses"}); err != nil {
		return err
	}
	for _, bucket := range buckets {
		if err := writer.Write([]string{
			bucket.MonthLabel,
			bucket.Revenue.StringFixed(2),
			bucket.Expenses.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCategoryCSV prints the top category breakdown.
func WriteCategoryCSV(w io.Writer, categories []analytics.CategoryAggregate) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Category", "Value", "Color", "Date Range"}); err != nil {
		return err
	}
	for _, cat := range categories {
		dateRange := ""
		if cat.DateRange != nil {
			dateRange = *cat.DateRange
		}
		if err := writer.Write([]string{cat.Label, cat.Value.StringFixed(2), cat.Color, dateRange}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteQuarterCSV prints quarterly profit.
func WriteQuarterCSV(w io.Writer, quarters []analytics.QuarterAggregate) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Quarter", "Profit"}); err != nil {
		return err
	}
	for _, q := range quarters {
		if err := writer.Write([]string{q.PeriodLabel, q.Profit.StringFixed(2)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteAggregatesCSV writes every section separated by a blank line.
func WriteAggregatesCSV(w io.Writer, agg analytics.Aggregates, company string) error {
	if err := WriteMetricsCSV(w, agg.Metrics, company); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	if err := WriteMonthlyCSV(w, agg.Monthly); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	if err := WriteCategoryCSV(w, agg.Categories); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	return WriteQuarterCSV(w, agg.Quarters)
}
