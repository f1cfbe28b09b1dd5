package analytics

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultAggregateCategory = "Other"
	expenseSuffix            = " (Expense)"
	topCategoryLimit         = 5
)

// Palette holds the chart colours assigned to ranked categories.
var Palette = [8]string{
	"#4f46e5",
	"#10b981",
	"#f59e0b",
	"#ef4444",
	"#06b6d4",
	"#8b5cf6",
	"#ec4899",
	"#84cc16",
}

var hundred = decimal.NewFromInt(100)

// MonthlyBucket is the revenue/expense total of one calendar month.
type MonthlyBucket struct {
	MonthLabel string          `json:"monthLabel"`
	Revenue    decimal.Decimal `json:"revenue"`
	Expenses   decimal.Decimal `json:"expenses"`
}

// CategoryAggregate is one slice of the top categories chart.
type CategoryAggregate struct {
	Label      string          `json:"label"`
	Value      decimal.Decimal `json:"value"`
	ColorIndex int             `json:"colorIndex"`
	Color      string          `json:"color"`
	DateRange  *string         `json:"dateRange"`
}

// QuarterAggregate is the profit of one calendar quarter.
type QuarterAggregate struct {
	PeriodLabel string          `json:"periodLabel"`
	Profit      decimal.Decimal `json:"profit"`
}

// MetricsSummary feeds the headline cards.
type MetricsSummary struct {
	TotalRevenue              decimal.Decimal `json:"totalRevenue"`
	TotalExpenses             decimal.Decimal `json:"totalExpenses"`
	MonthlyProfit             decimal.Decimal `json:"monthlyProfit"`
	ProfitMargin              int64           `json:"profitMargin"`
	NetAssets                 decimal.Decimal `json:"netAssets"`
	RevenueChangePercent      int64           `json:"revenueChangePercent"`
	DateRangeLabel            string          `json:"dateRangeLabel"`
	MostRecentRecordTimestamp *time.Time      `json:"mostRecentRecordTimestamp"`
}

// Aggregates bundles the chart series derived from one record snapshot.
type Aggregates struct {
	Monthly    []MonthlyBucket     `json:"monthly"`
	Categories []CategoryAggregate `json:"categories"`
	Quarters   []QuarterAggregate  `json:"quarters"`
	Metrics    MetricsSummary      `json:"metrics"`
}

// EmptyAggregates is the result shown when there is nothing to chart.
func EmptyAggregates() Aggregates {
	return Aggregates{
		Monthly:    []MonthlyBucket{},
		Categories: []CategoryAggregate{},
		Quarters:   []QuarterAggregate{},
		Metrics:    MetricsSummary{DateRangeLabel: noDataAvailable},
	}
}

// AggregateBuilder derives the chart series.
type AggregateBuilder struct {
	logger *slog.Logger
}

// NewAggregateBuilder constructs a builder. A nil logger uses slog.Default.
func NewAggregateBuilder(logger *slog.Logger) *AggregateBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &AggregateBuilder{logger: logger}
}

type monthKey struct {
	year  int
	month time.Month
}

func (k monthKey) after(o monthKey) bool {
	if k.year != o.year {
		return k.year > o.year
	}
	return k.month > o.month
}

type monthAccumulator struct {
	key      monthKey
	revenue  decimal.Decimal
	expenses decimal.Decimal
}

type categoryAccumulator struct {
	base      string
	magnitude decimal.Decimal
}

type dateBounds struct {
	from *time.Time
	to   *time.Time
}

// Build walks the records once in input order and returns the aggregates.
// Any failure yields EmptyAggregates.
func (b *AggregateBuilder) Build(records []RawRecord) (result Aggregates) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("build aggregates", slog.Any("error", r), slog.Int("records", len(records)))
			result = EmptyAggregates()
		}
	}()
	if len(records) == 0 {
		return EmptyAggregates()
	}

	months := newOrderedMap[monthKey, *monthAccumulator]()
	categories := newOrderedMap[string, *categoryAccumulator]()
	categoryDates := make(map[string]*dateBounds)

	var (
		latest          *monthKey
		previousRevenue decimal.Decimal
		totalRevenue    decimal.Decimal
		totalExpenses   decimal.Decimal
		earliestDate    *time.Time
		latestDate      *time.Time
		mostRecent      *time.Time
	)

	for _, rec := range records {
		amount := rec.Amount
		if amount.IsPositive() {
			totalRevenue = totalRevenue.Add(amount)
		} else if amount.IsNegative() {
			totalExpenses = totalExpenses.Add(amount.Abs())
		}

		if rec.FromDate != nil {
			key := monthKey{year: rec.FromDate.Year(), month: rec.FromDate.Month()}
			bucket := months.GetOrCreate(key, func() *monthAccumulator {
				return &monthAccumulator{key: key}
			})
			// The month that was latest until now becomes "previous" with
			// whatever revenue it had accumulated so far.
			if latest == nil || key.after(*latest) {
				if latest != nil {
					prev, _ := months.Get(*latest)
					previousRevenue = prev.revenue
				}
				k := key
				latest = &k
			}
			if amount.IsPositive() {
				bucket.revenue = bucket.revenue.Add(amount)
			} else if amount.IsNegative() {
				bucket.expenses = bucket.expenses.Add(amount.Abs())
			}
		}

		end := rec.EndDate()
		earliestDate = earlier(earliestDate, rec.FromDate)
		earliestDate = earlier(earliestDate, end)
		latestDate = later(latestDate, rec.FromDate)
		latestDate = later(latestDate, end)
		mostRecent = later(mostRecent, end)

		base := stringValue(rec.Category)
		if base == "" {
			base = defaultAggregateCategory
		}
		key := base
		if amount.IsNegative() {
			key = base + expenseSuffix
		}
		acc := categories.GetOrCreate(key, func() *categoryAccumulator {
			return &categoryAccumulator{base: base}
		})
		acc.magnitude = acc.magnitude.Add(amount.Abs())

		bounds, ok := categoryDates[base]
		if !ok {
			bounds = &dateBounds{}
			categoryDates[base] = bounds
		}
		bounds.from = earlier(bounds.from, rec.FromDate)
		bounds.from = earlier(bounds.from, end)
		bounds.to = later(bounds.to, rec.FromDate)
		bounds.to = later(bounds.to, end)
	}

	monthly := sortedMonths(months.Values())

	result = Aggregates{
		Monthly:    make([]MonthlyBucket, 0, len(monthly)),
		Categories: topCategories(categories.Values(), categoryDates),
		Quarters:   quarters(monthly),
	}
	for _, m := range monthly {
		result.Monthly = append(result.Monthly, MonthlyBucket{
			MonthLabel: monthLabel(m.key),
			Revenue:    m.revenue,
			Expenses:   m.expenses,
		})
	}

	metrics := MetricsSummary{
		TotalRevenue:              totalRevenue,
		TotalExpenses:             totalExpenses,
		NetAssets:                 totalRevenue.Sub(totalExpenses),
		DateRangeLabel:            FormatDateRange(earliestDate, latestDate),
		MostRecentRecordTimestamp: copyTime(mostRecent),
	}
	if latest != nil {
		current, _ := months.Get(*latest)
		metrics.MonthlyProfit = current.revenue.Sub(current.expenses)
		metrics.RevenueChangePercent = percentChange(current.revenue, previousRevenue)
	}
	if !totalRevenue.IsZero() {
		metrics.ProfitMargin = roundHalfUp(totalRevenue.Sub(totalExpenses).Div(totalRevenue).Mul(hundred))
	}
	result.Metrics = metrics
	return result
}

func sortedMonths(months []*monthAccumulator) []*monthAccumulator {
	sort.SliceStable(months, func(i, j int) bool {
		return months[j].key.after(months[i].key)
	})
	return months
}

func topCategories(accs []*categoryAccumulator, dates map[string]*dateBounds) []CategoryAggregate {
	sort.SliceStable(accs, func(i, j int) bool {
		return accs[i].magnitude.GreaterThan(accs[j].magnitude)
	})
	if len(accs) > topCategoryLimit {
		accs = accs[:topCategoryLimit]
	}
	out := make([]CategoryAggregate, 0, len(accs))
	for rank, acc := range accs {
		item := CategoryAggregate{
			Label:      DisplayName(acc.base),
			Value:      acc.magnitude,
			ColorIndex: rank % len(Palette),
		}
		item.Color = Palette[item.ColorIndex]
		if bounds, ok := dates[acc.base]; ok {
			label := FormatDateRange(bounds.from, bounds.to)
			item.DateRange = &label
		}
		out = append(out, item)
	}
	return out
}

func quarters(months []*monthAccumulator) []QuarterAggregate {
	type quarterKey struct {
		year    int
		quarter int
	}
	profits := newOrderedMap[quarterKey, decimal.Decimal]()
	for _, m := range months {
		key := quarterKey{year: m.key.year, quarter: (int(m.key.month)-1)/3 + 1}
		current, _ := profits.Get(key)
		profits.Set(key, current.Add(m.revenue.Sub(m.expenses)))
	}
	keys := profits.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].quarter < keys[j].quarter
	})
	out := make([]QuarterAggregate, 0, len(keys))
	for _, k := range keys {
		profit, _ := profits.Get(k)
		out = append(out, QuarterAggregate{
			PeriodLabel: fmt.Sprintf("Q%d-%d", k.quarter, k.year),
			Profit:      profit,
		})
	}
	return out
}

func monthLabel(k monthKey) string {
	return time.Date(k.year, k.month, 1, 0, 0, 0, 0, time.UTC).Format(monthLabelLayout)
}

// percentChange is zero when there is no previous value to compare against.
func percentChange(current, previous decimal.Decimal) int64 {
	if previous.IsZero() {
		return 0
	}
	return roundHalfUp(current.Sub(previous).Div(previous).Mul(hundred))
}

// roundHalfUp rounds .5 towards positive infinity.
func roundHalfUp(d decimal.Decimal) int64 {
	return d.Add(decimal.New(5, -1)).Floor().IntPart()
}
