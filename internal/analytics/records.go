package analytics

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// RecordMetadata carries optional source-specific hints.
type RecordMetadata struct {
	Depth *int `json:"depth,omitempty"`
}

// RawRecord is one financial line item as delivered by the data feed.
type RawRecord struct {
	ID           string          `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	Category     *string         `json:"category"`
	Subcategory  *string         `json:"subcategory"`
	LineItemName *string         `json:"lineItemName"`
	SourceName   *string         `json:"sourceName"`
	FromDate     *time.Time      `json:"fromDate"`
	ToDate       *time.Time      `json:"toDate"`
	Metadata     *RecordMetadata `json:"metadata,omitempty"`
}

// Envelope is the wire shape of a financial data fetch.
type Envelope struct {
	Data []RawRecord `json:"data"`
}

type rawRecordJSON struct {
	ID           json.RawMessage `json:"id"`
	Amount       json.RawMessage `json:"amount"`
	Category     *string         `json:"category"`
	Subcategory  *string         `json:"subcategory"`
	LineItemName *string         `json:"lineItemName"`
	SourceName   *string         `json:"sourceName"`
	FromDate     *string         `json:"fromDate"`
	ToDate       *string         `json:"toDate"`
	Metadata     *RecordMetadata `json:"metadata"`
}

// UnmarshalJSON decodes leniently: amounts may be numbers or strings and fall
// back to zero, unreadable dates become null.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	var aux rawRecordJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = RawRecord{
		ID:           rawScalar(aux.ID),
		Amount:       ParseAmount(rawScalar(aux.Amount)),
		Category:     aux.Category,
		Subcategory:  aux.Subcategory,
		LineItemName: aux.LineItemName,
		SourceName:   aux.SourceName,
		FromDate:     parseDatePtr(aux.FromDate),
		ToDate:       parseDatePtr(aux.ToDate),
		Metadata:     aux.Metadata,
	}
	return nil
}

// MarshalJSON writes dates as calendar days.
func (r RawRecord) MarshalJSON() ([]byte, error) {
	out := struct {
		ID           string          `json:"id"`
		Amount       decimal.Decimal `json:"amount"`
		Category     *string         `json:"category"`
		Subcategory  *string         `json:"subcategory"`
		LineItemName *string         `json:"lineItemName"`
		SourceName   *string         `json:"sourceName"`
		FromDate     *string         `json:"fromDate"`
		ToDate       *string         `json:"toDate"`
		Metadata     *RecordMetadata `json:"metadata,omitempty"`
	}{
		ID:           r.ID,
		Amount:       r.Amount,
		Category:     r.Category,
		Subcategory:  r.Subcategory,
		LineItemName: r.LineItemName,
		SourceName:   r.SourceName,
		FromDate:     formatDatePtr(r.FromDate),
		ToDate:       formatDatePtr(r.ToDate),
		Metadata:     r.Metadata,
	}
	return json.Marshal(out)
}

// ParseAmount reads a decimal amount, returning zero when the input is not a number.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseDate accepts a calendar day or an RFC3339 timestamp.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// Depth returns the metadata depth, zero when absent.
func (r RawRecord) Depth() int {
	if r.Metadata == nil || r.Metadata.Depth == nil {
		return 0
	}
	return *r.Metadata.Depth
}

// EndDate is ToDate, falling back to FromDate.
func (r RawRecord) EndDate() *time.Time {
	if r.ToDate != nil {
		return r.ToDate
	}
	return r.FromDate
}

// StringPtr is a helper for building records in code.
func StringPtr(s string) *string {
	return &s
}

// DatePtr builds a UTC calendar day.
func DatePtr(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func rawScalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	return string(raw)
}

func parseDatePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, ok := ParseDate(*s)
	if !ok {
		return nil
	}
	return &t
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
