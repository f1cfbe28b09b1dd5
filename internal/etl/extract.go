package etl

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerview/ledgerview/internal/analytics"
	"github.com/ledgerview/ledgerview/internal/company"
)

// DefaultMaxSourceBytes caps the size of one downloaded source document.
const DefaultMaxSourceBytes int64 = 32 << 20

var recordNamespace = uuid.MustParse("0b7e52a4-95c1-5f8e-8d4d-3a61f2c9e7b0")

// ErrUnsupportedSource indicates a data source kind with no extractor.
var ErrUnsupportedSource = errors.New("etl: unsupported source kind")

// ErrSourceTooLarge indicates a source document above the size cap. A
// truncated document is never loaded.
var ErrSourceTooLarge = errors.New("etl: source too large")

// Extractor reads raw records from one data source.
type Extractor interface {
	Extract(ctx context.Context, src company.DataSource) ([]analytics.RawRecord, error)
}

// Extractors routes a data source to the extractor registered for its kind.
type Extractors map[string]Extractor

// DefaultExtractors returns the extractors for every supported kind.
func DefaultExtractors(client *http.Client) Extractors {
	return Extractors{
		company.SourceHTTPJSON: &JSONExtractor{Client: client},
		company.SourceCSV:      &CSVExtractor{Client: client},
	}
}

// Extract dispatches on the source kind.
func (e Extractors) Extract(ctx context.Context, src company.DataSource) ([]analytics.RawRecord, error) {
	ex, ok := e[src.Kind]
	if !ok || ex == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, src.Kind)
	}
	return ex.Extract(ctx, src)
}

// JSONExtractor reads either a {"data": [...]} envelope or a bare array.
type JSONExtractor struct {
	Client *http.Client
	// MaxBytes overrides DefaultMaxSourceBytes when positive.
	MaxBytes int64
}

// Extract implements Extractor.
func (e *JSONExtractor) Extract(ctx context.Context, src company.DataSource) ([]analytics.RawRecord, error) {
	body, err := download(ctx, e.Client, src, "application/json", e.MaxBytes)
	if err != nil {
		return nil, err
	}
	payload := bytes.TrimSpace(body)
	if len(payload) > 0 && payload[0] == '[' {
		var records []analytics.RawRecord
		if err := json.Unmarshal(payload, &records); err != nil {
			return nil, fmt.Errorf("etl: decode %s: %w", src.Name, err)
		}
		return records, nil
	}
	var env analytics.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("etl: decode %s: %w", src.Name, err)
	}
	return env.Data, nil
}

// CSVExtractor reads a header-led CSV document. Column names are matched
// case-insensitively and ignore spaces, dashes and underscores.
type CSVExtractor struct {
	Client   *http.Client
	MaxBytes int64
}

// Extract implements Extractor.
func (e *CSVExtractor) Extract(ctx context.Context, src company.DataSource) ([]analytics.RawRecord, error) {
	body, err := download(ctx, e.Client, src, "text/csv", e.MaxBytes)
	if err != nil {
		return nil, err
	}
	return ParseCSV(bytes.NewReader(body))
}

// ParseCSV converts CSV rows into raw records.
func ParseCSV(r io.Reader) ([]analytics.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []analytics.RawRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("etl: read csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[columnKey(name)] = i
	}
	if _, ok := columns["amount"]; !ok {
		return nil, errors.New("etl: csv is missing an amount column")
	}

	records := make([]analytics.RawRecord, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("etl: read csv row: %w", err)
		}
		cell := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		rec := analytics.RawRecord{
			ID:           cell("id"),
			Amount:       analytics.ParseAmount(cell("amount")),
			Category:     optional(cell("category")),
			Subcategory:  optional(cell("subcategory")),
			LineItemName: optional(cell("lineitemname")),
			SourceName:   optional(cell("sourcename")),
			FromDate:     parseDate(cell("fromdate")),
			ToDate:       parseDate(cell("todate")),
		}
		if rec.LineItemName == nil {
			rec.LineItemName = optional(cell("lineitem"))
		}
		if depth, err := strconv.Atoi(cell("depth")); err == nil {
			rec.Metadata = &analytics.RecordMetadata{Depth: &depth}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Normalize trims text fields, stamps the source name where missing and
// assigns deterministic ids to records that arrive without one.
func Normalize(companyID string, src company.DataSource, records []analytics.RawRecord) []analytics.RawRecord {
	out := make([]analytics.RawRecord, len(records))
	for i, rec := range records {
		rec.ID = strings.TrimSpace(rec.ID)
		rec.Category = trimmed(rec.Category)
		rec.Subcategory = trimmed(rec.Subcategory)
		rec.LineItemName = trimmed(rec.LineItemName)
		rec.SourceName = trimmed(rec.SourceName)
		if rec.SourceName == nil {
			rec.SourceName = analytics.StringPtr(src.Name)
		}
		if rec.ID == "" {
			rec.ID = uuid.NewSHA1(recordNamespace, []byte(companyID+"|"+src.ID+"|"+strconv.Itoa(i))).String()
		}
		out[i] = rec
	}
	return out
}

func download(ctx context.Context, client *http.Client, src company.DataSource, accept string, limit int64) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if limit <= 0 {
		limit = DefaultMaxSourceBytes
	}
	url := src.URL
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("etl: build request: %w", err)
	}
	req.Header.Set("Accept", accept)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("etl: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("etl: fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("etl: read %s: %w", url, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: source %s exceeds %d bytes", ErrSourceTooLarge, src.Name, limit)
	}
	return body, nil
}

func columnKey(name string) string {
	replacer := strings.NewReplacer("_", "", "-", "", " ", "")
	return strings.ToLower(replacer.Replace(strings.TrimSpace(name)))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return analytics.StringPtr(s)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	return optional(strings.TrimSpace(*s))
}

func parseDate(s string) *time.Time {
	if t, ok := analytics.ParseDate(s); ok {
		return &t
	}
	return nil
}
