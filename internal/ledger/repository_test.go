package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerview/ledgerview/internal/analytics"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch target := d.(type) {
		case *string:
			*target = r.values[i].(string)
		case **string:
			*target, _ = r.values[i].(*string)
		case **time.Time:
			*target, _ = r.values[i].(*time.Time)
		case **int:
			*target, _ = r.values[i].(*int)
		}
	}
	return nil
}

func TestScanRecord(t *testing.T) {
	depth := 2
	row := fakeRow{values: []any{
		"r1", "1250.7500",
		analytics.StringPtr("Revenue"), analytics.StringPtr("Services"), (*string)(nil),
		"erp", (*string)(nil), analytics.DatePtr(2024, time.March, 1), (*time.Time)(nil), &depth,
	}}

	rec, err := scanRecord(row)
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.ID)
	assert.True(t, rec.Amount.Equal(decimal.RequireFromString("1250.75")))
	assert.Equal(t, "Services", *rec.Subcategory)
	assert.Nil(t, rec.LineItemName)
	assert.Equal(t, "erp", *rec.SourceName)
	assert.Nil(t, rec.ToDate)
	assert.Equal(t, 2, rec.Depth())
}

func TestScanRecordWithoutDepth(t *testing.T) {
	row := fakeRow{values: []any{
		"r2", "not-a-number", (*string)(nil), (*string)(nil), (*string)(nil),
		"sheet", (*string)(nil), (*time.Time)(nil), (*time.Time)(nil), (*int)(nil),
	}}
	rec, err := scanRecord(row)
	require.NoError(t, err)
	assert.True(t, rec.Amount.IsZero())
	assert.Nil(t, rec.Metadata)

	_, err = scanRecord(fakeRow{err: errors.New("conn closed")})
	assert.Error(t, err)
}

func TestScanRecordKeepsRecordSourceName(t *testing.T) {
	row := fakeRow{values: []any{
		"r3", "19.99", analytics.StringPtr("Sales"), (*string)(nil), (*string)(nil),
		"erp-feed", analytics.StringPtr("Store 12 POS"), (*time.Time)(nil), (*time.Time)(nil), (*int)(nil),
	}}
	rec, err := scanRecord(row)
	require.NoError(t, err)
	require.NotNil(t, rec.SourceName)
	assert.Equal(t, "Store 12 POS", *rec.SourceName)
}

func TestInsertArguments(t *testing.T) {
	assert.Nil(t, dateArg(nil))
	assert.Equal(t, "2024-12-31", dateArg(analytics.DatePtr(2024, time.December, 31)))

	depth := 3
	assert.Nil(t, depthArg(analytics.RawRecord{}))
	assert.Equal(t, 3, depthArg(analytics.RawRecord{Metadata: &analytics.RecordMetadata{Depth: &depth}}))
}
