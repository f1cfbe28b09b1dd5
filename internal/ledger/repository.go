// Package ledger stores the financial records loaded for each company.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerview/ledgerview/internal/analytics"
	"github.com/ledgerview/ledgerview/internal/platform/db"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
}

// Repository reads and replaces financial records.
type Repository struct {
	pool *pgxpool.Pool
	db   dbtx
}

// NewRepository constructs a Postgres backed repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, db: pool}
}

const listRecordsSQL = `
SELECT id, amount::text, category, subcategory, line_item_name, source_name, record_source_name, from_date, to_date, depth
FROM financial_records
WHERE company_id = $1
ORDER BY source_name, position`

// ListByCompany returns every record of the company in load order. The
// result comes from a single statement so callers always observe one
// consistent snapshot.
func (r *Repository) ListByCompany(ctx context.Context, companyID string) ([]analytics.RawRecord, error) {
	rows, err := r.db.Query(ctx, listRecordsSQL, companyID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list records: %w", err)
	}
	defer rows.Close()

	records := make([]analytics.RawRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// FinancialData serves the dashboard record source contract.
func (r *Repository) FinancialData(ctx context.Context, companyID string) ([]analytics.RawRecord, error) {
	return r.ListByCompany(ctx, companyID)
}

// ReplaceSource swaps all records previously loaded from sourceName for the
// provided set inside one transaction.
func (r *Repository) ReplaceSource(ctx context.Context, companyID, sourceName string, records []analytics.RawRecord) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM financial_records WHERE company_id = $1 AND source_name = $2`,
			companyID, sourceName); err != nil {
			return fmt.Errorf("ledger: clear source: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for i, rec := range records {
			batch.Queue(`
INSERT INTO financial_records
    (company_id, source_name, position, id, amount, category, subcategory, line_item_name,
     from_date, to_date, depth, record_source_name)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12)`,
				companyID, sourceName, i, rec.ID, rec.Amount.String(),
				rec.Category, rec.Subcategory, rec.LineItemName,
				dateArg(rec.FromDate), dateArg(rec.ToDate), depthArg(rec), rec.SourceName)
		}
		results := tx.SendBatch(ctx, batch)
		for range records {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("ledger: insert record: %w", err)
			}
		}
		return results.Close()
	})
}

func scanRecord(row pgx.Row) (analytics.RawRecord, error) {
	var (
		rec    analytics.RawRecord
		amount string
		source string
		depth  *int
	)
	if err := row.Scan(&rec.ID, &amount, &rec.Category, &rec.Subcategory, &rec.LineItemName,
		&source, &rec.SourceName, &rec.FromDate, &rec.ToDate, &depth); err != nil {
		return analytics.RawRecord{}, err
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		value = decimal.Zero
	}
	rec.Amount = value
	// Records without their own source name report the data source.
	if rec.SourceName == nil {
		rec.SourceName = analytics.StringPtr(source)
	}
	if depth != nil {
		rec.Metadata = &analytics.RecordMetadata{Depth: depth}
	}
	return rec, nil
}

func dateArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format("2006-01-02")
}

func depthArg(rec analytics.RawRecord) interface{} {
	if rec.Metadata == nil || rec.Metadata.Depth == nil {
		return nil
	}
	return *rec.Metadata.Depth
}
