package company

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository persists companies and their data sources.
type Repository interface {
	ListCompanies(ctx context.Context) ([]Company, error)
	GetCompany(ctx context.Context, id string) (Company, error)
	CreateCompany(ctx context.Context, c Company) (Company, error)
	UpdateCompany(ctx context.Context, c Company) (Company, error)
	DeleteCompany(ctx context.Context, id string) error

	ListSources(ctx context.Context, companyID string) ([]DataSource, error)
	GetSource(ctx context.Context, companyID, id string) (DataSource, error)
	CreateSource(ctx context.Context, s DataSource) (DataSource, error)
	UpdateSource(ctx context.Context, s DataSource) (DataSource, error)
	DeleteSource(ctx context.Context, companyID, id string) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db dbtx
}

// NewRepository builds a Postgres backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const companyColumns = `id, code, name, created_at, updated_at`

func (r *repository) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := r.db.Query(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	companies := make([]Company, 0)
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (r *repository) GetCompany(ctx context.Context, id string) (Company, error) {
	var c Company
	err := r.db.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id).
		Scan(&c.ID, &c.Code, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Company{}, ErrNotFound
	}
	return c, err
}

func (r *repository) CreateCompany(ctx context.Context, c Company) (Company, error) {
	_, err := r.db.Exec(ctx,
		`INSERT INTO companies (id, code, name, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Code, c.Name, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return Company{}, mapWriteError(err)
	}
	return c, nil
}

func (r *repository) UpdateCompany(ctx context.Context, c Company) (Company, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE companies SET code = $2, name = $3, updated_at = $4 WHERE id = $1`,
		c.ID, c.Code, c.Name, c.UpdatedAt)
	if err != nil {
		return Company{}, mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return Company{}, ErrNotFound
	}
	return r.GetCompany(ctx, c.ID)
}

func (r *repository) DeleteCompany(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const sourceColumns = `id, company_id, name, kind, url, enabled, created_at, updated_at`

func (r *repository) ListSources(ctx context.Context, companyID string) ([]DataSource, error) {
	rows, err := r.db.Query(ctx, `SELECT `+sourceColumns+` FROM data_sources WHERE company_id = $1 ORDER BY name`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sources := make([]DataSource, 0)
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

func (r *repository) GetSource(ctx context.Context, companyID, id string) (DataSource, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sourceColumns+` FROM data_sources WHERE company_id = $1 AND id = $2`, companyID, id)
	s, err := scanSource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return DataSource{}, ErrNotFound
	}
	return s, err
}

func (r *repository) CreateSource(ctx context.Context, s DataSource) (DataSource, error) {
	_, err := r.db.Exec(ctx,
		`INSERT INTO data_sources (id, company_id, name, kind, url, enabled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.CompanyID, s.Name, s.Kind, s.URL, s.Enabled, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return DataSource{}, mapWriteError(err)
	}
	return s, nil
}

func (r *repository) UpdateSource(ctx context.Context, s DataSource) (DataSource, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE data_sources SET name = $3, kind = $4, url = $5, enabled = $6, updated_at = $7
		 WHERE company_id = $1 AND id = $2`,
		s.CompanyID, s.ID, s.Name, s.Kind, s.URL, s.Enabled, s.UpdatedAt)
	if err != nil {
		return DataSource{}, mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return DataSource{}, ErrNotFound
	}
	return r.GetSource(ctx, s.CompanyID, s.ID)
}

func (r *repository) DeleteSource(ctx context.Context, companyID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM data_sources WHERE company_id = $1 AND id = $2`, companyID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSource(row pgx.Row) (DataSource, error) {
	var s DataSource
	err := row.Scan(&s.ID, &s.CompanyID, &s.Name, &s.Kind, &s.URL, &s.Enabled, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
