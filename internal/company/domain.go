package company

import (
	"errors"
	"time"
)

// Supported data source kinds.
const (
	SourceHTTPJSON = "http_json"
	SourceCSV      = "csv"
)

var (
	// ErrNotFound indicates the company or data source does not exist.
	ErrNotFound = errors.New("company: not found")
	// ErrDuplicate indicates a unique code collision.
	ErrDuplicate = errors.New("company: duplicate code")
)

// Company is a tenant whose financial data is shown on the dashboard.
type Company struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DataSource describes where the ETL job extracts records from.
type DataSource struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	URL       string    `json:"url"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CompanyInput is the create/update payload for companies.
type CompanyInput struct {
	Code string `json:"code" validate:"required,max=32"`
	Name string `json:"name" validate:"required,max=200"`
}

// DataSourceInput is the create/update payload for data sources.
type DataSourceInput struct {
	Name    string `json:"name" validate:"required,max=120"`
	Kind    string `json:"kind" validate:"required,oneof=http_json csv"`
	URL     string `json:"url" validate:"required,url"`
	Enabled *bool  `json:"enabled"`
}
