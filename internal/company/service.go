package company

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrValidation wraps input that failed validation.
var ErrValidation = errors.New("company: validation failed")

// Service coordinates company and data source management.
type Service struct {
	repo     Repository
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

// NewService wires the repository.
func NewService(repo Repository) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
	}
}

// ListCompanies returns all companies ordered by name.
func (s *Service) ListCompanies(ctx context.Context) ([]Company, error) {
	return s.repo.ListCompanies(ctx)
}

// GetCompany loads one company.
func (s *Service) GetCompany(ctx context.Context, id string) (Company, error) {
	if strings.TrimSpace(id) == "" {
		return Company{}, ErrNotFound
	}
	return s.repo.GetCompany(ctx, id)
}

// CreateCompany validates and stores a new company.
func (s *Service) CreateCompany(ctx context.Context, in CompanyInput) (Company, error) {
	in = normalizeCompany(in)
	if err := s.check(in); err != nil {
		return Company{}, err
	}
	now := s.now()
	return s.repo.CreateCompany(ctx, Company{
		ID:        s.newID(),
		Code:      in.Code,
		Name:      in.Name,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// UpdateCompany replaces the editable fields of a company.
func (s *Service) UpdateCompany(ctx context.Context, id string, in CompanyInput) (Company, error) {
	in = normalizeCompany(in)
	if err := s.check(in); err != nil {
		return Company{}, err
	}
	return s.repo.UpdateCompany(ctx, Company{ID: id, Code: in.Code, Name: in.Name, UpdatedAt: s.now()})
}

// DeleteCompany removes the company; its sources and records cascade.
func (s *Service) DeleteCompany(ctx context.Context, id string) error {
	return s.repo.DeleteCompany(ctx, id)
}

// ListSources returns every data source configured for the company.
func (s *Service) ListSources(ctx context.Context, companyID string) ([]DataSource, error) {
	if _, err := s.GetCompany(ctx, companyID); err != nil {
		return nil, err
	}
	return s.repo.ListSources(ctx, companyID)
}

// EnabledSources returns the data sources the ETL job should read.
func (s *Service) EnabledSources(ctx context.Context, companyID string) ([]DataSource, error) {
	sources, err := s.ListSources(ctx, companyID)
	if err != nil {
		return nil, err
	}
	enabled := sources[:0]
	for _, src := range sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}
	return enabled, nil
}

// CreateSource adds a data source to the company. Sources start enabled
// unless the input says otherwise.
func (s *Service) CreateSource(ctx context.Context, companyID string, in DataSourceInput) (DataSource, error) {
	in = normalizeSource(in)
	if err := s.check(in); err != nil {
		return DataSource{}, err
	}
	if _, err := s.GetCompany(ctx, companyID); err != nil {
		return DataSource{}, err
	}
	now := s.now()
	return s.repo.CreateSource(ctx, DataSource{
		ID:        s.newID(),
		CompanyID: companyID,
		Name:      in.Name,
		Kind:      in.Kind,
		URL:       in.URL,
		Enabled:   in.Enabled == nil || *in.Enabled,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// UpdateSource replaces a data source configuration.
func (s *Service) UpdateSource(ctx context.Context, companyID, id string, in DataSourceInput) (DataSource, error) {
	in = normalizeSource(in)
	if err := s.check(in); err != nil {
		return DataSource{}, err
	}
	current, err := s.repo.GetSource(ctx, companyID, id)
	if err != nil {
		return DataSource{}, err
	}
	current.Name = in.Name
	current.Kind = in.Kind
	current.URL = in.URL
	if in.Enabled != nil {
		current.Enabled = *in.Enabled
	}
	current.UpdatedAt = s.now()
	return s.repo.UpdateSource(ctx, current)
}

// DeleteSource removes a data source.
func (s *Service) DeleteSource(ctx context.Context, companyID, id string) error {
	return s.repo.DeleteSource(ctx, companyID, id)
}

func (s *Service) check(v interface{}) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func normalizeCompany(in CompanyInput) CompanyInput {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	return in
}

func normalizeSource(in DataSourceInput) DataSourceInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Kind = strings.ToLower(strings.TrimSpace(in.Kind))
	in.URL = strings.TrimSpace(in.URL)
	return in
}
