package company

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	companies map[string]Company
	sources   map[string]DataSource
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{companies: map[string]Company{}, sources: map[string]DataSource{}}
}

func (m *memoryRepo) ListCompanies(ctx context.Context) ([]Company, error) {
	out := make([]Company, 0, len(m.companies))
	for _, c := range m.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryRepo) GetCompany(ctx context.Context, id string) (Company, error) {
	c, ok := m.companies[id]
	if !ok {
		return Company{}, ErrNotFound
	}
	return c, nil
}

func (m *memoryRepo) CreateCompany(ctx context.Context, c Company) (Company, error) {
	for _, existing := range m.companies {
		if existing.Code == c.Code {
			return Company{}, ErrDuplicate
		}
	}
	m.companies[c.ID] = c
	return c, nil
}

func (m *memoryRepo) UpdateCompany(ctx context.Context, c Company) (Company, error) {
	current, ok := m.companies[c.ID]
	if !ok {
		return Company{}, ErrNotFound
	}
	current.Code, current.Name, current.UpdatedAt = c.Code, c.Name, c.UpdatedAt
	m.companies[c.ID] = current
	return current, nil
}

func (m *memoryRepo) DeleteCompany(ctx context.Context, id string) error {
	if _, ok := m.companies[id]; !ok {
		return ErrNotFound
	}
	delete(m.companies, id)
	return nil
}

func (m *memoryRepo) ListSources(ctx context.Context, companyID string) ([]DataSource, error) {
	out := make([]DataSource, 0)
	for _, s := range m.sources {
		if s.CompanyID == companyID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryRepo) GetSource(ctx context.Context, companyID, id string) (DataSource, error) {
	s, ok := m.sources[id]
	if !ok || s.CompanyID != companyID {
		return DataSource{}, ErrNotFound
	}
	return s, nil
}

func (m *memoryRepo) CreateSource(ctx context.Context, s DataSource) (DataSource, error) {
	m.sources[s.ID] = s
	return s, nil
}

func (m *memoryRepo) UpdateSource(ctx context.Context, s DataSource) (DataSource, error) {
	m.sources[s.ID] = s
	return s, nil
}

func (m *memoryRepo) DeleteSource(ctx context.Context, companyID, id string) error {
	if _, err := m.GetSource(ctx, companyID, id); err != nil {
		return err
	}
	delete(m.sources, id)
	return nil
}

func newTestService() *Service {
	svc := NewService(newMemoryRepo())
	n := 0
	svc.newID = func() string {
		n++
		return "id-" + string(rune('0'+n))
	}
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestCreateCompanyNormalizesInput(t *testing.T) {
	svc := newTestService()
	c, err := svc.CreateCompany(context.Background(), CompanyInput{Code: " acme ", Name: " Acme Corp "})
	require.NoError(t, err)
	assert.Equal(t, "id-1", c.ID)
	assert.Equal(t, "ACME", c.Code)
	assert.Equal(t, "Acme Corp", c.Name)
	assert.False(t, c.CreatedAt.IsZero())
}

func TestCreateCompanyValidation(t *testing.T) {
	svc := newTestService()
	_, err := svc.CreateCompany(context.Background(), CompanyInput{Code: "  ", Name: "Acme"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "code failed required")
}

func TestCreateCompanyDuplicateCode(t *testing.T) {
	svc := newTestService()
	_, err := svc.CreateCompany(context.Background(), CompanyInput{Code: "ACME", Name: "Acme"})
	require.NoError(t, err)
	_, err = svc.CreateCompany(context.Background(), CompanyInput{Code: "acme", Name: "Other"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestSourcesLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	c, err := svc.CreateCompany(ctx, CompanyInput{Code: "ACME", Name: "Acme"})
	require.NoError(t, err)

	disabled := false
	_, err = svc.CreateSource(ctx, c.ID, DataSourceInput{Name: "erp", Kind: "HTTP_JSON", URL: "https://erp.example.com/records"})
	require.NoError(t, err)
	sheet, err := svc.CreateSource(ctx, c.ID, DataSourceInput{Name: "sheet", Kind: "csv", URL: "https://files.example.com/a.csv", Enabled: &disabled})
	require.NoError(t, err)
	assert.False(t, sheet.Enabled)

	enabled, err := svc.EnabledSources(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, SourceHTTPJSON, enabled[0].Kind)

	on := true
	updated, err := svc.UpdateSource(ctx, c.ID, sheet.ID, DataSourceInput{Name: "sheet", Kind: "csv", URL: "https://files.example.com/b.csv", Enabled: &on})
	require.NoError(t, err)
	assert.True(t, updated.Enabled)
	assert.Equal(t, "https://files.example.com/b.csv", updated.URL)

	enabled, err = svc.EnabledSources(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, enabled, 2)

	require.NoError(t, svc.DeleteSource(ctx, c.ID, sheet.ID))
	all, err := svc.ListSources(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateSourceRejectsUnknownKindAndCompany(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.CreateSource(ctx, "ghost", DataSourceInput{Name: "erp", Kind: "http_json", URL: "https://erp.example.com"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.CreateSource(ctx, "ghost", DataSourceInput{Name: "erp", Kind: "ftp", URL: "https://erp.example.com"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateSource(ctx, "ghost", DataSourceInput{Name: "erp", Kind: "csv", URL: "not a url"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.EnabledSources(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
