// Package dashboard turns one snapshot of a company's financial records into
// the hierarchy and chart views, and tracks what the user is looking at.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ledgerview/ledgerview/internal/analytics"
)

const defaultLoadTimeout = 15 * time.Second

// RecordSource fetches the financial records of one company.
type RecordSource interface {
	FinancialData(ctx context.Context, companyID string) ([]analytics.RawRecord, error)
}

// View is everything rendered for one company from one record snapshot.
type View struct {
	CompanyID  string               `json:"companyId"`
	Hierarchy  []analytics.Node     `json:"hierarchy"`
	Aggregates analytics.Aggregates `json:"aggregates"`
	Records    int                  `json:"records"`
	LoadedAt   time.Time            `json:"loadedAt"`
}

// EmptyView is the view shown when no data could be loaded.
func EmptyView(companyID string) View {
	return View{
		CompanyID:  companyID,
		Hierarchy:  []analytics.Node{},
		Aggregates: analytics.EmptyAggregates(),
	}
}

// LoadObserver is notified of every completed dashboard build.
type LoadObserver interface {
	ObserveDashboardLoad(err error)
}

// Service loads views.
type Service struct {
	source      RecordSource
	hierarchy   *analytics.HierarchyBuilder
	aggregates  *analytics.AggregateBuilder
	logger      *slog.Logger
	group       singleflight.Group
	loadTimeout time.Duration
	now         func() time.Time
	observer    LoadObserver
}

// NewService wires the record source and both builders.
func NewService(source RecordSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		source:      source,
		hierarchy:   analytics.NewHierarchyBuilder(logger),
		aggregates:  analytics.NewAggregateBuilder(logger),
		logger:      logger,
		loadTimeout: defaultLoadTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithObserver attaches a build observer and returns the service.
func (s *Service) WithObserver(observer LoadObserver) *Service {
	s.observer = observer
	return s
}

// Records returns the raw snapshot for the company.
func (s *Service) Records(ctx context.Context, companyID string) ([]analytics.RawRecord, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return nil, ErrNoCompany
	}
	records, err := s.source.FinancialData(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if records == nil {
		records = []analytics.RawRecord{}
	}
	return records, nil
}

// Load fetches one snapshot and runs both builders over it in parallel.
// Concurrent loads of the same company share a single fetch.
func (s *Service) Load(ctx context.Context, companyID string) (View, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return View{}, ErrNoCompany
	}
	resultChan := s.group.DoChan(companyID, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()
		view, err := s.build(loadCtx, companyID)
		if s.observer != nil {
			s.observer.ObserveDashboardLoad(err)
		}
		return view, err
	})
	select {
	case <-ctx.Done():
		return View{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return View{}, res.Err
		}
		return res.Val.(View), nil
	}
}

func (s *Service) build(ctx context.Context, companyID string) (View, error) {
	records, err := s.Records(ctx, companyID)
	if err != nil {
		return View{}, err
	}

	view := View{CompanyID: companyID, Records: len(records), LoadedAt: s.now()}
	var g errgroup.Group
	g.Go(func() error {
		view.Hierarchy = s.hierarchy.Build(records)
		return nil
	})
	g.Go(func() error {
		view.Aggregates = s.aggregates.Build(records)
		return nil
	})
	if err := g.Wait(); err != nil {
		return View{}, err
	}
	s.logger.Debug("dashboard built",
		slog.String("company_id", companyID),
		slog.Int("records", len(records)),
		slog.Int("categories", len(view.Hierarchy)))
	return view, nil
}
