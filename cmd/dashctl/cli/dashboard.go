// Package cli implements the dashctl commands on top of the API client.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/ledgerview/ledgerview/internal/analytics"
	"github.com/ledgerview/ledgerview/internal/company"
	"github.com/ledgerview/ledgerview/internal/dashboard"
	"github.com/ledgerview/ledgerview/internal/etl"
)

// Exit codes shared by every command.
const (
	ExitOK        = 0
	ExitError     = 1
	ExitJobFailed = 10
)

// API is the subset of the HTTP client the commands use.
type API interface {
	dashboard.RecordSource
	dashboard.SyncTrigger
	etl.StatusFetcher
	Companies(ctx context.Context) ([]company.Company, error)
}

// Options carries the flags shared by every command.
type Options struct {
	JSONOutput bool
	// Depth limits how many hierarchy levels "show" prints. Zero prints all.
	Depth  int
	Stdout io.Writer
	Stderr io.Writer
}

func (o *Options) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

// DashCLI runs dashboard commands against a remote API.
type DashCLI struct {
	api          API
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewDashCLI constructs the command set.
func NewDashCLI(api API, pollInterval time.Duration, logger *slog.Logger) (*DashCLI, error) {
	if api == nil {
		return nil, errors.New("dashctl: api client required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DashCLI{api: api, pollInterval: pollInterval, logger: logger}, nil
}

// CompaniesCommand prints every configured company.
func (c *DashCLI) CompaniesCommand(ctx context.Context, opts Options) int {
	opts.defaults()
	companies, err := c.api.Companies(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "companies: %v\n", err)
		return ExitError
	}
	if opts.JSONOutput {
		return encode(opts, "companies", companies)
	}
	if len(companies) == 0 {
		_, _ = fmt.Fprintln(opts.Stdout, "No companies configured.")
		return ExitOK
	}
	tw := tabwriter.NewWriter(opts.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tCODE\tNAME")
	for _, co := range companies {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", co.ID, co.Code, co.Name)
	}
	_ = tw.Flush()
	return ExitOK
}

// ShowCommand loads and prints the dashboard of one company.
func (c *DashCLI) ShowCommand(ctx context.Context, companyID string, opts Options) int {
	opts.defaults()
	board := c.board(opts)
	view, err := board.Select(ctx, strings.TrimSpace(companyID))
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "show: %v\n", err)
		return ExitError
	}
	return c.output(opts, view)
}

// SyncCommand triggers a synchronization, waits for it and prints the
// refreshed dashboard. A failed job exits with ExitJobFailed.
func (c *DashCLI) SyncCommand(ctx context.Context, companyID string, opts Options) int {
	opts.defaults()
	board := c.board(opts)
	if _, err := board.Select(ctx, strings.TrimSpace(companyID)); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "sync: %v\n", err)
		return ExitError
	}
	_, _ = fmt.Fprintf(opts.Stderr, "synchronizing %s...\n", companyID)
	job, err := board.Sync(ctx)
	switch {
	case errors.Is(err, dashboard.ErrJobFailed):
		return ExitJobFailed
	case err != nil:
		_, _ = fmt.Fprintf(opts.Stderr, "sync: %v\n", err)
		return ExitError
	}
	c.logger.Debug("sync finished", slog.String("job_id", job.ID), slog.Int("records", job.Records))
	return c.output(opts, board.Snapshot().View)
}

func (c *DashCLI) board(opts Options) *dashboard.Board {
	return dashboard.NewBoard(dashboard.BoardConfig{
		Loader:       dashboard.NewService(c.api, c.logger),
		Trigger:      c.api,
		Status:       c.api,
		PollInterval: c.pollInterval,
		Logger:       c.logger,
		Notify: func(n dashboard.Notification) {
			switch n.Kind {
			case dashboard.NoticeJobFailed:
				_, _ = fmt.Fprintf(opts.Stderr, "sync failed: %s\n", n.Message)
			case dashboard.NoticeJobCompleted:
				_, _ = fmt.Fprintf(opts.Stderr, "sync completed: %s\n", n.Message)
			case dashboard.NoticeTransportError:
				_, _ = fmt.Fprintf(opts.Stderr, "error: %s\n", n.Message)
			}
		},
	})
}

func (c *DashCLI) output(opts Options, view dashboard.View) int {
	if opts.JSONOutput {
		return encode(opts, "dashboard", view)
	}
	RenderView(opts.Stdout, view, opts.Depth)
	return ExitOK
}

func encode(opts Options, cmd string, v any) int {
	enc := json.NewEncoder(opts.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "%s: encode json: %v\n", cmd, err)
		return ExitError
	}
	return ExitOK
}

var (
	headingStyle  = lipgloss.NewStyle().Bold(true)
	revenueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff00"))
	expenseStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff0000"))
	treeRootStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#828282"))
)

// RenderView prints the metric summary, charts and hierarchy as text.
func RenderView(out io.Writer, view dashboard.View, depth int) {
	m := view.Aggregates.Metrics
	_, _ = fmt.Fprintln(out, headingStyle.Render(fmt.Sprintf("Company %s (%d records)", view.CompanyID, view.Records)))
	_, _ = fmt.Fprintf(out, "Period: %s\n\n", m.DateRangeLabel)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintf(tw, "Total revenue\t%s\t\n", m.TotalRevenue.StringFixed(2))
	_, _ = fmt.Fprintf(tw, "Total expenses\t%s\t\n", m.TotalExpenses.StringFixed(2))
	_, _ = fmt.Fprintf(tw, "Monthly profit\t%s\t\n", m.MonthlyProfit.StringFixed(2))
	_, _ = fmt.Fprintf(tw, "Profit margin\t%d%%\t\n", m.ProfitMargin)
	_, _ = fmt.Fprintf(tw, "Net assets\t%s\t\n", m.NetAssets.StringFixed(2))
	_, _ = fmt.Fprintf(tw, "Revenue change\t%d%%\t\n", m.RevenueChangePercent)
	_ = tw.Flush()

	if len(view.Aggregates.Monthly) > 0 {
		_, _ = fmt.Fprintln(out, "\n"+headingStyle.Render("Monthly"))
		tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "MONTH\tREVENUE\tEXPENSES")
		for _, b := range view.Aggregates.Monthly {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", b.MonthLabel,
				revenueStyle.Render(b.Revenue.StringFixed(2)),
				expenseStyle.Render(b.Expenses.StringFixed(2)))
		}
		_ = tw.Flush()
	}

	if len(view.Aggregates.Categories) > 0 {
		_, _ = fmt.Fprintln(out, "\n"+headingStyle.Render("Top categories"))
		tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "CATEGORY\tVALUE\tRANGE")
		for _, cat := range view.Aggregates.Categories {
			rng := ""
			if cat.DateRange != nil {
				rng = *cat.DateRange
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", cat.Label, cat.Value.StringFixed(2), rng)
		}
		_ = tw.Flush()
	}

	if len(view.Aggregates.Quarters) > 0 {
		_, _ = fmt.Fprintln(out, "\n"+headingStyle.Render("Quarterly profit"))
		tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, q := range view.Aggregates.Quarters {
			_, _ = fmt.Fprintf(tw, "%s\t%s\n", q.PeriodLabel, q.Profit.StringFixed(2))
		}
		_ = tw.Flush()
	}

	if len(view.Hierarchy) > 0 {
		root := tree.New().Root(treeRootStyle.Render("Hierarchy"))
		addNodes(root, view.Hierarchy, 1, depth)
		_, _ = fmt.Fprintln(out)
		_, _ = fmt.Fprintln(out, root.String())
	}
}

// addNodes attaches nodes to parent; level counts from 1 for top-level nodes.
func addNodes(parent *tree.Tree, nodes []analytics.Node, level, depth int) {
	for _, n := range nodes {
		label := fmt.Sprintf("%s  %s (%s)", n.Label, n.Amount.StringFixed(2), n.Kind)
		if n.HasDuplicates {
			label += " *"
		}
		if len(n.Children) == 0 || (depth > 0 && level >= depth) {
			parent.Child(label)
			continue
		}
		sub := tree.New().Root(label)
		addNodes(sub, n.Children, level+1, depth)
		parent.Child(sub)
	}
}
