// Package client talks to the ledgerview HTTP API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ledgerview/ledgerview/internal/analytics"
	"github.com/ledgerview/ledgerview/internal/company"
	"github.com/ledgerview/ledgerview/internal/etl"
	"github.com/ledgerview/ledgerview/internal/platform/httpx"
)

const defaultTimeout = 15 * time.Second

// Client is a thin JSON client for the API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// New builds a client for the API rooted at baseURL.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("client: base url must be absolute")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: u, http: httpClient}, nil
}

// Companies lists every configured company.
func (c *Client) Companies(ctx context.Context) ([]company.Company, error) {
	var out struct {
		Data []company.Company `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/companies/", &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// FinancialData fetches the record envelope of a company.
func (c *Client) FinancialData(ctx context.Context, companyID string) ([]analytics.RawRecord, error) {
	var env analytics.Envelope
	if err := c.do(ctx, http.MethodGet, "/api/companies/"+url.PathEscape(companyID)+"/financial-data", &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		env.Data = []analytics.RawRecord{}
	}
	return env.Data, nil
}

// TriggerSync starts an ETL job and returns its id.
func (c *Client) TriggerSync(ctx context.Context, companyID string) (string, error) {
	var out struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/companies/"+url.PathEscape(companyID)+"/etl", &out); err != nil {
		return "", err
	}
	if out.JobID == "" {
		return "", errors.New("client: trigger response carried no job id")
	}
	return out.JobID, nil
}

// JobStatus reads the state of a job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (etl.Job, error) {
	var job etl.Job
	if err := c.do(ctx, http.MethodGet, "/api/etl/jobs/"+url.PathEscape(jobID), &job); err != nil {
		return etl.Job{}, err
	}
	return job, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeProblem(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s: %w", path, err)
	}
	return nil
}

func decodeProblem(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if httpx.IsProblem(resp.Header.Get("Content-Type")) {
		var problem httpx.ProblemDetail
		if err := json.Unmarshal(body, &problem); err == nil && problem.Title != "" {
			return &StatusError{Code: resp.StatusCode, Problem: problem}
		}
	}
	title := http.StatusText(resp.StatusCode)
	return &StatusError{Code: resp.StatusCode, Problem: httpx.ProblemDetail{
		Title:  title,
		Status: resp.StatusCode,
		Detail: strings.TrimSpace(string(body)),
	}}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Problem httpx.ProblemDetail
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: %d %s", e.Code, e.Problem.Error())
}
