package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/cockroachdb/errors"

	"github.com/okian/scorecard/internal/domain/model"
)

// Client defaults.
const (
	DefaultBaseURL = "http://localhost:9080"
	defaultTimeout = 30 * time.Second
	defaultRetries = 3
	defaultDelay   = 200 * time.Millisecond
	actorHeader    = "X-Actor-ID"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return "http " + strconv.Itoa(e.Status)
	}
	return "http " + strconv.Itoa(e.Status) + ": " + e.Code + ": " + e.Message
}

// transient reports whether a retry may succeed.
func (e *APIError) transient() bool {
	switch e.Status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithActor sets the actor recorded as created_by/updated_by.
func WithActor(actor string) ClientOption {
	return func(c *Client) { c.actor = actor }
}

// WithRetry sets how often transient failures are retried.
func WithRetry(attempts uint, delay time.Duration) ClientOption {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if delay > 0 {
			c.delay = delay
		}
	}
}

// Client calls the scorecard HTTP API.
type Client struct {
	baseURL  string
	http     *http.Client
	actor    string
	attempts uint
	delay    time.Duration
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: defaultTimeout},
		attempts: defaultRetries,
		delay:    defaultDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// do sends one request, retrying transient failures. body is resent whole
// on every attempt.
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string) (response, error) {
	var out response
	err := retry.Do(
		func() error {
			var rd io.Reader = http.NoBody
			if body != nil {
				rd = bytes.NewReader(body)
			}
			req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
			if err != nil {
				return retry.Unrecoverable(errors.Wrap(err, "build request"))
			}
			if contentType != "" {
				req.Header.Set("Content-Type", contentType)
			}
			if c.actor != "" {
				req.Header.Set(actorHeader, c.actor)
			}
			resp, err := c.http.Do(req)
			if err != nil {
				return errors.Wrapf(err, "%s %s", method, path)
			}
			defer func() { _ = resp.Body.Close() }()

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return errors.Wrap(err, "read response")
			}
			if resp.StatusCode >= http.StatusBadRequest {
				apiErr := &APIError{Status: resp.StatusCode}
				_ = json.Unmarshal(data, apiErr)
				return apiErr
			}
			out = response{status: resp.StatusCode, header: resp.Header, body: data}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.transient()
			}
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
	)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return errors.Wrap(json.Unmarshal(resp.body, out), "decode response")
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}
	resp, err := c.do(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	return errors.Wrap(json.Unmarshal(resp.body, out), "decode response")
}

// Health checks /healthz.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil, "")
	return err
}

// SaveAgent creates or replaces an agent.
func (c *Client) SaveAgent(ctx context.Context, a model.Agent) (model.Agent, error) {
	var out model.Agent
	err := c.sendJSON(ctx, http.MethodPost, "/api/v1/agents", map[string]any{
		"id":           a.ID,
		"email":        a.Email,
		"employeeId":   a.EmployeeID,
		"name":         a.Name,
		"role":         a.Role,
		"teamLeaderId": a.TeamLeaderID,
		"managerId":    a.ManagerID,
		"weights":      a.Weights,
	}, &out)
	return out, err
}

// Import uploads a file and waits for the server to apply it.
func (c *Client) Import(ctx context.Context, data []byte, format string) (model.ImportResult, error) {
	var out model.ImportResult
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/imports?"+formatQuery(format).Encode(), data, contentTypeFor(format))
	if err != nil {
		return out, err
	}
	return out, errors.Wrap(json.Unmarshal(resp.body, &out), "decode import result")
}

// SubmitImport queues a file for asynchronous import.
func (c *Client) SubmitImport(ctx context.Context, data []byte, format string) (model.ImportJob, bool, error) {
	q := formatQuery(format)
	q.Set("async", "true")
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/imports?"+q.Encode(), data, contentTypeFor(format))
	if err != nil {
		return model.ImportJob{}, false, err
	}
	var out struct {
		Job       model.ImportJob `json:"job"`
		Duplicate bool            `json:"duplicate"`
	}
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return model.ImportJob{}, false, errors.Wrap(err, "decode import job")
	}
	return out.Job, out.Duplicate, nil
}

// Job reads an import job.
func (c *Client) Job(ctx context.Context, id string) (model.ImportJob, error) {
	var out model.ImportJob
	err := c.getJSON(ctx, "/api/v1/imports/"+url.PathEscape(id), &out)
	return out, err
}

// WaitJob polls until the job is terminal or ctx ends.
func (c *Client) WaitJob(ctx context.Context, id string, every time.Duration) (model.ImportJob, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		job, err := c.Job(ctx, id)
		if err != nil || job.Status.Terminal() {
			return job, err
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ExportQuery filters an export; empty fields are not sent.
type ExportQuery struct {
	Format   string
	From     string
	To       string
	AgentIDs []string
}

// Download is a file returned by the server.
type Download struct {
	Filename string
	Records  int
	Body     []byte
}

// Export downloads records in the import layout.
func (c *Client) Export(ctx context.Context, q ExportQuery) (Download, error) {
	v := formatQuery(q.Format)
	if q.From != "" {
		v.Set("from", q.From)
	}
	if q.To != "" {
		v.Set("to", q.To)
	}
	for _, id := range q.AgentIDs {
		v.Add("agent", id)
	}
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/exports?"+v.Encode(), nil, "")
	if err != nil {
		return Download{}, err
	}
	d := Download{Body: resp.body}
	if _, params, err := mime.ParseMediaType(resp.header.Get("Content-Disposition")); err == nil {
		d.Filename = params["filename"]
	}
	d.Records, _ = strconv.Atoi(resp.header.Get("X-Record-Count"))
	return d, nil
}

// TeamRollup reads a team roll-up.
func (c *Client) TeamRollup(ctx context.Context, leaderID string, p model.Period) (model.TeamRollup, error) {
	var out model.TeamRollup
	err := c.getJSON(ctx, "/api/v1/teams/"+url.PathEscape(leaderID)+"/rollup?"+periodQuery(p).Encode(), &out)
	return out, err
}

// ManagerRollup reads a manager roll-up.
func (c *Client) ManagerRollup(ctx context.Context, managerID string, p model.Period) (model.ManagerRollup, error) {
	var out model.ManagerRollup
	err := c.getJSON(ctx, "/api/v1/managers/"+url.PathEscape(managerID)+"/rollup?"+periodQuery(p).Encode(), &out)
	return out, err
}

// Leaderboard reads the ranking for p.
func (c *Client) Leaderboard(ctx context.Context, p model.Period, limit int) ([]model.RankedAgent, error) {
	q := periodQuery(p)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Entries []model.RankedAgent `json:"entries"`
	}
	err := c.getJSON(ctx, "/api/v1/leaderboard?"+q.Encode(), &out)
	return out.Entries, err
}

func periodQuery(p model.Period) url.Values {
	return url.Values{"month": {strconv.Itoa(p.Month)}, "year": {strconv.Itoa(p.Year)}}
}

func formatQuery(format string) url.Values {
	v := url.Values{}
	if format != "" {
		v.Set("format", format)
	}
	return v
}

func contentTypeFor(format string) string {
	if format == "xlsx" {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}
