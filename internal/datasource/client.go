package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/daviddao/cascade_viewer/internal/cascade"
	"github.com/daviddao/cascade_viewer/internal/metrics"
)

// ErrCascadeRunning is returned by SubmitIntent when the procurement
// service is already running a cascade.
var ErrCascadeRunning = errors.New("a cascade is already running")

// ErrNoReport is returned by FetchReport before any cascade has finished.
var ErrNoReport = errors.New("no report available")

// RunInfo summarizes one run known to the bus.
type RunInfo struct {
	RunID      string `json:"run_id"`
	FirstSeen  string `json:"first_seen"`
	LastSeen   string `json:"last_seen"`
	EventCount int    `json:"event_count"`
}

// IntentResponse is the procurement service reply to a submitted intent.
type IntentResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	RunID   string          `json:"run_id"`
	Report  json.RawMessage `json:"report,omitempty"`
}

// Client talks to the event bus and procurement HTTP APIs.
type Client struct {
	http      *http.Client
	endpoints Endpoints
}

// NewClient creates a client. A nil httpClient uses a default with a
// generous timeout, since an intent blocks until the cascade finishes.
func NewClient(endpoints Endpoints, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Client{http: httpClient, endpoints: endpoints}
}

// History fetches up to limit recent events from the bus, most recent
// last. An empty runID returns events from every run.
func (c *Client) History(ctx context.Context, limit int, runID string) (events []cascade.AgentEvent, err error) {
	defer func() { metrics.HTTPRequestsTotal.WithLabelValues("history", metrics.Result(err)).Inc() }()

	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if runID != "" {
		q.Set("run_id", runID)
	}
	u := c.endpoints.HTTPBusURL() + "/events"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	body, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	events, dropped, err := ParseEvents(body)
	if err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if dropped > 0 {
		metrics.FeedDecodeErrors.WithLabelValues("history").Add(float64(dropped))
	}
	return events, nil
}

// Runs lists the runs known to the bus.
func (c *Client) Runs(ctx context.Context) (runs []RunInfo, err error) {
	defer func() { metrics.HTTPRequestsTotal.WithLabelValues("runs", metrics.Result(err)).Inc() }()

	body, err := c.do(ctx, http.MethodGet, c.endpoints.HTTPBusURL()+"/runs", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch runs: %w", err)
	}
	if err := json.Unmarshal(body, &runs); err != nil {
		return nil, fmt.Errorf("decode runs: %w", err)
	}
	return runs, nil
}

// SubmitIntent posts a procurement intent. When runID is empty a new one is
// generated. The returned run id is the one the events will carry.
func (c *Client) SubmitIntent(ctx context.Context, intent, runID string) (id string, resp *IntentResponse, err error) {
	defer func() { metrics.HTTPRequestsTotal.WithLabelValues("intent", metrics.Result(err)).Inc() }()

	if runID == "" {
		runID = uuid.NewString()
	}
	payload, err := json.Marshal(map[string]string{"intent": intent, "run_id": runID})
	if err != nil {
		return "", nil, err
	}

	body, err := c.do(ctx, http.MethodPost, c.endpoints.ProcurementURL+"/intent", payload)
	if err != nil {
		return runID, nil, fmt.Errorf("submit intent: %w", err)
	}
	resp = &IntentResponse{}
	if err := json.Unmarshal(body, resp); err != nil {
		return runID, nil, fmt.Errorf("decode intent response: %w", err)
	}
	if resp.RunID != "" {
		runID = resp.RunID
	}
	return runID, resp, nil
}

// FetchReport returns the report of the last completed cascade.
func (c *Client) FetchReport(ctx context.Context) (report json.RawMessage, err error) {
	defer func() { metrics.HTTPRequestsTotal.WithLabelValues("report", metrics.Result(err)).Inc() }()

	body, err := c.do(ctx, http.MethodGet, c.endpoints.ProcurementURL+"/report", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch report: %w", err)
	}
	if !json.Valid(body) {
		return nil, errors.New("fetch report: invalid JSON")
	}
	return json.RawMessage(body), nil
}

// statusError is a non-2xx reply.
type statusError struct {
	code   int
	detail string
}

func (e *statusError) Error() string {
	if e.detail != "" {
		return fmt.Sprintf("HTTP %d: %s", e.code, e.detail)
	}
	return fmt.Sprintf("HTTP %d", e.code)
}

func (e *statusError) Unwrap() error {
	switch e.code {
	case http.StatusConflict:
		return ErrCascadeRunning
	case http.StatusNotFound:
		return ErrNoReport
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, u string, payload []byte) ([]byte, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &statusError{code: res.StatusCode, detail: detailOf(body)}
	}
	return body, nil
}

// detailOf extracts the error message from a {"detail": ...} body.
func detailOf(body []byte) string {
	var d struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &d); err != nil || len(d.Detail) == 0 {
		return string(bytes.TrimSpace(body))
	}
	var s string
	if err := json.Unmarshal(d.Detail, &s); err == nil {
		return s
	}
	return string(d.Detail)
}
