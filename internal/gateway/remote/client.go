// Package remote talks to the backtest/data service over HTTP/JSON.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"backdesk/internal/config"
	"backdesk/internal/ingest"
	"backdesk/internal/logger"
	"backdesk/internal/market"
	"backdesk/internal/pkg/circuit"

	"golang.org/x/time/rate"
)

var log = logger.Named("remote")

const errorBodyLimit = 4096

// Client wraps the three service endpoints. Historical fetches are paced by
// a token bucket; backtests and downloads are not. All calls share one
// circuit breaker that counts transport errors and 5xx answers.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	token      string
	fetchLimit *rate.Limiter
	breaker    *circuit.Breaker
}

// NewClient builds a client from configuration. TimeoutSeconds 0 leaves
// requests without a deadline beyond the caller's context.
func NewClient(cfg config.RemoteConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("remote.base_url cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse remote.base_url failed: %w", err)
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.FetchRatePerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.FetchRatePerMin/60), 1)
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		token:      strings.TrimSpace(cfg.APIToken),
		fetchLimit: limiter,
		breaker:    circuit.New("remote", cfg.BreakerThreshold, time.Duration(cfg.BreakerCooldownSeconds)*time.Second),
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// HistoricalRequest is the body of POST /api/historical.
type HistoricalRequest struct {
	Ticker    string `json:"ticker"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Interval  string `json:"interval"`
}

// FetchHistorical asks the service for a price history and ingests it.
func (c *Client) FetchHistorical(ctx context.Context, req HistoricalRequest) (*ingest.Load, error) {
	if err := c.fetchLimit.Wait(ctx); err != nil {
		return nil, &NetworkError{Op: "historical", Message: "request cancelled", Err: err}
	}
	body, _, err := c.post(ctx, "historical", "/api/historical", req)
	if err != nil {
		return nil, err
	}
	load, err := ingest.FromHistorical(body)
	if err != nil {
		return nil, fmt.Errorf("historical response: %w", err)
	}
	log.Infof("fetched %s %s..%s (%s): %d records, %d dropped",
		req.Ticker, req.StartDate, req.EndDate, req.Interval, load.Dataset.Len(), load.Dropped)
	return load, nil
}

// RunBacktest submits payload and returns the raw response body; shape
// checks belong to the result package.
func (c *Client) RunBacktest(ctx context.Context, payload any) ([]byte, error) {
	body, _, err := c.post(ctx, "backtest", "/api/backtest", payload)
	return body, err
}

// File is a downloaded blob.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Download posts the dataset and returns the file the service produces.
func (c *Client) Download(ctx context.Context, ds *market.Dataset) (*File, error) {
	if ds == nil {
		return nil, &ingest.InputValidationError{Field: "data", Reason: "no dataset loaded"}
	}
	body, header, err := c.post(ctx, "download", "/api/download", ds)
	if err != nil {
		return nil, err
	}
	return &File{
		Name:        filenameFrom(header.Get("Content-Disposition"), ds.Ticker),
		ContentType: header.Get("Content-Type"),
		Data:        body,
	}, nil
}

func filenameFrom(disposition, ticker string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := strings.TrimSpace(params["filename"]); name != "" {
				return name
			}
		}
	}
	if ticker = strings.TrimSpace(ticker); ticker != "" {
		return ticker + "_historical.json"
	}
	return "data"
}

func (c *Client) post(ctx context.Context, op, path string, payload any) ([]byte, http.Header, error) {
	endpoint := c.resolveEndpoint(path)
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(buf))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	if !c.breaker.Allow() {
		return nil, nil, &NetworkError{Op: op, Message: "service unavailable after repeated failures, retry shortly", Err: circuit.ErrOpen}
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			c.breaker.Abort()
		} else {
			c.breaker.RecordFailure()
		}
		log.Warnf("%s %s failed: %v", op, endpoint.Path, err)
		return nil, nil, &NetworkError{Op: op, Message: "service unreachable", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		c.breaker.RecordFailure()
	} else {
		c.breaker.RecordSuccess()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		netErr := &NetworkError{Op: op, Status: resp.StatusCode, Message: errorMessage(data, resp.Status)}
		log.Warnf("%s %s -> %d: %s", op, endpoint.Path, resp.StatusCode, netErr.Message)
		return nil, nil, netErr
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &NetworkError{Op: op, Message: "reading response failed", Err: err}
	}
	log.Debugf("%s %s -> %d (%d bytes, %s)", op, endpoint.Path, resp.StatusCode, len(data), time.Since(start).Round(time.Millisecond))
	return data, resp.Header, nil
}

func (c *Client) resolveEndpoint(path string) *url.URL {
	base := *c.baseURL
	base.Path = strings.TrimSuffix(base.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	base.RawQuery = ""
	return &base
}
