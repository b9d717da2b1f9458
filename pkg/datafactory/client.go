// Package datafactory is a thin client for the Azure Data Factory management
// REST API. Query and list operations return lazy streams that hold one page
// in memory at a time; pagination follows continuation tokens for run queries
// and nextLink for resource listings.
package datafactory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"golang.org/x/time/rate"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

const apiVersion = "2018-06-01"

// maxResponseSize caps a single API page (10MB).
const maxResponseSize = 10 * 1024 * 1024

// Window bounds a run query by last-updated time: [After, Before).
type Window struct {
	After  time.Time
	Before time.Time
}

// Client is the surface the extractors pull factory metadata through.
type Client interface {
	QueryActivityRuns(ctx context.Context, resourceGroup, factoryName, pipelineRunID string, window Window) iter.Seq2[map[string]any, error]
	QueryPipelineRuns(ctx context.Context, resourceGroup, factoryName string, window Window) iter.Seq2[map[string]any, error]
	QueryTriggerRuns(ctx context.Context, resourceGroup, factoryName string, window Window) iter.Seq2[map[string]any, error]
	ListPipelines(ctx context.Context, resourceGroup, factoryName string) iter.Seq2[map[string]any, error]
	ListDatasets(ctx context.Context, resourceGroup, factoryName string) iter.Seq2[map[string]any, error]
	ListLinkedServices(ctx context.Context, resourceGroup, factoryName string) iter.Seq2[map[string]any, error]
	ListTriggers(ctx context.Context, resourceGroup, factoryName string) iter.Seq2[map[string]any, error]
}

// Config holds management API connection settings.
type Config struct {
	SubscriptionID string
	TenantID       string
	ClientID       string
	ClientSecret   string
	Endpoint       string
	LoginEndpoint  string
	RequestsPerMin int
	Timeout        time.Duration
}

type client struct {
	cfg     Config
	http    *http.Client
	tokens  *TokenSource
	limiter *rate.Limiter
	logger  ectologger.Logger
}

// NewClient creates a management API client. Requests are rate limited below
// the service-side 1000/min ceiling.
func NewClient(cfg Config, logger ectologger.Logger) Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RequestsPerMin <= 0 {
		cfg.RequestsPerMin = 960
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	return &client{
		cfg:     cfg,
		http:    httpClient,
		tokens:  NewTokenSource(cfg, httpClient, logger),
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMin)/60.0), 1),
		logger:  logger,
	}
}

func (c *client) factoryURL(resourceGroup, factoryName, suffix string) string {
	return fmt.Sprintf("%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.DataFactory/factories/%s/%s?api-version=%s",
		strings.TrimRight(c.cfg.Endpoint, "/"), c.cfg.SubscriptionID, resourceGroup, factoryName, suffix, apiVersion)
}

// QueryActivityRuns streams the activity runs of one pipeline run within the window.
func (c *client) QueryActivityRuns(ctx context.Context, resourceGroup, factoryName, pipelineRunID string, window Window) iter.Seq2[map[string]any, error] {
	url := c.factoryURL(resourceGroup, factoryName, fmt.Sprintf("pipelineruns/%s/queryActivityruns", pipelineRunID))
	return c.queryPages(ctx, url, window)
}

// QueryPipelineRuns streams pipeline runs last updated within the window.
func (c *client) QueryPipelineRuns(ctx context.Context, resourceGroup, factoryName string, window Window) iter.Seq2[map[string]any, error] {
	url := c.factoryURL(resourceGroup, factoryName, "queryPipelineRuns")
	return c.queryPages(ctx, url, window)
}

// QueryTriggerRuns streams trigger runs last updated within the window.
func (c *client) QueryTriggerRuns(ctx context.Context, resourceGroup, factoryName string, window Window) iter.Seq2[map[string]any, error] {
	url := c.factoryURL(resourceGroup, factoryName, "queryTriggerRuns")
	return c.queryPages(ctx, url, window)
}

// ListPipelines streams every pipeline definition in the factory.
func (c *client) ListPipelines(ctx context.Context, resourceGroup, factoryName string) iter.Seq2[map[string]any, error] {
	return c.listPages(ctx, c.factoryURL(resourceGroup, factoryName, "pipelines"))
}

// ListDatasets streams every dataset definition in the factory.
func (c *client) ListDatasets(ctx context.Context, resourceGroup, factoryName string) iter.Seq2[map[string]any, error] {
	return c.listPages(ctx, c.factoryURL(resourceGroup, factoryName, "datasets"))
}

// ListLinkedServices streams every linked service definition in the factory.
func (c *client) ListLinkedServices(ctx context.Context, resourceGroup, factoryName string) iter.Seq2[map[string]any, error] {
	return c.listPages(ctx, c.factoryURL(resourceGroup, factoryName, "linkedservices"))
}

// ListTriggers streams every trigger definition in the factory.
func (c *client) ListTriggers(ctx context.Context, resourceGroup, factoryName string) iter.Seq2[map[string]any, error] {
	return c.listPages(ctx, c.factoryURL(resourceGroup, factoryName, "triggers"))
}

type queryRequest struct {
	LastUpdatedAfter  string `json:"lastUpdatedAfter"`
	LastUpdatedBefore string `json:"lastUpdatedBefore"`
	ContinuationToken string `json:"continuationToken,omitempty"`
}

type runPage struct {
	Value             []map[string]any `json:"value"`
	ContinuationToken string           `json:"continuationToken"`
	NextLink          string           `json:"nextLink"`
}

// queryPages pages a POST query endpoint by continuation token.
func (c *client) queryPages(ctx context.Context, url string, window Window) iter.Seq2[map[string]any, error] {
	return func(yield func(map[string]any, error) bool) {
		ctx, span := tracing.StartSpan(ctx, "datafactory.Client.queryPages")
		defer span.End()

		continuation := ""
		for {
			body := queryRequest{
				LastUpdatedAfter:  window.After.UTC().Format(time.RFC3339),
				LastUpdatedBefore: window.Before.UTC().Format(time.RFC3339),
				ContinuationToken: continuation,
			}

			page, err := c.postJSON(ctx, url, body)
			if err != nil {
				yield(nil, err)
				return
			}

			for _, record := range page.Value {
				if !yield(record, nil) {
					return
				}
			}

			if page.ContinuationToken == "" {
				return
			}
			continuation = page.ContinuationToken
		}
	}
}

// listPages pages a GET listing endpoint by nextLink.
func (c *client) listPages(ctx context.Context, url string) iter.Seq2[map[string]any, error] {
	return func(yield func(map[string]any, error) bool) {
		ctx, span := tracing.StartSpan(ctx, "datafactory.Client.listPages")
		defer span.End()

		next := url
		for next != "" {
			page, err := c.getJSON(ctx, next)
			if err != nil {
				yield(nil, err)
				return
			}

			for _, record := range page.Value {
				if !yield(record, nil) {
					return
				}
			}

			next = page.NextLink
		}
	}
}

func (c *client) postJSON(ctx context.Context, url string, body any) (*runPage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(ctx, req)
}

func (c *client) getJSON(ctx context.Context, url string) (*runPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(ctx, req)
}

func (c *client) do(ctx context.Context, req *http.Request) (*runPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Errorf("Management API request failed: %s %s", req.Method, req.URL.Path)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > maxResponseSize {
		return nil, fmt.Errorf("response body too large: %d bytes (max %d)", len(body), maxResponseSize)
	}

	c.logger.WithContext(ctx).Debugf("Management API %s %s -> %d (%s)",
		req.Method, req.URL.Path, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("management API returned %d: %s", resp.StatusCode, truncate(string(body), 512))
	}

	var page runPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse response body: %w", err)
	}

	return &page, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
