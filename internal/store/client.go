package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/wire"
)

// Remote methods.
const (
	MethodRunQuery            = "runQuery"
	MethodRunAggregationQuery = "runAggregationQuery"
	MethodLookup              = "lookup"
	MethodCommit              = "commit"
)

// Config holds the remote connection settings.
type Config struct {
	// BaseURL is the service root, e.g. https://datastore.googleapis.com or
	// an emulator address.
	BaseURL     string
	ProjectID   string
	DatabaseID  string
	NamespaceID string

	// Token is a static OAuth2 access token. Empty sends no credentials,
	// which is what emulators expect.
	Token string

	AllowLiterals bool

	// Timeout bounds a single round trip. Zero means no bound beyond ctx.
	Timeout time.Duration

	// MaxPages bounds how many NOT_FINISHED continuations a query follows.
	MaxPages int

	// RequestsPerSecond and Burst configure the client-side limiter.
	// A non-positive rate disables limiting.
	RequestsPerSecond float64
	Burst             int
}

// RequestObserver is notified after every round trip.
// status is the HTTP status, or 0 when the request never got a response.
type RequestObserver interface {
	ObserveRequest(method string, status int, elapsed time.Duration)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithObserver registers a request observer.
func WithObserver(o RequestObserver) Option {
	return func(c *Client) { c.observer = o }
}

// Client talks to the remote query service.
//
// Client performs exactly one attempt per call; retry and fallback policy
// belong to the caller. A Client is safe for concurrent use.
type Client struct {
	cfg       Config
	http      *http.Client
	limiter   *rate.Limiter
	partition *wire.PartitionID
	observer  RequestObserver
}

// NewClient creates a Client.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{},
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	if cfg.ProjectID != "" || cfg.DatabaseID != "" || cfg.NamespaceID != "" {
		c.partition = &wire.PartitionID{
			ProjectID:   cfg.ProjectID,
			DatabaseID:  cfg.DatabaseID,
			NamespaceID: cfg.NamespaceID,
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.Token != "" {
		base := c.http.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		authed := *c.http
		authed.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}),
			Base:   base,
		}
		c.http = &authed
	}
	return c
}

// Partition returns the partition keys are written into.
func (c *Client) Partition() *wire.PartitionID {
	return c.partition
}

// QueryResult is the outcome of a query, across all followed pages.
//
// Truncated is set when the store still had results after MaxPages pages;
// Entities then holds only the entities of the pages that were read.
type QueryResult struct {
	ResultType string
	Entities   []wire.EntityResult
	Pages      int
	Truncated  bool
}

// RunQuery executes native query text and follows continuation pages.
func (c *Client) RunQuery(ctx context.Context, gql string) (*QueryResult, error) {
	req := wire.RunQueryRequest{
		PartitionID: c.partition,
		GqlQuery:    &wire.GqlQuery{QueryString: gql, AllowLiterals: c.cfg.AllowLiterals},
	}

	out := &QueryResult{}
	for {
		var resp wire.RunQueryResponse
		if err := c.call(ctx, MethodRunQuery, req, &resp); err != nil {
			return nil, err
		}
		out.Pages++
		if out.ResultType == "" {
			out.ResultType = resp.Batch.EntityResultType
		}
		out.Entities = append(out.Entities, resp.Batch.EntityResults...)

		if resp.Batch.MoreResults != wire.MoreResultsNotFinished || len(resp.Query) == 0 {
			break
		}
		if c.cfg.MaxPages > 0 && out.Pages >= c.cfg.MaxPages {
			slog.Warn("query page limit reached", "pages", out.Pages, "entities", len(out.Entities))
			out.Truncated = true
			break
		}
		next, err := continuation(resp.Query, resp.Batch)
		if err != nil {
			return nil, fmt.Errorf("build continuation: %w", err)
		}
		req = wire.RunQueryRequest{PartitionID: c.partition, Query: next}
	}
	return out, nil
}

// continuation rewrites the echoed structured query to resume after batch:
// startCursor moves to the batch end, and offset and limit shrink by what
// the batch already consumed.
func continuation(query json.RawMessage, batch wire.QueryResultBatch) (json.RawMessage, error) {
	var q map[string]any
	if err := json.Unmarshal(query, &q); err != nil {
		return nil, err
	}
	q["startCursor"] = batch.EndCursor
	if off, ok := q["offset"].(float64); ok {
		remaining := int(off) - batch.SkippedResults
		if remaining > 0 {
			q["offset"] = remaining
		} else {
			delete(q, "offset")
		}
	}
	if lim, ok := q["limit"].(float64); ok {
		q["limit"] = max(int(lim)-len(batch.EntityResults), 0)
	}
	return json.Marshal(q)
}

// RunAggregationQuery executes a native AGGREGATE query.
func (c *Client) RunAggregationQuery(ctx context.Context, gql string) ([]wire.AggregationResult, error) {
	req := wire.RunAggregationQueryRequest{
		PartitionID: c.partition,
		GqlQuery:    &wire.GqlQuery{QueryString: gql, AllowLiterals: c.cfg.AllowLiterals},
	}
	var resp wire.RunAggregationQueryResponse
	if err := c.call(ctx, MethodRunAggregationQuery, req, &resp); err != nil {
		return nil, err
	}
	return resp.Batch.AggregationResults, nil
}

// Lookup fetches entities by key. Missing keys are simply absent.
func (c *Client) Lookup(ctx context.Context, keys []ir.Key) ([]wire.EntityResult, error) {
	req := wire.LookupRequest{Keys: make([]wire.Key, len(keys))}
	for i, k := range keys {
		req.Keys[i] = *wire.KeyFromIR(k, c.partition)
	}
	var resp wire.LookupResponse
	if err := c.call(ctx, MethodLookup, req, &resp); err != nil {
		return nil, err
	}
	return resp.Found, nil
}

// Commit applies mutations non-transactionally.
func (c *Client) Commit(ctx context.Context, mutations []wire.Mutation) ([]wire.MutationResult, error) {
	req := wire.CommitRequest{Mode: wire.CommitModeNonTransactional, Mutations: mutations}
	var resp wire.CommitResponse
	if err := c.call(ctx, MethodCommit, req, &resp); err != nil {
		return nil, err
	}
	return resp.MutationResults, nil
}

// call performs one POST round trip.
func (c *Client) call(ctx context.Context, method string, body, out any) error {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limit: %w", method, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", method, err)
	}
	url := fmt.Sprintf("%s/v1/projects/%s:%s", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.ProjectID, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(method, 0, start)
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	c.observe(method, resp.StatusCode, start)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", method, err)
	}
	slog.Debug("remote call", "method", method, "status", resp.StatusCode, "bytes", len(raw))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeFailure(method, resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	return nil
}

func (c *Client) observe(method string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveRequest(method, status, time.Since(start))
	}
}

func decodeFailure(method string, status int, raw []byte) *Failure {
	f := &Failure{Method: method, Status: status}
	var er wire.ErrorResponse
	if err := json.Unmarshal(raw, &er); err == nil && (er.Error.Message != "" || er.Error.Status != "") {
		f.Code = er.Error.Status
		f.Message = er.Error.Message
		return f
	}
	f.Message = strings.TrimSpace(string(raw))
	return f
}
