package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/wire"
)

type recordedCall struct {
	Path   string
	Auth   string
	Header string
	Body   map[string]any
}

// recorder is an httptest handler that records requests and replies with
// canned responses in order.
type recorder struct {
	mu        sync.Mutex
	calls     []recordedCall
	responses []cannedResponse
}

type cannedResponse struct {
	status int
	body   string
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	raw, _ := io.ReadAll(req.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	r.mu.Lock()
	r.calls = append(r.calls, recordedCall{
		Path:   req.URL.Path,
		Auth:   req.Header.Get("Authorization"),
		Header: req.Header.Get("Content-Type"),
		Body:   body,
	})
	resp := cannedResponse{status: http.StatusOK, body: `{}`}
	if len(r.responses) > 0 {
		resp = r.responses[0]
		r.responses = r.responses[1:]
	}
	r.mu.Unlock()

	w.WriteHeader(resp.status)
	_, _ = io.WriteString(w, resp.body)
}

func newTestClient(t *testing.T, cfg Config, responses ...cannedResponse) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{responses: responses}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	if cfg.ProjectID == "" {
		cfg.ProjectID = "demo"
	}
	cfg.BaseURL = srv.URL
	return NewClient(cfg), rec
}

const onePage = `{"batch": {"entityResultType": "FULL", "moreResults": "NO_MORE_RESULTS",
  "entityResults": [{"entity": {"key": {"path": [{"kind": "users", "id": "1"}]},
    "properties": {"age": {"integerValue": "16"}}}}]}}`

func TestRunQuery_SendsGqlQuery(t *testing.T) {
	c, rec := newTestClient(t, Config{AllowLiterals: true, NamespaceID: "ns"}, cannedResponse{200, onePage})

	res, err := c.RunQuery(context.Background(), "SELECT * FROM users")
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	assert.Equal(t, wire.ResultTypeFull, res.ResultType)
	assert.Equal(t, 1, res.Pages)

	require.Len(t, rec.calls, 1)
	call := rec.calls[0]
	assert.Equal(t, "/v1/projects/demo:runQuery", call.Path)
	assert.Equal(t, "application/json", call.Header)
	assert.Empty(t, call.Auth)

	gql := call.Body["gqlQuery"].(map[string]any)
	assert.Equal(t, "SELECT * FROM users", gql["queryString"])
	assert.Equal(t, true, gql["allowLiterals"])
	partition := call.Body["partitionId"].(map[string]any)
	assert.Equal(t, "ns", partition["namespaceId"])
}

func TestRunQuery_FollowsContinuationPages(t *testing.T) {
	first := `{"batch": {"moreResults": "NOT_FINISHED", "endCursor": "c1", "skippedResults": 2,
	  "entityResults": [{"entity": {"key": {"path": [{"kind": "users", "id": "1"}]}}}]},
	  "query": {"kind": [{"name": "users"}], "limit": 5, "offset": 2}}`

	c, rec := newTestClient(t, Config{}, cannedResponse{200, first}, cannedResponse{200, onePage})

	res, err := c.RunQuery(context.Background(), "SELECT * FROM users LIMIT 5 OFFSET 2")
	require.NoError(t, err)
	assert.Len(t, res.Entities, 2)
	assert.Equal(t, 2, res.Pages)
	assert.False(t, res.Truncated)

	require.Len(t, rec.calls, 2)
	next := rec.calls[1].Body
	assert.Nil(t, next["gqlQuery"])
	query := next["query"].(map[string]any)
	assert.Equal(t, "c1", query["startCursor"])
	assert.Equal(t, float64(4), query["limit"])
	_, hasOffset := query["offset"]
	assert.False(t, hasOffset)
}

func TestRunQuery_StopsAtMaxPages(t *testing.T) {
	page := `{"batch": {"moreResults": "NOT_FINISHED", "endCursor": "c",
	  "entityResults": [{"entity": {"key": {"path": [{"kind": "users", "id": "1"}]}}}]},
	  "query": {"kind": [{"name": "users"}]}}`

	c, rec := newTestClient(t, Config{MaxPages: 2},
		cannedResponse{200, page}, cannedResponse{200, page}, cannedResponse{200, page})

	res, err := c.RunQuery(context.Background(), "SELECT * FROM users")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.True(t, res.Truncated)
	assert.Len(t, rec.calls, 2)
}

func TestRunQuery_Failure(t *testing.T) {
	body := `{"error": {"code": 400, "status": "FAILED_PRECONDITION", "message": "no matching index found"}}`
	c, _ := newTestClient(t, Config{}, cannedResponse{400, body})

	_, err := c.RunQuery(context.Background(), "SELECT name FROM users WHERE age > 1")
	require.Error(t, err)

	f, ok := IsFailure(err)
	require.True(t, ok)
	assert.Equal(t, MethodRunQuery, f.Method)
	assert.Equal(t, 400, f.Status)
	assert.Equal(t, "FAILED_PRECONDITION", f.Code)
	assert.True(t, IsIndexMiss(err))
}

func TestRunQuery_NonJSONFailureKeepsBody(t *testing.T) {
	c, _ := newTestClient(t, Config{}, cannedResponse{502, "bad gateway\n"})

	_, err := c.RunQuery(context.Background(), "SELECT * FROM users")
	f, ok := IsFailure(err)
	require.True(t, ok)
	assert.Equal(t, "bad gateway", f.Message)
	assert.False(t, IsIndexMiss(err))
}

func TestIsIndexMiss(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"409 no matching index", &Failure{Status: 409, Message: "No Matching Index found"}, true},
		{"400 no matching index", &Failure{Status: 400, Message: "no matching index"}, true},
		{"failed precondition any status", &Failure{Status: 500, Code: "FAILED_PRECONDITION"}, true},
		{"400 other message", &Failure{Status: 400, Message: "syntax error"}, false},
		{"500 no matching index", &Failure{Status: 500, Message: "no matching index"}, false},
		{"not a failure", io.EOF, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsIndexMiss(tt.err))
		})
	}
}

func TestClient_BearerToken(t *testing.T) {
	c, rec := newTestClient(t, Config{Token: "secret"}, cannedResponse{200, onePage})

	_, err := c.RunQuery(context.Background(), "SELECT * FROM users")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", rec.calls[0].Auth)
}

func TestClient_TimeoutBoundsRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, ProjectID: "demo", Timeout: 20 * time.Millisecond})
	_, err := c.RunQuery(context.Background(), "SELECT * FROM users")
	require.Error(t, err)
	_, isFailure := IsFailure(err)
	assert.False(t, isFailure)
}

type countingObserver struct {
	mu       sync.Mutex
	statuses []int
}

func (o *countingObserver) ObserveRequest(_ string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
}

func TestClient_Observer(t *testing.T) {
	rec := &recorder{responses: []cannedResponse{{200, onePage}, {409, `{"error": {"message": "no matching index"}}`}}}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	obs := &countingObserver{}
	c := NewClient(Config{BaseURL: srv.URL, ProjectID: "demo"}, WithObserver(obs))

	_, _ = c.RunQuery(context.Background(), "SELECT * FROM users")
	_, _ = c.RunQuery(context.Background(), "SELECT name FROM users WHERE a = 1")
	assert.Equal(t, []int{200, 409}, obs.statuses)
}

func TestRunAggregationQuery(t *testing.T) {
	body := `{"batch": {"aggregationResults": [{"aggregateProperties": {"total": {"integerValue": "3"}}}]}}`
	c, rec := newTestClient(t, Config{}, cannedResponse{200, body})

	res, err := c.RunAggregationQuery(context.Background(), "AGGREGATE COUNT(*) AS total OVER (SELECT * FROM users)")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Contains(t, res[0].AggregateProperties, "total")
	assert.True(t, strings.HasSuffix(rec.calls[0].Path, ":runAggregationQuery"))
}

func TestLookupAndCommit(t *testing.T) {
	lookup := `{"found": [{"entity": {"key": {"path": [{"kind": "users", "id": "7"}]}}}],
	  "missing": [{"entity": {"key": {"path": [{"kind": "users", "id": "8"}]}}}]}`
	commit := `{"mutationResults": [{"key": {"path": [{"kind": "users", "id": "99"}]}}]}`
	c, rec := newTestClient(t, Config{}, cannedResponse{200, lookup}, cannedResponse{200, commit})

	found, err := c.Lookup(context.Background(), []ir.Key{{{Kind: "users", ID: 7}}, {{Kind: "users", ID: 8}}})
	require.NoError(t, err)
	require.Len(t, found, 1)

	entity := &wire.Entity{Key: wire.KeyFromIR(ir.Key{{Kind: "users"}}, nil)}
	results, err := c.Commit(context.Background(), []wire.Mutation{{Insert: entity}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "99", results[0].Key.Path[0].ID)

	assert.Equal(t, wire.CommitModeNonTransactional, rec.calls[1].Body["mode"])
}

func TestContinuation_PreservesOtherFields(t *testing.T) {
	out, err := continuation(json.RawMessage(`{"kind":[{"name":"k"}],"filter":{"x":1}}`),
		wire.QueryResultBatch{EndCursor: "abc"})
	require.NoError(t, err)

	var q map[string]any
	require.NoError(t, json.Unmarshal(out, &q))
	assert.Equal(t, "abc", q["startCursor"])
	assert.NotNil(t, q["filter"])
	assert.NotContains(t, q, "limit")
}
