package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/gqlbridge/internal/aggregate"
	"github.com/roach88/gqlbridge/internal/fallback"
	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/materialize"
	"github.com/roach88/gqlbridge/internal/queryir"
	"github.com/roach88/gqlbridge/internal/statement"
	"github.com/roach88/gqlbridge/internal/store"
	"github.com/roach88/gqlbridge/internal/wire"
)

// FakeProject is the project id the fake store serves.
const FakeProject = "test-project"

// FakeOptions controls which queries the fake store rejects.
type FakeOptions struct {
	// RejectOr answers 400 to any query containing OR, as the real
	// service does for unsupported disjunctions.
	RejectOr bool

	// RequireIndexes answers 409 "no matching index" to queries that
	// would need a composite index: a filtered projection, or a filter
	// combined with ORDER BY on a property the filter does not mention.
	RequireIndexes bool

	// IDBase is the allocator base; zero uses DefaultIDBase.
	IDBase int64
}

// FakeCall records one request.
type FakeCall struct {
	Method string
	GQL    string
	Status int
}

type fakeEntity struct {
	key   ir.Key
	props ir.Entity
}

type injectedFailure struct {
	method string
	status int
	code   string
	msg    string
}

// FakeStore is an in-memory document store served over HTTP with the same
// JSON surface as the real service. Queries are evaluated with the local
// fallback engine, so results follow the same comparison rules.
type FakeStore struct {
	mu       sync.Mutex
	opts     FakeOptions
	server   *httptest.Server
	ids      *SequentialIDs
	dec      *wire.Decoder
	entities map[string][]fakeEntity
	calls    []FakeCall
	failures []injectedFailure
}

// NewFakeStore starts a fake store. Call Close when done.
func NewFakeStore(opts FakeOptions) *FakeStore {
	base := opts.IDBase
	if base == 0 {
		base = DefaultIDBase
	}
	f := &FakeStore{
		opts:     opts,
		ids:      NewSequentialIDs(base),
		dec:      wire.NewDecoder(),
		entities: make(map[string][]fakeEntity),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	return f
}

// Close stops the server.
func (f *FakeStore) Close() {
	f.server.Close()
}

// Config returns a client configuration pointing at the fake store.
func (f *FakeStore) Config() store.Config {
	return store.Config{
		BaseURL:       f.server.URL,
		ProjectID:     FakeProject,
		AllowLiterals: true,
	}
}

// Put stores an entity, replacing any entity with the same key.
func (f *FakeStore) Put(key ir.Key, props ir.Entity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put(key, props)
}

func (f *FakeStore) put(key ir.Key, props ir.Entity) {
	kind := key.Kind()
	list := f.entities[kind]
	for i, e := range list {
		if e.key.Equal(key) {
			list[i].props = props
			return
		}
	}
	f.entities[kind] = append(list, fakeEntity{key: key, props: props})
}

// Get returns the stored properties for key.
func (f *FakeStore) Get(key ir.Key) (ir.Entity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entities[key.Kind()] {
		if e.key.Equal(key) {
			return e.props, true
		}
	}
	return nil, false
}

// Count returns the number of stored entities of kind.
func (f *FakeStore) Count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entities[kind])
}

// Calls returns the requests served so far.
func (f *FakeStore) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// FailNext makes the next call to method fail with the given status.
func (f *FakeStore) FailNext(method string, status int, code, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, injectedFailure{method: method, status: status, code: code, msg: message})
}

// errStatus is a failure the handler turns into an error response.
type errStatus struct {
	status int
	code   string
	msg    string
}

func (e *errStatus) Error() string { return e.msg }

func (f *FakeStore) serve(w http.ResponseWriter, r *http.Request) {
	_, method, ok := strings.Cut(r.URL.Path, ":")
	if !ok || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	call := FakeCall{Method: method}
	resp, err := f.dispatch(method, body, &call)
	if err != nil {
		es, ok := err.(*errStatus)
		if !ok {
			es = &errStatus{status: http.StatusBadRequest, code: "INVALID_ARGUMENT", msg: err.Error()}
		}
		call.Status = es.status
		f.calls = append(f.calls, call)
		writeJSON(w, es.status, wire.ErrorResponse{Error: wire.Status{Code: es.status, Status: es.code, Message: es.msg}})
		return
	}
	call.Status = http.StatusOK
	f.calls = append(f.calls, call)
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *FakeStore) dispatch(method string, body []byte, call *FakeCall) (any, error) {
	for i, fail := range f.failures {
		if fail.method == method {
			f.failures = slices.Delete(f.failures, i, i+1)
			return nil, &errStatus{status: fail.status, code: fail.code, msg: fail.msg}
		}
	}

	switch method {
	case store.MethodRunQuery:
		var req wire.RunQueryRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, err
		}
		if req.GqlQuery == nil {
			return nil, fmt.Errorf("only gqlQuery is supported")
		}
		call.GQL = req.GqlQuery.QueryString
		return f.runQuery(req.GqlQuery.QueryString)

	case store.MethodRunAggregationQuery:
		var req wire.RunAggregationQueryRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, err
		}
		if req.GqlQuery == nil {
			return nil, fmt.Errorf("only gqlQuery is supported")
		}
		call.GQL = req.GqlQuery.QueryString
		return f.runAggregation(req.GqlQuery.QueryString)

	case store.MethodLookup:
		var req wire.LookupRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, err
		}
		return f.lookup(req)

	case store.MethodCommit:
		var req wire.CommitRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, err
		}
		return f.commit(req)
	}
	return nil, &errStatus{status: http.StatusNotFound, code: "NOT_FOUND", msg: "unknown method " + method}
}

func (f *FakeStore) runQuery(gql string) (*wire.RunQueryResponse, error) {
	sel, err := statement.ParseSelect(gql)
	if err != nil {
		return nil, err
	}
	if err := f.checkSupported(sel); err != nil {
		return nil, err
	}
	matched, err := f.evaluate(sel)
	if err != nil {
		return nil, err
	}

	projection := sel.ProjectedNames()
	resultType := wire.ResultTypeFull
	switch {
	case len(projection) == 1 && materialize.IsKeyName(projection[0]):
		resultType = wire.ResultTypeKeyOnly
	case len(projection) > 0:
		resultType = wire.ResultTypeProjection
	}

	batch := wire.QueryResultBatch{EntityResultType: resultType, MoreResults: wire.MoreResultsNoMoreResults}
	for _, e := range matched {
		props := e.props
		if resultType != wire.ResultTypeFull {
			props = ir.Entity{}
			for _, name := range projection {
				if v, ok := e.props[name]; ok {
					props[name] = v
				}
			}
		}
		ent, err := f.encode(e.key, props)
		if err != nil {
			return nil, err
		}
		batch.EntityResults = append(batch.EntityResults, wire.EntityResult{Entity: *ent})
	}
	return &wire.RunQueryResponse{Batch: batch}, nil
}

func (f *FakeStore) checkSupported(sel *queryir.Select) error {
	if f.opts.RejectOr && slices.ContainsFunc(sel.Where, func(t queryir.Token) bool { return t.Is("OR") }) {
		return &errStatus{status: http.StatusBadRequest, code: "INVALID_ARGUMENT", msg: "OR is not supported in this query"}
	}
	if !f.opts.RequireIndexes || !sel.HasWhere() {
		return nil
	}
	miss := &errStatus{
		status: http.StatusConflict,
		code:   wire.StatusFailedPrecondition,
		msg:    "no matching index found. recommended index is: - kind: " + sel.Kind,
	}
	projection := sel.ProjectedNames()
	if len(projection) > 0 && !(len(projection) == 1 && materialize.IsKeyName(projection[0])) {
		return miss
	}
	for _, o := range sel.OrderBy {
		if !materialize.IsKeyName(o.Field) && !strings.Contains(sel.WhereText, o.Field) {
			return miss
		}
	}
	return nil
}

// evaluate returns the entities a query selects, in result order.
func (f *FakeStore) evaluate(sel *queryir.Select) ([]fakeEntity, error) {
	list := slices.Clone(f.entities[sel.Kind])
	slices.SortStableFunc(list, func(a, b fakeEntity) int {
		return fallback.SortCompare(a.key, b.key)
	})

	byKey := make(map[string]fakeEntity, len(list))
	results := make([]wire.EntityResult, len(list))
	for i, e := range list {
		byKey[ir.Canonical(e.key)] = e
		ent, err := f.encode(e.key, e.props)
		if err != nil {
			return nil, err
		}
		results[i] = wire.EntityResult{Entity: *ent}
	}
	res, err := materialize.New(f.dec).Parse(results, nil)
	if err != nil {
		return nil, err
	}

	spec := queryir.Spec{
		Kind:       sel.Kind,
		Predicate:  statement.ParsePredicate(sel.WhereText),
		OrderBy:    sel.OrderBy,
		Limit:      sel.Limit,
		Offset:     sel.Offset,
		DistinctOn: sel.DistinctOn,
	}
	if sel.Distinct && len(spec.DistinctOn) == 0 {
		spec.DistinctOn = sel.ProjectedNames()
	}
	out := fallback.Apply(res, spec, nil)

	keyIdx := out.Result.Index(materialize.KeyColumn)
	matched := make([]fakeEntity, 0, len(out.Result.Rows))
	for _, row := range out.Result.Rows {
		matched = append(matched, byKey[ir.Canonical(row[keyIdx])])
	}
	return matched, nil
}

func (f *FakeStore) runAggregation(gql string) (*wire.RunAggregationQueryResponse, error) {
	st, err := statement.Classify(gql)
	if err != nil {
		return nil, err
	}
	agg, ok := st.(*queryir.Aggregate)
	if !ok || agg.Inner == nil {
		return nil, fmt.Errorf("not an aggregation query")
	}
	if err := f.checkSupported(agg.Inner); err != nil {
		return nil, err
	}
	matched, err := f.evaluate(agg.Inner)
	if err != nil {
		return nil, err
	}

	rows := make([]wire.EntityResult, len(matched))
	for i, e := range matched {
		ent, err := f.encode(e.key, e.props)
		if err != nil {
			return nil, err
		}
		rows[i] = wire.EntityResult{Entity: *ent}
	}
	res, err := materialize.New(f.dec).Parse(rows, nil)
	if err != nil {
		return nil, err
	}
	computed, err := aggregate.Compute(agg.Calls, res)
	if err != nil {
		return nil, err
	}

	props := make(map[string]wire.Value, len(agg.Calls))
	for i, call := range agg.Calls {
		name := call.Alias
		if name == "" {
			name = fmt.Sprintf("property_%d", i+1)
		}
		v, err := wire.EncodeValue(computed.Rows[0][i])
		if err != nil {
			return nil, err
		}
		props[name] = v
	}
	return &wire.RunAggregationQueryResponse{Batch: wire.AggregationResultBatch{
		AggregationResults: []wire.AggregationResult{{AggregateProperties: props}},
		MoreResults:        wire.MoreResultsNoMoreResults,
	}}, nil
}

func (f *FakeStore) lookup(req wire.LookupRequest) (*wire.LookupResponse, error) {
	resp := &wire.LookupResponse{}
	for i := range req.Keys {
		key, err := wire.KeyToIR(&req.Keys[i])
		if err != nil {
			return nil, err
		}
		found := false
		for _, e := range f.entities[key.Kind()] {
			if e.key.Equal(key) {
				ent, err := f.encode(e.key, e.props)
				if err != nil {
					return nil, err
				}
				resp.Found = append(resp.Found, wire.EntityResult{Entity: *ent})
				found = true
				break
			}
		}
		if !found {
			resp.Missing = append(resp.Missing, wire.EntityResult{Entity: wire.Entity{Key: &req.Keys[i]}})
		}
	}
	return resp, nil
}

func (f *FakeStore) commit(req wire.CommitRequest) (*wire.CommitResponse, error) {
	resp := &wire.CommitResponse{}
	for _, m := range req.Mutations {
		var result wire.MutationResult
		switch {
		case m.Insert != nil, m.Upsert != nil:
			ent := m.Insert
			if ent == nil {
				ent = m.Upsert
			}
			key, props, err := f.decode(ent)
			if err != nil {
				return nil, err
			}
			if !key.Complete() {
				key[len(key)-1].ID = f.ids.Next()
				result.Key = wire.KeyFromIR(key, nil)
			}
			f.put(key, props)

		case m.Update != nil:
			key, props, err := f.decode(m.Update)
			if err != nil {
				return nil, err
			}
			if _, ok := f.find(key); !ok {
				return nil, &errStatus{status: http.StatusNotFound, code: "NOT_FOUND", msg: "no entity to update"}
			}
			f.put(key, props)

		case m.Delete != nil:
			key, err := wire.KeyToIR(m.Delete)
			if err != nil {
				return nil, err
			}
			list := f.entities[key.Kind()]
			f.entities[key.Kind()] = slices.DeleteFunc(list, func(e fakeEntity) bool { return e.key.Equal(key) })
		}
		resp.MutationResults = append(resp.MutationResults, result)
	}
	return resp, nil
}

func (f *FakeStore) find(key ir.Key) (fakeEntity, bool) {
	for _, e := range f.entities[key.Kind()] {
		if e.key.Equal(key) {
			return e, true
		}
	}
	return fakeEntity{}, false
}

func (f *FakeStore) decode(ent *wire.Entity) (ir.Key, ir.Entity, error) {
	key, err := wire.KeyToIR(ent.Key)
	if err != nil {
		return nil, nil, err
	}
	if len(key) == 0 {
		return nil, nil, fmt.Errorf("entity has no key")
	}
	props, err := f.dec.Properties(ent.Properties)
	if err != nil {
		return nil, nil, err
	}
	return key, props, nil
}

func (f *FakeStore) encode(key ir.Key, props ir.Entity) (*wire.Entity, error) {
	wprops, err := wire.EncodeProperties(props)
	if err != nil {
		return nil, err
	}
	return &wire.Entity{Key: wire.KeyFromIR(key, nil), Properties: wprops}, nil
}
