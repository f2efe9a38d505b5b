package wire

import "encoding/json"

// PartitionID scopes keys and queries to a project, database and namespace.
type PartitionID struct {
	ProjectID   string `json:"projectId,omitempty"`
	DatabaseID  string `json:"databaseId,omitempty"`
	NamespaceID string `json:"namespaceId,omitempty"`
}

// PathElement is one (kind, id|name) pair of a key path.
// ID is a decimal string, as the REST surface encodes 64-bit integers.
type PathElement struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Key identifies an entity.
type Key struct {
	PartitionID *PartitionID  `json:"partitionId,omitempty"`
	Path        []PathElement `json:"path"`
}

// Value is a tagged property value: a single-entry object whose field name
// selects the variant (integerValue, stringValue, ...). An optional
// excludeFromIndexes flag may accompany the tag.
type Value map[string]json.RawMessage

// Entity is a key plus its properties.
type Entity struct {
	Key        *Key             `json:"key,omitempty"`
	Properties map[string]Value `json:"properties,omitempty"`
}

// EntityResult wraps one entity in a query or lookup response.
type EntityResult struct {
	Entity  Entity `json:"entity"`
	Version string `json:"version,omitempty"`
	Cursor  string `json:"cursor,omitempty"`
}

// GqlQuery carries native query text.
type GqlQuery struct {
	QueryString   string `json:"queryString"`
	AllowLiterals bool   `json:"allowLiterals"`
}

// RunQueryRequest is the body of :runQuery.
//
// Exactly one of GqlQuery and Query is set. Query is the structured form the
// service echoes back, used to request further pages.
type RunQueryRequest struct {
	PartitionID *PartitionID    `json:"partitionId,omitempty"`
	GqlQuery    *GqlQuery       `json:"gqlQuery,omitempty"`
	Query       json.RawMessage `json:"query,omitempty"`
}

// More-results states reported by a batch.
const (
	MoreResultsNotFinished   = "NOT_FINISHED"
	MoreResultsAfterLimit    = "MORE_RESULTS_AFTER_LIMIT"
	MoreResultsAfterCursor   = "MORE_RESULTS_AFTER_CURSOR"
	MoreResultsNoMoreResults = "NO_MORE_RESULTS"
)

// Entity result types.
const (
	ResultTypeFull       = "FULL"
	ResultTypeProjection = "PROJECTION"
	ResultTypeKeyOnly    = "KEY_ONLY"
)

// CommitModeNonTransactional applies each mutation independently.
const CommitModeNonTransactional = "NON_TRANSACTIONAL"

// StatusFailedPrecondition is the status reported for a missing index.
const StatusFailedPrecondition = "FAILED_PRECONDITION"

// QueryResultBatch is one page of query results.
type QueryResultBatch struct {
	EntityResultType string         `json:"entityResultType,omitempty"`
	EntityResults    []EntityResult `json:"entityResults,omitempty"`
	EndCursor        string         `json:"endCursor,omitempty"`
	MoreResults      string         `json:"moreResults,omitempty"`
	SkippedResults   int            `json:"skippedResults,omitempty"`
}

// RunQueryResponse is the body returned by :runQuery.
type RunQueryResponse struct {
	Batch QueryResultBatch `json:"batch"`
	Query json.RawMessage  `json:"query,omitempty"`
}

// RunAggregationQueryRequest is the body of :runAggregationQuery.
type RunAggregationQueryRequest struct {
	PartitionID *PartitionID `json:"partitionId,omitempty"`
	GqlQuery    *GqlQuery    `json:"gqlQuery,omitempty"`
}

// AggregationResult holds one row of aggregate values keyed by alias.
type AggregationResult struct {
	AggregateProperties map[string]Value `json:"aggregateProperties"`
}

// AggregationResultBatch is the result set of an aggregation.
type AggregationResultBatch struct {
	AggregationResults []AggregationResult `json:"aggregationResults,omitempty"`
	MoreResults        string              `json:"moreResults,omitempty"`
}

// RunAggregationQueryResponse is the body returned by :runAggregationQuery.
type RunAggregationQueryResponse struct {
	Batch AggregationResultBatch `json:"batch"`
}

// LookupRequest is the body of :lookup.
type LookupRequest struct {
	Keys []Key `json:"keys"`
}

// LookupResponse is the body returned by :lookup.
type LookupResponse struct {
	Found    []EntityResult `json:"found,omitempty"`
	Missing  []EntityResult `json:"missing,omitempty"`
	Deferred []Key          `json:"deferred,omitempty"`
}

// Mutation is one write. Exactly one field is set.
type Mutation struct {
	Insert *Entity `json:"insert,omitempty"`
	Upsert *Entity `json:"upsert,omitempty"`
	Update *Entity `json:"update,omitempty"`
	Delete *Key    `json:"delete,omitempty"`
}

// CommitRequest is the body of :commit.
type CommitRequest struct {
	Mode      string     `json:"mode"`
	Mutations []Mutation `json:"mutations"`
}

// MutationResult reports the outcome of one mutation. Key is set only when
// the store allocated an id.
type MutationResult struct {
	Key     *Key   `json:"key,omitempty"`
	Version string `json:"version,omitempty"`
}

// CommitResponse is the body returned by :commit.
type CommitResponse struct {
	MutationResults []MutationResult `json:"mutationResults,omitempty"`
	IndexUpdates    int              `json:"indexUpdates,omitempty"`
}

// Status is the error object of a failed call.
type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ErrorResponse is the body of a failed call.
type ErrorResponse struct {
	Error Status `json:"error"`
}
