// Package store is the remote query executor: a thin JSON-over-HTTP client
// for the document store's query, lookup and commit methods.
//
// Every method performs exactly one logical call. RunQuery follows
// NOT_FINISHED continuation pages, bounded by Config.MaxPages, but never
// retries a failed round trip; retry and fallback policy belong to the
// engine.
//
// # Failures
//
// A non-2xx response becomes a *Failure carrying the HTTP status, the
// service status code and its message. IsIndexMiss recognises the
// missing-composite-index signal:
//
//   - status 400 or 409 with "no matching index" in the message
//   - service status FAILED_PRECONDITION
//
// # Transport
//
//   - Requests wait on a token-bucket limiter before being sent
//   - A static OAuth2 bearer token is attached when Config.Token is set;
//     emulators need none
//   - Config.Timeout bounds each round trip on top of the caller's context
package store
