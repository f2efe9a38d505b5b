package store

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/roach88/gqlbridge/internal/wire"
)

// Failure is a non-success response from the remote service.
//
// Status is the HTTP status code, Code the service's status string
// (e.g. FAILED_PRECONDITION) and Message its human-readable message.
type Failure struct {
	Method  string
	Status  int
	Code    string
	Message string
}

func (f *Failure) Error() string {
	if f.Code != "" {
		return fmt.Sprintf("%s: %d %s: %s", f.Method, f.Status, f.Code, f.Message)
	}
	return fmt.Sprintf("%s: %d: %s", f.Method, f.Status, f.Message)
}

// IsFailure returns the Failure in err's chain, if any.
func IsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsIndexMiss reports whether err is the service rejecting a query for lack
// of a composite index: a 400 or 409 whose message mentions "no matching
// index", or any FAILED_PRECONDITION status.
func IsIndexMiss(err error) bool {
	f, ok := IsFailure(err)
	if !ok {
		return false
	}
	if f.Code == wire.StatusFailedPrecondition {
		return true
	}
	if f.Status != http.StatusBadRequest && f.Status != http.StatusConflict {
		return false
	}
	return strings.Contains(strings.ToLower(f.Message), "no matching index")
}
