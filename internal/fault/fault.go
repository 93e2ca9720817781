// Package fault classifies the failure modes of ingestion and retrieval so
// callers can branch on what went wrong instead of string-matching errors.
package fault

import (
	"errors"
	"fmt"
)

// Kind identifies a failure mode.
type Kind string

const (
	// Fetch: the blob store was unreachable or the key is missing.
	// Document-level; aborts the document.
	Fetch Kind = "fetch"
	// Extraction: a malformed page or asset. Item-level; the item is skipped.
	Extraction Kind = "extraction"
	// Description: the description model call failed. The asset keeps an
	// empty description.
	Description Kind = "description"
	// Embedding: the embedding model call failed. The chunk or asset is
	// skipped from the index.
	Embedding Kind = "embedding"
	// IndexWrite: an index upsert failed. The chunk is skipped.
	IndexWrite Kind = "index_write"
	// AuthorizationLookup: the grant store was unreachable. Treated as
	// "no access", never propagated.
	AuthorizationLookup Kind = "authorization_lookup"
	// Rerank: the rerank call failed. The original ordering is kept.
	Rerank Kind = "rerank"
)

// Error carries a Kind alongside the wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with a kind and the operation that failed.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf creates a kinded error from a format string.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, unwrapping as needed.
// Returns "" when err carries no kind.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
