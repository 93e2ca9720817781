// Package grants answers which documents a user may read. Grants map a
// document key to a list of users; a key of "*" covers every document.
package grants

import (
	"context"
	"log/slog"
	"strings"

	"github.com/docsift/docsift/internal/fault"
)

// Wildcard as a document key grants access to every source.
const Wildcard = "*"

// Grant allows a set of users to read documents matching one key.
type Grant struct {
	DocumentKey string
	Users       []string
}

// Store lists access grants. Implementations must be safe for
// concurrent use.
type Store interface {
	List(ctx context.Context) ([]Grant, error)
}

// Resolver computes a user's authorized document keys. Lookup failures
// deny access instead of failing the request, so a broken grant store
// degrades to empty search results rather than errors.
type Resolver struct {
	store Store
	log   *slog.Logger
}

func NewResolver(store Store, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{store: store, log: log}
}

// AuthorizedKeys returns the document keys granted to user. A wildcard
// grant collapses the result to a single Wildcard entry.
func (r *Resolver) AuthorizedKeys(ctx context.Context, user string) []string {
	all, err := r.store.List(ctx)
	if err != nil {
		r.log.Error("grant lookup failed, denying access",
			"user", user,
			"fault", string(fault.AuthorizationLookup),
			"error", err)
		return nil
	}

	var keys []string
	for _, g := range all {
		for _, u := range g.Users {
			if u != user {
				continue
			}
			if g.DocumentKey == Wildcard {
				return []string{Wildcard}
			}
			keys = append(keys, g.DocumentKey)
			break
		}
	}
	return keys
}

// PermittedSources filters sources down to the ones covered by keys. A
// key covers a source when the source contains it as a substring, so a
// grant on "guide.pdf" matches both "guide.pdf" and
// "archive/guide.pdf". The Wildcard key permits every source.
func PermittedSources(keys, sources []string) []string {
	if len(keys) == 0 {
		return nil
	}
	for _, key := range keys {
		if key == Wildcard {
			return sources
		}
	}

	var permitted []string
	for _, source := range sources {
		for _, key := range keys {
			if strings.Contains(source, key) {
				permitted = append(permitted, source)
				break
			}
		}
	}
	return permitted
}
