// Package docstore defines the hierarchical document store the reconciler
// writes to: keyed documents in collections, non-destructive merge writes,
// array-union and server-timestamp field values, bounded batched commits and
// recursive collection deletes.
package docstore

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get when the document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrQuotaExceeded marks commit failures caused by quota or rate limits.
// Callers abort the whole run when they see it.
var ErrQuotaExceeded = errors.New("store quota exceeded")

// Fields is a partial document. Values may be plain data or one of the
// field transforms below.
type Fields map[string]any

// ArrayUnion appends each value to the stored array unless an equal value is
// already present.
type ArrayUnion struct {
	Values []any
}

// Union builds an ArrayUnion transform.
func Union(values ...any) ArrayUnion {
	return ArrayUnion{Values: values}
}

// DefaultOnce sets the field only when the stored document lacks it.
type DefaultOnce struct {
	Value any
}

type serverTimestamp struct{}

// ServerTimestamp is replaced by the commit time assigned by the store.
var ServerTimestamp = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Ref addresses a document as "collection/id[/collection/id...]".
type Ref struct {
	path string
}

// Doc returns a reference to a top-level document.
func Doc(collection, id string) Ref {
	return Ref{path: collection + "/" + id}
}

// Sub returns a reference to a document in a sub-collection of r.
func (r Ref) Sub(collection, id string) Ref {
	return Ref{path: r.path + "/" + collection + "/" + id}
}

// Path returns the slash-separated document path.
func (r Ref) Path() string { return r.path }

// ID returns the last path segment.
func (r Ref) ID() string {
	return r.path[strings.LastIndex(r.path, "/")+1:]
}

// Collection returns the path of the collection holding the document.
func (r Ref) Collection() string {
	idx := strings.LastIndex(r.path, "/")
	if idx < 0 {
		return ""
	}
	return r.path[:idx]
}

func (r Ref) String() string { return r.path }

// Batch queues merge writes and commits them atomically.
type Batch interface {
	SetMerge(ref Ref, fields Fields)
	Len() int
	Commit(ctx context.Context) error
}

// Store is the persisted store used by the reconciler and the jobs.
type Store interface {
	Get(ctx context.Context, ref Ref) (Fields, error)
	SetMerge(ctx context.Context, ref Ref, fields Fields) error
	NewBatch() Batch
	// DeleteCollection removes every document in a top-level collection and
	// all of their sub-collections, returning the number of documents removed.
	DeleteCollection(ctx context.Context, collection string) (int, error)
	Close() error
}

// IsQuota reports whether err signals quota or rate-limit exhaustion, either
// through ErrQuotaExceeded or through the wording backends use for it.
func IsQuota(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "resourceexhausted")
}
