// Package archive keeps raw menu API responses so a run can be audited or
// replayed after the fact.
package archive

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/dining-menu-sync/internal/menu"
)

const contentTypeJSON = "application/json"

// Recorder names and writes raw payload snapshots. A nil Recorder, or one
// without a backend, drops every snapshot.
type Recorder struct {
	store  menu.Archive
	hasher menu.Hasher
	prefix string
	logger *zap.Logger
}

// NewRecorder builds a Recorder. Objects are written below prefix.
func NewRecorder(store menu.Archive, hasher menu.Hasher, prefix string, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, hasher: hasher, prefix: strings.Trim(prefix, "/"), logger: logger}
}

// Record writes raw as <prefix>/<kind>/<date>/<location>-<digest>.json and
// returns its URI. Identical payloads map to the same object.
func (r *Recorder) Record(ctx context.Context, kind, date, location string, raw []byte) (string, error) {
	if r == nil || r.store == nil || len(raw) == 0 {
		return "", nil
	}
	digest, err := r.hasher.Hash(raw)
	if err != nil {
		return "", fmt.Errorf("hash payload: %w", err)
	}
	if len(digest) > 12 {
		digest = digest[:12]
	}
	name := fmt.Sprintf("%s-%s.json", location, digest)
	objectPath := path.Join(r.prefix, kind, date, name)
	uri, err := r.store.PutObject(ctx, objectPath, contentTypeJSON, raw)
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", objectPath, err)
	}
	r.logger.Debug("payload archived", zap.String("uri", uri))
	return uri, nil
}
