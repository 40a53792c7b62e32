// Package firestoredoc implements docstore.Store on Cloud Firestore.
package firestoredoc

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JakeFAU/dining-menu-sync/internal/docstore"
)

const defaultDeletePageSize = 50

// Config captures the parameters required to connect to Firestore.
type Config struct {
	ProjectID       string
	CredentialsFile string
	DeletePageSize  int
}

// Store writes documents to Firestore.
type Store struct {
	client   *firestore.Client
	pageSize int
	logger   *zap.Logger
}

// New connects to Firestore. An empty ProjectID lets the client detect it
// from the credentials.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect firestore: %w", err)
	}
	pageSize := cfg.DeletePageSize
	if pageSize <= 0 {
		pageSize = defaultDeletePageSize
	}
	return &Store{client: client, pageSize: pageSize, logger: logger}, nil
}

// Close releases the client.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close firestore: %w", err)
	}
	return nil
}

// Get reads a document.
func (s *Store) Get(ctx context.Context, ref docstore.Ref) (docstore.Fields, error) {
	snap, err := s.client.Doc(ref.Path()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("get %s: %w", ref, docstore.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", ref, classify(err))
	}
	return docstore.Fields(snap.Data()), nil
}

// SetMerge applies a single merge write.
func (s *Store) SetMerge(ctx context.Context, ref docstore.Ref, fields docstore.Fields) error {
	b := s.NewBatch()
	b.SetMerge(ref, fields)
	return b.Commit(ctx)
}

// NewBatch starts an empty write batch.
func (s *Store) NewBatch() docstore.Batch {
	return &batch{store: s, read: s.presentFields}
}

// DeleteCollection deletes a collection page by page, descending into the
// sub-collections of each document before deleting it.
func (s *Store) DeleteCollection(ctx context.Context, collection string) (int, error) {
	return s.deleteCollection(ctx, s.client.Collection(collection))
}

func (s *Store) deleteCollection(ctx context.Context, coll *firestore.CollectionRef) (int, error) {
	deleted := 0
	for {
		docs, err := coll.Limit(s.pageSize).Documents(ctx).GetAll()
		if err != nil {
			return deleted, fmt.Errorf("list %s: %w", coll.Path, classify(err))
		}
		for _, doc := range docs {
			subs, err := doc.Ref.Collections(ctx).GetAll()
			if err != nil {
				return deleted, fmt.Errorf("list sub-collections of %s: %w", doc.Ref.Path, classify(err))
			}
			for _, sub := range subs {
				n, err := s.deleteCollection(ctx, sub)
				deleted += n
				if err != nil {
					return deleted, err
				}
			}
			s.logger.Debug("deleting document", zap.String("path", doc.Ref.Path))
			if _, err := doc.Ref.Delete(ctx); err != nil {
				return deleted, fmt.Errorf("delete %s: %w", doc.Ref.Path, classify(err))
			}
			deleted++
		}
		if len(docs) < s.pageSize {
			return deleted, nil
		}
	}
}

// presenceReader reports, per document path, which fields the stored
// document already holds. Missing documents map to an empty set.
type presenceReader func(ctx context.Context, paths []string) (map[string]map[string]bool, error)

type pendingWrite struct {
	path   string
	fields docstore.Fields
}

type encodedWrite struct {
	path string
	data map[string]interface{}
}

type batch struct {
	store  *Store
	read   presenceReader
	writes []pendingWrite
}

func (b *batch) SetMerge(ref docstore.Ref, fields docstore.Fields) {
	b.writes = append(b.writes, pendingWrite{path: ref.Path(), fields: fields})
}

func (b *batch) Len() int { return len(b.writes) }

// Commit resolves default-once fields with one read, then commits every write
// in a single Firestore batch.
func (b *batch) Commit(ctx context.Context) error {
	if len(b.writes) == 0 {
		return nil
	}
	encoded, err := b.encodeAll(ctx)
	if err != nil {
		return err
	}
	wb := b.store.client.Batch()
	for _, w := range encoded {
		wb.Set(b.store.client.Doc(w.path), w.data, firestore.MergeAll)
	}
	if _, err := wb.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch of %d writes: %w", len(b.writes), classify(err))
	}
	return nil
}

// encodeAll reads the documents that carry default-once fields and encodes
// the queued writes in order.
func (b *batch) encodeAll(ctx context.Context) ([]encodedWrite, error) {
	var paths []string
	seen := make(map[string]bool)
	for _, w := range b.writes {
		if !hasDefaults(w.fields) || seen[w.path] {
			continue
		}
		seen[w.path] = true
		paths = append(paths, w.path)
	}
	present := make(map[string]map[string]bool, len(paths))
	if len(paths) > 0 {
		read, err := b.read(ctx, paths)
		if err != nil {
			return nil, err
		}
		for path, fields := range read {
			present[path] = fields
		}
	}
	out := make([]encodedWrite, 0, len(b.writes))
	for _, w := range b.writes {
		fields := present[w.path]
		out = append(out, encodedWrite{path: w.path, data: encode(w.fields, fields)})
		if !hasDefaults(w.fields) {
			continue
		}
		// Later writes to the same document see the defaults set here.
		if fields == nil {
			fields = make(map[string]bool)
			present[w.path] = fields
		}
		for k, v := range w.fields {
			if _, ok := v.(docstore.DefaultOnce); ok {
				fields[k] = true
			}
		}
	}
	return out, nil
}

func (s *Store) presentFields(ctx context.Context, paths []string) (map[string]map[string]bool, error) {
	refs := make([]*firestore.DocumentRef, len(paths))
	for i, path := range paths {
		refs[i] = s.client.Doc(path)
	}
	snaps, err := s.client.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("read defaults: %w", classify(err))
	}
	present := make(map[string]map[string]bool, len(snaps))
	for i, snap := range snaps {
		fields := make(map[string]bool)
		if snap.Exists() {
			for k := range snap.Data() {
				fields[k] = true
			}
		}
		present[paths[i]] = fields
	}
	return present, nil
}

func hasDefaults(fields docstore.Fields) bool {
	for _, v := range fields {
		if _, ok := v.(docstore.DefaultOnce); ok {
			return true
		}
	}
	return false
}

func encode(fields docstore.Fields, present map[string]bool) map[string]interface{} {
	data := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case docstore.ArrayUnion:
			data[k] = firestore.ArrayUnion(val.Values...)
		case docstore.DefaultOnce:
			if present[k] {
				continue
			}
			data[k] = val.Value
		default:
			if docstore.IsServerTimestamp(v) {
				data[k] = firestore.ServerTimestamp
				continue
			}
			data[k] = v
		}
	}
	return data
}

func classify(err error) error {
	if status.Code(err) == codes.ResourceExhausted && !errors.Is(err, docstore.ErrQuotaExceeded) {
		return fmt.Errorf("%w: %w", docstore.ErrQuotaExceeded, err)
	}
	return err
}
