package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/dining-menu-sync/internal/docstore"
	"github.com/JakeFAU/dining-menu-sync/internal/menu"
)

// ConfirmWord must be typed to confirm a reset.
const ConfirmWord = "DELETE"

// ErrNotConfirmed is returned when the operator does not confirm a reset.
var ErrNotConfirmed = errors.New("reset not confirmed")

// ResetCollections are wiped by Reset. Global dish records are kept.
var ResetCollections = []string{menu.CollectionDiningHalls, menu.CollectionDiningPoints}

// Confirm prints a warning to out and reads one line from in. Only the exact
// ConfirmWord confirms.
func Confirm(in io.Reader, out io.Writer, collections []string) error {
	fmt.Fprintf(out, "WARNING: this deletes every document in %s, including sub-collections.\n",
		strings.Join(collections, ", "))
	fmt.Fprintf(out, "Type '%s' to confirm: ", ConfirmWord)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read confirmation: %w", err)
	}
	if strings.TrimSpace(line) != ConfirmWord {
		return ErrNotConfirmed
	}
	return nil
}

// Reset recursively deletes each collection and returns how many documents
// were removed per collection.
func Reset(ctx context.Context, store docstore.Store, collections []string, logger *zap.Logger) (map[string]int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	deleted := make(map[string]int, len(collections))
	for _, coll := range collections {
		n, err := store.DeleteCollection(ctx, coll)
		deleted[coll] = n
		if err != nil {
			return deleted, fmt.Errorf("wipe %s: %w", coll, err)
		}
		logger.Info("collection cleared", zap.String("collection", coll), zap.Int("documents", n))
	}
	return deleted, nil
}
