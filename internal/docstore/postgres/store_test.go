package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dining-menu-sync/internal/docstore"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock, "documents")
	require.NoError(t, err)
	store.now = func() time.Time { return time.Unix(1764849600, 0).UTC() }
	return store, mock
}

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "documents; DROP TABLE x")
	require.Error(t, err)
	_, err = NewWithPool(nil, "documents")
	require.Error(t, err)
}

func TestBatchCommitMergesIntoExistingRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	ref := docstore.Doc("diningHalls", "ford-dining-court").Sub("dishes", "tater-tots")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT data FROM documents WHERE path").
		WithArgs(ref.Path()).
		WillReturnRows(mock.NewRows([]string{"data"}).
			AddRow([]byte(`{"name":"Tater Tots","stations":["Grill"],"score":1012}`)))
	mock.ExpectExec("INSERT INTO documents").
		WithArgs(ref.Path(), "diningHalls/ford-dining-court/dishes", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	b := store.NewBatch()
	b.SetMerge(ref, docstore.Fields{
		"currentStation": "Fryer",
		"stations":       docstore.Union("Fryer"),
		"score":          docstore.DefaultOnce{Value: 1000},
	})
	b.SetMerge(ref, docstore.Fields{"stations": docstore.Union("Grill")})
	require.NoError(t, b.Commit(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchCommitRollsBackOnQuotaError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	ref := docstore.Doc("globalDishes", "tater-tots")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT data FROM documents WHERE path").
		WithArgs(ref.Path()).
		WillReturnRows(mock.NewRows([]string{"data"}))
	mock.ExpectExec("INSERT INTO documents").
		WithArgs(ref.Path(), "globalDishes", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "53300", Message: "too many connections"})
	mock.ExpectRollback()

	b := store.NewBatch()
	b.SetMerge(ref, docstore.Fields{"name": "Tater Tots"})
	err := b.Commit(context.Background())
	require.ErrorIs(t, err, docstore.ErrQuotaExceeded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	ref := docstore.Doc("globalDishes", "tater-tots")

	mock.ExpectQuery("SELECT data FROM documents WHERE path").
		WithArgs(ref.Path()).
		WillReturnRows(mock.NewRows([]string{"data"}).AddRow([]byte(`{"name":"Tater Tots","locations":["Ford"]}`)))
	doc, err := store.Get(context.Background(), ref)
	require.NoError(t, err)
	require.Equal(t, docstore.Fields{"name": "Tater Tots", "locations": []any{"Ford"}}, doc)

	mock.ExpectQuery("SELECT data FROM documents WHERE path").
		WithArgs("globalDishes/missing").
		WillReturnRows(mock.NewRows([]string{"data"}))
	_, err = store.Get(context.Background(), docstore.Doc("globalDishes", "missing"))
	require.ErrorIs(t, err, docstore.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCollection(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM documents WHERE path LIKE").
		WithArgs("diningHalls/%").
		WillReturnResult(pgxmock.NewResult("DELETE", 42))

	n, err := store.DeleteCollection(context.Background(), "diningHalls")
	require.NoError(t, err)
	require.Equal(t, 42, n)

	_, err = store.DeleteCollection(context.Background(), "dining_halls")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS documents").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassify(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, classify(&pgconn.PgError{Code: "53200"}), docstore.ErrQuotaExceeded)
	plain := errors.New("boom")
	require.Equal(t, plain, classify(plain))
}

func TestDecode(t *testing.T) {
	t.Parallel()

	fields, err := decode(nil)
	require.NoError(t, err)
	require.Empty(t, fields)

	raw, err := json.Marshal(map[string]any{"tags": []string{"cozy"}})
	require.NoError(t, err)
	fields, err = decode(raw)
	require.NoError(t, err)
	require.Equal(t, []any{"cozy"}, fields["tags"])
}
