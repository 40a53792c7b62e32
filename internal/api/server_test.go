package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dining-menu-sync/internal/menu"
	"github.com/JakeFAU/dining-menu-sync/internal/metrics"
)

type fakeRunner struct {
	mu      sync.Mutex
	kinds   []string
	release chan struct{}
}

func (f *fakeRunner) Run(_ context.Context, kind string) (menu.RunReport, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	f.kinds = append(f.kinds, kind)
	f.mu.Unlock()
	return menu.RunReport{RunID: "run-1", Kind: kind, Locations: 5}, nil
}

func do(t *testing.T, h http.Handler, method, path, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	t.Parallel()
	s := NewServer(context.Background(), &fakeRunner{}, nil, Config{}, nil)
	assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodGet, "/healthz", "").Code)
	rec := do(t, s.Handler(), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	notReady := NewServer(context.Background(), &fakeRunner{}, func(context.Context) error {
		return errors.New("store unreachable")
	}, Config{}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, notReady.Handler(), http.MethodGet, "/readyz", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	metrics.ObserveFetch("graphql", true)
	s := NewServer(context.Background(), &fakeRunner{}, nil, Config{}, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "menusync_fetches_total")
}

func TestStartRunAndLastReport(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{}
	s := NewServer(context.Background(), runner, nil, Config{APIKey: "secret"}, nil)

	assert.Equal(t, http.StatusForbidden, do(t, s.Handler(), http.MethodPost, "/v1/runs/menus", "").Code)
	assert.Equal(t, http.StatusForbidden, do(t, s.Handler(), http.MethodPost, "/v1/runs/menus", "wrong").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), http.MethodGet, "/v1/runs/menus/last", "secret").Code)

	rec := do(t, s.Handler(), http.MethodPost, "/v1/runs/menus", "secret")
	require.Equal(t, http.StatusAccepted, rec.Code)
	s.Wait()
	assert.Equal(t, []string{"menus"}, runner.kinds)

	rec = do(t, s.Handler(), http.MethodGet, "/v1/runs/menus/last", "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	var report menu.RunReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, 5, report.Locations)
}

func TestStartRunUnknownKind(t *testing.T) {
	t.Parallel()
	s := NewServer(context.Background(), &fakeRunner{}, nil, Config{}, nil)
	rec := do(t, s.Handler(), http.MethodPost, "/v1/runs/weekly", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartRunWhileRunning(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{release: make(chan struct{})}
	s := NewServer(context.Background(), runner, nil, Config{}, nil)

	require.Equal(t, http.StatusAccepted, do(t, s.Handler(), http.MethodPost, "/v1/runs/retail", "").Code)
	rec := do(t, s.Handler(), http.MethodPost, "/v1/runs/menus", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "in progress"))

	close(runner.release)
	s.Wait()
	assert.Equal(t, []string{"retail"}, runner.kinds)
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()
	var served int
	h := apiKeyMiddleware("secret")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		served++
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		key  string
		want int
	}{
		{"", http.StatusForbidden},
		{"secre", http.StatusForbidden},
		{"secret ", http.StatusForbidden},
		{"Secret", http.StatusForbidden},
		{"secret", http.StatusNoContent},
	}
	for _, tc := range cases {
		rec := do(t, h, http.MethodPost, "/v1/runs/menus", tc.key)
		assert.Equal(t, tc.want, rec.Code, "key %q", tc.key)
	}
	assert.Equal(t, 1, served)
}
