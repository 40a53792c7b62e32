package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/dining-menu-sync/internal/app"
	"github.com/JakeFAU/dining-menu-sync/internal/config"
	"github.com/JakeFAU/dining-menu-sync/internal/docstore"
	"github.com/JakeFAU/dining-menu-sync/internal/reconcile"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestNew_MemoryBackend(t *testing.T) {
	cfg := baseConfig(t)
	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	assert.NotNil(t, a.Store)
	assert.NotNil(t, a.Source)
	assert.NotNil(t, a.Runner)
	assert.Equal(t, "America/Indiana/Indianapolis", a.Clock.Now().Location().String())
	assert.NoError(t, a.Ready(context.Background()))
}

func TestNew_LocalArchive(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Archive.Backend = config.ArchiveLocal
	cfg.Archive.Dir = t.TempDir()

	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.NoError(t, a.Close())
}

func TestNew_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown store", func(c *config.Config) { c.Store.Backend = "redis" }, `unknown store backend "redis"`},
		{"unknown archive", func(c *config.Config) { c.Archive.Backend = "s3" }, `unknown archive backend "s3"`},
		{"bad policy", func(c *config.Config) { c.Reconcile.Policy = "weekly" }, "weekly"},
		{"bad timezone", func(c *config.Config) { c.Campus.Timezone = "Mars/Olympus" }, "campus timezone"},
		{"postgres without dsn", func(c *config.Config) { c.Store.Backend = config.BackendPostgres }, "dsn"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig(t)
			tc.mutate(&cfg)
			_, err := app.New(context.Background(), cfg, zap.NewNop())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestReady_SeesStoredDocument(t *testing.T) {
	cfg := baseConfig(t)
	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	ref := docstore.Doc(reconcile.CollectionGlobalDishes, "_ready")
	require.NoError(t, a.Store.SetMerge(context.Background(), ref, docstore.Fields{"ok": true}))
	assert.NoError(t, a.Ready(context.Background()))

	empty := &app.App{}
	assert.Error(t, empty.Ready(context.Background()))
}
