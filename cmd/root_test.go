package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/dining-menu-sync/internal/config"
	"github.com/JakeFAU/dining-menu-sync/internal/ingest"
	"github.com/JakeFAU/dining-menu-sync/internal/menu"
	"github.com/JakeFAU/dining-menu-sync/internal/reconcile"
)

type fakeApp struct {
	runKinds  []string
	runErr    error
	resetCols []string
	showDate  string
	closed    bool
}

func (f *fakeApp) Run(_ context.Context, kind string) (menu.RunReport, error) {
	f.runKinds = append(f.runKinds, kind)
	return menu.RunReport{RunID: "run-1", Kind: kind, Locations: 5, Observations: 12, OpsQueued: 24, BatchesCommitted: 1}, f.runErr
}

func (f *fakeApp) Reset(_ context.Context, collections []string) (map[string]int, error) {
	f.resetCols = collections
	return map[string]int{"diningHalls": 3, "diningPoints": 7}, nil
}

func (f *fakeApp) Show(_ context.Context, out io.Writer, date string) error {
	f.showDate = date
	_, err := fmt.Fprintf(out, "Dining menus for %s\n", date)
	return err
}

func (f *fakeApp) Ready(context.Context) error { return nil }

func (f *fakeApp) Close() error {
	f.closed = true
	return nil
}

func withFakeApp(t *testing.T) *fakeApp {
	t.Helper()
	fake := &fakeApp{}
	origLoad, origNew := loadConfig, newApp
	loadConfig = func(string) (config.Config, error) {
		return config.Config{Logging: config.LoggingConfig{Level: "error"}}, nil
	}
	newApp = func(context.Context, config.Config, *zap.Logger) (App, error) { return fake, nil }
	t.Cleanup(func() {
		loadConfig, newApp = origLoad, origNew
	})
	return fake
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"menus", "history", "retail", "reset", "serve", "show"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestRunCommands(t *testing.T) {
	for _, kind := range []string{ingest.KindMenus, ingest.KindHistory, ingest.KindRetail} {
		t.Run(kind, func(t *testing.T) {
			fake := withFakeApp(t)
			out, err := execute(t, "", kind)
			require.NoError(t, err)
			assert.Equal(t, []string{kind}, fake.runKinds)
			assert.Contains(t, out, kind+" run run-1: 5 locations (0 skipped), 12 dishes, 24 writes in 1 batches (0 failed)")
			assert.True(t, fake.closed)
		})
	}
}

func TestRunCommandAbortFails(t *testing.T) {
	fake := withFakeApp(t)
	fake.runErr = fmt.Errorf("%w: quota", reconcile.ErrRunAborted)

	_, err := execute(t, "", "menus")
	require.Error(t, err)
	assert.ErrorIs(t, err, reconcile.ErrRunAborted)
}

func TestResetRequiresConfirmation(t *testing.T) {
	fake := withFakeApp(t)

	out, err := execute(t, "nope\n", "reset")
	require.ErrorIs(t, err, ingest.ErrNotConfirmed)
	assert.Contains(t, out, "Type 'DELETE' to confirm")
	assert.Nil(t, fake.resetCols)

	out, err = execute(t, "DELETE\n", "reset")
	require.NoError(t, err)
	assert.Equal(t, ingest.ResetCollections, fake.resetCols)
	assert.Contains(t, out, "deleted 3 documents from diningHalls")
	assert.Contains(t, out, "deleted 7 documents from diningPoints")
}

func TestResetYesSkipsPrompt(t *testing.T) {
	fake := withFakeApp(t)

	out, err := execute(t, "", "reset", "--yes")
	require.NoError(t, err)
	assert.NotContains(t, out, "confirm")
	assert.Equal(t, ingest.ResetCollections, fake.resetCols)
}

func TestShowDate(t *testing.T) {
	fake := withFakeApp(t)

	out, err := execute(t, "", "show", "--date", "2025-01-02")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-02", fake.showDate)
	assert.Contains(t, out, "Dining menus for 2025-01-02")

	_, err = execute(t, "", "show", "--date", "01/02/2025")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --date")
}

func TestConfigErrorStopsBeforeServices(t *testing.T) {
	withFakeApp(t)
	loadConfig = func(string) (config.Config, error) { return config.Config{}, errors.New("bad config") }
	called := false
	newApp = func(context.Context, config.Config, *zap.Logger) (App, error) {
		called = true
		return nil, nil
	}

	_, err := execute(t, "", "menus")
	require.EqualError(t, err, "bad config")
	assert.False(t, called)
}

func TestServeStopsOnCancel(t *testing.T) {
	fake := &fakeApp{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := &env{cfg: config.Config{}, logger: zap.NewNop(), app: fake}

	require.NoError(t, serve(ctx, e, 0))
}
