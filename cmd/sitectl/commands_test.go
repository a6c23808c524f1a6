package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacuina/content-service/internal/app"
	"github.com/lacuina/content-service/internal/config"
	"github.com/lacuina/content-service/internal/siteconfig"
	"github.com/lacuina/content-service/internal/store"
)

// useMemoryStore points every command at one shared in-memory store.
func useMemoryStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	cfg := &config.Config{Store: config.StoreConfig{Backend: config.BackendMemory}, Site: config.SiteConfig{Timezone: "UTC"}}
	prev := openApp
	openApp = func(ctx context.Context) (*app.App, error) { return app.NewWithStore(cfg, st), nil }
	t.Cleanup(func() { openApp = prev })
	return st
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigDefaults(t *testing.T) {
	out, err := run(t, "config", "defaults")
	require.NoError(t, err)
	var doc siteconfig.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, siteconfig.Defaults(), doc)
}

func TestConfigShowSection(t *testing.T) {
	useMemoryStore(t)
	out, err := run(t, "config", "show", "--section", "brand")
	require.NoError(t, err)
	assert.Contains(t, out, siteconfig.Defaults().Brand.Name)

	_, err = run(t, "config", "show", "--section", "footer")
	assert.ErrorIs(t, err, siteconfig.ErrUnknownSection)
}

func TestBackupCommands(t *testing.T) {
	st := useMemoryStore(t)

	out, err := run(t, "backup", "create", "Primera")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "created "))
	id := strings.Fields(out)[1]

	_, err = run(t, "backup", "master")
	require.NoError(t, err)

	out, err = run(t, "backup", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Primera")
	assert.Contains(t, out, "Versió d'entrega")

	// change the stored document, then restore over it
	require.NoError(t, st.Update(context.Background(), siteconfig.DocumentPath, map[string]interface{}{"brand": map[string]interface{}{"name": "Altre"}}))
	_, err = run(t, "backup", "restore", id)
	require.NoError(t, err)
	out, err = run(t, "config", "show", "--section", "brand")
	require.NoError(t, err)
	assert.Contains(t, out, siteconfig.Defaults().Brand.Name)

	_, err = run(t, "backup", "delete", id)
	require.NoError(t, err)
	_, err = run(t, "backup", "restore", id)
	assert.Error(t, err)
}

func TestFactoryResetNeedsConfirmation(t *testing.T) {
	useMemoryStore(t)
	_, err := run(t, "factory-reset")
	assert.ErrorIs(t, err, errNotConfirmed)

	out, err := run(t, "factory-reset", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "reset from defaults\n", out)
}
