package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checklist.yaml")
	raw := "db_path: /tmp/x.db\nexport_dir: out\nsmtp:\n  host: mail.local\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	t.Setenv("CHECKLIST_DB", "/tmp/env.db")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("CHECKLIST_AUTOSAVE_DELAY", "250ms")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/env.db", cfg.DBPath)
	require.Equal(t, "out", cfg.ExportDir)
	require.Equal(t, "mail.local", cfg.SMTP.Host)
	require.Equal(t, 2525, cfg.SMTP.Port)
	require.Equal(t, 250*time.Millisecond, cfg.AutosaveWait)
	require.True(t, cfg.SMTP.Enabled())
}

func TestLoadConfigRejectsBadPort(t *testing.T) {
	t.Setenv("SMTP_PORT", "70000")
	_, err := LoadConfig("")
	require.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, "data/checklist.db", cfg.DBPath)
	require.Empty(t, cfg.SchemaPath)
	require.False(t, cfg.SMTP.Enabled())
}
