package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg, err := Load(fs, "/latticearc.toml")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadParsesFields(t *testing.T) {
	fs := afero.NewMemMapFs()
	afs := &afero.Afero{Fs: fs}
	body := `
root = "/var/lib/latticearc"
log_level = "debug"
development = true

[sources]
full = "/data/full"
new = "/data/new"
appending = "/data/appending"
`
	require.NoError(t, afs.WriteFile("/latticearc.toml", []byte(body), 0o644))

	cfg, err := Load(fs, "/latticearc.toml")
	require.NoError(t, err)
	require.Equal(t, "/var/lib/latticearc", cfg.Root)
	require.Equal(t, "debug", cfg.LogLevel)
	require.True(t, cfg.Development)
	require.Equal(t, "/data/full", cfg.Sources.Full)
	require.Equal(t, "/data/new", cfg.Sources.New)
	require.Equal(t, "/data/appending", cfg.Sources.Appending)
}

func TestLoadFillsDefaultsForUnsetFields(t *testing.T) {
	fs := afero.NewMemMapFs()
	afs := &afero.Afero{Fs: fs}
	require.NoError(t, afs.WriteFile("/latticearc.toml", []byte(`log_level = "warn"`), 0o644))

	cfg, err := Load(fs, "/latticearc.toml")
	require.NoError(t, err)
	require.Equal(t, ".", cfg.Root)
	require.Equal(t, "warn", cfg.LogLevel)
}
