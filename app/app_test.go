package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/config"
	"github.com/warp/incentive-engine/generic"
)

func TestBuild_MemoryDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.DBDriver = config.DriverMemory

	a, err := Build(context.Background(), cfg, zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Metrics)
	assert.NotNil(t, a.Engine.Recorder)
	_, ok := a.Directory.Roster().Lookup("gaurav")
	assert.True(t, ok)
}

func TestBuild_SQLiteWithFiles(t *testing.T) {
	dir := t.TempDir()
	rosterPath := filepath.Join(dir, "roster.yaml")
	schemePath := filepath.Join(dir, "scheme.yaml")
	require.NoError(t, os.WriteFile(rosterPath, []byte("staff:\n  - name: ravi\n    role: helper\n"), 0o644))
	require.NoError(t, os.WriteFile(schemePath, []byte("match_threshold: 90\n"), 0o644))

	cfg := config.Default()
	cfg.DBPath = filepath.Join(dir, "incentives.db")
	cfg.RosterFile = rosterPath
	cfg.SchemeFile = schemePath

	// GIVEN: no registry, so metrics stay off
	a, err := Build(context.Background(), cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Metrics)
	assert.Equal(t, 90, a.Scheme.MatchThreshold)
	m, ok := a.Directory.Roster().Lookup("RAVI")
	require.True(t, ok)
	assert.Equal(t, generic.RoleHelper, m.Role)
}

func TestBuild_UnsupportedSchemeFile(t *testing.T) {
	cfg := config.Default()
	cfg.DBDriver = config.DriverMemory
	cfg.SchemeFile = filepath.Join(t.TempDir(), "scheme.toml")
	require.NoError(t, os.WriteFile(cfg.SchemeFile, []byte("x = 1"), 0o644))

	_, err := Build(context.Background(), cfg, zerolog.Nop(), nil)
	assert.ErrorContains(t, err, "unsupported scheme file type")
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.DBDriver = "mongo"
	_, _, err := OpenStore(context.Background(), cfg)
	assert.Error(t, err)
}
