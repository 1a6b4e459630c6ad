package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"extsweep/internal/catalog"
	"extsweep/internal/config"
	"extsweep/internal/geofixture"
	"extsweep/internal/logging"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// setup resets the globals the commands read.
func setup(t *testing.T) *bytes.Buffer {
	t.Helper()
	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	timeout = time.Minute
	jsonOutput = false
	noColor = true
	demoDefects = false
	demoKeep = false
	operatorSignatures = false
	t.Cleanup(func() {
		jsonOutput = false
		demoDefects = false
		operatorSignatures = false
	})
	return &bytes.Buffer{}
}

func command(out *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	return cmd
}

// fixtureTarget points cfg at a seeded fixture database.
func fixtureTarget(t *testing.T, opts geofixture.Options) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "target.db")
	db, err := geofixture.Open(context.Background(), path, opts)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	cfg.Target.DSN = path
}

func TestRunDemo(t *testing.T) {
	out := setup(t)

	require.NoError(t, runDemo(command(out), nil))

	s := out.String()
	assert.Contains(t, s, "functions sweep")
	assert.Contains(t, s, "operators sweep")
	assert.Contains(t, s, "0 unaccounted")
}

func TestRunDemoWithDefects(t *testing.T) {
	out := setup(t)
	demoDefects = true

	err := runDemo(command(out), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "The following functions were affected: ext::geo::broken_fn, ext::geo::ghost.")

	// Both reports are still written.
	assert.Equal(t, 2, strings.Count(out.String(), " sweep "))
}

func TestRunSignatures(t *testing.T) {
	out := setup(t)
	fixtureTarget(t, geofixture.Options{})

	require.NoError(t, runSignatures(command(out), nil))
	assert.Contains(t, out.String(), "(ext::geo::geometry, std::float64)\n  ext::geo::buffer\tgeo_buffer\n")

	out.Reset()
	operatorSignatures = true
	require.NoError(t, runSignatures(command(out), nil))
	assert.Contains(t, out.String(), "(ext::geo::geometry, ext::geo::geometry) -> std::float64\n  ext::geo::op_distance\t")
}

func TestRunSweepJSON(t *testing.T) {
	out := setup(t)
	fixtureTarget(t, geofixture.Options{})
	jsonOutput = true

	require.NoError(t, runSweep(command(out), nil))

	var rep struct {
		Kind     string `json:"kind"`
		Outcomes []struct {
			Status string `json:"status"`
		} `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &rep))
	assert.Equal(t, "functions", rep.Kind)
	assert.Len(t, rep.Outcomes, len(geofixture.Functions))
}

func TestRunSweepSkipsConfiguredFunctions(t *testing.T) {
	out := setup(t)
	fixtureTarget(t, geofixture.Options{Defects: true})
	cfg.Sweep.Skip = []string{"broken_fn", "ext::geo::ghost"}

	require.NoError(t, runSweep(command(out), nil))
	assert.Contains(t, out.String(), "2 skipped")
}

func TestRunOperators(t *testing.T) {
	out := setup(t)
	fixtureTarget(t, geofixture.Options{})

	require.NoError(t, runOperators(command(out), nil))
	assert.Contains(t, out.String(), "requires_measure")
}

func TestRunSweepMissingTarget(t *testing.T) {
	out := setup(t)
	cfg.Target.DSN = filepath.Join(t.TempDir(), "missing", "target.db")

	assert.Error(t, runSweep(command(out), nil))
	assert.Empty(t, out.String())
}

func TestRunInit(t *testing.T) {
	out := setup(t)
	configPath = filepath.Join(t.TempDir(), "extsweep.yaml")
	defer func() { configPath = "extsweep.yaml" }()

	require.NoError(t, runInit(command(out), nil))
	assert.Contains(t, out.String(), "Wrote ")

	loaded, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Sweep.Namespace, loaded.Sweep.Namespace)

	assert.Error(t, runInit(command(out), nil))
}

func TestRunSweepAcrossNamespaces(t *testing.T) {
	out := setup(t)
	fixtureTarget(t, geofixture.Options{Extra: []catalog.Entry{{
		Name:    "ext::raster::area",
		Symbol:  "geo_area",
		Returns: "std::float64",
		Params:  []catalog.Param{{Name: "rast", Type: "ext::geo::geometry"}},
	}}})
	cfg.Sweep.Namespaces = []string{geofixture.Namespace, "ext::raster::"}
	jsonOutput = true

	require.NoError(t, runSweep(command(out), nil))

	var rep struct {
		Outcomes []struct {
			Function string `json:"function"`
		} `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &rep))
	assert.Len(t, rep.Outcomes, len(geofixture.Functions)+1)

	var swept []string
	for _, o := range rep.Outcomes {
		swept = append(swept, o.Function)
	}
	assert.Contains(t, swept, "ext::raster::area")
	assert.Contains(t, swept, "ext::geo::area")

	out.Reset()
	jsonOutput = false
	require.NoError(t, runSignatures(command(out), nil))
	assert.Contains(t, out.String(), "  ext::raster::area\tgeo_area\n")
}

func TestRootCommandLoadsConfigAndLogging(t *testing.T) {
	setup(t)
	path := filepath.Join(t.TempDir(), "extsweep.yaml")
	t.Cleanup(func() {
		configPath = "extsweep.yaml"
		verbose = false
		logging.Use(nil)
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs([]string{"--config", path, "--verbose", "init"})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "Wrote "+path)
	assert.True(t, logging.Root().Core().Enabled(zapcore.DebugLevel))
	assert.Equal(t, "debug", cfg.Logging.Level)
}
