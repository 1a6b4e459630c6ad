package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"extsweep/internal/config"
	"extsweep/internal/geofixture"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	demoDefects bool
	demoKeep    bool
)

// demoCmd sweeps the built-in fixture extension
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Seed a temporary database with the fixture extension and sweep it",
	Long: `Creates a SQLite database in a temporary directory, installs the small
spatial fixture extension and runs both the function and operator sweeps
against it. With --defects two misbehaving functions are catalogued too and
the function sweep fails.`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().BoolVar(&demoDefects, "defects", false, "Catalog functions that fail unexpectedly")
	demoCmd.Flags().BoolVar(&demoKeep, "keep", false, "Keep the temporary database")
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	dir, err := os.MkdirTemp("", "extsweep-demo-")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	if demoKeep {
		fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\n", filepath.Join(dir, "demo.db"))
	} else {
		defer os.RemoveAll(dir)
	}

	db, err := geofixture.Open(ctx, filepath.Join(dir, "demo.db"), geofixture.Options{Defects: demoDefects})
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("demo database ready", zap.String("dir", dir), zap.Bool("defects", demoDefects))

	c := demoConfig(cfg)
	return errors.Join(
		sweepFunctions(ctx, cmd, db, c),
		sweepOperators(ctx, cmd, db, c),
	)
}

// demoConfig points the sweeps at the fixture while keeping the user's
// registry and rule files.
func demoConfig(base *config.Config) *config.Config {
	c := *config.DefaultConfig()
	if base != nil {
		c.Sweep.RegistryFile = base.Sweep.RegistryFile
		c.Sweep.RulesFile = base.Sweep.RulesFile
		c.Operators.RulesFile = base.Operators.RulesFile
	}
	c.Sweep.Namespace = geofixture.Namespace
	c.Operators.Prefix = geofixture.OperatorPrefix
	c.Operators.Table = geofixture.Table
	return &c
}
