package main

import (
	"context"
	"database/sql"
	"errors"

	"extsweep/internal/catalog"
	"extsweep/internal/classify"
	"extsweep/internal/config"
	"extsweep/internal/invoke"
	"extsweep/internal/registry"
	"extsweep/internal/report"
	"extsweep/internal/sweep"
	"extsweep/internal/synth"
	"extsweep/internal/target"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var operatorSignatures bool

// signaturesCmd lists discovered signature groups
var signaturesCmd = &cobra.Command{
	Use:   "signatures",
	Short: "List the extension's functions grouped by signature",
	Args:  cobra.NoArgs,
	RunE:  runSignatures,
}

// sweepCmd runs the function sweep
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Invoke every function in the namespace with sample arguments",
	Long: `Discovers every function under the configured namespaces, groups them by
parameter types, synthesizes one argument list per group and invokes every
function with it. Exits non-zero if any failure is not accounted for by the
acceptable-failure rules.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

// opsCmd runs the operator sweep
var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "Evaluate every operator function as a filter over the seeded table",
	Args:  cobra.NoArgs,
	RunE:  runOperators,
}

func init() {
	signaturesCmd.Flags().BoolVar(&operatorSignatures, "operators", false, "Discover operators (signatures include the return type)")
}

func runSignatures(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	db, err := target.Open(ctx, cfg.Target)
	if err != nil {
		return err
	}
	defer db.Close()

	cat := catalog.New(db)
	var groups []catalog.Group
	if operatorSignatures {
		groups, err = cat.DiscoverOperators(ctx, cfg.Operators.Prefix)
	} else {
		groups, err = cat.DiscoverAll(ctx, cfg.Sweep.Prefixes()...)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return report.WriteSignaturesJSON(cmd.OutOrStdout(), groups)
	}
	return report.WriteSignatures(cmd.OutOrStdout(), groups, colored())
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	db, err := target.Open(ctx, cfg.Target)
	if err != nil {
		return err
	}
	defer db.Close()

	return sweepFunctions(ctx, cmd, db, cfg)
}

func runOperators(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	db, err := target.Open(ctx, cfg.Target)
	if err != nil {
		return err
	}
	defer db.Close()

	return sweepOperators(ctx, cmd, db, cfg)
}

func sweepFunctions(ctx context.Context, cmd *cobra.Command, db *sql.DB, c *config.Config) error {
	groups, err := catalog.New(db).DiscoverAll(ctx, c.Sweep.Prefixes()...)
	if err != nil {
		return err
	}
	runner, err := newRunner(db, c, classify.DefaultFunctionRules(), c.Sweep.RulesFile)
	if err != nil {
		return err
	}

	rep, err := runner.Run(ctx, groups)
	return finishReport(cmd, rep, err)
}

func sweepOperators(ctx context.Context, cmd *cobra.Command, db *sql.DB, c *config.Config) error {
	groups, err := catalog.New(db).DiscoverOperators(ctx, c.Operators.Prefix)
	if err != nil {
		return err
	}
	runner, err := newRunner(db, c, classify.DefaultOperatorRules(), c.Operators.RulesFile)
	if err != nil {
		return err
	}

	rep, err := runner.RunOperators(ctx, groups, sweep.OperatorTable{
		Table:        c.Operators.Table,
		ResultColumn: c.Operators.ResultColumn,
		Columns:      c.Operators.Columns,
		Comparisons:  c.Operators.Comparisons,
	})
	return finishReport(cmd, rep, err)
}

// newRunner assembles a runner from the built-in registry and rules plus
// any files named in the configuration.
func newRunner(db *sql.DB, c *config.Config, rules []classify.Rule, rulesFile string) (*sweep.Runner, error) {
	reg := registry.Default()
	if c.Sweep.RegistryFile != "" {
		samples, err := registry.LoadFile(c.Sweep.RegistryFile)
		if err != nil {
			return nil, err
		}
		reg = reg.Extend(samples...)
		logger.Debug("loaded samples", zap.String("file", c.Sweep.RegistryFile), zap.Int("count", len(samples)))
	}

	if rulesFile != "" {
		extra, err := classify.LoadRules(rulesFile)
		if err != nil {
			return nil, err
		}
		rules = append(rules, extra...)
		logger.Debug("loaded rules", zap.String("file", rulesFile), zap.Int("count", len(extra)))
	}
	classifier, err := classify.New(rules)
	if err != nil {
		return nil, err
	}

	return sweep.NewRunner(
		synth.New(reg, c.Sweep.ArrayFormat),
		invoke.New(db),
		classifier,
		c.Sweep.Skip,
	), nil
}

// finishReport writes the report, if there is one, and passes the sweep
// error through so a failed sweep exits non-zero.
func finishReport(cmd *cobra.Command, rep *sweep.Report, err error) error {
	if rep == nil {
		return err
	}

	var werr error
	if jsonOutput {
		werr = report.WriteJSON(cmd.OutOrStdout(), rep)
	} else {
		werr = report.WriteText(cmd.OutOrStdout(), rep, colored())
	}
	return errors.Join(err, werr)
}
