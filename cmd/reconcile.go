package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/congress-cli/internal/config"
	"github.com/sells-group/congress-cli/internal/model"
	"github.com/sells-group/congress-cli/internal/pipeline"
	"github.com/sells-group/congress-cli/internal/report"
	"github.com/sells-group/congress-cli/internal/source"
	"github.com/sells-group/congress-cli/internal/store"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [source...]",
	Short: "Reconcile committee memberships against source files",
	Long: `Matches every source record to a member and committee, resolves conflicts,
checks membership invariants and, with --apply, writes the surviving changes in
one transaction. Sources come from --sources and any positional arguments.
Exit codes: 0 success, 2 lock contention, 3 guard violation,
4 malformed source, 5 database failure after retry.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		opts, err := reconcileOptions(cfg, cmd.Flags(), args)
		if err != nil {
			return err
		}
		reportPath, _ := cmd.Flags().GetString("report")

		st, err := initStore(ctx)
		if err != nil {
			return &exitError{code: pipeline.ExitCode(err), err: err}
		}
		defer st.Close() //nolint:errcheck

		return runReconcile(ctx, st, opts, cmd.OutOrStdout(), reportPath)
	},
}

func registerReconcileFlags(fs *pflag.FlagSet) {
	fs.StringSlice("sources", nil, "source files (leadership/roster JSON, editorial CSV/JSON/YAML)")
	fs.Bool("apply", false, "write changes to the database")
	fs.Bool("dry-run", false, "report planned changes without writing (default)")
	fs.Float64("apply-threshold", 0, "minimum combined confidence for an op (default from config)")
	fs.Int("lock-wait", -1, "seconds to wait for the reconciliation lock (default from config)")
	fs.String("source-priority", "", "source priorities as name:prio,... (overrides config)")
	fs.String("report", "", "write the JSON report to this path")
	fs.Bool("strict-state", false, "treat same-name members without a declared state as ambiguous")
}

// reconcileOptions layers command-line flags and positional source paths
// over configuration.
func reconcileOptions(c *config.Config, fs *pflag.FlagSet, args []string) (pipeline.Options, error) {
	opts := pipeline.OptionsFromConfig(c)

	sources, _ := fs.GetStringSlice("sources")
	sources = append(sources, args...)
	if len(sources) == 0 {
		return opts, eris.New("at least one source path is required (--sources or positional)")
	}
	opts.Sources = sources

	applyMode, _ := fs.GetBool("apply")
	dryRun, _ := fs.GetBool("dry-run")
	if applyMode && dryRun {
		return opts, eris.New("--apply and --dry-run are mutually exclusive")
	}
	if applyMode {
		opts.Mode = model.ModeApply
	}

	if fs.Changed("apply-threshold") {
		v, _ := fs.GetFloat64("apply-threshold")
		if v < 0 || v > 100 {
			return opts, eris.Errorf("--apply-threshold %.1f out of range 0-100", v)
		}
		opts.ApplyThreshold = v
	}
	if fs.Changed("lock-wait") {
		v, _ := fs.GetInt("lock-wait")
		if v < 0 {
			return opts, eris.Errorf("--lock-wait %d must not be negative", v)
		}
		opts.LockWait = time.Duration(v) * time.Second
	}
	if spec, _ := fs.GetString("source-priority"); spec != "" {
		prios, err := source.ParsePriorities(spec)
		if err != nil {
			return opts, err
		}
		merged := make(map[string]int, len(opts.Priorities)+len(prios))
		for k, v := range opts.Priorities {
			merged[k] = v
		}
		for k, v := range prios {
			merged[k] = v
		}
		opts.Priorities = merged
	}
	if fs.Changed("strict-state") {
		opts.StrictState, _ = fs.GetBool("strict-state")
	}
	return opts, nil
}

// runReconcile executes one run, prints the summary and writes the JSON
// report when asked. A failed run comes back as an exitError.
func runReconcile(ctx context.Context, st store.Store, opts pipeline.Options, out io.Writer, reportPath string) error {
	rep, runErr := pipeline.New(st, opts).Execute(ctx)
	if rep != nil {
		if err := rep.WriteSummary(out); err != nil {
			return eris.Wrap(err, "write summary")
		}
		if reportPath != "" {
			if err := writeReport(reportPath, rep); err != nil {
				return err
			}
		}
	}
	if runErr != nil {
		return &exitError{code: pipeline.ExitCode(runErr), err: runErr}
	}
	return nil
}

func writeReport(path string, rep *report.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create report %s", path)
	}
	if err := rep.WriteJSON(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "close report %s", path)
}

func init() {
	registerReconcileFlags(reconcileCmd.Flags())
	rootCmd.AddCommand(reconcileCmd)
}
