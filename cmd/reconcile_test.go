package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/congress-cli/internal/config"
	"github.com/sells-group/congress-cli/internal/model"
	"github.com/sells-group/congress-cli/internal/pipeline"
	"github.com/sells-group/congress-cli/internal/report"
	"github.com/sells-group/congress-cli/internal/resilience"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.Reconcile.ApplyThreshold = 70
	c.Reconcile.LockWaitSeconds = 5
	c.Reconcile.SourcePriority = map[string]int{"leadership": 200}
	c.Reconcile.PruneAuthoritative = true
	return c
}

func parseReconcileFlags(t *testing.T, args ...string) (pipeline.Options, error) {
	t.Helper()
	cmd := &cobra.Command{Use: "reconcile"}
	registerReconcileFlags(cmd.Flags())
	require.NoError(t, cmd.ParseFlags(args))
	return reconcileOptions(testConfig(), cmd.Flags(), cmd.Flags().Args())
}

func TestReconcileOptions_Defaults(t *testing.T) {
	opts, err := parseReconcileFlags(t, "--sources", "a.json,b.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json", "b.csv"}, opts.Sources)
	assert.Equal(t, model.ModeDryRun, opts.Mode)
	assert.Equal(t, float64(70), opts.ApplyThreshold)
	assert.Equal(t, 5*time.Second, opts.LockWait)
	assert.True(t, opts.PruneAuthoritative)
	assert.False(t, opts.StrictState)
}

func TestReconcileOptions_Overrides(t *testing.T) {
	opts, err := parseReconcileFlags(t,
		"--sources", "a.json",
		"--sources", "b.yaml",
		"--apply",
		"--apply-threshold", "85",
		"--lock-wait", "0",
		"--source-priority", "senate.gov:250,editorial:400",
		"--strict-state",
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json", "b.yaml"}, opts.Sources)
	assert.Equal(t, model.ModeApply, opts.Mode)
	assert.Equal(t, float64(85), opts.ApplyThreshold)
	assert.Zero(t, opts.LockWait)
	assert.Equal(t, map[string]int{"leadership": 200, "senate.gov": 250, "editorial": 400}, opts.Priorities)
	assert.True(t, opts.StrictState)
}

func TestReconcileOptions_PositionalSources(t *testing.T) {
	opts, err := parseReconcileFlags(t, "--sources", "a.json", "b.csv", "c.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json", "b.csv", "c.yaml"}, opts.Sources)

	opts, err = parseReconcileFlags(t, "--apply", "leadership.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"leadership.json"}, opts.Sources)
	assert.Equal(t, model.ModeApply, opts.Mode)
}

func TestReconcileOptions_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no sources", nil, "--sources"},
		{"both modes", []string{"--sources", "a.json", "--apply", "--dry-run"}, "mutually exclusive"},
		{"threshold range", []string{"--sources", "a.json", "--apply-threshold", "120"}, "out of range"},
		{"negative wait", []string{"--sources", "a.json", "--lock-wait", "-3"}, "must not be negative"},
		{"bad priority", []string{"--sources", "a.json", "--source-priority", "editorial"}, "name:prio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseReconcileFlags(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func testRunOptions(mode model.RunMode, sources ...string) pipeline.Options {
	opts := pipeline.OptionsFromConfig(testConfig())
	opts.Sources = sources
	opts.Mode = mode
	opts.LockWait = 0
	opts.Retry = resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	return opts
}

func TestRunReconcile_AppliesAndWritesReport(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	src := writeFile(t, "leadership.json", flipLeadership)
	reportPath := filepath.Join(t.TempDir(), "report.json")

	var out bytes.Buffer
	err := runReconcile(ctx, st, testRunOptions(model.ModeApply, src), &out, reportPath)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Exit code:")
	assert.Contains(t, out.String(), "Committee on the Judiciary")
	assert.Contains(t, out.String(), "Chuck Grassley")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var rep report.Report
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, model.ModeApply, rep.Mode)
	assert.Equal(t, 2, rep.Counts.Applied)
	assert.Zero(t, rep.ExitCode)

	n, err := st.CountAudit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunReconcile_MalformedSourceExitCode(t *testing.T) {
	st := newTestStore(t)
	src := writeFile(t, "broken.json", `{"members": [{"name": "Alex Padilla", "chamber": "Joint"}]}`)

	var out bytes.Buffer
	err := runReconcile(context.Background(), st, testRunOptions(model.ModeApply, src), &out, "")
	require.Error(t, err)
	assert.Equal(t, pipeline.ExitSourceMalformed, exitCode(err))
	assert.Contains(t, out.String(), "Exit code:")
}

func TestRunReconcile_ReportPathError(t *testing.T) {
	st := newTestStore(t)
	src := writeFile(t, "leadership.json", flipLeadership)
	missing := filepath.Join(t.TempDir(), "no-such-dir", "report.json")

	var out bytes.Buffer
	err := runReconcile(context.Background(), st, testRunOptions(model.ModeDryRun, src), &out, missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create report")
}
