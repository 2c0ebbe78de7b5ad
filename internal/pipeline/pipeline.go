// Package pipeline runs one reconciliation end to end: load sources, match,
// guard, apply or plan, and persist the report.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/congress-cli/internal/apply"
	"github.com/sells-group/congress-cli/internal/config"
	"github.com/sells-group/congress-cli/internal/guard"
	"github.com/sells-group/congress-cli/internal/model"
	"github.com/sells-group/congress-cli/internal/reconcile"
	"github.com/sells-group/congress-cli/internal/report"
	"github.com/sells-group/congress-cli/internal/resilience"
	"github.com/sells-group/congress-cli/internal/source"
	"github.com/sells-group/congress-cli/internal/store"
)

// Options configures a run.
type Options struct {
	Sources            []string
	Mode               model.RunMode
	ApplyThreshold     float64
	LockWait           time.Duration
	Priorities         map[string]int
	PruneAuthoritative bool
	StrictState        bool
	MatchBudget        time.Duration
	Concurrency        int
	Retry              resilience.RetryConfig
}

// OptionsFromConfig fills run options from loaded configuration. Sources
// and Mode come from the command line.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Mode:               model.ModeDryRun,
		ApplyThreshold:     cfg.Reconcile.ApplyThreshold,
		LockWait:           cfg.Reconcile.LockWait(),
		Priorities:         cfg.Reconcile.SourcePriority,
		PruneAuthoritative: cfg.Reconcile.PruneAuthoritative,
		StrictState:        cfg.Reconcile.StrictState,
		MatchBudget:        cfg.Reconcile.MatchBudget(),
		Concurrency:        cfg.Reconcile.ParseConcurrency,
		Retry:              resilience.FromRetryConfig(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs),
	}
}

// Run is the per-run context threaded through every stage.
type Run struct {
	ID    string
	Store store.Store
	Opts  Options
	Log   *zap.Logger
	Now   func() time.Time
}

// New returns a run with a fresh id.
func New(st store.Store, opts Options) *Run {
	if opts.Mode == "" {
		opts.Mode = model.ModeDryRun
	}
	id := uuid.NewString()
	return &Run{
		ID:    id,
		Store: st,
		Opts:  opts,
		Log:   zap.L().With(zap.String("run_id", id), zap.String("mode", string(opts.Mode))),
		Now:   time.Now,
	}
}

// Execute runs the reconciliation and returns its report. The report is
// returned even when err is non-nil so callers can always write it out.
func (r *Run) Execute(ctx context.Context) (*report.Report, error) {
	started := r.Now().UTC()
	r.Log.Info("reconciliation starting", zap.Strings("sources", r.Opts.Sources))

	run := &model.Run{
		ID:        r.ID,
		Mode:      r.Opts.Mode,
		Status:    model.RunStatusRunning,
		Sources:   r.Opts.Sources,
		StartedAt: started,
	}
	if err := r.Store.SaveRun(ctx, run); err != nil {
		err = eris.Wrap(err, "pipeline: record run start")
		return r.finish(ctx, run, report.Input{Err: err}), err
	}

	in, err := r.reconcile(ctx)
	in.Err = err
	rep := r.finish(ctx, run, in)
	return rep, err
}

func (r *Run) reconcile(ctx context.Context) (report.Input, error) {
	in := report.Input{}

	batch, err := source.Load(ctx, r.Opts.Sources, source.Options{
		Priorities:  r.Opts.Priorities,
		Concurrency: r.Opts.Concurrency,
	})
	if err != nil {
		return in, err
	}
	in.Sources = len(batch.Documents)

	snap, err := r.Store.Snapshot(ctx)
	if err != nil {
		return in, eris.Wrap(err, "pipeline: load snapshot")
	}
	in.Final = snap

	eng, err := reconcile.New(snap, reconcile.Config{
		ApplyThreshold:     r.Opts.ApplyThreshold,
		PruneAuthoritative: r.Opts.PruneAuthoritative,
		StrictState:        r.Opts.StrictState,
		MatchBudget:        r.Opts.MatchBudget,
	}).Run(ctx, batch.Records)
	if err != nil {
		return in, eris.Wrap(err, "pipeline: reconcile")
	}
	in.Engine = eng

	guarded := guard.New(snap).Check(eng.Ops)
	in.Rejections = guarded.Rejections
	in.Inserted = len(guarded.Inserted)
	in.Accepted = guarded.Accepted

	r.Log.Info("ops proposed",
		zap.Int("records", len(batch.Records)),
		zap.Int("proposed", len(eng.Ops)),
		zap.Int("accepted", len(guarded.Accepted)),
		zap.Int("rejected", len(eng.Rejections)+len(guarded.Rejections)),
	)

	if r.Opts.Mode != model.ModeApply {
		in.Final = apply.Plan(snap, guarded.Accepted)
		return in, nil
	}
	if len(guarded.Accepted) == 0 {
		in.Outcomes = []apply.OpResult{}
		return in, nil
	}

	res, err := apply.New(r.Store, apply.Config{
		RunID:    r.ID,
		LockWait: r.Opts.LockWait,
		Retry:    r.Opts.Retry,
	}).Apply(ctx, guarded.Accepted)
	if err != nil {
		return in, err
	}
	in.Outcomes = res.Ops
	in.Final = res.Snapshot
	return in, nil
}

// finish builds the report and records the run's terminal state. A failure
// to persist is logged; the run's own outcome stands.
func (r *Run) finish(ctx context.Context, run *model.Run, in report.Input) *report.Report {
	ended := r.Now().UTC()
	in.RunID = r.ID
	in.Mode = r.Opts.Mode
	in.StartedAt = run.StartedAt
	in.EndedAt = ended
	in.ExitCode = ExitCode(in.Err)
	rep := report.Build(in)

	run.EndedAt = &ended
	run.ExitCode = rep.ExitCode
	run.ErrorKind = rep.ErrorKind
	run.Error = rep.Error
	run.Applied = rep.Counts.Applied
	run.Rejected = rep.Counts.Rejected
	run.Unchanged = rep.Counts.Unchanged
	run.Status = model.RunStatusComplete
	if in.Err != nil {
		run.Status = model.RunStatusFailed
	}
	if data, err := rep.JSON(); err == nil {
		run.Report = data
	} else {
		r.Log.Warn("report encode failed", zap.Error(err))
	}

	// Persist even when the caller's context is done.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.Store.SaveRun(saveCtx, run); err != nil {
		r.Log.Error("record run failed", zap.Error(err))
	}

	fields := []zap.Field{
		zap.Int("exit_code", rep.ExitCode),
		zap.Int("applied", rep.Counts.Applied),
		zap.Int("rejected", rep.Counts.Rejected),
		zap.Int("unchanged", rep.Counts.Unchanged),
		zap.Duration("elapsed", ended.Sub(run.StartedAt)),
	}
	if in.Err != nil {
		r.Log.Error("reconciliation failed", append(fields, zap.Error(in.Err))...)
	} else {
		r.Log.Info("reconciliation complete", fields...)
	}
	return rep
}
