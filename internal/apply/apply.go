// Package apply writes a guarded batch of ChangeOps to the store in one
// transaction, with an audit entry for every change it makes.
package apply

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/congress-cli/internal/guard"
	"github.com/sells-group/congress-cli/internal/model"
	"github.com/sells-group/congress-cli/internal/resilience"
	"github.com/sells-group/congress-cli/internal/store"
)

// Actor is recorded on every audit entry.
const Actor = "reconciler"

// DefaultLockWait bounds how long a run waits for the advisory lock.
const DefaultLockWait = 5 * time.Second

// Outcome is what happened to one op.
type Outcome string

// Op outcomes.
const (
	OutcomeApplied   Outcome = "applied"
	OutcomeUnchanged Outcome = "unchanged"
)

// OpResult is the outcome of one op.
type OpResult struct {
	Op       model.ChangeOp  `json:"op"`
	Outcome  Outcome         `json:"outcome"`
	AuditID  int64           `json:"audit_id,omitempty"`
	OldValue json.RawMessage `json:"old_value,omitempty"`
	NewValue json.RawMessage `json:"new_value,omitempty"`
}

// Result is the committed batch.
type Result struct {
	Ops       []OpResult `json:"ops"`
	Applied   int        `json:"applied"`
	Unchanged int        `json:"unchanged"`
	Attempts  int        `json:"attempts"`
	// Snapshot is the state read back inside the transaction before commit.
	Snapshot *model.Snapshot `json:"-"`
}

// Config tunes the applier.
type Config struct {
	RunID    string
	LockWait time.Duration
	Retry    resilience.RetryConfig
	// Now stamps audit entries and ended memberships. Defaults to time.Now.
	Now func() time.Time
}

// Applier writes batches through a store.
type Applier struct {
	st  store.Store
	cfg Config
	log *zap.Logger
}

// New returns an applier over st.
func New(st store.Store, cfg Config) *Applier {
	if cfg.LockWait < 0 {
		cfg.LockWait = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Applier{
		st:  st,
		cfg: cfg,
		log: zap.L().With(zap.String("component", "applier"), zap.String("run_id", cfg.RunID)),
	}
}

// Order sorts ops into apply order: clears, upserts, assignments, removals,
// each group by committee then member.
func Order(ops []model.ChangeOp) []model.ChangeOp {
	out := append([]model.ChangeOp(nil), ops...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Rank() != b.Rank() {
			return a.Rank() < b.Rank()
		}
		if a.CommitteeID != b.CommitteeID {
			return a.CommitteeID < b.CommitteeID
		}
		return a.MemberID < b.MemberID
	})
	return out
}

// Plan projects ops onto a copy of snap in apply order.
func Plan(snap *model.Snapshot, ops []model.ChangeOp) *model.Snapshot {
	projected := snap.Clone()
	for _, op := range Order(ops) {
		projected.Apply(op)
	}
	return projected
}

// Apply runs the batch in one transaction under the reconciliation lock.
// A DB_TRANSIENT failure re-runs the whole transaction per the retry policy;
// any other failure rolls back and is returned as is.
func (a *Applier) Apply(ctx context.Context, ops []model.ChangeOp) (*Result, error) {
	ordered := Order(ops)

	retry := a.cfg.Retry
	retry.ShouldRetry = func(err error) bool {
		return model.KindOf(err) == model.KindDBTransient
	}
	retry.OnRetry = resilience.RetryLogger(a.log, "apply")

	attempts := 0
	res, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*Result, error) {
		attempts++
		return a.attempt(ctx, ordered)
	})
	if err != nil {
		a.log.Error("apply rolled back", zap.Int("attempts", attempts), zap.Error(err))
		return nil, err
	}
	res.Attempts = attempts
	a.log.Info("apply committed",
		zap.Int("applied", res.Applied),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("attempts", attempts),
	)
	return res, nil
}

func (a *Applier) attempt(ctx context.Context, ops []model.ChangeOp) (*Result, error) {
	res := &Result{}
	err := a.st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.AcquireLock(ctx, store.LockName, a.cfg.RunID, a.cfg.LockWait); err != nil {
			return err
		}
		snap, err := tx.Snapshot(ctx)
		if err != nil {
			return err
		}

		w := &writer{tx: tx, snap: snap, runID: a.cfg.RunID, now: a.cfg.Now().UTC()}
		for _, op := range ops {
			if err := ctx.Err(); err != nil {
				return eris.Wrap(err, "apply: cancelled")
			}
			r, err := w.apply(ctx, op)
			if err != nil {
				return err
			}
			snap.Apply(op)
			res.Ops = append(res.Ops, r)
			if r.Outcome == OutcomeApplied {
				res.Applied++
			} else {
				res.Unchanged++
			}
		}

		after, err := tx.Snapshot(ctx)
		if err != nil {
			return err
		}
		if violations := guard.Verify(after, guard.ScopeOf(after, ops)); len(violations) > 0 {
			details := make([]string, len(violations))
			for i, v := range violations {
				details[i] = v.String()
			}
			return model.NewKindError(model.KindGuardViolation, "apply: invariants fail before commit: %s", strings.Join(details, "; "))
		}
		res.Snapshot = after
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
