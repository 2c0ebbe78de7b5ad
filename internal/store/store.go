// Package store persists members, committees, memberships, the audit log and
// run history in PostgreSQL or SQLite.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/congress-cli/internal/model"
	"github.com/sells-group/congress-cli/internal/resilience"
)

// LockName is the advisory lock held for the duration of an apply transaction.
const LockName = "reconciliation"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Mode   model.RunMode   `json:"mode,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Reader loads the reference state a run works from.
type Reader interface {
	// Snapshot loads all members, all committees and current memberships.
	Snapshot(ctx context.Context) (*model.Snapshot, error)
}

// Tx is the write surface available inside one apply transaction.
type Tx interface {
	Reader

	// AcquireLock takes the named advisory lock for the rest of the
	// transaction, polling until wait elapses. Contention yields
	// LOCK_CONTENTION.
	AcquireLock(ctx context.Context, name, holder string, wait time.Duration) error

	Committee(ctx context.Context, id int64) (*model.Committee, error)
	// CurrentMembership returns nil without error when none exists.
	CurrentMembership(ctx context.Context, committeeID, memberID int64) (*model.Membership, error)
	SetLeader(ctx context.Context, committeeID int64, role model.Role, memberID *int64) error
	SetMembershipRole(ctx context.Context, membershipID int64, role model.Role) error
	InsertMembership(ctx context.Context, ms model.Membership) (int64, error)
	EndMembership(ctx context.Context, membershipID int64, end time.Time) error
	InsertAudit(ctx context.Context, e *model.AuditEntry) (int64, error)
}

// Store defines the persistence interface for reconciliation.
type Store interface {
	Reader

	// WithTx runs fn in one transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Seed upserts reference members, committees and memberships by id.
	Seed(ctx context.Context, ref *model.Reference) error

	// Runs
	SaveRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Audit
	ListAudit(ctx context.Context, runID string) ([]model.AuditEntry, error)
	CountAudit(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// Open connects to url, inferring the driver from its scheme:
// postgres:// and postgresql:// use pgx, sqlite: or a bare path uses SQLite.
func Open(ctx context.Context, url string, poolCfg *PoolConfig) (Store, error) {
	switch driver, dsn := Driver(url); driver {
	case "postgres":
		return NewPostgres(ctx, dsn, poolCfg)
	case "sqlite":
		return NewSQLite(dsn)
	default:
		return nil, eris.Errorf("store: unsupported database url %q", url)
	}
}

// Driver returns the driver name and DSN for a database url.
func Driver(url string) (string, string) {
	switch {
	case url == "":
		return "", ""
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgres", url
	case strings.HasPrefix(url, "sqlite://"):
		return "sqlite", strings.TrimPrefix(url, "sqlite://")
	case strings.HasPrefix(url, "sqlite:"):
		return "sqlite", strings.TrimPrefix(url, "sqlite:")
	case strings.Contains(url, "://"):
		return "", ""
	default:
		return "sqlite", url
	}
}

// dbErr wraps a driver error, tagging retryable failures DB_TRANSIENT.
func dbErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := eris.Wrap(err, msg)
	if model.KindOf(err) == "" && resilience.IsTransient(err) {
		return model.WithKind(model.KindDBTransient, wrapped)
	}
	return wrapped
}

func dbErrf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	wrapped := eris.Wrapf(err, format, args...)
	if model.KindOf(err) == "" && resilience.IsTransient(err) {
		return model.WithKind(model.KindDBTransient, wrapped)
	}
	return wrapped
}

func lockContention(name string, wait time.Duration) error {
	return model.NewKindError(model.KindLockContention,
		"store: advisory lock %q held by another run (waited %s)", name, wait)
}

// pollLock calls try until it reports the lock taken, wait elapses, or ctx ends.
func pollLock(ctx context.Context, wait time.Duration, try func() (bool, error)) (bool, error) {
	deadline := time.Now().Add(wait)
	for {
		ok, err := try()
		if err != nil || ok {
			return ok, err
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		delay := min(lockPollInterval, time.Until(deadline))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, eris.Wrap(ctx.Err(), "store: waiting for advisory lock")
		case <-timer.C:
		}
	}
}

const lockPollInterval = 100 * time.Millisecond
