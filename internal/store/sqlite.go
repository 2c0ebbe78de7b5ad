package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sells-group/congress-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// One connection serializes writers and keeps pragmas in effect.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout.Milliseconds()),
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, dbErrf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS members (
	id          INTEGER PRIMARY KEY,
	external_id TEXT NOT NULL DEFAULT '',
	first_name  TEXT NOT NULL DEFAULT '',
	last_name   TEXT NOT NULL,
	middle_name TEXT NOT NULL DEFAULT '',
	suffix      TEXT NOT NULL DEFAULT '',
	nickname    TEXT NOT NULL DEFAULT '',
	party       TEXT NOT NULL DEFAULT '',
	chamber     TEXT NOT NULL CHECK (chamber IN ('House', 'Senate')),
	state       TEXT NOT NULL DEFAULT '',
	district    TEXT NOT NULL DEFAULT '',
	photo_url   TEXT NOT NULL DEFAULT '',
	is_current  INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS committees (
	id                  INTEGER PRIMARY KEY,
	external_id         TEXT NOT NULL DEFAULT '',
	name                TEXT NOT NULL,
	chamber             TEXT NOT NULL CHECK (chamber IN ('House', 'Senate', 'Joint')),
	is_subcommittee     INTEGER NOT NULL DEFAULT 0,
	parent_committee_id INTEGER REFERENCES committees(id),
	chair_member_id     INTEGER REFERENCES members(id),
	ranking_member_id   INTEGER REFERENCES members(id),
	is_active           INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS memberships (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	member_id    INTEGER NOT NULL REFERENCES members(id),
	committee_id INTEGER NOT NULL REFERENCES committees(id),
	role         TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('chair', 'ranking_member', 'member')),
	is_current   INTEGER NOT NULL DEFAULT 1,
	start_date   DATETIME,
	end_date     DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_memberships_current ON memberships(committee_id, member_id) WHERE is_current = 1;
CREATE INDEX IF NOT EXISTS idx_memberships_member_id ON memberships(member_id);

CREATE TABLE IF NOT EXISTS audit_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	table_name  TEXT NOT NULL,
	record_id   INTEGER NOT NULL,
	operation   TEXT NOT NULL,
	old_value   TEXT,
	new_value   TEXT NOT NULL,
	executed_at DATETIME NOT NULL DEFAULT (datetime('now')),
	actor       TEXT NOT NULL DEFAULT 'reconciler',
	run_id      TEXT NOT NULL DEFAULT '',
	change_op   TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_log_run_id ON audit_log(run_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_record ON audit_log(table_name, record_id);

CREATE TABLE IF NOT EXISTS reconcile_runs (
	id         TEXT PRIMARY KEY,
	mode       TEXT NOT NULL,
	status     TEXT NOT NULL,
	exit_code  INTEGER NOT NULL DEFAULT 0,
	error_kind TEXT NOT NULL DEFAULT '',
	error      TEXT NOT NULL DEFAULT '',
	sources    TEXT NOT NULL DEFAULT '[]',
	applied    INTEGER NOT NULL DEFAULT 0,
	rejected   INTEGER NOT NULL DEFAULT 0,
	unchanged  INTEGER NOT NULL DEFAULT 0,
	started_at DATETIME NOT NULL,
	ended_at   DATETIME,
	report     TEXT
);

CREATE INDEX IF NOT EXISTS idx_reconcile_runs_started_at ON reconcile_runs(started_at);

CREATE TABLE IF NOT EXISTS advisory_locks (
	name        TEXT PRIMARY KEY,
	holder      TEXT NOT NULL,
	acquired_at DATETIME NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return dbErr(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return dbErr(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying handle.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	return liteSnapshot(ctx, s.db)
}

func liteSnapshot(ctx context.Context, q sqlQuerier) (*model.Snapshot, error) {
	members, err := collect(ctx, q, `SELECT `+memberColumns+` FROM members ORDER BY id`, scanMember)
	if err != nil {
		return nil, dbErr(err, "sqlite: load members")
	}
	committees, err := collect(ctx, q, `SELECT `+committeeColumns+` FROM committees ORDER BY id`, scanCommittee)
	if err != nil {
		return nil, dbErr(err, "sqlite: load committees")
	}
	memberships, err := collect(ctx, q, `SELECT `+membershipColumns+` FROM memberships WHERE is_current = 1 ORDER BY id`, scanMembership)
	if err != nil {
		return nil, dbErr(err, "sqlite: load memberships")
	}
	return model.NewSnapshot(members, committees, memberships), nil
}

func collect[T any](ctx context.Context, q sqlQuerier, query string, scan func(scannable) (T, error), args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbErr(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	lt := &liteTx{tx: tx}
	if err := fn(ctx, lt); err != nil {
		return err
	}
	if err := lt.release(ctx); err != nil {
		return err
	}
	return dbErr(tx.Commit(), "sqlite: commit tx")
}

func (s *SQLiteStore) Seed(ctx context.Context, ref *model.Reference) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbErr(err, "sqlite: seed: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	// Leadership columns reference members; committees go in before their
	// parents may exist, so foreign keys are checked at commit.
	if _, err := tx.ExecContext(ctx, `PRAGMA defer_foreign_keys = ON`); err != nil {
		return dbErr(err, "sqlite: seed: defer foreign keys")
	}
	for _, m := range ref.Members {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO members (`+memberColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.ExternalID, m.FirstName, m.LastName, m.MiddleName, m.Suffix, m.Nickname,
			string(m.Party), string(m.Chamber), m.State, m.District, m.PhotoURL, m.IsCurrent,
		); err != nil {
			return dbErrf(err, "sqlite: seed member %d", m.ID)
		}
	}
	for _, c := range ref.Committees {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO committees (`+committeeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.ExternalID, c.Name, string(c.Chamber), c.IsSubcommittee,
			c.ParentCommitteeID, c.ChairMemberID, c.RankingMemberID, c.IsActive,
		); err != nil {
			return dbErrf(err, "sqlite: seed committee %d", c.ID)
		}
	}
	for _, ms := range ref.Memberships {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO memberships (`+membershipColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ms.ID, ms.MemberID, ms.CommitteeID, string(ms.Role), ms.IsCurrent, ms.StartDate, ms.EndDate,
		); err != nil {
			return dbErrf(err, "sqlite: seed membership %d", ms.ID)
		}
	}
	return dbErr(tx.Commit(), "sqlite: seed: commit tx")
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	sources, err := json.Marshal(run.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run sources")
	}
	var report any
	if len(run.Report) > 0 {
		report = string(run.Report)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reconcile_runs (`+runColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   status = excluded.status, exit_code = excluded.exit_code, error_kind = excluded.error_kind,
		   error = excluded.error, applied = excluded.applied, rejected = excluded.rejected,
		   unchanged = excluded.unchanged, ended_at = excluded.ended_at, report = excluded.report`,
		run.ID, string(run.Mode), string(run.Status), run.ExitCode, string(run.ErrorKind), run.Error, string(sources),
		run.Applied, run.Rejected, run.Unchanged, run.StartedAt, run.EndedAt, report,
	)
	return dbErrf(err, "sqlite: save run %s", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM reconcile_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get run %s", id)
	}
	if err != nil {
		return nil, dbErrf(err, "sqlite: get run %s", id)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM reconcile_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Mode != "" {
		query += ` AND mode = ?`
		args = append(args, string(filter.Mode))
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	runs, err := collect(ctx, s.db, query, func(row scannable) (model.Run, error) {
		r, err := scanRun(row)
		if err != nil {
			return model.Run{}, err
		}
		return *r, nil
	}, args...)
	return runs, dbErr(err, "sqlite: list runs")
}

func (s *SQLiteStore) ListAudit(ctx context.Context, runID string) ([]model.AuditEntry, error) {
	entries, err := collect(ctx, s.db, `SELECT `+auditColumns+` FROM audit_log WHERE run_id = ? ORDER BY id`,
		func(row scannable) (model.AuditEntry, error) {
			e, err := scanAudit(row)
			if err != nil {
				return model.AuditEntry{}, err
			}
			return *e, nil
		}, runID)
	return entries, dbErr(err, "sqlite: list audit")
}

func (s *SQLiteStore) CountAudit(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&n)
	return n, dbErr(err, "sqlite: count audit")
}

// liteTx implements Tx over one database/sql transaction.
//
// AcquireLock is the transaction's first write, so it also takes SQLite's
// single writer lock; a run holding that lock excludes writers on every other
// connection until it commits or rolls back. The advisory_locks row adds the
// holder name and catches rows left behind by a crashed process.
type liteTx struct {
	tx    *sql.Tx
	locks [][2]string
}

func (t *liteTx) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	return liteSnapshot(ctx, t.tx)
}

func (t *liteTx) AcquireLock(ctx context.Context, name, holder string, wait time.Duration) error {
	// Each attempt waits at most one poll interval on the writer lock so
	// that wait and ctx are honored between attempts.
	if err := t.setBusyTimeout(ctx, min(wait, lockPollInterval)); err != nil {
		return err
	}
	defer t.setBusyTimeout(ctx, busyTimeout) //nolint:errcheck

	ok, err := pollLock(ctx, wait, func() (bool, error) {
		res, err := t.tx.ExecContext(ctx,
			`INSERT INTO advisory_locks (name, holder, acquired_at) VALUES (?, ?, ?) ON CONFLICT (name) DO NOTHING`,
			name, holder, time.Now().UTC(),
		)
		if isBusy(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		return n == 1, err
	})
	if err != nil {
		return dbErrf(err, "sqlite: advisory lock %s", name)
	}
	if !ok {
		return lockContention(name, wait)
	}
	t.locks = append(t.locks, [2]string{name, holder})
	return nil
}

func (t *liteTx) setBusyTimeout(ctx context.Context, d time.Duration) error {
	_, err := t.tx.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", d.Milliseconds()))
	return dbErr(err, "sqlite: set busy timeout")
}

func (t *liteTx) release(ctx context.Context) error {
	for _, l := range t.locks {
		if _, err := t.tx.ExecContext(ctx, `DELETE FROM advisory_locks WHERE name = ? AND holder = ?`, l[0], l[1]); err != nil {
			return dbErrf(err, "sqlite: release lock %s", l[0])
		}
	}
	return nil
}

// busyTimeout is how long ordinary statements wait on another writer.
const busyTimeout = 5 * time.Second

// isBusy reports whether err is SQLite refusing the writer lock.
func isBusy(err error) bool {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	switch liteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

func (t *liteTx) Committee(ctx context.Context, id int64) (*model.Committee, error) {
	c, err := scanCommittee(t.tx.QueryRowContext(ctx, `SELECT `+committeeColumns+` FROM committees WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: committee %d", id)
	}
	if err != nil {
		return nil, dbErrf(err, "sqlite: read committee %d", id)
	}
	return &c, nil
}

func (t *liteTx) CurrentMembership(ctx context.Context, committeeID, memberID int64) (*model.Membership, error) {
	ms, err := scanMembership(t.tx.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE committee_id = ? AND member_id = ? AND is_current = 1`,
		committeeID, memberID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dbErrf(err, "sqlite: read membership %d/%d", committeeID, memberID)
	}
	return &ms, nil
}

func (t *liteTx) SetLeader(ctx context.Context, committeeID int64, role model.Role, memberID *int64) error {
	col, err := leaderColumn(role)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `UPDATE committees SET `+col+` = ? WHERE id = ?`, memberID, committeeID)
	return dbErrf(err, "sqlite: set %s on committee %d", col, committeeID)
}

func (t *liteTx) SetMembershipRole(ctx context.Context, membershipID int64, role model.Role) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE memberships SET role = ? WHERE id = ?`, string(role), membershipID)
	return dbErrf(err, "sqlite: set role on membership %d", membershipID)
}

func (t *liteTx) InsertMembership(ctx context.Context, ms model.Membership) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO memberships (member_id, committee_id, role, is_current, start_date) VALUES (?, ?, ?, 1, ?)`,
		ms.MemberID, ms.CommitteeID, string(ms.Role), ms.StartDate,
	)
	if err != nil {
		return 0, dbErrf(err, "sqlite: insert membership %d/%d", ms.CommitteeID, ms.MemberID)
	}
	id, err := res.LastInsertId()
	return id, dbErr(err, "sqlite: membership id")
}

func (t *liteTx) EndMembership(ctx context.Context, membershipID int64, end time.Time) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE memberships SET is_current = 0, end_date = ? WHERE id = ?`, end, membershipID)
	return dbErrf(err, "sqlite: end membership %d", membershipID)
}

func (t *liteTx) InsertAudit(ctx context.Context, e *model.AuditEntry) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO audit_log (table_name, record_id, operation, old_value, new_value, executed_at, actor, run_id, change_op)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Table, e.RecordID, string(e.Operation), nullText(e.OldValue), string(e.NewValue), e.ExecutedAt, e.Actor, e.RunID, nullText(e.Op),
	)
	if err != nil {
		return 0, dbErrf(err, "sqlite: insert audit for %s %d", e.Table, e.RecordID)
	}
	id, err := res.LastInsertId()
	return id, dbErr(err, "sqlite: audit id")
}

func nullText(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
