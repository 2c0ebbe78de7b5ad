package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/congress-cli/internal/db"
	"github.com/sells-group/congress-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, dbErr(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, dbErr(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS members (
	id          BIGINT PRIMARY KEY,
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
	is_current  BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS committees (
	id                  BIGINT PRIMARY KEY,
	external_id         TEXT NOT NULL DEFAULT '',
	name                TEXT NOT NULL,
	chamber             TEXT NOT NULL CHECK (chamber IN ('House', 'Senate', 'Joint')),
	is_subcommittee     BOOLEAN NOT NULL DEFAULT false,
	parent_committee_id BIGINT REFERENCES committees(id),
	chair_member_id     BIGINT REFERENCES members(id),
	ranking_member_id   BIGINT REFERENCES members(id),
	is_active           BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS memberships (
	id           BIGSERIAL PRIMARY KEY,
	member_id    BIGINT NOT NULL REFERENCES members(id),
	committee_id BIGINT NOT NULL REFERENCES committees(id),
	role         TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('chair', 'ranking_member', 'member')),
	is_current   BOOLEAN NOT NULL DEFAULT true,
	start_date   TIMESTAMPTZ,
	end_date     TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_memberships_current ON memberships(committee_id, member_id) WHERE is_current;
CREATE INDEX IF NOT EXISTS idx_memberships_member_id ON memberships(member_id);

CREATE TABLE IF NOT EXISTS audit_log (
	id          BIGSERIAL PRIMARY KEY,
	table_name  TEXT NOT NULL,
	record_id   BIGINT NOT NULL,
	operation   TEXT NOT NULL,
	old_value   JSONB,
	new_value   JSONB NOT NULL,
	executed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	actor       TEXT NOT NULL DEFAULT 'reconciler',
	run_id      TEXT NOT NULL DEFAULT '',
	change_op   JSONB
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
	sources    JSONB NOT NULL DEFAULT '[]',
	applied    INTEGER NOT NULL DEFAULT 0,
	rejected   INTEGER NOT NULL DEFAULT 0,
	unchanged  INTEGER NOT NULL DEFAULT 0,
	started_at TIMESTAMPTZ NOT NULL,
	ended_at   TIMESTAMPTZ,
	report     JSONB
);

CREATE INDEX IF NOT EXISTS idx_reconcile_runs_started_at ON reconcile_runs(started_at DESC);
`

const (
	memberColumns     = `id, external_id, first_name, last_name, middle_name, suffix, nickname, party, chamber, state, district, photo_url, is_current`
	committeeColumns  = `id, external_id, name, chamber, is_subcommittee, parent_committee_id, chair_member_id, ranking_member_id, is_active`
	membershipColumns = `id, member_id, committee_id, role, is_current, start_date, end_date`
	runColumns        = `id, mode, status, exit_code, error_kind, error, sources, applied, rejected, unchanged, started_at, ended_at, report`
	auditColumns      = `id, table_name, record_id, operation, old_value, new_value, executed_at, actor, run_id, change_op`
)

func (s *PostgresStore) Ping(ctx context.Context) error {
	return dbErr(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return dbErr(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	return pgSnapshot(ctx, s.pool)
}

func pgSnapshot(ctx context.Context, q db.Conn) (*model.Snapshot, error) {
	rows, err := q.Query(ctx, `SELECT `+memberColumns+` FROM members ORDER BY id`)
	if err != nil {
		return nil, dbErr(err, "postgres: load members")
	}
	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Member, error) {
		return scanMember(row)
	})
	if err != nil {
		return nil, dbErr(err, "postgres: scan members")
	}

	rows, err = q.Query(ctx, `SELECT `+committeeColumns+` FROM committees ORDER BY id`)
	if err != nil {
		return nil, dbErr(err, "postgres: load committees")
	}
	committees, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Committee, error) {
		return scanCommittee(row)
	})
	if err != nil {
		return nil, dbErr(err, "postgres: scan committees")
	}

	rows, err = q.Query(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE is_current ORDER BY id`)
	if err != nil {
		return nil, dbErr(err, "postgres: load memberships")
	}
	memberships, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Membership, error) {
		return scanMembership(row)
	})
	if err != nil {
		return nil, dbErr(err, "postgres: scan memberships")
	}
	return model.NewSnapshot(members, committees, memberships), nil
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return dbErr(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return dbErr(tx.Commit(ctx), "postgres: commit tx")
}

func (s *PostgresStore) Seed(ctx context.Context, ref *model.Reference) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return dbErr(err, "postgres: seed: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	memberRows := make([][]any, 0, len(ref.Members))
	for _, m := range ref.Members {
		memberRows = append(memberRows, []any{m.ID, m.ExternalID, m.FirstName, m.LastName, m.MiddleName, m.Suffix, m.Nickname,
			string(m.Party), string(m.Chamber), m.State, m.District, m.PhotoURL, m.IsCurrent})
	}
	committeeRows := make([][]any, 0, len(ref.Committees))
	for _, c := range ref.Committees {
		committeeRows = append(committeeRows, []any{c.ID, c.ExternalID, c.Name, string(c.Chamber), c.IsSubcommittee,
			c.ParentCommitteeID, c.ChairMemberID, c.RankingMemberID, c.IsActive})
	}
	membershipRows := make([][]any, 0, len(ref.Memberships))
	for _, ms := range ref.Memberships {
		membershipRows = append(membershipRows, []any{ms.ID, ms.MemberID, ms.CommitteeID, string(ms.Role), ms.IsCurrent, ms.StartDate, ms.EndDate})
	}

	for _, step := range []struct {
		cfg  db.UpsertConfig
		rows [][]any
	}{
		{seedUpsert("members", memberColumns), memberRows},
		{seedUpsert("committees", committeeColumns), committeeRows},
		{seedUpsert("memberships", membershipColumns), membershipRows},
	} {
		if _, err := db.UpsertTx(ctx, tx, step.cfg, step.rows); err != nil {
			return dbErrf(err, "postgres: seed %s", step.cfg.Table)
		}
	}
	if len(membershipRows) > 0 {
		if _, err := tx.Exec(ctx, `SELECT setval(pg_get_serial_sequence('memberships', 'id'), (SELECT MAX(id) FROM memberships))`); err != nil {
			return dbErr(err, "postgres: seed: reset membership sequence")
		}
	}
	return dbErr(tx.Commit(ctx), "postgres: seed: commit tx")
}

func seedUpsert(table, columns string) db.UpsertConfig {
	return db.UpsertConfig{Table: table, Columns: splitColumns(columns), ConflictKeys: []string{"id"}}
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.Run) error {
	sources, err := json.Marshal(run.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run sources")
	}
	var report []byte
	if len(run.Report) > 0 {
		report = run.Report
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO reconcile_runs (`+runColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (id) DO UPDATE SET
		   status = $3, exit_code = $4, error_kind = $5, error = $6, applied = $8,
		   rejected = $9, unchanged = $10, ended_at = $12, report = $13`,
		run.ID, string(run.Mode), string(run.Status), run.ExitCode, string(run.ErrorKind), run.Error, sources,
		run.Applied, run.Rejected, run.Unchanged, run.StartedAt, run.EndedAt, report,
	)
	return dbErrf(err, "postgres: save run %s", run.ID)
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM reconcile_runs WHERE id = $1`, id)
	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", id)
	}
	if err != nil {
		return nil, dbErrf(err, "postgres: get run %s", id)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM reconcile_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Mode != "" {
		query += fmt.Sprintf(` AND mode = $%d`, argIdx)
		args = append(args, string(filter.Mode))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, dbErr(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, dbErr(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, dbErr(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ListAudit(ctx context.Context, runID string) ([]model.AuditEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+auditColumns+` FROM audit_log WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, dbErr(err, "postgres: list audit")
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, dbErr(err, "postgres: scan audit")
		}
		out = append(out, *e)
	}
	return out, dbErr(rows.Err(), "postgres: list audit iterate")
}

func (s *PostgresStore) CountAudit(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&n)
	return n, dbErr(err, "postgres: count audit")
}

// pgTx implements Tx over one pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	return pgSnapshot(ctx, t.tx)
}

func (t *pgTx) AcquireLock(ctx context.Context, name, _ string, wait time.Duration) error {
	ok, err := pollLock(ctx, wait, func() (bool, error) {
		var got bool
		err := t.tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock(hashtext($1))`, name).Scan(&got)
		return got, err
	})
	if err != nil {
		return dbErrf(err, "postgres: advisory lock %s", name)
	}
	if !ok {
		return lockContention(name, wait)
	}
	return nil
}

func (t *pgTx) Committee(ctx context.Context, id int64) (*model.Committee, error) {
	c, err := scanCommittee(t.tx.QueryRow(ctx, `SELECT `+committeeColumns+` FROM committees WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: committee %d", id)
	}
	if err != nil {
		return nil, dbErrf(err, "postgres: read committee %d", id)
	}
	return &c, nil
}

func (t *pgTx) CurrentMembership(ctx context.Context, committeeID, memberID int64) (*model.Membership, error) {
	ms, err := scanMembership(t.tx.QueryRow(ctx,
		`SELECT `+membershipColumns+` FROM memberships
		 WHERE committee_id = $1 AND member_id = $2 AND is_current FOR UPDATE`,
		committeeID, memberID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dbErrf(err, "postgres: read membership %d/%d", committeeID, memberID)
	}
	return &ms, nil
}

func (t *pgTx) SetLeader(ctx context.Context, committeeID int64, role model.Role, memberID *int64) error {
	col, err := leaderColumn(role)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `UPDATE committees SET `+col+` = $1 WHERE id = $2`, memberID, committeeID)
	return dbErrf(err, "postgres: set %s on committee %d", col, committeeID)
}

func (t *pgTx) SetMembershipRole(ctx context.Context, membershipID int64, role model.Role) error {
	_, err := t.tx.Exec(ctx, `UPDATE memberships SET role = $1 WHERE id = $2`, string(role), membershipID)
	return dbErrf(err, "postgres: set role on membership %d", membershipID)
}

func (t *pgTx) InsertMembership(ctx context.Context, ms model.Membership) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO memberships (member_id, committee_id, role, is_current, start_date)
		 VALUES ($1, $2, $3, true, $4) RETURNING id`,
		ms.MemberID, ms.CommitteeID, string(ms.Role), ms.StartDate,
	).Scan(&id)
	return id, dbErrf(err, "postgres: insert membership %d/%d", ms.CommitteeID, ms.MemberID)
}

func (t *pgTx) EndMembership(ctx context.Context, membershipID int64, end time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE memberships SET is_current = false, end_date = $1 WHERE id = $2`, end, membershipID)
	return dbErrf(err, "postgres: end membership %d", membershipID)
}

func (t *pgTx) InsertAudit(ctx context.Context, e *model.AuditEntry) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO audit_log (table_name, record_id, operation, old_value, new_value, executed_at, actor, run_id, change_op)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		e.Table, e.RecordID, string(e.Operation), nullJSON(e.OldValue), []byte(e.NewValue), e.ExecutedAt, e.Actor, e.RunID, nullJSON(e.Op),
	).Scan(&id)
	return id, dbErrf(err, "postgres: insert audit for %s %d", e.Table, e.RecordID)
}
