package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var membersUpsert = UpsertConfig{
	Table:        "members",
	Columns:      []string{"id", "last_name", "state"},
	ConflictKeys: []string{"id"},
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestUpsertTx_EmptyRows(t *testing.T) {
	n, err := UpsertTx(context.Background(), nil, membersUpsert, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestUpsertTx_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  UpsertConfig
		want string
	}{
		{"no columns", UpsertConfig{Table: "members", ConflictKeys: []string{"id"}}, "no columns specified"},
		{"no conflict keys", UpsertConfig{Table: "members", Columns: []string{"id", "last_name"}}, "no conflict keys specified"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UpsertTx(context.Background(), nil, tt.cfg, [][]any{{int64(1), "Durbin"}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestUpsertTx_Success(t *testing.T) {
	mock := newMock(t)
	rows := [][]any{{int64(1), "Durbin", "IL"}, {int64(2), "Grassley", "IA"}}

	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_members" \(LIKE "members" INCLUDING DEFAULTS\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_members"}, membersUpsert.Columns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "members" \("id", "last_name", "state"\) SELECT .* ON CONFLICT \("id"\) DO UPDATE SET "last_name" = EXCLUDED."last_name", "state" = EXCLUDED."state"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	n, err := UpsertTx(context.Background(), mock, membersUpsert, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertTx_CopyFails(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_members"}, membersUpsert.Columns).WillReturnError(errors.New("permission denied"))

	_, err := UpsertTx(context.Background(), mock, membersUpsert, [][]any{{int64(1), "Durbin", "IL"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for members")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertTx_DoNothingWhenOnlyKeys(t *testing.T) {
	mock := newMock(t)
	cfg := UpsertConfig{Table: "member_tags", Columns: []string{"name"}, ConflictKeys: []string{"name"}}

	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_member_tags"}, cfg.Columns).WillReturnResult(1)
	mock.ExpectExec(`ON CONFLICT \("name"\) DO NOTHING`).WillReturnResult(pgxmock.NewResult("INSERT", 0))

	n, err := UpsertTx(context.Background(), mock, cfg, [][]any{{"leadership"}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"members", `"members"`},
		{"public.committees", `"public"."committees"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "name", "chamber"`, quoteAndJoin([]string{"id", "name", "chamber"}))
}

func TestTempTableName(t *testing.T) {
	assert.Equal(t, "_tmp_upsert_public_memberships", TempTableName("public.memberships"))
}
