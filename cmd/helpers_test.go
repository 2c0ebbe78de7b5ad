package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/congress-cli/internal/model"
	"github.com/sells-group/congress-cli/internal/store"
)

func testReference() *model.Reference {
	return &model.Reference{
		Members: []model.Member{
			{ID: 1, FirstName: "Richard", Nickname: "Dick", LastName: "Durbin", Party: model.PartyDemocratic, Chamber: model.ChamberSenate, State: "IL", IsCurrent: true},
			{ID: 2, FirstName: "Chuck", LastName: "Grassley", Party: model.PartyRepublican, Chamber: model.ChamberSenate, State: "IA", IsCurrent: true},
			{ID: 3, FirstName: "Alex", LastName: "Padilla", Party: model.PartyDemocratic, Chamber: model.ChamberSenate, State: "CA", IsCurrent: true},
			{ID: 7, FirstName: "Adam", LastName: "Smith", Party: model.PartyDemocratic, Chamber: model.ChamberHouse, State: "WA", IsCurrent: true},
			{ID: 8, FirstName: "Jason", LastName: "Smith", Party: model.PartyRepublican, Chamber: model.ChamberHouse, State: "MO", IsCurrent: true},
		},
		Committees: []model.Committee{
			{ID: 100, Name: "Committee on the Judiciary", Chamber: model.ChamberSenate, ChairMemberID: model.Int64Ptr(1), RankingMemberID: model.Int64Ptr(2), IsActive: true},
			{ID: 101, Name: "Committee on Health, Education, Labor and Pensions", Chamber: model.ChamberSenate, IsActive: true},
		},
		Memberships: []model.Membership{
			{ID: 1, CommitteeID: 100, MemberID: 1, Role: model.RoleChair, IsCurrent: true},
			{ID: 2, CommitteeID: 100, MemberID: 2, Role: model.RoleRanking, IsCurrent: true},
		},
	}
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "congress.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.Seed(ctx, testReference()))
	return st
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const flipLeadership = `{
  "committees": [
    {"name": "Committee on the Judiciary", "chamber": "Senate", "chair": "Chuck Grassley (R-IA)", "ranking_member": "Dick Durbin (D-IL)"}
  ]
}`
