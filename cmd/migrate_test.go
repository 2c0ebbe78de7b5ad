package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/congress-cli/internal/model"
)

const seedYAML = `members:
  - id: 1
    first_name: Richard
    nickname: Dick
    last_name: Durbin
    party: Democratic
    chamber: Senate
    state: IL
    is_current: true
  - id: 2
    first_name: Chuck
    last_name: Grassley
    party: Republican
    chamber: Senate
    state: IA
    is_current: true
committees:
  - id: 100
    name: Committee on the Judiciary
    chamber: Senate
    chair_member_id: 1
    ranking_member_id: 2
    is_active: true
memberships:
  - id: 1
    committee_id: 100
    member_id: 1
    role: chair
    is_current: true
  - id: 2
    committee_id: 100
    member_id: 2
    role: ranking_member
    is_current: true
`

const seedJSON = `{
  "members": [
    {"id": 3, "first_name": "Alex", "last_name": "Padilla", "party": "Democratic", "chamber": "Senate", "state": "CA", "is_current": true}
  ],
  "committees": [
    {"id": 101, "name": "Committee on Health, Education, Labor and Pensions", "chamber": "Senate", "is_active": true}
  ],
  "memberships": []
}`

func TestLoadReference_YAML(t *testing.T) {
	ref, err := loadReference(writeFile(t, "seed.yaml", seedYAML))
	require.NoError(t, err)
	require.Len(t, ref.Members, 2)
	assert.Equal(t, "Dick", ref.Members[0].Nickname)
	assert.Equal(t, model.ChamberSenate, ref.Members[1].Chamber)
	require.Len(t, ref.Committees, 1)
	require.NotNil(t, ref.Committees[0].ChairMemberID)
	assert.Equal(t, int64(1), *ref.Committees[0].ChairMemberID)
	require.Len(t, ref.Memberships, 2)
	assert.Equal(t, model.RoleRanking, ref.Memberships[1].Role)
}

func TestLoadReference_JSON(t *testing.T) {
	ref, err := loadReference(writeFile(t, "seed.json", seedJSON))
	require.NoError(t, err)
	require.Len(t, ref.Members, 1)
	assert.Equal(t, "Padilla", ref.Members[0].LastName)
	assert.Empty(t, ref.Memberships)
}

func TestLoadReference_Errors(t *testing.T) {
	_, err := loadReference(writeFile(t, "seed.txt", "members: []"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")

	_, err = loadReference(writeFile(t, "seed.json", "{"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode seed")

	_, err = loadReference("/nonexistent/seed.yaml")
	require.Error(t, err)
}

func TestLoadReference_SeedsStore(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ref, err := loadReference(writeFile(t, "seed.json", seedJSON))
	require.NoError(t, err)
	require.NoError(t, st.Seed(ctx, ref))

	snap, err := st.Snapshot(ctx)
	require.NoError(t, err)
	m, ok := snap.Member(3)
	require.True(t, ok)
	assert.Equal(t, "CA", m.State)
}
