package match

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/congress-cli/internal/model"
	"github.com/sells-group/congress-cli/internal/normalize"
)

func testMembers() []model.Member {
	return []model.Member{
		{ID: 1, ExternalID: "D000563", FirstName: "Richard", Nickname: "Dick", LastName: "Durbin", Party: model.PartyDemocratic, Chamber: model.ChamberSenate, State: "IL", IsCurrent: true},
		{ID: 2, ExternalID: "G000386", FirstName: "Chuck", LastName: "Grassley", Party: model.PartyRepublican, Chamber: model.ChamberSenate, State: "IA", IsCurrent: true},
		{ID: 3, ExternalID: "P000145", FirstName: "Alex", LastName: "Padilla", Party: model.PartyDemocratic, Chamber: model.ChamberSenate, State: "CA", IsCurrent: true},
		{ID: 4, FirstName: "Adam", LastName: "Smith", Party: model.PartyDemocratic, Chamber: model.ChamberHouse, State: "WA", District: "9", IsCurrent: true},
		{ID: 5, FirstName: "Jason", LastName: "Smith", Party: model.PartyRepublican, Chamber: model.ChamberHouse, State: "MO", District: "8", IsCurrent: true},
		{ID: 6, FirstName: "Christopher", LastName: "Smith", Party: model.PartyRepublican, Chamber: model.ChamberHouse, State: "NJ", District: "4", IsCurrent: true},
		{ID: 7, FirstName: "Jared", LastName: "Golden", Party: model.PartyDemocratic, Chamber: model.ChamberHouse, State: "ME", District: "2", IsCurrent: true},
		{ID: 8, FirstName: "Tina", LastName: "Smith", Party: model.PartyDemocratic, Chamber: model.ChamberSenate, State: "MN", IsCurrent: true},
		{ID: 9, ExternalID: "F000062", FirstName: "Dianne", LastName: "Feinstein", Party: model.PartyDemocratic, Chamber: model.ChamberSenate, State: "CA", IsCurrent: false},
	}
}

func memberQuery(t *testing.T, raw string, chamber model.Chamber) MemberQuery {
	t.Helper()
	p, err := normalize.PersonName(raw)
	require.NoError(t, err)
	return MemberQuery{Person: p, Chamber: chamber, State: p.State, Party: p.Party}
}

func TestMemberMatcher_LastNameAndState(t *testing.T) {
	m := NewMemberMatcher(testMembers(), MemberConfig{})

	res := m.Match(context.Background(), memberQuery(t, "Sen. Charles E. Grassley (R-IA)", model.ChamberSenate))
	require.True(t, res.Matched())
	assert.Equal(t, int64(2), res.ID)
	assert.Equal(t, float64(ConfidenceLastState), res.Confidence)
	assert.Contains(t, res.Rules, "last_state")
	assert.Contains(t, res.Rules, "honorific")
}

func TestMemberMatcher_StateNarrowsSharedLastName(t *testing.T) {
	m := NewMemberMatcher(testMembers(), MemberConfig{})

	q := memberQuery(t, "Smith", model.ChamberSenate)
	q.State = "MN"
	res := m.Match(context.Background(), q)
	require.True(t, res.Matched())
	assert.Equal(t, int64(8), res.ID)
	assert.Equal(t, float64(100), res.Confidence)
}

func TestMemberMatcher_AmbiguousLastName(t *testing.T) {
	m := NewMemberMatcher(testMembers(), MemberConfig{})

	res := m.Match(context.Background(), memberQuery(t, "Smith", model.ChamberHouse))
	assert.Equal(t, model.MatchAmbiguous, res.Status)
	assert.Equal(t, model.KindMatchAmbiguous, res.Kind())
	require.Len(t, res.Candidates, 3)
	assert.Equal(t, int64(4), res.Candidates[0].ID)
	assert.Equal(t, int64(5), res.Candidates[1].ID)
	assert.Equal(t, int64(6), res.Candidates[2].ID)
}

func TestMemberMatcher_FirstInitial(t *testing.T) {
	m := NewMemberMatcher(testMembers(), MemberConfig{})

	res := m.Match(context.Background(), memberQuery(t, "Rep. Jason Smith", model.ChamberHouse))
	require.True(t, res.Matched())
	assert.Equal(t, int64(5), res.ID)
	assert.Equal(t, float64(ConfidenceFirstInitial), res.Confidence)
	assert.Contains(t, res.Rules, "first_initial")
}

func TestMemberMatcher_StrictStateRefusesToGuess(t *testing.T) {
	m := NewMemberMatcher(testMembers(), MemberConfig{StrictState: true})

	res := m.Match(context.Background(), memberQuery(t, "Jason Smith", model.ChamberHouse))
	assert.Equal(t, model.MatchAmbiguous, res.Status)
	assert.Contains(t, res.Rules, "strict_state")
}

func TestMemberMatcher_UniqueLastNameInChamber(t *testing.T) {
	m := NewMemberMatcher(testMembers(), MemberConfig{})

	res := m.Match(context.Background(), memberQuery(t, "Durbin", model.ChamberSenate))
	require.True(t, res.Matched())
	assert.Equal(t, int64(1), res.ID)
	assert.Equal(t, float64(ConfidenceLastChamber), res.Confidence)
}

func TestMemberMatcher_ChamberHint(t *testing.T) {
	m := NewMemberMatcher(testMembers(), MemberConfig{})

	res := m.Match(context.Background(), memberQuery(t, "Jared Golden", model.ChamberSenate))
	require.True(t, res.Matched())
	assert.Equal(t, int64(7), res.ID)
	assert.NotEmpty(t, res.Notes)

	q := memberQuery(t, "Jared Golden", model.ChamberSenate)
	q.ChamberHard = true
	res = m.Match(context.Background(), q)
	assert.Equal(t, model.MatchChamberMismatch, res.Status)
	assert.Equal(t, model.KindMatchChamberMismatch, res.Kind())
}

func TestMemberMatcher_StateMatchInOtherChamber(t *testing.T) {
	m := NewMemberMatcher(testMembers(), MemberConfig{})

	res := m.Match(context.Background(), memberQuery(t, "Rep. Jared Golden (D-ME-02)", model.ChamberSenate))
	require.True(t, res.Matched())
	assert.Equal(t, int64(7), res.ID)
	assert.Equal(t, float64(100), res.Confidence)
}

func TestMemberMatcher_PartyMismatchLowersConfidence(t *testing.T) {
	m := NewMemberMatcher(testMembers(), MemberConfig{})

	res := m.Match(context.Background(), memberQuery(t, "Chuck Grassley (D-IA)", model.ChamberSenate))
	require.True(t, res.Matched())
	assert.Equal(t, int64(2), res.ID)
	assert.Equal(t, float64(85), res.Confidence)
	assert.Contains(t, res.Rules, "party_mismatch")
	assert.NotEmpty(t, res.Notes)
}

func TestMemberMatcher_BioguideID(t *testing.T) {
	m := NewMemberMatcher(testMembers(), MemberConfig{})

	q := memberQuery(t, "Dianne Feinstein", model.ChamberSenate)
	q.BioguideID = "f000062"
	res := m.Match(context.Background(), q)
	require.True(t, res.Matched())
	assert.Equal(t, int64(9), res.ID)
	assert.Contains(t, res.Rules, "bioguide_id")

	// Without the id a former member is not a candidate.
	res = m.Match(context.Background(), memberQuery(t, "Dianne Feinstein", model.ChamberSenate))
	assert.False(t, res.Matched())
}

func TestMemberMatcher_Similarity(t *testing.T) {
	m := NewMemberMatcher(testMembers(), MemberConfig{})

	q := memberQuery(t, "Alex Padila", model.ChamberSenate)
	q.State = "CA"
	res := m.Match(context.Background(), q)
	require.True(t, res.Matched())
	assert.Equal(t, int64(3), res.ID)
	assert.InDelta(t, 91.67, res.Confidence, 0.01)
	assert.Contains(t, res.Rules, "token_sort")
}

func TestMemberMatcher_NoCandidate(t *testing.T) {
	m := NewMemberMatcher(testMembers(), MemberConfig{})

	res := m.Match(context.Background(), memberQuery(t, "Zed Nobody", model.ChamberSenate))
	assert.Equal(t, model.MatchNoCandidate, res.Status)
	assert.Equal(t, model.KindMatchNoCandidate, res.Kind())
}

func TestMemberMatcher_BudgetTimeout(t *testing.T) {
	m := NewMemberMatcher(testMembers(), MemberConfig{Budget: 250 * time.Millisecond})
	clock := time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	q := memberQuery(t, "Alex Padila", model.ChamberSenate)
	q.State = "CA"
	res := m.Match(context.Background(), q)
	assert.Equal(t, model.MatchNoCandidate, res.Status)
	assert.Contains(t, res.Rules, "timeout")
}
