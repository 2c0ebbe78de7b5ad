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

func testCommittees() []model.Committee {
	return []model.Committee{
		{ID: 10, Name: "Committee on the Judiciary", Chamber: model.ChamberSenate, IsActive: true},
		{ID: 11, Name: "Committee on Health, Education, Labor and Pensions", Chamber: model.ChamberSenate, IsActive: true},
		{ID: 12, Name: "Committee on Finance", Chamber: model.ChamberSenate, IsActive: true},
		{ID: 13, Name: "Committee on the Judiciary", Chamber: model.ChamberHouse, IsActive: true},
		{ID: 14, Name: "Subcommittee on Crime and Federal Government Surveillance", Chamber: model.ChamberHouse, IsSubcommittee: true, ParentCommitteeID: model.Int64Ptr(13), IsActive: true},
		{ID: 15, Name: "Joint Economic Committee", Chamber: model.ChamberJoint, IsActive: true},
		{ID: 16, Name: "Committee on Energy and Natural Resources", Chamber: model.ChamberSenate, IsActive: true},
		{ID: 17, Name: "Committee on Energy and Commerce", Chamber: model.ChamberHouse, IsActive: true},
		{ID: 18, Name: "Special Committee on Aging", Chamber: model.ChamberSenate, IsActive: true},
	}
}

func matchCommittee(m *CommitteeMatcher, raw string, chamber model.Chamber) model.MatchResult {
	return m.Match(context.Background(), normalize.CommitteeName(raw, chamber))
}

func TestCommitteeMatcher_Exact(t *testing.T) {
	m := NewCommitteeMatcher(testCommittees(), 0)

	res := matchCommittee(m, "Committee on the Judiciary", model.ChamberSenate)
	require.True(t, res.Matched())
	assert.Equal(t, int64(10), res.ID)
	assert.Equal(t, float64(ConfidenceExact), res.Confidence)

	res = matchCommittee(m, "Judiciary Committee", model.ChamberHouse)
	require.True(t, res.Matched())
	assert.Equal(t, int64(13), res.ID)
}

func TestCommitteeMatcher_JointCommitteeFromChamberPool(t *testing.T) {
	m := NewCommitteeMatcher(testCommittees(), 0)

	res := matchCommittee(m, "Joint Economic Committee", model.ChamberSenate)
	require.True(t, res.Matched())
	assert.Equal(t, int64(15), res.ID)

	res = matchCommittee(m, "Joint Economic Committee", model.ChamberJoint)
	require.True(t, res.Matched())
	assert.Equal(t, int64(15), res.ID)
}

func TestCommitteeMatcher_Synonym(t *testing.T) {
	m := NewCommitteeMatcher(testCommittees(), 0)

	res := matchCommittee(m, "Committee on Health, Education, Labor, and Pensions", model.ChamberSenate)
	require.True(t, res.Matched())
	assert.Equal(t, int64(11), res.ID)
	assert.Equal(t, float64(ConfidenceSynonym), res.Confidence)
	assert.Contains(t, res.Rules, "synonym")

	res = matchCommittee(m, "Aging (Special)", model.ChamberSenate)
	require.True(t, res.Matched())
	assert.Equal(t, int64(18), res.ID)
}

func TestCommitteeMatcher_TokenSet(t *testing.T) {
	m := NewCommitteeMatcher(testCommittees(), 0)

	res := matchCommittee(m, "Energy & Natural Resources Cmte", model.ChamberSenate)
	require.True(t, res.Matched())
	assert.Equal(t, int64(16), res.ID)
	// 0.6*100 + 20 chamber + 10 standing
	assert.Equal(t, float64(90), res.Confidence)
	assert.Contains(t, res.Rules, "token_set")
}

func TestCommitteeMatcher_SubcommitteeCollision(t *testing.T) {
	m := NewCommitteeMatcher(testCommittees(), 0)

	res := matchCommittee(m, "Crime and Federal Government Surveillance", model.ChamberHouse)
	assert.Equal(t, model.MatchSubcommitteeCollision, res.Status)
	assert.Equal(t, model.KindMatchAmbiguous, res.Kind())
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, int64(14), res.Candidates[0].ID)

	res = matchCommittee(m, "Subcommittee on Crime and Federal Government Surveillance", model.ChamberHouse)
	require.True(t, res.Matched())
	assert.Equal(t, int64(14), res.ID)
}

func TestCommitteeMatcher_Ambiguous(t *testing.T) {
	m := NewCommitteeMatcher(testCommittees(), 0)

	res := matchCommittee(m, "Energy", "")
	assert.Equal(t, model.MatchAmbiguous, res.Status)
}

func TestCommitteeMatcher_ChamberMismatch(t *testing.T) {
	m := NewCommitteeMatcher(testCommittees(), 0)

	res := matchCommittee(m, "Committee on Energy and Commerce", model.ChamberSenate)
	assert.Equal(t, model.MatchChamberMismatch, res.Status)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, int64(17), res.Candidates[len(res.Candidates)-1].ID)
}

func TestCommitteeMatcher_NoCandidate(t *testing.T) {
	m := NewCommitteeMatcher(testCommittees(), 0)

	res := matchCommittee(m, "Committee on Underwater Basket Weaving", model.ChamberSenate)
	assert.Equal(t, model.MatchNoCandidate, res.Status)
	assert.LessOrEqual(t, len(res.Candidates), 3)
}

func TestCommitteeMatcher_BudgetTimeout(t *testing.T) {
	m := NewCommitteeMatcher(testCommittees(), 250*time.Millisecond)
	clock := time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	res := matchCommittee(m, "Committee on Finanse", model.ChamberSenate)
	assert.Equal(t, model.MatchNoCandidate, res.Status)
	assert.Contains(t, res.Rules, "timeout")
	assert.Empty(t, res.Candidates)

	res = matchCommittee(m, "Committee on Finance", model.ChamberSenate)
	require.True(t, res.Matched(), "exact lookups finish before the budget applies")
	assert.Equal(t, int64(12), res.ID)
}

func TestCommitteeMatcher_DefaultBudget(t *testing.T) {
	assert.Equal(t, DefaultMatchBudget, NewCommitteeMatcher(nil, 0).budget)
	assert.Equal(t, time.Second, NewCommitteeMatcher(nil, time.Second).budget)
}
