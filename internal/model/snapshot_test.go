package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func judiciarySnapshot() *Snapshot {
	return NewSnapshot(
		[]Member{
			{ID: 1, LastName: "Durbin", Party: PartyDemocratic, Chamber: ChamberSenate, State: "IL", IsCurrent: true},
			{ID: 2, LastName: "Grassley", Party: PartyRepublican, Chamber: ChamberSenate, State: "IA", IsCurrent: true},
			{ID: 3, LastName: "Padilla", Party: PartyDemocratic, Chamber: ChamberSenate, State: "CA", IsCurrent: true},
		},
		[]Committee{{ID: 10, Name: "Committee on the Judiciary", Chamber: ChamberSenate, ChairMemberID: Int64Ptr(1), RankingMemberID: Int64Ptr(2), IsActive: true}},
		[]Membership{
			{ID: 100, MemberID: 1, CommitteeID: 10, Role: RoleChair, IsCurrent: true},
			{ID: 101, MemberID: 2, CommitteeID: 10, Role: RoleRanking, IsCurrent: true},
			{ID: 102, MemberID: 3, CommitteeID: 10, Role: RoleMember, IsCurrent: false},
		},
	)
}

func TestNewSnapshot_DropsNonCurrentMemberships(t *testing.T) {
	s := judiciarySnapshot()
	assert.Len(t, s.Memberships, 2)
	assert.Nil(t, s.Membership(10, 3))
	assert.False(t, s.HoldsMembership(3))
}

func TestSnapshot_ApplyLeadershipFlip(t *testing.T) {
	s := judiciarySnapshot().Clone()

	s.Apply(NewAssign(RoleChair, 10, 2))
	c, ok := s.Committee(10)
	require.True(t, ok)
	assert.Equal(t, int64(2), *c.ChairMemberID)
	assert.Nil(t, c.RankingMemberID, "new chair vacates the ranking field it held")

	s.Apply(NewAssign(RoleRanking, 10, 1))
	assert.Equal(t, int64(1), *c.RankingMemberID)
	assert.Equal(t, RoleChair, s.Membership(10, 2).Role)
	assert.Equal(t, RoleRanking, s.Membership(10, 1).Role)
}

func TestSnapshot_CloneIsIndependent(t *testing.T) {
	orig := judiciarySnapshot()
	cp := orig.Clone()
	cp.Apply(NewClear(10, RoleChair, "test"))

	c, _ := orig.Committee(10)
	assert.Equal(t, int64(1), *c.ChairMemberID)
	assert.Equal(t, RoleChair, orig.Membership(10, 1).Role)

	cc, _ := cp.Committee(10)
	assert.Nil(t, cc.ChairMemberID)
	assert.Equal(t, RoleMember, cp.Membership(10, 1).Role)
}

func TestSnapshot_ApplyUpsertAndRemove(t *testing.T) {
	s := judiciarySnapshot().Clone()

	s.Apply(ChangeOp{Kind: OpUpsertMembership, CommitteeID: 10, MemberID: 3, Role: RoleMember})
	require.NotNil(t, s.Membership(10, 3))
	assert.Len(t, s.Roster(10), 3)

	s.Apply(ChangeOp{Kind: OpRemoveMembership, CommitteeID: 10, MemberID: 2})
	assert.Nil(t, s.Membership(10, 2))
	c, _ := s.Committee(10)
	assert.Nil(t, c.RankingMemberID)
}

func TestSnapshot_Incumbent(t *testing.T) {
	s := judiciarySnapshot()
	id, ok := s.Incumbent(10, RoleChair)
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)

	_, ok = s.Incumbent(99, RoleChair)
	assert.False(t, ok)
}

func TestKindOf(t *testing.T) {
	err := WithKind(KindLockContention, assert.AnError)
	assert.Equal(t, KindLockContention, KindOf(err))
	assert.Equal(t, ErrorKind(""), KindOf(assert.AnError))
	assert.Nil(t, WithKind(KindDBTransient, nil))
	assert.True(t, KindGuardR4.IsGuard())
	assert.False(t, KindConflictOutranked.IsGuard())
}
