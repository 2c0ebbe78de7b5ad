// Package model defines the reference entities of the current Congress and the
// transient records a reconciliation run produces.
package model

import "time"

// Chamber identifies the chamber a member sits in or a committee belongs to.
type Chamber string

// Chamber values.
const (
	ChamberHouse  Chamber = "House"
	ChamberSenate Chamber = "Senate"
	ChamberJoint  Chamber = "Joint"
)

// Party is a member's registered party.
type Party string

// Party values.
const (
	PartyDemocratic  Party = "Democratic"
	PartyRepublican  Party = "Republican"
	PartyIndependent Party = "Independent"
)

// Role is the role a member holds on a committee.
type Role string

// Role values.
const (
	RoleChair   Role = "chair"
	RoleRanking Role = "ranking_member"
	RoleMember  Role = "member"
)

// IsLeadership reports whether r is chair or ranking_member.
func (r Role) IsLeadership() bool {
	return r == RoleChair || r == RoleRanking
}

// Other returns the opposite leadership role. Non-leadership roles return themselves.
func (r Role) Other() Role {
	switch r {
	case RoleChair:
		return RoleRanking
	case RoleRanking:
		return RoleChair
	default:
		return r
	}
}

// Member is a seated (or formerly seated) legislator.
type Member struct {
	ID         int64   `json:"id" yaml:"id"`
	ExternalID string  `json:"external_id" yaml:"external_id"`
	FirstName  string  `json:"first_name" yaml:"first_name"`
	LastName   string  `json:"last_name" yaml:"last_name"`
	MiddleName string  `json:"middle_name,omitempty" yaml:"middle_name,omitempty"`
	Suffix     string  `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	Nickname   string  `json:"nickname,omitempty" yaml:"nickname,omitempty"`
	Party      Party   `json:"party" yaml:"party"`
	Chamber    Chamber `json:"chamber" yaml:"chamber"`
	State      string  `json:"state" yaml:"state"`
	District   string  `json:"district,omitempty" yaml:"district,omitempty"`
	PhotoURL   string  `json:"photo_url,omitempty" yaml:"photo_url,omitempty"`
	IsCurrent  bool    `json:"is_current" yaml:"is_current"`
}

// DisplayName returns "First Last" using the nickname when one is stored.
func (m Member) DisplayName() string {
	first := m.FirstName
	if m.Nickname != "" {
		first = m.Nickname
	}
	if first == "" {
		return m.LastName
	}
	return first + " " + m.LastName
}

// Committee is a standing, select, or joint committee, or a subcommittee.
type Committee struct {
	ID                int64   `json:"id" yaml:"id"`
	ExternalID        string  `json:"external_id" yaml:"external_id"`
	Name              string  `json:"name" yaml:"name"`
	Chamber           Chamber `json:"chamber" yaml:"chamber"`
	IsSubcommittee    bool    `json:"is_subcommittee" yaml:"is_subcommittee"`
	ParentCommitteeID *int64  `json:"parent_committee_id,omitempty" yaml:"parent_committee_id,omitempty"`
	ChairMemberID     *int64  `json:"chair_member_id,omitempty" yaml:"chair_member_id,omitempty"`
	RankingMemberID   *int64  `json:"ranking_member_id,omitempty" yaml:"ranking_member_id,omitempty"`
	IsActive          bool    `json:"is_active" yaml:"is_active"`
}

// Leader returns the member id stored in the leadership field for role.
func (c Committee) Leader(role Role) *int64 {
	switch role {
	case RoleChair:
		return c.ChairMemberID
	case RoleRanking:
		return c.RankingMemberID
	default:
		return nil
	}
}

// SetLeader stores id in the leadership field for role.
func (c *Committee) SetLeader(role Role, id *int64) {
	switch role {
	case RoleChair:
		c.ChairMemberID = id
	case RoleRanking:
		c.RankingMemberID = id
	}
}

// Membership relates a member to a committee with a role.
type Membership struct {
	ID          int64      `json:"id" yaml:"id"`
	MemberID    int64      `json:"member_id" yaml:"member_id"`
	CommitteeID int64      `json:"committee_id" yaml:"committee_id"`
	Role        Role       `json:"role" yaml:"role"`
	IsCurrent   bool       `json:"is_current" yaml:"is_current"`
	StartDate   *time.Time `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty" yaml:"end_date,omitempty"`
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}

// SameID reports whether two nullable ids are equal.
func SameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
