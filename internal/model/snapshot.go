package model

import "sort"

// Snapshot is an in-memory view of members, committees and current
// memberships, loaded once per run. Apply projects a ChangeOp onto it with the
// same semantics the transactional applier uses against the database.
type Snapshot struct {
	Members     []Member     `json:"members"`
	Committees  []Committee  `json:"committees"`
	Memberships []Membership `json:"memberships"`

	memberIdx    map[int64]int
	committeeIdx map[int64]int
	nextID       int64
}

type membershipKey struct {
	committee, member int64
}

// NewSnapshot indexes the given rows. Only current memberships are retained.
func NewSnapshot(members []Member, committees []Committee, memberships []Membership) *Snapshot {
	s := &Snapshot{
		Members:    append([]Member(nil), members...),
		Committees: append([]Committee(nil), committees...),
	}
	for _, ms := range memberships {
		if ms.IsCurrent {
			s.Memberships = append(s.Memberships, ms)
		}
	}
	sort.Slice(s.Members, func(i, j int) bool { return s.Members[i].ID < s.Members[j].ID })
	sort.Slice(s.Committees, func(i, j int) bool { return s.Committees[i].ID < s.Committees[j].ID })
	s.reindex()
	return s
}

func (s *Snapshot) reindex() {
	s.memberIdx = make(map[int64]int, len(s.Members))
	for i, m := range s.Members {
		s.memberIdx[m.ID] = i
	}
	s.committeeIdx = make(map[int64]int, len(s.Committees))
	for i, c := range s.Committees {
		s.committeeIdx[c.ID] = i
	}
}

// Clone returns a deep copy suitable for projection.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Members:     append([]Member(nil), s.Members...),
		Committees:  make([]Committee, len(s.Committees)),
		Memberships: append([]Membership(nil), s.Memberships...),
		nextID:      s.nextID,
	}
	for i, cm := range s.Committees {
		cp := cm
		if cm.ChairMemberID != nil {
			cp.ChairMemberID = Int64Ptr(*cm.ChairMemberID)
		}
		if cm.RankingMemberID != nil {
			cp.RankingMemberID = Int64Ptr(*cm.RankingMemberID)
		}
		c.Committees[i] = cp
	}
	c.reindex()
	return c
}

// Member looks up a member by id.
func (s *Snapshot) Member(id int64) (*Member, bool) {
	i, ok := s.memberIdx[id]
	if !ok {
		return nil, false
	}
	return &s.Members[i], true
}

// Committee looks up a committee by id.
func (s *Snapshot) Committee(id int64) (*Committee, bool) {
	i, ok := s.committeeIdx[id]
	if !ok {
		return nil, false
	}
	return &s.Committees[i], true
}

// CurrentMembers returns current members ordered by id.
func (s *Snapshot) CurrentMembers() []Member {
	out := make([]Member, 0, len(s.Members))
	for _, m := range s.Members {
		if m.IsCurrent {
			out = append(out, m)
		}
	}
	return out
}

// Membership returns the current membership of member on committee, if any.
func (s *Snapshot) Membership(committeeID, memberID int64) *Membership {
	for i := range s.Memberships {
		ms := &s.Memberships[i]
		if ms.IsCurrent && ms.CommitteeID == committeeID && ms.MemberID == memberID {
			return ms
		}
	}
	return nil
}

// Roster returns the current memberships of a committee ordered by member id.
func (s *Snapshot) Roster(committeeID int64) []Membership {
	var out []Membership
	for _, ms := range s.Memberships {
		if ms.IsCurrent && ms.CommitteeID == committeeID {
			out = append(out, ms)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out
}

// HoldsMembership reports whether the member has any current membership.
func (s *Snapshot) HoldsMembership(memberID int64) bool {
	for _, ms := range s.Memberships {
		if ms.IsCurrent && ms.MemberID == memberID {
			return true
		}
	}
	return false
}

// Incumbent returns the member currently holding a leadership role, preferring
// the committee's leadership field over the membership role.
func (s *Snapshot) Incumbent(committeeID int64, role Role) (int64, bool) {
	c, ok := s.Committee(committeeID)
	if !ok {
		return 0, false
	}
	if id := c.Leader(role); id != nil {
		return *id, true
	}
	for _, ms := range s.Roster(committeeID) {
		if ms.Role == role {
			return ms.MemberID, true
		}
	}
	return 0, false
}

// Apply projects op onto the snapshot.
func (s *Snapshot) Apply(op ChangeOp) {
	c, ok := s.Committee(op.CommitteeID)
	if !ok {
		return
	}
	switch op.Kind {
	case OpClearLeadership:
		c.SetLeader(op.Role, nil)
		for i := range s.Memberships {
			ms := &s.Memberships[i]
			if ms.IsCurrent && ms.CommitteeID == op.CommitteeID && ms.Role == op.Role {
				ms.Role = RoleMember
			}
		}
	case OpUpsertMembership:
		s.ensureMembership(op.CommitteeID, op.MemberID, op.Role)
	case OpAssignChair, OpAssignRanking:
		s.ensureMembership(op.CommitteeID, op.MemberID, op.Role)
		if other := c.Leader(op.Role.Other()); other != nil && *other == op.MemberID {
			c.SetLeader(op.Role.Other(), nil)
		}
		c.SetLeader(op.Role, Int64Ptr(op.MemberID))
	case OpRemoveMembership:
		if ms := s.Membership(op.CommitteeID, op.MemberID); ms != nil {
			ms.IsCurrent = false
		}
		for _, r := range []Role{RoleChair, RoleRanking} {
			if id := c.Leader(r); id != nil && *id == op.MemberID {
				c.SetLeader(r, nil)
			}
		}
	}
}

func (s *Snapshot) ensureMembership(committeeID, memberID int64, role Role) {
	if ms := s.Membership(committeeID, memberID); ms != nil {
		ms.Role = role
		return
	}
	s.nextID--
	s.Memberships = append(s.Memberships, Membership{
		ID:          s.nextID,
		MemberID:    memberID,
		CommitteeID: committeeID,
		Role:        role,
		IsCurrent:   true,
	})
}
