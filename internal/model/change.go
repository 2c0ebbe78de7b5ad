package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// OpKind identifies a ChangeOp variant.
type OpKind string

// ChangeOp variants.
const (
	OpClearLeadership  OpKind = "clear_leadership_role"
	OpUpsertMembership OpKind = "upsert_membership"
	OpAssignChair      OpKind = "assign_chair"
	OpAssignRanking    OpKind = "assign_ranking"
	OpRemoveMembership OpKind = "remove_membership"
)

// AssignOp returns the assignment variant for a leadership role.
func AssignOp(role Role) OpKind {
	if role == RoleRanking {
		return OpAssignRanking
	}
	return OpAssignChair
}

// ChangeOp is one desired mutation of memberships or committee leadership.
//
// MemberID is zero for OpClearLeadership. Role holds the membership role for
// OpUpsertMembership, the cleared slot for OpClearLeadership, and the assigned
// slot for the Assign variants.
type ChangeOp struct {
	Kind        OpKind        `json:"kind"`
	CommitteeID int64         `json:"committee_id"`
	MemberID    int64         `json:"member_id,omitempty"`
	Role        Role          `json:"role"`
	Confidence  float64       `json:"confidence"`
	Reason      string        `json:"reason"`
	Record      *SourceRecord `json:"record,omitempty"`
}

// NewAssign builds AssignChair or AssignRanking.
func NewAssign(role Role, committeeID, memberID int64) ChangeOp {
	return ChangeOp{Kind: AssignOp(role), CommitteeID: committeeID, MemberID: memberID, Role: role}
}

// NewClear builds ClearLeadershipRole.
func NewClear(committeeID int64, which Role, reason string) ChangeOp {
	return ChangeOp{Kind: OpClearLeadership, CommitteeID: committeeID, Role: which, Reason: reason}
}

// IsAssign reports whether the op installs a chair or ranking member.
func (o ChangeOp) IsAssign() bool {
	return o.Kind == OpAssignChair || o.Kind == OpAssignRanking
}

// Rank is the apply-order group of the op: clears, upserts, assignments, removals.
func (o ChangeOp) Rank() int {
	switch o.Kind {
	case OpClearLeadership:
		return 0
	case OpUpsertMembership:
		return 1
	case OpAssignChair, OpAssignRanking:
		return 2
	default:
		return 3
	}
}

// Table is the primary table the op writes.
func (o ChangeOp) Table() string {
	if o.Kind == OpUpsertMembership || o.Kind == OpRemoveMembership {
		return "memberships"
	}
	return "committees"
}

func (o ChangeOp) String() string {
	switch o.Kind {
	case OpClearLeadership:
		return fmt.Sprintf("%s(committee=%d, which=%s)", o.Kind, o.CommitteeID, o.Role)
	case OpUpsertMembership:
		return fmt.Sprintf("%s(committee=%d, member=%d, role=%s)", o.Kind, o.CommitteeID, o.MemberID, o.Role)
	default:
		return fmt.Sprintf("%s(committee=%d, member=%d)", o.Kind, o.CommitteeID, o.MemberID)
	}
}

// AuditEntry records one applied change with its before and after values.
type AuditEntry struct {
	ID         int64           `json:"id"`
	RunID      string          `json:"run_id"`
	Table      string          `json:"table"`
	RecordID   int64           `json:"record_id"`
	Operation  OpKind          `json:"operation"`
	OldValue   json.RawMessage `json:"old_value,omitempty"`
	NewValue   json.RawMessage `json:"new_value"`
	ExecutedAt time.Time       `json:"executed_at"`
	Actor      string          `json:"actor"`
	Op         json.RawMessage `json:"op"`
}

// Rejection is a record or op the run declined, with the stable kind and a reason.
type Rejection struct {
	Kind           ErrorKind     `json:"kind"`
	Reason         string        `json:"reason"`
	Record         *SourceRecord `json:"record,omitempty"`
	Op             *ChangeOp     `json:"op,omitempty"`
	MemberMatch    *MatchResult  `json:"member_match,omitempty"`
	CommitteeMatch *MatchResult  `json:"committee_match,omitempty"`
}
