package apply

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/congress-cli/internal/model"
	"github.com/sells-group/congress-cli/internal/store"
)

// leadership is the audited state of a committee's leadership fields and
// the membership roles of the members an op touched.
type leadership struct {
	ChairMemberID   *int64               `json:"chair_member_id"`
	RankingMemberID *int64               `json:"ranking_member_id"`
	Roles           map[int64]model.Role `json:"roles,omitempty"`
}

// seat is the audited state of one membership row. Leadership lists the
// committee leadership columns that point at the member.
type seat struct {
	MemberID    int64        `json:"member_id"`
	CommitteeID int64        `json:"committee_id"`
	Role        model.Role   `json:"role"`
	IsCurrent   bool         `json:"is_current"`
	EndDate     *time.Time   `json:"end_date,omitempty"`
	Leadership  []model.Role `json:"leadership,omitempty"`
}

func leadershipOf(c *model.Committee) *leadership {
	return &leadership{
		ChairMemberID:   c.ChairMemberID,
		RankingMemberID: c.RankingMemberID,
		Roles:           make(map[int64]model.Role),
	}
}

func seatOf(ms *model.Membership) *seat {
	return &seat{MemberID: ms.MemberID, CommitteeID: ms.CommitteeID, Role: ms.Role, IsCurrent: ms.IsCurrent, EndDate: ms.EndDate}
}

// writer applies ops inside one transaction. snap tracks the transaction's
// view as ops land.
type writer struct {
	tx    store.Tx
	snap  *model.Snapshot
	runID string
	now   time.Time
}

func (w *writer) apply(ctx context.Context, op model.ChangeOp) (OpResult, error) {
	switch op.Kind {
	case model.OpClearLeadership:
		return w.clear(ctx, op)
	case model.OpAssignChair, model.OpAssignRanking:
		return w.assign(ctx, op)
	case model.OpUpsertMembership:
		return w.upsert(ctx, op)
	case model.OpRemoveMembership:
		return w.remove(ctx, op)
	default:
		return OpResult{}, eris.Errorf("apply: unknown op kind %q", op.Kind)
	}
}

// demote sets a member's current membership on the committee from role to
// member, recording the role change in before and after.
func (w *writer) demote(ctx context.Context, committeeID, memberID int64, role model.Role, before, after *leadership) (bool, error) {
	ms, err := w.tx.CurrentMembership(ctx, committeeID, memberID)
	if err != nil || ms == nil || ms.Role != role {
		return false, err
	}
	if err := w.tx.SetMembershipRole(ctx, ms.ID, model.RoleMember); err != nil {
		return false, err
	}
	before.Roles[memberID] = role
	after.Roles[memberID] = model.RoleMember
	return true, nil
}

func (w *writer) clear(ctx context.Context, op model.ChangeOp) (OpResult, error) {
	c, err := w.tx.Committee(ctx, op.CommitteeID)
	if err != nil {
		return OpResult{}, err
	}
	before := leadershipOf(c)
	after := leadershipOf(c)
	changed := false

	holders := make(map[int64]bool)
	if id := c.Leader(op.Role); id != nil {
		holders[*id] = true
		if err := w.tx.SetLeader(ctx, c.ID, op.Role, nil); err != nil {
			return OpResult{}, err
		}
		c.SetLeader(op.Role, nil)
		changed = true
	}
	for _, ms := range w.snap.Roster(c.ID) {
		if ms.Role == op.Role {
			holders[ms.MemberID] = true
		}
	}
	for _, id := range sortedIDs(holders) {
		demoted, err := w.demote(ctx, c.ID, id, op.Role, before, after)
		if err != nil {
			return OpResult{}, err
		}
		changed = changed || demoted
	}
	if !changed {
		return unchanged(op), nil
	}
	after.ChairMemberID, after.RankingMemberID = c.ChairMemberID, c.RankingMemberID
	return w.audit(ctx, op, c.ID, before, after)
}

func (w *writer) assign(ctx context.Context, op model.ChangeOp) (OpResult, error) {
	c, err := w.tx.Committee(ctx, op.CommitteeID)
	if err != nil {
		return OpResult{}, err
	}
	before := leadershipOf(c)
	after := leadershipOf(c)
	changed := false
	other := op.Role.Other()

	if prev := c.Leader(op.Role); prev != nil && *prev != op.MemberID {
		demoted, err := w.demote(ctx, c.ID, *prev, op.Role, before, after)
		if err != nil {
			return OpResult{}, err
		}
		changed = changed || demoted
	}
	if id := c.Leader(other); id != nil && *id == op.MemberID {
		if err := w.tx.SetLeader(ctx, c.ID, other, nil); err != nil {
			return OpResult{}, err
		}
		c.SetLeader(other, nil)
		changed = true
	}

	ms, err := w.tx.CurrentMembership(ctx, c.ID, op.MemberID)
	if err != nil {
		return OpResult{}, err
	}
	switch {
	case ms == nil:
		start := w.now
		if _, err := w.tx.InsertMembership(ctx, model.Membership{CommitteeID: c.ID, MemberID: op.MemberID, Role: op.Role, StartDate: &start}); err != nil {
			return OpResult{}, err
		}
		after.Roles[op.MemberID] = op.Role
		changed = true
	case ms.Role != op.Role:
		if err := w.tx.SetMembershipRole(ctx, ms.ID, op.Role); err != nil {
			return OpResult{}, err
		}
		before.Roles[op.MemberID] = ms.Role
		after.Roles[op.MemberID] = op.Role
		changed = true
	}

	if id := c.Leader(op.Role); id == nil || *id != op.MemberID {
		if err := w.tx.SetLeader(ctx, c.ID, op.Role, model.Int64Ptr(op.MemberID)); err != nil {
			return OpResult{}, err
		}
		c.SetLeader(op.Role, model.Int64Ptr(op.MemberID))
		changed = true
	}
	if !changed {
		return unchanged(op), nil
	}
	after.ChairMemberID, after.RankingMemberID = c.ChairMemberID, c.RankingMemberID
	return w.audit(ctx, op, c.ID, before, after)
}

func (w *writer) upsert(ctx context.Context, op model.ChangeOp) (OpResult, error) {
	role := op.Role
	if role == "" {
		role = model.RoleMember
	}
	ms, err := w.tx.CurrentMembership(ctx, op.CommitteeID, op.MemberID)
	if err != nil {
		return OpResult{}, err
	}
	if ms == nil {
		start := w.now
		next := model.Membership{CommitteeID: op.CommitteeID, MemberID: op.MemberID, Role: role, IsCurrent: true, StartDate: &start}
		id, err := w.tx.InsertMembership(ctx, next)
		if err != nil {
			return OpResult{}, err
		}
		return w.audit(ctx, op, id, nil, seatOf(&next))
	}
	if ms.Role == role {
		return unchanged(op), nil
	}
	before := seatOf(ms)
	if err := w.tx.SetMembershipRole(ctx, ms.ID, role); err != nil {
		return OpResult{}, err
	}
	ms.Role = role
	return w.audit(ctx, op, ms.ID, before, seatOf(ms))
}

func (w *writer) remove(ctx context.Context, op model.ChangeOp) (OpResult, error) {
	c, err := w.tx.Committee(ctx, op.CommitteeID)
	if err != nil {
		return OpResult{}, err
	}
	ms, err := w.tx.CurrentMembership(ctx, c.ID, op.MemberID)
	if err != nil {
		return OpResult{}, err
	}

	var led []model.Role
	for _, r := range []model.Role{model.RoleChair, model.RoleRanking} {
		if id := c.Leader(r); id != nil && *id == op.MemberID {
			led = append(led, r)
		}
	}
	if ms == nil && len(led) == 0 {
		return unchanged(op), nil
	}
	for _, r := range led {
		if err := w.tx.SetLeader(ctx, c.ID, r, nil); err != nil {
			return OpResult{}, err
		}
	}
	if ms == nil {
		before := leadershipOf(c)
		after := leadershipOf(c)
		for _, r := range led {
			after.vacate(r)
		}
		return w.audit(ctx, op, c.ID, before, after)
	}

	before := seatOf(ms)
	before.Leadership = led
	if err := w.tx.EndMembership(ctx, ms.ID, w.now); err != nil {
		return OpResult{}, err
	}
	end := w.now
	ms.IsCurrent = false
	ms.EndDate = &end
	return w.audit(ctx, op, ms.ID, before, seatOf(ms))
}

func (l *leadership) vacate(role model.Role) {
	switch role {
	case model.RoleChair:
		l.ChairMemberID = nil
	case model.RoleRanking:
		l.RankingMemberID = nil
	}
}

func (w *writer) audit(ctx context.Context, op model.ChangeOp, recordID int64, before, after any) (OpResult, error) {
	var oldValue json.RawMessage
	if before != nil {
		raw, err := json.Marshal(before)
		if err != nil {
			return OpResult{}, eris.Wrap(err, "apply: marshal old value")
		}
		oldValue = raw
	}
	newValue, err := json.Marshal(after)
	if err != nil {
		return OpResult{}, eris.Wrap(err, "apply: marshal new value")
	}
	change, err := json.Marshal(op)
	if err != nil {
		return OpResult{}, eris.Wrap(err, "apply: marshal op")
	}

	table := op.Table()
	if _, ok := after.(*leadership); ok {
		table = "committees"
	}
	id, err := w.tx.InsertAudit(ctx, &model.AuditEntry{
		RunID:      w.runID,
		Table:      table,
		RecordID:   recordID,
		Operation:  op.Kind,
		OldValue:   oldValue,
		NewValue:   newValue,
		ExecutedAt: w.now,
		Actor:      Actor,
		Op:         change,
	})
	if err != nil {
		return OpResult{}, err
	}
	return OpResult{Op: op, Outcome: OutcomeApplied, AuditID: id, OldValue: oldValue, NewValue: newValue}, nil
}

func unchanged(op model.ChangeOp) OpResult {
	return OpResult{Op: op, Outcome: OutcomeUnchanged}
}

func sortedIDs(set map[int64]bool) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
