// Package guard enforces the membership and leadership invariants on a batch
// of ChangeOps before anything is written.
package guard

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/congress-cli/internal/model"
	"github.com/sells-group/congress-cli/internal/normalize"
)

// MaxSenatorsPerState is the number of Senate seats per state.
const MaxSenatorsPerState = 2

// Result is the guarded batch.
type Result struct {
	Accepted   []model.ChangeOp  `json:"accepted"`
	Rejections []model.Rejection `json:"rejections"`
	// Inserted lists the demotions the guard added for superseded incumbents.
	Inserted []model.ChangeOp `json:"inserted,omitempty"`
}

// Guard checks ops against one snapshot.
type Guard struct {
	snap *model.Snapshot
	log  *zap.Logger
}

// New returns a guard over snap.
func New(snap *model.Snapshot) *Guard {
	return &Guard{snap: snap, log: zap.L().With(zap.String("component", "guard"))}
}

type slot struct {
	committee int64
	role      model.Role
}

// Check applies R1 through R7. Rejected ops are reported with the rule that
// fired; the accepted batch includes any demotions R1 requires.
func (g *Guard) Check(ops []model.ChangeOp) *Result {
	res := &Result{}
	var pending []model.ChangeOp

	// R2, R5, R6, R7: per-op reference checks.
	for _, op := range ops {
		if kind, reason := g.checkRefs(op); kind != "" {
			res.reject(op, kind, reason)
			continue
		}
		pending = append(pending, op)
	}

	pending = g.singleLeader(res, pending)
	pending = g.oppositeParty(res, pending)
	pending = g.senateCap(res, pending)
	pending = g.dropOrphanClears(pending)
	pending = g.demoteIncumbents(res, pending)

	res.Accepted = pending
	if len(res.Rejections) > 0 || len(res.Inserted) > 0 {
		g.log.Info("guard applied",
			zap.Int("accepted", len(res.Accepted)),
			zap.Int("rejected", len(res.Rejections)),
			zap.Int("inserted", len(res.Inserted)),
		)
	}
	return res
}

func (r *Result) reject(op model.ChangeOp, kind model.ErrorKind, reason string) {
	o := op
	r.Rejections = append(r.Rejections, model.Rejection{
		Kind:   kind,
		Reason: reason,
		Record: op.Record,
		Op:     &o,
	})
}

func (g *Guard) checkRefs(op model.ChangeOp) (model.ErrorKind, string) {
	c, ok := g.snap.Committee(op.CommitteeID)
	if !ok {
		return model.KindGuardR6, fmt.Sprintf("committee %d does not exist", op.CommitteeID)
	}
	if !c.IsActive {
		return model.KindGuardR6, fmt.Sprintf("committee %q is inactive", c.Name)
	}
	if op.Kind == model.OpClearLeadership || op.Kind == model.OpRemoveMembership {
		return "", ""
	}

	m, ok := g.snap.Member(op.MemberID)
	if !ok || !m.IsCurrent {
		return model.KindGuardR7, fmt.Sprintf("member %d is not a current member", op.MemberID)
	}
	if c.Chamber != model.ChamberJoint && m.Chamber != c.Chamber {
		return model.KindGuardR2, fmt.Sprintf("%s sits in the %s, committee %q is %s", m.DisplayName(), m.Chamber, c.Name, c.Chamber)
	}
	if c.IsSubcommittee {
		if c.ParentCommitteeID == nil {
			return model.KindGuardR5, fmt.Sprintf("subcommittee %q has no parent", c.Name)
		}
		p, ok := g.snap.Committee(*c.ParentCommitteeID)
		switch {
		case !ok:
			return model.KindGuardR5, fmt.Sprintf("subcommittee %q parent %d does not exist", c.Name, *c.ParentCommitteeID)
		case p.IsSubcommittee:
			return model.KindGuardR5, fmt.Sprintf("subcommittee %q parent %q is itself a subcommittee", c.Name, p.Name)
		case p.Chamber != c.Chamber && p.Chamber != model.ChamberJoint:
			return model.KindGuardR5, fmt.Sprintf("subcommittee %q parent %q is in the %s", c.Name, p.Name, p.Chamber)
		}
	}
	return "", ""
}

// singleLeader keeps one assignment per slot (highest confidence, then
// batch order), one leadership slot per member per committee, and rejects
// removal of a member the batch makes a leader.
func (g *Guard) singleLeader(res *Result, ops []model.ChangeOp) []model.ChangeOp {
	best := make(map[slot]int)
	for i, op := range ops {
		if !op.IsAssign() {
			continue
		}
		k := slot{op.CommitteeID, op.Role}
		if j, ok := best[k]; !ok || op.Confidence > ops[j].Confidence {
			best[k] = i
		}
	}

	type pair struct{ committee, member int64 }
	leading := make(map[pair]int)
	keep := make([]bool, len(ops))
	for i, op := range ops {
		keep[i] = true
		if !op.IsAssign() {
			continue
		}
		k := slot{op.CommitteeID, op.Role}
		if w := best[k]; w != i {
			keep[i] = false
			res.reject(op, model.KindGuardR1, fmt.Sprintf("committee %d already receives %s from %s", op.CommitteeID, op.Role, ops[w]))
			continue
		}
		p := pair{op.CommitteeID, op.MemberID}
		if j, ok := leading[p]; ok {
			loser := i
			if op.Confidence > ops[j].Confidence {
				loser = j
				leading[p] = i
			}
			keep[loser] = false
			res.reject(ops[loser], model.KindGuardR1, fmt.Sprintf("member %d cannot hold both leadership roles on committee %d", op.MemberID, op.CommitteeID))
			continue
		}
		leading[p] = i
	}

	var out []model.ChangeOp
	for i, op := range ops {
		if !keep[i] {
			continue
		}
		if op.Kind == model.OpRemoveMembership {
			if j, ok := leading[pair{op.CommitteeID, op.MemberID}]; ok && keep[j] {
				res.reject(op, model.KindGuardR1, fmt.Sprintf("member %d is assigned %s on committee %d in the same run", op.MemberID, ops[j].Role, op.CommitteeID))
				continue
			}
		}
		out = append(out, op)
	}
	return out
}

// oppositeParty rejects the lower-confidence of a new chair and ranking
// member of the same party on a non-Joint committee. Independents never
// conflict.
func (g *Guard) oppositeParty(res *Result, ops []model.ChangeOp) []model.ChangeOp {
	chairs := make(map[int64]int)
	rankings := make(map[int64]int)
	for i, op := range ops {
		switch op.Kind {
		case model.OpAssignChair:
			chairs[op.CommitteeID] = i
		case model.OpAssignRanking:
			rankings[op.CommitteeID] = i
		}
	}

	ids := make([]int64, 0, len(chairs))
	for cid := range chairs {
		ids = append(ids, cid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	drop := make(map[int]bool)
	for _, cid := range ids {
		ci := chairs[cid]
		ri, ok := rankings[cid]
		if !ok {
			continue
		}
		c, _ := g.snap.Committee(cid)
		if c.Chamber == model.ChamberJoint {
			continue
		}
		chair, _ := g.snap.Member(ops[ci].MemberID)
		ranking, _ := g.snap.Member(ops[ri].MemberID)
		if chair.Party != ranking.Party || chair.Party == model.PartyIndependent || chair.Party == "" {
			continue
		}
		loser := ri
		if ops[ci].Confidence < ops[ri].Confidence {
			loser = ci
		}
		drop[loser] = true
		res.reject(ops[loser], model.KindGuardR3,
			fmt.Sprintf("chair %s and ranking member %s of %q are both %s", chair.DisplayName(), ranking.DisplayName(), c.Name, chair.Party))
	}
	return without(ops, drop)
}

// senateCap rejects an op that would seat a third senator from one state.
// Seated senators are current Senate members holding any current membership
// plus senators accepted earlier in the batch.
func (g *Guard) senateCap(res *Result, ops []model.ChangeOp) []model.ChangeOp {
	seated := make(map[string]map[int64]bool)
	for _, m := range g.snap.CurrentMembers() {
		if m.Chamber != model.ChamberSenate || !g.snap.HoldsMembership(m.ID) {
			continue
		}
		if seated[m.State] == nil {
			seated[m.State] = make(map[int64]bool)
		}
		seated[m.State][m.ID] = true
	}

	drop := make(map[int]bool)
	for i, op := range ops {
		if op.Kind != model.OpUpsertMembership && !op.IsAssign() {
			continue
		}
		m, ok := g.snap.Member(op.MemberID)
		if !ok || m.Chamber != model.ChamberSenate {
			continue
		}
		set := seated[m.State]
		if set == nil {
			set = make(map[int64]bool)
			seated[m.State] = set
		}
		if set[m.ID] {
			continue
		}
		if len(set) >= MaxSenatorsPerState {
			drop[i] = true
			res.reject(op, model.KindGuardR4, fmt.Sprintf("%s would be a third seated senator for %s", m.DisplayName(), normalize.StateName(m.State)))
			continue
		}
		set[m.ID] = true
	}
	return without(ops, drop)
}

// dropOrphanClears removes demotions whose replacement assignment did not
// survive the guard.
func (g *Guard) dropOrphanClears(ops []model.ChangeOp) []model.ChangeOp {
	assigned := make(map[slot]bool)
	for _, op := range ops {
		if op.IsAssign() {
			assigned[slot{op.CommitteeID, op.Role}] = true
		}
	}
	drop := make(map[int]bool)
	for i, op := range ops {
		if op.Kind == model.OpClearLeadership && !assigned[slot{op.CommitteeID, op.Role}] {
			drop[i] = true
			g.log.Debug("dropping demotion without replacement", zap.Stringer("op", op))
		}
	}
	return without(ops, drop)
}

// demoteIncumbents inserts a ClearLeadershipRole for every assignment that
// supersedes an incumbent, unless the batch already clears the slot or moves
// the incumbent to the committee's other leadership slot.
func (g *Guard) demoteIncumbents(res *Result, ops []model.ChangeOp) []model.ChangeOp {
	cleared := make(map[slot]bool)
	assigned := make(map[slot]int64)
	for _, op := range ops {
		switch {
		case op.Kind == model.OpClearLeadership:
			cleared[slot{op.CommitteeID, op.Role}] = true
		case op.IsAssign():
			assigned[slot{op.CommitteeID, op.Role}] = op.MemberID
		}
	}

	var inserted []model.ChangeOp
	for _, op := range ops {
		if !op.IsAssign() {
			continue
		}
		k := slot{op.CommitteeID, op.Role}
		incumbent, ok := g.snap.Incumbent(op.CommitteeID, op.Role)
		if !ok || incumbent == op.MemberID || cleared[k] {
			continue
		}
		if moved, ok := assigned[slot{op.CommitteeID, op.Role.Other()}]; ok && moved == incumbent {
			continue
		}
		name := fmt.Sprintf("member %d", incumbent)
		if m, ok := g.snap.Member(incumbent); ok {
			name = m.DisplayName()
		}
		clear := model.NewClear(op.CommitteeID, op.Role, fmt.Sprintf("demote superseded %s %s", op.Role, name))
		clear.Confidence = op.Confidence
		clear.Record = op.Record
		inserted = append(inserted, clear)
		cleared[k] = true
	}
	sort.SliceStable(inserted, func(i, j int) bool { return inserted[i].CommitteeID < inserted[j].CommitteeID })
	res.Inserted = inserted
	return append(inserted, ops...)
}

func without(ops []model.ChangeOp, drop map[int]bool) []model.ChangeOp {
	if len(drop) == 0 {
		return ops
	}
	out := make([]model.ChangeOp, 0, len(ops)-len(drop))
	for i, op := range ops {
		if !drop[i] {
			out = append(out, op)
		}
	}
	return out
}
