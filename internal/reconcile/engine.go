// Package reconcile turns source records into proposed ChangeOps against a
// snapshot of the current Congress.
package reconcile

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/congress-cli/internal/match"
	"github.com/sells-group/congress-cli/internal/model"
	"github.com/sells-group/congress-cli/internal/normalize"
	"github.com/sells-group/congress-cli/internal/source"
)

// Combined confidence weights.
const (
	committeeWeight = 0.4
	memberWeight    = 0.4
	roleWeight      = 0.2

	explicitRoleSignal = 100
	genericRoleSignal  = 50

	DefaultApplyThreshold = 70
)

// Config tunes the engine.
type Config struct {
	ApplyThreshold     float64
	PruneAuthoritative bool
	StrictState        bool
	MatchBudget        time.Duration
}

// Evaluation is the per-record trail: what was declared, how it matched and
// what became of it.
type Evaluation struct {
	Record         model.SourceRecord  `json:"record"`
	Person         normalize.Person    `json:"person"`
	Committee      normalize.Committee `json:"committee"`
	MemberMatch    model.MatchResult   `json:"member_match"`
	CommitteeMatch model.MatchResult   `json:"committee_match"`
	Confidence     float64             `json:"confidence"`
	Outcome        string              `json:"outcome"`
}

// Evaluation outcomes.
const (
	OutcomeProposed  = "proposed"
	OutcomeUnchanged = "unchanged"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
)

// Result is the engine output before the invariant guard.
type Result struct {
	Evaluations []Evaluation      `json:"evaluations"`
	Ops         []model.ChangeOp  `json:"ops"`
	Rejections  []model.Rejection `json:"rejections"`
	Unchanged   int               `json:"unchanged"`
}

// Engine matches records against one snapshot.
type Engine struct {
	cfg        Config
	snap       *model.Snapshot
	members    *match.MemberMatcher
	committees *match.CommitteeMatcher
	log        *zap.Logger
}

// New builds an engine and its matchers over snap.
func New(snap *model.Snapshot, cfg Config) *Engine {
	if cfg.ApplyThreshold <= 0 {
		cfg.ApplyThreshold = DefaultApplyThreshold
	}
	return &Engine{
		cfg:        cfg,
		snap:       snap,
		members:    match.NewMemberMatcher(snap.Members, match.MemberConfig{StrictState: cfg.StrictState, Budget: cfg.MatchBudget}),
		committees: match.NewCommitteeMatcher(snap.Committees, cfg.MatchBudget),
		log:        zap.L().With(zap.String("component", "reconcile")),
	}
}

// candidate is an accepted evaluation carrying its proposed op.
type candidate struct {
	eval  int
	op    model.ChangeOp
	order int
}

// Run evaluates records in priority order, resolves conflicts, drops ops
// whose target state already holds, and adds synthetic demotions and
// authoritative removals.
func (e *Engine) Run(ctx context.Context, records []model.SourceRecord) (*Result, error) {
	sorted := append([]model.SourceRecord(nil), records...)
	source.SortRecords(sorted)

	res := &Result{Evaluations: make([]Evaluation, 0, len(sorted))}
	var cands []candidate
	for i, rec := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "reconcile: cancelled")
		}
		ev, op, rej := e.evaluate(ctx, rec)
		res.Evaluations = append(res.Evaluations, ev)
		if rej != nil {
			res.Evaluations[i].Outcome = OutcomeRejected
			res.Rejections = append(res.Rejections, *rej)
			continue
		}
		cands = append(cands, candidate{eval: i, op: op, order: i})
	}

	winners := e.resolveConflicts(res, cands)

	var ops []model.ChangeOp
	for _, c := range winners {
		if e.holds(c.op) {
			res.Evaluations[c.eval].Outcome = OutcomeUnchanged
			res.Unchanged++
			continue
		}
		res.Evaluations[c.eval].Outcome = OutcomeProposed
		ops = append(ops, c.op)
	}

	ops = append(e.partyClears(ops), ops...)
	if e.cfg.PruneAuthoritative {
		ops = e.applyPrune(res, ops, e.prune(res.Evaluations))
	}
	res.Ops = ops

	e.log.Info("reconcile complete",
		zap.Int("records", len(sorted)),
		zap.Int("ops", len(res.Ops)),
		zap.Int("rejected", len(res.Rejections)),
		zap.Int("unchanged", res.Unchanged),
	)
	return res, nil
}

func (e *Engine) evaluate(ctx context.Context, rec model.SourceRecord) (Evaluation, model.ChangeOp, *model.Rejection) {
	r := rec
	ev := Evaluation{Record: r}
	reject := func(kind model.ErrorKind, reason string) (Evaluation, model.ChangeOp, *model.Rejection) {
		mm, cm := ev.MemberMatch, ev.CommitteeMatch
		return ev, model.ChangeOp{}, &model.Rejection{
			Kind:           kind,
			Reason:         reason,
			Record:         &r,
			MemberMatch:    &mm,
			CommitteeMatch: &cm,
		}
	}

	person, err := normalize.PersonName(r.Person)
	ev.Person = person
	if err != nil {
		kind := model.KindOf(err)
		if kind == "" {
			kind = model.KindSourceMalformed
		}
		return reject(kind, err.Error())
	}
	state := person.State
	if r.State != "" {
		st, err := normalize.State(r.State)
		if err != nil {
			return reject(model.KindStateUnknown, fmt.Sprintf("unknown state %q", r.State))
		}
		state = st
	}
	party := r.Party
	if party == "" {
		party = person.Party
	}

	ev.Committee = normalize.CommitteeName(r.Committee, r.Chamber)
	ev.CommitteeMatch = e.committees.Match(ctx, ev.Committee)

	q := match.MemberQuery{
		Person:      person,
		Chamber:     r.Chamber,
		ChamberHard: r.MemberChamber,
		State:       state,
		Party:       party,
		BioguideID:  r.BioguideID,
	}
	if !r.MemberChamber && ev.CommitteeMatch.Matched() {
		if c, ok := e.snap.Committee(ev.CommitteeMatch.ID); ok {
			q.Chamber = c.Chamber
		}
	}
	ev.MemberMatch = e.members.Match(ctx, q)
	ev.Confidence = Combined(ev.CommitteeMatch, ev.MemberMatch, r.Role)

	if !ev.CommitteeMatch.Matched() {
		return reject(ev.CommitteeMatch.Kind(), fmt.Sprintf("committee %q: %s", r.Committee, ev.CommitteeMatch.Status))
	}
	if !ev.MemberMatch.Matched() {
		return reject(ev.MemberMatch.Kind(), fmt.Sprintf("member %q: %s", r.Person, ev.MemberMatch.Status))
	}
	if ev.Confidence < e.cfg.ApplyThreshold {
		return reject(model.KindLowConfidence,
			fmt.Sprintf("combined confidence %.1f below threshold %.0f", ev.Confidence, e.cfg.ApplyThreshold))
	}

	var op model.ChangeOp
	if r.Role.IsLeadership() {
		op = model.NewAssign(r.Role, ev.CommitteeMatch.ID, ev.MemberMatch.ID)
	} else {
		op = model.ChangeOp{
			Kind:        model.OpUpsertMembership,
			CommitteeID: ev.CommitteeMatch.ID,
			MemberID:    ev.MemberMatch.ID,
			Role:        model.RoleMember,
		}
	}
	op.Confidence = ev.Confidence
	op.Reason = fmt.Sprintf("%s %s", r.Source, r.Key())
	op.Record = &r
	return ev, op, nil
}

// Combined weighs committee and member confidence with the role signal.
// Failed matches contribute zero.
func Combined(committee, member model.MatchResult, role model.Role) float64 {
	signal := float64(genericRoleSignal)
	if role.IsLeadership() {
		signal = explicitRoleSignal
	}
	var c, m float64
	if committee.Matched() {
		c = committee.Confidence
	}
	if member.Matched() {
		m = member.Confidence
	}
	v := committeeWeight*c + memberWeight*m + roleWeight*signal
	return math.Round(math.Min(v, 100)*100) / 100
}

// resolveConflicts keeps one op per (committee, slot) and per (committee,
// member). Winners rank by priority, then confidence, then processing order.
func (e *Engine) resolveConflicts(res *Result, cands []candidate) []candidate {
	ranked := append([]candidate(nil), cands...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].op, ranked[j].op
		if a.Record.Priority != b.Record.Priority {
			return a.Record.Priority > b.Record.Priority
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return ranked[i].order < ranked[j].order
	})

	type slotKey struct {
		committee int64
		role      model.Role
	}
	type pairKey struct {
		committee, member int64
	}
	slots := make(map[slotKey]candidate)
	leaders := make(map[pairKey]candidate)

	// Leadership first so a plain roster line never blocks an assignment.
	var winners []candidate
	for _, c := range ranked {
		if !c.op.IsAssign() {
			continue
		}
		sk := slotKey{c.op.CommitteeID, c.op.Role}
		pk := pairKey{c.op.CommitteeID, c.op.MemberID}
		if w, ok := slots[sk]; ok {
			if w.op.MemberID == c.op.MemberID {
				res.Evaluations[c.eval].Outcome = OutcomeDuplicate
				continue
			}
			e.outrank(res, c, w)
			continue
		}
		if w, ok := leaders[pk]; ok {
			e.outrank(res, c, w)
			continue
		}
		slots[sk] = c
		leaders[pk] = c
		winners = append(winners, c)
	}

	upserts := make(map[pairKey]bool)
	for _, c := range ranked {
		if c.op.Kind != model.OpUpsertMembership {
			continue
		}
		pk := pairKey{c.op.CommitteeID, c.op.MemberID}
		if _, ok := leaders[pk]; ok || upserts[pk] {
			res.Evaluations[c.eval].Outcome = OutcomeDuplicate
			continue
		}
		upserts[pk] = true
		winners = append(winners, c)
	}

	sort.SliceStable(winners, func(i, j int) bool { return winners[i].order < winners[j].order })
	return winners
}

func (e *Engine) outrank(res *Result, loser, winner candidate) {
	res.Evaluations[loser.eval].Outcome = OutcomeRejected
	op := loser.op
	ev := res.Evaluations[loser.eval]
	mm, cm := ev.MemberMatch, ev.CommitteeMatch
	res.Rejections = append(res.Rejections, model.Rejection{
		Kind:           model.KindConflictOutranked,
		Reason:         fmt.Sprintf("outranked by <%s,%.1f>", winner.op.Record.Source, winner.op.Confidence),
		Record:         op.Record,
		Op:             &op,
		MemberMatch:    &mm,
		CommitteeMatch: &cm,
	})
}

// holds reports whether the op's target state is already in the snapshot.
func (e *Engine) holds(op model.ChangeOp) bool {
	ms := e.snap.Membership(op.CommitteeID, op.MemberID)
	switch op.Kind {
	case model.OpUpsertMembership:
		// any current role satisfies a generic roster line
		return ms != nil
	case model.OpAssignChair, model.OpAssignRanking:
		c, ok := e.snap.Committee(op.CommitteeID)
		if !ok || ms == nil || ms.Role != op.Role {
			return false
		}
		id := c.Leader(op.Role)
		return id != nil && *id == op.MemberID
	}
	return false
}

// partyClears demotes incumbents replaced by a member of another party,
// unless the incumbent moves to the committee's other leadership slot.
func (e *Engine) partyClears(ops []model.ChangeOp) []model.ChangeOp {
	type slot struct {
		committee int64
		role      model.Role
	}
	assigned := make(map[slot]int64)
	for _, op := range ops {
		if op.IsAssign() {
			assigned[slot{op.CommitteeID, op.Role}] = op.MemberID
		}
	}

	var clears []model.ChangeOp
	for _, op := range ops {
		if !op.IsAssign() {
			continue
		}
		incumbent, ok := e.snap.Incumbent(op.CommitteeID, op.Role)
		if !ok || incumbent == op.MemberID {
			continue
		}
		if moved, ok := assigned[slot{op.CommitteeID, op.Role.Other()}]; ok && moved == incumbent {
			continue
		}
		old, okOld := e.snap.Member(incumbent)
		incoming, okNew := e.snap.Member(op.MemberID)
		if !okOld || !okNew || old.Party == incoming.Party {
			continue
		}
		clear := model.NewClear(op.CommitteeID, op.Role,
			fmt.Sprintf("party change: %s (%s) replaced by %s (%s)", old.DisplayName(), old.Party, incoming.DisplayName(), incoming.Party))
		clear.Confidence = op.Confidence
		clear.Record = op.Record
		clears = append(clears, clear)
	}
	return clears
}

// prune removes current members of committees named by an authoritative
// source that the source does not list. A committee with any unmatched
// authoritative record is left alone.
func (e *Engine) prune(evals []Evaluation) []model.ChangeOp {
	type roster struct {
		source     string
		listed     map[int64]bool
		incomplete bool
		confidence float64
		record     *model.SourceRecord
	}
	rosters := make(map[int64]*roster)
	var order []int64
	for i := range evals {
		ev := evals[i]
		if !ev.Record.Authoritative || !ev.CommitteeMatch.Matched() {
			continue
		}
		id := ev.CommitteeMatch.ID
		r, ok := rosters[id]
		if !ok {
			rec := ev.Record
			r = &roster{source: ev.Record.Source, listed: map[int64]bool{}, confidence: ev.CommitteeMatch.Confidence, record: &rec}
			rosters[id] = r
			order = append(order, id)
		}
		if !ev.MemberMatch.Matched() {
			r.incomplete = true
			continue
		}
		r.listed[ev.MemberMatch.ID] = true
		r.confidence = math.Min(r.confidence, ev.CommitteeMatch.Confidence)
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	var ops []model.ChangeOp
	for _, id := range order {
		r := rosters[id]
		if r.incomplete {
			e.log.Warn("skipping prune: authoritative roster has unmatched rows", zap.Int64("committee_id", id))
			continue
		}
		for _, ms := range e.snap.Roster(id) {
			if r.listed[ms.MemberID] {
				continue
			}
			ops = append(ops, model.ChangeOp{
				Kind:        model.OpRemoveMembership,
				CommitteeID: id,
				MemberID:    ms.MemberID,
				Role:        ms.Role,
				Confidence:  r.confidence,
				Reason:      fmt.Sprintf("not listed by authoritative source %s", r.source),
				Record:      r.record,
			})
		}
	}
	return ops
}

// applyPrune merges removals into ops. A removal loses to a higher-priority
// op for the same member and committee, and beats anything else.
func (e *Engine) applyPrune(res *Result, ops, removes []model.ChangeOp) []model.ChangeOp {
	type pairKey struct {
		committee, member int64
	}
	byPair := make(map[pairKey]int, len(ops))
	for i, op := range ops {
		if op.MemberID != 0 {
			byPair[pairKey{op.CommitteeID, op.MemberID}] = i
		}
	}

	drop := make(map[int]bool)
	var kept []model.ChangeOp
	for _, rm := range removes {
		i, ok := byPair[pairKey{rm.CommitteeID, rm.MemberID}]
		if !ok {
			kept = append(kept, rm)
			continue
		}
		other := ops[i]
		if other.Record.Priority > rm.Record.Priority {
			continue
		}
		drop[i] = true
		kept = append(kept, rm)
		for j := range res.Evaluations {
			ev := &res.Evaluations[j]
			if ev.Outcome == OutcomeProposed && ev.Record.Key() == other.Record.Key() {
				ev.Outcome = OutcomeRejected
			}
		}
		res.Rejections = append(res.Rejections, model.Rejection{
			Kind:   model.KindConflictOutranked,
			Reason: fmt.Sprintf("outranked by <%s,%.1f>", rm.Record.Source, rm.Confidence),
			Record: other.Record,
			Op:     &other,
		})
	}

	out := make([]model.ChangeOp, 0, len(ops)+len(kept))
	for i, op := range ops {
		if !drop[i] {
			out = append(out, op)
		}
	}
	return append(out, kept...)
}
