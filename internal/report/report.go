// Package report summarizes a reconciliation run as JSON and as a human
// readable table.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/congress-cli/internal/apply"
	"github.com/sells-group/congress-cli/internal/model"
	"github.com/sells-group/congress-cli/internal/reconcile"
)

// Buckets is the number of confidence histogram buckets.
const Buckets = 10

// Counts are the run totals.
type Counts struct {
	Sources          int                     `json:"sources"`
	Records          int                     `json:"records"`
	MemberMatched    int                     `json:"member_matched"`
	MemberFailed     int                     `json:"member_failed"`
	CommitteeMatched int                     `json:"committee_matched"`
	CommitteeFailed  int                     `json:"committee_failed"`
	Proposed         int                     `json:"ops_proposed"`
	Rejected         int                     `json:"rejected"`
	GuardRejected    map[model.ErrorKind]int `json:"guard_rejected"`
	Inserted         int                     `json:"demotions_inserted"`
	Applied          int                     `json:"applied"`
	Unchanged        int                     `json:"unchanged"`
}

// Bucket is one histogram decile. High is exclusive except for the last bucket.
type Bucket struct {
	Low   int `json:"low"`
	High  int `json:"high"`
	Count int `json:"count"`
}

// Leader names the holder of a leadership slot.
type Leader struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CommitteeOutcome is the final leadership and roster size of a touched committee.
type CommitteeOutcome struct {
	ID         int64         `json:"id"`
	Name       string        `json:"name"`
	Chamber    model.Chamber `json:"chamber"`
	Chair      *Leader       `json:"chair"`
	Ranking    *Leader       `json:"ranking_member"`
	RosterSize int           `json:"roster_size"`
}

// Failure is one rejected record or op.
type Failure struct {
	Kind                model.ErrorKind   `json:"kind"`
	Reason              string            `json:"reason"`
	Source              string            `json:"source,omitempty"`
	Record              string            `json:"record,omitempty"`
	Committee           string            `json:"committee,omitempty"`
	Person              string            `json:"person,omitempty"`
	State               string            `json:"state,omitempty"`
	Op                  string            `json:"op,omitempty"`
	MemberCandidates    []model.Candidate `json:"member_candidates,omitempty"`
	CommitteeCandidates []model.Candidate `json:"committee_candidates,omitempty"`
}

// Op is one op and what became of it.
type Op struct {
	Kind        model.OpKind `json:"kind"`
	CommitteeID int64        `json:"committee_id"`
	MemberID    int64        `json:"member_id,omitempty"`
	Role        model.Role   `json:"role"`
	Confidence  float64      `json:"confidence"`
	Reason      string       `json:"reason"`
	Outcome     string       `json:"outcome"`
	AuditID     int64        `json:"audit_id,omitempty"`
}

// Report is the machine-readable run summary.
type Report struct {
	RunID      string             `json:"run_id"`
	StartedAt  time.Time          `json:"started_at"`
	EndedAt    time.Time          `json:"ended_at"`
	Mode       model.RunMode      `json:"mode"`
	ExitCode   int                `json:"exit_code"`
	ErrorKind  model.ErrorKind    `json:"error_kind,omitempty"`
	Error      string             `json:"error,omitempty"`
	Counts     Counts             `json:"counts"`
	Histogram  []Bucket           `json:"histogram"`
	Committees []CommitteeOutcome `json:"committees"`
	Failures   []Failure          `json:"failures"`
	Ops        []Op               `json:"ops"`
}

// Input is everything a run produced.
type Input struct {
	RunID      string
	Mode       model.RunMode
	StartedAt  time.Time
	EndedAt    time.Time
	Sources    int
	Engine     *reconcile.Result
	Rejections []model.Rejection // guard rejections
	Inserted   int
	Accepted   []model.ChangeOp
	Outcomes   []apply.OpResult // nil unless applied
	Final      *model.Snapshot
	Err        error
	ExitCode   int
}

// Build assembles the report.
func Build(in Input) *Report {
	r := &Report{
		RunID:      in.RunID,
		StartedAt:  in.StartedAt,
		EndedAt:    in.EndedAt,
		Mode:       in.Mode,
		ExitCode:   in.ExitCode,
		Histogram:  newHistogram(),
		Committees: []CommitteeOutcome{},
		Failures:   []Failure{},
		Ops:        []Op{},
	}
	r.Counts.Sources = in.Sources
	r.Counts.GuardRejected = make(map[model.ErrorKind]int)
	r.Counts.Inserted = in.Inserted
	if in.Err != nil {
		r.Error = in.Err.Error()
		r.ErrorKind = model.KindOf(in.Err)
	}

	var rejections []model.Rejection
	if e := in.Engine; e != nil {
		r.Counts.Records = len(e.Evaluations)
		r.Counts.Proposed = len(e.Ops)
		r.Counts.Unchanged = e.Unchanged
		for _, ev := range e.Evaluations {
			tally(&r.Counts.CommitteeMatched, &r.Counts.CommitteeFailed, ev.CommitteeMatch)
			tally(&r.Counts.MemberMatched, &r.Counts.MemberFailed, ev.MemberMatch)
			r.observe(ev.Confidence)
		}
		rejections = append(rejections, e.Rejections...)
	}
	for _, rej := range in.Rejections {
		if rej.Kind.IsGuard() {
			r.Counts.GuardRejected[rej.Kind]++
		}
	}
	rejections = append(rejections, in.Rejections...)
	r.Counts.Rejected = len(rejections)
	for _, rej := range rejections {
		r.Failures = append(r.Failures, failureOf(rej))
	}

	r.Ops = opsOf(in.Accepted, in.Outcomes, in.Mode)
	for _, op := range r.Ops {
		switch op.Outcome {
		case string(apply.OutcomeApplied):
			r.Counts.Applied++
		case string(apply.OutcomeUnchanged):
			r.Counts.Unchanged++
		}
	}
	if in.Final != nil {
		var evals []reconcile.Evaluation
		if in.Engine != nil {
			evals = in.Engine.Evaluations
		}
		r.Committees = committeesOf(in.Final, touched(evals, in.Accepted, rejections))
	}
	return r
}

func tally(ok, failed *int, m model.MatchResult) {
	switch {
	case m.Status == "":
	case m.Matched():
		*ok++
	default:
		*failed++
	}
}

func newHistogram() []Bucket {
	h := make([]Bucket, Buckets)
	for i := range h {
		h[i] = Bucket{Low: i * 10, High: (i + 1) * 10}
	}
	return h
}

func (r *Report) observe(confidence float64) {
	i := int(confidence / 10)
	r.Histogram[min(max(i, 0), Buckets-1)].Count++
}

func failureOf(rej model.Rejection) Failure {
	f := Failure{Kind: rej.Kind, Reason: rej.Reason}
	if rec := rej.Record; rec != nil {
		f.Source = rec.Source
		f.Record = rec.Key()
		f.Committee = rec.Committee
		f.Person = rec.Person
		f.State = rec.State
	}
	if rej.Op != nil {
		f.Op = rej.Op.String()
	}
	if rej.MemberMatch != nil {
		f.MemberCandidates = rej.MemberMatch.Candidates
	}
	if rej.CommitteeMatch != nil {
		f.CommitteeCandidates = rej.CommitteeMatch.Candidates
	}
	return f
}

func opsOf(accepted []model.ChangeOp, outcomes []apply.OpResult, mode model.RunMode) []Op {
	out := make([]Op, 0, len(accepted))
	if outcomes != nil {
		for _, o := range outcomes {
			op := opOf(o.Op, string(o.Outcome))
			op.AuditID = o.AuditID
			out = append(out, op)
		}
		return out
	}
	outcome := "planned"
	if mode == model.ModeApply {
		outcome = "rolled_back"
	}
	for _, op := range apply.Order(accepted) {
		out = append(out, opOf(op, outcome))
	}
	return out
}

func opOf(op model.ChangeOp, outcome string) Op {
	return Op{
		Kind:        op.Kind,
		CommitteeID: op.CommitteeID,
		MemberID:    op.MemberID,
		Role:        op.Role,
		Confidence:  op.Confidence,
		Reason:      op.Reason,
		Outcome:     outcome,
	}
}

// touched collects committees a record matched, including records whose
// state already held, plus those named by accepted and rejected ops.
func touched(evals []reconcile.Evaluation, accepted []model.ChangeOp, rejections []model.Rejection) []int64 {
	set := make(map[int64]bool)
	for _, ev := range evals {
		if ev.CommitteeMatch.Matched() {
			set[ev.CommitteeMatch.ID] = true
		}
	}
	for _, op := range accepted {
		set[op.CommitteeID] = true
	}
	for _, rej := range rejections {
		if rej.Op != nil {
			set[rej.Op.CommitteeID] = true
		}
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func committeesOf(snap *model.Snapshot, ids []int64) []CommitteeOutcome {
	out := make([]CommitteeOutcome, 0, len(ids))
	for _, id := range ids {
		c, ok := snap.Committee(id)
		if !ok {
			continue
		}
		out = append(out, CommitteeOutcome{
			ID:         c.ID,
			Name:       c.Name,
			Chamber:    c.Chamber,
			Chair:      leaderOf(snap, id, model.RoleChair),
			Ranking:    leaderOf(snap, id, model.RoleRanking),
			RosterSize: len(snap.Roster(id)),
		})
	}
	return out
}

func leaderOf(snap *model.Snapshot, committeeID int64, role model.Role) *Leader {
	id, ok := snap.Incumbent(committeeID, role)
	if !ok {
		return nil
	}
	l := &Leader{ID: id, Name: fmt.Sprintf("member %d", id)}
	if m, ok := snap.Member(id); ok {
		l.Name = m.DisplayName()
	}
	return l
}

// JSON returns the indented report.
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "report: marshal")
	}
	return data, nil
}

// WriteJSON writes the indented report to w.
func (r *Report) WriteJSON(w io.Writer) error {
	data, err := r.JSON()
	if err != nil {
		return err
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return eris.Wrap(err, "report: write")
	}
	return nil
}
