package match

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/congress-cli/internal/model"
	"github.com/sells-group/congress-cli/internal/normalize"
)

// Committee match thresholds and confidences.
const (
	ConfidenceExact          = 100
	ConfidenceSynonym        = 95
	MinCommitteeSimilarity   = 80
	MinCommitteeMargin       = 10
	MinCommitteeConfidence   = 60
	similarityWeight         = 0.6
	chamberExactBonus        = 20
	standingCommitteeBonus   = 10
	subcommitteeMatchPenalty = 20
)

type committeeEntry struct {
	committee model.Committee
	phrase    string
	synonym   string
}

// CommitteeMatcher resolves normalized committee names against the committees table.
type CommitteeMatcher struct {
	entries []*committeeEntry
	budget  time.Duration
	now     func() time.Time
	log     *zap.Logger
}

// NewCommitteeMatcher normalizes every stored committee name once. budget
// is the soft per-record limit for similarity scoring; zero uses
// DefaultMatchBudget.
func NewCommitteeMatcher(committees []model.Committee, budget time.Duration) *CommitteeMatcher {
	sorted := append([]model.Committee(nil), committees...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	if budget <= 0 {
		budget = DefaultMatchBudget
	}
	m := &CommitteeMatcher{
		budget: budget,
		now:    time.Now,
		log:    zap.L().With(zap.String("component", "committee_matcher")),
	}
	for _, c := range sorted {
		phrase := normalize.CommitteeName(c.Name, c.Chamber).Phrase
		m.entries = append(m.entries, &committeeEntry{
			committee: c,
			phrase:    phrase,
			synonym:   normalize.SynonymKey(phrase),
		})
	}
	return m
}

// Match runs exact, synonym, then token-set matching within the declared
// chamber plus Joint committees.
func (m *CommitteeMatcher) Match(ctx context.Context, nc normalize.Committee) model.MatchResult {
	res := model.MatchResult{Rules: append([]string(nil), nc.Rules...)}
	if ctx.Err() != nil {
		res.Status = model.MatchNoCandidate
		res.Note("cancelled")
		return res
	}
	start := m.now()
	pool := m.pool(nc.Chamber)
	preferred := filterCommittees(pool, func(e *committeeEntry) bool {
		return e.committee.IsSubcommittee == nc.SubcommitteeHint
	})

	// Step 1: exact canonical phrase.
	if r, ok := m.keyed(res, nc, preferred, func(e *committeeEntry) bool { return e.phrase == nc.Phrase }, ConfidenceExact, "exact"); ok {
		return r
	}
	// Step 2: synonym table.
	syn := normalize.SynonymKey(nc.Phrase)
	if r, ok := m.keyed(res, nc, preferred, func(e *committeeEntry) bool { return e.synonym == syn }, ConfidenceSynonym, "synonym"); ok {
		return r
	}

	// Step 3: token-set similarity.
	res.Rules = append(res.Rules, "token_set")
	scored, ok := m.score(ctx, nc.Phrase, preferred, start)
	if !ok {
		return m.timeout(res, len(preferred))
	}
	res.Candidates = topN(scored, 3)

	if !nc.SubcommitteeHint {
		subPool := filterCommittees(pool, func(e *committeeEntry) bool { return e.committee.IsSubcommittee })
		subs, ok := m.score(ctx, nc.Phrase, subPool, start)
		if !ok {
			return m.timeout(res, len(subPool))
		}
		if len(subs) > 0 && subs[0].Score >= MinCommitteeSimilarity && (len(scored) == 0 || subs[0].Score > scored[0].Score) {
			res.Status = model.MatchSubcommitteeCollision
			res.Candidates = topN(append(subs[:1:1], scored...), 3)
			res.Note("best match %q is a subcommittee", subs[0].Label)
			return res
		}
	}

	if len(scored) == 0 || scored[0].Score < MinCommitteeSimilarity {
		return m.elsewhere(res, nc)
	}
	if len(scored) > 1 && scored[0].Score-scored[1].Score < MinCommitteeMargin {
		res.Status = model.MatchAmbiguous
		res.Note("top candidates within %d points", MinCommitteeMargin)
		return res
	}

	top := m.entry(scored[0].ID)
	confidence := similarityWeight * scored[0].Score
	if top.committee.Chamber == nc.Chamber {
		confidence += chamberExactBonus
	}
	if top.committee.IsSubcommittee {
		confidence -= subcommitteeMatchPenalty
	} else {
		confidence += standingCommitteeBonus
	}
	confidence = round2(min(confidence, 100))
	if confidence < MinCommitteeConfidence {
		res.Status = model.MatchNoCandidate
		res.Note("confidence %.1f below %d", confidence, MinCommitteeConfidence)
		return res
	}
	res.Status = model.MatchOK
	res.ID = top.committee.ID
	res.Confidence = confidence
	m.log.Debug("committee matched by similarity",
		zap.String("declared", nc.Raw),
		zap.Int64("committee_id", res.ID),
		zap.Float64("score", scored[0].Score),
	)
	return res
}

// keyed resolves an equality lookup. Several hits are narrowed to the
// declared chamber before giving up as ambiguous.
func (m *CommitteeMatcher) keyed(res model.MatchResult, nc normalize.Committee, pool []*committeeEntry, eq func(*committeeEntry) bool, confidence float64, rule string) (model.MatchResult, bool) {
	hits := filterCommittees(pool, eq)
	if len(hits) > 1 {
		if exact := filterCommittees(hits, func(e *committeeEntry) bool { return e.committee.Chamber == nc.Chamber }); len(exact) > 0 {
			hits = exact
		}
	}
	switch len(hits) {
	case 0:
		return res, false
	case 1:
		res.Status = model.MatchOK
		res.ID = hits[0].committee.ID
		res.Confidence = confidence
		res.Rules = append(res.Rules, rule)
		res.Candidates = []model.Candidate{{ID: hits[0].committee.ID, Label: hits[0].committee.Name, Score: confidence}}
		return res, true
	}
	res.Status = model.MatchAmbiguous
	res.Rules = append(res.Rules, rule)
	for _, h := range hits {
		res.Candidates = append(res.Candidates, model.Candidate{ID: h.committee.ID, Label: h.committee.Name, Score: confidence})
	}
	res.Note("%d committees share the name %q", len(hits), nc.Phrase)
	return res, true
}

// elsewhere reports a chamber mismatch when the name resolves exactly in a
// chamber outside the pool, and no candidate otherwise.
func (m *CommitteeMatcher) elsewhere(res model.MatchResult, nc normalize.Committee) model.MatchResult {
	syn := normalize.SynonymKey(nc.Phrase)
	for _, e := range m.entries {
		if e.committee.Chamber == nc.Chamber || e.committee.Chamber == model.ChamberJoint {
			continue
		}
		if e.committee.IsSubcommittee == nc.SubcommitteeHint && e.synonym == syn {
			res.Status = model.MatchChamberMismatch
			res.Candidates = append(res.Candidates, model.Candidate{ID: e.committee.ID, Label: e.committee.Name, Score: ConfidenceExact})
			res.Note("%q exists in the %s, declared %s", e.committee.Name, e.committee.Chamber, nc.Chamber)
			return res
		}
	}
	res.Status = model.MatchNoCandidate
	return res
}

func (m *CommitteeMatcher) pool(chamber model.Chamber) []*committeeEntry {
	if chamber == "" {
		return m.entries
	}
	return filterCommittees(m.entries, func(e *committeeEntry) bool {
		return e.committee.Chamber == chamber || e.committee.Chamber == model.ChamberJoint
	})
}

func (m *CommitteeMatcher) entry(id int64) *committeeEntry {
	for _, e := range m.entries {
		if e.committee.ID == id {
			return e
		}
	}
	return nil
}

// score ranks pool by token-set similarity. It reports false when ctx ends
// or the budget measured from start runs out.
func (m *CommitteeMatcher) score(ctx context.Context, phrase string, pool []*committeeEntry, start time.Time) ([]model.Candidate, bool) {
	out := make([]model.Candidate, 0, len(pool))
	for _, e := range pool {
		if ctx.Err() != nil || m.now().Sub(start) > m.budget {
			return nil, false
		}
		out = append(out, model.Candidate{ID: e.committee.ID, Label: e.committee.Name, Score: TokenSet(phrase, e.phrase)})
	}
	rankCandidates(out)
	return out, true
}

func (m *CommitteeMatcher) timeout(res model.MatchResult, compared int) model.MatchResult {
	res.Status = model.MatchNoCandidate
	res.Candidates = nil
	res.Rules = append(res.Rules, "timeout")
	res.Note("timeout after %s comparing %d candidates", m.budget, compared)
	return res
}

func filterCommittees(in []*committeeEntry, keep func(*committeeEntry) bool) []*committeeEntry {
	var out []*committeeEntry
	for _, e := range in {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
