package match

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/congress-cli/internal/model"
	"github.com/sells-group/congress-cli/internal/normalize"
)

// Member match thresholds and confidences.
const (
	ConfidenceLastState    = 100
	ConfidenceLastChamber  = 90
	ConfidenceFirstInitial = 80
	MinMemberSimilarity    = 85
	MinMemberMargin        = 10
	PartyMismatchPenalty   = 15
	DefaultMatchBudget     = 250 * time.Millisecond
)

// MemberQuery is a normalized person plus the attribution a source declared.
type MemberQuery struct {
	Person normalize.Person
	// Chamber narrows candidates. When ChamberHard is false it is only a hint:
	// a unique last-name match in another chamber still resolves.
	Chamber     model.Chamber
	ChamberHard bool
	State       string
	Party       model.Party
	BioguideID  string
}

// MemberConfig tunes the member matcher.
type MemberConfig struct {
	// StrictState reports ambiguity instead of guessing with first initials
	// or similarity when no state is declared.
	StrictState bool
	// Budget is the soft per-record time limit. Zero uses DefaultMatchBudget.
	Budget time.Duration
}

type memberEntry struct {
	member  model.Member
	lastKey string
	inits   []string
	names   []string
}

// MemberMatcher resolves declared person names against the members table.
type MemberMatcher struct {
	cfg        MemberConfig
	current    []*memberEntry
	byID       map[int64]*memberEntry
	byLast     map[string][]*memberEntry
	byExternal map[string]*memberEntry
	now        func() time.Time
	log        *zap.Logger
}

// NewMemberMatcher indexes members. Non-current members are reachable only
// by external id.
func NewMemberMatcher(members []model.Member, cfg MemberConfig) *MemberMatcher {
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultMatchBudget
	}
	m := &MemberMatcher{
		cfg:        cfg,
		byID:       make(map[int64]*memberEntry, len(members)),
		byLast:     make(map[string][]*memberEntry),
		byExternal: make(map[string]*memberEntry),
		now:        time.Now,
		log:        zap.L().With(zap.String("component", "member_matcher")),
	}
	sorted := append([]model.Member(nil), members...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, mem := range sorted {
		e := &memberEntry{member: mem, lastKey: normalize.Key(mem.LastName)}
		for _, first := range []string{mem.FirstName, mem.Nickname} {
			k := normalize.Key(first)
			if k == "" {
				continue
			}
			e.inits = append(e.inits, string([]rune(k)[:1]))
			e.names = append(e.names, first+" "+mem.LastName)
		}
		m.byID[mem.ID] = e
		if mem.ExternalID != "" {
			m.byExternal[strings.ToUpper(mem.ExternalID)] = e
		}
		if !mem.IsCurrent {
			continue
		}
		m.current = append(m.current, e)
		m.byLast[e.lastKey] = append(m.byLast[e.lastKey], e)
	}
	return m
}

// Match runs the lookup cascade: external id, last name + state, last name +
// chamber, first-initial disambiguation, then full-name similarity. A declared
// party that disagrees with the match lowers confidence without failing it.
func (m *MemberMatcher) Match(ctx context.Context, q MemberQuery) model.MatchResult {
	start := m.now()
	res := m.match(ctx, q, start)
	if res.Matched() && q.Party != "" {
		if e := m.byID[res.ID]; e != nil && e.member.Party != q.Party {
			res.Confidence = max(0, res.Confidence-PartyMismatchPenalty)
			res.Rules = append(res.Rules, "party_mismatch")
			res.Note("declared party %s, member is %s", q.Party, e.member.Party)
		}
	}
	if res.Matched() {
		m.log.Debug("member matched",
			zap.String("declared", q.Person.Raw),
			zap.Int64("member_id", res.ID),
			zap.Float64("confidence", res.Confidence),
		)
	}
	return res
}

func (m *MemberMatcher) match(ctx context.Context, q MemberQuery, start time.Time) model.MatchResult {
	var res model.MatchResult
	res.Rules = append(res.Rules, q.Person.Rules...)

	// Step 0: external id.
	if q.BioguideID != "" {
		if e, ok := m.byExternal[strings.ToUpper(q.BioguideID)]; ok {
			return m.resolve(res, e, ConfidenceLastState, "bioguide_id")
		}
		res.Note("bioguide id %s not found", q.BioguideID)
	}

	lastKeys := []string{q.Person.LastKey()}
	if q.Person.Middle != "" {
		lastKeys = append(lastKeys, normalize.Key(q.Person.Middle+" "+q.Person.Last))
	}
	byLast := m.lookupLast(lastKeys)
	chamber := q.Chamber
	if chamber == model.ChamberJoint {
		chamber = ""
	}

	var pool []*memberEntry
	if q.State != "" {
		// Step 1: last name + state.
		pool = filter(byLast, func(e *memberEntry) bool { return e.member.State == q.State })
		if len(pool) > 1 && chamber != "" {
			if narrowed := filter(pool, inChamber(chamber)); len(narrowed) >= 1 {
				pool = narrowed
			}
		}
		if len(pool) == 1 {
			return m.checkChamber(res, pool[0], q, ConfidenceLastState, "last_state")
		}
	} else {
		// Step 2: last name + chamber.
		pool = byLast
		if chamber != "" {
			pool = filter(byLast, inChamber(chamber))
			if len(pool) == 0 && len(byLast) == 1 {
				return m.checkChamber(res, byLast[0], q, ConfidenceLastChamber, "last_name_any_chamber")
			}
		}
		if len(pool) == 1 {
			return m.resolve(res, pool[0], ConfidenceLastChamber, "last_chamber")
		}
		if len(pool) > 1 && m.cfg.StrictState {
			res.Rules = append(res.Rules, "strict_state")
			res.Note("%d candidates and no declared state", len(pool))
			return ambiguous(res, pool, ConfidenceLastChamber)
		}
	}

	if len(pool) > 1 {
		// Step 3: first-initial disambiguation.
		inits := declaredInitials(q.Person)
		if len(inits) == 0 {
			res.Note("%d candidates share last name %q", len(pool), q.Person.Last)
			return ambiguous(res, pool, ConfidenceLastChamber)
		}
		survivors := filter(pool, func(e *memberEntry) bool { return overlaps(e.inits, inits) })
		if len(survivors) == 1 {
			return m.resolve(res, survivors[0], ConfidenceFirstInitial, "first_initial")
		}
		if len(survivors) > 1 {
			pool = survivors
		}
		return m.similarity(ctx, res, q, pool, start, true)
	}

	if q.Person.First == "" {
		res.Note("no current member with last name %q", q.Person.Last)
		res.Status = model.MatchNoCandidate
		return res
	}

	// Step 4 over the whole chamber (and state, when declared).
	wide := m.current
	if chamber != "" {
		wide = filter(wide, inChamber(chamber))
	}
	if q.State != "" {
		wide = filter(wide, func(e *memberEntry) bool { return e.member.State == q.State })
	}
	return m.similarity(ctx, res, q, wide, start, false)
}

// similarity is step 4: token-sort similarity on "first last" and
// "nickname last" forms.
func (m *MemberMatcher) similarity(ctx context.Context, res model.MatchResult, q MemberQuery, pool []*memberEntry, start time.Time, narrowed bool) model.MatchResult {
	declared := []string{q.Person.First + " " + q.Person.Last}
	if q.Person.Nickname != "" {
		declared = append(declared, q.Person.Nickname+" "+q.Person.Last)
	}

	scored := make([]model.Candidate, 0, len(pool))
	for _, e := range pool {
		if ctx.Err() != nil || m.now().Sub(start) > m.cfg.Budget {
			res.Status = model.MatchNoCandidate
			res.Rules = append(res.Rules, "timeout")
			res.Note("timeout after %s comparing %d candidates", m.cfg.Budget, len(pool))
			return res
		}
		var best float64
		for _, d := range declared {
			for _, n := range e.names {
				best = max(best, TokenSort(d, n))
			}
		}
		scored = append(scored, model.Candidate{ID: e.member.ID, Label: label(e.member), Score: best})
	}
	rankCandidates(scored)
	res.Candidates = topN(scored, 3)
	res.Rules = append(res.Rules, "token_sort")

	if len(scored) == 0 || scored[0].Score < MinMemberSimilarity {
		if narrowed {
			res.Note("%d candidates could not be separated", len(pool))
			res.Status = model.MatchAmbiguous
			return res
		}
		res.Status = model.MatchNoCandidate
		return res
	}
	if len(scored) > 1 && scored[0].Score-scored[1].Score < MinMemberMargin {
		res.Note("top candidates within %d points", MinMemberMargin)
		res.Status = model.MatchAmbiguous
		return res
	}
	e := m.byID[scored[0].ID]
	return m.checkChamber(res, e, q, scored[0].Score, "similarity")
}

func (m *MemberMatcher) checkChamber(res model.MatchResult, e *memberEntry, q MemberQuery, confidence float64, rule string) model.MatchResult {
	if q.Chamber != "" && q.Chamber != model.ChamberJoint && e.member.Chamber != q.Chamber {
		if q.ChamberHard {
			res.Status = model.MatchChamberMismatch
			res.Candidates = []model.Candidate{{ID: e.member.ID, Label: label(e.member), Score: confidence}}
			res.Note("%s sits in the %s, declared %s", label(e.member), e.member.Chamber, q.Chamber)
			return res
		}
		res.Note("declared chamber %s, member sits in the %s", q.Chamber, e.member.Chamber)
	}
	return m.resolve(res, e, confidence, rule)
}

func (m *MemberMatcher) resolve(res model.MatchResult, e *memberEntry, confidence float64, rule string) model.MatchResult {
	res.Status = model.MatchOK
	res.ID = e.member.ID
	res.Confidence = confidence
	res.Rules = append(res.Rules, rule)
	if len(res.Candidates) == 0 {
		res.Candidates = []model.Candidate{{ID: e.member.ID, Label: label(e.member), Score: confidence}}
	}
	return res
}

func (m *MemberMatcher) lookupLast(keys []string) []*memberEntry {
	seen := map[int64]bool{}
	var out []*memberEntry
	for _, k := range keys {
		for _, e := range m.byLast[k] {
			if !seen[e.member.ID] {
				seen[e.member.ID] = true
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].member.ID < out[j].member.ID })
	return out
}

func ambiguous(res model.MatchResult, pool []*memberEntry, score float64) model.MatchResult {
	res.Status = model.MatchAmbiguous
	for _, e := range pool {
		res.Candidates = append(res.Candidates, model.Candidate{ID: e.member.ID, Label: label(e.member), Score: score})
	}
	return res
}

func declaredInitials(p normalize.Person) []string {
	var out []string
	for _, i := range []string{p.FirstInitial(), p.NicknameInitial()} {
		if i != "" {
			out = append(out, i)
		}
	}
	return out
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func inChamber(c model.Chamber) func(*memberEntry) bool {
	return func(e *memberEntry) bool { return e.member.Chamber == c }
}

func filter(in []*memberEntry, keep func(*memberEntry) bool) []*memberEntry {
	var out []*memberEntry
	for _, e := range in {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func label(m model.Member) string {
	l := m.DisplayName()
	if m.State == "" {
		return l
	}
	party := "?"
	if m.Party != "" {
		party = string(m.Party)[:1]
	}
	return l + " (" + party + "-" + m.State + ")"
}

// rankCandidates sorts by score desc, then id asc.
func rankCandidates(c []model.Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		return c[i].ID < c[j].ID
	})
}

func topN(c []model.Candidate, n int) []model.Candidate {
	if len(c) > n {
		c = c[:n]
	}
	return append([]model.Candidate(nil), c...)
}
