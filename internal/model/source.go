package model

import (
	"fmt"
	"time"
)

// SourceRecord is one declared fact from a scraped or curated source: a person
// holding a role on a committee. Records are transient and live for one run.
type SourceRecord struct {
	Source        string    `json:"source"`
	SourceID      string    `json:"source_id"`
	Index         int       `json:"index"`
	Priority      int       `json:"priority"`
	Committee     string    `json:"committee"`
	Chamber       Chamber   `json:"chamber"`
	Role          Role      `json:"role"`
	Title         string    `json:"title,omitempty"`
	Person        string    `json:"person"`
	State         string    `json:"state,omitempty"`
	Party         Party     `json:"party,omitempty"`
	District      string    `json:"district,omitempty"`
	BioguideID    string    `json:"bioguide_id,omitempty"`
	MemberChamber bool      `json:"member_chamber,omitempty"`
	Authoritative bool      `json:"authoritative,omitempty"`
	ScrapedAt     time.Time `json:"scraped_at"`
	Hints         []string  `json:"hints,omitempty"`
}

// Key identifies the record within a run.
func (r SourceRecord) Key() string {
	return fmt.Sprintf("%s[%d]", r.SourceID, r.Index)
}

// MatchStatus is the outcome class of a member or committee match.
type MatchStatus string

// Match statuses.
const (
	MatchOK                    MatchStatus = "matched"
	MatchNoCandidate           MatchStatus = "no_candidate"
	MatchAmbiguous             MatchStatus = "ambiguous"
	MatchChamberMismatch       MatchStatus = "chamber_mismatch"
	MatchSubcommitteeCollision MatchStatus = "subcommittee_collision"
)

// Candidate is one database row a matcher compared against.
type Candidate struct {
	ID    int64   `json:"id"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// MatchResult is the outcome of resolving a declared name to a database id.
// Failures are values, not errors: the engine branches on Status.
type MatchResult struct {
	Status     MatchStatus `json:"status"`
	ID         int64       `json:"id,omitempty"`
	Confidence float64     `json:"confidence"`
	Rules      []string    `json:"rules,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
	Notes      []string    `json:"notes,omitempty"`
}

// Matched reports whether the result resolved to an id.
func (m MatchResult) Matched() bool {
	return m.Status == MatchOK
}

// Kind maps a failed status to its stable error kind.
func (m MatchResult) Kind() ErrorKind {
	switch m.Status {
	case MatchAmbiguous:
		return KindMatchAmbiguous
	case MatchChamberMismatch:
		return KindMatchChamberMismatch
	case MatchSubcommitteeCollision:
		return KindMatchAmbiguous
	default:
		return KindMatchNoCandidate
	}
}

// Note appends a provenance note.
func (m *MatchResult) Note(format string, args ...any) {
	m.Notes = append(m.Notes, fmt.Sprintf(format, args...))
}
