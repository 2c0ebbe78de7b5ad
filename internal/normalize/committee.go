package normalize

import (
	"regexp"
	"strings"

	"github.com/sells-group/congress-cli/internal/model"
)

// Committee is a canonicalized committee name.
type Committee struct {
	Raw              string        `json:"raw"`
	Phrase           string        `json:"canonical_phrase"`
	Chamber          model.Chamber `json:"chamber"`
	SubcommitteeHint bool          `json:"is_subcommittee_hint"`
	Rules            []string      `json:"rules,omitempty"`
}

// committeePrefixes are stripped from the front of a lowercased name, longest first.
var committeePrefixes = []string{
	"permanent select committee on ",
	"standing committee on the ",
	"standing committee on ",
	"special committee on the ",
	"special committee on ",
	"select committee on the ",
	"select committee on ",
	"joint committee on the ",
	"joint committee on ",
	"subcommittee on the ",
	"subcommittee on ",
	"committee on the ",
	"committee on ",
}

var chamberQualifiers = []string{
	"united states senate ", "united states house ",
	"u.s. senate ", "u.s. house ", "us senate ", "us house ",
	"senate ", "house ",
}

// committeeSynonyms maps each variant phrase to the representative of its
// synonym group. Both sides of every pair resolve to the same representative.
var committeeSynonyms = buildSynonyms([][2]string{
	{"aging", "aging (special)"},
	{"homeland security and government affairs", "homeland security and governmental affairs"},
	{"science, space and technology", "science, space, and technology"},
	{"house administration", "administration"},
	{"oversight and government reform", "oversight and accountability"},
	{"veterans' affairs", "veterans affairs"},
	{"health, education, labor, and pensions", "health, education, labor and pensions"},
	{"natural resources", "natural resources (house)"},
	{"commerce, science, and transportation", "commerce, science and transportation"},
	{"banking, housing, and urban affairs", "banking, housing and urban affairs"},
	{"agriculture, nutrition, and forestry", "agriculture, nutrition and forestry"},
})

func buildSynonyms(pairs [][2]string) map[string]string {
	parent := map[string]string{}
	var find func(string) string
	find = func(s string) string {
		p, ok := parent[s]
		if !ok || p == s {
			parent[s] = s
			return s
		}
		root := find(p)
		parent[s] = root
		return root
	}
	for _, pair := range pairs {
		a, b := find(pair[0]), find(pair[1])
		if a == b {
			continue
		}
		// lexically smaller phrase represents the group
		if b < a {
			a, b = b, a
		}
		parent[b] = a
	}
	out := make(map[string]string, len(parent))
	for k := range parent {
		out[k] = find(k)
	}
	return out
}

var spaceBeforeCommaRe = regexp.MustCompile(`\s+,`)

// CommitteeName canonicalizes a declared committee name for comparison.
func CommitteeName(raw string, chamber model.Chamber) Committee {
	c := Committee{Raw: raw, Chamber: chamber}
	s := strings.ToLower(Fold(raw))
	s = markerRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, "\t", " ")
	s = collapse(spaceBeforeCommaRe.ReplaceAllString(s, ","))
	s = strings.Trim(s, " .:;")

	for _, q := range chamberQualifiers {
		if strings.HasPrefix(s, q) {
			s = strings.TrimPrefix(s, q)
			c.Rules = append(c.Rules, "chamber_qualifier")
			break
		}
	}
	if strings.HasPrefix(s, "the ") {
		s = strings.TrimPrefix(s, "the ")
	}
	if strings.Contains(s, "subcommittee") {
		c.SubcommitteeHint = true
	}
	for _, p := range committeePrefixes {
		if strings.HasPrefix(s, p) {
			s = strings.TrimPrefix(s, p)
			c.Rules = append(c.Rules, "prefix:"+strings.TrimSpace(p))
			break
		}
	}
	for _, suf := range []string{" subcommittee", " committee"} {
		if strings.HasSuffix(s, suf) {
			s = strings.TrimSuffix(s, suf)
			c.Rules = append(c.Rules, "suffix:"+strings.TrimSpace(suf))
			break
		}
	}
	c.Phrase = collapse(s)
	return c
}

// SynonymKey returns the synonym-group representative of a canonical phrase,
// or the phrase itself when it has no synonyms.
func SynonymKey(phrase string) string {
	if rep, ok := committeeSynonyms[phrase]; ok {
		return rep
	}
	return phrase
}

// Tokens splits a phrase into comparison tokens, dropping punctuation and
// filler words that carry no identity ("and", "the", "of", "on").
func Tokens(phrase string) []string {
	var out []string
	for _, t := range strings.Fields(Key(phrase)) {
		switch t {
		case "and", "the", "of", "on", "for":
			continue
		}
		out = append(out, t)
	}
	return out
}
