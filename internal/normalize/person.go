package normalize

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/congress-cli/internal/model"
)

// Person is a canonicalized personal name. Name parts keep their display form;
// the *Key methods derive comparison keys.
type Person struct {
	Raw      string      `json:"raw"`
	First    string      `json:"first"`
	Middle   string      `json:"middle,omitempty"`
	Last     string      `json:"last"`
	Suffix   string      `json:"suffix,omitempty"`
	Nickname string      `json:"nickname,omitempty"`
	Party    model.Party `json:"party,omitempty"`
	State    string      `json:"state,omitempty"`
	District string      `json:"district,omitempty"`
	Rules    []string    `json:"rules,omitempty"`
}

// LastKey is the comparison key of the last name.
func (p Person) LastKey() string { return Key(p.Last) }

// FirstInitial is the lowercase first letter of the first name, or "".
func (p Person) FirstInitial() string { return initial(p.First) }

// NicknameInitial is the lowercase first letter of the nickname, or "".
func (p Person) NicknameInitial() string { return initial(p.Nickname) }

// FullKey is the comparison key of "first last".
func (p Person) FullKey() string { return Key(p.First + " " + p.Last) }

// NicknameKey is the comparison key of "nickname last", or "" without a nickname.
func (p Person) NicknameKey() string {
	if p.Nickname == "" {
		return ""
	}
	return Key(p.Nickname + " " + p.Last)
}

// Display renders the name for reports.
func (p Person) Display() string {
	parts := []string{p.First, p.Middle, p.Last, p.Suffix}
	var out []string
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, " ")
}

func initial(s string) string {
	k := Key(s)
	if k == "" {
		return ""
	}
	return string([]rune(k)[:1])
}

var (
	// "(D-IL)", "(R-TX-12)", "(D-CA12)", "(I - VT)", "(R-AK-AL)"
	partyStateRe = regexp.MustCompile(`(?i)\(\s*([A-Z]{1,3})\s*[-–]\s*([A-Z]{2})(?:\s*[-–]?\s*(\d{1,2}|AL))?\s*\)\s*$`)
	// "(D)", "(R)"
	partyOnlyRe  = regexp.MustCompile(`(?i)\(\s*([DRI])\s*\)\s*$`)
	// "Charles (Chuck) Grassley"
	parenNickRe  = regexp.MustCompile(`\(\s*([A-Za-z][A-Za-z.'-]*)\s*\)`)
	quotedNickRe = regexp.MustCompile(`"\s*([^"]+?)\s*"`)
	markerRe     = regexp.MustCompile(`[•·▪◦‣*†‡★■►]`)
)

// honorifics are matched as leading token sequences, lowercase and without periods.
var honorifics = [][]string{
	{"ranking", "member"},
	{"resident", "commissioner"},
	{"vice", "chair"},
	{"vice", "chairman"},
	{"sen"}, {"senator"}, {"rep"}, {"representative"}, {"congressman"}, {"congresswoman"},
	{"del"}, {"delegate"}, {"dr"}, {"hon"}, {"honorable"}, {"the"},
	{"mr"}, {"mrs"}, {"ms"}, {"chairman"}, {"chairwoman"}, {"chair"},
}

var suffixes = map[string]string{
	"jr": "Jr.", "sr": "Sr.", "ii": "II", "iii": "III", "iv": "IV", "v": "V",
}

// compoundSurnames are multi-word last names that would otherwise split into
// middle and last name.
var compoundSurnames = map[string]bool{
	"blunt rochester":   true,
	"cortez masto":      true,
	"van hollen":        true,
	"van drew":          true,
	"van orden":         true,
	"van duyne":         true,
	"wasserman schultz": true,
	"watson coleman":    true,
	"mcmorris rodgers":  true,
	"de la cruz":        true,
	"diaz balart":       true,
	"leger fernandez":   true,
}

var surnameParticles = map[string]bool{
	"van": true, "von": true, "de": true, "del": true, "della": true,
	"la": true, "le": true, "st": true, "du": true, "da": true,
}

// PersonName canonicalizes a declared person string such as
// "Sen. Charles E. Grassley (R-IA)" or "Grassley, Chuck".
func PersonName(raw string) (Person, error) {
	p := Person{Raw: raw}
	s := Fold(raw)
	s = markerRe.ReplaceAllString(s, " ")
	s = strings.TrimLeft(strings.TrimSpace(s), "-–— ")

	if m := partyStateRe.FindStringSubmatch(s); m != nil {
		p.Party = Party(m[1])
		state, err := State(m[2])
		if err != nil {
			return p, eris.Wrapf(err, "normalize: person %q", raw)
		}
		p.State = state
		if m[3] != "" {
			p.District = strings.ToUpper(strings.TrimLeft(m[3], "0"))
		}
		p.Rules = append(p.Rules, "party_state_parenthetical")
		s = strings.TrimSpace(s[:len(s)-len(m[0])])
	} else if m := partyOnlyRe.FindStringSubmatch(s); m != nil {
		p.Party = Party(m[1])
		p.Rules = append(p.Rules, "party_parenthetical")
		s = strings.TrimSpace(s[:len(s)-len(m[0])])
	}
	if m := parenNickRe.FindStringSubmatch(s); m != nil {
		p.Nickname = m[1]
		p.Rules = append(p.Rules, "nickname_parenthetical")
		s = strings.Replace(s, m[0], " ", 1)
	}
	if m := quotedNickRe.FindStringSubmatch(s); m != nil {
		p.Nickname = m[1]
		p.Rules = append(p.Rules, "nickname_quoted")
		s = strings.Replace(s, m[0], " ", 1)
	}

	s, stripped := stripHonorifics(s)
	if stripped {
		p.Rules = append(p.Rules, "honorific")
	}

	if strings.Contains(s, ",") {
		var parts []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				parts = append(parts, part)
			}
		}
		if n := len(parts); n >= 2 {
			if suf, ok := suffixes[Key(parts[n-1])]; ok {
				p.Suffix = suf
				parts = parts[:n-1]
			}
		}
		if len(parts) >= 2 {
			// "Last, First Middle"
			parts = append(parts[1:], parts[0])
			p.Rules = append(p.Rules, "last_first_order")
		}
		s = strings.Join(parts, " ")
		p.Rules = append(p.Rules, "comma")
	}

	tokens := strings.Fields(collapse(s))
	// A lone trailing "V" on a two-token name is more likely an initial.
	if n := len(tokens); n > 1 {
		if suf, ok := suffixes[Key(tokens[n-1])]; ok && (n > 2 || suf != "V") {
			p.Suffix = suf
			tokens = tokens[:n-1]
		}
	}

	switch len(tokens) {
	case 0:
		return p, model.NewKindError(model.KindSourceMalformed, "normalize: empty person name %q", raw)
	case 1:
		p.Last = tokens[0]
		return p, nil
	}

	start := lastNameStart(tokens)
	if start < len(tokens)-1 {
		p.Rules = append(p.Rules, "compound_surname")
	}
	p.First = tokens[0]
	p.Middle = strings.Join(tokens[1:start], " ")
	p.Last = strings.Join(tokens[start:], " ")
	return p, nil
}

// lastNameStart returns the index of the first token of the last name.
func lastNameStart(tokens []string) int {
	n := len(tokens)
	for span := 3; span >= 2; span-- {
		if n-span < 1 {
			continue
		}
		if compoundSurnames[Key(strings.Join(tokens[n-span:], " "))] {
			return n - span
		}
	}
	start := n - 1
	for start > 1 && surnameParticles[Key(tokens[start-1])] {
		start--
	}
	return start
}

func stripHonorifics(s string) (string, bool) {
	tokens := strings.Fields(s)
	stripped := false
	for len(tokens) > 1 {
		matched := false
		for _, h := range honorifics {
			if len(tokens) <= len(h) {
				continue
			}
			ok := true
			for i, word := range h {
				if strings.ToLower(strings.Trim(tokens[i], ".,:")) != word {
					ok = false
					break
				}
			}
			if ok {
				tokens = tokens[len(h):]
				matched, stripped = true, true
				break
			}
		}
		if !matched {
			break
		}
	}
	return strings.Join(tokens, " "), stripped
}
