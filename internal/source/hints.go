package source

import (
	"github.com/sells-group/congress-cli/internal/model"
	"github.com/sells-group/congress-cli/internal/normalize"
)

// Hint is roster attribution for a person, used to fill state and party on
// records from sources that omit them.
type Hint struct {
	SourceID string        `json:"source_id"`
	Name     string        `json:"name"`
	Chamber  model.Chamber `json:"chamber"`
	State    string        `json:"state,omitempty"`
	Party    model.Party   `json:"party,omitempty"`
	District string        `json:"district,omitempty"`
}

type hintKey struct {
	last    string
	chamber model.Chamber
}

type resolvedHint struct {
	Hint
	inits []string
}

// ApplyHints fills missing state and party on records when exactly one
// roster hint in the record's chamber shares the declared last name and
// first initial.
func ApplyHints(records []model.SourceRecord, hints []Hint) int {
	index := make(map[hintKey][]resolvedHint)
	for _, h := range hints {
		p, err := normalize.PersonName(h.Name)
		if err != nil {
			continue
		}
		rh := resolvedHint{Hint: h}
		if rh.State != "" {
			st, err := normalize.State(rh.State)
			if err != nil {
				continue
			}
			rh.State = st
		} else if p.State != "" {
			rh.State = p.State
		}
		if rh.Party == "" {
			rh.Party = p.Party
		}
		for _, i := range []string{p.FirstInitial(), p.NicknameInitial()} {
			if i != "" {
				rh.inits = append(rh.inits, i)
			}
		}
		k := hintKey{last: p.LastKey(), chamber: h.Chamber}
		index[k] = append(index[k], rh)
	}

	applied := 0
	for i := range records {
		r := &records[i]
		if r.State != "" && r.Party != "" {
			continue
		}
		p, err := normalize.PersonName(r.Person)
		if err != nil || (p.State != "" && p.Party != "") {
			continue
		}
		chambers := []model.Chamber{r.Chamber}
		if r.Chamber == model.ChamberJoint {
			chambers = []model.Chamber{model.ChamberHouse, model.ChamberSenate}
		}
		var found []resolvedHint
		for _, c := range chambers {
			for _, h := range index[hintKey{last: p.LastKey(), chamber: c}] {
				if p.FirstInitial() != "" && len(h.inits) > 0 && !contains(h.inits, p.FirstInitial()) && !contains(h.inits, p.NicknameInitial()) {
					continue
				}
				found = appendDistinct(found, h)
			}
		}
		if len(found) != 1 {
			continue
		}
		h := found[0]
		changed := false
		if r.State == "" && p.State == "" && h.State != "" {
			r.State = h.State
			changed = true
		}
		if r.Party == "" && p.Party == "" && h.Party != "" {
			r.Party = h.Party
			changed = true
		}
		if r.District == "" && h.District != "" && changed {
			r.District = h.District
		}
		if changed {
			r.Hints = append(r.Hints, "roster_hint:"+h.SourceID)
			applied++
		}
	}
	return applied
}

// appendDistinct treats hints for the same person (state, chamber) from
// several rosters as one.
func appendDistinct(in []resolvedHint, h resolvedHint) []resolvedHint {
	for _, x := range in {
		if x.State == h.State && x.Chamber == h.Chamber {
			return in
		}
	}
	return append(in, h)
}

func contains(list []string, s string) bool {
	if s == "" {
		return false
	}
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
