package guard

import (
	"fmt"
	"sort"

	"github.com/sells-group/congress-cli/internal/model"
)

// Violation is an invariant that does not hold after a batch.
type Violation struct {
	Rule   model.ErrorKind `json:"rule"`
	Detail string          `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Rule, v.Detail)
}

// Scope is the set of committees and states a batch touches.
type Scope struct {
	Committees []int64
	States     []string
}

// ScopeOf collects the committees and senator states ops touch.
func ScopeOf(s *model.Snapshot, ops []model.ChangeOp) Scope {
	committees := make(map[int64]bool)
	states := make(map[string]bool)
	for _, op := range ops {
		committees[op.CommitteeID] = true
		if op.Kind == model.OpUpsertMembership || op.IsAssign() {
			if m, ok := s.Member(op.MemberID); ok && m.Chamber == model.ChamberSenate {
				states[m.State] = true
			}
		}
	}
	var sc Scope
	for id := range committees {
		sc.Committees = append(sc.Committees, id)
	}
	for st := range states {
		sc.States = append(sc.States, st)
	}
	sort.Slice(sc.Committees, func(i, j int) bool { return sc.Committees[i] < sc.Committees[j] })
	sort.Strings(sc.States)
	return sc
}

// Verify checks the post-run invariants within scope: at most one chair and
// one ranking member per active committee, and at most two seated senators
// per state.
func Verify(s *model.Snapshot, sc Scope) []Violation {
	var out []Violation
	for _, id := range sc.Committees {
		c, ok := s.Committee(id)
		if !ok || !c.IsActive {
			continue
		}
		counts := map[model.Role]int{}
		for _, ms := range s.Roster(id) {
			counts[ms.Role]++
		}
		for _, role := range []model.Role{model.RoleChair, model.RoleRanking} {
			if counts[role] > 1 {
				out = append(out, Violation{
					Rule:   model.KindGuardR1,
					Detail: fmt.Sprintf("committee %q has %d current %s memberships", c.Name, counts[role], role),
				})
			}
		}
	}

	if len(sc.States) == 0 {
		return out
	}
	want := make(map[string]bool, len(sc.States))
	for _, st := range sc.States {
		want[st] = true
	}
	perState := make(map[string]int)
	for _, m := range s.CurrentMembers() {
		if m.Chamber == model.ChamberSenate && want[m.State] && s.HoldsMembership(m.ID) {
			perState[m.State]++
		}
	}
	for _, st := range sc.States {
		if perState[st] > MaxSenatorsPerState {
			out = append(out, Violation{
				Rule:   model.KindGuardR4,
				Detail: fmt.Sprintf("%s has %d seated senators", st, perState[st]),
			})
		}
	}
	return out
}
