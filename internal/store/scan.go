package store

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/congress-cli/internal/model"
)

type scannable interface {
	Scan(dest ...any) error
}

func scanMember(row scannable) (model.Member, error) {
	var m model.Member
	var party, chamber string
	err := row.Scan(&m.ID, &m.ExternalID, &m.FirstName, &m.LastName, &m.MiddleName, &m.Suffix, &m.Nickname,
		&party, &chamber, &m.State, &m.District, &m.PhotoURL, &m.IsCurrent)
	m.Party = model.Party(party)
	m.Chamber = model.Chamber(chamber)
	return m, err
}

func scanCommittee(row scannable) (model.Committee, error) {
	var c model.Committee
	var chamber string
	err := row.Scan(&c.ID, &c.ExternalID, &c.Name, &chamber, &c.IsSubcommittee,
		&c.ParentCommitteeID, &c.ChairMemberID, &c.RankingMemberID, &c.IsActive)
	c.Chamber = model.Chamber(chamber)
	return c, err
}

func scanMembership(row scannable) (model.Membership, error) {
	var ms model.Membership
	var role string
	err := row.Scan(&ms.ID, &ms.MemberID, &ms.CommitteeID, &role, &ms.IsCurrent, &ms.StartDate, &ms.EndDate)
	ms.Role = model.Role(role)
	return ms, err
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var mode, status, kind string
	var sources, report []byte
	var ended *time.Time
	if err := row.Scan(&r.ID, &mode, &status, &r.ExitCode, &kind, &r.Error, &sources,
		&r.Applied, &r.Rejected, &r.Unchanged, &r.StartedAt, &ended, &report); err != nil {
		return nil, err
	}
	r.Mode = model.RunMode(mode)
	r.Status = model.RunStatus(status)
	r.ErrorKind = model.ErrorKind(kind)
	r.EndedAt = ended
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &r.Sources); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal run sources")
		}
	}
	if len(report) > 0 {
		r.Report = json.RawMessage(report)
	}
	return &r, nil
}

func scanAudit(row scannable) (*model.AuditEntry, error) {
	var e model.AuditEntry
	var op string
	var oldValue, newValue, change []byte
	if err := row.Scan(&e.ID, &e.Table, &e.RecordID, &op, &oldValue, &newValue, &e.ExecutedAt, &e.Actor, &e.RunID, &change); err != nil {
		return nil, err
	}
	e.Operation = model.OpKind(op)
	if len(oldValue) > 0 {
		e.OldValue = json.RawMessage(oldValue)
	}
	e.NewValue = json.RawMessage(newValue)
	if len(change) > 0 {
		e.Op = json.RawMessage(change)
	}
	return &e, nil
}

func leaderColumn(role model.Role) (string, error) {
	switch role {
	case model.RoleChair:
		return "chair_member_id", nil
	case model.RoleRanking:
		return "ranking_member_id", nil
	default:
		return "", eris.Errorf("store: %q is not a leadership role", role)
	}
}

func splitColumns(columns string) []string {
	parts := strings.Split(columns, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// nullJSON stores empty JSON as NULL.
func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func listLimit(n int) int {
	if n <= 0 {
		return 50
	}
	return n
}
