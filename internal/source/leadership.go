package source

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/congress-cli/internal/model"
)

type leadershipDoc struct {
	Source     string          `json:"source"`
	ScrapedAt  string          `json:"scraped_at"`
	Committees []leadershipRow `json:"committees"`
}

type leadershipRow struct {
	Name              string `json:"name"`
	Chamber           string `json:"chamber"`
	Chair             string `json:"chair"`
	RankingMember     string `json:"ranking_member"`
	ViceChair         string `json:"vice_chair"`
	ViceRankingMember string `json:"vice_ranking_member"`
}

// parseLeadership emits up to four records per committee row, all sharing the
// row's source id so paired rejections can be traced back.
func parseLeadership(doc *Document, data []byte) error {
	var in leadershipDoc
	if err := decodeStrict(data, &in); err != nil {
		return err
	}
	if in.Source != "" {
		doc.Source = in.Source
	}
	doc.ScrapedAt = parseScrapedAt(in.ScrapedAt, doc.ScrapedAt)

	index := 0
	for row, c := range in.Committees {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return eris.Errorf("row %d: committee name is required", row+1)
		}
		chamber, err := requireChamber(c.Chamber, row, true)
		if err != nil {
			return err
		}
		slots := []struct {
			person string
			role   model.Role
			title  string
		}{
			{c.Chair, model.RoleChair, "chair"},
			{c.RankingMember, model.RoleRanking, "ranking_member"},
			{c.ViceChair, model.RoleMember, "vice_chair"},
			{c.ViceRankingMember, model.RoleMember, "vice_ranking_member"},
		}
		for _, s := range slots {
			person := strings.TrimSpace(s.person)
			if person == "" {
				continue
			}
			doc.Records = append(doc.Records, model.SourceRecord{
				SourceID:  sourceID(doc.Path, row),
				Index:     index,
				Committee: name,
				Chamber:   chamber,
				Role:      s.role,
				Title:     s.title,
				Person:    person,
			})
			index++
		}
	}
	return nil
}
