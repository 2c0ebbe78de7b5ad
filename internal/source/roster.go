package source

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/congress-cli/internal/model"
	"github.com/sells-group/congress-cli/internal/normalize"
)

type rosterDoc struct {
	Source    string      `json:"source"`
	ScrapedAt string      `json:"scraped_at"`
	Members   []rosterRow `json:"members"`
}

type rosterRow struct {
	Name      string `json:"name"`
	Chamber   string `json:"chamber"`
	State     string `json:"state"`
	Party     string `json:"party"`
	District  string `json:"district"`
	Class     string `json:"class"`
	Committee string `json:"committee"`
	Role      string `json:"role"`
}

// parseRoster emits a hint for every row and a record for rows naming a
// committee. The row's chamber is the member's own chamber.
func parseRoster(doc *Document, data []byte) error {
	var in rosterDoc
	if err := decodeStrict(data, &in); err != nil {
		return err
	}
	if in.Source != "" {
		doc.Source = in.Source
	}
	doc.ScrapedAt = parseScrapedAt(in.ScrapedAt, doc.ScrapedAt)

	for row, m := range in.Members {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return eris.Errorf("row %d: member name is required", row+1)
		}
		chamber, err := requireChamber(m.Chamber, row, false)
		if err != nil {
			return err
		}
		doc.Hints = append(doc.Hints, Hint{
			SourceID: sourceID(doc.Path, row),
			Name:     name,
			Chamber:  chamber,
			State:    strings.TrimSpace(m.State),
			Party:    normalize.Party(m.Party),
			District: strings.TrimSpace(m.District),
		})

		committee := strings.TrimSpace(m.Committee)
		if committee == "" {
			continue
		}
		role, ok := normalize.Role(m.Role)
		if !ok {
			return eris.Errorf("row %d: unknown role %q", row+1, m.Role)
		}
		doc.Records = append(doc.Records, model.SourceRecord{
			SourceID:      sourceID(doc.Path, row),
			Index:         len(doc.Records),
			Committee:     committee,
			Chamber:       chamber,
			Role:          role,
			Title:         strings.TrimSpace(m.Role),
			Person:        name,
			State:         strings.TrimSpace(m.State),
			Party:         normalize.Party(m.Party),
			District:      strings.TrimSpace(m.District),
			MemberChamber: true,
		})
	}
	return nil
}
