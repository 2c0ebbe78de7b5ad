package source

import (
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/congress-cli/internal/model"
	"github.com/sells-group/congress-cli/internal/normalize"
)

type editorialDoc struct {
	Source      string         `json:"source" yaml:"source"`
	ScrapedAt   string         `json:"scraped_at" yaml:"scraped_at"`
	Assignments []editorialRow `json:"assignments" yaml:"assignments"`
}

type editorialRow struct {
	Committee  string `csv:"committee" json:"committee" yaml:"committee"`
	Chamber    string `csv:"chamber" json:"chamber" yaml:"chamber"`
	Member     string `csv:"member" json:"member" yaml:"member"`
	Role       string `csv:"role,omitempty" json:"role" yaml:"role"`
	State      string `csv:"state,omitempty" json:"state" yaml:"state"`
	Party      string `csv:"party,omitempty" json:"party" yaml:"party"`
	BioguideID string `csv:"bioguide_id,omitempty" json:"bioguide_id" yaml:"bioguide_id"`
}

// parseEditorial reads curated assignments from CSV, JSON or YAML. Editorial
// records are authoritative for the committees they name.
func parseEditorial(doc *Document, data []byte) error {
	var in editorialDoc
	switch strings.ToLower(filepath.Ext(doc.Path)) {
	case ".csv":
		if err := csvutil.Unmarshal(data, &in.Assignments); err != nil {
			return eris.Wrap(err, "decode csv")
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &in); err != nil {
			return eris.Wrap(err, "decode yaml")
		}
	default:
		if err := decodeStrict(data, &in); err != nil {
			return err
		}
	}
	if in.Source != "" {
		doc.Source = in.Source
	}
	doc.ScrapedAt = parseScrapedAt(in.ScrapedAt, doc.ScrapedAt)

	for row, a := range in.Assignments {
		committee := strings.TrimSpace(a.Committee)
		member := strings.TrimSpace(a.Member)
		if committee == "" || member == "" {
			return eris.Errorf("row %d: committee and member are required", row+1)
		}
		chamber, err := requireChamber(a.Chamber, row, true)
		if err != nil {
			return err
		}
		role, ok := normalize.Role(a.Role)
		if !ok {
			return eris.Errorf("row %d: unknown role %q", row+1, a.Role)
		}
		doc.Records = append(doc.Records, model.SourceRecord{
			SourceID:      sourceID(doc.Path, row),
			Index:         row,
			Committee:     committee,
			Chamber:       chamber,
			Role:          role,
			Title:         strings.TrimSpace(a.Role),
			Person:        member,
			State:         strings.TrimSpace(a.State),
			Party:         normalize.Party(a.Party),
			BioguideID:    strings.TrimSpace(a.BioguideID),
			Authoritative: true,
		})
	}
	return nil
}
