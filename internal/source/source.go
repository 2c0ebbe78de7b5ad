// Package source reads leadership tables, rosters and editorial assignment
// files and flattens them into SourceRecords.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/congress-cli/internal/model"
	"github.com/sells-group/congress-cli/internal/normalize"
)

// Kind is the shape of a source document.
type Kind string

// Source kinds.
const (
	KindLeadership Kind = "leadership"
	KindRoster     Kind = "roster"
	KindEditorial  Kind = "editorial"
)

// DefaultPriorities rank curated input above scraped leadership tables and
// scraped leadership above generic rosters.
var DefaultPriorities = map[string]int{
	string(KindEditorial):  300,
	string(KindLeadership): 200,
	string(KindRoster):     100,
}

// Document is one parsed source file.
type Document struct {
	Path      string               `json:"path"`
	Kind      Kind                 `json:"kind"`
	Source    string               `json:"source"`
	ScrapedAt time.Time            `json:"scraped_at"`
	Records   []model.SourceRecord `json:"records"`
	Hints     []Hint               `json:"hints,omitempty"`
}

// Batch is every document of a run in argument order.
type Batch struct {
	Documents []*Document
	Records   []model.SourceRecord
	Hints     []Hint
}

// Options configures loading.
type Options struct {
	// Priorities maps source names (or kinds) to tie-break weight.
	Priorities map[string]int
	// Concurrency bounds parallel file parsing. Zero means one goroutine per file.
	Concurrency int
}

// Load parses every path concurrently and returns records in argument order,
// then row order. Any malformed file aborts the whole load.
func Load(ctx context.Context, paths []string, opts Options) (*Batch, error) {
	if len(paths) == 0 {
		return nil, model.NewKindError(model.KindSourceMalformed, "source: no source files given")
	}
	log := zap.L().With(zap.String("component", "source"))

	docs := make([]*Document, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := LoadFile(path)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	b := &Batch{Documents: docs}
	for _, doc := range docs {
		prio := priorityFor(opts.Priorities, doc)
		for i := range doc.Records {
			doc.Records[i].Priority = prio
		}
		b.Records = append(b.Records, doc.Records...)
		b.Hints = append(b.Hints, doc.Hints...)
		log.Info("source loaded",
			zap.String("path", doc.Path),
			zap.String("kind", string(doc.Kind)),
			zap.String("source", doc.Source),
			zap.Int("priority", prio),
			zap.Int("records", len(doc.Records)),
		)
	}
	if n := ApplyHints(b.Records, b.Hints); n > 0 {
		log.Debug("roster hints applied", zap.Int("records", n))
	}
	return b, nil
}

// LoadFile reads and parses a single source file.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WithKind(model.KindSourceMalformed, eris.Wrapf(err, "source: read %s", path))
	}
	kind, err := DetectKind(path, data)
	if err != nil {
		return nil, err
	}
	doc := &Document{Path: path, Kind: kind, Source: string(kind)}
	if info, statErr := os.Stat(path); statErr == nil {
		doc.ScrapedAt = info.ModTime().UTC()
	}

	switch kind {
	case KindLeadership:
		err = parseLeadership(doc, data)
	case KindRoster:
		err = parseRoster(doc, data)
	default:
		err = parseEditorial(doc, data)
	}
	if err != nil {
		return nil, model.WithKind(model.KindSourceMalformed, eris.Wrapf(err, "source: parse %s", path))
	}
	for i := range doc.Records {
		doc.Records[i].Source = doc.Source
		doc.Records[i].ScrapedAt = doc.ScrapedAt
	}
	return doc, nil
}

// DetectKind infers the document shape from the file extension and, for
// JSON, the top-level key.
func DetectKind(path string, data []byte) (Kind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".yaml", ".yml":
		return KindEditorial, nil
	case ".json":
		var top map[string]json.RawMessage
		if err := json.Unmarshal(data, &top); err != nil {
			return "", model.WithKind(model.KindSourceMalformed, eris.Wrapf(err, "source: decode %s", path))
		}
		switch {
		case top["committees"] != nil:
			return KindLeadership, nil
		case top["members"] != nil:
			return KindRoster, nil
		case top["assignments"] != nil:
			return KindEditorial, nil
		}
		return "", model.NewKindError(model.KindSourceMalformed,
			"source: %s has none of the keys committees, members, assignments", path)
	}
	return "", model.NewKindError(model.KindSourceMalformed, "source: unsupported file type %s", path)
}

// ParsePriorities parses "name:prio,name:prio" into a map.
func ParsePriorities(spec string) (map[string]int, error) {
	out := make(map[string]int)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, eris.Errorf("source: invalid priority %q, want name:prio", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, eris.Wrapf(err, "source: invalid priority value in %q", part)
		}
		out[strings.TrimSpace(name)] = n
	}
	return out, nil
}

func priorityFor(custom map[string]int, doc *Document) int {
	for _, key := range []string{doc.Source, string(doc.Kind)} {
		if p, ok := custom[key]; ok {
			return p
		}
	}
	for _, key := range []string{doc.Source, string(doc.Kind)} {
		if p, ok := DefaultPriorities[key]; ok {
			return p
		}
	}
	return 0
}

// decodeStrict decodes JSON rejecting trailing data.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return eris.Wrap(err, "decode json")
	}
	if dec.More() {
		return eris.New("unexpected data after document")
	}
	return nil
}

// sourceID names a row by its file's cleaned path, so same-named files in
// different directories stay distinct.
func sourceID(path string, row int) string {
	return fmt.Sprintf("%s#%04d", filepath.Clean(path), row+1)
}

func requireChamber(raw string, row int, allowJoint bool) (model.Chamber, error) {
	c := normalize.Chamber(raw)
	if c == "" {
		return "", eris.Errorf("row %d: unknown chamber %q", row+1, raw)
	}
	if c == model.ChamberJoint && !allowJoint {
		return "", eris.Errorf("row %d: chamber Joint is not valid for a member", row+1)
	}
	return c, nil
}

func parseScrapedAt(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return fallback
}

// SortRecords orders records for processing: priority desc, source id asc,
// index asc.
func SortRecords(records []model.SourceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		return a.Index < b.Index
	})
}
