package bundle

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/eal-scorer/internal/assess"
	"github.com/sells-group/eal-scorer/internal/corpus"
	"github.com/sells-group/eal-scorer/internal/model"
	"github.com/sells-group/eal-scorer/internal/scorer"
)

// Format is a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf returns the format implied by a file extension, or false for other files.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	}
	return "", false
}

// Decode reads one document in format f into v. JSON input may not carry unknown fields.
func Decode(r io.Reader, f Format, v any) error {
	switch f {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return eris.Wrap(err, "bundle: decode json")
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil {
			return eris.Wrap(err, "bundle: decode yaml")
		}
	default:
		return eris.Errorf("bundle: unknown format %q", f)
	}
	return nil
}

// ReadGoldFile reads a gold document.
func ReadGoldFile(path string) (*GoldDocument, error) {
	var g GoldDocument
	if err := readFile(path, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// ReadSystemFile reads a system document.
func ReadSystemFile(path string) (*SystemDocument, error) {
	var s SystemDocument
	if err := readFile(path, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func readFile(path string, v any) error {
	f, ok := FormatOf(path)
	if !ok {
		return eris.Errorf("bundle: %s: unsupported file extension", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "bundle: read %s", path)
	}
	if err := Decode(bytes.NewReader(data), f, v); err != nil {
		return eris.Wrapf(err, "bundle: %s", path)
	}
	return nil
}

// Corpus is a loaded set of document pairs.
type Corpus struct {
	Inputs []scorer.DocumentInput
	// Rejected holds gold documents that could not be converted into scorer input.
	Rejected []corpus.Failure
	// Orphans are system documents with no gold document.
	Orphans []model.DocumentID
	// MissingSystem are gold documents scored as empty system output.
	MissingSystem []model.DocumentID
	Repairs       assess.Report
}

// LoadCorpus reads every document file under goldDir and systemDir and pairs them by
// doc_id. Unreadable or duplicate files fail the load. A document whose content breaks a
// precondition is rejected on its own.
func LoadCorpus(goldDir, systemDir string, repair bool) (*Corpus, error) {
	golds, err := readDir(goldDir, ReadGoldFile, func(g *GoldDocument) model.DocumentID { return g.DocID })
	if err != nil {
		return nil, err
	}
	systems, err := readDir(systemDir, ReadSystemFile, func(s *SystemDocument) model.DocumentID { return s.DocID })
	if err != nil {
		return nil, err
	}

	c := &Corpus{}
	for _, id := range sortedIDs(golds) {
		sys := systems[id]
		if sys == nil {
			c.MissingSystem = append(c.MissingSystem, id)
		}
		in, rep, err := Input(golds[id], sys, repair)
		if err != nil {
			c.Rejected = append(c.Rejected, corpus.Failure{DocID: id, Err: err})
			continue
		}
		c.Repairs = c.Repairs.Merge(rep)
		c.Inputs = append(c.Inputs, in)
	}
	for _, id := range sortedIDs(systems) {
		if golds[id] == nil {
			c.Orphans = append(c.Orphans, id)
		}
	}

	log := zap.L().With(zap.String("gold_dir", goldDir), zap.String("system_dir", systemDir))
	if len(c.Orphans) > 0 {
		log.Warn("system documents without gold skipped", zap.Int("count", len(c.Orphans)), zap.Any("doc_ids", c.Orphans))
	}
	if len(c.MissingSystem) > 0 {
		log.Warn("gold documents without system output", zap.Int("count", len(c.MissingSystem)))
	}
	if !c.Repairs.Empty() {
		counts := c.Repairs.Counts()
		log.Warn("repaired judgments",
			zap.Int("missing_filled", counts[model.ViolationMissing]),
			zap.Int("extra_dropped", counts[model.ViolationExtra]),
		)
	}
	log.Info("corpus loaded",
		zap.Int("documents", len(c.Inputs)),
		zap.Int("rejected", len(c.Rejected)),
	)
	return c, nil
}

func readDir[T any](dir string, read func(string) (*T, error), id func(*T) model.DocumentID) (map[model.DocumentID]*T, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "bundle: read dir %s", dir)
	}
	out := make(map[model.DocumentID]*T)
	seen := make(map[model.DocumentID]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := FormatOf(e.Name()); !ok {
			continue
		}
		path := filepath.Join(dir, e.Name())
		doc, err := read(path)
		if err != nil {
			return nil, err
		}
		docID := id(doc)
		if docID == "" {
			return nil, eris.Errorf("bundle: %s: missing doc_id", path)
		}
		if prev, ok := seen[docID]; ok {
			return nil, eris.Errorf("bundle: doc %s defined in both %s and %s", docID, prev, path)
		}
		seen[docID] = path
		out[docID] = doc
	}
	return out, nil
}

func sortedIDs[T any](m map[model.DocumentID]*T) []model.DocumentID {
	ids := make([]model.DocumentID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
