package baseline

import (
	"fmt"
	"time"

	"github.com/IvanShishkin/tamperhound/internal/hasher"
	"github.com/IvanShishkin/tamperhound/pkg/models"
)

// DocumentVersion is the current baseline document version
const DocumentVersion = 1

// Document is the persisted form of a baseline
type Document struct {
	Version   int             `yaml:"version" json:"version"`
	Algorithm string          `yaml:"algorithm,omitempty" json:"algorithm,omitempty"` // default for entries without one
	Created   *time.Time      `yaml:"created,omitempty" json:"created,omitempty"`
	Entries   []DocumentEntry `yaml:"entries" json:"entries"`
}

// DocumentEntry is one persisted baseline record
type DocumentEntry struct {
	Path       string     `yaml:"path" json:"path"`
	Digest     string     `yaml:"digest" json:"digest"` // hex encoded
	Algorithm  string     `yaml:"algorithm,omitempty" json:"algorithm,omitempty"`
	RecordedAt *time.Time `yaml:"recorded_at,omitempty" json:"recorded_at,omitempty"`
	Size       int64      `yaml:"size,omitempty" json:"size,omitempty"`
}

// Baseline converts the document into a validated snapshot
func (d *Document) Baseline() (*models.Baseline, error) {
	if d.Version > DocumentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, d.Version)
	}

	defaultAlgorithm := d.Algorithm
	if defaultAlgorithm == "" {
		defaultAlgorithm = hasher.Default
	}

	entries := make([]models.BaselineEntry, 0, len(d.Entries))
	for i, e := range d.Entries {
		digest, err := models.ParseDigest(e.Digest)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, e.Path, err)
		}
		algorithm := e.Algorithm
		if algorithm == "" {
			algorithm = defaultAlgorithm
		}
		entries = append(entries, models.BaselineEntry{
			Path:       e.Path,
			Digest:     digest,
			Algorithm:  algorithm,
			RecordedAt: e.RecordedAt,
			Size:       e.Size,
		})
	}

	return Build(entries)
}

// NewDocument converts entries into a document using a shared default algorithm
func NewDocument(algorithm string, entries []models.BaselineEntry, created time.Time) *Document {
	doc := &Document{
		Version:   DocumentVersion,
		Algorithm: algorithm,
		Entries:   make([]DocumentEntry, 0, len(entries)),
	}
	if !created.IsZero() {
		doc.Created = &created
	}

	for _, e := range entries {
		entry := DocumentEntry{
			Path:       e.Path,
			Digest:     e.Digest.String(),
			RecordedAt: e.RecordedAt,
			Size:       e.Size,
		}
		if e.Algorithm != algorithm {
			entry.Algorithm = e.Algorithm
		}
		doc.Entries = append(doc.Entries, entry)
	}
	return doc
}
