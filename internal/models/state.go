package models

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// StateVersion is the current checkpoint format version.
const StateVersion = 1

var (
	ErrDuplicatePath = errors.New("path already processed")
	ErrSequenceGap   = errors.New("sequence index out of order")
)

// ScanState is the durable checkpoint for one target directory.
// The set of processed paths is derived from Records, so the two can never
// disagree.
type ScanState struct {
	Version    int              `json:"version"`
	RunID      string           `json:"runId"`
	RootPath   string           `json:"rootPath"`
	Extensions []string         `json:"extensions"`
	Model      string           `json:"model"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
	Records    []AnalysisRecord `json:"records"`

	processed map[string]struct{}
}

// NewScanState starts an empty checkpoint for rootPath.
func NewScanState(rootPath string, extensions []string, model string) *ScanState {
	now := time.Now().UTC()
	exts := slices.Clone(extensions)
	slices.Sort(exts)
	exts = slices.Compact(exts)

	return &ScanState{
		Version:    StateVersion,
		RunID:      uuid.NewString(),
		RootPath:   rootPath,
		Extensions: exts,
		Model:      model,
		CreatedAt:  now,
		UpdatedAt:  now,
		Records:    []AnalysisRecord{},
		processed:  map[string]struct{}{},
	}
}

// Reindex rebuilds the processed-path index from Records and checks the
// record invariants. It must be called after decoding a state.
func (s *ScanState) Reindex() error {
	s.processed = make(map[string]struct{}, len(s.Records))
	if s.Records == nil {
		s.Records = []AnalysisRecord{}
	}
	for i, rec := range s.Records {
		if rec.SequenceIndex != i {
			return fmt.Errorf("%w: record %d has index %d", ErrSequenceGap, i, rec.SequenceIndex)
		}
		if _, dup := s.processed[rec.Path]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicatePath, rec.Path)
		}
		s.processed[rec.Path] = struct{}{}
	}

	return nil
}

// IsProcessed reports whether path already has a record.
func (s *ScanState) IsProcessed(path string) bool {
	if s.processed == nil {
		_ = s.Reindex()
	}
	_, ok := s.processed[path]

	return ok
}

// NextIndex is the sequence index the next record must carry.
func (s *ScanState) NextIndex() int {
	return len(s.Records)
}

// Append adds rec, enforcing uniqueness of paths and gap-free sequence indexes.
func (s *ScanState) Append(rec AnalysisRecord) error {
	if s.IsProcessed(rec.Path) {
		return fmt.Errorf("%w: %s", ErrDuplicatePath, rec.Path)
	}
	if rec.SequenceIndex != s.NextIndex() {
		return fmt.Errorf("%w: want %d, got %d", ErrSequenceGap, s.NextIndex(), rec.SequenceIndex)
	}

	s.Records = append(s.Records, rec)
	s.processed[rec.Path] = struct{}{}
	s.UpdatedAt = time.Now().UTC()

	return nil
}

// ProcessedPaths returns the processed paths in analysis order.
func (s *ScanState) ProcessedPaths() []string {
	paths := make([]string, len(s.Records))
	for i, rec := range s.Records {
		paths[i] = rec.Path
	}

	return paths
}

// FailedCount returns the number of failure-note records.
func (s *ScanState) FailedCount() int {
	n := 0
	for _, rec := range s.Records {
		if rec.Failed {
			n++
		}
	}

	return n
}

// SameExtensions reports whether exts is the filter this state was built with.
func (s *ScanState) SameExtensions(exts []string) bool {
	sorted := slices.Clone(exts)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	return slices.Equal(sorted, s.Extensions)
}
