// Package knowledge accumulates the analyses of a run and turns them into
// the context fed to later prompts.
package knowledge

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"sourcescan/internal/models"
)

// Accumulator is the ordered log of analyses produced so far.
type Accumulator struct {
	records []models.AnalysisRecord
}

// NewAccumulator starts an accumulator, seeded with records from a resumed
// checkpoint.
func NewAccumulator(seed []models.AnalysisRecord) *Accumulator {
	records := make([]models.AnalysisRecord, len(seed))
	copy(records, seed)

	return &Accumulator{records: records}
}

// Append adds rec to the end of the log.
func (a *Accumulator) Append(rec models.AnalysisRecord) {
	a.records = append(a.records, rec)
}

// Len returns the number of records, failed ones included.
func (a *Accumulator) Len() int {
	return len(a.records)
}

// Records returns a copy of the log, oldest first.
func (a *Accumulator) Records() []models.AnalysisRecord {
	out := make([]models.AnalysisRecord, len(a.records))
	copy(out, a.records)

	return out
}

func block(rec models.AnalysisRecord) string {
	return fmt.Sprintf("### %s\n%s\n\n", rec.Path, strings.TrimSpace(rec.AnalysisText))
}

// Summary renders the successful analyses, oldest first. With maxLength > 0
// whole records are dropped from the oldest end until the rest fits in
// maxLength characters; if the newest record alone is too long, only its
// last maxLength characters are kept.
func (a *Accumulator) Summary(maxLength int) string {
	blocks := make([]string, 0, len(a.records))
	for _, rec := range a.records {
		if rec.Failed {
			continue
		}
		blocks = append(blocks, block(rec))
	}

	if maxLength <= 0 {
		return strings.TrimSpace(strings.Join(blocks, ""))
	}

	total := 0
	start := len(blocks)
	for i := len(blocks) - 1; i >= 0; i-- {
		n := utf8.RuneCountInString(blocks[i])
		if total+n > maxLength {
			break
		}
		total += n
		start = i
	}

	if start == len(blocks) && len(blocks) > 0 {
		newest := []rune(blocks[len(blocks)-1])
		logrus.Debugf("Newest analysis (%d chars) exceeds the context limit of %d; keeping its tail.", len(newest), maxLength)

		return strings.TrimSpace(string(newest[len(newest)-maxLength:]))
	}

	if start > 0 {
		logrus.Debugf("Context limit %d reached: omitting the %d oldest analyses.", maxLength, start)
	}

	return strings.TrimSpace(strings.Join(blocks[start:], ""))
}
