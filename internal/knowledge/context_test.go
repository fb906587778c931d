package knowledge

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"sourcescan/internal/models"
)

func rec(i int, path, text string) models.AnalysisRecord {
	return models.AnalysisRecord{Path: path, AnalysisText: text, SequenceIndex: i}
}

func TestSummary_OldestFirst(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator(nil)
	acc.Append(rec(0, "a.py", "parses input"))
	acc.Append(rec(1, "b.cpp", "renders output"))

	summary := acc.Summary(0)

	assert.Equal(t, "### a.py\nparses input\n\n### b.cpp\nrenders output", summary)
}

func TestSummary_SkipsFailed(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator([]models.AnalysisRecord{rec(0, "a.py", "good")})
	failed := rec(1, "b.py", "[analysis failed]")
	failed.Failed = true
	acc.Append(failed)

	assert.Equal(t, "### a.py\ngood", acc.Summary(0))
	assert.Equal(t, 2, acc.Len())
}

func TestSummary_TruncatesOldest(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator(nil)
	acc.Append(rec(0, "old.py", strings.Repeat("o", 40)))
	acc.Append(rec(1, "mid.py", strings.Repeat("m", 40)))
	acc.Append(rec(2, "new.py", strings.Repeat("n", 40)))

	// Each block is len("### old.py\n") + 40 + 2 = 53 characters.
	summary := acc.Summary(110)

	assert.NotContains(t, summary, "old.py")
	assert.Contains(t, summary, "### mid.py\n"+strings.Repeat("m", 40))
	assert.Contains(t, summary, "### new.py\n"+strings.Repeat("n", 40))
	assert.LessOrEqual(t, utf8.RuneCountInString(summary), 110)
}

func TestSummary_NewestTooLong(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator(nil)
	acc.Append(rec(0, "a.py", "short"))
	acc.Append(rec(1, "huge.py", strings.Repeat("x", 100)+"END"))

	summary := acc.Summary(20)

	assert.LessOrEqual(t, utf8.RuneCountInString(summary), 20)
	assert.True(t, strings.HasSuffix(summary, "END"))
}

func TestSummary_LimitCountsCharacters(t *testing.T) {
	t.Parallel()

	// "### a.py\n" + 20 two-byte runes + "\n\n": 31 characters, 51 bytes.
	acc := NewAccumulator([]models.AnalysisRecord{rec(0, "a.py", strings.Repeat("é", 20))})

	assert.Equal(t, "### a.py\n"+strings.Repeat("é", 20), acc.Summary(31))

	// The last 10 characters are 8 runes of text and the trailing blank line.
	tail := acc.Summary(10)
	assert.True(t, utf8.ValidString(tail))
	assert.Equal(t, strings.Repeat("é", 8), tail)
}

func TestSummary_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, NewAccumulator(nil).Summary(100))
}

func TestRecords_IsCopy(t *testing.T) {
	t.Parallel()

	seed := []models.AnalysisRecord{rec(0, "a.py", "x")}
	acc := NewAccumulator(seed)
	seed[0].Path = "changed"

	got := acc.Records()
	got[0].AnalysisText = "mutated"

	assert.Equal(t, "a.py", acc.Records()[0].Path)
	assert.Equal(t, "x", acc.Records()[0].AnalysisText)
}
