package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanState_Append(t *testing.T) {
	t.Parallel()

	st := NewScanState("/src", []string{".py", ".cpp"}, "llama3")
	require.NotEmpty(t, st.RunID)
	assert.Equal(t, []string{".cpp", ".py"}, st.Extensions)

	require.NoError(t, st.Append(AnalysisRecord{Path: "a.py", AnalysisText: "A", SequenceIndex: 0}))
	require.NoError(t, st.Append(AnalysisRecord{Path: "b.cpp", AnalysisText: "B", SequenceIndex: 1}))

	assert.True(t, st.IsProcessed("a.py"))
	assert.False(t, st.IsProcessed("c.txt"))
	assert.Equal(t, []string{"a.py", "b.cpp"}, st.ProcessedPaths())
	assert.Equal(t, 2, st.NextIndex())

	err := st.Append(AnalysisRecord{Path: "a.py", SequenceIndex: 2})
	require.ErrorIs(t, err, ErrDuplicatePath)

	err = st.Append(AnalysisRecord{Path: "c.py", SequenceIndex: 5})
	require.ErrorIs(t, err, ErrSequenceGap)
	assert.Len(t, st.Records, 2)
}

func TestScanState_Reindex(t *testing.T) {
	t.Parallel()

	st := &ScanState{Records: []AnalysisRecord{
		{Path: "a.py", SequenceIndex: 0},
		{Path: "b.py", SequenceIndex: 1},
	}}
	require.NoError(t, st.Reindex())
	assert.True(t, st.IsProcessed("b.py"))

	gap := &ScanState{Records: []AnalysisRecord{{Path: "a.py", SequenceIndex: 1}}}
	assert.ErrorIs(t, gap.Reindex(), ErrSequenceGap)

	dup := &ScanState{Records: []AnalysisRecord{
		{Path: "a.py", SequenceIndex: 0},
		{Path: "a.py", SequenceIndex: 1},
	}}
	assert.ErrorIs(t, dup.Reindex(), ErrDuplicatePath)
}

func TestScanState_SameExtensions(t *testing.T) {
	t.Parallel()

	st := NewScanState("/src", []string{".py", ".cpp"}, "m")

	assert.True(t, st.SameExtensions([]string{".cpp", ".py"}))
	assert.True(t, st.SameExtensions([]string{".py", ".cpp", ".py"}))
	assert.False(t, st.SameExtensions([]string{".py"}))
	assert.False(t, st.SameExtensions([]string{".py", ".cpp", ".h"}))
}

func TestScanState_FailedCount(t *testing.T) {
	t.Parallel()

	st := NewScanState("/src", []string{".py"}, "m")
	require.NoError(t, st.Append(AnalysisRecord{Path: "a.py", SequenceIndex: 0}))
	require.NoError(t, st.Append(AnalysisRecord{Path: "b.py", SequenceIndex: 1, Failed: true}))

	assert.Equal(t, 1, st.FailedCount())
}
