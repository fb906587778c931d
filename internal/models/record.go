package models

import "time"

// AnalysisRecord is one processed file. Records are never modified after
// they are appended to a ScanState.
type AnalysisRecord struct {
	Path          string `json:"path"`
	AnalysisText  string `json:"analysisText"`
	SequenceIndex int    `json:"sequenceIndex"`
	Model         string `json:"model,omitempty"`
	DurationMs    int64  `json:"durationMs,omitempty"`
	// Failed records carry a failure note in AnalysisText instead of model output.
	Failed bool `json:"failed,omitempty"`
}

// Duration returns how long the inference call took.
func (r AnalysisRecord) Duration() time.Duration {
	return time.Duration(r.DurationMs) * time.Millisecond
}
