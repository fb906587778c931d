package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"sourcescan/internal/models"
)

const previewWidth = 60

// SummaryTable renders records as a console table: one row per file with its
// status, timing and the first line of its analysis.
func SummaryTable(records []models.AnalysisRecord) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	tbl.AppendHeader(table.Row{"#", "File", "Status", "Time", "Model", "Analysis"})

	var total time.Duration
	failed := 0
	for _, rec := range records {
		status := "ok"
		if rec.Failed {
			status = "failed"
			failed++
		}
		total += rec.Duration()

		tbl.AppendRow(table.Row{
			rec.SequenceIndex,
			rec.Path,
			status,
			rec.Duration().Round(time.Millisecond).String(),
			rec.Model,
			preview(rec.AnalysisText),
		})
	}

	tbl.AppendFooter(table.Row{"", fmt.Sprintf("Total: %d files", len(records)), fmt.Sprintf("%d failed", failed), total.Round(time.Second).String()})

	return tbl.Render()
}

// preview returns the first non-empty line of text, shortened to previewWidth runes.
func preview(text string) string {
	line := ""
	for l := range strings.Lines(text) {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}

	runes := []rune(line)
	if len(runes) > previewWidth {
		return string(runes[:previewWidth-1]) + "…"
	}

	return line
}
