// Package report renders accumulated analyses as an HTML document and as a
// console table.
package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"sourcescan/internal/models"
)

// DefaultAssetsHost serves the echarts script referenced by the report.
const DefaultAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

const styleTagLen = len("</style>")

//go:embed templates/report.html
var reportTemplate string

var pageTemplate = template.Must(template.New("report").Parse(reportTemplate))

// Meta describes the scan a report is rendered for.
type Meta struct {
	Title     string
	RootPath  string
	Model     string
	Research  string
	Generated time.Time
}

type recordView struct {
	Path          string
	SequenceIndex int
	Model         string
	Duration      string
	Failed        bool
	Text          string
}

type pageData struct {
	Title      string
	AssetsHost string
	RootPath   string
	Model      string
	Research   string
	Generated  string
	Total      int
	Failed     int
	TotalTime  string
	Chart      template.HTML
	Records    []recordView
}

// Render builds a standalone HTML document from records, in their sequence
// order. It has no side effects.
func Render(records []models.AnalysisRecord, meta Meta) (string, error) {
	if meta.Title == "" {
		meta.Title = "Source analysis report"
	}
	if meta.Generated.IsZero() {
		meta.Generated = time.Now()
	}

	data := pageData{
		Title:      meta.Title,
		AssetsHost: DefaultAssetsHost,
		RootPath:   meta.RootPath,
		Model:      meta.Model,
		Research:   meta.Research,
		Generated:  meta.Generated.Format(time.RFC1123),
		Total:      len(records),
		Records:    make([]recordView, 0, len(records)),
	}

	var total time.Duration
	for _, rec := range records {
		total += rec.Duration()
		if rec.Failed {
			data.Failed++
		}

		view := recordView{
			Path:          rec.Path,
			SequenceIndex: rec.SequenceIndex,
			Model:         rec.Model,
			Failed:        rec.Failed,
			Text:          rec.AnalysisText,
		}
		if rec.DurationMs > 0 {
			view.Duration = rec.Duration().Round(time.Millisecond).String()
		}
		data.Records = append(data.Records, view)
	}
	data.TotalTime = total.Round(time.Second).String()

	chart, err := durationChart(records)
	if err != nil {
		return "", err
	}
	data.Chart = template.HTML(chart)

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}

	return buf.String(), nil
}

// durationChart renders a bar chart of per-file analysis time. It returns an
// empty string when no record was timed.
func durationChart(records []models.AnalysisRecord) (string, error) {
	labels := make([]string, 0, len(records))
	values := make([]opts.BarData, 0, len(records))

	for _, rec := range records {
		if rec.DurationMs <= 0 {
			continue
		}
		labels = append(labels, rec.Path)
		values = append(values, opts.BarData{Name: rec.Path, Value: rec.Duration().Seconds()})
	}

	if len(values) == 0 {
		return "", nil
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px", AssetsHost: DefaultAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Analysis time per file", Subtitle: "seconds"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 30}}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	bar.SetXAxis(labels).AddSeries("seconds", values)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		return "", fmt.Errorf("render chart: %w", err)
	}

	return extractChartContent(buf.String()), nil
}

// extractChartContent keeps the chart container and its script from a full
// go-echarts page.
func extractChartContent(html string) string {
	start := strings.Index(html, `<div class="container">`)
	if start == -1 {
		return html
	}

	end := strings.Index(html, `</body>`)
	if end == -1 {
		return html
	}

	content := html[start:end]
	content = strings.ReplaceAll(content, `class="container"`, `class="echart-box"`)

	return removeStyleTags(content)
}

func removeStyleTags(content string) string {
	for {
		i := strings.Index(content, `<style>`)
		if i == -1 {
			return content
		}

		j := strings.Index(content[i:], `</style>`)
		if j == -1 {
			return content
		}

		content = content[:i] + content[i+j+styleTagLen:]
	}
}
