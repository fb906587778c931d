// Package engine drives a resumable scan: it enumerates files, sends each
// one for analysis with the context gathered so far, and checkpoints after
// every file.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"sourcescan/internal/files"
	"sourcescan/internal/knowledge"
	"sourcescan/internal/llm"
	"sourcescan/internal/models"
	"sourcescan/internal/state"
)

// ErrInterrupted is returned when a run stops before all files were
// processed. The checkpoint holds every file completed before the stop.
var ErrInterrupted = errors.New("scan interrupted")

// Store is the checkpoint storage the engine needs.
type Store interface {
	Exists(rootPath string) bool
	Load(rootPath string) (*models.ScanState, error)
	Save(st *models.ScanState) error
	Clear(rootPath string) error
}

// Analyzer produces the analysis of one file.
type Analyzer interface {
	AnalyzeFile(ctx context.Context, path, content, contextSummary, question string) (string, error)
	Model() string
}

// Options configures a scan.
type Options struct {
	// Root is the absolute directory to scan.
	Root             string
	Extensions       []string
	IgnoreDirs       []string
	Research         string
	MaxContextLength int
	MaxFileReadSize  int64
}

// Run is the state of one invocation. It is created by Prepare and threaded
// through every Step.
type Run struct {
	State    *models.ScanState
	Context  *knowledge.Accumulator
	Resumed  bool
	Progress *Progress
}

// Summary reports what Execute did.
type Summary struct {
	Analyzed int
	Failed   int
	Skipped  int
	Elapsed  time.Duration
}

// Engine orchestrates the analysis loop.
type Engine struct {
	analyzer Analyzer
	store    Store
	decider  Decider
	out      io.Writer
	opts     Options
}

// New creates an Engine. Operator-facing output is written to out.
func New(analyzer Analyzer, store Store, decider Decider, out io.Writer, opts Options) *Engine {
	return &Engine{
		analyzer: analyzer,
		store:    store,
		decider:  decider,
		out:      out,
		opts:     opts,
	}
}

// Prepare loads or creates the ScanState for the root directory, asking the
// decider whether to resume when a usable checkpoint exists.
func (e *Engine) Prepare(ctx context.Context) (*Run, error) {
	fresh := func() *Run {
		st := models.NewScanState(e.opts.Root, e.opts.Extensions, e.analyzer.Model())
		logrus.WithField("run", st.RunID).Debugf("Starting a new checkpoint for %s", e.opts.Root)

		return &Run{State: st, Context: knowledge.NewAccumulator(nil)}
	}

	if !e.store.Exists(e.opts.Root) {
		return fresh(), nil
	}

	st, err := e.store.Load(e.opts.Root)
	if err != nil {
		logrus.Warnf("Ignoring unreadable checkpoint for %s: %v", e.opts.Root, err)
		return fresh(), nil
	}

	if !st.SameExtensions(e.opts.Extensions) {
		logrus.Warnf("Checkpoint for %s was built for extensions %v, not %v; starting over.",
			e.opts.Root, st.Extensions, e.opts.Extensions)
		return fresh(), nil
	}

	decision, err := e.decider.Decide(ctx, ResumeInfo{
		RootPath:  st.RootPath,
		Processed: len(st.Records),
		Model:     st.Model,
		UpdatedAt: st.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("resume prompt: %w", err)
	}

	if decision == Restart {
		if err := e.store.Clear(e.opts.Root); err != nil {
			return nil, err
		}
		logrus.Infof("Discarded previous checkpoint for %s", e.opts.Root)
		return fresh(), nil
	}

	if model := e.analyzer.Model(); st.Model != model {
		logrus.Warnf("Checkpoint results came from model '%s'; new results will come from '%s'. Records keep their own model name.",
			st.Model, model)
		st.Model = model
	}

	return &Run{
		State:   st,
		Context: knowledge.NewAccumulator(st.Records),
		Resumed: true,
	}, nil
}

// Execute analyses every file not yet in the checkpoint. It stops with
// ErrInterrupted on a connection failure or cancellation, and with a save
// error if the checkpoint cannot be written.
func (e *Engine) Execute(ctx context.Context, run *Run) (Summary, error) {
	started := time.Now()
	explorer := files.NewExplorer(e.opts.Root, e.opts.Extensions, e.opts.IgnoreDirs)

	pending := 0
	for path, err := range explorer.Files() {
		if err != nil {
			return Summary{}, err
		}
		if !run.State.IsProcessed(path) {
			pending++
		}
	}
	run.Progress = NewProgress(pending)

	if run.Resumed {
		fmt.Fprintf(e.out, "Resuming analysis for %d files in %s\n", pending, e.opts.Root)
	} else {
		fmt.Fprintf(e.out, "Starting new analysis for directory %s\n", e.opts.Root)
	}

	var summary Summary
	for path, err := range explorer.Files() {
		if err != nil {
			return summary, err
		}

		if run.State.IsProcessed(path) {
			logrus.Debugf("Skipping already analysed file %s", path)
			summary.Skipped++
			continue
		}

		if err := ctx.Err(); err != nil {
			summary.Elapsed = time.Since(started)
			return summary, fmt.Errorf("%w before %s: %w", ErrInterrupted, path, err)
		}

		rec, err := e.Step(ctx, run, path)
		if err != nil {
			summary.Elapsed = time.Since(started)
			return summary, err
		}

		summary.Analyzed++
		if rec.Failed {
			summary.Failed++
		}
	}

	summary.Elapsed = time.Since(started)

	return summary, nil
}

// Step analyses one file, appends the record to the run and saves the
// checkpoint. Per-file failures become failure-note records; connection
// failures return ErrInterrupted without touching the run.
func (e *Engine) Step(ctx context.Context, run *Run, path string) (models.AnalysisRecord, error) {
	if run.Progress == nil {
		run.Progress = NewProgress(1)
	}
	log := logrus.WithFields(logrus.Fields{"run": run.State.RunID, "file": path})

	absPath := filepath.Join(e.opts.Root, filepath.FromSlash(path))
	content, readErr := files.ReadFileContent(absPath, e.opts.MaxFileReadSize)

	fmt.Fprintln(e.out)
	fmt.Fprintf(e.out, "Analyzing: %s (%s) %d%%\n", path, humanize.Bytes(uint64(max(content.Size, 0))), run.Progress.Advance())

	rec := models.AnalysisRecord{
		Path:          path,
		SequenceIndex: run.State.NextIndex(),
		Model:         e.analyzer.Model(),
	}

	if readErr != nil {
		log.Warnf("Could not read file: %v", readErr)
		rec.Failed = true
		rec.AnalysisText = fmt.Sprintf("[analysis failed: could not read file: %v]", readErr)
		color.New(color.FgYellow).Fprintf(e.out, "Skipped %s: %v\n", path, readErr)
	} else {
		begin := time.Now()
		text, err := e.analyzer.AnalyzeFile(ctx, path, content.Text, run.Context.Summary(e.opts.MaxContextLength), e.opts.Research)
		elapsed := time.Since(begin)

		switch {
		case err == nil:
			rec.AnalysisText = text
			rec.DurationMs = elapsed.Milliseconds()
			run.Progress.Observe(elapsed)
		case llm.IsMalformed(err):
			log.Warnf("Unusable response: %v", err)
			rec.Failed = true
			rec.DurationMs = elapsed.Milliseconds()
			rec.AnalysisText = fmt.Sprintf("[analysis failed: %v]", err)
			color.New(color.FgYellow).Fprintf(e.out, "Failed to get a usable response for %s: %v\n", path, err)
		default:
			log.Errorf("Analysis stopped: %v", err)
			color.New(color.FgRed).Fprintf(e.out, "Analysis of %s failed: %v\n", path, err)
			return rec, fmt.Errorf("%w at %s: %w", ErrInterrupted, path, err)
		}
	}

	if err := run.State.Append(rec); err != nil {
		return rec, fmt.Errorf("record %s: %w", path, err)
	}
	run.Context.Append(rec)

	if err := e.store.Save(run.State); err != nil {
		return rec, fmt.Errorf("save checkpoint after %s: %w", path, err)
	}

	if !rec.Failed {
		color.New(color.FgCyan, color.Bold).Fprintf(e.out, "Analysis for %s:\n", path)
		fmt.Fprintln(e.out, rec.AnalysisText)
		fmt.Fprintf(e.out, "Time taken: %s\n", FormatDuration(rec.Duration()))
	}

	if eta, ok := run.Progress.Estimate(); ok {
		fmt.Fprintf(e.out, "Estimated time remaining: %s\n", FormatDuration(eta))
	} else {
		fmt.Fprintln(e.out, "Pending time estimation")
	}

	return rec, nil
}

// Interrupted reports whether err ended a run early with a resumable checkpoint.
func Interrupted(err error) bool {
	return errors.Is(err, ErrInterrupted)
}

var _ Store = (*state.Store)(nil)

var _ Analyzer = (*llm.Analyst)(nil)
