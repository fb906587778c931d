package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"sourcescan/config"
	"sourcescan/internal/engine"
	"sourcescan/internal/knowledge"
	"sourcescan/internal/llm"
	"sourcescan/internal/models"
	"sourcescan/internal/qa"
	"sourcescan/internal/report"
	"sourcescan/internal/state"
	"sourcescan/logging"
)

// app carries the process streams and the flags shared by every command.
type app struct {
	in  *bufio.Reader
	out io.Writer

	configPath string
	logLevel   string
	model      string

	// newClient builds the inference client; tests replace it.
	newClient func(cfg *config.Config) (llm.Client, error)
}

func newApp(stdin io.Reader, stdout io.Writer) *app {
	return &app{
		in:  bufio.NewReader(stdin),
		out: stdout,
		newClient: func(cfg *config.Config) (llm.Client, error) {
			return llm.NewOllamaClient(cfg.Ollama.Host, cfg.Ollama.Timeout)
		},
	}
}

type scanFlags struct {
	extensions []string
	outputHTML string
	research   string
	restart    bool
	noQA       bool
}

func newRootCommand(a *app) *cobra.Command {
	var flags scanFlags

	rootCmd := &cobra.Command{
		Use:   "sourcescan <directory>",
		Short: "Analyse a source tree file by file with a local language model",
		Long: `sourcescan walks a directory, sends every matching source file to an
Ollama server for analysis and accumulates the findings so later files are
analysed with what was learned earlier. Progress is checkpointed after every
file; rerunning the same command resumes where the previous run stopped.

Commands:
  report    Render an HTML report from a checkpoint
  ask       Ask questions about an analysed directory
  state     Inspect or delete checkpoints
  config    Print the effective configuration`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScan(cmd, args, flags)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&a.model, "model", "", "Ollama model to use (required for analysis)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.Flags().StringSliceVar(&flags.extensions, "extensions", nil,
		"file extensions to analyse, space- or comma-separated (default .py .cpp .h .java .js .html .css)")
	rootCmd.Flags().StringVar(&flags.outputHTML, "output-html", "", "write an HTML report to this path when the scan completes")
	rootCmd.Flags().StringVar(&flags.research, "research", "", "research question to focus every analysis on")
	rootCmd.Flags().BoolVar(&flags.restart, "restart", false, "discard any existing checkpoint without asking")
	rootCmd.Flags().BoolVar(&flags.noQA, "no-qa", false, "skip the interactive question session")

	rootCmd.AddCommand(a.newReportCommand())
	rootCmd.AddCommand(a.newAskCommand())
	rootCmd.AddCommand(a.newStateCommand())
	rootCmd.AddCommand(a.newConfigCommand())

	return rootCmd
}

// loadConfig loads the configuration with the command's flags bound on top,
// validates it and initialises logging.
func (a *app) loadConfig(cmd *cobra.Command, requireModel bool) (*config.Config, io.Closer, error) {
	bindings := []config.FlagBinding{
		{Key: "ollama.model", Flag: cmd.Flags().Lookup("model")},
		{Key: "logging.level", Flag: cmd.Flags().Lookup("log-level")},
		{Key: "analysis.extensions", Flag: cmd.Flags().Lookup("extensions")},
		{Key: "analysis.research", Flag: cmd.Flags().Lookup("research")},
	}

	cfg, err := config.Load(a.configPath, bindings...)
	if err != nil {
		return nil, nil, err
	}

	closer := logging.InitLogger(cfg.Logging)

	if err := cfg.Validate(requireModel); err != nil {
		_ = closer.Close()
		return nil, nil, err
	}

	return cfg, closer, nil
}

func (a *app) runScan(cmd *cobra.Command, args []string, flags scanFlags) error {
	dirArg, extra, err := splitArgs(args, isDir)
	if err != nil {
		return err
	}
	if len(extra) > 0 {
		if !cmd.Flags().Changed("extensions") {
			return &config.ConfigError{Err: fmt.Errorf("unexpected arguments %v", extra)}
		}
		for _, ext := range extra {
			if err := cmd.Flags().Set("extensions", ext); err != nil {
				return &config.ConfigError{Err: err}
			}
		}
	}

	root, err := resolveDir(dirArg)
	if err != nil {
		return err
	}

	cfg, closer, err := a.loadConfig(cmd, true)
	if err != nil {
		return err
	}
	defer closer.Close()

	client, err := a.newClient(cfg)
	if err != nil {
		return err
	}
	analyst := llm.NewAnalyst(client, cfg.Ollama.Model, cfg.Ollama.SystemPrompt)

	var decider engine.Decider = engine.NewConsoleDecider(a.in, a.out)
	if flags.restart {
		decider = engine.FixedDecider(engine.Restart)
	}

	eng := engine.New(analyst, state.NewStore(cfg.State.Dir), decider, a.out, engine.Options{
		Root:             root,
		Extensions:       cfg.Analysis.Extensions,
		IgnoreDirs:       cfg.Explorer.IgnoreDirs,
		Research:         cfg.Analysis.Research,
		MaxContextLength: cfg.Analysis.MaxContextLength,
		MaxFileReadSize:  cfg.Analysis.MaxFileReadSize,
	})

	ctx := cmd.Context()

	run, err := eng.Prepare(ctx)
	if err != nil {
		return err
	}

	summary, err := eng.Execute(ctx, run)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out)
	color.New(color.FgGreen, color.Bold).Fprintf(a.out, "Analysis complete: %d analysed, %d failed, %d already done (%s).\n",
		summary.Analyzed, summary.Failed, summary.Skipped, engine.FormatDuration(summary.Elapsed))
	fmt.Fprintln(a.out, report.SummaryTable(run.State.Records))

	if flags.outputHTML != "" {
		if err := writeReport(flags.outputHTML, run.State, cfg.Analysis.Research); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "HTML report written to %s\n", flags.outputHTML)
	}

	if flags.noQA {
		return nil
	}

	session := qa.NewSession(analyst, run.Context.Summary(cfg.Analysis.MaxContextLength), a.in, a.out)
	_, err = session.Run(ctx)

	return err
}

func (a *app) newReportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "report <directory>",
		Short: "Render an HTML report from the checkpoint of a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closer, err := a.loadState(cmd, args[0], false)
			if err != nil {
				return err
			}
			defer closer.Close()

			if err := writeReport(output, st, ""); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "HTML report for %d files written to %s\n", len(st.Records), output)

			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output-html", "", "path of the HTML file to write")
	_ = cmd.MarkFlagRequired("output-html")

	return cmd
}

func (a *app) newAskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <directory>",
		Short: "Ask questions about a directory that has already been analysed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveDir(args[0])
			if err != nil {
				return err
			}

			cfg, closer, err := a.loadConfig(cmd, true)
			if err != nil {
				return err
			}
			defer closer.Close()

			st, err := state.NewStore(cfg.State.Dir).Load(root)
			if err != nil {
				return err
			}

			client, err := a.newClient(cfg)
			if err != nil {
				return err
			}
			analyst := llm.NewAnalyst(client, cfg.Ollama.Model, cfg.Ollama.SystemPrompt)
			summary := knowledge.NewAccumulator(st.Records).Summary(cfg.Analysis.MaxContextLength)

			_, err = qa.NewSession(analyst, summary, a.in, a.out).Run(cmd.Context())

			return err
		},
	}
}

func (a *app) newStateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or delete checkpoints",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <directory>",
		Short: "Print the checkpoint of a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closer, err := a.loadState(cmd, args[0], false)
			if err != nil {
				return err
			}
			defer closer.Close()

			printState(a.out, st)

			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear <directory>",
		Short: "Delete the checkpoint of a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveDir(args[0])
			if err != nil {
				return err
			}

			cfg, closer, err := a.loadConfig(cmd, false)
			if err != nil {
				return err
			}
			defer closer.Close()

			if err := state.NewStore(cfg.State.Dir).Clear(root); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Checkpoint for %s cleared.\n", root)

			return nil
		},
	})

	return cmd
}

func (a *app) newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, closer, err := a.loadConfig(cmd, false)
			if err != nil {
				return err
			}
			defer closer.Close()

			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, out)

			return nil
		},
	}
}

// loadState resolves dir, loads the configuration and reads the checkpoint.
func (a *app) loadState(cmd *cobra.Command, dir string, requireModel bool) (*models.ScanState, io.Closer, error) {
	root, err := resolveDir(dir)
	if err != nil {
		return nil, nil, err
	}

	cfg, closer, err := a.loadConfig(cmd, requireModel)
	if err != nil {
		return nil, nil, err
	}

	st, err := state.NewStore(cfg.State.Dir).Load(root)
	if err != nil {
		_ = closer.Close()
		if errors.Is(err, state.ErrNotFound) {
			return nil, nil, fmt.Errorf("no analysis has been saved for %s: %w", root, err)
		}
		return nil, nil, err
	}

	return st, closer, nil
}

func writeReport(path string, st *models.ScanState, research string) error {
	html, err := report.Render(st.Records, report.Meta{
		RootPath: st.RootPath,
		Model:    st.Model,
		Research: research,
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	logrus.Debugf("Wrote %s report to %s", humanize.Bytes(uint64(len(html))), path)

	return nil
}

func printState(w io.Writer, st *models.ScanState) {
	color.New(color.FgCyan, color.Bold).Fprintf(w, "Checkpoint for %s\n", st.RootPath)
	fmt.Fprintf(w, "Run:        %s\n", st.RunID)
	fmt.Fprintf(w, "Model:      %s\n", st.Model)
	fmt.Fprintf(w, "Extensions: %s\n", strings.Join(st.Extensions, " "))
	fmt.Fprintf(w, "Created:    %s\n", formatTime(st.CreatedAt))
	fmt.Fprintf(w, "Updated:    %s\n", formatTime(st.UpdatedAt))
	fmt.Fprintf(w, "Files:      %d (%d failed)\n", len(st.Records), st.FailedCount())
	fmt.Fprintln(w, report.SummaryTable(st.Records))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	return fmt.Sprintf("%s (%s)", t.Local().Format(time.DateTime), humanize.Time(t))
}

// resolveDir returns the cleaned absolute path of dir, which must be an
// existing directory.
func resolveDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", &config.ConfigError{Err: fmt.Errorf("resolve %s: %w", dir, err)}
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", &config.ConfigError{Err: fmt.Errorf("directory %s: %w", dir, err)}
	}
	if !info.IsDir() {
		return "", &config.ConfigError{Err: fmt.Errorf("%s is not a directory", dir)}
	}

	return filepath.Clean(abs), nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.IsDir()
}
