// Package main provides the entry point for the sourcescan CLI tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"sourcescan/internal/engine"
)

// Process exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitInterrupted = 2
	exitSignal      = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	// After the first signal, restore default handling so a second one
	// terminates the process even if something is still blocked.
	go func() {
		<-ctx.Done()
		stop()
	}()

	code := execute(ctx, newApp(os.Stdin, os.Stdout), os.Args[1:], os.Stderr)

	stop()
	os.Exit(code)
}

// execute runs the CLI with args and returns the process exit code.
func execute(ctx context.Context, a *app, args []string, stderr io.Writer) int {
	rootCmd := newRootCommand(a)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	code := exitCode(ctx, err)

	switch code {
	case exitOK:
	case exitSignal:
		fmt.Fprintln(stderr, "Interrupted. Progress up to the last completed file has been saved.")
	case exitInterrupted:
		color.New(color.FgRed).Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintln(stderr, "Progress up to the last completed file has been saved; run the same command again to resume.")
	default:
		color.New(color.FgRed).Fprintf(stderr, "Error: %v\n", err)
	}

	return code
}

// exitCode maps the outcome of a command onto the process exit status.
func exitCode(ctx context.Context, err error) int {
	switch {
	case err == nil:
		return exitOK
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return exitSignal
	case engine.Interrupted(err):
		return exitInterrupted
	default:
		return exitError
	}
}
