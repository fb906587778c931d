package llm

import (
	"context"
	"fmt"
	"strings"
)

// Analyst composes analysis and question prompts and sends them to a Client.
type Analyst struct {
	client Client
	model  string
	system string
}

// NewAnalyst binds a client to a model and system prompt.
func NewAnalyst(client Client, model, system string) *Analyst {
	return &Analyst{client: client, model: model, system: system}
}

// Model returns the model requests are sent to.
func (a *Analyst) Model() string {
	return a.model
}

// AnalyzeFile asks for an analysis of one file, given what has been learned
// so far and an optional research question.
func (a *Analyst) AnalyzeFile(ctx context.Context, path, content, contextSummary, question string) (string, error) {
	return a.client.Generate(ctx, Request{
		Model:  a.model,
		System: a.system,
		Prompt: FilePrompt(path, content, contextSummary, question),
	})
}

// Answer asks a free-form question about the analysed codebase.
func (a *Analyst) Answer(ctx context.Context, contextSummary, question string) (string, error) {
	return a.client.Generate(ctx, Request{
		Model:  a.model,
		System: a.system,
		Prompt: QuestionPrompt(contextSummary, question),
	})
}

// FilePrompt builds the per-file prompt: context, then the file, then the
// research question.
func FilePrompt(path, content, contextSummary, question string) string {
	var b strings.Builder

	if strings.TrimSpace(contextSummary) != "" {
		b.WriteString("Findings from files analysed so far:\n")
		b.WriteString(contextSummary)
		b.WriteString("\n---\n")
	}

	fmt.Fprintf(&b, "Analyze the following source code from %s:\n\n%s\n\n", path, content)

	if q := strings.TrimSpace(question); q != "" {
		fmt.Fprintf(&b, "Focus the analysis on this research question: %s\n", q)
	}

	return strings.TrimSpace(b.String())
}

// QuestionPrompt builds a question-answering prompt over the accumulated
// analyses.
func QuestionPrompt(contextSummary, question string) string {
	var b strings.Builder

	if strings.TrimSpace(contextSummary) != "" {
		b.WriteString("Analyses of the codebase files:\n")
		b.WriteString(contextSummary)
		b.WriteString("\n---\n")
	} else {
		b.WriteString("No file analyses are available yet.\n---\n")
	}

	fmt.Fprintf(&b, "Using the analyses above, answer this question about the codebase:\n%s", strings.TrimSpace(question))

	return b.String()
}
