// Package prompt renders the generation prompts sent to evaluated models.
package prompt

import (
	"fmt"
	"strings"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/result"
)

const contextSeparator = "\n\n---\n\n"

var stepInstructions = map[result.StepID]string{
	result.StepAnalyze: "Step 1: Read and analyze relevant files. Summarize key constraints and risks.",
	result.StepPlan:    "Step 2: Propose a step-by-step plan. Be specific.",
	result.StepCode:    "Step 3: Produce the patch for the code changes. Return a unified diff patch only.",
	result.StepReview:  "Step 4: Self-review the patch. Identify risks, edge cases, and possible regressions.",
	result.StepFinal:   "Step 5: Return the final patch and a concise explanation. If revising from prior steps, incorporate improvements.",
}

// ContextBlock joins a task's context files, each headed by its path and notes.
func ContextBlock(task *catalog.Task) string {
	parts := make([]string, 0, len(task.ContextFiles))
	for _, f := range task.ContextFiles {
		var b strings.Builder
		fmt.Fprintf(&b, "File: %s", f.Path)
		if f.Notes != "" {
			fmt.Fprintf(&b, "\nNotes: %s", f.Notes)
		}
		b.WriteString("\n\n")
		b.WriteString(f.Content)
		parts = append(parts, b.String())
	}
	return strings.Join(parts, contextSeparator)
}

func BuildSingleShot(task *catalog.Task) string {
	var b strings.Builder
	b.WriteString("You are a coding agent. Your job is to modify the repo files to complete the task.\n\n")
	writeHeader(&b, task)
	b.WriteString("Instructions:\n")
	b.WriteString("- Return a unified diff patch only for repo files.\n")
	b.WriteString("- After the patch, include a short explanation (3-6 bullets).\n")
	b.WriteString("- Be concise and follow existing repo style.\n\n")
	writeBody(&b, task)
	return b.String()
}

// BuildStep renders the prompt for one agent-loop step. Steps after analyze
// carry the previous step's output; an unknown step yields the bare preamble.
func BuildStep(task *catalog.Task, step result.StepID, priorOutput string) string {
	var b strings.Builder
	b.WriteString("You are a coding agent running in multi-step mode.\n\n")
	writeHeader(&b, task)
	writeBody(&b, task)

	instruction, ok := stepInstructions[step]
	if !ok {
		return b.String()
	}
	b.WriteString("\n")
	b.WriteString(instruction)
	switch step {
	case result.StepAnalyze:
	case result.StepFinal:
		b.WriteString("\n\nPrior output:\n")
		b.WriteString(priorOutput)
	default:
		if priorOutput != "" {
			b.WriteString("\n\nPrevious step output:\n")
			b.WriteString(priorOutput)
		}
	}
	return b.String()
}

func writeHeader(b *strings.Builder, task *catalog.Task) {
	fmt.Fprintf(b, "Task: %s\n", task.Title)
	fmt.Fprintf(b, "Product question: %s\n\n", task.ProductQuestion)
}

func writeBody(b *strings.Builder, task *catalog.Task) {
	fmt.Fprintf(b, "Repo context:\n%s\n\n", ContextBlock(task))
	fmt.Fprintf(b, "Task details:\n%s\n\n", task.Prompt)
	fmt.Fprintf(b, "Expected behavior:\n%s\n", task.ExpectedBehavior)
}
