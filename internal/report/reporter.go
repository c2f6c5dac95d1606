// Package report renders build progress and outcomes for humans.
//
// Two implementations serve the same interface: RichReporter styles output
// for interactive terminals, BasicReporter writes plain lines for CI logs
// and dumb terminals. Callers pick one explicitly; nothing here probes the
// terminal.
package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/conneroisu/winforge/internal/types"
	"github.com/dustin/go-humanize"
)

// Reporter receives build progress events and the final outcome.
type Reporter interface {
	// Step announces the beginning of a pipeline stage
	Step(msg string)
	// Success reports a completed stage
	Success(msg string)
	// Warning reports a non-fatal finding
	Warning(msg string)
	// Failure reports a fatal problem
	Failure(msg string)
	// Summary renders the final build outcome
	Summary(result *types.BuildResult)
}

// RichReporter renders styled, emoji-prefixed output.
type RichReporter struct {
	out io.Writer

	stepStyle    lipgloss.Style
	successStyle lipgloss.Style
	warnStyle    lipgloss.Style
	failStyle    lipgloss.Style
	detailStyle  lipgloss.Style
}

// NewRichReporter creates a reporter that writes styled output to out.
func NewRichReporter(out io.Writer) *RichReporter {
	return &RichReporter{
		out:          out,
		stepStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		successStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		warnStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		failStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		detailStyle:  lipgloss.NewStyle().Faint(true),
	}
}

func (r *RichReporter) Step(msg string) {
	fmt.Fprintln(r.out, r.stepStyle.Render("▸ "+msg))
}

func (r *RichReporter) Success(msg string) {
	fmt.Fprintln(r.out, r.successStyle.Render("✅ "+msg))
}

func (r *RichReporter) Warning(msg string) {
	fmt.Fprintln(r.out, r.warnStyle.Render("⚠️  "+msg))
}

func (r *RichReporter) Failure(msg string) {
	fmt.Fprintln(r.out, r.failStyle.Render("❌ "+msg))
}

func (r *RichReporter) Summary(result *types.BuildResult) {
	if !result.Success {
		r.Failure("Build failed: " + result.Error)
		if result.Stats != nil {
			fmt.Fprintln(r.out, r.detailStyle.Render(fmt.Sprintf("   - Failed after %v", result.Stats.Duration)))
		}
		return
	}

	if result.Stats != nil {
		r.Success(fmt.Sprintf("Build completed successfully in %v", result.Stats.Duration))
		fmt.Fprintln(r.out, r.detailStyle.Render(fmt.Sprintf("   - Output written to: %s", result.OutputPath)))
		fmt.Fprintln(r.out, r.detailStyle.Render(fmt.Sprintf("   - Passes processed: %d/%d", result.Stats.PassesProcessed, len(types.AllPasses))))
		fmt.Fprintln(r.out, r.detailStyle.Render(fmt.Sprintf("   - Output size: %s", humanize.Bytes(uint64(result.Stats.FileSize)))))
	} else {
		r.Success("Build completed successfully")
	}

	if result.Valid {
		fmt.Fprintln(r.out, r.detailStyle.Render(fmt.Sprintf("   - Document valid, %d warning(s)", len(result.Warnings))))
	} else {
		r.Failure("Assembled document failed validation")
	}
}

// BasicReporter renders unstyled output for logs and non-interactive runs.
type BasicReporter struct {
	out io.Writer
}

// NewBasicReporter creates a reporter that writes plain text to out.
func NewBasicReporter(out io.Writer) *BasicReporter {
	return &BasicReporter{out: out}
}

func (r *BasicReporter) Step(msg string) {
	fmt.Fprintf(r.out, "==> %s\n", msg)
}

func (r *BasicReporter) Success(msg string) {
	fmt.Fprintf(r.out, "OK: %s\n", msg)
}

func (r *BasicReporter) Warning(msg string) {
	fmt.Fprintf(r.out, "WARNING: %s\n", msg)
}

func (r *BasicReporter) Failure(msg string) {
	fmt.Fprintf(r.out, "ERROR: %s\n", msg)
}

func (r *BasicReporter) Summary(result *types.BuildResult) {
	if !result.Success {
		r.Failure("build failed: " + result.Error)
		return
	}

	r.Success("build completed")
	fmt.Fprintf(r.out, "output: %s\n", result.OutputPath)
	if result.Stats != nil {
		fmt.Fprintf(r.out, "passes: %d/%d\n", result.Stats.PassesProcessed, len(types.AllPasses))
		fmt.Fprintf(r.out, "size: %d bytes\n", result.Stats.FileSize)
		fmt.Fprintf(r.out, "duration: %v\n", result.Stats.Duration)
	}
	fmt.Fprintf(r.out, "valid: %t\n", result.Valid)
	fmt.Fprintf(r.out, "warnings: %d\n", len(result.Warnings))
}
