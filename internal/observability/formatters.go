// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/application-tracker/internal/ingest"
	"github.com/jonathan/application-tracker/internal/pipeline"
	"github.com/jonathan/application-tracker/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRunSummary outputs the counts and errors of one pipeline run
func (p *Printer) PrintRunSummary(s *pipeline.RunSummary) {
	if s == nil {
		return
	}

	var sb strings.Builder

	switch {
	case s.Fatal != nil:
		sb.WriteString(fmt.Sprintf("Run failed: %v\n", s.Fatal))
	case s.Skipped:
		sb.WriteString("Skipped: another run is in progress\n")
	}

	sb.WriteString(fmt.Sprintf("Emails fetched:   %d\n", s.Fetched))
	sb.WriteString(fmt.Sprintf("Job related:      %d\n", s.JobRelated))
	sb.WriteString(fmt.Sprintf("Applications new: %d\n", s.Created))
	sb.WriteString(fmt.Sprintf("Applications upd: %d\n", s.Updated))
	if !s.FinishedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Duration:         %s\n", s.Duration().Round(time.Millisecond)))
	}

	var outcomes []string
	for _, o := range ingest.Outcomes {
		if n := s.Outcomes[o]; n > 0 {
			outcomes = append(outcomes, fmt.Sprintf("  %-24s %d", o, n))
		}
	}
	if len(outcomes) > 0 {
		sb.WriteString("\nOutcomes:\n")
		sb.WriteString(strings.Join(outcomes, "\n"))
		sb.WriteString("\n")
	}

	if len(s.Errors) > 0 {
		sb.WriteString(fmt.Sprintf("\nErrors (%d):\n", len(s.Errors)))
		count := min(len(s.Errors), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", s.Errors[i]))
		}
		if len(s.Errors) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(s.Errors)-maxItemsToShow))
		}
	}

	p.printBox("RUN SUMMARY", strings.TrimRight(sb.String(), "\n"))
}

// PrintStats outputs totals by status in priority order
func (p *Printer) PrintStats(stats *types.Stats) {
	if stats == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total applications: %d\n", stats.TotalApplications))
	sb.WriteString(fmt.Sprintf("Processed emails:   %d\n", stats.ProcessedMessages))

	if len(stats.ByStatus) > 0 {
		sb.WriteString("\nBy status:\n")
		for _, status := range types.AllStatuses {
			if n := stats.ByStatus[status]; n > 0 {
				sb.WriteString(fmt.Sprintf("  %-20s %d\n", status, n))
			}
		}
	}

	p.printBox("APPLICATION STATISTICS", strings.TrimRight(sb.String(), "\n"))
}

// PrintApplications outputs the most recently updated applications
func (p *Printer) PrintApplications(apps []types.ApplicationRecord) {
	if len(apps) == 0 {
		p.printBox("RECENT APPLICATIONS", "No applications yet")
		return
	}

	var sb strings.Builder
	count := min(len(apps), maxItemsToShow)
	for i := 0; i < count; i++ {
		a := apps[i]
		sb.WriteString(fmt.Sprintf("• %s · %s [%s]\n", a.CompanyName, a.RoleTitle, a.Status))
	}
	if len(apps) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(apps)-maxItemsToShow))
	}

	p.printBox("RECENT APPLICATIONS", strings.TrimRight(sb.String(), "\n"))
}

// PrintProgress outputs one pipeline progress line
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(ev pipeline.ProgressEvent) {
	fmt.Fprintf(p.out, "[%s] %s\n", ev.Stage, ev.Message)
}
