// Package observability provides logging setup and formatted output for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/talent-pipeline/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
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
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintStep outputs one progress line.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintStep(progress int, stage, message string) {
	fmt.Fprintf(p.out, "[%3d%%] %-26s %s\n", progress, stage, message)
}

// PrintJob outputs the status block of a job.
func (p *Printer) PrintJob(job *types.Job) {
	if job == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ID:        %s\n", job.ID))
	sb.WriteString(fmt.Sprintf("Status:    %s\n", job.Status))
	sb.WriteString(fmt.Sprintf("Stage:     %s\n", job.Stage))
	sb.WriteString(fmt.Sprintf("Progress:  %d%%\n", job.Progress))
	sb.WriteString(fmt.Sprintf("Message:   %s", job.StatusMessage))
	if job.Error != "" {
		sb.WriteString(fmt.Sprintf("\nError:     %s", job.Error))
	}

	p.printBox("JOB "+strings.ToUpper(string(job.Status)), sb.String())
}

// PrintScreened outputs the top screened search results.
func (p *Printer) PrintScreened(screened []types.ScreenedCandidate) {
	if len(screened) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Relevant results: %d\n\n", len(screened)))

	count := min(len(screened), maxItemsToShow)
	for i := 0; i < count; i++ {
		sc := screened[i]
		sb.WriteString(fmt.Sprintf("#%d  [%3d] %s\n", i+1, sc.Relevance, sc.Title))
		sb.WriteString(fmt.Sprintf("    %s\n", sc.Link))
		if sc.Caveat != "" {
			sb.WriteString(fmt.Sprintf("    Caveat: %s\n", sc.Caveat))
		}
	}
	if len(screened) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(screened)-maxItemsToShow))
	}

	p.printBox("SCREENED RESULTS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCandidates outputs the final candidates with their scores.
func (p *Printer) PrintCandidates(candidates []types.Candidate) {
	if len(candidates) == 0 {
		return
	}

	var sb strings.Builder
	for i, c := range candidates {
		score := "  -"
		if c.Scoring != nil {
			score = fmt.Sprintf("%4.1f", c.Scoring.Score)
		}
		sb.WriteString(fmt.Sprintf("#%d  %s  %s", i+1, score, c.DisplayName()))
		if c.Headline != "" {
			sb.WriteString(" - " + c.Headline)
		}
		sb.WriteString("\n")
		if c.BackgroundCheck != nil {
			match := "no"
			if c.BackgroundCheck.IsMatch {
				match = "yes"
			}
			sb.WriteString(fmt.Sprintf("    Verified: %s", match))
			if len(c.BackgroundCheck.Flagged) > 0 {
				sb.WriteString(fmt.Sprintf(" (%s)", strings.Join(c.BackgroundCheck.Flagged, "; ")))
			}
			sb.WriteString("\n")
		}
		if len(c.Flags) > 0 {
			sb.WriteString(fmt.Sprintf("    Flags: %s\n", strings.Join(c.Flags, ", ")))
		}
		sb.WriteString(fmt.Sprintf("    Fingerprint: %s\n", truncate(c.Fingerprint, 19)))
	}

	p.printBox(fmt.Sprintf("CANDIDATES (%d)", len(candidates)), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintStats outputs per-stage counts of a run.
func (p *Printer) PrintStats(stats types.JobStats) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Search results:  %d\n", stats.RawResults))
	sb.WriteString(fmt.Sprintf("Screened:        %d\n", stats.Screened))
	sb.WriteString(fmt.Sprintf("Profile links:   %d\n", stats.Links))
	sb.WriteString(fmt.Sprintf("Enriched:        %d\n", stats.Enriched))
	sb.WriteString(fmt.Sprintf("Structured:      %d\n", stats.Structured))
	sb.WriteString(fmt.Sprintf("New / updated:   %d / %d\n", stats.New, stats.Updated))
	sb.WriteString(fmt.Sprintf("Index failures:  %d\n", stats.IndexFailed))
	sb.WriteString(fmt.Sprintf("Dropped:         %d\n", stats.Dropped))
	sb.WriteString(fmt.Sprintf("Fallback blocks: %d", stats.Fallbacks))

	p.printBox("RUN STATISTICS", sb.String())
}

// PrintResults outputs everything attached to a finished job.
func (p *Printer) PrintResults(results *types.JobResults) {
	if results == nil {
		return
	}
	if results.Summary != "" {
		p.printBox("SUMMARY", results.Summary)
	}
	p.PrintScreened(results.ScreenedCandidates)
	p.PrintCandidates(results.FinalCandidates)
	p.PrintStats(results.Stats)
}
