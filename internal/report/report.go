// Package report renders the outcome of a launch for the terminal, the
// GitHub job summary and the pull request comment.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ResultsBaseURL is where batch results are viewed.
const ResultsBaseURL = "https://app.resim.ai/results/"

// Result is what one launch produced.
type Result struct {
	ProjectName string
	ProjectID   string
	SystemID    string
	BranchName  string
	BranchID    string
	BuildID     string
	// BuildReused is true when a build ID was supplied instead of registered.
	BuildReused bool
	BatchID     string
	BatchName   string
	Target      string
}

// ResultsURL links to a batch in the ReSim app.
func ResultsURL(batchID string) string {
	return ResultsBaseURL + batchID
}

// Outputs returns the step outputs for r.
func (r *Result) Outputs() map[string]string {
	return map[string]string{
		"batch_id": r.BatchID,
		"build_id": r.BuildID,
	}
}

func (r *Result) rows() [][2]string {
	build := r.BuildID
	if r.BuildReused {
		build += " (existing)"
	}
	batch := r.BatchID
	if r.BatchName != "" {
		batch = fmt.Sprintf("%s (%s)", r.BatchName, r.BatchID)
	}
	rows := [][2]string{
		{"Project", r.ProjectName},
		{"Branch", r.BranchName},
		{"Build", build},
		{"Batch", batch},
		{"Target", r.Target},
		{"Results", ResultsURL(r.BatchID)},
	}
	out := rows[:0]
	for _, row := range rows {
		if row[1] != "" {
			out = append(out, row)
		}
	}
	return out
}

// Comment is the pull request comment body.
func (r *Result) Comment() string {
	return fmt.Sprintf("ReSim batch launched for this change. [View results on ReSim](%s)", ResultsURL(r.BatchID))
}

// Markdown is the job summary section.
func (r *Result) Markdown() string {
	var b strings.Builder
	b.WriteString("### ReSim batch launched\n\n")
	b.WriteString("| | |\n|---|---|\n")
	for _, row := range r.rows() {
		value := row[1]
		if row[0] == "Results" {
			value = fmt.Sprintf("[View results on ReSim](%s)", value)
		} else {
			value = "`" + value + "`"
		}
		fmt.Fprintf(&b, "| %s | %s |\n", row[0], value)
	}
	return b.String()
}

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("34"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Width(9)
	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

// Terminal renders a boxed summary for human output.
func (r *Result) Terminal() string {
	lines := []string{titleStyle.Render("Batch launched")}
	for _, row := range r.rows() {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Render(row[0]),
			valueStyle.Render(row[1]),
		))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
