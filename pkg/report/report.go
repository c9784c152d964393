// Package report writes the artifacts of an orchestrator run.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/booker/pkg/orchestrator"
	"github.com/entrhq/booker/pkg/types"
)

// RunSummary contains a complete summary of one booker run
type RunSummary struct {
	SessionID string        `json:"session_id"`
	Status    string        `json:"status"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Users     []UserResult  `json:"users"`
	Metrics   RunMetrics    `json:"metrics"`
}

// UserResult is one user run
type UserResult struct {
	Alias     string           `json:"alias"`
	Result    types.ResultKind `json:"result"`
	Date      string           `json:"date,omitempty"`
	Consulate string           `json:"consulate,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Error     string           `json:"error,omitempty"`
	Started   time.Time        `json:"started"`
	Duration  time.Duration    `json:"duration"`
}

// RunMetrics counts results by kind
type RunMetrics struct {
	Runs          int `json:"runs"`
	Users         int `json:"users"`
	Booked        int `json:"booked"`
	NoSlotFound   int `json:"no_slot_found"`
	Unsatisfiable int `json:"constraint_unsatisfiable"`
	Failed        int `json:"failed"`
	Aborted       int `json:"aborted"`
}

// Build assembles the summary of an orchestrator run.
func Build(sessionID string, s orchestrator.Summary, start, end time.Time) *RunSummary {
	summary := &RunSummary{
		SessionID: sessionID,
		Status:    "completed",
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
	}
	if s.Stopped {
		summary.Status = "stopped"
	}

	users := make(map[string]bool)
	for _, r := range s.Records {
		u := UserResult{
			Alias:     r.Alias,
			Result:    r.Result.Kind,
			Consulate: r.Result.Consulate,
			Reason:    r.Result.Reason,
			Error:     r.Result.ErrorMessage(),
			Started:   r.Started,
			Duration:  r.Duration,
		}
		if !r.Result.Date.IsZero() {
			u.Date = r.Result.Date.String()
		}
		summary.Users = append(summary.Users, u)
		users[r.Alias] = true

		switch r.Result.Kind {
		case types.ResultBooked:
			summary.Metrics.Booked++
		case types.ResultNoSlotFound:
			summary.Metrics.NoSlotFound++
		case types.ResultConstraintUnsatisfiable:
			summary.Metrics.Unsatisfiable++
		case types.ResultFailed:
			summary.Metrics.Failed++
		case types.ResultAborted:
			summary.Metrics.Aborted++
		}
	}
	summary.Metrics.Runs = len(s.Records)
	summary.Metrics.Users = len(users)
	return summary
}

// ArtifactWriter handles writing run artifacts
type ArtifactWriter struct {
	outputDir string
}

// NewArtifactWriter creates a new artifact writer
func NewArtifactWriter(outputDir string) *ArtifactWriter {
	return &ArtifactWriter{outputDir: outputDir}
}

// WriteAll writes results.json, summary.md and metrics.json
func (w *ArtifactWriter) WriteAll(summary *RunSummary) error {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := w.writeJSON("results.json", summary); err != nil {
		return err
	}
	if err := w.WriteSummaryMarkdown(summary); err != nil {
		return err
	}
	return w.writeJSON("metrics.json", summary.Metrics)
}

func (w *ArtifactWriter) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(w.outputDir, name), data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// WriteSummaryMarkdown writes a human-readable markdown summary
func (w *ArtifactWriter) WriteSummaryMarkdown(summary *RunSummary) error {
	path := filepath.Join(w.outputDir, "summary.md")

	var md strings.Builder

	md.WriteString("# Booker Run Summary\n\n")
	md.WriteString(fmt.Sprintf("**Session:** %s\n\n", summary.SessionID))
	md.WriteString(fmt.Sprintf("**Status:** %s\n\n", summary.Status))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", summary.StartTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Completed:** %s\n\n", summary.EndTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", summary.Duration.Round(time.Second)))

	if len(summary.Users) > 0 {
		md.WriteString("## Users\n\n")
		md.WriteString("| User | Result | Details | Duration |\n")
		md.WriteString("|---|---|---|---|\n")
		for _, u := range summary.Users {
			md.WriteString(fmt.Sprintf("| %s | %s %s | %s | %s |\n",
				u.Alias, resultIcon(u.Result), u.Result, markdownCell(details(u)), u.Duration.Round(time.Second)))
		}
		md.WriteString("\n")
	}

	md.WriteString("## Metrics\n\n")
	md.WriteString(fmt.Sprintf("- **Runs:** %d\n", summary.Metrics.Runs))
	md.WriteString(fmt.Sprintf("- **Users:** %d\n", summary.Metrics.Users))
	md.WriteString(fmt.Sprintf("- **Booked:** %d\n", summary.Metrics.Booked))
	md.WriteString(fmt.Sprintf("- **No Slot Found:** %d\n", summary.Metrics.NoSlotFound))
	md.WriteString(fmt.Sprintf("- **Constraint Unsatisfiable:** %d\n", summary.Metrics.Unsatisfiable))
	md.WriteString(fmt.Sprintf("- **Failed:** %d\n", summary.Metrics.Failed))
	md.WriteString(fmt.Sprintf("- **Aborted:** %d\n", summary.Metrics.Aborted))

	if writeErr := os.WriteFile(path, []byte(md.String()), 0600); writeErr != nil {
		return fmt.Errorf("failed to write summary markdown: %w", writeErr)
	}
	return nil
}

func resultIcon(kind types.ResultKind) string {
	switch kind {
	case types.ResultBooked:
		return "✅"
	case types.ResultFailed:
		return "❌"
	case types.ResultAborted:
		return "⏹"
	default:
		return "⏳"
	}
}

func details(u UserResult) string {
	switch {
	case u.Date != "":
		return u.Date + " @ " + u.Consulate
	case u.Error != "":
		return u.Error
	default:
		return u.Reason
	}
}

// markdownCell keeps a value inside one table cell.
func markdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
