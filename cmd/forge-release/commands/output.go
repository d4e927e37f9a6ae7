package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/input-output-hk/catalyst-forge-release/domain"
	"github.com/input-output-hk/catalyst-forge-release/errors"
)

// Output formats accepted by --output.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

var (
	colorBorder  = lipgloss.Color("#64748B")
	colorHeader  = lipgloss.Color("#874BFD")
	colorSuccess = lipgloss.Color("#00FF99")
	colorFailure = lipgloss.Color("#FF0055")
	colorRunning = lipgloss.Color("#F59E0B")

	headerStyle = lipgloss.NewStyle().Foreground(colorHeader).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true)
)

func statusStyle(s domain.Status) lipgloss.Style {
	switch s {
	case domain.StatusSucceeded:
		return cellStyle.Foreground(colorSuccess)
	case domain.StatusFailed:
		return cellStyle.Foreground(colorFailure).Bold(true)
	case domain.StatusRunning:
		return cellStyle.Foreground(colorRunning)
	default:
		return cellStyle
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers(headers...)
}

// planTable lists the steps of a release.
func planTable(steps []domain.StepName) string {
	t := newTable("#", "STEP").StyleFunc(func(row, _ int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		return cellStyle
	})
	for i, step := range steps {
		t.Row(strconv.Itoa(i+1), step.String())
	}
	return t.String()
}

// releaseTable shows a release and the state of each step.
func releaseTable(rel *domain.Release) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("release "+rel.ID), statusStyle(rel.Status).UnsetPadding().Render(rel.Status.String()))
	fmt.Fprintf(&b, "project:    %s\n", rel.Project)
	fmt.Fprintf(&b, "repository: %s\n", rel.Repository)
	if rel.Version != "" {
		fmt.Fprintf(&b, "version:    %s -> %s", rel.StartVersion, rel.Version)
		if rel.NextVersion != "" {
			fmt.Fprintf(&b, " (next %s)", rel.NextVersion)
		}
		b.WriteString("\n")
	}
	if rel.Tag != "" {
		fmt.Fprintf(&b, "tag:        %s\n", rel.Tag)
	}
	b.WriteString("\n")

	steps := rel.Steps
	t := newTable("STEP", "STATUS", "ATTEMPTS", "DURATION", "ERROR").StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case col == 1 && row >= 0 && row < len(steps):
			return statusStyle(steps[row].Status)
		default:
			return cellStyle
		}
	})
	for _, step := range steps {
		t.Row(step.Name.String(), step.Status.String(), strconv.Itoa(step.Attempts), stepDuration(step), stepError(step))
	}
	b.WriteString(t.String())
	return b.String()
}

// listTable summarizes releases, newest first.
func listTable(releases []*domain.Release) string {
	t := newTable("ID", "PROJECT", "VERSION", "STATUS", "CREATED").StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case col == 3 && row >= 0 && row < len(releases):
			return statusStyle(releases[row].Status)
		default:
			return cellStyle
		}
	})
	for _, rel := range releases {
		t.Row(rel.ID, rel.Project, rel.Version, rel.Status.String(), rel.CreatedAt.Format(time.RFC3339))
	}
	return t.String()
}

func stepDuration(step domain.StepRecord) string {
	if step.StartedAt == nil || step.FinishedAt == nil {
		return "-"
	}
	return step.FinishedAt.Sub(*step.StartedAt).Round(time.Millisecond).String()
}

func stepError(step domain.StepRecord) string {
	if step.Error == "" {
		return ""
	}
	msg := step.Error
	if len(msg) > 60 {
		msg = msg[:57] + "..."
	}
	if step.ErrorCode != "" {
		return "[" + step.ErrorCode + "] " + msg
	}
	return msg
}

// encode writes v in a machine readable format.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return errors.Newf(errors.CodeInvalidInput, "unknown output format %q", format)
	}
}
