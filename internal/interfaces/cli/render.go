package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	backupdomain "github.com/plugsmith/plugsmith/internal/core/domain/backup"
	updatedomain "github.com/plugsmith/plugsmith/internal/core/domain/update"
	"github.com/plugsmith/plugsmith/internal/infrastructure/registry"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	idStyle       = lipgloss.NewStyle().Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	conflictStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func renderInstalled(plugins []registry.LoadedPlugin) string {
	if len(plugins) == 0 {
		return dimStyle.Render("no plugins installed")
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("Installed plugins"))
	b.WriteString("\n")
	for _, lp := range plugins {
		e := lp.Entry
		b.WriteString(fmt.Sprintf("  %s  %s  %s\n",
			idStyle.Render(e.ID),
			e.Version,
			dimStyle.Render(fmt.Sprintf("(%s, %s)", e.SourceKind, e.Path)),
		))
	}
	return b.String()
}

func renderReport(report updatedomain.Report) string {
	var b strings.Builder
	if report.Error != "" {
		b.WriteString(errStyle.Render(report.Error))
		b.WriteString("\n")
	}
	if !report.HasUpdate {
		if report.Error == "" {
			b.WriteString(okStyle.Render("up to date"))
			b.WriteString(dimStyle.Render(fmt.Sprintf(" (version %s)\n", report.CurrentVersion)))
		}
		return b.String()
	}

	b.WriteString(headerStyle.Render(fmt.Sprintf("Update available: %s -> %s", report.CurrentVersion, orUnknown(report.LatestVersion))))
	b.WriteString("\n")
	for _, cat := range report.Categories {
		b.WriteString(fmt.Sprintf("  %s (%d files", idStyle.Render(cat.Name), len(cat.Files)))
		if n := cat.ConflictCount(); n > 0 {
			b.WriteString(conflictStyle.Render(fmt.Sprintf(", %d conflicts", n)))
		}
		b.WriteString(")\n")
		for _, f := range cat.Files {
			marker := "  "
			if f.HasConflict {
				marker = conflictStyle.Render("! ")
			}
			b.WriteString(fmt.Sprintf("    %s%s %s\n", marker, string(f.Kind[0]), f.Path))
		}
	}
	s := report.Summary
	b.WriteString(dimStyle.Render(fmt.Sprintf(
		"  %d changed: %d added, %d modified, %d deleted; %d conflicting\n",
		s.TotalFiles, s.AddedFiles, s.ModifiedFiles, s.DeletedFiles, s.ConflictFiles,
	)))
	return b.String()
}

func renderBackups(records []backupdomain.Record) string {
	if len(records) == 0 {
		return dimStyle.Render("no backups")
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("Backups (newest first)"))
	b.WriteString("\n")
	for _, r := range records {
		b.WriteString(fmt.Sprintf("  %s  %s  %s\n",
			r.CapturedAt.Format("2006-01-02 15:04:05"),
			dimStyle.Render("v"+r.Version),
			r.Path,
		))
	}
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
