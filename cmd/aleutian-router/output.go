// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AleutianAI/AleutianRouter/services/fixes"
	"github.com/AleutianAI/AleutianRouter/services/intent/route"
	"github.com/AleutianAI/AleutianRouter/services/intent/safemode"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Exit codes.
const (
	exitSuccess = 0
	exitError   = 1
	exitUsage   = 2
)

var (
	colorTeal    = lipgloss.Color("#20B9B4")
	colorBright  = lipgloss.Color("#2CD7C7")
	colorSlate   = lipgloss.Color("#2C4A54")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
)

var styles = struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
	WarnBox lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(colorBright),
	Label:   lipgloss.NewStyle().Foreground(colorTeal).Width(14),
	Muted:   lipgloss.NewStyle().Foreground(colorSlate),
	Warning: lipgloss.NewStyle().Foreground(colorWarning),
	Error:   lipgloss.NewStyle().Foreground(colorError),
	Box:     lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorTeal).
		Padding(0, 1),
	WarnBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorWarning).
		Padding(0, 1),
}

// tierStyle colors a trust tier from green to red.
func tierStyle(t fixes.TrustTier) lipgloss.Style {
	switch t {
	case fixes.TierHighlyTrusted, fixes.TierTrusted:
		return lipgloss.NewStyle().Foreground(colorBright).Bold(true)
	case fixes.TierExperimental:
		return lipgloss.NewStyle().Foreground(colorWarning)
	case fixes.TierQuarantined:
		return lipgloss.NewStyle().Foreground(colorError)
	default:
		return styles.Muted
	}
}

// isInteractive reports whether both stdin and stdout are terminals.
func isInteractive() bool {
	in, out := os.Stdin.Fd(), os.Stdout.Fd()
	return (isatty.IsTerminal(in) || isatty.IsCygwinTerminal(in)) &&
		(isatty.IsTerminal(out) || isatty.IsCygwinTerminal(out))
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func row(label, value string) string {
	return styles.Label.Render(label) + value
}

// renderOutcome formats one routed request.
func renderOutcome(out safemode.Outcome) string {
	r := out.Route
	var b strings.Builder
	b.WriteString(styles.Title.Render(string(r.Type)) + "\n")
	b.WriteString(row("confidence", fmt.Sprintf("%.2f", r.Confidence)) + "\n")
	b.WriteString(row("layer", r.Layer.String()) + "\n")
	if r.Payload.Command != "" {
		b.WriteString(row("command", r.Payload.Command) + "\n")
	}
	if r.Payload.Action != "" {
		b.WriteString(row("action", r.Payload.Action) + "\n")
	}
	if r.Payload.Target != "" {
		b.WriteString(row("target", r.Payload.Target) + "\n")
	}
	if len(r.Payload.Hints) > 0 {
		b.WriteString(row("hints", strings.Join(r.Payload.Hints, ", ")) + "\n")
	}
	if r.Payload.NeedsDisambiguation {
		names := make([]string, len(r.Payload.Candidates))
		for i, c := range r.Payload.Candidates {
			names[i] = fmt.Sprintf("%s (%.2f)", c.Identifier, c.Similarity)
		}
		b.WriteString(row("candidates", strings.Join(names, ", ")) + "\n")
	}
	if len(r.Corrections) > 0 {
		b.WriteString(row("corrected", renderCorrections(r)) + "\n")
	}
	if r.Payload.Reason != "" {
		b.WriteString(row("reason", styles.Muted.Render(r.Payload.Reason)) + "\n")
	}
	body := styles.Box.Render(strings.TrimRight(b.String(), "\n"))
	if out.Notice != "" {
		body += "\n" + styles.WarnBox.Render(styles.Warning.Render(out.Notice))
	}
	return body
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func renderCorrections(r route.Route) string {
	parts := make([]string, len(r.Corrections))
	for i, c := range r.Corrections {
		parts[i] = c.Original + " → " + c.Corrected
	}
	return strings.Join(parts, ", ")
}

// renderFixResults formats a ranked lookup.
func renderFixResults(results []fixes.FixResult) string {
	if len(results) == 0 {
		return styles.Muted.Render("No known fixes for this error.")
	}
	var b strings.Builder
	for i, r := range results {
		header := fmt.Sprintf("%d. %s  %s  similarity %.2f",
			i+1, shortID(r.FixID), tierStyle(r.Tier).Render(r.Tier.String()), r.Similarity)
		lines := []string{
			styles.Title.Render(header),
			r.Solution,
			styles.Muted.Render(fmt.Sprintf("%d succeeded, %d failed, %d contributors, origin %s",
				r.SuccessCount, r.FailureCount, r.UniqueContributors, r.Origin)),
		}
		if len(r.Lineage) > 0 {
			lines = append(lines, styles.Muted.Render("derived from "+strings.Join(r.Lineage, " → ")))
		}
		b.WriteString(styles.Box.Render(strings.Join(lines, "\n")))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderFix formats one stored fix.
func renderFix(rec fixes.FixRecord, tier fixes.TrustTier, lineage, children []string) string {
	rate, ok := rec.SuccessRate()
	rateText := "n/a"
	if ok {
		rateText = fmt.Sprintf("%.0f%%", rate*100)
	}
	lines := []string{
		styles.Title.Render(rec.ID),
		row("tier", tierStyle(tier).Render(tier.String())),
		row("exception", rec.Signature.ExceptionKind),
		row("message", rec.Signature.Message),
		row("success rate", rateText),
		row("reports", fmt.Sprintf("%d ok / %d failed", rec.SuccessCount(), rec.FailureCount())),
		row("contributors", fmt.Sprintf("%d", rec.UniqueContributors())),
		row("origin", string(rec.Origin)),
	}
	if rec.Quarantined() {
		lines = append(lines, row("quarantine", styles.Error.Render(rec.QuarantineReason)))
	}
	if len(lineage) > 0 {
		lines = append(lines, row("ancestors", strings.Join(lineage, " → ")))
	}
	if len(children) > 0 {
		lines = append(lines, row("children", strings.Join(children, ", ")))
	}
	lines = append(lines, "", rec.Solution)
	return styles.Box.Render(strings.Join(lines, "\n"))
}
