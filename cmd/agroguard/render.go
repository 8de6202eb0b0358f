package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/suPer8Hu/agroguard/internal/catalog"
	"github.com/suPer8Hu/agroguard/internal/common"
	"github.com/suPer8Hu/agroguard/internal/detection"
	"github.com/suPer8Hu/agroguard/internal/models"
	"github.com/suPer8Hu/agroguard/internal/session"
	"go.uber.org/zap"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2E7D32"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#757575"))
	linkStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#1565C0")).Underline(true)
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C62828"))

	severityStyles = map[models.SeverityLevel]lipgloss.Style{
		models.SeverityMild:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2E7D32")),
		models.SeverityModerate: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F9A825")),
		models.SeveritySevere:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C62828")),
	}
)

func severity(s models.SeverityLevel) string {
	if st, ok := severityStyles[s]; ok {
		return st.Render(string(s))
	}
	return string(s)
}

func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s %v\n", labelStyle.Render(label+":"), value)
}

func printLinks(w io.Writer, links []models.Link) {
	for _, l := range links {
		fmt.Fprintf(w, "  - %s %s\n", l.Title, linkStyle.Render(l.URI))
	}
}

func printDetection(w io.Writer, rec *models.DetectionRecord, entry *catalog.Entry) {
	fmt.Fprintln(w, titleStyle.Render(rec.DiseaseName))
	field(w, "Crop", rec.CropType)
	if rec.ScientificName != "" {
		field(w, "Scientific name", rec.ScientificName)
	}
	field(w, "Severity", severity(rec.SeverityLevel))
	field(w, "Confidence", fmt.Sprintf("%.0f%%", rec.ConfidenceScore))
	if rec.Description != "" {
		field(w, "Description", rec.Description)
	}
	if len(rec.SuggestedSolutions) > 0 {
		fmt.Fprintln(w, labelStyle.Render("Suggested solutions:"))
		for _, s := range rec.SuggestedSolutions {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	if len(rec.CitationLinks) > 0 {
		fmt.Fprintln(w, labelStyle.Render("Treatment resources:"))
		printLinks(w, rec.CitationLinks)
	}
	if entry != nil && len(entry.Treatments) > 0 {
		fmt.Fprintln(w, labelStyle.Render("Catalog treatments:"))
		for _, t := range entry.Treatments {
			fmt.Fprintf(w, "  - %s (%s): %s\n", t.Name, t.Type, t.Dosage)
		}
	}
}

// markdown renders assistant replies. Rendering failures fall back to the raw
// text.
func markdown(text string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// shownError has already been reported to the user.
type shownError struct{ error }

func (e shownError) Unwrap() error { return e.error }

// userError prints the message for err's kind. The raw cause goes to the
// debug log only.
func userError(w io.Writer, err error) error {
	msg := common.UserMessage(err)
	switch {
	case errors.Is(err, session.ErrNotAuthenticated):
		msg = "Sign in first: agroguard redeem <code> or agroguard register <farm name>."
	case errors.Is(err, detection.ErrAnalysisInFlight):
		msg = "An analysis is already running."
	case errors.Is(err, context.Canceled) && common.KindOf(err) == "":
		msg = "Cancelled."
	}
	fmt.Fprintln(w, errStyle.Render(msg))
	logger.Debug("command failed", zap.Error(err))
	return shownError{err}
}
