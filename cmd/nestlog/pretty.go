package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/hpungsan/nestlog/internal/activity"
)

var (
	colorPrimary = lipgloss.Color("12")  // bright blue
	colorDim     = lipgloss.Color("240") // gray
	colorBorder  = lipgloss.Color("238") // dark gray

	styleTitle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	styleLabel = lipgloss.NewStyle().
			Foreground(colorDim).
			Width(12)

	styleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
)

// isTTY reports whether w is a terminal.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// renderPretty renders a daily summary as a bordered terminal card.
func renderPretty(s *activity.DailySummary) string {
	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, styleLabel.Render(label), value)
	}
	counts := func(c activity.Counts) string {
		return fmt.Sprintf("%d wet · %d dry · %d BM (%d)", c.Wet, c.Dry, c.BM, c.Total())
	}

	other := activity.SubtypeNone
	if len(s.OtherActivities) > 0 {
		other = strings.Join(s.OtherActivities, ", ")
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		styleTitle.Render(s.FormattedDate),
		"",
		row("Toileting", counts(s.Toiletings)),
		row("Diapers", counts(s.Diapers)),
		row("Nap", activity.FormatNap(s.NapMinutes)),
		row("AM snack", s.Meals.AMSnack),
		row("Lunch", s.Meals.Lunch),
		row("PM snack", s.Meals.PMSnack),
		row("Other", other),
		"",
		styleLabel.Width(0).Render(fmt.Sprintf("%d events", s.TotalEvents)),
	)
	return styleBox.Render(body)
}
