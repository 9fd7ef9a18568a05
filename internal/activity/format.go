package activity

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the storage form of every date.
const DateLayout = "2006-01-02"

// FormatDate renders "2025-06-10" as "Tuesday, June 10, 2025". Input that
// does not parse is returned unchanged.
func FormatDate(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("Monday, January 2, 2006")
}

// FormatNap renders a nap length, adding hours and minutes once it reaches
// an hour: "45 mins", "127 mins (2h 7m)".
func FormatNap(minutes int) string {
	s := fmt.Sprintf("%d mins", minutes)
	if h := minutes / 60; h > 0 {
		s += fmt.Sprintf(" (%dh %dm)", h, minutes%60)
	}
	return s
}

// Subject is the notification subject line for a summary.
func Subject(s *DailySummary) string {
	return "Daily Summary - " + s.FormattedDate
}

func otherList(s *DailySummary) string {
	if len(s.OtherActivities) == 0 {
		return SubtypeNone
	}
	return strings.Join(s.OtherActivities, ", ")
}

// SummaryText renders the five-section plain-text digest.
func SummaryText(s *DailySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== DAILY SUMMARY FOR %s ===\n", strings.ToUpper(s.FormattedDate))
	if !s.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "Generated at %s\n", s.GeneratedAt.Format("03:04 PM"))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "1. # of Toiletings - Wet: %d, Dry: %d, BM: %d\n\n",
		s.Toiletings.Wet, s.Toiletings.Dry, s.Toiletings.BM)
	fmt.Fprintf(&b, "2. # of Diapers - Wet: %d, Dry: %d, BM: %d\n\n",
		s.Diapers.Wet, s.Diapers.Dry, s.Diapers.BM)
	fmt.Fprintf(&b, "3. Length of Nap: %s\n\n", FormatNap(s.NapMinutes))
	fmt.Fprintf(&b, "4. Meals Status - AM Snack: %s, Lunch: %s, PM Snack: %s\n\n",
		s.Meals.AMSnack, s.Meals.Lunch, s.Meals.PMSnack)
	fmt.Fprintf(&b, "5. Other Activities: %s\n", otherList(s))
	return b.String()
}

// SummaryMarkdown renders the digest as markdown, for HTML conversion.
func SummaryMarkdown(s *DailySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Daily Summary for %s\n\n", s.FormattedDate)
	if !s.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "_Generated at %s_\n\n", s.GeneratedAt.Format("03:04 PM"))
	}
	fmt.Fprintf(&b, "1. **Toiletings**: Wet %d, Dry %d, BM %d\n",
		s.Toiletings.Wet, s.Toiletings.Dry, s.Toiletings.BM)
	fmt.Fprintf(&b, "2. **Diapers**: Wet %d, Dry %d, BM %d\n",
		s.Diapers.Wet, s.Diapers.Dry, s.Diapers.BM)
	fmt.Fprintf(&b, "3. **Length of Nap**: %s\n", FormatNap(s.NapMinutes))
	fmt.Fprintf(&b, "4. **Meals**: AM Snack %s, Lunch %s, PM Snack %s\n",
		s.Meals.AMSnack, s.Meals.Lunch, s.Meals.PMSnack)
	fmt.Fprintf(&b, "5. **Other Activities**: %s\n", otherList(s))
	return b.String()
}
