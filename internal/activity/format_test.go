package activity

import (
	"strings"
	"testing"
	"time"
)

func TestFormatDate(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"2025-06-10", "Tuesday, June 10, 2025"},
		{"2025-01-05", "Sunday, January 5, 2025"},
		{"not-a-date", "not-a-date"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FormatDate(tt.input); got != tt.want {
			t.Errorf("FormatDate(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFormatNap(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "0 mins"},
		{45, "45 mins"},
		{60, "60 mins (1h 0m)"},
		{127, "127 mins (2h 7m)"},
	}
	for _, tt := range tests {
		if got := FormatNap(tt.minutes); got != tt.want {
			t.Errorf("FormatNap(%d) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

func TestSummaryText(t *testing.T) {
	s := Summarize("2025-06-10", sampleDay())
	s.GeneratedAt = time.Date(2025, 6, 10, 18, 5, 0, 0, time.UTC)

	text := SummaryText(s)

	for _, want := range []string{
		"=== DAILY SUMMARY FOR TUESDAY, JUNE 10, 2025 ===",
		"Generated at 06:05 PM",
		"1. # of Toiletings - Wet: 1, Dry: 0, BM: 0",
		"2. # of Diapers - Wet: 1, Dry: 0, BM: 1",
		"3. Length of Nap: 127 mins (2h 7m)",
		"4. Meals Status - AM Snack: None, Lunch: All, PM Snack: None",
		"5. Other Activities: Clay, Water play: Yes",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary text missing %q:\n%s", want, text)
		}
	}
}

func TestSummaryText_NoOthers(t *testing.T) {
	text := SummaryText(Summarize("2025-06-10", nil))

	if !strings.Contains(text, "5. Other Activities: None") {
		t.Errorf("want None for empty other activities:\n%s", text)
	}
	if strings.Contains(text, "Generated at") {
		t.Error("generated line should be omitted when unset")
	}
}

func TestSummaryMarkdown(t *testing.T) {
	md := SummaryMarkdown(Summarize("2025-06-10", sampleDay()))

	if !strings.HasPrefix(md, "## Daily Summary for Tuesday, June 10, 2025") {
		t.Errorf("unexpected heading:\n%s", md)
	}
	if !strings.Contains(md, "**Length of Nap**: 127 mins (2h 7m)") {
		t.Errorf("missing nap line:\n%s", md)
	}
}

func TestSubject(t *testing.T) {
	s := Summarize("2025-06-10", nil)
	if got := Subject(s); got != "Daily Summary - Tuesday, June 10, 2025" {
		t.Errorf("Subject = %q", got)
	}
}
