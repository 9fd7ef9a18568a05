// Package mail reads daycare report messages from a local inbox.
//
// Two on-disk shapes are understood: Gmail API message resources saved as
// JSON, and RFC 822 .eml files. Both decode to Message, the only type the
// rest of the module sees.
package mail

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// snippetRunes bounds snippets derived from a body.
const snippetRunes = 200

// Message is one decoded report message.
type Message struct {
	ID       string    `json:"id"`
	Snippet  string    `json:"snippet"`
	Body     string    `json:"body,omitempty"`
	Received time.Time `json:"received"`
	Labels   []string  `json:"labels,omitempty"`
	LabelIDs []string  `json:"label_ids,omitempty"`
}

// HasLabelID reports whether the message carries the Gmail label id.
// Ids are opaque (INBOX, Label_4821) and compared exactly.
func (m Message) HasLabelID(id string) bool {
	for _, l := range m.LabelIDs {
		if l == id {
			return true
		}
	}
	return false
}

// HasLabel reports whether any label name equals name, case-insensitively.
func (m Message) HasLabel(name string) bool {
	for _, l := range m.Labels {
		if strings.EqualFold(strings.TrimSpace(l), name) {
			return true
		}
	}
	return false
}

// Source yields the report messages received on a calendar date.
type Source interface {
	Messages(ctx context.Context, date string) ([]Message, error)
}

// Query builds the Gmail search string for one day of labeled messages.
func Query(label, date string) (string, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	next := day.AddDate(0, 0, 1).Format("2006-01-02")
	return fmt.Sprintf("label:%s after:%s before:%s", label, date, next), nil
}

// snippetFrom collapses whitespace in body and cuts it to snippetRunes.
func snippetFrom(body string) string {
	s := strings.Join(strings.Fields(body), " ")
	if utf8.RuneCountInString(s) <= snippetRunes {
		return s
	}
	r := []rune(s)
	return string(r[:snippetRunes])
}
