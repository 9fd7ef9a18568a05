package activity

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultKeywords is the free-text activity vocabulary scanned in message
// bodies.
var DefaultKeywords = []string{
	"clay", "art", "paint", "book", "story", "music", "dance",
	"game", "play", "puzzle", "craft", "draw", "color", "sing",
}

// postedRegex matches the "posted H:MM AM/PM" marker that follows each report
// entry. Group 1 is the time label.
var postedRegex = regexp.MustCompile(`(?i)posted\s+(\d{1,2}:\d{2}\s+[AP]M)`)

// fieldPattern pairs a fixed category with the regex that finds it.
// Group 1 is the subtype.
type fieldPattern struct {
	category Category
	re       *regexp.Regexp
}

// fieldPatterns are scanned in this order. The compound diaper value is
// listed first so "Wet + BM" is not cut short at "Wet".
var fieldPatterns = []fieldPattern{
	{CategoryToileting, regexp.MustCompile(`(?i)Toileting:\s*(Wet|Dry|BM)`)},
	{CategoryDiaper, regexp.MustCompile(`(?i)Diaper:\s*(Wet\s*\+\s*BM|Wet|Dry|BM)`)},
	{CategoryNap, regexp.MustCompile(`(?i)Nap:\s*(Start|Stop)`)},
	{CategoryAMSnack, regexp.MustCompile(`(?i)AM Snack:\s*(All|Some|None)`)},
	{CategoryLunch, regexp.MustCompile(`(?i)Lunch:\s*(All|Some|None)`)},
	{CategoryPMSnack, regexp.MustCompile(`(?i)PM Snack:\s*(All|Some|None)`)},
}

// Timestamp is one posted-time marker located in a text blob.
type Timestamp struct {
	Offset int    // byte offset of the marker
	Text   string // "H:MM AM/PM"
}

// Options configures extraction.
type Options struct {
	// Keywords extends DefaultKeywords for the body scan.
	Keywords []string
}

// Extractor turns report text into Events. It holds no per-call state and is
// safe for concurrent use.
type Extractor struct {
	keywords []keywordPattern
}

type keywordPattern struct {
	label string
	re    *regexp.Regexp
}

// NewExtractor builds an Extractor with the default vocabulary plus any
// configured keywords. Duplicates and blanks are ignored.
func NewExtractor(opts Options) *Extractor {
	seen := make(map[string]bool)
	var patterns []keywordPattern
	for _, kw := range append(append([]string{}, DefaultKeywords...), opts.Keywords...) {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		patterns = append(patterns, keywordPattern{
			label: capitalize(kw),
			re:    regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`),
		})
	}
	return &Extractor{keywords: patterns}
}

// FindTimestamps returns every posted-time marker in text, in order.
func FindTimestamps(text string) []Timestamp {
	matches := postedRegex.FindAllStringSubmatchIndex(text, -1)
	stamps := make([]Timestamp, 0, len(matches))
	for _, m := range matches {
		stamps = append(stamps, Timestamp{
			Offset: m[0],
			Text:   text[m[2]:m[3]],
		})
	}
	return stamps
}

// NearestTime returns the label of the timestamp closest to offset by
// absolute character distance, before or after. Ties go to the earlier
// timestamp in the list. With no timestamps it returns UnknownTime.
func NearestTime(offset int, stamps []Timestamp) string {
	closest := UnknownTime
	best := -1
	for _, ts := range stamps {
		d := ts.Offset - offset
		if d < 0 {
			d = -d
		}
		if best < 0 || d < best {
			best = d
			closest = ts.Text
		}
	}
	return closest
}

// ExtractSnippet scans the short message snippet. Only the fixed fields are
// recognized.
func (x *Extractor) ExtractSnippet(snippet string) []Event {
	return extractFields(snippet, FindTimestamps(snippet))
}

// ExtractBody scans a decoded message body for the fixed fields and for
// free-text activity keywords.
func (x *Extractor) ExtractBody(body string) []Event {
	stamps := FindTimestamps(body)
	events := extractFields(body, stamps)
	return append(events, x.extractKeywords(body, stamps)...)
}

// ExtractMessage extracts both representations of one message and merges
// them. A body that is empty or identical to the snippet is not scanned.
func (x *Extractor) ExtractMessage(snippet, body string) []Event {
	short := x.ExtractSnippet(snippet)
	if strings.TrimSpace(body) == "" || body == snippet {
		return short
	}
	return Merge(short, x.ExtractBody(body))
}

// extractFields finds every fixed-field match and ties it to the nearest
// timestamp.
func extractFields(text string, stamps []Timestamp) []Event {
	var events []Event
	for _, fp := range fieldPatterns {
		for _, m := range fp.re.FindAllStringSubmatchIndex(text, -1) {
			events = append(events, Event{
				Time:     NearestTime(m[0], stamps),
				Category: fp.category,
				Subtype:  text[m[2]:m[3]],
				RawText:  text[m[0]:m[1]],
			})
		}
	}
	return events
}

// extractKeywords scans text line by line. Each keyword is emitted at most
// once, from the first line where it appears as a whole word.
func (x *Extractor) extractKeywords(text string, stamps []Timestamp) []Event {
	var events []Event
	found := make(map[string]bool)

	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		lineStart := offset
		offset += len(line)

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		// Anchor at the first non-blank character of the line.
		anchor := lineStart + len(line) - len(strings.TrimLeftFunc(line, unicode.IsSpace))
		for _, kw := range x.keywords {
			if found[kw.label] || !kw.re.MatchString(trimmed) {
				continue
			}
			found[kw.label] = true
			events = append(events, Event{
				Time:     NearestTime(anchor, stamps),
				Category: CategoryOther,
				Label:    kw.label,
				RawText:  trimmed,
			})
		}
	}
	return events
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
