package activity

import "strings"

// UnknownTime is the time label used when no posted timestamp could be tied
// to a matched field.
const UnknownTime = "Unknown"

// Category is the closed classification of an Event.
type Category string

const (
	CategoryToileting Category = "toileting"
	CategoryDiaper    Category = "diaper"
	CategoryNap       Category = "nap"
	CategoryAMSnack   Category = "am_snack"
	CategoryLunch     Category = "lunch"
	CategoryPMSnack   Category = "pm_snack"
	CategoryOther     Category = "other"
)

// Categories lists every category in report order.
var Categories = []Category{
	CategoryToileting,
	CategoryDiaper,
	CategoryNap,
	CategoryAMSnack,
	CategoryLunch,
	CategoryPMSnack,
	CategoryOther,
}

// fieldNames are the report field names for the fixed categories.
var fieldNames = map[Category]string{
	CategoryToileting: "Toileting",
	CategoryDiaper:    "Diaper",
	CategoryNap:       "Nap",
	CategoryAMSnack:   "AM Snack",
	CategoryLunch:     "Lunch",
	CategoryPMSnack:   "PM Snack",
}

// ParseCategory maps a stored category string to a Category.
// The boolean is false for strings outside the closed set.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return CategoryOther, false
}

// IsMeal reports whether c is one of the three meal slots.
func (c Category) IsMeal() bool {
	return c == CategoryAMSnack || c == CategoryLunch || c == CategoryPMSnack
}

// Subtype values produced by the extractor.
const (
	SubtypeWet   = "Wet"
	SubtypeDry   = "Dry"
	SubtypeBM    = "BM"
	SubtypeStart = "Start"
	SubtypeStop  = "Stop"
	SubtypeAll   = "All"
	SubtypeSome  = "Some"
	SubtypeNone  = "None"
)

// Event is one timestamped activity record extracted from a report message.
// Events are values; nothing mutates an Event after it is built.
type Event struct {
	// ID is a ULID assigned by the store. Empty until persisted.
	ID string `json:"id,omitempty"`

	// Date is the calendar day (YYYY-MM-DD) the caller attributes the event to.
	Date string `json:"date,omitempty"`

	// Time is the "H:MM AM/PM" label, or UnknownTime.
	Time string `json:"time"`

	Category Category `json:"category"`

	// Label names the activity when Category is CategoryOther.
	Label string `json:"label,omitempty"`

	Subtype string `json:"subtype"`

	// RawText is the exact matched text, kept for audit and search.
	RawText string `json:"raw_text"`

	// MessageID identifies the source message once stored.
	MessageID string `json:"source_message_id,omitempty"`

	// CreatedAt is the Unix timestamp of insertion.
	CreatedAt int64 `json:"created_at,omitempty"`
}

// Name returns the display name: the report field name for fixed
// categories, the label for Other events.
func (e Event) Name() string {
	if e.Category == CategoryOther {
		return e.Label
	}
	if name, ok := fieldNames[e.Category]; ok {
		return name
	}
	return e.Label
}

// Minutes returns the event time as minutes since midnight. Unknown and
// malformed times sort as minute 0.
func (e Event) Minutes() int {
	return ParseTimeToMinutes(e.Time)
}

// HasKnownTime reports whether the event carries a real timestamp.
func (e Event) HasKnownTime() bool {
	return e.Time != "" && e.Time != UnknownTime
}

// SearchText is the lowercase text a search query is matched against.
func (e Event) SearchText() string {
	return strings.ToLower(strings.Join([]string{
		string(e.Category), e.Subtype, e.Name(), e.RawText,
	}, " "))
}

// Normalize returns a copy of e with an unrecognized category folded into
// Other. The raw category name becomes the label so nothing is dropped.
func Normalize(e Event, rawCategory string) Event {
	c, ok := ParseCategory(rawCategory)
	if ok {
		e.Category = c
		return e
	}
	e.Category = CategoryOther
	if e.Label == "" {
		e.Label = strings.TrimSpace(rawCategory)
	}
	return e
}

// WithDate returns copies of events attributed to date.
func WithDate(events []Event, date string) []Event {
	out := make([]Event, len(events))
	for i, e := range events {
		e.Date = date
		out[i] = e
	}
	return out
}
