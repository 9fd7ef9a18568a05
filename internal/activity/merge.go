package activity

// mergeKey identifies an event for snippet/body de-duplication.
type mergeKey struct {
	category Category
	subtype  string
	time     string
}

// Merge combines events from a message's snippet with events from its body.
// Every snippet event is kept. A body event is added only when no snippet
// event has the same category, subtype and time.
func Merge(short, long []Event) []Event {
	seen := make(map[mergeKey]bool, len(short))
	out := make([]Event, 0, len(short)+len(long))
	for _, e := range short {
		seen[mergeKey{e.Category, e.Subtype, e.Time}] = true
		out = append(out, e)
	}
	for _, e := range long {
		if seen[mergeKey{e.Category, e.Subtype, e.Time}] {
			continue
		}
		out = append(out, e)
	}
	return out
}
