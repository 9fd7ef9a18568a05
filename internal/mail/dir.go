package mail

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DirSource reads messages from a directory of .json and .eml files.
type DirSource struct {
	Dir string
	// Label is the label name matched against .eml X-Gmail-Labels.
	Label string
	// LabelID is the Gmail label id matched against JSON labelIds. Empty
	// disables the check: exports are assumed to come from a label query.
	LabelID  string
	Location *time.Location
}

// NewDirSource returns a DirSource. A nil loc means time.Local.
func NewDirSource(dir, label, labelID string, loc *time.Location) *DirSource {
	if loc == nil {
		loc = time.Local
	}
	return &DirSource{Dir: dir, Label: label, LabelID: labelID, Location: loc}
}

// Messages returns the messages received on date in the source's zone,
// ordered by received time then id. Files that fail to decode are logged
// and skipped.
func (s *DirSource) Messages(ctx context.Context, date string) ([]Message, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}

	var msgs []Message
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(s.Dir, entry.Name())
		msg, ok, err := s.load(path)
		if err != nil {
			log.Printf("mail: skipping %s: %v", entry.Name(), err)
			continue
		}
		if !ok {
			continue
		}
		if msg.Received.In(s.Location).Format("2006-01-02") != date {
			continue
		}
		if !s.labeled(msg) {
			continue
		}
		msgs = append(msgs, msg)
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].Received.Equal(msgs[j].Received) {
			return msgs[i].Received.Before(msgs[j].Received)
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs, nil
}

// labeled reports whether msg passes the label filters. Gmail JSON carries
// label ids, never names, so names are only checked on .eml labels.
func (s *DirSource) labeled(msg Message) bool {
	if len(msg.LabelIDs) > 0 && s.LabelID != "" && !msg.HasLabelID(s.LabelID) {
		return false
	}
	if len(msg.Labels) > 0 && s.Label != "" && !msg.HasLabel(s.Label) {
		return false
	}
	return true
}

// load decodes one file. ok is false for unrecognized extensions.
func (s *DirSource) load(path string) (Message, bool, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".json" && ext != ".eml" {
		return Message{}, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Message{}, false, err
	}

	var msg Message
	if ext == ".json" {
		msg, err = ParseGmailJSON(data)
	} else {
		msg, err = ParseEML(bytes.NewReader(data), strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}
	if err != nil {
		return Message{}, false, err
	}
	return msg, true, nil
}
