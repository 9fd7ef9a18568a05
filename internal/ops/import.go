package ops

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hpungsan/nestlog/internal/activity"
	"github.com/hpungsan/nestlog/internal/db"
	"github.com/hpungsan/nestlog/internal/errors"
)

// ImportMode controls what happens to messages that are already stored.
type ImportMode string

const (
	ImportModeSkip    ImportMode = "skip"    // keep stored events, skip the message
	ImportModeReplace ImportMode = "replace" // drop stored events, import the file's
	ImportModeError   ImportMode = "error"   // import nothing if any message is stored
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: skip
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Messages int           `json:"messages"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes one rejected line or message.
type ImportError struct {
	Line      int    `json:"line,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// importGroup is the events of one source message, in file order.
type importGroup struct {
	messageID string
	date      string
	events    []activity.Event
}

// Import loads events from a JSONL export. Events are grouped by source
// message and each message is stored in its own transaction.
func Import(ctx context.Context, database *sql.DB, paths PathPolicy, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if input.Mode == "" {
		input.Mode = ImportModeSkip
	}
	switch input.Mode {
	case ImportModeSkip, ImportModeReplace, ImportModeError:
	default:
		return nil, errors.NewInvalidRequest("mode must be one of: skip, replace, error")
	}
	if err := paths.Check(input.Path, PathRead); err != nil {
		return nil, err
	}

	file, err := openNoFollow(input.Path, os.O_RDONLY, 0)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer file.Close()

	groups, parseErrors := parseExport(file)
	out := &ImportOutput{Errors: parseErrors}
	out.Skipped = len(parseErrors)
	if input.Mode == ImportModeError && len(parseErrors) > 0 {
		return out, nil
	}

	if input.Mode == ImportModeError {
		for _, g := range groups {
			done, err := db.MessageProcessed(ctx, database, g.messageID)
			if err != nil {
				return nil, err
			}
			if done {
				out.Errors = append(out.Errors, ImportError{
					MessageID: g.messageID,
					Code:      string(errors.ErrAlreadyProcessed),
					Message:   fmt.Sprintf("message %q is already stored", g.messageID),
				})
			}
		}
		if len(out.Errors) > 0 {
			return out, nil
		}
	}

	for _, g := range groups {
		if err := checkCtx(ctx, "import"); err != nil {
			return nil, err
		}
		if ie := idCollision(ctx, database, g); ie != nil {
			out.Errors = append(out.Errors, *ie)
			out.Skipped += len(g.events)
			continue
		}
		n, err := db.StoreMessage(ctx, database, g.messageID, g.date, g.events, input.Mode == ImportModeReplace)
		switch {
		case errors.Is(err, errors.ErrAlreadyProcessed):
			out.Skipped += len(g.events)
			continue
		case err == db.ErrUniqueConstraint:
			out.Errors = append(out.Errors, ImportError{
				MessageID: g.messageID,
				Code:      "ID_COLLISION",
				Message:   "an event id in this message is stored under another message",
			})
			out.Skipped += len(g.events)
			continue
		case err != nil:
			return nil, err
		}
		out.Imported += n
		out.Messages++
	}
	if out.Errors == nil {
		out.Errors = []ImportError{}
	}
	return out, nil
}

// idCollision reports an event id that is already stored under a different
// message. Ids stored under the same message are fine: replace drops them
// first and skip never writes.
func idCollision(ctx context.Context, database *sql.DB, g importGroup) *ImportError {
	done, err := db.MessageProcessed(ctx, database, g.messageID)
	if err != nil || done {
		return nil
	}
	for _, e := range g.events {
		if e.ID == "" {
			continue
		}
		exists, err := db.EventExists(ctx, database, e.ID)
		if err == nil && exists {
			return &ImportError{
				MessageID: g.messageID,
				Code:      "ID_COLLISION",
				Message:   fmt.Sprintf("event %q is already stored", e.ID),
			}
		}
	}
	return nil
}

// parseExport reads export lines into per-message groups in first-seen
// order. The header line is skipped.
func parseExport(r io.Reader) ([]importGroup, []ImportError) {
	var groups []importGroup
	index := make(map[string]int)
	var parseErrors []ImportError

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec exportRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if rec.NestlogExport {
			continue
		}

		e := activity.Normalize(rec.Event, string(rec.Category))
		switch {
		case e.MessageID == "":
			parseErrors = append(parseErrors, ImportError{Line: lineNum, Code: "INVALID_RECORD", Message: "missing source_message_id"})
			continue
		case !activity.ValidDate(e.Date):
			parseErrors = append(parseErrors, ImportError{Line: lineNum, Code: "INVALID_RECORD", Message: fmt.Sprintf("invalid date %q", e.Date)})
			continue
		case e.Time == "":
			e.Time = activity.UnknownTime
		}

		i, ok := index[e.MessageID]
		if !ok {
			i = len(groups)
			index[e.MessageID] = i
			groups = append(groups, importGroup{messageID: e.MessageID, date: e.Date})
		}
		groups[i].events = append(groups[i].events, e)
	}
	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}
	return groups, parseErrors
}
