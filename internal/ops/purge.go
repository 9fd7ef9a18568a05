package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hpungsan/nestlog/internal/db"
	"github.com/hpungsan/nestlog/internal/errors"
)

// PurgeInput selects what to delete: one message, or a date window.
type PurgeInput struct {
	MessageID string
	StartDate string
	EndDate   string
}

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// Purge deletes stored events and their processed-message records so the
// affected days can be ingested again.
func Purge(ctx context.Context, database *sql.DB, input PurgeInput) (*PurgeOutput, error) {
	msgID := strings.TrimSpace(input.MessageID)
	hasRange := input.StartDate != "" || input.EndDate != ""
	switch {
	case msgID != "" && hasRange:
		return nil, errors.NewInvalidRequest("specify either message_id or a date range, not both")
	case msgID == "" && !hasRange:
		return nil, errors.NewInvalidRequest("message_id or a date range is required")
	}

	if msgID != "" {
		n, err := db.DeleteByMessage(ctx, database, msgID)
		if err != nil {
			return nil, err
		}
		return &PurgeOutput{Purged: n, Message: formatPurgeMessage(n, fmt.Sprintf("message %q", msgID))}, nil
	}

	for field, v := range map[string]string{"start_date": input.StartDate, "end_date": input.EndDate} {
		if v != "" {
			if err := validateDate(field, v); err != nil {
				return nil, err
			}
		}
	}
	if input.StartDate != "" && input.EndDate != "" && input.StartDate > input.EndDate {
		return nil, errors.NewInvalidRequest("start_date is after end_date")
	}
	n, err := db.DeleteByRange(ctx, database, input.StartDate, input.EndDate)
	if err != nil {
		return nil, err
	}
	return &PurgeOutput{Purged: n, Message: formatPurgeMessage(n, windowText(input.StartDate, input.EndDate))}, nil
}

func formatPurgeMessage(count int, scope string) string {
	if count == 0 {
		return "No events to purge for " + scope
	}
	word := "event"
	if count > 1 {
		word = "events"
	}
	return fmt.Sprintf("Deleted %d %s for %s", count, word, scope)
}

func windowText(start, end string) string {
	switch {
	case start == "":
		return "dates up to " + end
	case end == "":
		return "dates from " + start
	case start == end:
		return start
	default:
		return start + " to " + end
	}
}
