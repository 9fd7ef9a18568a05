package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/nestlog/internal/activity"
	"github.com/hpungsan/nestlog/internal/errors"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.NestError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

const eventColumns = `id, date, time_label, category, label, subtype, raw_text, source_message_id, created_at`

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// IDSource hands out monotonic ULIDs. Not safe for concurrent use.
type IDSource struct {
	entropy io.Reader
}

// NewIDSource returns an IDSource seeded from crypto/rand.
func NewIDSource() *IDSource {
	return &IDSource{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next returns the next ULID string.
func (s *IDSource) Next() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), s.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// MessageRecord is one processed source message.
type MessageRecord struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	EventCount  int    `json:"event_count"`
	ProcessedAt int64  `json:"processed_at"`
}

// StoreMessage records a processed message and its events in one
// transaction. Unless replace is set, a message already recorded yields
// ALREADY_PROCESSED and nothing is written. With replace, the message's
// previous events are removed first. Events that already carry an ID or
// creation time (imports) keep them.
func StoreMessage(ctx context.Context, db *sql.DB, msgID, date string, events []activity.Event, replace bool) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	exists, err := MessageProcessed(ctx, tx, msgID)
	if err != nil {
		return 0, err
	}
	if exists {
		if !replace {
			return 0, errors.NewAlreadyProcessed(msgID)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE source_message_id = ?`, msgID); err != nil {
			return 0, errors.NewInternal(err)
		}
	}

	now := time.Now().Unix()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, date, event_count, processed_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			event_count = excluded.event_count,
			processed_at = excluded.processed_at
	`, msgID, date, len(events), now); err != nil {
		return 0, errors.NewInternal(err)
	}

	ids := NewIDSource()
	for _, e := range events {
		e.Date = date
		e.MessageID = msgID
		if e.CreatedAt == 0 {
			e.CreatedAt = now
		}
		if e.ID == "" {
			if e.ID, err = ids.Next(); err != nil {
				return 0, errors.NewInternal(err)
			}
		}
		if err := InsertEvent(ctx, tx, e); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewInternal(err)
	}
	return len(events), nil
}

// InsertEvent stores one event with its ID already assigned.
func InsertEvent(ctx context.Context, q Querier, e activity.Event) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Date, e.Time, string(e.Category), e.Label, e.Subtype, e.RawText, e.MessageID, e.CreatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// EventExists reports whether an event with id is stored.
func EventExists(ctx context.Context, q Querier, id string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return n > 0, nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// MessageProcessed reports whether msgID has already been ingested.
func MessageProcessed(ctx context.Context, q Querier, msgID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE id = ?`, msgID).Scan(&n)
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return n > 0, nil
}

// ListMessages returns processed messages for a date window, oldest first.
func ListMessages(ctx context.Context, db *sql.DB, start, end string) ([]MessageRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, date, event_count, processed_at
		FROM messages
		WHERE date >= ? AND date <= ?
		ORDER BY date, processed_at, id
	`, start, end)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := []MessageRecord{}
	for rows.Next() {
		var m MessageRecord
		if err := rows.Scan(&m.ID, &m.Date, &m.EventCount, &m.ProcessedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// ListByDate returns one day's events in insertion order.
func ListByDate(ctx context.Context, db *sql.DB, date string) ([]activity.Event, error) {
	return queryEvents(ctx, db, `WHERE date = ? ORDER BY seq`, date)
}

// ListByRange returns events in the inclusive date window, ordered by date
// then insertion.
func ListByRange(ctx context.Context, db *sql.DB, start, end string) ([]activity.Event, error) {
	return queryEvents(ctx, db, `WHERE date >= ? AND date <= ? ORDER BY date, seq`, start, end)
}

// ListAll returns the entire history, ordered by date then insertion.
func ListAll(ctx context.Context, db *sql.DB) ([]activity.Event, error) {
	return queryEvents(ctx, db, `ORDER BY date, seq`)
}

func queryEvents(ctx context.Context, db *sql.DB, clause string, args ...any) ([]activity.Event, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events `+clause, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	events := []activity.Event{}
	for rows.Next() {
		e, err := ScanEventFromRows(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return events, nil
}

// AvailableDates returns every date holding events, newest first.
func AvailableDates(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT date FROM events ORDER BY date DESC`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	dates := []string{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, errors.NewInternal(err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return dates, nil
}

// CountByDate returns the number of events per date in the window.
func CountByDate(ctx context.Context, db *sql.DB, start, end string) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT date, COUNT(*) FROM events
		WHERE date >= ? AND date <= ?
		GROUP BY date
	`, start, end)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var d string
		var n int
		if err := rows.Scan(&d, &n); err != nil {
			return nil, errors.NewInternal(err)
		}
		counts[d] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return counts, nil
}

// DeleteByRange removes events and processed-message records in the
// inclusive window. An empty start or end leaves that side open.
func DeleteByRange(ctx context.Context, db *sql.DB, start, end string) (int, error) {
	where, args := rangeClause(start, end)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM events`+where, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`+where, args...); err != nil {
		return 0, errors.NewInternal(err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// DeleteByMessage removes a message's events and its processed record.
func DeleteByMessage(ctx context.Context, db *sql.DB, msgID string) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE source_message_id = ?`, msgID)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, msgID); err != nil {
		return 0, errors.NewInternal(err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// StreamForExport returns a cursor over events in the window (open-ended
// when a bound is empty). The caller must close the rows.
func StreamForExport(ctx context.Context, db *sql.DB, start, end string) (*sql.Rows, error) {
	where, args := rangeClause(start, end)
	rows, err := db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events`+where+` ORDER BY date, seq`, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

func rangeClause(start, end string) (string, []any) {
	var conds []string
	var args []any
	if start != "" {
		conds = append(conds, "date >= ?")
		args = append(args, start)
	}
	if end != "" {
		conds = append(conds, "date <= ?")
		args = append(args, end)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ScanEventFromRows reads one event from the current row.
func ScanEventFromRows(rows *sql.Rows) (*activity.Event, error) {
	var e activity.Event
	var category string
	if err := rows.Scan(&e.ID, &e.Date, &e.Time, &category, &e.Label, &e.Subtype,
		&e.RawText, &e.MessageID, &e.CreatedAt); err != nil {
		return nil, err
	}
	normalized := activity.Normalize(e, category)
	return &normalized, nil
}
