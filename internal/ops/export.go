package ops

import (
	"bufio"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hpungsan/nestlog/internal/activity"
	"github.com/hpungsan/nestlog/internal/config"
	"github.com/hpungsan/nestlog/internal/db"
	"github.com/hpungsan/nestlog/internal/errors"
)

// ExportSchemaVersion is written in every export header.
const ExportSchemaVersion = "1.0"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path      string // optional, default: <exports>/events-<range>-<timestamp>.jsonl
	StartDate string // optional, open-ended when empty
	EndDate   string // optional, open-ended when empty
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of a JSONL export file.
type ExportHeader struct {
	NestlogExport bool   `json:"_nestlog_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
	StartDate     string `json:"start_date,omitempty"`
	EndDate       string `json:"end_date,omitempty"`
}

// Export writes stored events to a JSONL file, one event per line after the
// header. The file is written to a temp name and renamed into place, so an
// existing export survives a failed run.
func Export(ctx context.Context, database *sql.DB, cfg *config.Config, paths PathPolicy, input ExportInput) (*ExportOutput, error) {
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

	now, err := localNow(cfg)
	if err != nil {
		return nil, err
	}
	exportedAt := now.Unix()

	exportPath := input.Path
	if exportPath == "" {
		name := fmt.Sprintf("events-%s-%s.jsonl", rangeName(input.StartDate, input.EndDate), now.Format("2006-01-02T150405"))
		exportPath = filepath.Join(paths.ExportsDir, SanitizeForFilename(name))
	}
	if err := paths.Check(exportPath, PathWrite); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}
	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	header := ExportHeader{
		NestlogExport: true,
		SchemaVersion: ExportSchemaVersion,
		ExportedAt:    exportedAt,
		StartDate:     input.StartDate,
		EndDate:       input.EndDate,
	}
	if err := enc.Encode(header); err != nil {
		return nil, errors.NewInternal(err)
	}

	count, err := writeEvents(ctx, database, enc, input.StartDate, input.EndDate)
	if err != nil {
		return nil, err
	}

	if err := w.Flush(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	// Windows cannot rename an open file.
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	if isSymlink(exportPath) {
		return nil, errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{Path: exportPath, Count: count, ExportedAt: exportedAt}, nil
}

func writeEvents(ctx context.Context, database *sql.DB, enc *json.Encoder, start, end string) (int, error) {
	rows, err := db.StreamForExport(ctx, database, start, end)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		if err := checkCtx(ctx, "export"); err != nil {
			return 0, err
		}
		e, err := db.ScanEventFromRows(rows)
		if err != nil {
			return 0, errors.NewInternal(err)
		}
		if err := enc.Encode(e); err != nil {
			return 0, errors.NewInternal(err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, wrapErr(err)
	}
	return count, nil
}

func rangeName(start, end string) string {
	switch {
	case start == "" && end == "":
		return "all"
	case start == end:
		return start
	case start == "":
		return "to-" + end
	case end == "":
		return "from-" + start
	default:
		return start + "_" + end
	}
}

// exportRecord is one decoded line of an export file.
type exportRecord struct {
	NestlogExport bool `json:"_nestlog_export"`
	activity.Event
}
