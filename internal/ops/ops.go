// Package ops implements nestlog's operations. Each operation takes an Input
// struct and returns an Output struct that the CLI, MCP and web surfaces
// serialize as-is.
package ops

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/hpungsan/nestlog/internal/activity"
	"github.com/hpungsan/nestlog/internal/config"
	"github.com/hpungsan/nestlog/internal/errors"
)

// Window defaults and limits.
const (
	DefaultTrendDays    = 7
	DefaultAnalysisDays = 30
	DefaultSearchDays   = 30
	DefaultAuditDays    = 7
	DefaultBackfillDays = 7
	MaxBackfillDays     = 366
	DefaultSearchLimit  = 100
	MaxSearchLimit      = 500
	TimelinePreview     = 10
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusNoData  = "no_data"
	StatusError   = "error"
)

// nowFunc is replaced in tests.
var nowFunc = time.Now

// orDefault returns cfg, or the default config when cfg is nil.
func orDefault(cfg *config.Config) *config.Config {
	if cfg == nil {
		return config.DefaultConfig()
	}
	return cfg
}

// localNow returns the current time in the configured zone.
func localNow(cfg *config.Config) (time.Time, error) {
	loc, err := orDefault(cfg).Location()
	if err != nil {
		return time.Time{}, errors.NewInvalidRequest(err.Error())
	}
	return nowFunc().In(loc), nil
}

// validateDate checks a YYYY-MM-DD value. field names it in the error.
func validateDate(field, value string) error {
	if !activity.ValidDate(value) {
		return errors.NewInvalidRequest(fmt.Sprintf("%s must be YYYY-MM-DD, got %q", field, value))
	}
	return nil
}

// resolveDate returns date, or today when date is empty.
func resolveDate(cfg *config.Config, date string) (string, error) {
	if date == "" {
		now, err := localNow(cfg)
		if err != nil {
			return "", err
		}
		return now.Format(activity.DateLayout), nil
	}
	if err := validateDate("date", date); err != nil {
		return "", err
	}
	return date, nil
}

// resolveWindow fills in an inclusive date window. end defaults to today;
// start defaults to days-1 days before end.
func resolveWindow(cfg *config.Config, start, end string, days int) (string, string, error) {
	end, err := resolveDate(cfg, end)
	if err != nil {
		return "", "", errors.NewInvalidRequest("end_date must be YYYY-MM-DD")
	}
	if start == "" {
		e, _ := time.Parse(activity.DateLayout, end)
		start, _ = activity.TrailingWindow(e, days)
	} else if err := validateDate("start_date", start); err != nil {
		return "", "", err
	}
	if start > end {
		return "", "", errors.NewInvalidRequest(fmt.Sprintf("start_date %s is after end_date %s", start, end))
	}
	return start, end, nil
}

// checkCtx maps a finished context to CANCELLED.
func checkCtx(ctx context.Context, op string) error {
	if ctx.Err() != nil {
		return errors.NewCancelled(op)
	}
	return nil
}

// wrapErr passes coded errors through and wraps everything else as INTERNAL.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var ne *errors.NestError
	if stderrors.As(err, &ne) {
		return ne
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewCancelled("operation")
	}
	return errors.NewInternal(err)
}
