package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/nestlog/internal/activity"
	"github.com/hpungsan/nestlog/internal/config"
	"github.com/hpungsan/nestlog/internal/errors"
	"github.com/hpungsan/nestlog/internal/mail"
	"github.com/hpungsan/nestlog/internal/notify"
	"github.com/hpungsan/nestlog/internal/ops"
	"github.com/hpungsan/nestlog/internal/web"
)

// env bundles what the commands operate on.
type env struct {
	db       *sql.DB
	cfg      *config.Config
	baseDir  string
	source   mail.Source
	notifier notify.Notifier
}

// newEnv wires the inbox directory source and the SMTP notifier from cfg.
func newEnv(db *sql.DB, cfg *config.Config, baseDir string) (*env, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &env{
		db:       db,
		cfg:      cfg,
		baseDir:  baseDir,
		source:   mail.NewDirSource(cfg.InboxDir(baseDir), cfg.ActivityLabel, cfg.ActivityLabelID, loc),
		notifier: notify.NewSMTPNotifier(cfg.SMTP),
	}, nil
}

func (e *env) paths() ops.PathPolicy {
	return ops.NewPathPolicy(e.baseDir, e.cfg)
}

// newCLIApp creates the CLI application with all commands. e may be nil
// when only help or version output is needed.
func newCLIApp(e *env) *cli.App {
	app := &cli.App{
		Name:    "nestlog",
		Usage:   "Daycare activity reports, summarized",
		Version: Version,
		Commands: []*cli.Command{
			ingestCmd(e),
			backfillCmd(e),
			auditCmd(e),
			summaryCmd(e),
			sendCmd(e),
			trendsCmd(e),
			napsCmd(e),
			mealsCmd(e),
			timelineCmd(e),
			monthCmd(e),
			lifetimeCmd(e),
			searchCmd(e),
			datesCmd(e),
			exportCmd(e),
			importCmd(e),
			purgeCmd(e),
			serveCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func dateFlag() cli.Flag {
	return &cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Date (YYYY-MM-DD, default today)"}
}

func startFlag() cli.Flag {
	return &cli.StringFlag{Name: "start", Aliases: []string{"s"}, Usage: "Window start (YYYY-MM-DD)"}
}

func endFlag() cli.Flag {
	return &cli.StringFlag{Name: "end", Aliases: []string{"e"}, Usage: "Window end (YYYY-MM-DD, default today)"}
}

// ingestCmd creates the ingest command.
func ingestCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Extract and store one day's activity reports from the inbox",
		Flags: []cli.Flag{
			dateFlag(),
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Reprocess messages that were already ingested"},
			&cli.BoolFlag{Name: "notify", Aliases: []string{"n"}, Usage: "Email the daily summary afterwards"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Ingest(c.Context, e.db, e.cfg, e.source, e.notifier, ops.IngestInput{
				Date:   c.String("date"),
				Force:  c.Bool("force"),
				Notify: c.Bool("notify"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// backfillCmd creates the backfill command.
func backfillCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "backfill",
		Usage: "Ingest a run of past days, oldest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "days", Value: ops.DefaultBackfillDays, Usage: "Number of days ending at --end"},
			endFlag(),
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Reprocess messages that were already ingested"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Backfill(c.Context, e.db, e.cfg, e.source, ops.BackfillInput{
				Days:  c.Int("days"),
				End:   c.String("end"),
				Force: c.Bool("force"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// auditCmd creates the audit command.
func auditCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Dry run: show what extraction finds for recent weekdays without storing",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "date", Aliases: []string{"d"}, Usage: "Dates to audit (repeatable)"},
			&cli.IntFlag{Name: "weekdays", Value: ops.DefaultAuditDays, Usage: "Previous weekdays to audit when no --date is given"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Audit(c.Context, e.db, e.cfg, e.source, ops.AuditInput{
				Dates:    c.StringSlice("date"),
				Weekdays: c.Int("weekdays"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// summaryCmd creates the summary command.
func summaryCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Show the daily summary for a date",
		Flags: []cli.Flag{
			dateFlag(),
			&cli.StringFlag{Name: "format", Aliases: []string{"o"}, Value: "json", Usage: "Output format: json|text|markdown|pretty"},
		},
		Action: func(c *cli.Context) error {
			format := c.String("format")
			switch format {
			case "json", "text", "markdown", "pretty":
			default:
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("unknown format %q (want json, text, markdown or pretty)", format)))
			}

			output, err := ops.DailySummary(c.Context, e.db, e.cfg, ops.DailyInput{Date: c.String("date")})
			if err != nil {
				return outputError(err)
			}
			return writeSummary(c.App.Writer, format, output)
		},
	}
}

// writeSummary renders a daily summary in the requested format. Pretty
// output degrades to plain text when w is not a terminal.
func writeSummary(w io.Writer, format string, out *ops.DailyOutput) error {
	switch format {
	case "text":
		_, err := io.WriteString(w, activity.SummaryText(out.DailySummary)+"\n")
		return err
	case "markdown":
		_, err := io.WriteString(w, activity.SummaryMarkdown(out.DailySummary)+"\n")
		return err
	case "pretty":
		if !isTTY(w) {
			_, err := io.WriteString(w, activity.SummaryText(out.DailySummary)+"\n")
			return err
		}
		_, err := io.WriteString(w, renderPretty(out.DailySummary)+"\n")
		return err
	default:
		return outputJSON(w, out)
	}
}

// sendCmd creates the send command.
func sendCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Email the stored daily summary for a date",
		Flags: []cli.Flag{dateFlag()},
		Action: func(c *cli.Context) error {
			output, err := ops.SendDailySummary(c.Context, e.db, e.cfg, e.notifier, ops.DailyInput{Date: c.String("date")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

func rangeFlags() []cli.Flag {
	return []cli.Flag{startFlag(), endFlag()}
}

func rangeInput(c *cli.Context) ops.RangeInput {
	return ops.RangeInput{StartDate: c.String("start"), EndDate: c.String("end")}
}

// trendsCmd creates the trends command.
func trendsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "trends",
		Usage: "Per-day breakdown and averages (default: last 7 days)",
		Flags: rangeFlags(),
		Action: func(c *cli.Context) error {
			output, err := ops.WeeklyTrends(c.Context, e.db, e.cfg, rangeInput(c))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// napsCmd creates the naps command.
func napsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "naps",
		Usage: "Nap statistics (default: last 30 days)",
		Flags: rangeFlags(),
		Action: func(c *cli.Context) error {
			output, err := ops.NapAnalysis(c.Context, e.db, e.cfg, rangeInput(c))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// mealsCmd creates the meals command.
func mealsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "meals",
		Usage: "Meal consumption statistics (default: last 30 days)",
		Flags: rangeFlags(),
		Action: func(c *cli.Context) error {
			output, err := ops.MealAnalysis(c.Context, e.db, e.cfg, rangeInput(c))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// timelineCmd creates the timeline command.
func timelineCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "timeline",
		Usage: "List a day's events in time order",
		Flags: []cli.Flag{dateFlag()},
		Action: func(c *cli.Context) error {
			output, err := ops.Timeline(c.Context, e.db, e.cfg, ops.DailyInput{Date: c.String("date")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// monthCmd creates the month command.
func monthCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "month",
		Usage: "Monthly activity counts (default: current month)",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "year", Aliases: []string{"y"}, Usage: "Year"},
			&cli.IntFlag{Name: "month", Aliases: []string{"m"}, Usage: "Month (1-12)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.MonthlySummary(c.Context, e.db, e.cfg, ops.MonthlyInput{
				Year:  c.Int("year"),
				Month: c.Int("month"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// lifetimeCmd creates the lifetime command.
func lifetimeCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "lifetime",
		Usage: "All-time totals",
		Action: func(c *cli.Context) error {
			output, err := ops.LifetimeSummary(c.Context, e.db)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// searchCmd creates the search command.
func searchCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search event text (default: last 30 days)",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			startFlag(),
			endFlag(),
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultSearchLimit, Usage: "Maximum results"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Search(c.Context, e.db, e.cfg, ops.SearchInput{
				Query:     strings.Join(c.Args().Slice(), " "),
				StartDate: c.String("start"),
				EndDate:   c.String("end"),
				Limit:     c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// datesCmd creates the dates command.
func datesCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "dates",
		Usage: "List dates with stored events, newest first",
		Action: func(c *cli.Context) error {
			output, err := ops.AvailableDates(c.Context, e.db)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export events to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.nestlog/exports/events-<range>-<timestamp>.jsonl)"},
			startFlag(),
			endFlag(),
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, e.db, e.cfg, e.paths(), ops.ExportInput{
				Path:      c.String("path"),
				StartDate: c.String("start"),
				EndDate:   c.String("end"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import events from a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: string(ops.ImportModeSkip), Usage: "Already-stored messages: skip|replace|error"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(c.Context, e.db, e.paths(), ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Delete the events of one message or of a date range",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "message", Usage: "Source message ID"},
			startFlag(),
			endFlag(),
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Purge(c.Context, e.db, ops.PurgeInput{
				MessageID: c.String("message"),
				StartDate: c.String("start"),
				EndDate:   c.String("end"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the dashboard web server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			port := c.Int("port")
			if port <= 0 || port > 65535 {
				return outputError(errors.NewInvalidRequest("port must be between 1 and 65535"))
			}
			srv := web.NewServer(e.db, e.cfg, web.Deps{Source: e.source, Notifier: e.notifier}, Version, c.String("bind"), port)
			return web.Run(srv)
		},
	}
}

// Helper functions

// outputJSON writes v to w as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if nErr, ok := err.(*errors.NestError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", nErr.Code, nErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
