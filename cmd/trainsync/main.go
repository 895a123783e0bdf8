package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/sheets/v4"

	"github.com/beekhof/training-sync/internal/auth"
	calclient "github.com/beekhof/training-sync/internal/calendar"
	"github.com/beekhof/training-sync/internal/config"
	"github.com/beekhof/training-sync/internal/ics"
	"github.com/beekhof/training-sync/internal/metrics"
	"github.com/beekhof/training-sync/internal/plan"
	"github.com/beekhof/training-sync/internal/sheet"
	"github.com/beekhof/training-sync/internal/sync"
)

func printHelp() {
	fmt.Fprintf(os.Stderr, `Training Sync Tool

Reads a marathon training plan spreadsheet and writes one calendar event per
workout into your Google Calendar.

USAGE:
    %s [OPTIONS]

OPTIONS:
    -h, --help                     Show this help message and exit
    -v, --verbose                  Enable verbose output (show DEBUG logs)
    --config FILE                  Path to JSON config file (optional)
    --workbook PATH                Path to the .xlsx training plan
                                   (default: ./resources/ATC_RUN_SCHEDULES.xlsx)
    --sheet NAME                   Worksheet holding the plan (default: Full_Marathon)
    --sheet-url URL                Read the plan from a Google Sheets spreadsheet instead
    --google-credentials-path PATH Path to Google OAuth credentials JSON file
                                   (default: credentials.json)
    --token-path PATH              Path to store the OAuth token (default: token.json)
    --calendar-id ID               Calendar to write to (default: primary)
    --timezone NAME                IANA time zone for workout times (default: local)
    --auth-mode MODE               "console" to paste the code, "local" for a loopback
                                   redirect (default: console)
    --ics FILE                     Also write the plan to an iCalendar file
    --metrics-file FILE            Write run metrics in Prometheus textfile format
    --dry-run                      Read the plan and log it without touching the calendar

CONFIGURATION PRECEDENCE (highest to lowest):
    1. Command-line flags
    2. Environment variables (TRAINSYNC_WORKBOOK, TRAINSYNC_SHEET, TRAINSYNC_SHEET_URL,
       GOOGLE_CREDENTIALS_PATH, TRAINSYNC_TOKEN_PATH, TRAINSYNC_CALENDAR_ID,
       TRAINSYNC_SUMMARY, TRAINSYNC_TIMEZONE, TRAINSYNC_AUTH_MODE, TRAINSYNC_CALL_DELAY)
    3. Config file (--config)
    4. Defaults

CONFIG FILE:
    {
      "workbook_path": "./resources/ATC_RUN_SCHEDULES.xlsx",
      "sheet_name": "Full_Marathon",
      "google_credentials_path": "credentials.json",
      "token_path": "token.json",
      "calendar_id": "primary",
      "summary": "Marathon Training",
      "timezone": "America/New_York",
      "start_hour": 7,
      "end_hour": 8,
      "call_delay": "200ms"
    }

    The Google credentials JSON file should be in the format downloaded from
    Google Cloud Console, with an "installed" (or "web") section.

DESCRIPTION:
    Rows 9-27 of the worksheet are training weeks. Column A holds the week's
    date; columns D-J hold one workout per day. A cell's fill color gives the
    heart-rate zone. "OFF" cells are rest days.

    IMPORTANT WARNING: every run first DELETES all events matching the event
    title ("Marathon Training") between the plan's first and last workout, then
    inserts the workouts again.

    On first run you will be prompted to authorize access; the token is stored
    and reused on later runs.

EXAMPLES:
    # Sync the default workbook
    %s

    # Check what would be written, and export it as .ics
    %s --dry-run --ics plan.ics

    # Sync from Google Sheets
    %s --sheet-url https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms

`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	// Parse command-line flags
	helpFlag := flag.Bool("help", false, "Show help message")
	helpFlagShort := flag.Bool("h", false, "Show help message (shorthand)")
	verboseFlag := flag.Bool("verbose", false, "Enable verbose output (show DEBUG logs)")
	verboseFlagShort := flag.Bool("v", false, "Enable verbose output (shorthand)")
	dryRun := flag.Bool("dry-run", false, "Read the plan and log it without touching the calendar")
	configFile := flag.String("config", "", "Path to JSON config file (optional)")

	var flags config.Flags
	flag.StringVar(&flags.WorkbookPath, "workbook", "", "Path to the .xlsx training plan")
	flag.StringVar(&flags.SheetName, "sheet", "", "Worksheet holding the plan")
	flag.StringVar(&flags.SheetURL, "sheet-url", "", "Google Sheets URL to read the plan from")
	flag.StringVar(&flags.GoogleCredentialsPath, "google-credentials-path", "", "Path to Google OAuth credentials JSON file")
	flag.StringVar(&flags.TokenPath, "token-path", "", "Path to store the OAuth token")
	flag.StringVar(&flags.CalendarID, "calendar-id", "", "Calendar to write to")
	flag.StringVar(&flags.Timezone, "timezone", "", "IANA time zone for workout times")
	flag.StringVar(&flags.AuthMode, "auth-mode", "", "console or local")
	flag.StringVar(&flags.ICSPath, "ics", "", "Also write the plan to an iCalendar file")
	flag.StringVar(&flags.MetricsPath, "metrics-file", "", "Write run metrics in Prometheus textfile format")
	flag.Parse()

	verbose := *verboseFlag || *verboseFlagShort

	if *helpFlag || *helpFlagShort {
		printHelp()
		os.Exit(0)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.LoadConfig(*configFile, flags)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	recorder := metrics.NewRecorder()
	counts := metrics.Counts{}

	// The Google Sheets source needs credentials before the plan can be read.
	var httpClient *http.Client
	if cfg.SheetURL != "" {
		httpClient = authenticate(ctx, cfg)
	}

	events, err := loadPlan(ctx, cfg, httpClient, verbose)
	if err != nil {
		writeMetrics(cfg, recorder, counts, false)
		log.Fatalf("Failed to read training plan: %v", err)
	}
	counts.Extracted = len(events)
	log.Printf("Read %d workouts from the training plan", len(events))

	if cfg.ICSPath != "" {
		if err := ics.WriteFile(cfg.ICSPath, events); err != nil {
			if errors.Is(err, ics.ErrNoEvents) {
				log.Printf("Warning: no workouts to export, %s not written", cfg.ICSPath)
			} else {
				log.Printf("Warning: failed to export %s: %v", cfg.ICSPath, err)
			}
		} else {
			log.Printf("Wrote %d workouts to %s", len(events), cfg.ICSPath)
		}
	}

	if *dryRun {
		for _, ev := range events {
			log.Printf("%s - %s  %s", ev.Start.Format("Mon 2006-01-02 15:04"), ev.End.Format("15:04"), ev.Description)
		}
		log.Println("Dry run, calendar not changed.")
		return
	}

	if httpClient == nil {
		httpClient = authenticate(ctx, cfg)
	}

	client, err := calclient.NewClient(ctx, httpClient)
	if err != nil {
		log.Fatalf("Failed to create calendar client: %v", err)
	}

	syncer := sync.NewSyncer(client, cfg, verbose)
	result, err := syncer.Sync(ctx, events)

	counts.Listed = result.Listed
	counts.Deleted = result.Deleted
	counts.DeleteFailed = result.DeleteFailed
	counts.Inserted = result.Inserted
	counts.InsertFailed = result.InsertFailed
	success := err == nil && result.Failed() == 0
	writeMetrics(cfg, recorder, counts, success)

	if err != nil {
		log.Fatalf("Sync failed: %v", err)
	}
	if result.Failed() > 0 {
		log.Printf("Sync completed with %d failed calendar call(s)", result.Failed())
		os.Exit(1)
	}

	log.Println("Sync completed successfully.")
}

// authenticate returns an HTTP client authorized for the calendar and, when
// the plan comes from Google Sheets, for reading spreadsheets.
func authenticate(ctx context.Context, cfg *config.Config) *http.Client {
	scopes := []string{calendar.CalendarEventsScope}
	if cfg.SheetURL != "" {
		scopes = append(scopes, sheets.SpreadsheetsReadonlyScope)
	}

	oauthConfig, err := config.LoadGoogleCredentials(cfg.GoogleCredentialsPath, scopes...)
	if err != nil {
		log.Fatalf("Failed to load Google credentials: %v", err)
	}

	flow := auth.ConsoleFlow(os.Stdin, os.Stdout)
	if cfg.AuthMode == config.AuthModeLocal {
		flow = auth.LocalServerFlow(os.Stdout, 5*time.Minute)
	}

	httpClient, err := auth.GetAuthenticatedClient(ctx, oauthConfig, auth.NewFileTokenStore(cfg.TokenPath), flow)
	if err != nil {
		log.Fatalf("Failed to authenticate: %v", err)
	}
	return httpClient
}

// loadPlan reads the worksheet and extracts its workouts.
func loadPlan(ctx context.Context, cfg *config.Config, httpClient *http.Client, verbose bool) ([]plan.WorkoutEvent, error) {
	extractor := plan.NewExtractor()
	extractor.Summary = cfg.Summary
	extractor.Location = cfg.Location
	extractor.StartHour = *cfg.StartHour
	extractor.EndHour = *cfg.EndHour
	extractor.Verbose = verbose

	if cfg.SheetURL != "" {
		table, err := sheet.LoadGoogleSheet(ctx, httpClient, cfg.SheetURL, cfg.SheetName, plan.LastRow, plan.LastColumn)
		if err != nil {
			return nil, err
		}
		return extractor.Extract(table)
	}

	workbook, err := sheet.OpenWorkbook(cfg.WorkbookPath, cfg.SheetName)
	if err != nil {
		return nil, err
	}
	defer workbook.Close()

	return extractor.Extract(workbook)
}

func writeMetrics(cfg *config.Config, recorder *metrics.Recorder, counts metrics.Counts, success bool) {
	if cfg.MetricsPath == "" {
		return
	}
	recorder.Observe(counts, time.Now(), success)
	if err := recorder.WriteFile(cfg.MetricsPath); err != nil {
		log.Printf("Warning: %v", err)
	}
}
