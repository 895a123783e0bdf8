package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/beekhof/training-sync/internal/sheet"
)

// Defaults
const (
	DefaultWorkbookPath    = "./resources/ATC_RUN_SCHEDULES.xlsx"
	DefaultSheetName       = "Full_Marathon"
	DefaultCredentialsPath = "credentials.json"
	DefaultTokenPath       = "token.json"
	DefaultCalendarID      = "primary"
	DefaultSummary         = "Marathon Training"
	DefaultStartHour       = 7
	DefaultEndHour         = 8
	DefaultCallDelay       = 200 * time.Millisecond
	AuthModeConsole        = "console"
	AuthModeLocal          = "local"
)

// GoogleCredentials represents the structure of Google OAuth credentials JSON file.
type GoogleCredentials struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"installed"`
	Web struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"web"`
}

// LoadGoogleCredentials loads Google OAuth credentials from a JSON file and
// returns an OAuth2 config for the requested scopes. The redirect URL is the
// first of the file's redirect_uris.
func LoadGoogleCredentials(path string, scopes ...string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds GoogleCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	if creds.Installed.ClientID == "" && creds.Web.ClientID == "" {
		return nil, fmt.Errorf("no client_id found in credentials file (expected 'installed' or 'web' section)")
	}

	oauthConfig, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	return oauthConfig, nil
}

// Duration is a time.Duration that reads from JSON as "200ms" or as a number of milliseconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value) * time.Millisecond
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}

	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Config holds the configuration for the training plan sync tool.
type Config struct {
	WorkbookPath          string    `json:"workbook_path,omitempty"`
	SheetName             string    `json:"sheet_name,omitempty"`
	SheetURL              string    `json:"sheet_url,omitempty"` // Read the plan from Google Sheets instead of the workbook
	GoogleCredentialsPath string    `json:"google_credentials_path,omitempty"`
	TokenPath             string    `json:"token_path,omitempty"`
	CalendarID            string    `json:"calendar_id,omitempty"`
	Summary               string    `json:"summary,omitempty"`  // Event title, also the query for events from earlier runs
	Timezone              string    `json:"timezone,omitempty"` // IANA name, e.g. "Europe/Berlin"; empty means local
	StartHour             *int      `json:"start_hour,omitempty"`
	EndHour               *int      `json:"end_hour,omitempty"`
	CallDelay             *Duration `json:"call_delay,omitempty"` // Minimum gap between calendar API calls
	AuthMode              string    `json:"auth_mode,omitempty"`  // "console" or "local"
	ICSPath               string    `json:"ics_path,omitempty"`
	MetricsPath           string    `json:"metrics_path,omitempty"`

	Location *time.Location `json:"-"`
}

// Flags holds the command-line overrides. Empty values are ignored.
type Flags struct {
	WorkbookPath          string
	SheetName             string
	SheetURL              string
	GoogleCredentialsPath string
	TokenPath             string
	CalendarID            string
	Timezone              string
	AuthMode              string
	ICSPath               string
	MetricsPath           string
}

// LoadConfigFromFile loads configuration from a JSON file.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// LoadConfig loads configuration with the following precedence (highest to lowest):
// 1. Command-line flags
// 2. Environment variables
// 3. Config file
// 4. Defaults
// Returns an error if any value is invalid.
func LoadConfig(configFile string, flags Flags) (*Config, error) {
	var config Config

	// Step 1: Load from config file if provided
	if configFile != "" {
		fileConfig, err := LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
		config = *fileConfig
	}

	// Step 2: Override with environment variables
	overrideFromEnv(&config.WorkbookPath, "TRAINSYNC_WORKBOOK")
	overrideFromEnv(&config.SheetName, "TRAINSYNC_SHEET")
	overrideFromEnv(&config.SheetURL, "TRAINSYNC_SHEET_URL")
	overrideFromEnv(&config.GoogleCredentialsPath, "GOOGLE_CREDENTIALS_PATH")
	overrideFromEnv(&config.TokenPath, "TRAINSYNC_TOKEN_PATH")
	overrideFromEnv(&config.CalendarID, "TRAINSYNC_CALENDAR_ID")
	overrideFromEnv(&config.Summary, "TRAINSYNC_SUMMARY")
	overrideFromEnv(&config.Timezone, "TRAINSYNC_TIMEZONE")
	overrideFromEnv(&config.AuthMode, "TRAINSYNC_AUTH_MODE")

	if callDelay := os.Getenv("TRAINSYNC_CALL_DELAY"); callDelay != "" {
		d, err := time.ParseDuration(callDelay)
		if err != nil {
			// Plain numbers are milliseconds
			ms, convErr := strconv.Atoi(callDelay)
			if convErr != nil {
				return nil, fmt.Errorf("invalid TRAINSYNC_CALL_DELAY value: %w", err)
			}
			d = time.Duration(ms) * time.Millisecond
		}
		config.CallDelay = &Duration{d}
	}

	// Step 3: Override with command-line flags (highest priority)
	overrideFromFlag(&config.WorkbookPath, flags.WorkbookPath)
	overrideFromFlag(&config.SheetName, flags.SheetName)
	overrideFromFlag(&config.SheetURL, flags.SheetURL)
	overrideFromFlag(&config.GoogleCredentialsPath, flags.GoogleCredentialsPath)
	overrideFromFlag(&config.TokenPath, flags.TokenPath)
	overrideFromFlag(&config.CalendarID, flags.CalendarID)
	overrideFromFlag(&config.Timezone, flags.Timezone)
	overrideFromFlag(&config.AuthMode, flags.AuthMode)
	overrideFromFlag(&config.ICSPath, flags.ICSPath)
	overrideFromFlag(&config.MetricsPath, flags.MetricsPath)

	// Step 4: Apply defaults and validate
	setDefault(&config.WorkbookPath, DefaultWorkbookPath)
	setDefault(&config.SheetName, DefaultSheetName)
	setDefault(&config.GoogleCredentialsPath, DefaultCredentialsPath)
	setDefault(&config.TokenPath, DefaultTokenPath)
	setDefault(&config.CalendarID, DefaultCalendarID)
	setDefault(&config.Summary, DefaultSummary)
	setDefault(&config.AuthMode, AuthModeConsole)

	if config.StartHour == nil {
		h := DefaultStartHour
		config.StartHour = &h
	}
	if config.EndHour == nil {
		h := DefaultEndHour
		config.EndHour = &h
	}
	if config.CallDelay == nil {
		config.CallDelay = &Duration{DefaultCallDelay}
	}

	if *config.StartHour < 0 || *config.StartHour > 23 {
		return nil, fmt.Errorf("start_hour must be between 0 and 23, got %d", *config.StartHour)
	}
	if *config.EndHour < 0 || *config.EndHour > 23 {
		return nil, fmt.Errorf("end_hour must be between 0 and 23, got %d", *config.EndHour)
	}
	if *config.StartHour >= *config.EndHour {
		return nil, fmt.Errorf("start_hour (%d) must be before end_hour (%d)", *config.StartHour, *config.EndHour)
	}

	if config.CallDelay.Duration < 0 {
		return nil, fmt.Errorf("call_delay must not be negative, got %v", config.CallDelay.Duration)
	}

	if config.AuthMode != AuthModeConsole && config.AuthMode != AuthModeLocal {
		return nil, fmt.Errorf("auth_mode must be '%s' or '%s', got '%s'", AuthModeConsole, AuthModeLocal, config.AuthMode)
	}

	if config.SheetURL != "" {
		if _, err := sheet.SpreadsheetID(config.SheetURL); err != nil {
			return nil, err
		}
	}

	config.Location = time.Local
	if config.Timezone != "" {
		loc, err := time.LoadLocation(config.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", config.Timezone, err)
		}
		config.Location = loc
	}

	return &config, nil
}

func overrideFromEnv(field *string, name string) {
	if v := os.Getenv(name); v != "" {
		*field = v
	}
}

func overrideFromFlag(field *string, value string) {
	if value != "" {
		*field = value
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
