package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Notification backends.
const (
	NotifyNone = "none"
	NotifySMTP = "smtp"
	NotifySES  = "ses"
)

type Config struct {
	// Server
	Port     string
	Env      string // development, production
	LogLevel string

	// Google service account and targets
	Google struct {
		ClientEmail   string
		PrivateKey    string
		SpreadsheetID string
		SheetName     string
		FolderID      string
		PublicLink    bool
	}

	// Confirmation email
	NotifyBackend string
	SMTP          struct {
		Host      string
		Port      int
		User      string
		Pass      string
		FromEmail string
		FromName  string
	}
	SES struct {
		Region    string
		FromEmail string
	}

	// Limits
	MaxUploadSizeMB    int
	RateLimitPerMinute int
	StripImageMetadata bool

	Cors struct {
		TrustedOrigins []string
	}

	// Tracing is off when JaegerEndpoint is empty.
	Tracing struct {
		JaegerEndpoint string
		SampleRatio    float64
	}
}

// Load reads configuration from the environment (and a .env file if one
// exists), then applies command line flags from args.
func Load(args []string) (*Config, error) {
	// Load .env file if it exists (don't error if missing)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []error

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&cfg.Port, "port", getEnv("PORT", "8080"), "Server port")
	fs.StringVar(&cfg.Env, "env", getEnv("ENV", "development"), "Environment (development, production)")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")

	cfg.Google.ClientEmail = getEnv("GOOGLE_CLIENT_EMAIL", "")
	cfg.Google.PrivateKey = getEnv("GOOGLE_PRIVATE_KEY", "")
	cfg.Google.SpreadsheetID = getEnv("SPREADSHEET_ID", "")
	cfg.Google.SheetName = getEnv("SHEET_NAME", "Sheet1")
	cfg.Google.FolderID = getEnv("FOLDER_ID", "")
	cfg.Google.PublicLink = getEnvBool("DRIVE_PUBLIC_LINK", false, &errs)

	cfg.NotifyBackend = strings.ToLower(getEnv("NOTIFY_BACKEND", NotifyNone))
	cfg.SMTP.Host = getEnv("SMTP_HOST", "smtp.gmail.com")
	cfg.SMTP.Port = getEnvInt("SMTP_PORT", 587, &errs)
	cfg.SMTP.User = getEnv("SMTP_USER", "")
	cfg.SMTP.Pass = getEnv("SMTP_PASS", "")
	cfg.SMTP.FromEmail = getEnv("SMTP_FROM_EMAIL", "")
	cfg.SMTP.FromName = getEnv("SMTP_FROM_NAME", "")
	cfg.SES.Region = getEnv("AWS_REGION", "")
	cfg.SES.FromEmail = getEnv("SES_FROM_EMAIL", "")

	cfg.MaxUploadSizeMB = getEnvInt("MAX_UPLOAD_SIZE_MB", 10, &errs)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 30, &errs)
	cfg.StripImageMetadata = getEnvBool("STRIP_IMAGE_METADATA", false, &errs)

	cfg.Tracing.JaegerEndpoint = getEnv("JAEGER_ENDPOINT", "")
	cfg.Tracing.SampleRatio = getEnvFloat("TRACE_SAMPLE_RATIO", 1, &errs)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Parse CORS trusted origins from comma-separated env var
	if origins := getEnv("CORS_TRUSTED_ORIGINS", ""); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				cfg.Cors.TrustedOrigins = append(cfg.Cors.TrustedOrigins, trimmed)
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports every missing or invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	required := map[string]string{
		"GOOGLE_CLIENT_EMAIL": c.Google.ClientEmail,
		"GOOGLE_PRIVATE_KEY":  c.Google.PrivateKey,
		"SPREADSHEET_ID":      c.Google.SpreadsheetID,
		"FOLDER_ID":           c.Google.FolderID,
		"SHEET_NAME":          c.Google.SheetName,
	}

	switch c.NotifyBackend {
	case NotifyNone:
	case NotifySMTP:
		required["SMTP_HOST"] = c.SMTP.Host
		required["SMTP_USER"] = c.SMTP.User
		required["SMTP_PASS"] = c.SMTP.Pass
		if c.SMTP.FromEmail == "" && !strings.Contains(c.SMTP.User, "@") {
			errs = append(errs, fmt.Errorf("SMTP_FROM_EMAIL is required when SMTP_USER is not an email address"))
		}
	case NotifySES:
		required["AWS_REGION"] = c.SES.Region
		required["SES_FROM_EMAIL"] = c.SES.FromEmail
	default:
		errs = append(errs, fmt.Errorf("NOTIFY_BACKEND must be one of none, smtp, ses (got %q)", c.NotifyBackend))
	}

	for _, key := range slices.Sorted(maps.Keys(required)) {
		if required[key] == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}

	if c.MaxUploadSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_SIZE_MB must be positive"))
	}
	if c.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative"))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("TRACE_SAMPLE_RATIO must be between 0 and 1"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SMTPFrom is the envelope sender: SMTP_FROM_EMAIL, or the SMTP user.
func (c *Config) SMTPFrom() string {
	if c.SMTP.FromEmail != "" {
		return c.SMTP.FromEmail
	}
	return c.SMTP.User
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return l, nil
}

// MaxUploadBytes is MaxUploadSizeMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadSizeMB) << 20
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int, errs *[]error) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be an integer (got %q)", key, v))
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool, errs *[]error) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a boolean (got %q)", key, v))
		return fallback
	}
	return b
}

func getEnvFloat(key string, fallback float64, errs *[]error) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a number (got %q)", key, v))
		return fallback
	}
	return f
}
