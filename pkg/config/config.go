package config

import (
	"fmt"
	"os"
	"strconv"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv/autoload"
)

// Profile selects the destination table set and the update policy.
type Profile string

const (
	// ProfileLive writes to the canonical transactions/payments tables.
	// Existing transactions are never updated in this profile.
	ProfileLive Profile = "live"
	// ProfileShadow writes to the *_shadow staging tables used for
	// reconciliation. Updates are allowed.
	ProfileShadow Profile = "shadow"
	// ProfileBackfill targets the shadow tables and additionally creates
	// shadow transactions from their live counterparts when a payment
	// arrives for a transaction the shadow set has not seen yet.
	ProfileBackfill Profile = "backfill"
)

// CommitMode controls the database transaction boundary per input file.
type CommitMode string

const (
	// CommitPerFile wraps a whole file in one database transaction and
	// bulk-loads facts with explicitly assigned ids.
	CommitPerFile CommitMode = "file"
	// CommitPerRow commits each row independently.
	CommitPerRow CommitMode = "row"
)

// TenderMode selects how payment-method flags map to a tender code.
type TenderMode string

const (
	// TenderStrict accepts exactly card=true/cash=false/voucher=false and
	// rejects every other combination as a row error.
	TenderStrict TenderMode = "strict"
	// TenderMapped maps each flag to its configured code and falls back to
	// the unknown code without failing the row.
	TenderMapped TenderMode = "mapped"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Import   ImportConfig
	Watch    WatchConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// TenderCodes holds the configured tender code per payment-method flag,
// used only in mapped tender mode.
type TenderCodes struct {
	Card    string
	Cash    string
	Voucher string
	Unknown string
}

type ImportConfig struct {
	// IncomingDir is the root directory the upstream system drops extract
	// files into. The processing/archive/error directories live under it.
	IncomingDir string

	Profile    Profile
	CommitMode CommitMode

	TenderMode  TenderMode
	TenderCodes TenderCodes

	// PANStripEquals strips a trailing '=' track separator from incoming
	// PANs before lookups. Upstream terminal firmware versions disagree on
	// whether the separator is included, so keep both behind a flag.
	PANStripEquals bool

	// MinTransactionDate skips rows older than this date (YYYY-MM-DD).
	// Empty means no cutoff.
	MinTransactionDate string

	// DryRun runs the full pipeline and logs every decision without
	// writing to the destination tables.
	DryRun bool
}

type WatchConfig struct {
	// Schedule is a standard 5-field cron spec for directory polling.
	Schedule string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "fuelsync"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Import: ImportConfig{
			IncomingDir: getEnv("FUELSYNC_INCOMING_DIR", "./incoming"),
			Profile:     Profile(getEnv("FUELSYNC_PROFILE", string(ProfileLive))),
			CommitMode:  CommitMode(getEnv("FUELSYNC_COMMIT_MODE", string(CommitPerFile))),
			TenderMode:  TenderMode(getEnv("FUELSYNC_TENDER_MODE", string(TenderStrict))),
			TenderCodes: TenderCodes{
				Card:    getEnv("FUELSYNC_TENDER_CARD", "0"),
				Cash:    getEnv("FUELSYNC_TENDER_CASH", "UNKN"),
				Voucher: getEnv("FUELSYNC_TENDER_VOUCHER", "UNKN"),
				Unknown: getEnv("FUELSYNC_TENDER_UNKNOWN", "UNKN"),
			},
			PANStripEquals:     getEnvAsBool("FUELSYNC_PAN_STRIP_EQUALS", false),
			MinTransactionDate: getEnv("FUELSYNC_MIN_TRANS_DATE", ""),
			DryRun:             getEnvAsBool("FUELSYNC_DRY_RUN", false),
		},
		Watch: WatchConfig{
			Schedule: getEnv("FUELSYNC_WATCH_SCHEDULE", "*/5 * * * *"),
		},
	}

	switch cfg.Import.Profile {
	case ProfileLive, ProfileShadow, ProfileBackfill:
	default:
		return nil, fmt.Errorf("invalid FUELSYNC_PROFILE %q", cfg.Import.Profile)
	}
	switch cfg.Import.CommitMode {
	case CommitPerFile, CommitPerRow:
	default:
		return nil, fmt.Errorf("invalid FUELSYNC_COMMIT_MODE %q", cfg.Import.CommitMode)
	}
	switch cfg.Import.TenderMode {
	case TenderStrict, TenderMapped:
	default:
		return nil, fmt.Errorf("invalid FUELSYNC_TENDER_MODE %q", cfg.Import.TenderMode)
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
