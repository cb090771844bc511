package config

import (
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Source kinds accepted by SOURCE_KIND.
const (
	SourceCSV      = "csv"
	SourceXLSX     = "xlsx"
	SourceSheets   = "sheets"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	SourceKind string `envconfig:"SOURCE_KIND" default:"csv" validate:"oneof=csv xlsx sheets postgres sqlite"`

	CSVPath string `envconfig:"CSV_PATH" default:"./data/observations.csv" validate:"required_if=SourceKind csv"`

	XLSXPath  string `envconfig:"XLSX_PATH" validate:"required_if=SourceKind xlsx"`
	XLSXSheet string `envconfig:"XLSX_SHEET" default:"Sheet1"`

	SheetsSpreadsheetID   string `envconfig:"SHEETS_SPREADSHEET_ID" validate:"required_if=SourceKind sheets"`
	SheetsRange           string `envconfig:"SHEETS_RANGE" default:"Sheet1!A1:I"`
	SheetsCredentialsFile string `envconfig:"SHEETS_CREDENTIALS_FILE" default:"key.json"`

	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     string `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"pricewatch"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" default:"pricewatch"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"prices"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`

	SQLitePath        string `envconfig:"SQLITE_PATH" default:"./data/observations.sqlite"`
	ObservationsTable string `envconfig:"OBSERVATIONS_TABLE" default:"observations" validate:"required,max=63"`

	// Comma separated. Write decimal tokens with a point ("1.5"); they also
	// match product names spelled with a decimal comma.
	PackSizeTokens []string `envconfig:"PACK_SIZE_TOKENS"`

	HTTPAddr        string `envconfig:"HTTP_ADDR" default:":8050" validate:"required"`
	RefreshSchedule string `envconfig:"REFRESH_SCHEDULE" default:"@every 15m" validate:"required"`
	CacheSize       int    `envconfig:"CACHE_SIZE" default:"128" validate:"gte=1"`

	TargetsFile    string `envconfig:"TARGETS_FILE" default:"./targets.yaml"`
	MaxConcurrency int    `envconfig:"MAX_CONCURRENCY" default:"3" validate:"gte=1"`
	RateLimitMs    int    `envconfig:"RATE_LIMIT_MS" default:"2000" validate:"gte=0"`
	MaxRetries     int    `envconfig:"MAX_RETRIES" default:"3" validate:"gte=1"`
	CSVOutputPath  string `envconfig:"CSV_OUTPUT_PATH" default:"./data/observations.csv"`
	ChromeBin      string `envconfig:"CHROME_BIN"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
}

// Load reads the .env file if present, then the environment, and validates
// the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}
	return FromEnv()
}

// FromEnv populates a Config from the process environment only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}
