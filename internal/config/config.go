package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"schoolprep/domain/incident"
	"schoolprep/internal"
	"schoolprep/internal/errors"
)

// Output formats understood by the CLI
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Config represents the complete application configuration
type Config struct {
	Source   SourceConfig
	Output   OutputConfig
	Database DatabaseConfig
	Prepare  PrepareConfig
	LogLevel internal.LogLevel
}

// SourceConfig locates the raw incident table
type SourceConfig struct {
	Path  string
	Sheet string
}

// OutputConfig holds where and how the analysis dataset is written
type OutputConfig struct {
	Dir     string
	Formats []string
}

// DatabaseConfig holds the optional run ledger connection
type DatabaseConfig struct {
	URL string
}

// PrepareConfig holds the dataset preparation rules
type PrepareConfig struct {
	Seed              int64
	TopRaceMode       string
	EmptyColumnPolicy string
	SchemaFile        string
	Schema            incident.Schema
}

// LoadDotEnv loads an optional .env file. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return errors.Wrapf(err, "failed to load %s", p)
		}
	}
	return nil
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	config.Source = SourceConfig{
		Path:  getEnvOrDefault("SCHOOLPREP_INPUT", ""),
		Sheet: getEnvOrDefault("SCHOOLPREP_SHEET", "Sheet1"),
	}

	config.Output = OutputConfig{
		Dir:     getEnvOrDefault("SCHOOLPREP_OUTPUT_DIR", "./out"),
		Formats: ParseFormats(getEnvOrDefault("SCHOOLPREP_FORMATS", FormatCSV)),
	}

	config.Database = DatabaseConfig{
		URL: getEnvOrDefault("DATABASE_URL", ""),
	}

	seed, err := getEnvInt64OrDefault("SCHOOLPREP_SEED", 42)
	if err != nil {
		return nil, err
	}
	config.Prepare = PrepareConfig{
		Seed:              seed,
		TopRaceMode:       getEnvOrDefault("SCHOOLPREP_TOP_RACE_MODE", "resample"),
		EmptyColumnPolicy: getEnvOrDefault("SCHOOLPREP_EMPTY_COLUMN_POLICY", "fail"),
		SchemaFile:        getEnvOrDefault("SCHOOLPREP_SCHEMA_FILE", ""),
	}

	level, err := internal.ParseLogLevel(getEnvOrDefault("LOG_LEVEL", "INFO"))
	if err != nil {
		return nil, errors.ConfigInvalid(err.Error())
	}
	config.LogLevel = level

	if err := config.Resolve(); err != nil {
		return nil, err
	}
	return config, nil
}

// Resolve loads the schema overrides and validates the configuration. Call it
// again after changing fields, e.g. from CLI flags.
func (c *Config) Resolve() error {
	schema, err := LoadSchema(c.Prepare.SchemaFile)
	if err != nil {
		return errors.Wrap(err, "failed to load schema overrides")
	}
	c.Prepare.Schema = schema

	if err := validateConfig(c); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	return nil
}

// ParseFormats splits a comma list of output formats, dropping blanks and duplicates
func ParseFormats(s string) []string {
	var formats []string
	seen := make(map[string]bool)
	for _, f := range strings.Split(s, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		formats = append(formats, f)
	}
	return formats
}

func validateConfig(config *Config) error {
	if len(config.Output.Formats) == 0 {
		return errors.ConfigInvalid("at least one output format is required")
	}
	for _, f := range config.Output.Formats {
		if f != FormatCSV && f != FormatXLSX {
			return errors.ConfigInvalid(fmt.Sprintf("unsupported output format %q", f))
		}
	}
	if config.Output.Dir == "" {
		return errors.ConfigInvalid("output directory is required")
	}
	switch config.Prepare.TopRaceMode {
	case "resample", "derive":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unknown top race mode %q", config.Prepare.TopRaceMode))
	}
	switch config.Prepare.EmptyColumnPolicy {
	case "fail", "skip":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unknown empty column policy %q", config.Prepare.EmptyColumnPolicy))
	}
	if err := config.Prepare.Schema.Validate(); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	return nil
}

// schemaOverrides is the YAML shape of SCHOOLPREP_SCHEMA_FILE
type schemaOverrides struct {
	EthnicityOrder []string          `yaml:"ethnicity_order"`
	Renames        map[string]string `yaml:"renames"`
	LocaleCodes    map[int]string    `yaml:"locale_codes"`
}

// LoadSchema returns the default schema with the overrides in path applied.
// An empty path returns the default schema.
func LoadSchema(path string) (incident.Schema, error) {
	schema := incident.DefaultSchema()
	if path == "" {
		return schema, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return schema, errors.IOError("failed to read schema file", err)
	}

	var overrides schemaOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return schema, errors.ConfigInvalid(fmt.Sprintf("invalid schema file %s: %v", path, err))
	}

	if len(overrides.EthnicityOrder) > 0 {
		schema.EthnicityOrder = overrides.EthnicityOrder
	}
	for raw, canonical := range overrides.Renames {
		schema.Renames[raw] = canonical
	}
	for code, desc := range overrides.LocaleCodes {
		schema.LocaleCodes[code] = desc
	}
	return schema, nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s must be an integer, got %q", key, value))
	}
	return n, nil
}
