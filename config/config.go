// Package config has the configuration file for the app
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Environment is the deployment environment the server runs in
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

// String returns the short environment name
func (e Environment) String() string {
	return string(e)
}

// ParseEnvironment maps an ENV value, long or short form, to an Environment
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	}
	return EnvDevelopment, fmt.Errorf("unknown environment %q", s)
}

// Rule and catalog source keywords, anything else is a file path or URL
const (
	SourceEmbedded = "embedded"
	SourcePostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes

	RulesSource    string        // embedded, postgres, file path or http(s) URL
	CatalogSource  string        // embedded or YAML file path
	RulesRefreshAt string        // gocron At() expression, e.g. "06:00;18:00"
	DatabaseURL    string        // Postgres DSN, optional
	RedisURL       string        // Redis URL for shared sessions, optional
	SessionTTL     time.Duration // Lifetime of an idle selection session
	MaxSelection   int           // Maximum medications in one check
	AdminJWTSecret string        // Enables admin routes when set
	BehindProxy    bool          // Reject requests that bypass the reverse proxy
	AllowedOrigins []string      // CORS origins
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               env,
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 65536),      // 64KB default, check payloads are tiny
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default

		RulesSource:    getEnvWithDefault("RULES_SOURCE", SourceEmbedded),
		CatalogSource:  getEnvWithDefault("CATALOG_SOURCE", SourceEmbedded),
		RulesRefreshAt: getEnvWithDefault("RULES_REFRESH_AT", "06:00;18:00"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		SessionTTL:     getDurationEnvWithDefault("SESSION_TTL", time.Hour),
		MaxSelection:   getIntEnvWithDefault("MAX_SELECTION", 20),
		AdminJWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
		BehindProxy:    getBoolEnvWithDefault("BEHIND_PROXY", false),
		AllowedOrigins: splitList(getEnvWithDefault("ALLOWED_ORIGINS", "*")),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	// Validate PORT
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	// Validate ADDRESS
	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	// Validate ENV
	if err := validateEnv(cfg.Env); err != nil {
		return fmt.Errorf("invalid ENV: %w", err)
	}

	// Validate LOG_LEVEL
	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	// Validate MAX_REQUEST_BODY
	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	// Validate MAX_HEADER_SIZE
	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	// Validate LOG_RETENTION_WEEKS
	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	// Validate MAX_LOG_FILE_SIZE
	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if err := validateRulesSource(cfg.RulesSource, cfg.DatabaseURL); err != nil {
		return fmt.Errorf("invalid RULES_SOURCE: %w", err)
	}

	if err := validateCatalogSource(cfg.CatalogSource); err != nil {
		return fmt.Errorf("invalid CATALOG_SOURCE: %w", err)
	}

	if err := validateRefreshAt(cfg.RulesRefreshAt); err != nil {
		return fmt.Errorf("invalid RULES_REFRESH_AT: %w", err)
	}

	if cfg.SessionTTL < time.Minute || cfg.SessionTTL > 24*time.Hour {
		return fmt.Errorf("invalid SESSION_TTL: must be between 1m and 24h, got: %s", cfg.SessionTTL)
	}

	if cfg.MaxSelection < 2 || cfg.MaxSelection > 100 {
		return fmt.Errorf("invalid MAX_SELECTION: must be between 2 and 100, got: %d", cfg.MaxSelection)
	}

	if cfg.AdminJWTSecret != "" && len(cfg.AdminJWTSecret) < 32 {
		return fmt.Errorf("invalid ADMIN_JWT_SECRET: must be at least 32 characters")
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// Check for privileged ports
	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	// Check for localhost/loopback addresses first
	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	// Containers bind to all interfaces
	if ip.IsUnspecified() {
		return nil
	}

	if !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateEnv validates the ENV environment variable
func validateEnv(env Environment) error {
	if env == "" {
		return fmt.Errorf("ENV cannot be empty")
	}

	validEnvs := []Environment{EnvDevelopment, EnvStaging, EnvProduction, EnvTest}
	for _, validEnv := range validEnvs {
		if env == validEnv {
			return nil
		}
	}

	return fmt.Errorf("ENV must be one of: %v, got: %s", validEnvs, env)
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 { // 1 year maximum
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE must be positive, got: %d", size)
	}

	// Minimum 1MB, maximum 1GB
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

// validateRulesSource checks the rule table source is something the parser can read
func validateRulesSource(source, databaseURL string) error {
	switch {
	case source == "":
		return fmt.Errorf("RULES_SOURCE cannot be empty")
	case source == SourceEmbedded:
		return nil
	case source == SourcePostgres:
		if databaseURL == "" {
			return fmt.Errorf("RULES_SOURCE=postgres requires DATABASE_URL")
		}
		return nil
	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		u, err := url.Parse(source)
		if err != nil || u.Host == "" {
			return fmt.Errorf("RULES_SOURCE is not a valid URL: %s", source)
		}
		return validateTableExtension(u.Path)
	default:
		return validateTableExtension(source)
	}
}

// validateTableExtension only accepts the formats the parser knows
func validateTableExtension(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".tsv", ".txt":
		return nil
	}
	return fmt.Errorf("unsupported table format %q, use .yaml, .yml, .tsv or .txt", filepath.Ext(path))
}

// validateCatalogSource checks the catalog source
func validateCatalogSource(source string) error {
	if source == SourceEmbedded {
		return nil
	}
	switch strings.ToLower(filepath.Ext(source)) {
	case ".yaml", ".yml":
		return nil
	}
	return fmt.Errorf("CATALOG_SOURCE must be %q or a YAML file, got: %s", SourceEmbedded, source)
}

// validateRefreshAt checks a "HH:MM;HH:MM" schedule
func validateRefreshAt(at string) error {
	if at == "" {
		return fmt.Errorf("RULES_REFRESH_AT cannot be empty")
	}
	for _, part := range strings.Split(at, ";") {
		if _, err := time.Parse("15:04", strings.TrimSpace(part)); err != nil {
			return fmt.Errorf("RULES_REFRESH_AT entries must be HH:MM, got: %s", part)
		}
	}
	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnvWithDefault gets an environment variable as time.Duration with a default value
func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getBoolEnvWithDefault gets an environment variable as bool with a default value
func getBoolEnvWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"RULES_SOURCE",
		"CATALOG_SOURCE",
		"RULES_REFRESH_AT",
		"DATABASE_URL",
		"REDIS_URL",
		"SESSION_TTL",
		"MAX_SELECTION",
		"ADMIN_JWT_SECRET",
		"BEHIND_PROXY",
		"ALLOWED_ORIGINS",
	}
}
