package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	domainconfig "wedding-backend/domain/config"
	"wedding-backend/domain/keys"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"serverAddress"`
	Environment   string `yaml:"environment"`

	// AWS configuration
	AWSRegion       string        `yaml:"awsRegion"`
	TableName       string        `yaml:"tableName"`
	InvitationIndex string        `yaml:"invitationIndex"` // GSI1
	StatusIndex     string        `yaml:"statusIndex"`     // GSI2
	AdminDateIndex  string        `yaml:"adminDateIndex"`  // GSI3
	EventBusName    string        `yaml:"eventBusName"`
	StorageTimeout  time.Duration `yaml:"storageTimeout"`
	UseMemoryStore  bool          `yaml:"useMemoryStore"`

	// Event served by the public endpoints when a request names none
	DefaultEventID string `yaml:"defaultEventId"`

	// Business rules
	MaxPartySize             int  `yaml:"maxPartySize"`
	MaxWriteRetries          int  `yaml:"maxWriteRetries"`
	DefaultInvitationMaxUses int  `yaml:"defaultInvitationMaxUses"`
	EnforceRSVPDeadline      bool `yaml:"enforceRsvpDeadline"`

	// Authentication
	JWTSecret   string   `yaml:"jwtSecret"`
	JWTIssuer   string   `yaml:"jwtIssuer"`
	JWTAudience []string `yaml:"jwtAudience"`

	// HTTP
	AllowedOrigins     []string `yaml:"allowedOrigins"`
	RateLimitPerMinute int      `yaml:"rateLimitPerMinute"`

	// Notifications
	SendGridAPIKey string `yaml:"sendgridApiKey"`
	MailFrom       string `yaml:"mailFrom"`
	MailFromName   string `yaml:"mailFromName"`

	// Logging
	LogLevel string `yaml:"logLevel"`

	// Feature flags
	EnableMetrics bool `yaml:"enableMetrics"`
	EnableTracing bool `yaml:"enableTracing"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	rules := domainconfig.DefaultDomainConfig()
	return &Config{
		ServerAddress:            ":8080",
		Environment:              "development",
		AWSRegion:                "us-east-1",
		TableName:                "wedding-rsvp",
		InvitationIndex:          "InvitationIndex",
		StatusIndex:              "StatusIndex",
		AdminDateIndex:           "AdminDateIndex",
		EventBusName:             "wedding-rsvp-events",
		StorageTimeout:           3 * time.Second,
		DefaultEventID:           "wedding",
		MaxPartySize:             rules.MaxPartySize,
		MaxWriteRetries:          rules.MaxWriteRetries,
		DefaultInvitationMaxUses: rules.DefaultInvitationMaxUses,
		EnforceRSVPDeadline:      rules.EnforceRSVPDeadline,
		JWTIssuer:                "wedding-admin",
		AllowedOrigins:           []string{"http://localhost:3000"},
		RateLimitPerMinute:       30,
		MailFrom:                 "rsvp@example.com",
		MailFromName:             "Wedding RSVP",
		LogLevel:                 "info",
	}
}

// LoadConfig loads configuration from, in increasing priority: defaults, the
// YAML file named by CONFIG_FILE, a .env file and the environment.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s not found", path)
		}
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.TableName = getEnv("TABLE_NAME", c.TableName)
	c.InvitationIndex = getEnv("INVITATION_INDEX", c.InvitationIndex)
	c.StatusIndex = getEnv("STATUS_INDEX", c.StatusIndex)
	c.AdminDateIndex = getEnv("ADMIN_DATE_INDEX", c.AdminDateIndex)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)
	c.StorageTimeout = getEnvDuration("STORAGE_TIMEOUT", c.StorageTimeout)
	c.UseMemoryStore = getEnvBool("USE_MEMORY_STORE", c.UseMemoryStore)
	c.DefaultEventID = getEnv("DEFAULT_EVENT_ID", c.DefaultEventID)

	c.MaxPartySize = getEnvInt("MAX_PARTY_SIZE", c.MaxPartySize)
	c.MaxWriteRetries = getEnvInt("MAX_WRITE_RETRIES", c.MaxWriteRetries)
	c.DefaultInvitationMaxUses = getEnvInt("DEFAULT_INVITATION_MAX_USES", c.DefaultInvitationMaxUses)
	c.EnforceRSVPDeadline = getEnvBool("ENFORCE_RSVP_DEADLINE", c.EnforceRSVPDeadline)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)
	c.JWTAudience = getEnvList("JWT_AUDIENCE", c.JWTAudience)

	c.AllowedOrigins = getEnvList("ALLOWED_ORIGINS", c.AllowedOrigins)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)

	c.SendGridAPIKey = getEnv("SENDGRID_API_KEY", c.SendGridAPIKey)
	c.MailFrom = getEnv("MAIL_FROM", c.MailFrom)
	c.MailFromName = getEnv("MAIL_FROM_NAME", c.MailFromName)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.MaxPartySize < 1 {
		return fmt.Errorf("MAX_PARTY_SIZE must be at least 1")
	}
	if c.MaxWriteRetries < 1 {
		return fmt.Errorf("MAX_WRITE_RETRIES must be at least 1")
	}
	if c.DefaultInvitationMaxUses < 1 {
		return fmt.Errorf("DEFAULT_INVITATION_MAX_USES must be at least 1")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE cannot be negative")
	}
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.TableName == "" {
			return fmt.Errorf("TABLE_NAME is required")
		}
		if c.UseMemoryStore {
			return fmt.Errorf("USE_MEMORY_STORE is not allowed in production")
		}
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DomainRules returns the business rules with the configured overrides.
func (c *Config) DomainRules() *domainconfig.DomainConfig {
	rules := domainconfig.DefaultDomainConfig()
	rules.MaxPartySize = c.MaxPartySize
	rules.MaxWriteRetries = c.MaxWriteRetries
	rules.DefaultInvitationMaxUses = c.DefaultInvitationMaxUses
	rules.EnforceRSVPDeadline = c.EnforceRSVPDeadline
	if rules.DefaultGuestAllowed > rules.MaxPartySize {
		rules.DefaultGuestAllowed = rules.MaxPartySize
	}
	return rules
}

// IndexNames maps the logical secondary indexes to their deployed names.
func (c *Config) IndexNames() map[string]string {
	return map[string]string{
		keys.InvitationIndex.Name: c.InvitationIndex,
		keys.StatusIndex.Name:     c.StatusIndex,
		keys.AdminDateIndex.Name:  c.AdminDateIndex,
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
