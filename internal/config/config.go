package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	Mpesa     MpesaConfig     `yaml:"mpesa"`
	SendGrid  SendGridConfig  `yaml:"sendgrid"`
	Firebase  FirebaseConfig  `yaml:"firebase"`
	Log       LogConfig       `yaml:"log"`
	Rental    RentalConfig    `yaml:"rental"`
	Chat      ChatConfig      `yaml:"chat"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	ReadTimeoutSeconds     int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `yaml:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret            string `yaml:"secret"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes"`
}

// MpesaConfig contains Daraja STK push credentials
type MpesaConfig struct {
	ConsumerKey     string `yaml:"consumer_key"`
	ConsumerSecret  string `yaml:"consumer_secret"`
	ShortCode       string `yaml:"shortcode"`
	PassKey         string `yaml:"passkey"`
	CallbackBaseURL string `yaml:"callback_base_url"`
	Environment     string `yaml:"environment"` // "sandbox" or "production"
	TestMode        bool   `yaml:"test_mode"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

// SendGridConfig contains billing email settings. Email is disabled without an API key.
type SendGridConfig struct {
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

// FirebaseConfig contains push notification settings. Push is disabled without credentials.
type FirebaseConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	ProjectID       string `yaml:"project_id"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// RentalConfig contains rental lifecycle timing
type RentalConfig struct {
	ApprovalWindowHours   int `yaml:"approval_window_hours"`
	PaymentClaimSeconds   int `yaml:"payment_claim_seconds"`
	ReconcileAfterSeconds int `yaml:"reconcile_after_seconds"`
	ReconcileBatchSize    int `yaml:"reconcile_batch_size"`
	PopularGpusLimit      int `yaml:"popular_gpus_limit"`
}

// ChatConfig contains chat assistant session settings
type ChatConfig struct {
	SessionTTLMinutes int `yaml:"session_ttl_minutes"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	ReconcilePayments    string `yaml:"reconcile_payments"`
	ExpireStaleApprovals string `yaml:"expire_stale_approvals"`
	ExpireChatSessions   string `yaml:"expire_chat_sessions"`
}

// Load reads configuration from a YAML file. A .env file in the working directory, when
// present, is loaded first so its values take part in the environment overrides.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Server
	setString(&c.Server.Host, "SERVER_HOST")
	setInt(&c.Server.Port, "SERVER_PORT")

	// Database
	setString(&c.Database.Host, "DB_HOST")
	setInt(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Database, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSL_MODE")

	// JWT
	setString(&c.JWT.Secret, "JWT_SECRET")

	// M-Pesa
	setString(&c.Mpesa.ConsumerKey, "MPESA_CONSUMER_KEY")
	setString(&c.Mpesa.ConsumerSecret, "MPESA_CONSUMER_SECRET")
	setString(&c.Mpesa.ShortCode, "MPESA_SHORTCODE")
	setString(&c.Mpesa.PassKey, "MPESA_PASSKEY")
	setString(&c.Mpesa.CallbackBaseURL, "MPESA_CALLBACK_BASE_URL")
	setString(&c.Mpesa.Environment, "MPESA_ENVIRONMENT")
	setBool(&c.Mpesa.TestMode, "MPESA_TEST_MODE")

	// SendGrid
	setString(&c.SendGrid.APIKey, "SENDGRID_API_KEY")
	setString(&c.SendGrid.FromEmail, "SENDGRID_FROM_EMAIL")

	// Firebase
	setString(&c.Firebase.CredentialsFile, "FIREBASE_CREDENTIALS_FILE")
	setString(&c.Firebase.ProjectID, "FIREBASE_PROJECT_ID")

	// Log
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

// Validate checks if the configuration is valid and fills in defaults
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 15
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = 60
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = 10
	}

	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = 24 * 60
	}

	// M-Pesa validation
	switch strings.ToLower(c.Mpesa.Environment) {
	case "":
		c.Mpesa.Environment = "sandbox"
	case "sandbox", "production":
	default:
		return fmt.Errorf("invalid mpesa environment: %q", c.Mpesa.Environment)
	}
	if !c.Mpesa.TestMode && c.Mpesa.CallbackBaseURL == "" {
		return fmt.Errorf("mpesa callback base URL is required unless test mode is on")
	}
	if c.Mpesa.TimeoutSeconds == 0 {
		c.Mpesa.TimeoutSeconds = 30
	}

	// SendGrid defaults
	if c.SendGrid.FromName == "" {
		c.SendGrid.FromName = "CoreShare"
	}
	if c.SendGrid.APIKey != "" && c.SendGrid.FromEmail == "" {
		return fmt.Errorf("sendgrid from_email is required when an API key is set")
	}

	// Rental defaults
	if c.Rental.ApprovalWindowHours == 0 {
		c.Rental.ApprovalWindowHours = 48
	}
	if c.Rental.PaymentClaimSeconds == 0 {
		c.Rental.PaymentClaimSeconds = 90
	}
	if c.Rental.ReconcileAfterSeconds == 0 {
		c.Rental.ReconcileAfterSeconds = 120
	}
	if c.Rental.ReconcileBatchSize == 0 {
		c.Rental.ReconcileBatchSize = 50
	}
	if c.Rental.PopularGpusLimit == 0 {
		c.Rental.PopularGpusLimit = 10
	}

	// Chat defaults
	if c.Chat.SessionTTLMinutes == 0 {
		c.Chat.SessionTTLMinutes = 60
	}

	// Scheduler defaults
	if c.Scheduler.ReconcilePayments == "" {
		c.Scheduler.ReconcilePayments = "0 */5 * * * *" // Every 5 minutes
	}
	if c.Scheduler.ExpireStaleApprovals == "" {
		c.Scheduler.ExpireStaleApprovals = "0 15 * * * *" // Hourly at :15
	}
	if c.Scheduler.ExpireChatSessions == "" {
		c.Scheduler.ExpireChatSessions = "0 0 * * * *" // Hourly
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) ApprovalWindow() time.Duration {
	return time.Duration(c.Rental.ApprovalWindowHours) * time.Hour
}

func (c *Config) PaymentClaimTTL() time.Duration {
	return time.Duration(c.Rental.PaymentClaimSeconds) * time.Second
}

func (c *Config) ChatSessionTTL() time.Duration {
	return time.Duration(c.Chat.SessionTTLMinutes) * time.Minute
}
