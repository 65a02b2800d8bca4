package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	DB        DBConfig
	Provider  ProviderConfig
	Upload    UploadConfig
	Admin     AdminConfig
	Server    ServerConfig
	Reconcile ReconcileConfig
	Log       LogConfig
}

// DBConfig holds database configuration
type DBConfig struct {
	URL      string `envconfig:"DATABASE_URL"`
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD"`
	Database string `envconfig:"DB_NAME" default:"video_website"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"10"`
	// Memory switches to the process-local store, for development without Postgres.
	Memory bool `envconfig:"DB_MEMORY" default:"false"`
}

// ProviderConfig holds the video-hosting provider configuration
type ProviderConfig struct {
	APIKey      string        `envconfig:"VIDGUARD_API_KEY" required:"true"`
	BaseURL     string        `envconfig:"VIDGUARD_BASE_URL" default:"https://api.vidguard.to"`
	FolderID    string        `envconfig:"VIDGUARD_FOLDER_ID"`
	Timeout     time.Duration `envconfig:"VIDGUARD_TIMEOUT" default:"30s"`
	RateLimit   float64       `envconfig:"VIDGUARD_RATE_LIMIT" default:"5"`
	MaxRetries  int           `envconfig:"VIDGUARD_MAX_RETRIES" default:"3"`
	EmbedDomain string        `envconfig:"EMBED_DOMAIN" default:"listeamed.net"`
}

// UploadConfig holds local upload staging configuration
type UploadConfig struct {
	Dir         string `envconfig:"UPLOAD_DIR" default:"uploads"`
	MaxFileSize int64  `envconfig:"MAX_FILE_SIZE" default:"1000000000"`
}

// AdminConfig holds the shared admin credential and session settings
type AdminConfig struct {
	Username      string        `envconfig:"ADMIN_USERNAME" default:"admin"`
	Password      string        `envconfig:"ADMIN_PASSWORD" required:"true"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	SecureCookie  bool          `envconfig:"SESSION_SECURE_COOKIE" default:"false"`
	LoginRate     int           `envconfig:"ADMIN_LOGIN_RATE" default:"5"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port    int    `envconfig:"SERVER_PORT" default:"3000"`
	GinMode string `envconfig:"GIN_MODE" default:"release"`
}

// ReconcileConfig holds the pending remote-upload sweep configuration
type ReconcileConfig struct {
	Enabled      bool          `envconfig:"RECONCILE_ENABLED" default:"true"`
	Interval     time.Duration `envconfig:"RECONCILE_INTERVAL" default:"2m"`
	InitialDelay time.Duration `envconfig:"RECONCILE_INITIAL_DELAY" default:"10s"`
	// MaxFailedPolls is how many sweeps may see a job reported failed before it is skipped
	MaxFailedPolls int `envconfig:"RECONCILE_MAX_FAILED_POLLS" default:"3"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

// DSN returns the Postgres data source name
func (c *DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Load loads configuration from environment variables, reading a .env file
// first when one is present in the working directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	var cfg Config

	if err := envconfig.Process("", &cfg.DB); err != nil {
		return nil, fmt.Errorf("failed to load db config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Provider); err != nil {
		return nil, fmt.Errorf("failed to load provider config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Upload); err != nil {
		return nil, fmt.Errorf("failed to load upload config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Admin); err != nil {
		return nil, fmt.Errorf("failed to load admin config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Reconcile); err != nil {
		return nil, fmt.Errorf("failed to load reconcile config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to load log config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Provider.APIKey == "" {
		return fmt.Errorf("VIDGUARD_API_KEY is required")
	}
	if c.Provider.RateLimit <= 0 {
		return fmt.Errorf("VIDGUARD_RATE_LIMIT must be positive")
	}
	if c.Provider.MaxRetries < 0 {
		return fmt.Errorf("VIDGUARD_MAX_RETRIES must not be negative")
	}
	if c.Admin.Password == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required")
	}
	if len(c.Admin.SessionSecret) < 16 {
		return fmt.Errorf("SESSION_SECRET must be at least 16 characters")
	}
	if c.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if c.Reconcile.Enabled && c.Reconcile.Interval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive")
	}
	return nil
}
