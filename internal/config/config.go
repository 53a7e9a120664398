// Package config loads the orchestrator's process configuration from a
// YAML file overlaid with environment variables, following the
// file-then-env precedence the teacher's config loader uses.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/skyfleet/orchestrator/internal/logger"
)

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Host                     string  `yaml:"host" env:"SERVER_HOST"`
	Port                     int     `yaml:"port" env:"SERVER_PORT"`
	SubmitRateLimitPerSecond float64 `yaml:"submit_rate_limit_per_second" env:"SERVER_SUBMIT_RATE_LIMIT_PER_SECOND"`
	SubmitRateLimitBurst     int     `yaml:"submit_rate_limit_burst" env:"SERVER_SUBMIT_RATE_LIMIT_BURST"`
	CORSAllowedOrigins       []string `yaml:"cors_allowed_origins"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig controls the Postgres connection.
type DatabaseConfig struct {
	DSN             string `yaml:"dsn" env:"DATABASE_DSN"`
	Host            string `yaml:"host" env:"DATABASE_HOST"`
	Port            int    `yaml:"port" env:"DATABASE_PORT"`
	User            string `yaml:"user" env:"DATABASE_USER"`
	Password        string `yaml:"password" env:"DATABASE_PASSWORD"`
	Name            string `yaml:"name" env:"DATABASE_NAME"`
	SSLMode         string `yaml:"sslmode" env:"DATABASE_SSLMODE"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
	MigrateOnStart  bool   `yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
}

// ConnectionString builds a libpq DSN from the host-based fields. When DSN
// is set explicitly it takes precedence (checked by the caller).
func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// ReconcilerConfig controls the periodic reconciler driver (spec §4.8, §9).
type ReconcilerConfig struct {
	TickInterval           time.Duration `yaml:"tick_interval" env:"RECONCILER_TICK_INTERVAL"`
	CronExpr               string        `yaml:"cron_expr" env:"RECONCILER_CRON_EXPR"`
	JobHeartbeatTimeout    time.Duration `yaml:"job_heartbeat_timeout" env:"RECONCILER_JOB_HEARTBEAT_TIMEOUT"`
	RunLockWaitPoll        time.Duration `yaml:"run_lock_wait_poll" env:"RECONCILER_RUN_LOCK_WAIT_POLL"`
	MaxSubmissionRetries   int           `yaml:"max_submission_retries" env:"RECONCILER_MAX_SUBMISSION_RETRIES"`
	SubmissionRetryBackoff time.Duration `yaml:"submission_retry_backoff" env:"RECONCILER_SUBMISSION_RETRY_BACKOFF"`
}

// GatewayConfig controls the reverse-proxy integration (spec §4.7).
type GatewayConfig struct {
	SitesEnabledDir string `yaml:"sites_enabled_dir" env:"GATEWAY_SITES_ENABLED_DIR"`
	ReloadCommand   string `yaml:"reload_command" env:"GATEWAY_RELOAD_COMMAND"`
	CertbotCommand  string `yaml:"certbot_command" env:"GATEWAY_CERTBOT_COMMAND"`
	SkipCertIssue   bool   `yaml:"skip_cert_issue" env:"GATEWAY_SKIP_CERT_ISSUE"`
}

// NameGeneratorConfig controls auto-generated run_name word lists.
type NameGeneratorConfig struct {
	Adjectives []string `yaml:"adjectives"`
	Nouns      []string `yaml:"nouns"`
}

// Config is the top-level process configuration.
type Config struct {
	Server      ServerConfig        `yaml:"server"`
	Database    DatabaseConfig      `yaml:"database"`
	Logging     logger.Config       `yaml:"logging"`
	Reconciler  ReconcilerConfig    `yaml:"reconciler"`
	Gateway     GatewayConfig       `yaml:"gateway"`
	NameGen     NameGeneratorConfig `yaml:"name_generator"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                     "0.0.0.0",
			Port:                     8080,
			SubmitRateLimitPerSecond: 5,
			SubmitRateLimitBurst:     10,
			CORSAllowedOrigins:       []string{"*"},
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
			MigrateOnStart:  true,
		},
		Logging: logger.Config{Level: "info", Format: "text", Output: "stdout", FilePrefix: "orchestrator"},
		Reconciler: ReconcilerConfig{
			TickInterval:           2 * time.Second,
			JobHeartbeatTimeout:    90 * time.Second,
			RunLockWaitPoll:        50 * time.Millisecond,
			MaxSubmissionRetries:   3,
			SubmissionRetryBackoff: 30 * time.Second,
		},
		Gateway: GatewayConfig{
			SitesEnabledDir: "/etc/nginx/sites-enabled",
			ReloadCommand:   "systemctl reload nginx.service",
			CertbotCommand:  "certbot certonly",
		},
		NameGen: NameGeneratorConfig{
			Adjectives: defaultAdjectives,
			Nouns:      defaultNouns,
		},
	}
}

// Load reads configuration from a YAML file (CONFIG_FILE env var, else
// ./configs/config.yaml if present) and overlays environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		path = "configs/config.yaml"
	}
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	applyDatabaseURLOverride(cfg)
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyDatabaseURLOverride(cfg *Config) {
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		cfg.Database.DSN = dsn
	}
}

var defaultAdjectives = []string{"swift", "quiet", "bold", "calm", "eager", "proud", "brisk", "keen"}

var defaultNouns = []string{"falcon", "harbor", "meadow", "comet", "cedar", "ember", "quartz", "ridge"}
