package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/olvconsultores/stratevo/internal/automation"
	"github.com/olvconsultores/stratevo/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Scoring       ScoringConfig       `yaml:"scoring" mapstructure:"scoring"`
	Qualification QualificationConfig `yaml:"qualification" mapstructure:"qualification"`
	Lifecycle     LifecycleConfig     `yaml:"lifecycle" mapstructure:"lifecycle"`
	Automation    automation.Config   `yaml:"automation" mapstructure:"automation"`
	Email         EmailConfig         `yaml:"email" mapstructure:"email"`
	Anthropic     AnthropicConfig     `yaml:"anthropic" mapstructure:"anthropic"`
	Registry      RegistryConfig      `yaml:"registry" mapstructure:"registry"`
	Salesforce    SalesforceConfig    `yaml:"salesforce" mapstructure:"salesforce"`
	Notion        NotionConfig        `yaml:"notion" mapstructure:"notion"`
	Temporal      TemporalConfig      `yaml:"temporal" mapstructure:"temporal"`
	Monitoring    MonitoringConfig    `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	WebhookSecret  string   `yaml:"webhook_secret" mapstructure:"webhook_secret"`
}

// ScoringConfig holds the tenant-wide default sub-score weights.
type ScoringConfig struct {
	Weights model.Weights `yaml:"weights" mapstructure:"weights"`
}

// QualificationConfig tunes batch qualification.
type QualificationConfig struct {
	MaxConcurrency  int           `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	FreshnessWindow time.Duration `yaml:"freshness_window" mapstructure:"freshness_window"`
}

// LifecycleConfig tunes lifecycle transitions.
type LifecycleConfig struct {
	OpTimeout time.Duration `yaml:"op_timeout" mapstructure:"op_timeout"`
}

// EmailConfig selects and configures the outbound e-mail provider.
type EmailConfig struct {
	Provider string       `yaml:"provider" mapstructure:"provider"`
	From     string       `yaml:"from" mapstructure:"from"`
	Resend   ResendConfig `yaml:"resend" mapstructure:"resend"`
	SMTP     SMTPConfig   `yaml:"smtp" mapstructure:"smtp"`
	// BreakerThreshold consecutive transient failures pause delivery.
	BreakerThreshold int           `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown" mapstructure:"breaker_cooldown"`
}

// ResendConfig holds Resend API settings.
type ResendConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// RegistryConfig configures the CNPJ registry lookup.
type RegistryConfig struct {
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RateLimit float64       `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// NotionConfig holds Notion API credentials.
type NotionConfig struct {
	Token     string `yaml:"token" mapstructure:"token"`
	CompanyDB string `yaml:"company_db" mapstructure:"company_db"`
}

// TemporalConfig configures the Temporal client and worker.
type TemporalConfig struct {
	HostPort     string        `yaml:"host_port" mapstructure:"host_port"`
	Namespace    string        `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue    string        `yaml:"task_queue" mapstructure:"task_queue"`
	TickInterval time.Duration `yaml:"tick_interval" mapstructure:"tick_interval"`
}

// MonitoringConfig configures admin alerting.
type MonitoringConfig struct {
	WebhookURL               string `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs        int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	FailedDeliveryThreshold  int    `yaml:"failed_delivery_threshold" mapstructure:"failed_delivery_threshold"`
	PendingDeliveryThreshold int    `yaml:"pending_delivery_threshold" mapstructure:"pending_delivery_threshold"`
	StaleQuarantineDays      int    `yaml:"stale_quarantine_days" mapstructure:"stale_quarantine_days"`
	StaleQuarantineThreshold int    `yaml:"stale_quarantine_threshold" mapstructure:"stale_quarantine_threshold"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STRATEVO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without a default still need to be known to viper for env
	// overrides to reach Unmarshal.
	for _, key := range []string{
		"store.database_url", "server.webhook_secret", "email.from",
		"email.resend.key", "email.smtp.host", "email.smtp.username", "email.smtp.password",
		"anthropic.key", "salesforce.client_id", "salesforce.username", "salesforce.key_path",
		"notion.token", "notion.company_db", "monitoring.webhook_url",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "stratevo.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("scoring.weights.sector", 30)
	v.SetDefault("scoring.weights.geo", 25)
	v.SetDefault("scoring.weights.size", 20)
	v.SetDefault("scoring.weights.maturity", 10)
	v.SetDefault("scoring.weights.product", 15)
	v.SetDefault("qualification.max_concurrency", 4)
	v.SetDefault("qualification.freshness_window", "24h")
	v.SetDefault("lifecycle.op_timeout", "10s")
	v.SetDefault("automation.max_attempts", 5)
	v.SetDefault("automation.batch_size", 100)
	v.SetDefault("automation.default_due_days", 1)
	v.SetDefault("automation.send_timeout", "15s")
	v.SetDefault("automation.lease", "5m")
	v.SetDefault("automation.backoff.initial_backoff", "1m")
	v.SetDefault("automation.backoff.max_backoff", "6h")
	v.SetDefault("automation.backoff.multiplier", 2.0)
	v.SetDefault("automation.backoff.jitter_fraction", 0.2)
	v.SetDefault("email.provider", "resend")
	v.SetDefault("email.resend.base_url", "https://api.resend.com")
	v.SetDefault("email.resend.rate_limit", 2.0)
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.breaker_threshold", 5)
	v.SetDefault("email.breaker_cooldown", "1m")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("registry.base_url", "https://brasilapi.com.br/api")
	v.SetDefault("registry.timeout", "10s")
	v.SetDefault("registry.rate_limit", 3.0)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "stratevo-automation")
	v.SetDefault("temporal.tick_interval", "15m")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.failed_delivery_threshold", 1)
	v.SetDefault("monitoring.pending_delivery_threshold", 500)
	v.SetDefault("monitoring.stale_quarantine_days", 14)
	v.SetDefault("monitoring.stale_quarantine_threshold", 20)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is the command name:
// serve, qualify, automation, worker, import, enrich, crm or migrate.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlite_path is required for the sqlite driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be postgres or sqlite", c.Store.Driver))
	}

	w := c.Scoring.Weights
	if w.Sector < 0 || w.Geo < 0 || w.Size < 0 || w.Maturity < 0 || w.Product < 0 {
		errs = append(errs, "scoring.weights values must be >= 0")
	}
	if w.Sum() <= 0 {
		errs = append(errs, "scoring.weights must sum to > 0")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		errs = append(errs, c.validateEmail()...)
	case "qualify":
		if c.Qualification.MaxConcurrency < 1 || c.Qualification.MaxConcurrency > 50 {
			errs = append(errs, "qualification.max_concurrency must be between 1 and 50")
		}
	case "automation", "worker":
		if c.Automation.MaxAttempts < 1 {
			errs = append(errs, "automation.max_attempts must be >= 1")
		}
		errs = append(errs, c.validateEmail()...)
		if mode == "worker" && c.Temporal.HostPort == "" {
			errs = append(errs, "temporal.host_port is required")
		}
	case "crm":
		if c.Salesforce.ClientID == "" {
			errs = append(errs, "salesforce.client_id is required")
		}
		if c.Salesforce.Username == "" {
			errs = append(errs, "salesforce.username is required")
		}
		if c.Salesforce.KeyPath == "" {
			errs = append(errs, "salesforce.key_path is required")
		}
	case "import", "enrich", "migrate":
	default:
		errs = append(errs, fmt.Sprintf("unknown mode %q", mode))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateEmail() []string {
	var errs []string
	if c.Email.From == "" {
		errs = append(errs, "email.from is required")
	}
	switch c.Email.Provider {
	case "resend":
		if c.Email.Resend.Key == "" {
			errs = append(errs, "email.resend.key is required")
		}
	case "smtp":
		if c.Email.SMTP.Host == "" {
			errs = append(errs, "email.smtp.host is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("email.provider %q must be resend or smtp", c.Email.Provider))
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
