package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultConfigPath        = "config.toml"
	DefaultHTTPAddr          = ":8080"
	DefaultWebhookPath       = "/webhook/telegram"
	DefaultPGHost            = "127.0.0.1"
	DefaultPGPort            = 5432
	DefaultPGUser            = "postgres"
	DefaultPGDatabase        = "mediavault"
	DefaultPGSSLMode         = "disable"
	DefaultStorageProvider   = "localfs"
	DefaultStorageRoot       = "data/telegram-media"
	DefaultPublicBaseURL     = "http://localhost:8080/media"
	DefaultTelegramAPI       = "https://api.telegram.org/bot%s/%s"
	DefaultTelegramFileAPI   = "https://api.telegram.org/file/bot%s/%s"
	DefaultDownloadTimeout   = 60
	DefaultMaxDownloadBytes  = 20 * 1024 * 1024
	DefaultOwnerID           = "00000000-0000-0000-0000-000000000000"
	DefaultDedupTTLHours     = 24
	DefaultDedupKeyPrefix    = "mediavault:update:"
	DefaultAMQPExchange      = "mediavault.activity"
	DefaultShutdownTimeoutMs = 15000
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Telegram TelegramConfig `toml:"telegram"`
	Postgres PostgresConfig `toml:"postgres"`
	Storage  StorageConfig  `toml:"storage"`
	Ingest   IngestConfig   `toml:"ingest"`
	Redis    RedisConfig    `toml:"redis"`
	AMQP     AMQPConfig     `toml:"amqp"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `toml:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr              string `toml:"addr" validate:"required"`
	WebhookPath       string `toml:"webhook_path" validate:"required,startswith=/"`
	ShutdownTimeoutMs int    `toml:"shutdown_timeout_ms" validate:"gte=0"`
}

// TelegramConfig holds the bot credential and webhook secret. Both are usually
// supplied through TELEGRAM_BOT_TOKEN / TELEGRAM_WEBHOOK_SECRET rather than the file.
type TelegramConfig struct {
	BotToken               string `toml:"bot_token"`
	WebhookSecret          string `toml:"webhook_secret"`
	APIEndpoint            string `toml:"api_endpoint" validate:"required,contains=%s"`
	FileEndpoint           string `toml:"file_endpoint" validate:"required,contains=%s"`
	DownloadTimeoutSeconds int    `toml:"download_timeout" validate:"gt=0"`
	MaxDownloadBytes       int64  `toml:"max_download_bytes" validate:"gt=0"`
}

func (c TelegramConfig) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutSeconds) * time.Second
}

type PostgresConfig struct {
	// DSN overrides the discrete fields when set.
	DSN      string `toml:"dsn"`
	Host     string `toml:"host" validate:"required_without=DSN"`
	Port     int    `toml:"port" validate:"required_without=DSN,gte=0,lte=65535"`
	User     string `toml:"user" validate:"required_without=DSN"`
	Password string `toml:"password"`
	Database string `toml:"database" validate:"required_without=DSN"`
	SSLMode  string `toml:"sslmode"`
}

// ConnString renders a libpq-style URL accepted by pgx and golang-migrate.
func (c PostgresConfig) ConnString() string {
	if strings.TrimSpace(c.DSN) != "" {
		return strings.TrimSpace(c.DSN)
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	if c.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", c.SSLMode)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

type StorageConfig struct {
	Provider string `toml:"provider" validate:"required,oneof=localfs gcs"`
	// Bucket is the logical bucket name; for gcs it is the GCS bucket.
	Bucket        string `toml:"bucket" validate:"required_if=Provider gcs"`
	Root          string `toml:"root" validate:"required_if=Provider localfs"`
	PublicBaseURL string `toml:"public_base_url" validate:"omitempty,url"`
	// CredentialsFile is an optional service-account JSON for gcs.
	CredentialsFile string `toml:"credentials_file"`
}

type IngestConfig struct {
	OwnerID string `toml:"owner_id" validate:"required,uuid"`
}

type RedisConfig struct {
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db" validate:"gte=0"`
	TTLHours  int    `toml:"ttl_hours" validate:"gte=0"`
	KeyPrefix string `toml:"key_prefix"`
}

func (c RedisConfig) Enabled() bool { return strings.TrimSpace(c.Addr) != "" }

func (c RedisConfig) TTL() time.Duration { return time.Duration(c.TTLHours) * time.Hour }

type AMQPConfig struct {
	URL      string `toml:"url"`
	Exchange string `toml:"exchange" validate:"required_with=URL"`
}

func (c AMQPConfig) Enabled() bool { return strings.TrimSpace(c.URL) != "" }

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:              DefaultHTTPAddr,
			WebhookPath:       DefaultWebhookPath,
			ShutdownTimeoutMs: DefaultShutdownTimeoutMs,
		},
		Telegram: TelegramConfig{
			APIEndpoint:            DefaultTelegramAPI,
			FileEndpoint:           DefaultTelegramFileAPI,
			DownloadTimeoutSeconds: DefaultDownloadTimeout,
			MaxDownloadBytes:       DefaultMaxDownloadBytes,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Storage: StorageConfig{
			Provider:      DefaultStorageProvider,
			Bucket:        "telegram-media",
			Root:          DefaultStorageRoot,
			PublicBaseURL: DefaultPublicBaseURL,
		},
		Ingest: IngestConfig{
			OwnerID: DefaultOwnerID,
		},
		Redis: RedisConfig{
			TTLHours:  DefaultDedupTTLHours,
			KeyPrefix: DefaultDedupKeyPrefix,
		},
		AMQP: AMQPConfig{
			Exchange: DefaultAMQPExchange,
		},
	}
}

// Load reads path (or DefaultConfigPath) over the defaults, applies environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()
	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		key    string
		target *string
	}{
		{key: "TELEGRAM_BOT_TOKEN", target: &cfg.Telegram.BotToken},
		{key: "TELEGRAM_WEBHOOK_SECRET", target: &cfg.Telegram.WebhookSecret},
		{key: "DATABASE_URL", target: &cfg.Postgres.DSN},
		{key: "REDIS_ADDR", target: &cfg.Redis.Addr},
		{key: "AMQP_URL", target: &cfg.AMQP.URL},
		{key: "STORAGE_PUBLIC_BASE_URL", target: &cfg.Storage.PublicBaseURL},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok && strings.TrimSpace(v) != "" {
			*o.target = strings.TrimSpace(v)
		}
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints. Missing Telegram secrets are allowed here:
// the webhook rejects calls at request time instead.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(parts, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
