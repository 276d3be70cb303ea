package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

var validate = validator.New()

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Telegram     TelegramConfig
	WhatsApp     WhatsAppConfig
	Sheets       SheetsConfig
	Webhooks     WebhooksConfig
	FeatureFlags FeatureFlagsConfig
}

// Load reads the environment into Config. envconfig enforces presence of
// required values; the validate tags cover formats and cross-field rules
// envconfig cannot express.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PAQUETEBOT_APP_ENV" required:"true"`
	Port         string `envconfig:"PAQUETEBOT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PAQUETEBOT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PAQUETEBOT_LOG_WARN_STACK" default:"false"`

	AdminTelegramIDs []int64  `envconfig:"PAQUETEBOT_ADMIN_TELEGRAM_IDS"`
	AdminWhatsAppIDs []string `envconfig:"PAQUETEBOT_ADMIN_WHATSAPP_IDS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"PAQUETEBOT_DB_DSN" required:"true"`

	MaxOpenConns    int           `envconfig:"PAQUETEBOT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PAQUETEBOT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PAQUETEBOT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PAQUETEBOT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PAQUETEBOT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PAQUETEBOT_REDIS_ADDR"`
	Password     string        `envconfig:"PAQUETEBOT_REDIS_PASSWORD"`
	DB           int           `envconfig:"PAQUETEBOT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PAQUETEBOT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PAQUETEBOT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PAQUETEBOT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PAQUETEBOT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PAQUETEBOT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type TelegramConfig struct {
	BotToken      string        `envconfig:"PAQUETEBOT_TELEGRAM_BOT_TOKEN" required:"true"`
	APIBaseURL    string        `envconfig:"PAQUETEBOT_TELEGRAM_API_BASE_URL" default:"https://api.telegram.org" validate:"url"`
	WebhookSecret string        `envconfig:"PAQUETEBOT_TELEGRAM_WEBHOOK_SECRET"`
	SendTimeout   time.Duration `envconfig:"PAQUETEBOT_TELEGRAM_SEND_TIMEOUT" default:"10s"`
}

type WhatsAppConfig struct {
	AccessToken   string        `envconfig:"PAQUETEBOT_WHATSAPP_ACCESS_TOKEN" required:"true"`
	PhoneNumberID string        `envconfig:"PAQUETEBOT_WHATSAPP_PHONE_NUMBER_ID" required:"true"`
	VerifyToken   string        `envconfig:"PAQUETEBOT_WHATSAPP_VERIFY_TOKEN" required:"true"`
	APIBaseURL    string        `envconfig:"PAQUETEBOT_WHATSAPP_API_BASE_URL" default:"https://graph.facebook.com/v19.0" validate:"url"`
	SendTimeout   time.Duration `envconfig:"PAQUETEBOT_WHATSAPP_SEND_TIMEOUT" default:"10s"`
}

type SheetsConfig struct {
	Enabled         bool   `envconfig:"PAQUETEBOT_SHEETS_ENABLED" default:"false"`
	SpreadsheetID   string `envconfig:"PAQUETEBOT_SHEETS_SPREADSHEET_ID" validate:"required_if=Enabled true"`
	CredentialsFile string `envconfig:"PAQUETEBOT_SHEETS_CREDENTIALS_FILE" validate:"required_if=Enabled true"`
	Range           string `envconfig:"PAQUETEBOT_SHEETS_RANGE" default:"Sheet1!A:E"`
}

type WebhooksConfig struct {
	DedupTTL time.Duration `envconfig:"PAQUETEBOT_WEBHOOK_DEDUP_TTL" default:"24h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PAQUETEBOT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PAQUETEBOT_AUTO_MIGRATE" default:"false"`
}
