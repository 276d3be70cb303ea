package config

const EnvPrefix = "PAQUETEBOT"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (tests, docs).
const (
	EnvAppEnv                = "PAQUETEBOT_APP_ENV"
	EnvPort                  = "PAQUETEBOT_APP_PORT"
	EnvDBDSN                 = "PAQUETEBOT_DB_DSN"
	EnvRedisURL              = "PAQUETEBOT_REDIS_URL"
	EnvTelegramBotToken      = "PAQUETEBOT_TELEGRAM_BOT_TOKEN"
	EnvWhatsAppAccessToken   = "PAQUETEBOT_WHATSAPP_ACCESS_TOKEN"
	EnvWhatsAppPhoneNumberID = "PAQUETEBOT_WHATSAPP_PHONE_NUMBER_ID"
	EnvWhatsAppVerifyToken   = "PAQUETEBOT_WHATSAPP_VERIFY_TOKEN"
	EnvSheetsEnabled         = "PAQUETEBOT_SHEETS_ENABLED"
	EnvSheetsSpreadsheetID   = "PAQUETEBOT_SHEETS_SPREADSHEET_ID"
)
