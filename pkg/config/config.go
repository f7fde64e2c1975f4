package config

import "time"

type Config struct {
	App      AppConfig      `env-prefix:"APP_"`
	HTTP     HTTPConfig     `env-prefix:"HTTP_"`
	Database DatabaseConfig `env-prefix:"DB_"`
	Auth     AuthConfig     `env-prefix:"AUTH_"`
	AI       AIConfig       `env-prefix:"AI_"`
	STT      STTConfig      `env-prefix:"STT_"`
	Calendar CalendarConfig `env-prefix:"CALENDAR_"`
	Pipeline PipelineConfig `env-prefix:"PIPELINE_"`
	Vault    VaultConfig    `env-prefix:"VAULT_"`
	Drive    DriveConfig    `env-prefix:"DRIVE_"`
	Telegram TelegramConfig `env-prefix:"TELEGRAM_"`
	Discord  DiscordConfig  `env-prefix:"DISCORD_"`
	Recorder RecorderConfig `env-prefix:"RECORDER_"`
}

type AppConfig struct {
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	Pretty   bool   `env:"PRETTY" env-default:"false"`
}

type HTTPConfig struct {
	Addr         string `env:"ADDR" env-default:":8080"`
	MaxBodyBytes int64  `env:"MAX_BODY_BYTES" env-default:"26214400"`
}

type DatabaseConfig struct {
	Path          string `env:"PATH" env-default:"notepilot.db"`
	RetryAttempts uint   `env:"RETRY_ATTEMPTS" env-default:"3"`
}

type AuthConfig struct {
	// Tokens maps bearer tokens to owner ids: "token1:owner1,token2:owner2".
	Tokens map[string]string `env:"TOKENS" env-separator:","`
}

type AIConfig struct {
	Provider string `env:"PROVIDER" env-default:"gemini"`
	APIKey   string `env:"API_KEY"`
	Model    string `env:"MODEL"`
	BaseURL  string `env:"BASE_URL"`
}

type STTConfig struct {
	APIKey   string `env:"API_KEY"`
	BaseURL  string `env:"BASE_URL" env-default:"https://api.openai.com/v1"`
	Model    string `env:"MODEL" env-default:"whisper-1"`
	MaxBytes int64  `env:"MAX_BYTES" env-default:"26214400"`
}

type CalendarConfig struct {
	CredentialsFile string `env:"CREDENTIALS_FILE"`
	// DefaultCalendarID is used for owners without a configured calendar.
	DefaultCalendarID string `env:"DEFAULT_CALENDAR_ID" env-default:"primary"`
}

type PipelineConfig struct {
	TranscribeTimeout time.Duration `env:"TRANSCRIBE_TIMEOUT" env-default:"15s"`
	CategorizeTimeout time.Duration `env:"CATEGORIZE_TIMEOUT" env-default:"4s"`
	CalendarTimeout   time.Duration `env:"CALENDAR_TIMEOUT" env-default:"10s"`
	StoreTimeout      time.Duration `env:"STORE_TIMEOUT" env-default:"5s"`
}

type VaultConfig struct {
	// Path enables the Markdown mirror when set.
	Path         string        `env:"PATH"`
	TemplateFile string        `env:"TEMPLATE_FILE"`
	GitSync      bool          `env:"GIT_SYNC" env-default:"false"`
	GitSSHKey    string        `env:"GIT_SSH_KEY"`
	// SyncTimeout bounds one background commit and push.
	SyncTimeout  time.Duration `env:"SYNC_TIMEOUT" env-default:"1m"`
}

type DriveConfig struct {
	// FolderID enables the vault backup when set together with CredentialsFile.
	FolderID        string        `env:"FOLDER_ID"`
	CredentialsFile string        `env:"CREDENTIALS_FILE"`
	Interval        time.Duration `env:"INTERVAL" env-default:"15m"`
}

type TelegramConfig struct {
	Token string `env:"TOKEN"`
}

type DiscordConfig struct {
	Token string `env:"TOKEN"`
}

type RecorderConfig struct {
	Command  string `env:"COMMAND" env-default:"arecord -q -f cd -t wav"`
	MIMEType string `env:"MIME_TYPE" env-default:"audio/wav"`
}
