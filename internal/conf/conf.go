package conf

import (
	"os"
	"strconv"
	"strings"
)

// Filter modes for group eligibility
const (
	FilterModeBlacklist = "blacklist"
	FilterModeWhitelist = "whitelist"
)

// Config represents application configuration
type Config struct {
	// NapCat gateway configuration
	WSURL      string
	APIBaseURL string

	// Message store configuration
	DBFile string

	// AI configuration
	AI AIConfig

	// SMTP / email configuration
	SMTP  SMTPConfig
	Email EmailConfig

	// Delivery schedule, HH:MM entries
	RunTimes []string

	// Batch and paging limits
	BatchMaxMessages int
	PageSize         int

	// Eligibility filter configuration
	Filter FilterConfig

	// Operator HTTP server listen address
	HTTPAddr string
}

// AIConfig contains model endpoint configuration
type AIConfig struct {
	APIURL string
	APIKey string
	Model  string
}

// SMTPConfig contains mail relay configuration
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

// EmailConfig contains message envelope configuration
type EmailConfig struct {
	From       string
	To         string
	SenderName string
}

// FilterConfig governs which inbound messages are retained
type FilterConfig struct {
	Mode               string // blacklist or whitelist
	GroupBlacklist     []string
	GroupWhitelist     []string
	PrivateChatEnabled bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	return &Config{
		WSURL:      envOr("WS_URL", "ws://127.0.0.1:3001"),
		APIBaseURL: envOr("API_BASE_URL", "http://127.0.0.1:3000"),
		DBFile:     envOr("DB_FILE", "./napcat_messages.db"),
		AI: AIConfig{
			APIURL: envOr("AI_API_URL", "https://ark.cn-beijing.volces.com/api/v3/chat/completions"),
			APIKey: os.Getenv("AI_API_KEY"),
			Model:  os.Getenv("AI_MODEL"),
		},
		SMTP: SMTPConfig{
			Host:     envOr("SMTP_HOST", "smtp.gmail.com"),
			Port:     envIntOr("SMTP_PORT", 587),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		Email: EmailConfig{
			From:       os.Getenv("EMAIL_FROM"),
			To:         os.Getenv("EMAIL_TO"),
			SenderName: envOr("EMAIL_SENDER_NAME", "NapCat💌助手"),
		},
		RunTimes:         envListOr("RUN_TIMES", []string{"09:00", "12:00", "18:00"}),
		BatchMaxMessages: envIntOr("BATCH_MAX_MESSAGES", 200),
		PageSize:         envIntOr("PAGE_SIZE", 20),
		Filter: FilterConfig{
			Mode:               envOr("GROUP_FILTER_MODE", FilterModeBlacklist),
			GroupBlacklist:     envListOr("GROUP_BLACKLIST", nil),
			GroupWhitelist:     envListOr("GROUP_WHITELIST", nil),
			PrivateChatEnabled: envOr("PRIVATE_CHAT_ENABLED", "true") != "false",
		},
		HTTPAddr: envOr("HTTP_ADDR", "0.0.0.0:8080"),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.WSURL == "" {
		return &ConfigError{Field: "WS_URL", Message: "required"}
	}
	if c.DBFile == "" {
		return &ConfigError{Field: "DB_FILE", Message: "required"}
	}
	if c.BatchMaxMessages <= 0 {
		return &ConfigError{Field: "BATCH_MAX_MESSAGES", Message: "must be positive"}
	}
	if c.PageSize <= 0 {
		return &ConfigError{Field: "PAGE_SIZE", Message: "must be positive"}
	}
	if c.Filter.Mode != FilterModeBlacklist && c.Filter.Mode != FilterModeWhitelist {
		return &ConfigError{Field: "GROUP_FILTER_MODE", Message: "must be blacklist or whitelist"}
	}
	for _, t := range c.RunTimes {
		if _, _, err := ParseRunTime(t); err != nil {
			return &ConfigError{Field: "RUN_TIMES", Message: "invalid entry " + t}
		}
	}
	return nil
}

// ParseRunTime parses an HH:MM schedule slot
func ParseRunTime(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, &ConfigError{Field: "RUN_TIMES", Message: "missing colon in " + s}
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, &ConfigError{Field: "RUN_TIMES", Message: "bad hour in " + s}
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, &ConfigError{Field: "RUN_TIMES", Message: "bad minute in " + s}
	}
	return hour, minute, nil
}

// SplitList splits a comma-separated option value, dropping empty entries
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func envListOr(key string, fallback []string) []string {
	if val := os.Getenv(key); val != "" {
		return SplitList(val)
	}
	return fallback
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
