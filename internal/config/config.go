package config

import (
	"fmt"
	"slices"

	"github.com/caarlos0/env/v11"

	"shiftbot/internal/shift"
)

type Config struct {
	Port      string `env:"PORT" envDefault:"3000"`
	Env       string `env:"ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	TelegramURL string `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	BotToken    string `env:"BOT_TOKEN,required"`
	GroupChatID int64  `env:"GROUP_CHAT_ID"`
	PollTimeout int    `env:"POLL_TIMEOUT_SEC" envDefault:"20"`

	MongoURI string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB  string `env:"MONGODB_DATABASE" envDefault:"shiftbot"`

	Timezone      string `env:"TIMEZONE" envDefault:"Asia/Yangon"`
	DefaultLocale string `env:"DEFAULT_LOCALE" envDefault:"en"`

	// Role membership. Users in neither list work the rotating promo
	// shifts, matching the workforce default.
	StandardDayUserIDs []int64 `env:"STANDARD_DAY_USER_IDS" envSeparator:","`
	FindingUserIDs     []int64 `env:"FINDING_USER_IDS" envSeparator:","`

	EscalationIntervalMin int `env:"ESCALATION_INTERVAL_MIN" envDefault:"5"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// RoleFor resolves a user's role from the configured membership lists.
func (c *Config) RoleFor(userID int64) shift.Role {
	if slices.Contains(c.StandardDayUserIDs, userID) {
		return shift.RoleStandardDay
	}
	if slices.Contains(c.FindingUserIDs, userID) {
		return shift.RoleRotatingFinding
	}
	return shift.RoleRotatingPromo
}
