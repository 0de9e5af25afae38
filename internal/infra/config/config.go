package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"gm-dashboard/internal/domain"
)

// DefaultTimezone используется, если TZ_DEFAULT пуст или не распознан.
const DefaultTimezone = "Asia/Tokyo"

// ErrInvalidTimezone возвращается, если часовой пояс не удаётся загрузить.
var ErrInvalidTimezone = errors.New("неизвестный часовой пояс")

// SlackConfig описывает доступ к каналу отчётов.
type SlackConfig struct {
	BotToken           string `envconfig:"SLACK_BOT_TOKEN"`
	ChannelID          string `envconfig:"SLACK_CHANNEL_ID"`
	APIURL             string `envconfig:"SLACK_API_URL"`
	ArchiveBase        string `envconfig:"SLACK_ARCHIVE_BASE" default:"https://slack.com/archives"`
	HistoryDays        int    `envconfig:"SLACK_HISTORY_DAYS" default:"14"`
	ProfileConcurrency int    `envconfig:"SLACK_PROFILE_CONCURRENCY" default:"4"`
}

// GoogleConfig описывает доступ сервисного аккаунта к таблице задач.
type GoogleConfig struct {
	ProjectID   string `envconfig:"GOOGLE_PROJECT_ID"`
	ClientEmail string `envconfig:"GOOGLE_CLIENT_EMAIL"`
	PrivateKey  string `envconfig:"GOOGLE_PRIVATE_KEY"`
	SheetID     string `envconfig:"SHEET_ID"`
	SheetRange  string `envconfig:"SHEET_RANGE"`
}

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	TZ          string `envconfig:"TZ_DEFAULT" default:"Asia/Tokyo"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	RedisAddr   string `envconfig:"REDIS_ADDR"`

	Slack SlackConfig `envconfig:""`

	Google GoogleConfig `envconfig:""`

	Telegram struct {
		Token  string `envconfig:"TG_BOT_TOKEN"`
		ChatID int64  `envconfig:"TG_CHAT_ID"`
	} `envconfig:""`

	Dashboard struct {
		CacheTTL time.Duration `envconfig:"DASHBOARD_CACHE_TTL" default:"1m"`
		Timeout  time.Duration `envconfig:"DASHBOARD_TIMEOUT" default:"60s"`
		APIToken string        `envconfig:"DASHBOARD_API_TOKEN"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Parse читает окружение и нормализует значения.
func Parse() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("разбор окружения: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *AppConfig) normalize() {
	if tz, err := NormalizeTimezone(c.TZ); err == nil {
		c.TZ = tz
	} else {
		c.TZ = DefaultTimezone
	}
	c.Slack.BotToken = strings.TrimSpace(c.Slack.BotToken)
	c.Slack.ChannelID = strings.TrimSpace(c.Slack.ChannelID)
	c.Google.ProjectID = strings.TrimSpace(c.Google.ProjectID)
	c.Google.ClientEmail = strings.TrimSpace(c.Google.ClientEmail)
	c.Google.SheetID = strings.TrimSpace(c.Google.SheetID)
	c.Google.SheetRange = strings.TrimSpace(c.Google.SheetRange)
	c.Google.PrivateKey = UnescapeKey(c.Google.PrivateKey)
}

// Location возвращает зону отчётов.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Check проверяет обязательные параметры Slack.
func (c SlackConfig) Check() domain.SourceCheck {
	return check("slack", map[string]string{
		"SLACK_BOT_TOKEN":  c.BotToken,
		"SLACK_CHANNEL_ID": c.ChannelID,
	}, []string{"SLACK_BOT_TOKEN", "SLACK_CHANNEL_ID"})
}

// Check проверяет обязательные параметры Google Sheets.
func (c GoogleConfig) Check() domain.SourceCheck {
	return check("google", map[string]string{
		"GOOGLE_PROJECT_ID":   c.ProjectID,
		"GOOGLE_CLIENT_EMAIL": c.ClientEmail,
		"GOOGLE_PRIVATE_KEY":  c.PrivateKey,
		"SHEET_ID":            c.SheetID,
	}, []string{"GOOGLE_PROJECT_ID", "GOOGLE_CLIENT_EMAIL", "GOOGLE_PRIVATE_KEY", "SHEET_ID"})
}

func check(source string, values map[string]string, order []string) domain.SourceCheck {
	result := domain.SourceCheck{Source: source}
	for _, name := range order {
		if strings.TrimSpace(values[name]) == "" {
			result.Missing = append(result.Missing, name)
			continue
		}
		result.Present++
	}
	return result
}

// UnescapeKey превращает экранированные "\n" в переводы строк.
func UnescapeKey(raw string) string {
	key := strings.TrimSpace(raw)
	if strings.Contains(key, `\n`) {
		key = strings.ReplaceAll(key, `\n`, "\n")
	}
	return key
}

// NormalizeTimezone приводит название зоны к виду, понятному time.LoadLocation.
func NormalizeTimezone(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", ErrInvalidTimezone
	}
	candidate = strings.ReplaceAll(candidate, " ", "_")
	if _, err := time.LoadLocation(candidate); err == nil {
		return candidate, nil
	}

	lower := strings.ToLower(candidate)
	parts := strings.Split(lower, "/")
	for i, part := range parts {
		segments := strings.Split(part, "_")
		for j, segment := range segments {
			pieces := strings.Split(segment, "-")
			for k, piece := range pieces {
				if piece == "" {
					continue
				}
				pieces[k] = strings.ToUpper(piece[:1]) + piece[1:]
			}
			segments[j] = strings.Join(pieces, "-")
		}
		parts[i] = strings.Join(segments, "_")
	}
	normalized := strings.Join(parts, "/")
	if _, err := time.LoadLocation(normalized); err == nil {
		return normalized, nil
	}
	return "", ErrInvalidTimezone
}
