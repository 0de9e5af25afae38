package domain

import (
	"context"
	"time"
)

// MessagingSource отдаёт сообщения, профили и участников канала.
// Пагинацию реализация выбирает до конца сама.
type MessagingSource interface {
	History(ctx context.Context, channelID string, oldest time.Time) ([]RawMessage, error)
	// Profile возвращает *MissingCapabilityError, если у токена нет нужных прав,
	// и ErrProfileNotFound, если участник не найден.
	Profile(ctx context.Context, userID string) (MemberProfile, error)
	Members(ctx context.Context, channelID string) ([]string, error)
}

// SpreadsheetSource отдаёт таблицу целиком: строка заголовков и строки данных.
// Пустой диапазон означает первый лист.
type SpreadsheetSource interface {
	Values(ctx context.Context, sheetID, sheetRange string) ([][]string, error)
}

// HighlightRanker выбирает GM-хайлайты из отчётов.
type HighlightRanker interface {
	Rank(reports []DailyReport) []GMHighlight
}

// SourceCheck описывает результат проверки конфигурации одного источника.
type SourceCheck struct {
	Source  string
	Missing []string
	Present int
}

// Usable сообщает, что все обязательные параметры заданы.
func (c SourceCheck) Usable() bool {
	return len(c.Missing) == 0
}

// Absent сообщает, что конфигурация источника не задана вовсе.
func (c SourceCheck) Absent() bool {
	return c.Present == 0 && len(c.Missing) > 0
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
