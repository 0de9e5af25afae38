package telegram

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"gm-dashboard/internal/domain"
	"gm-dashboard/internal/infra/metrics"
)

const deliveryTTL = 36 * time.Hour

// MessageSender покрывает часть tgbotapi.BotAPI, нужная для отправки.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender доставляет HTML-сводки в чат.
type Sender struct {
	bot    MessageSender
	cache  domain.Cache
	logger zerolog.Logger
}

// NewSender создаёт отправителя. Без cache повторная доставка не отсекается.
func NewSender(bot MessageSender, cache domain.Cache, logger zerolog.Logger) *Sender {
	return &Sender{bot: bot, cache: cache, logger: logger.With().Str("component", "telegram").Logger()}
}

// SendDigest отправляет текст частями в режиме HTML.
func (s *Sender) SendDigest(chatID int64, text string) error {
	parts := SplitMessage(text, MessageLimit)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		start := time.Now()
		_, err := s.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			return fmt.Errorf("отправка части %d/%d: %w", i+1, len(parts), err)
		}
	}
	s.logger.Info().Int64("chat", chatID).Int("parts", len(parts)).Msg("сводка отправлена")
	return nil
}

// DeliverOnce отправляет сводку не чаще раза в сутки day для чата.
// Возвращает false, если сводка за этот день уже была доставлена.
func (s *Sender) DeliverOnce(chatID int64, day time.Time, text string) (bool, error) {
	if s.cache == nil {
		return true, s.SendDigest(chatID, text)
	}
	key := fmt.Sprintf("digest:delivered:%d:%s", chatID, day.Format("2006-01-02"))
	sent := false
	err := s.cache.Once(key, deliveryTTL, func() error {
		sent = true
		return s.SendDigest(chatID, text)
	})
	if err != nil {
		return false, err
	}
	if !sent {
		s.logger.Info().Int64("chat", chatID).Str("key", key).Msg("сводка уже доставлена")
	}
	return sent, nil
}
