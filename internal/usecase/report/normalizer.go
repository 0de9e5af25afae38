package report

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"gm-dashboard/internal/domain"
)

// BotSubType задаёт единственный подтип сообщений, который считается отчётом.
const BotSubType = "bot_message"

// DefaultArchiveBase используется для постоянных ссылок, если база не задана.
const DefaultArchiveBase = "https://slack.com/archives"

var (
	userMention    = regexp.MustCompile(`<@([A-Z0-9]+)>`)
	channelMention = regexp.MustCompile(`<#!?([A-Z0-9]+)\|([^>]+)>`)
	labelledLink   = regexp.MustCompile(`<([^|>]+)\|([^>]+)>`)
	entityReplacer = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&")
)

// Normalizer превращает сообщения канала в ежедневные отчёты.
type Normalizer struct {
	ChannelID   string
	ArchiveBase string
	Location    *time.Location
	Profiles    map[string]domain.MemberProfile
}

// IsReport проверяет, что сообщение похоже на отчёт участника.
func IsReport(msg domain.RawMessage) bool {
	if msg.Text == "" || msg.UserID == "" {
		return false
	}
	return msg.SubType == "" || msg.SubType == BotSubType
}

// FilterReports оставляет только сообщения-отчёты, сохраняя порядок.
func FilterReports(messages []domain.RawMessage) []domain.RawMessage {
	out := make([]domain.RawMessage, 0, len(messages))
	for _, msg := range messages {
		if IsReport(msg) {
			out = append(out, msg)
		}
	}
	return out
}

// Normalize строит отчёты из подходящих сообщений. Ошибок не возвращает:
// неразборчивый текст даёт пустые разделы.
func (n Normalizer) Normalize(messages []domain.RawMessage) []domain.DailyReport {
	reports := make([]domain.DailyReport, 0, len(messages))
	for _, msg := range messages {
		if !IsReport(msg) {
			continue
		}
		reports = append(reports, domain.DailyReport{
			UserID:        msg.UserID,
			UserName:      n.DisplayName(msg.UserID),
			SubmittedAt:   ParseTS(msg.TS, n.location()),
			TS:            msg.TS,
			Permalink:     Permalink(n.ArchiveBase, n.ChannelID, msg.TS),
			Sections:      ParseSections(n.ResolveReferences(msg.Text)),
			ReactionScore: ReactionScore(msg.Reactions),
		})
	}
	return reports
}

// DisplayName возвращает имя участника или его идентификатор.
func (n Normalizer) DisplayName(userID string) string {
	if profile, ok := n.Profiles[userID]; ok && profile.Name != "" {
		return profile.Name
	}
	return userID
}

// ResolveReferences заменяет упоминания и ссылки на читаемый текст.
func (n Normalizer) ResolveReferences(text string) string {
	text = userMention.ReplaceAllStringFunc(text, func(m string) string {
		id := userMention.FindStringSubmatch(m)[1]
		return "@" + n.DisplayName(id)
	})
	text = channelMention.ReplaceAllString(text, "#$2")
	text = labelledLink.ReplaceAllString(text, "$2 ($1)")
	return entityReplacer.Replace(text)
}

func (n Normalizer) location() *time.Location {
	if n.Location == nil {
		return time.UTC
	}
	return n.Location
}

// Permalink собирает постоянную ссылку: <base>/<channel>/p<ts без точки>.
func Permalink(archiveBase, channelID, ts string) string {
	if archiveBase == "" {
		archiveBase = DefaultArchiveBase
	}
	return strings.TrimRight(archiveBase, "/") + "/" + channelID + "/p" + strings.Replace(ts, ".", "", 1)
}

// ParseTS переводит метку вида "1700000000.123456" во время в указанной зоне.
func ParseTS(ts string, loc *time.Location) time.Time {
	secPart, fracPart, _ := strings.Cut(strings.TrimSpace(ts), ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Unix(0, 0).In(loc)
	}
	var nanos int64
	if fracPart != "" {
		if len(fracPart) > 9 {
			fracPart = fracPart[:9]
		}
		fracPart += strings.Repeat("0", 9-len(fracPart))
		if v, err := strconv.ParseInt(fracPart, 10, 64); err == nil {
			nanos = v
		}
	}
	return time.Unix(sec, nanos).In(loc)
}

// ReactionScore суммирует все реакции сообщения.
func ReactionScore(reactions []domain.Reaction) int {
	total := 0
	for _, r := range reactions {
		total += r.Count
	}
	return total
}
