package slack

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	slackgo "github.com/slack-go/slack"

	"gm-dashboard/internal/domain"
	"gm-dashboard/internal/infra/metrics"
)

const (
	pageLimit = 200

	codeMissingScope = "missing_scope"
	codeUserNotFound = "user_not_found"
)

// Client реализует domain.MessagingSource поверх Slack Web API.
type Client struct {
	api    *slackgo.Client
	logger zerolog.Logger
}

var _ domain.MessagingSource = (*Client)(nil)

// New создаёт клиент. apiURL нужен только для тестов и прокси.
func New(token, apiURL string, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("slack: %w", domain.ErrSourceNotConfigured)
	}
	var opts []slackgo.Option
	if apiURL != "" {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		opts = append(opts, slackgo.OptionAPIURL(apiURL))
	}
	return &Client{
		api:    slackgo.New(token, opts...),
		logger: logger.With().Str("component", "slack").Logger(),
	}, nil
}

// History возвращает все сообщения канала начиная с oldest, новые первыми.
func (c *Client) History(ctx context.Context, channelID string, oldest time.Time) ([]domain.RawMessage, error) {
	params := &slackgo.GetConversationHistoryParameters{
		ChannelID: channelID,
		Oldest:    fmt.Sprintf("%d.%06d", oldest.Unix(), oldest.Nanosecond()/1000),
		Inclusive: true,
		Limit:     pageLimit,
	}
	var out []domain.RawMessage
	for page := 1; ; page++ {
		start := time.Now()
		resp, err := c.api.GetConversationHistoryContext(ctx, params)
		metrics.ObserveNetworkRequest("slack", "conversations.history", channelID, start, err)
		if err != nil {
			return nil, fmt.Errorf("conversations.history: %w", classify(err))
		}
		for _, msg := range resp.Messages {
			out = append(out, toRawMessage(msg))
		}
		c.logger.Debug().Int("page", page).Int("messages", len(resp.Messages)).Msg("история канала")
		if !resp.HasMore || resp.ResponseMetaData.NextCursor == "" {
			return out, nil
		}
		params.Cursor = resp.ResponseMetaData.NextCursor
	}
}

// Members возвращает идентификаторы всех участников канала.
func (c *Client) Members(ctx context.Context, channelID string) ([]string, error) {
	return c.members(ctx, channelID, pageLimit, true)
}

// ProbeMembers запрашивает одну страницу участников ограниченного размера.
func (c *Client) ProbeMembers(ctx context.Context, channelID string, limit int) ([]string, error) {
	return c.members(ctx, channelID, limit, false)
}

func (c *Client) members(ctx context.Context, channelID string, limit int, drain bool) ([]string, error) {
	params := &slackgo.GetUsersInConversationParameters{ChannelID: channelID, Limit: limit}
	var out []string
	for {
		start := time.Now()
		ids, cursor, err := c.api.GetUsersInConversationContext(ctx, params)
		metrics.ObserveNetworkRequest("slack", "conversations.members", channelID, start, err)
		if err != nil {
			return nil, fmt.Errorf("conversations.members: %w", classify(err))
		}
		out = append(out, ids...)
		if !drain || cursor == "" {
			return out, nil
		}
		params.Cursor = cursor
	}
}

// Profile возвращает отображаемое имя участника.
func (c *Client) Profile(ctx context.Context, userID string) (domain.MemberProfile, error) {
	start := time.Now()
	user, err := c.api.GetUserInfoContext(ctx, userID)
	metrics.ObserveNetworkRequest("slack", "users.info", "", start, err)
	if err != nil {
		return domain.MemberProfile{}, fmt.Errorf("users.info %s: %w", userID, classify(err))
	}
	return toProfile(userID, user), nil
}

// AuthTest проверяет токен и возвращает рабочее пространство и бота.
func (c *Client) AuthTest(ctx context.Context) (*slackgo.AuthTestResponse, error) {
	start := time.Now()
	resp, err := c.api.AuthTestContext(ctx)
	metrics.ObserveNetworkRequest("slack", "auth.test", "", start, err)
	if err != nil {
		return nil, fmt.Errorf("auth.test: %w", classify(err))
	}
	return resp, nil
}

func toRawMessage(msg slackgo.Message) domain.RawMessage {
	reactions := make([]domain.Reaction, 0, len(msg.Reactions))
	for _, r := range msg.Reactions {
		reactions = append(reactions, domain.Reaction{Name: r.Name, Count: r.Count})
	}
	return domain.RawMessage{
		UserID:    msg.User,
		TS:        msg.Timestamp,
		Text:      msg.Text,
		SubType:   msg.SubType,
		Reactions: reactions,
	}
}

func toProfile(userID string, user *slackgo.User) domain.MemberProfile {
	displayName := strings.TrimSpace(user.Profile.DisplayName)
	realName := strings.TrimSpace(user.Profile.RealName)
	if realName == "" {
		realName = strings.TrimSpace(user.RealName)
	}
	name := firstNonEmpty(displayName, realName, user.Name, userID)
	id := user.ID
	if id == "" {
		id = userID
	}
	return domain.MemberProfile{
		ID:          id,
		Name:        name,
		RealName:    firstNonEmpty(realName, user.Name),
		DisplayName: displayName,
	}
}

// classify переводит коды ошибок Slack в ошибки домена.
func classify(err error) error {
	switch errorCode(err) {
	case codeMissingScope:
		return &domain.MissingCapabilityError{}
	case codeUserNotFound:
		return fmt.Errorf("%w: %s", domain.ErrProfileNotFound, codeUserNotFound)
	}
	return err
}

func errorCode(err error) string {
	var resp slackgo.SlackErrorResponse
	if errors.As(err, &resp) {
		return resp.Err
	}
	return strings.TrimSpace(err.Error())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
