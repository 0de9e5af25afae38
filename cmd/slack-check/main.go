package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	slackadapter "gm-dashboard/internal/adapters/slack"
	"gm-dashboard/internal/domain"
	"gm-dashboard/internal/infra/config"
	applog "gm-dashboard/internal/infra/log"
)

var channelOverride string

var rootCmd = &cobra.Command{
	Use:          "slack-check",
	Short:        "Проверить токен Slack и доступ к каналу GM",
	SilenceUsage: true,
	RunE:         runCheck,
}

func init() {
	rootCmd.Flags().StringVar(&channelOverride, "channel", "", "Дополнительно проверить указанный канал")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	logger := applog.Component(applog.NewLogger(cfg.AppEnv), "slack-check")

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	client, err := slackadapter.New(cfg.Slack.BotToken, cfg.Slack.APIURL, logger)
	if err != nil {
		return fmt.Errorf("slack-check: %w", err)
	}

	auth, err := client.AuthTest(ctx)
	if err != nil {
		return fmt.Errorf("slack-check: auth.test: %w", err)
	}
	logger.Info().Str("team", auth.Team).Str("user", auth.User).Str("bot_id", auth.BotID).Msg("токен действителен")

	channels := []string{cfg.Slack.ChannelID}
	if channelOverride != "" && channelOverride != cfg.Slack.ChannelID {
		channels = append(channels, channelOverride)
	}

	failed := false
	for _, channel := range channels {
		if channel == "" {
			logger.Warn().Msg("SLACK_CHANNEL_ID не задан")
			continue
		}
		members, err := client.ProbeMembers(ctx, channel, 3)
		capErr, missing := domain.IsMissingCapability(err)
		switch {
		case missing:
			failed = true
			logger.Warn().Str("channel", channel).Strs("scopes", capErr.Scopes).Msg("не хватает прав")
		case err != nil:
			failed = true
			logger.Error().Err(err).Str("channel", channel).Msg("канал недоступен")
		default:
			logger.Info().Str("channel", channel).Strs("sample", members).Msg("участники доступны")
		}
	}
	if failed {
		return errors.New("slack-check: проверка не пройдена")
	}
	return nil
}
