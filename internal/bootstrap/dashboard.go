package bootstrap

import (
	"context"

	"github.com/rs/zerolog"

	"gm-dashboard/internal/adapters/ranker"
	"gm-dashboard/internal/adapters/sheets"
	slackadapter "gm-dashboard/internal/adapters/slack"
	"gm-dashboard/internal/domain"
	"gm-dashboard/internal/infra/cache"
	"gm-dashboard/internal/infra/config"
	"gm-dashboard/internal/usecase/dashboard"
)

// Dashboard собирает сервис дашборда. Источник без конфигурации остаётся
// nil, ошибка создания клиента попадает в ошибки снимка.
func Dashboard(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) *dashboard.Service {
	slackCheck := cfg.Slack.Check()
	sheetCheck := cfg.Google.Check()

	var (
		messaging domain.MessagingSource
		slackErr  error
	)
	if slackCheck.Usable() {
		client, err := slackadapter.New(cfg.Slack.BotToken, cfg.Slack.APIURL, logger)
		if err != nil {
			slackErr = err
		} else {
			messaging = client
		}
	}

	var (
		spreadsheet domain.SpreadsheetSource
		sheetErr    error
	)
	if sheetCheck.Usable() {
		client, err := sheets.New(ctx, sheets.Credentials{
			ProjectID:   cfg.Google.ProjectID,
			ClientEmail: cfg.Google.ClientEmail,
			PrivateKey:  cfg.Google.PrivateKey,
		}, logger)
		if err != nil {
			sheetErr = err
		} else {
			spreadsheet = client
		}
	}

	return dashboard.NewService(messaging, spreadsheet, ranker.NewHighlight(), dashboard.Options{
		SlackCheck:         slackCheck,
		SheetCheck:         sheetCheck,
		ChannelID:          cfg.Slack.ChannelID,
		ArchiveBase:        cfg.Slack.ArchiveBase,
		SheetID:            cfg.Google.SheetID,
		SheetRange:         cfg.Google.SheetRange,
		Location:           cfg.Location(),
		HistoryDays:        cfg.Slack.HistoryDays,
		ProfileConcurrency: cfg.Slack.ProfileConcurrency,
		SlackInitErr:       slackErr,
		SheetInitErr:       sheetErr,
	}, logger)
}

// Cache подключает Redis, если задан REDIS_ADDR. Без адреса возвращает nil.
func Cache(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (domain.Cache, func()) {
	if cfg.RedisAddr == "" {
		return nil, func() {}
	}
	client, err := cache.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn().Err(err).Msg("bootstrap: Redis недоступен, работаем без кэша")
		return nil, func() {}
	}
	return cache.NewRedis(client, "gm-dashboard:"), func() { _ = client.Close() }
}
