package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gm-dashboard/internal/adapters/telegram"
	"gm-dashboard/internal/bootstrap"
	"gm-dashboard/internal/domain"
	"gm-dashboard/internal/infra/config"
	applog "gm-dashboard/internal/infra/log"
	"gm-dashboard/internal/infra/metrics"
	"gm-dashboard/internal/usecase/dashboard"
)

var errUnknownFormat = errors.New("неизвестный формат вывода")

var (
	outputFormat string
	sendDigest   bool
)

var rootCmd = &cobra.Command{
	Use:          "digest",
	Short:        "Собрать снимок дашборда и вывести или отправить его",
	SilenceUsage: true,
	RunE:         runDigest,
}

func init() {
	rootCmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Формат вывода: text, json или yaml")
	rootCmd.Flags().BoolVar(&sendDigest, "send", false, "Отправить сводку в Telegram-чат TG_CHAT_ID")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDigest(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Dashboard.Timeout)
	defer cancel()

	service := bootstrap.Dashboard(ctx, cfg, logger)
	snapshot, err := service.Build(ctx)
	if err != nil {
		return fmt.Errorf("digest: сборка снимка: %w", err)
	}

	if err := render(cmd.OutOrStdout(), snapshot, outputFormat); err != nil {
		return err
	}
	if !sendDigest {
		return nil
	}

	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		return errors.New("digest: для --send нужны TG_BOT_TOKEN и TG_CHAT_ID")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("digest: telegram: %w", err)
	}
	deliveries, closeCache := bootstrap.Cache(ctx, cfg, logger)
	defer closeCache()

	sender := telegram.NewSender(bot, deliveries, logger)
	sent, err := sender.DeliverOnce(cfg.Telegram.ChatID, snapshot.GeneratedAt, dashboard.FormatDigest(snapshot))
	if err != nil {
		return fmt.Errorf("digest: отправка: %w", err)
	}
	logger.Info().Bool("sent", sent).Str("run_id", snapshot.RunID).Msg("digest: готово")
	return nil
}

func render(w io.Writer, snapshot domain.Snapshot, format string) error {
	switch format {
	case "text":
		_, err := fmt.Fprintln(w, dashboard.FormatDigest(snapshot))
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(snapshot)
	default:
		return fmt.Errorf("%w: %s", errUnknownFormat, format)
	}
}
