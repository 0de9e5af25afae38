package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gm-dashboard/internal/bootstrap"
	"gm-dashboard/internal/infra/config"
	httpinfra "gm-dashboard/internal/infra/http"
	applog "gm-dashboard/internal/infra/log"
	"gm-dashboard/internal/infra/metrics"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	snapshotCache, closeCache := bootstrap.Cache(ctx, cfg, logger)
	defer closeCache()

	service := bootstrap.Dashboard(ctx, cfg, logger)
	server := httpinfra.NewServer(applog.Component(logger, "http"), cfg.Dashboard.Timeout)
	httpinfra.NewDashboardHandler(service, snapshotCache, cfg.Dashboard.CacheTTL, logger).Mount(server.Router, cfg.Dashboard.APIToken)

	go func() {
		logger.Info().Str("tz", cfg.TZ).Msg("api: старт")
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port), cfg.Dashboard.Timeout); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: ошибка остановки")
	}
}
