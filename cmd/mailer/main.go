// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carterperez-dev/bizdesk/internal/config"
	"github.com/carterperez-dev/bizdesk/internal/mail"
	"github.com/carterperez-dev/bizdesk/internal/metrics"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("mailer error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	var sender mail.Sender
	if cfg.Mail.SMTPHost != "" {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Address:  cfg.Mail.SMTPAddress(),
			Host:     cfg.Mail.SMTPHost,
			Username: cfg.Mail.SMTPUsername,
			Password: cfg.Mail.SMTPPassword,
			From:     cfg.Mail.From,
		})
		logger.Info("delivering over smtp", "addr", cfg.Mail.SMTPAddress())
	} else {
		sender = mail.NewLogSender(logger)
		logger.Warn("SMTP_HOST not set; queued mail will only be logged")
	}

	if cfg.Metrics.Enabled {
		metricsSrv := serveMetrics(cfg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	consumer := mail.NewConsumer(cfg.AMQP.URL, cfg.AMQP.MailQueue, cfg.AMQP.Prefetch, logger)

	logger.Info("mailer started", "queue", cfg.AMQP.MailQueue)

	err = consumer.Run(ctx, func(ctx context.Context, msg mail.Message) error {
		sendCtx, cancel := context.WithTimeout(ctx, cfg.Mail.SendTimeout)
		defer cancel()

		err := sender.Send(sendCtx, msg)
		metrics.ObserveMail(msg.Template, err)
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("mailer stopped")
	return nil
}

// serveMetrics exposes only the Prometheus endpoint on the server address.
func serveMetrics(cfg *config.Config, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", "error", err)
		}
	}()

	return srv
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
