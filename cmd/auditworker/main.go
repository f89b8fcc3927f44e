// Command auditworker drains the audit queue into the audit log file.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/dms-api/internal/config"
	"github.com/iliyamo/dms-api/internal/logging"
	"github.com/iliyamo/dms-api/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logging.New(cfg.LogLevel, cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := &queue.AuditConsumer{
		URL:    cfg.Audit.URL,
		Queue:  cfg.Audit.Queue,
		LogDir: cfg.Audit.LogDir,
		Log:    log,
	}
	log.WithField("queue", cfg.Audit.Queue).WithField("dir", cfg.Audit.LogDir).Info("audit worker started")
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("audit worker stopped")
	}
	log.Info("audit worker stopped")
}
