package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"knowledge-ledger/pkg/config"
	"knowledge-ledger/pkg/db"
	"knowledge-ledger/pkg/hashistack/secretmanager"
	"knowledge-ledger/pkg/logger"
	"knowledge-ledger/pkg/otelcol"
	"knowledge-ledger/pkg/task"
	"knowledge-ledger/services/ledger"
	rewardtask "knowledge-ledger/services/reward/task"
)

// The worker consumes reward:completed events published by the mint service.
func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		otelcol.Module,
		db.Module,
		ledger.Module,
		task.Server,
		rewardtask.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.IsProduction() {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: logger.Named("fx")}
})
