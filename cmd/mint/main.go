package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"knowledge-ledger/pkg/config"
	"knowledge-ledger/pkg/db"
	"knowledge-ledger/pkg/featureflags"
	"knowledge-ledger/pkg/hashistack/secretmanager"
	"knowledge-ledger/pkg/hashistack/servicediscover"
	"knowledge-ledger/pkg/health"
	"knowledge-ledger/pkg/httpapi"
	"knowledge-ledger/pkg/logger"
	"knowledge-ledger/pkg/minio"
	"knowledge-ledger/pkg/otelcol"
	"knowledge-ledger/pkg/profiling"
	"knowledge-ledger/pkg/redis"
	"knowledge-ledger/pkg/sequence"
	"knowledge-ledger/pkg/server"
	"knowledge-ledger/pkg/task"
	"knowledge-ledger/services/audit"
	"knowledge-ledger/services/compliance"
	"knowledge-ledger/services/ledger"
	"knowledge-ledger/services/reward"
	"knowledge-ledger/services/settlement"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		minio.Client,
		task.Client,
		sequence.Module,
		featureflags.Module,
		health.Module,
		httpapi.Module,
		audit.Module,
		compliance.Module,
		settlement.Module,
		ledger.Module,
		ledger.GRPC,
		reward.Module,
		server.ProvideGRPCServer,
		server.ProvideHTTPServer,
		servicediscover.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.IsProduction() {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: logger.Named("fx")}
})
