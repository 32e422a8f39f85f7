package logger

import (
	"knowledge-ledger/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Module = fx.Module("zap",
	fx.Provide(
		New,
	),
)

type ConfigParams struct {
	fx.In
	Cfg *config.Config
}

// New builds the process logger and installs it as zap's global. Production writes JSON with
// severity/timestamp keys; everything else gets the console development encoder.
func New(p ConfigParams) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if p.Cfg.IsProduction() {
		zc = productionConfig()
	}

	if p.Cfg.LogLevel != "" {
		lvl, err := zapcore.ParseLevel(p.Cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}

	log, err := zc.Build()
	if err != nil {
		return nil, err
	}

	log = log.With(
		zap.String("env", p.Cfg.AppEnv),
		zap.String("service_name", p.Cfg.AppName),
		zap.String("version", p.Cfg.AppVersion),
	)
	zap.ReplaceGlobals(log)

	return log, nil
}

func productionConfig() zap.Config {
	zc := zap.NewProductionConfig()
	zc.Encoding = "json"
	zc.OutputPaths = []string{"stdout"}
	zc.ErrorOutputPaths = []string{"stderr"}

	enc := &zc.EncoderConfig
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.LevelKey = "severity"
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.CallerKey = "caller"
	enc.EncodeCaller = zapcore.ShortCallerEncoder
	enc.StacktraceKey = "stacktrace"
	return zc
}
