package profiling

import (
	"context"
	"runtime"

	"knowledge-ledger/pkg/config"
	grafana "knowledge-ledger/pkg/grafana/pyroscope"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("profiling", fx.Invoke(StartProfiling))

// StartProfiling pushes profiles to Pyroscope when PYROSCOPE.ADDR is set.
func StartProfiling(lc fx.Lifecycle, c *config.Config) error {
	if c.Pyroscope.Addr == "" {
		zap.L().Info("PYROSCOPE.ADDR not set, profiling disabled")
		return nil
	}

	var profiler *pyroscope.Profiler
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			runtime.SetMutexProfileFraction(5)
			zap.L().Info("starting pyroscope", zap.String("app_name", c.AppName), zap.String("pyroscope_addr", c.Pyroscope.Addr))
			p, err := pyroscope.Start(grafana.NewConfig(c))
			if err != nil {
				return err
			}
			profiler = p
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if profiler == nil {
				return nil
			}
			zap.L().Info("stopping pyroscope")
			return profiler.Stop()
		},
	})

	return nil
}
