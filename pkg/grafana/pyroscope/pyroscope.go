package pyroscope

import (
	"knowledge-ledger/pkg/config"

	"github.com/grafana/pyroscope-go"
)

// NewConfig describes the continuous profiling session for this process.
func NewConfig(cfg *config.Config) pyroscope.Config {
	return pyroscope.Config{
		ApplicationName: cfg.AppName,
		ServerAddress:   cfg.Pyroscope.Addr,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
			// lock contention around balance updates shows up here
			pyroscope.ProfileMutexCount,
			pyroscope.ProfileMutexDuration,
		},
		Tags: map[string]string{
			"service_name": cfg.AppName,
			"env":          cfg.AppEnv,
			"version":      cfg.AppVersion,
		},
	}
}
