package audit

import (
	"knowledge-ledger/pkg/config"

	"github.com/minio/minio-go/v7"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("audit",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Config *config.Config
	Minio  *minio.Client `optional:"true"`
}

func New(p Params) *Logger {
	a := p.Config.Audit

	var sinks []Sink
	if a.Dir != "" {
		sinks = append(sinks, NewFileSink(a.Dir))
	}
	if p.Minio != nil && p.Config.Minio.BucketName != "" {
		sinks = append(sinks, NewMinioSink(p.Minio, p.Config.Minio.BucketName, a.MinioPrefix))
	}

	if len(sinks) == 0 {
		zap.L().Warn("no audit sink configured, audit entries only reach the application log")
	}

	return NewLogger(a.ServiceInitiator, a.DestinationService, sinks...)
}
