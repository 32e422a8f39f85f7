package ledger

import (
	"knowledge-ledger/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"
)

var Module = fx.Module("ledger.service",
	fx.Provide(
		NewNode,
		NewService,
	),
	fx.Invoke(autoMigrate),
)

// GRPC exposes the ledger's health service on the process gRPC server.
var GRPC = fx.Invoke(registerHealthServer)

func NewNode(cfg *config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.Reward.NodeID)
}

func autoMigrate(cfg *config.Config, db *gorm.DB) error {
	if !cfg.Database.AutoMigrate {
		return nil
	}
	if err := Migrate(db); err != nil {
		zap.L().Error("failed to migrate ledger tables", zap.Error(err))
		return err
	}
	return nil
}

func registerHealthServer(server *grpc.Server, service *Service) {
	grpc_health_v1.RegisterHealthServer(server, service)
}
