package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"knowledge-ledger/pkg/config"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/prometheus"
)

var Module = fx.Module("database",
	fx.Provide(
		Dialect,
		New,
	),
	fx.Invoke(RegisterConnectionPool),
)

// Dialect picks the gorm dialector for DATABASE.TYPE.
func Dialect(cfg *config.Config) (gorm.Dialector, error) {
	d := cfg.Database
	switch strings.ToLower(d.Type) {
	case "postgres", "postgresql":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
			d.Host, d.Port, d.User, d.Password, d.DBNAME, d.SSLMode, d.Timezone)
		return postgres.Open(dsn), nil
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.DBNAME)
		return mysql.Open(dsn), nil
	case "sqlite", "":
		path := d.Path
		if path == "" {
			path = "knowledge-ledger.db"
		}
		return sqlite.Open(fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", d.Type)
	}
}

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// New opens the ledger database, retrying while it comes up. Tracing and the Prometheus
// collector (exposed on /metrics) are attached when DATABASE.TRACING/METRICS are set.
func New(cfg *config.Config, dialector gorm.Dialector) (*gorm.DB, error) {
	level, showSQL := logger.Info, true
	if cfg.IsProduction() {
		level, showSQL = logger.Warn, false
	}
	gormCfg := &gorm.Config{
		Logger:         NewZapGormLogger(zap.L(), level, showSQL),
		TranslateError: true,
	}

	var (
		conn *gorm.DB
		err  error
	)
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if conn, err = gorm.Open(dialector, gormCfg); err == nil {
			break
		}
		zap.L().Warn("database not ready", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < connectAttempts {
			time.Sleep(connectBackoff)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", dialector.Name(), err)
	}

	if cfg.Database.Tracing {
		if err := Otel(conn); err != nil {
			return nil, err
		}
	}
	if cfg.Database.Metrics {
		if err := Metric(conn); err != nil {
			return nil, err
		}
	}

	zap.L().Info("database connected", zap.String("dialect", conn.Dialector.Name()))
	return conn, nil
}

type connectionPoolParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	DB        *gorm.DB
	Config    *config.Config
}

func RegisterConnectionPool(p connectionPoolParams) error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return fmt.Errorf("sql.DB from gorm: %w", err)
	}

	cp := p.Config.Database.ConnectionPool
	sqlDB.SetMaxIdleConns(cp.MaxIdleConn)
	sqlDB.SetMaxOpenConns(cp.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cp.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cp.ConnMaxIdleTime)

	zap.L().Info("database pool configured",
		zap.Int("max_idle", cp.MaxIdleConn),
		zap.Int("max_open", cp.MaxOpenConns),
	)
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			zap.L().Info("closing database pool")
			return sqlDB.Close()
		},
	})

	return nil
}

func Otel(db *gorm.DB) error {
	if err := db.Use(otelgorm.NewPlugin(otelgorm.WithDBName(getDBNameFromDialector(db.Dialector)))); err != nil {
		return fmt.Errorf("register otelgorm: %w", err)
	}
	return nil
}

func Metric(db *gorm.DB) error {
	if err := db.Use(prometheus.New(prometheus.Config{
		DBName:          getDBNameFromDialector(db.Dialector),
		RefreshInterval: 15,
		StartServer:     false,
	})); err != nil {
		return fmt.Errorf("register gorm prometheus: %w", err)
	}
	return nil
}

// extractDBNameFromDSN reads dbname= (postgres) or the path segment (mysql).
func extractDBNameFromDSN(dsn string) string {
	for _, part := range strings.Fields(dsn) {
		if strings.HasPrefix(part, "dbname=") {
			return strings.TrimPrefix(part, "dbname=")
		}
	}
	if i := strings.LastIndex(dsn, "/"); i >= 0 {
		name := dsn[i+1:]
		if j := strings.Index(name, "?"); j >= 0 {
			name = name[:j]
		}
		if name != "" {
			return name
		}
	}
	return "unknown"
}

func getDBNameFromDialector(dialector gorm.Dialector) string {
	switch d := dialector.(type) {
	case *postgres.Dialector:
		return extractDBNameFromDSN(d.Config.DSN)
	case *mysql.Dialector:
		return extractDBNameFromDSN(d.Config.DSN)
	case *sqlite.Dialector:
		return d.DSN
	default:
		return "unknown"
	}
}
