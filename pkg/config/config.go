package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/spf13/viper"
	_ "github.com/spf13/viper/remote"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Otel struct {
		Addr     string `mapstructure:"ADDR"`
		Protocol string `mapstructure:"PROTOCOL"`
	} `mapstructure:"OTEL"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Grpc struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"GRPC_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		Path           string `mapstructure:"PATH"`
		AutoMigrate    bool   `mapstructure:"AUTO_MIGRATE"`
		Tracing        bool   `mapstructure:"TRACING"`
		Metrics        bool   `mapstructure:"METRICS"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Minio struct {
		Endpoint   string `mapstructure:"ENDPOINT"`
		AccessKey  string `mapstructure:"ACCESS_KEY"`
		SecretKey  string `mapstructure:"SECRET_KEY"`
		Secure     bool   `mapstructure:"SECURE"`
		BucketName string `mapstructure:"BUCKET_NAME"`
	} `mapstructure:"MINIO"`
	Consul struct {
		Addr      string `mapstructure:"ADDR"`
		ServiceID string `mapstructure:"SERVICE_ID"`
		Host      string `mapstructure:"HOST"`
		Port      int    `mapstructure:"PORT"`
	} `mapstructure:"CONSUL"`
	Audit struct {
		Dir                string `mapstructure:"DIR"`
		ServiceInitiator   string `mapstructure:"SERVICE_INITIATOR"`
		DestinationService string `mapstructure:"DESTINATION_SERVICE"`
		MinioPrefix        string `mapstructure:"MINIO_PREFIX"`
	} `mapstructure:"AUDIT"`
	Compliance struct {
		URL              string        `mapstructure:"URL"`
		Timeout          time.Duration `mapstructure:"TIMEOUT"`
		AllowUnavailable bool          `mapstructure:"ALLOW_UNAVAILABLE"`
		SigningKey       string        `mapstructure:"SIGNING_KEY"`
		Algorithms       []string      `mapstructure:"ALGORITHMS"`
		Policies         []Policy      `mapstructure:"POLICIES"`
		Feature          string        `mapstructure:"FEATURE"`
	} `mapstructure:"COMPLIANCE"`
	Settlement struct {
		Driver    string        `mapstructure:"DRIVER"`
		URL       string        `mapstructure:"URL"`
		Timeout   time.Duration `mapstructure:"TIMEOUT"`
		Signer    string        `mapstructure:"SIGNER"`
		BaseBlock int64         `mapstructure:"BASE_BLOCK"`
	} `mapstructure:"SETTLEMENT"`
	Flagsmith struct {
		Addr   string `mapstructure:"ADDR"`
		ApiKey string `mapstructure:"API_KEY"`
	} `mapstructure:"FLAGSMITH"`
	Reward struct {
		MaxAmount string `mapstructure:"MAX_AMOUNT"`
		NodeID    int64  `mapstructure:"NODE_ID"`
	} `mapstructure:"REWARD"`
	KYC struct {
		DefaultStatus string `mapstructure:"DEFAULT_STATUS"`
	} `mapstructure:"KYC"`
}

// Policy is a named CEL expression evaluated by the compliance gate.
type Policy struct {
	Name       string `mapstructure:"NAME"`
	Expression string `mapstructure:"EXPRESSION"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

type Params struct {
	fx.In
	Vault *vault.Client `optional:"true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "knowledge-ledger")
	v.SetDefault("HTTP_SERVER.ADDR", "8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("GRPC_SERVER.ADDR", "9090")
	v.SetDefault("DATABASE.TYPE", "sqlite")
	v.SetDefault("DATABASE.PATH", "knowledge-ledger.db")
	v.SetDefault("DATABASE.SSLMODE", "disable")
	v.SetDefault("DATABASE.TIMEZONE", "UTC")
	v.SetDefault("DATABASE.AUTO_MIGRATE", true)
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_IDLE_CONN", 5)
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_OPEN_CONNS", 20)
	v.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_LIFETIME", time.Hour)
	v.SetDefault("AUDIT.DIR", "logs")
	v.SetDefault("AUDIT.SERVICE_INITIATOR", "azora-mint")
	v.SetDefault("AUDIT.DESTINATION_SERVICE", "azora-covenant")
	v.SetDefault("AUDIT.MINIO_PREFIX", "audit")
	v.SetDefault("COMPLIANCE.TIMEOUT", 3*time.Second)
	v.SetDefault("COMPLIANCE.ALLOW_UNAVAILABLE", false)
	v.SetDefault("COMPLIANCE.ALGORITHMS", []string{"HS256"})
	v.SetDefault("COMPLIANCE.FEATURE", "knowledge_rewards")
	v.SetDefault("SETTLEMENT.DRIVER", "local")
	v.SetDefault("SETTLEMENT.TIMEOUT", 10*time.Second)
	v.SetDefault("SETTLEMENT.SIGNER", "azora-covenant")
	v.SetDefault("REWARD.MAX_AMOUNT", "1000")
	v.SetDefault("REWARD.NODE_ID", 1)
	v.SetDefault("KYC.DEFAULT_STATUS", "PENDING")

	// env-only keys must be known to viper before Unmarshal picks them up
	for _, key := range []string{
		"APP_VERSION", "LOG_LEVEL", "TLS.ENABLE", "TLS.CERT_PATH", "TLS.KEY_PATH",
		"OTEL.ADDR", "OTEL.PROTOCOL", "PYROSCOPE.ADDR",
		"DATABASE.HOST", "DATABASE.PORT", "DATABASE.DBNAME", "DATABASE.USER", "DATABASE.PASSWORD",
		"DATABASE.TRACING", "DATABASE.METRICS",
		"REDIS.ADDR", "REDIS.PASSWORD", "REDIS.DB", "REDIS.POOL_SIZE", "REDIS.POOL_TIMEOUT",
		"MINIO.ENDPOINT", "MINIO.ACCESS_KEY", "MINIO.SECRET_KEY", "MINIO.SECURE", "MINIO.BUCKET_NAME",
		"CONSUL.ADDR", "CONSUL.SERVICE_ID", "CONSUL.HOST", "CONSUL.PORT",
		"COMPLIANCE.URL", "COMPLIANCE.SIGNING_KEY",
		"FLAGSMITH.ADDR", "FLAGSMITH.API_KEY",
		"SETTLEMENT.URL", "SETTLEMENT.BASE_BLOCK",
	} {
		v.SetDefault(key, nil)
	}
}

// Load reads config.yaml (optional) from the given paths and overlays environment variables.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if r, ok := remoteFromEnv(); ok {
		if err := v.AddRemoteProvider(r.Provider, r.Addr, r.Path); err != nil {
			return nil, err
		}
		if err := v.ReadRemoteConfig(); err != nil {
			return nil, fmt.Errorf("read remote config %s %s: %w", r.Provider, r.Path, err)
		}
		zap.L().Info("remote config loaded", zap.String("provider", r.Provider), zap.String("path", r.Path))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Remote points at a key/value store holding a YAML document, e.g. consul at app/<env>/knowledge-ledger.
type Remote struct {
	Provider string
	Addr     string
	Path     string
}

// remoteFromEnv reads REMOTE_CONFIG_ADDR and REMOTE_CONFIG_PATH; the provider defaults to consul.
func remoteFromEnv() (Remote, bool) {
	r := Remote{
		Provider: os.Getenv("REMOTE_CONFIG_PROVIDER"),
		Addr:     os.Getenv("REMOTE_CONFIG_ADDR"),
		Path:     os.Getenv("REMOTE_CONFIG_PATH"),
	}
	if r.Addr == "" || r.Path == "" {
		return Remote{}, false
	}
	if r.Provider == "" {
		r.Provider = "consul"
	}
	return r, true
}

func LoadConfig(p Params) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if p.Vault != nil {
		if err := applySecrets(context.Background(), p.Vault, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func applySecrets(ctx context.Context, client *vault.Client, cfg *Config) error {
	zap.L().Info("Starting Get Secrets", zap.String("path", cfg.AppEnv))
	secret, err := client.Secrets.KvV2Read(ctx, cfg.AppEnv, vault.WithMountPath("secret"))
	if err != nil {
		zap.L().Error("failed get secret from vault", zap.Error(err))
		return err
	}
	zap.L().Info("Success Get Secret")

	get := func(key, fallback string) string {
		if val, ok := secret.Data.Data[key].(string); ok && val != "" {
			return val
		}
		return fallback
	}

	cfg.Database.User = get("postgres_user", cfg.Database.User)
	cfg.Database.Password = get("postgres_password", cfg.Database.Password)
	cfg.Redis.Password = get("redis_password", cfg.Redis.Password)
	cfg.Minio.AccessKey = get("minio_access_key", cfg.Minio.AccessKey)
	cfg.Minio.SecretKey = get("minio_secret_key", cfg.Minio.SecretKey)
	cfg.Compliance.SigningKey = get("compliance_signing_key", cfg.Compliance.SigningKey)
	cfg.Flagsmith.ApiKey = get("flagsmith_api_key", cfg.Flagsmith.ApiKey)

	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
