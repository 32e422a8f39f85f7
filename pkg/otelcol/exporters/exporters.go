package exporters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"knowledge-ledger/pkg/config"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
)

const dialTimeout = 10 * time.Second

// New builds the OTLP span exporter for OTEL.PROTOCOL ("grpc" or "http").
func New(cfg *config.Config) (*otlptrace.Exporter, error) {
	switch strings.ToLower(cfg.Otel.Protocol) {
	case "", "grpc":
		return ProvideGrpc(cfg)
	case "http", "http/protobuf":
		return ProvideHttp(cfg)
	default:
		return nil, fmt.Errorf("unsupported OTEL.PROTOCOL %q", cfg.Otel.Protocol)
	}
}

func ProvideGrpc(cfg *config.Config) (*otlptrace.Exporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Otel.Addr),
		otlptracegrpc.WithCompressor("gzip"),
	}
	if !cfg.TLS.Enable {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
}

func ProvideHttp(cfg *config.Config) (*otlptrace.Exporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Otel.Addr),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}
	if !cfg.TLS.Enable {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	return otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
}
