package settlement

import (
	"fmt"
	"strings"

	"knowledge-ledger/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("settlement",
	fx.Provide(NewSettler),
)

func NewSettler(cfg *config.Config) (Settler, error) {
	s := cfg.Settlement
	switch strings.ToLower(s.Driver) {
	case "http":
		if s.URL == "" {
			return nil, fmt.Errorf("SETTLEMENT.URL is required for the http driver")
		}
		zap.L().Info("settlement via http", zap.String("url", s.URL))
		return NewHTTPSettler(s.URL, s.Timeout, nil), nil
	case "local", "":
		if cfg.IsProduction() {
			zap.L().Warn("local settlement driver in production, transfers are not executed on any chain")
		}
		return NewLocalSettler(s.Signer, s.BaseBlock), nil
	default:
		return nil, fmt.Errorf("unknown settlement driver %q", s.Driver)
	}
}
