package featureflags

import (
	"context"
	"fmt"

	"knowledge-ledger/pkg/config"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag))

type FeatureFlag interface {
	// Enabled reports whether feature is on for identifier, evaluated with traits.
	Enabled(ctx context.Context, identifier, feature string, traits map[string]any) (bool, error)
}

type featureflag struct {
	client *flagsmith.Client
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

// ProvideFeatureFlag returns nil when FLAGSMITH.API_KEY is unset.
func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	fs := p.Config.Flagsmith
	if fs.ApiKey == "" {
		return nil
	}

	var opts []flagsmith.Option
	if fs.Addr != "" {
		opts = append(opts, flagsmith.WithBaseURL(fs.Addr))
	}

	zap.L().Info("feature flags enabled", zap.String("flagsmith_addr", fs.Addr))
	return New(flagsmith.NewClient(fs.ApiKey, opts...))
}

func New(client *flagsmith.Client) FeatureFlag {
	return &featureflag{client: client}
}

type result struct {
	enabled bool
	err     error
}

func (s *featureflag) Enabled(ctx context.Context, identifier, feature string, traits map[string]any) (bool, error) {
	ts := make([]*flagsmith.Trait, 0, len(traits))
	for k, v := range traits {
		ts = append(ts, &flagsmith.Trait{TraitKey: k, TraitValue: v})
	}

	// the client call has no context; abandon it when ctx is done
	ch := make(chan result, 1)
	go func() {
		flags, err := s.client.GetIdentityFlags(identifier, ts)
		if err != nil {
			ch <- result{err: err}
			return
		}
		enabled, err := flags.IsFeatureEnabled(feature)
		ch <- result{enabled: enabled, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return false, fmt.Errorf("feature %s for %s: %w", feature, identifier, r.err)
		}
		return r.enabled, nil
	}
}
