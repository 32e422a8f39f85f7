package compliance

import (
	"knowledge-ledger/pkg/config"
	"knowledge-ledger/pkg/featureflags"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("compliance",
	fx.Provide(NewGateFromParams),
)

type Params struct {
	fx.In

	Config *config.Config
	Flags  featureflags.FeatureFlag `optional:"true"`
}

func NewGateFromParams(p Params) (*Gate, error) {
	return NewGateFromConfig(p.Config, p.Flags)
}

// NewGateFromConfig assembles the verifiers that are configured: signature, policy, feature flag,
// then remote.
func NewGateFromConfig(cfg *config.Config, flags featureflags.FeatureFlag) (*Gate, error) {
	c := cfg.Compliance

	var verifiers []Verifier

	if c.SigningKey != "" {
		sig, err := NewSignatureVerifier([]byte(c.SigningKey), c.Algorithms...)
		if err != nil {
			return nil, err
		}
		verifiers = append(verifiers, sig)
	}

	if len(c.Policies) > 0 {
		pol, err := NewPolicyVerifier(c.Policies)
		if err != nil {
			zap.L().Error("invalid compliance policy", zap.Error(err))
			return nil, err
		}
		verifiers = append(verifiers, pol)
	}

	if flags != nil && c.Feature != "" {
		verifiers = append(verifiers, NewFlagVerifier(flags, c.Feature))
	}

	if c.URL != "" {
		verifiers = append(verifiers, NewHTTPVerifier(c.URL, nil))
	}

	if len(verifiers) == 0 {
		zap.L().Warn("no compliance verifier configured", zap.Bool("allow_unavailable", c.AllowUnavailable))
	}

	return NewGate(c.Timeout, c.AllowUnavailable, verifiers...), nil
}
