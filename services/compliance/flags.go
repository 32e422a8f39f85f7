package compliance

import (
	"context"
	"fmt"

	"knowledge-ledger/pkg/featureflags"
)

// FlagVerifier rejects claims for users whose reward feature flag is switched off.
type FlagVerifier struct {
	flags   featureflags.FeatureFlag
	feature string
}

func NewFlagVerifier(flags featureflags.FeatureFlag, feature string) *FlagVerifier {
	return &FlagVerifier{flags: flags, feature: feature}
}

func (v *FlagVerifier) Name() string { return "feature-flag" }

func (v *FlagVerifier) Verify(ctx context.Context, claim Claim) (Decision, error) {
	enabled, err := v.flags.Enabled(ctx, claim.UserID, v.feature, map[string]any{
		"economy_id":     claim.EconomyID,
		"knowledge_type": claim.KnowledgeType,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !enabled {
		return Decision{Valid: false, Reason: "rewards disabled for user"}, nil
	}
	return Decision{Valid: true}, nil
}
