package compliance

import (
	"context"
	"fmt"

	"knowledge-ledger/pkg/celengine"
	"knowledge-ledger/pkg/config"

	"github.com/google/cel-go/cel"
)

type policy struct {
	name string
	prg  cel.Program
}

// PolicyVerifier evaluates regulatory rules written in CEL. Every policy must hold.
type PolicyVerifier struct {
	policies []policy
}

func claimAttributes(c Claim) map[string]interface{} {
	return map[string]interface{}{
		"transaction_id": c.TransactionID,
		"user_id":        c.UserID,
		"economy_id":     c.EconomyID,
		"amount":         c.Amount.InexactFloat64(),
		"knowledge_type": c.KnowledgeType,
		"knowledge_id":   c.KnowledgeID,
		"kyc_status":     c.KYCStatus,
	}
}

func NewPolicyVerifier(policies []config.Policy) (*PolicyVerifier, error) {
	env, err := celengine.GetOrBuildEnv(claimAttributes(Claim{}))
	if err != nil {
		return nil, err
	}

	v := &PolicyVerifier{}
	for _, p := range policies {
		prg, err := celengine.Compile(env, p.Expression)
		if err != nil {
			return nil, fmt.Errorf("policy %q: %w", p.Name, err)
		}
		v.policies = append(v.policies, policy{name: p.Name, prg: prg})
	}

	return v, nil
}

func (v *PolicyVerifier) Name() string { return "policy" }

func (v *PolicyVerifier) Verify(_ context.Context, claim Claim) (Decision, error) {
	attrs := claimAttributes(claim)
	for _, p := range v.policies {
		ok, err := celengine.EvalBool(p.prg, attrs)
		if err != nil {
			return Decision{}, fmt.Errorf("policy %q: %w", p.name, err)
		}
		if !ok {
			return Decision{Valid: false, Reason: fmt.Sprintf("policy %s not satisfied", p.name)}, nil
		}
	}
	return Decision{Valid: true}, nil
}
