package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrUnavailable marks a verifier that could not produce a decision (transport failure, timeout).
var ErrUnavailable = errors.New("compliance verifier unavailable")

const (
	reasonUnavailable = "compliance verifier unavailable"
	reasonError       = "compliance verifier error"
)

// Claim is the reward request as seen by compliance verifiers.
type Claim struct {
	TransactionID string          `json:"transactionId"`
	UserID        string          `json:"userId"`
	EconomyID     string          `json:"economyId"`
	Amount        decimal.Decimal `json:"amount"`
	KnowledgeType string          `json:"knowledgeType"`
	KnowledgeID   string          `json:"knowledgeId"`
	KYCStatus     string          `json:"kycStatus,omitempty"`
	Signature     string          `json:"signature"`
}

// Payload is the canonical byte form a signature is computed over. It excludes the signature itself.
func (c Claim) Payload() []byte {
	b, _ := json.Marshal(struct {
		TransactionID string `json:"transactionId"`
		UserID        string `json:"userId"`
		EconomyID     string `json:"economyId"`
		Amount        string `json:"amount"`
		KnowledgeType string `json:"knowledgeType"`
		KnowledgeID   string `json:"knowledgeId"`
	}{
		TransactionID: c.TransactionID,
		UserID:        c.UserID,
		EconomyID:     c.EconomyID,
		Amount:        c.Amount.String(),
		KnowledgeType: c.KnowledgeType,
		KnowledgeID:   c.KnowledgeID,
	})
	return b
}

type Decision struct {
	Valid    bool   `json:"isValid"`
	Reason   string `json:"reason,omitempty"`
	Verifier string `json:"verifier,omitempty"`
	// DevMode is set when the claim passed only because verifiers were unreachable and fail-open is enabled.
	DevMode bool `json:"devMode,omitempty"`
}

type Verifier interface {
	Name() string
	Verify(ctx context.Context, claim Claim) (Decision, error)
}

// Gate runs every verifier in order. The first rejection wins. Unreachable verifiers reject
// the claim unless AllowUnavailable is set; any other verifier error always rejects it.
type Gate struct {
	verifiers        []Verifier
	timeout          time.Duration
	allowUnavailable bool
}

func NewGate(timeout time.Duration, allowUnavailable bool, verifiers ...Verifier) *Gate {
	if allowUnavailable {
		zap.L().Warn("compliance gate is fail-open: claims pass when verifiers are unavailable")
	}
	return &Gate{
		verifiers:        verifiers,
		timeout:          timeout,
		allowUnavailable: allowUnavailable,
	}
}

func (g *Gate) Check(ctx context.Context, claim Claim) Decision {
	unavailable := len(g.verifiers) == 0

	for _, v := range g.verifiers {
		d, err := g.verify(ctx, v, claim)
		if errors.Is(err, ErrUnavailable) {
			zap.L().Warn("compliance verifier unavailable",
				zap.String("verifier", v.Name()),
				zap.String("transaction_id", claim.TransactionID),
				zap.Error(err),
			)
			unavailable = true
			continue
		}
		if err != nil {
			zap.L().Error("compliance verifier error",
				zap.String("verifier", v.Name()),
				zap.String("transaction_id", claim.TransactionID),
				zap.Error(err),
			)
			return Decision{Valid: false, Reason: reasonError, Verifier: v.Name()}
		}

		if !d.Valid {
			d.Verifier = v.Name()
			zap.L().Info("compliance rejected claim",
				zap.String("verifier", v.Name()),
				zap.String("transaction_id", claim.TransactionID),
				zap.String("reason", d.Reason),
			)
			return d
		}
	}

	if !unavailable {
		return Decision{Valid: true}
	}

	if g.allowUnavailable {
		zap.L().Warn("compliance unavailable, accepting claim in dev mode",
			zap.String("transaction_id", claim.TransactionID),
		)
		return Decision{Valid: true, DevMode: true, Reason: reasonUnavailable}
	}

	return Decision{Valid: false, Reason: reasonUnavailable}
}

func (g *Gate) verify(ctx context.Context, v Verifier, claim Claim) (Decision, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	d, err := v.Verify(ctx, claim)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrUnavailable) {
			err = errors.Join(ErrUnavailable, err)
		}
		return Decision{}, err
	}
	return d, nil
}
