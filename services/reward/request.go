package reward

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"knowledge-ledger/pkg/errutil"
	"knowledge-ledger/services/ledger"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var KnowledgeTypes = []string{"course_completion", "assessment_pass", "certification", "contribution"}

// Request is a client's claim for a knowledge reward. EconomyID is the currency code.
type Request struct {
	TransactionID string          `json:"transactionId" validate:"required"`
	UserID        string          `json:"userId" validate:"required"`
	EconomyID     string          `json:"economyId" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	KnowledgeType string          `json:"knowledgeType" validate:"required"`
	KnowledgeID   string          `json:"knowledgeId" validate:"required"`
	Signature     string          `json:"signature" validate:"required"`

	// Supplied by the upstream identity service when known.
	KYCStatus     string `json:"kycStatus,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

type Result struct {
	Success       bool            `json:"success"`
	TransactionID string          `json:"transactionId"`
	RewardID      string          `json:"rewardId"`
	RewardCode    string          `json:"rewardCode"`
	NewBalance    decimal.Decimal `json:"newBalance"`
	TransferHash  string          `json:"transferHash"`
	BlockNumber   int64           `json:"blockNumber"`
	ProcessedAt   time.Time       `json:"processedAt"`
}

type validation struct {
	validate  *validator.Validate
	maxAmount decimal.Decimal
}

func newValidation(maxAmount decimal.Decimal) *validation {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &validation{validate: v, maxAmount: maxAmount}
}

// check applies the rules in order: presence, amount bounds, knowledge type, kyc status.
// The first failing rule names the error; details list the offending field.
func (v *validation) check(req *Request) error {
	if req == nil {
		return invalid("Missing required fields", errutil.Detail{Field: "body", Message: "required"})
	}

	var missing []errutil.Detail
	if err := v.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return invalid("Missing required fields")
		}
		for _, fe := range verrs {
			missing = append(missing, errutil.Detail{Field: fe.Field(), Message: fe.Tag()})
		}
	}
	if req.Amount.IsZero() {
		missing = append(missing, errutil.Detail{Field: "amount", Message: "required"})
	}
	if len(missing) > 0 {
		return invalid("Missing required fields", missing...)
	}

	if !req.Amount.IsPositive() {
		return invalid("Amount must be positive", errutil.Detail{Field: "amount", Message: "gt=0"})
	}
	if !req.Amount.Equal(req.Amount.Truncate(ledger.AmountScale)) {
		return invalid("Amount has too many decimal places", errutil.Detail{Field: "amount", Message: fmt.Sprintf("scale<=%d", ledger.AmountScale)})
	}
	if req.Amount.GreaterThan(v.maxAmount) {
		return invalid("Amount exceeds maximum reward limit", errutil.Detail{Field: "amount", Message: "lte=" + v.maxAmount.String()})
	}

	if !validKnowledgeType(req.KnowledgeType) {
		return invalid("Invalid knowledge type", errutil.Detail{Field: "knowledgeType", Message: "oneof=" + strings.Join(KnowledgeTypes, " ")})
	}

	if req.KYCStatus != "" {
		if _, ok := ledger.ParseKYCStatus(req.KYCStatus); !ok {
			return invalid("Invalid kyc status", errutil.Detail{Field: "kycStatus", Message: "oneof=PENDING VERIFIED REJECTED"})
		}
	}

	return nil
}

func validKnowledgeType(t string) bool {
	for _, k := range KnowledgeTypes {
		if t == k {
			return true
		}
	}
	return false
}
