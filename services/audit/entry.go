package audit

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

const (
	ActionValidationFailed     = "VALIDATION_FAILED"
	ActionDuplicateTransaction = "DUPLICATE_TRANSACTION"
	ActionComplianceFailed     = "COMPLIANCE_FAILED"
	ActionTransactionFailed    = "TRANSACTION_FAILED"
	ActionTransactionSuccess   = "TRANSACTION_SUCCESS"
)

const defaultKYCStatus = "unknown"

// Entry is one immutable audit record. Every field is always present so log consumers see a stable schema.
type Entry struct {
	AuditReportID      string             `json:"auditReportId"`
	Status             Status             `json:"status"`
	Action             string             `json:"action"`
	GenesisTimestamp   string             `json:"genesisTimestamp"`
	ServiceInitiator   string             `json:"serviceInitiator"`
	DestinationService string             `json:"destinationService"`
	RewardDetails      RewardDetails      `json:"rewardDetails"`
	ComplianceCheck    ComplianceCheck    `json:"complianceCheck"`
	FundStatusSnapshot FundStatusSnapshot `json:"fundStatusSnapshot"`
	BlockchainDetails  BlockchainDetails  `json:"blockchainDetails"`
	AuditCheckpoints   map[string]any     `json:"auditCheckpoints"`
	ErrorDetails       map[string]any     `json:"errorDetails"`
}

type RewardDetails struct {
	UserID              string          `json:"userId"`
	EconomyID           string          `json:"economyId"`
	RewardAmount        decimal.Decimal `json:"rewardAmount"`
	SourceTransactionID string          `json:"sourceTransactionId"`
	KnowledgeType       string          `json:"knowledgeType"`
	KnowledgeID         string          `json:"knowledgeId"`
	RewardID            string          `json:"rewardId"`
	Channel             string          `json:"channel"`
}

type ComplianceCheck struct {
	KYCStatus        string `json:"kycStatus"`
	ComplianceLogID  string `json:"complianceLogId"`
	IdempotencyCheck bool   `json:"idempotencyCheck"`
	DevMode          bool   `json:"devMode"`
	Reason           string `json:"reason"`
}

type FundStatusSnapshot struct {
	UBOBalanceBefore decimal.Decimal `json:"uboBalanceBefore"`
	UBOBalanceAfter  decimal.Decimal `json:"uboBalanceAfter"`
	TransferExecuted decimal.Decimal `json:"transferExecuted"`
}

type BlockchainDetails struct {
	TransferHash string `json:"transferHash"`
	BlockNumber  int64  `json:"blockNumber"`
	Signer       string `json:"signer"`
}

// Details carries whatever context is known at the point the audit is written.
// Zero values are replaced with defaults by NewEntry.
type Details struct {
	UserID        string
	EconomyID     string
	Amount        decimal.Decimal
	KnowledgeType string
	KnowledgeID   string
	RewardID      string
	Channel       string

	KYCStatus        string
	ComplianceLogID  string
	IdempotencyCheck *bool
	DevMode          bool
	Reason           string

	BalanceBefore    decimal.Decimal
	BalanceAfter     decimal.Decimal
	TransferExecuted decimal.Decimal

	TransferHash string
	BlockNumber  int64
	Signer       string

	Checkpoints map[string]any
	Errors      map[string]any
}

func StatusFor(action string) Status {
	if strings.Contains(action, "SUCCESS") {
		return StatusSuccess
	}
	return StatusFailure
}

func NewEntry(transactionID, action string, at time.Time, d Details) Entry {
	kyc := d.KYCStatus
	if kyc == "" {
		kyc = defaultKYCStatus
	}

	logID := d.ComplianceLogID
	if logID == "" {
		logID = transactionID
	}

	idempotency := true
	if d.IdempotencyCheck != nil {
		idempotency = *d.IdempotencyCheck
	}

	checkpoints := d.Checkpoints
	if checkpoints == nil {
		checkpoints = map[string]any{}
	}

	errs := d.Errors
	if errs == nil {
		errs = map[string]any{}
	}

	return Entry{
		AuditReportID:    transactionID,
		Status:           StatusFor(action),
		Action:           action,
		GenesisTimestamp: at.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		RewardDetails: RewardDetails{
			UserID:              d.UserID,
			EconomyID:           d.EconomyID,
			RewardAmount:        d.Amount,
			SourceTransactionID: transactionID,
			KnowledgeType:       d.KnowledgeType,
			KnowledgeID:         d.KnowledgeID,
			RewardID:            d.RewardID,
			Channel:             d.Channel,
		},
		ComplianceCheck: ComplianceCheck{
			KYCStatus:        kyc,
			ComplianceLogID:  logID,
			IdempotencyCheck: idempotency,
			DevMode:          d.DevMode,
			Reason:           d.Reason,
		},
		FundStatusSnapshot: FundStatusSnapshot{
			UBOBalanceBefore: d.BalanceBefore,
			UBOBalanceAfter:  d.BalanceAfter,
			TransferExecuted: d.TransferExecuted,
		},
		BlockchainDetails: BlockchainDetails{
			TransferHash: d.TransferHash,
			BlockNumber:  d.BlockNumber,
			Signer:       d.Signer,
		},
		AuditCheckpoints: checkpoints,
		ErrorDetails:     errs,
	}
}
