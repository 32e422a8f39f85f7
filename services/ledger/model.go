package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type KYCStatus string

const (
	KYCPending  KYCStatus = "PENDING"
	KYCVerified KYCStatus = "VERIFIED"
	KYCRejected KYCStatus = "REJECTED"
)

func ParseKYCStatus(s string) (KYCStatus, bool) {
	switch KYCStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case KYCPending:
		return KYCPending, true
	case KYCVerified:
		return KYCVerified, true
	case KYCRejected:
		return KYCRejected, true
	default:
		return "", false
	}
}

type RewardStatus string

const (
	RewardCompleted RewardStatus = "COMPLETED"
)

type User struct {
	ID            snowflake.ID `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	ExternalID    string       `gorm:"column:external_id;type:varchar(191);uniqueIndex;not null" json:"externalId"`
	WalletAddress string       `gorm:"column:wallet_address;type:varchar(191)" json:"walletAddress"`
	KYCStatus     KYCStatus    `gorm:"column:kyc_status;type:varchar(20);not null" json:"kycStatus"`
	CreatedAt     time.Time    `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt     time.Time    `gorm:"column:updated_at" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// AmountScale is the number of fractional digits the decimal(20,8) amount columns keep.
const AmountScale = 8

type UserBalance struct {
	ID           snowflake.ID    `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	UserID       snowflake.ID    `gorm:"column:user_id;not null;uniqueIndex:ux_user_balances_user_currency,priority:1" json:"userId"`
	CurrencyCode string          `gorm:"column:currency_code;type:varchar(16);not null;uniqueIndex:ux_user_balances_user_currency,priority:2" json:"currencyCode"`
	Amount       decimal.Decimal `gorm:"column:amount;type:decimal(20,8);not null" json:"amount"`
	CreatedAt    time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt    time.Time       `gorm:"column:updated_at" json:"updatedAt"`
}

func (UserBalance) TableName() string { return "user_balances" }

// KnowledgeReward is append-only. SourceTrxID is the idempotency key and is unique at the storage layer.
type KnowledgeReward struct {
	ID           snowflake.ID    `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Code         string          `gorm:"column:code;type:varchar(64);index" json:"code"`
	UserID       snowflake.ID    `gorm:"column:user_id;not null;index" json:"userId"`
	RewardAmount decimal.Decimal `gorm:"column:reward_amount;type:decimal(20,8);not null" json:"rewardAmount"`
	CurrencyCode string          `gorm:"column:currency_code;type:varchar(16);not null" json:"currencyCode"`
	SourceTrxID  string          `gorm:"column:source_trx_id;type:varchar(191);uniqueIndex;not null" json:"sourceTrxId"`
	Achievement  string          `gorm:"column:achievement;type:varchar(255)" json:"achievement"`
	Status       RewardStatus    `gorm:"column:status;type:varchar(20);not null" json:"status"`
	TransferHash string          `gorm:"column:transfer_hash;type:varchar(191)" json:"transferHash"`
	BlockNumber  int64           `gorm:"column:block_number" json:"blockNumber"`
	Signer       string          `gorm:"column:signer;type:varchar(191)" json:"signer"`
	Hash         string          `gorm:"column:hash;type:char(64)" json:"hash"`
	Metadata     datatypes.JSON  `gorm:"column:metadata" json:"metadata,omitempty"`
	ProcessedAt  time.Time       `gorm:"column:processed_at;index" json:"processedAt"`
	CreatedAt    time.Time       `gorm:"column:created_at" json:"createdAt"`
}

func (KnowledgeReward) TableName() string { return "knowledge_rewards" }

func Models() []any {
	return []any{&User{}, &UserBalance{}, &KnowledgeReward{}}
}

func (r *KnowledgeReward) HashFields() map[string]string {
	return map[string]string{
		"id":            r.ID.String(),
		"user_id":       r.UserID.String(),
		"reward_amount": r.RewardAmount.String(),
		"currency_code": r.CurrencyCode,
		"source_trx_id": r.SourceTrxID,
		"achievement":   r.Achievement,
		"status":        string(r.Status),
		"processed_at":  r.ProcessedAt.UTC().Format(time.RFC3339Nano),
	}
}

// GenerateHash digests the reward's identifying fields so a stored row can be checked for tampering.
func (r *KnowledgeReward) GenerateHash() string {
	fields := r.HashFields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func (r *KnowledgeReward) Verify() bool {
	return r.Hash != "" && r.Hash == r.GenerateHash()
}

func Achievement(knowledgeType, knowledgeID string) string {
	return fmt.Sprintf("%s: %s", knowledgeType, knowledgeID)
}
