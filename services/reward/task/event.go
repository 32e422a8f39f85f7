package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"knowledge-ledger/pkg/taskname"
	"knowledge-ledger/services/ledger"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type RewardCompleted struct {
	TransactionID string          `json:"transactionId"`
	RewardID      string          `json:"rewardId"`
	UserID        string          `json:"userId"`
	EconomyID     string          `json:"economyId"`
	Amount        decimal.Decimal `json:"amount"`
	NewBalance    decimal.Decimal `json:"newBalance"`
	TransferHash  string          `json:"transferHash"`
	BlockNumber   int64           `json:"blockNumber"`
	ProcessedAt   time.Time       `json:"processedAt"`
}

// NewRewardCompletedTask builds the event; the transaction id doubles as the task id so a
// reward is announced at most once.
func NewRewardCompletedTask(p RewardCompleted) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(taskname.RewardCompleted, payload,
		asynq.Queue(taskname.QueueRewardEvents),
		asynq.TaskID(p.TransactionID),
		asynq.MaxRetry(5),
	), nil
}

type RewardFinder interface {
	FindReward(ctx context.Context, sourceTrxID string) (*ledger.KnowledgeReward, error)
}

type Handler struct {
	rewards RewardFinder
}

func NewHandler(rewards RewardFinder) *Handler {
	return &Handler{rewards: rewards}
}

// HandleRewardCompleted re-reads the committed reward and checks its integrity hash.
func (h *Handler) HandleRewardCompleted(ctx context.Context, t *asynq.Task) error {
	var p RewardCompleted
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s: %v: %w", taskname.RewardCompleted, err, asynq.SkipRetry)
	}

	reward, err := h.rewards.FindReward(ctx, p.TransactionID)
	if err != nil {
		return err
	}
	if reward == nil {
		return fmt.Errorf("reward %s not found: %w", p.TransactionID, asynq.SkipRetry)
	}

	if !reward.Verify() {
		zap.L().Error("reward integrity check failed",
			zap.String("transaction_id", p.TransactionID),
			zap.String("reward_id", reward.ID.String()),
		)
		return fmt.Errorf("reward %s failed integrity check: %w", p.TransactionID, asynq.SkipRetry)
	}

	zap.L().Info("reward completed",
		zap.String("transaction_id", p.TransactionID),
		zap.String("reward_id", p.RewardID),
		zap.String("user_id", p.UserID),
		zap.String("economy_id", p.EconomyID),
		zap.String("amount", p.Amount.String()),
		zap.String("new_balance", p.NewBalance.String()),
		zap.String("transfer_hash", p.TransferHash),
	)
	return nil
}

func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(taskname.RewardCompleted, h.HandleRewardCompleted)
}
