package reward

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"knowledge-ledger/pkg/config"
	"knowledge-ledger/pkg/db/pagination"
	"knowledge-ledger/pkg/errutil"
	"knowledge-ledger/pkg/middleware"
	"knowledge-ledger/pkg/sequence"
	"knowledge-ledger/pkg/task"
	"knowledge-ledger/services/audit"
	"knowledge-ledger/services/compliance"
	"knowledge-ledger/services/ledger"
	rewardtask "knowledge-ledger/services/reward/task"
	"knowledge-ledger/services/settlement"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const treasury = "ubo-fund"

var tracer = otel.Tracer("knowledge-ledger/services/reward")

type Service struct {
	ledger   *ledger.Service
	gate     *compliance.Gate
	settler  settlement.Settler
	audit    *audit.Logger
	codes    sequence.Generator
	hints    HintCache
	events   task.Enqueuer
	validate *validation

	defaultKYC ledger.KYCStatus
	now        func() time.Time
}

type Params struct {
	fx.In

	Config  *config.Config
	Ledger  *ledger.Service
	Gate    *compliance.Gate
	Settler settlement.Settler
	Audit   *audit.Logger
	Codes   sequence.Generator
	Redis   *redis.Client `optional:"true"`
	Events  task.Enqueuer `optional:"true"`
}

func NewService(p Params) (*Service, error) {
	maxAmount, err := decimal.NewFromString(p.Config.Reward.MaxAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid REWARD.MAX_AMOUNT %q: %w", p.Config.Reward.MaxAmount, err)
	}

	kyc, ok := ledger.ParseKYCStatus(p.Config.KYC.DefaultStatus)
	if !ok {
		kyc = ledger.KYCPending
	}
	if kyc == ledger.KYCVerified {
		zap.L().Warn("new users default to VERIFIED kyc status")
	}

	return &Service{
		ledger:     p.Ledger,
		gate:       p.Gate,
		settler:    p.Settler,
		audit:      p.Audit,
		codes:      p.Codes,
		hints:      NewHintCache(p.Redis),
		events:     p.Events,
		validate:   newValidation(maxAmount),
		defaultKYC: kyc,
		now:        time.Now,
	}, nil
}

func traceFields(span trace.Span) []zap.Field {
	return []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	}
}

// ProcessReward validates, deduplicates, checks compliance, then credits the user atomically.
// Exactly one audit entry is written for every call, whatever the outcome.
func (s *Service) ProcessReward(ctx context.Context, req *Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "reward.ProcessReward")
	defer span.End()

	zapLog := zap.L().With(traceFields(span)...)

	if req == nil {
		req = &Request{}
	}
	txID := req.TransactionID
	span.SetAttributes(attribute.String("reward.transaction_id", txID))

	details := s.baseDetails(ctx, req)

	fail := func(action string, err error, d audit.Details) (*Result, error) {
		s.audit.Record(ctx, txID, action, d)
		outcomes.WithLabelValues(action).Inc()
		span.SetStatus(codes.Error, action)
		return nil, err
	}

	if err := s.validate.check(req); err != nil {
		d := details
		d.Errors = map[string]any{"reason": messageOf(err)}
		zapLog.Info("reward rejected: validation", zap.String("transaction_id", txID), zap.Error(err))
		return fail(audit.ActionValidationFailed, err, d)
	}

	if rewardID, ok := s.hints.Lookup(ctx, txID); ok {
		d := details
		d.RewardID = rewardID
		d.Errors = map[string]any{"existingRewardId": rewardID}
		return fail(audit.ActionDuplicateTransaction, duplicate(rewardID), d)
	}

	existing, err := s.ledger.FindReward(ctx, txID)
	if err != nil {
		zapLog.Error("idempotency lookup failed", zap.String("transaction_id", txID), zap.Error(err))
		d := details
		d.Errors = map[string]any{"error": "idempotency lookup failed"}
		return fail(audit.ActionTransactionFailed, processing(err), d)
	}
	if existing != nil {
		d := details
		d.RewardID = existing.ID.String()
		d.Errors = map[string]any{"existingRewardId": existing.ID.String()}
		return fail(audit.ActionDuplicateTransaction, duplicate(existing.ID.String()), d)
	}

	decision := s.gate.Check(ctx, compliance.Claim{
		TransactionID: txID,
		UserID:        req.UserID,
		EconomyID:     req.EconomyID,
		Amount:        req.Amount,
		KnowledgeType: req.KnowledgeType,
		KnowledgeID:   req.KnowledgeID,
		KYCStatus:     string(details.KYCStatus),
		Signature:     req.Signature,
	})
	details.DevMode = decision.DevMode
	details.Reason = decision.Reason
	if !decision.Valid {
		d := details
		d.Errors = map[string]any{"reason": decision.Reason, "verifier": decision.Verifier}
		return fail(audit.ActionComplianceFailed, rejected(decision.Reason), d)
	}

	applied, receipt, err := s.commit(ctx, req, details)
	if err != nil {
		d := details
		if ledger.IsDuplicate(err) && !errors.Is(err, settlement.ErrSettlementFailed) {
			zapLog.Info("concurrent duplicate rolled back", zap.String("transaction_id", txID))
			rewardID := ""
			if winner, err := s.ledger.FindReward(ctx, txID); err == nil && winner != nil {
				rewardID = winner.ID.String()
			}
			d.RewardID = rewardID
			d.Errors = map[string]any{"reason": "unique constraint on source transaction", "existingRewardId": rewardID}
			return fail(audit.ActionDuplicateTransaction, duplicate(rewardID), d)
		}

		zapLog.Error("reward transaction failed", zap.String("transaction_id", txID), zap.Error(err))
		d.Errors = map[string]any{"error": err.Error()}
		return fail(audit.ActionTransactionFailed, processing(err), d)
	}

	reward := applied.Reward
	d := details
	d.KYCStatus = string(applied.User.KYCStatus)
	d.RewardID = reward.ID.String()
	d.BalanceBefore = applied.BalanceBefore
	d.BalanceAfter = applied.Balance.Amount
	d.TransferExecuted = reward.RewardAmount
	d.TransferHash = receipt.Hash
	d.BlockNumber = receipt.Block
	d.Signer = receipt.Signer
	d.Checkpoints = map[string]any{
		"validation":  true,
		"idempotency": true,
		"compliance":  true,
		"transfer":    "completed",
	}
	s.audit.Record(ctx, txID, audit.ActionTransactionSuccess, d)
	outcomes.WithLabelValues(audit.ActionTransactionSuccess).Inc()
	credited.WithLabelValues(req.EconomyID).Add(reward.RewardAmount.InexactFloat64())

	s.hints.Remember(ctx, txID, reward.ID.String())

	result := &Result{
		Success:       true,
		TransactionID: txID,
		RewardID:      reward.ID.String(),
		RewardCode:    reward.Code,
		NewBalance:    applied.Balance.Amount,
		TransferHash:  receipt.Hash,
		BlockNumber:   receipt.Block,
		ProcessedAt:   reward.ProcessedAt,
	}
	s.publish(ctx, req, result)

	zapLog.Info("reward processed",
		zap.String("transaction_id", txID),
		zap.String("reward_id", result.RewardID),
		zap.String("new_balance", result.NewBalance.String()),
	)

	return result, nil
}

// RejectMalformed audits a body that could not be decoded and returns the validation error for it.
// The entry is keyed by transactionID when the body carried one.
func (s *Service) RejectMalformed(ctx context.Context, transactionID string, cause error) error {
	err := invalid("Invalid request body", errutil.Detail{Field: "body", Message: cause.Error()})
	s.audit.Record(ctx, transactionID, audit.ActionValidationFailed, audit.Details{
		Channel: middleware.GetChannel(ctx),
		Errors:  map[string]any{"reason": "Invalid request body"},
	})
	outcomes.WithLabelValues(audit.ActionValidationFailed).Inc()
	return err
}

func (s *Service) baseDetails(ctx context.Context, req *Request) audit.Details {
	var kyc ledger.KYCStatus
	if parsed, ok := ledger.ParseKYCStatus(req.KYCStatus); ok {
		kyc = parsed
	}

	return audit.Details{
		UserID:        req.UserID,
		EconomyID:     req.EconomyID,
		Amount:        req.Amount,
		KnowledgeType: req.KnowledgeType,
		KnowledgeID:   req.KnowledgeID,
		Channel:       middleware.GetChannel(ctx),
		KYCStatus:     string(kyc),
	}
}

// commit runs the ledger writes and the settlement call in one transaction. A settlement
// failure rolls the ledger writes back.
func (s *Service) commit(ctx context.Context, req *Request, details audit.Details) (*ledger.Applied, *settlement.Receipt, error) {
	code := s.nextCode(ctx)

	metadata, err := json.Marshal(map[string]string{
		"knowledgeType": req.KnowledgeType,
		"knowledgeId":   req.KnowledgeID,
		"channel":       details.Channel,
		"requestId":     middleware.GetRequestID(ctx),
	})
	if err != nil {
		return nil, nil, err
	}

	kyc := ledger.KYCStatus(details.KYCStatus)
	if kyc == "" {
		kyc = s.defaultKYC
	}

	credit := ledger.Credit{
		ExternalUserID: req.UserID,
		WalletAddress:  req.WalletAddress,
		KYCStatus:      kyc,
		CurrencyCode:   req.EconomyID,
		Amount:         req.Amount,
		SourceTrxID:    req.TransactionID,
		Code:           code,
		Achievement:    ledger.Achievement(req.KnowledgeType, req.KnowledgeID),
		Metadata:       datatypes.JSON(metadata),
		ProcessedAt:    s.now(),
	}

	var (
		applied *ledger.Applied
		receipt *settlement.Receipt
	)
	err = s.ledger.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		applied, err = s.ledger.Apply(ctx, tx, credit)
		if err != nil {
			return err
		}

		receipt, err = s.settler.Transfer(ctx, settlement.Transfer{
			TransactionID: req.TransactionID,
			From:          treasury,
			To:            applied.User.WalletAddress,
			Amount:        req.Amount,
			CurrencyCode:  req.EconomyID,
		})
		if err != nil {
			return err
		}

		return s.ledger.AttachSettlement(ctx, tx, applied.Reward, receipt.Hash, receipt.Block, receipt.Signer)
	})
	if err != nil {
		return nil, nil, err
	}

	return applied, receipt, nil
}

func (s *Service) nextCode(ctx context.Context) string {
	if s.codes != nil {
		code, err := s.codes.NextRewardCode(ctx)
		if err == nil {
			return code
		}
		zap.L().Warn("reward code sequence unavailable", zap.Error(err))
	}
	return "RWD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

func (s *Service) publish(ctx context.Context, req *Request, result *Result) {
	if s.events == nil {
		return
	}

	t, err := rewardtask.NewRewardCompletedTask(rewardtask.RewardCompleted{
		TransactionID: result.TransactionID,
		RewardID:      result.RewardID,
		UserID:        req.UserID,
		EconomyID:     req.EconomyID,
		Amount:        req.Amount,
		NewBalance:    result.NewBalance,
		TransferHash:  result.TransferHash,
		BlockNumber:   result.BlockNumber,
		ProcessedAt:   result.ProcessedAt,
	})
	if err != nil {
		zap.L().Error("failed to build reward event", zap.Error(err))
		return
	}

	if _, err := s.events.Enqueue(context.WithoutCancel(ctx), t); err != nil {
		zap.L().Error("failed to enqueue reward event", zap.String("transaction_id", result.TransactionID), zap.Error(err))
	}
}

func (s *Service) GetBalances(ctx context.Context, externalUserID string) ([]*ledger.UserBalance, error) {
	balances, err := s.ledger.Balances(ctx, externalUserID)
	if err != nil {
		zap.L().Error("failed to load balances", zap.String("user_id", externalUserID), zap.Error(err))
		return nil, errutil.Internal("failed to load balances", err)
	}
	if balances == nil {
		balances = []*ledger.UserBalance{}
	}
	return balances, nil
}

func (s *Service) ListRewards(ctx context.Context, externalUserID string, page pagination.Pagination) ([]*ledger.KnowledgeReward, *pagination.PageInfo, error) {
	if page.Cursor != "" {
		if _, err := pagination.DecodeCursor(page.Cursor); err != nil {
			return nil, nil, errutil.BadRequest("invalid cursor", err)
		}
	}

	rewards, info, err := s.ledger.Rewards(ctx, externalUserID, page)
	if err != nil {
		zap.L().Error("failed to list rewards", zap.String("user_id", externalUserID), zap.Error(err))
		return nil, nil, errutil.Internal("failed to list rewards", err)
	}
	return rewards, info, nil
}

func (s *Service) GetReward(ctx context.Context, transactionID string) (*ledger.KnowledgeReward, error) {
	reward, err := s.ledger.FindReward(ctx, transactionID)
	if err != nil {
		zap.L().Error("failed to load reward", zap.String("transaction_id", transactionID), zap.Error(err))
		return nil, errutil.Internal("failed to load reward", err)
	}
	if reward == nil {
		return nil, errutil.NotFound("reward not found", nil)
	}
	return reward, nil
}

// GetSupply is the credited total per currency, all currencies when currency is empty.
func (s *Service) GetSupply(ctx context.Context, currency string) ([]*ledger.Supply, error) {
	supply, err := s.ledger.Supply(ctx, currency)
	if err != nil {
		zap.L().Error("failed to load supply", zap.String("currency", currency), zap.Error(err))
		return nil, errutil.Internal("failed to load supply", err)
	}
	return supply, nil
}

func messageOf(err error) string {
	var base errutil.BaseError
	if errors.As(err, &base) {
		return base.Message
	}
	return err.Error()
}
