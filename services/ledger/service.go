package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"knowledge-ledger/pkg/db"
	"knowledge-ledger/pkg/db/option"
	"knowledge-ledger/pkg/db/pagination"
	"knowledge-ledger/pkg/repository"

	health "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service owns the users, user_balances and knowledge_rewards tables.
type Service struct {
	health.UnimplementedHealthServer

	db   *gorm.DB
	node *snowflake.Node

	users    repository.Repository[User]
	balances repository.Repository[UserBalance]
	rewards  repository.Repository[KnowledgeReward]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,

		users:    repository.ProvideStore[User](p.DB),
		balances: repository.ProvideStore[UserBalance](p.DB),
		rewards:  repository.ProvideStore[KnowledgeReward](p.DB),
	}
}

func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(Models()...)
}

// Credit is one reward to be applied atomically.
type Credit struct {
	ExternalUserID string
	WalletAddress  string
	KYCStatus      KYCStatus
	CurrencyCode   string
	Amount         decimal.Decimal
	SourceTrxID    string
	Code           string
	Achievement    string
	Metadata       datatypes.JSON
	ProcessedAt    time.Time
}

type Applied struct {
	User          *User
	Balance       *UserBalance
	BalanceBefore decimal.Decimal
	Reward        *KnowledgeReward
}

// Transaction runs fn inside a single database transaction; any error rolls everything back.
func (s *Service) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// Apply upserts the user, increments the balance and inserts the reward inside tx.
func (s *Service) Apply(ctx context.Context, tx *gorm.DB, c Credit) (*Applied, error) {
	user, err := s.upsertUser(ctx, tx, c)
	if err != nil {
		return nil, err
	}

	balance, err := s.incrementBalance(ctx, tx, user.ID, c.CurrencyCode, c.Amount)
	if err != nil {
		return nil, err
	}

	reward := &KnowledgeReward{
		ID:           s.node.Generate(),
		Code:         c.Code,
		UserID:       user.ID,
		RewardAmount: c.Amount,
		CurrencyCode: c.CurrencyCode,
		SourceTrxID:  c.SourceTrxID,
		Achievement:  c.Achievement,
		Status:       RewardCompleted,
		Metadata:     c.Metadata,
		ProcessedAt:  c.ProcessedAt.UTC().Truncate(time.Microsecond),
	}
	reward.Hash = reward.GenerateHash()

	if err := s.rewards.WithTrx(tx).Create(ctx, reward); err != nil {
		return nil, err
	}

	return &Applied{
		User:          user,
		Balance:       balance,
		BalanceBefore: balance.Amount.Sub(c.Amount),
		Reward:        reward,
	}, nil
}

func (s *Service) upsertUser(ctx context.Context, tx *gorm.DB, c Credit) (*User, error) {
	wallet := c.WalletAddress
	if wallet == "" {
		wallet = "0x" + c.ExternalUserID
	}

	now := time.Now()
	candidate := &User{
		ID:            s.node.Generate(),
		ExternalID:    c.ExternalUserID,
		WalletAddress: wallet,
		KYCStatus:     c.KYCStatus,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoNothing: true,
	}).Create(candidate).Error; err != nil {
		return nil, err
	}

	user, err := s.users.WithTrx(tx).FindOne(ctx, &User{ExternalID: c.ExternalUserID})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("user upsert returned no row")
	}

	return user, nil
}

// incrementBalance adds amount with a single "amount = amount + ?" statement so concurrent
// rewards for the same user never lose an update.
func (s *Service) incrementBalance(ctx context.Context, tx *gorm.DB, userID snowflake.ID, currency string, amount decimal.Decimal) (*UserBalance, error) {
	bump := func() (int64, error) {
		res := tx.WithContext(ctx).Model(&UserBalance{}).
			Where("user_id = ? AND currency_code = ?", userID, currency).
			Updates(map[string]any{
				"amount":     gorm.Expr("amount + ?", amount),
				"updated_at": time.Now(),
			})
		return res.RowsAffected, res.Error
	}

	affected, err := bump()
	if err != nil {
		return nil, err
	}

	if affected == 0 {
		now := time.Now()
		created := &UserBalance{
			ID:           s.node.Generate(),
			UserID:       userID,
			CurrencyCode: currency,
			Amount:       amount,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		// nested transaction = savepoint, so a lost insert race does not poison tx
		err := tx.Transaction(func(inner *gorm.DB) error {
			return s.balances.WithTrx(inner).Create(ctx, created)
		})
		switch {
		case err == nil:
		case IsDuplicate(err):
			if affected, err = bump(); err != nil {
				return nil, err
			}
			if affected == 0 {
				return nil, errors.New("balance row vanished during increment")
			}
		default:
			return nil, err
		}
	}

	balance, err := s.balances.WithTrx(tx).FindOne(ctx, &UserBalance{UserID: userID, CurrencyCode: currency})
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return nil, errors.New("balance missing after increment")
	}

	return balance, nil
}

// AttachSettlement records the settlement reference on a reward inside the same transaction.
func (s *Service) AttachSettlement(ctx context.Context, tx *gorm.DB, reward *KnowledgeReward, hash string, block int64, signer string) error {
	reward.TransferHash = hash
	reward.BlockNumber = block
	reward.Signer = signer

	return tx.WithContext(ctx).Model(&KnowledgeReward{}).
		Where("id = ?", reward.ID).
		Updates(map[string]any{
			"transfer_hash": hash,
			"block_number":  block,
			"signer":        signer,
		}).Error
}

func (s *Service) FindReward(ctx context.Context, sourceTrxID string) (*KnowledgeReward, error) {
	return s.rewards.FindOne(ctx, &KnowledgeReward{SourceTrxID: sourceTrxID})
}

func (s *Service) Exists(ctx context.Context, sourceTrxID string) (bool, error) {
	n, err := s.rewards.Count(ctx, &KnowledgeReward{SourceTrxID: sourceTrxID})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Service) FindUser(ctx context.Context, externalUserID string) (*User, error) {
	return s.users.FindOne(ctx, &User{ExternalID: externalUserID})
}

// Balances returns nil (no error) for unknown users.
func (s *Service) Balances(ctx context.Context, externalUserID string) ([]*UserBalance, error) {
	user, err := s.FindUser(ctx, externalUserID)
	if err != nil || user == nil {
		return nil, err
	}

	return s.balances.Find(ctx, &UserBalance{UserID: user.ID}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "currency_code",
		OrderBy: "asc",
		Allow:   map[string]bool{"currency_code": true},
	}))
}

// Rewards lists a user's rewards newest first using the reward id (time ordered) as cursor.
func (s *Service) Rewards(ctx context.Context, externalUserID string, page pagination.Pagination) ([]*KnowledgeReward, *pagination.PageInfo, error) {
	page = page.Normalize()

	user, err := s.FindUser(ctx, externalUserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return []*KnowledgeReward{}, &pagination.PageInfo{}, nil
	}

	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "desc", Allow: map[string]bool{"id": true}}),
		option.WithLimit(page.Limit + 1),
	}

	if page.Cursor != "" {
		cursor, err := pagination.DecodeCursor(page.Cursor)
		if err != nil {
			return nil, nil, err
		}
		lastID, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "id", Operator: option.LT, Value: lastID}))
	}

	rows, err := s.rewards.Find(ctx, &KnowledgeReward{UserID: user.ID}, opts...)
	if err != nil {
		zap.L().Error("failed to query rewards", zap.String("user_id", externalUserID), zap.Error(err))
		return nil, nil, err
	}

	return pagination.Page(rows, page.Limit, func(r *KnowledgeReward) pagination.Cursor {
		return pagination.Cursor{ID: r.ID.String(), CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339Nano)}
	})
}

// Supply is the total credited to all holders of one currency.
type Supply struct {
	CurrencyCode string          `json:"currencyCode"`
	Total        decimal.Decimal `json:"total"`
	Holders      int64           `json:"holders"`
}

// Supply sums user balances per currency, optionally restricted to one currency code.
func (s *Service) Supply(ctx context.Context, currency string) ([]*Supply, error) {
	q := s.db.WithContext(ctx).Model(&UserBalance{}).
		Select("currency_code, SUM(amount) AS total, COUNT(*) AS holders").
		Group("currency_code").
		Order("currency_code")
	if currency != "" {
		q = q.Where("currency_code = ?", currency)
	}

	out := []*Supply{}
	if err := q.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// IsDuplicate reports whether err is a unique-constraint violation.
func IsDuplicate(err error) bool {
	return db.IsDuplicate(err)
}
