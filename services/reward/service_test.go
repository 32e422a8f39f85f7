package reward

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"knowledge-ledger/pkg/config"
	"knowledge-ledger/pkg/db/pagination"
	"knowledge-ledger/pkg/errutil"
	"knowledge-ledger/pkg/sequence"
	"knowledge-ledger/pkg/taskname"
	"knowledge-ledger/services/audit"
	"knowledge-ledger/services/compliance"
	"knowledge-ledger/services/ledger"
	"knowledge-ledger/services/settlement"
	"knowledge-ledger/services/testutil"

	"github.com/go-jose/go-jose/v4"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type memorySink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memorySink) Name() string { return "memory" }

func (m *memorySink) Put(_ context.Context, _ string, body []byte) error {
	var e audit.Entry
	if err := json.Unmarshal(body, &e); err != nil {
		return err
	}
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

func (m *memorySink) all() []audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Entry(nil), m.entries...)
}

type verifierMock struct {
	verifyFn func(ctx context.Context, claim compliance.Claim) (compliance.Decision, error)
}

func (m *verifierMock) Name() string { return "mock" }

func (m *verifierMock) Verify(ctx context.Context, claim compliance.Claim) (compliance.Decision, error) {
	return m.verifyFn(ctx, claim)
}

func allow() compliance.Verifier {
	return &verifierMock{verifyFn: func(context.Context, compliance.Claim) (compliance.Decision, error) {
		return compliance.Decision{Valid: true}, nil
	}}
}

type settlerMock struct {
	transferFn func(ctx context.Context, t settlement.Transfer) (*settlement.Receipt, error)
}

func (m *settlerMock) Transfer(ctx context.Context, t settlement.Transfer) (*settlement.Receipt, error) {
	return m.transferFn(ctx, t)
}

type enqueuerMock struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (m *enqueuerMock) Enqueue(_ context.Context, t *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	m.mu.Lock()
	m.tasks = append(m.tasks, t)
	m.mu.Unlock()
	return &asynq.TaskInfo{}, nil
}

type hintMock struct {
	mu         sync.Mutex
	known      map[string]string
	remembered map[string]string
}

func (m *hintMock) Lookup(_ context.Context, id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.known[id]
	return v, ok
}

func (m *hintMock) Remember(_ context.Context, id, rewardID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remembered[id] = rewardID
}

type fixture struct {
	svc    *Service
	ledger *ledger.Service
	db     *gorm.DB
	sink   *memorySink
}

type option func(*Params)

func withGate(g *compliance.Gate) option { return func(p *Params) { p.Gate = g } }

func withSettler(s settlement.Settler) option { return func(p *Params) { p.Settler = s } }

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t, ledger.Models()...)
	ls := ledger.NewService(ledger.ServiceParams{DB: db, Node: testutil.NewTestNode(t)})
	sink := &memorySink{}

	cfg := &config.Config{}
	cfg.Reward.MaxAmount = "1000"
	cfg.KYC.DefaultStatus = "PENDING"

	p := Params{
		Config:  cfg,
		Ledger:  ls,
		Gate:    compliance.NewGate(time.Second, false, allow()),
		Settler: settlement.NewLocalSettler("azora-covenant", 0),
		Audit:   audit.NewLogger("azora-mint", "azora-covenant", sink),
		Codes:   sequence.NewLocalGenerator(),
	}
	for _, o := range opts {
		o(&p)
	}

	svc, err := NewService(p)
	require.NoError(t, err)

	return &fixture{svc: svc, ledger: ls, db: db, sink: sink}
}

func exampleRequest() *Request {
	return &Request{
		TransactionID: "tx1",
		UserID:        "u1",
		EconomyID:     "ZAR",
		Amount:        decimal.NewFromInt(100),
		KnowledgeType: "course_completion",
		KnowledgeID:   "c1",
		Signature:     "sig",
	}
}

func statusOf(t *testing.T, err error) errutil.CoreStatus {
	t.Helper()
	var base errutil.BaseError
	require.True(t, errors.As(err, &base), "expected BaseError, got %T", err)
	return base.Code
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func (f *fixture) requireEmptyLedger(t *testing.T) {
	t.Helper()
	require.Zero(t, f.count(t, &ledger.User{}))
	require.Zero(t, f.count(t, &ledger.UserBalance{}))
	require.Zero(t, f.count(t, &ledger.KnowledgeReward{}))
}

func TestProcessRewardExampleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.ProcessReward(ctx, exampleRequest())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "tx1", res.TransactionID)
	require.True(t, res.NewBalance.Equal(decimal.NewFromInt(100)))
	require.NotEmpty(t, res.RewardID)
	require.NotEmpty(t, res.TransferHash)
	require.Equal(t, int64(1), res.BlockNumber)
	require.False(t, res.ProcessedAt.IsZero())

	_, err = f.svc.ProcessReward(ctx, exampleRequest())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrDuplicateTransaction))
	require.Equal(t, 409, statusOf(t, err).HTTPStatus())

	balances, err := f.svc.GetBalances(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, balances, 1)
	require.True(t, balances[0].Amount.Equal(decimal.NewFromInt(100)))

	entries := f.sink.all()
	require.Len(t, entries, 2)
	require.Equal(t, audit.StatusSuccess, entries[0].Status)
	require.Equal(t, audit.ActionDuplicateTransaction, entries[1].Action)
	require.Equal(t, audit.StatusFailure, entries[1].Status)
	require.Equal(t, res.RewardID, entries[1].RewardDetails.RewardID)
}

func TestProcessRewardInvalidKnowledgeType(t *testing.T) {
	f := newFixture(t)

	req := exampleRequest()
	req.KnowledgeType = "invalid_type"

	_, err := f.svc.ProcessReward(context.Background(), req)
	require.True(t, errors.Is(err, ErrValidation))
	require.Equal(t, 400, statusOf(t, err).HTTPStatus())

	f.requireEmptyLedger(t)

	entries := f.sink.all()
	require.Len(t, entries, 1)
	require.Equal(t, audit.StatusFailure, entries[0].Status)
	require.Equal(t, audit.ActionValidationFailed, entries[0].Action)
	require.Equal(t, "Invalid knowledge type", entries[0].ErrorDetails["reason"])
}

func TestProcessRewardAmountBoundaries(t *testing.T) {
	cases := []struct {
		amount int64
		ok     bool
		reason string
	}{
		{amount: 1000, ok: true},
		{amount: 1, ok: true},
		{amount: 1001, reason: "Amount exceeds maximum reward limit"},
		{amount: 0, reason: "Missing required fields"},
		{amount: -5, reason: "Amount must be positive"},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("amount_%d", tc.amount), func(t *testing.T) {
			f := newFixture(t)

			req := exampleRequest()
			req.Amount = decimal.NewFromInt(tc.amount)

			res, err := f.svc.ProcessReward(context.Background(), req)
			entries := f.sink.all()
			require.Len(t, entries, 1)

			if tc.ok {
				require.NoError(t, err)
				require.True(t, res.NewBalance.Equal(decimal.NewFromInt(tc.amount)))
				return
			}

			require.True(t, errors.Is(err, ErrValidation))
			var base errutil.BaseError
			require.True(t, errors.As(err, &base))
			require.Equal(t, tc.reason, base.Message)
			f.requireEmptyLedger(t)
			require.Equal(t, audit.StatusFailure, entries[0].Status)
		})
	}
}

func TestProcessRewardAmountScale(t *testing.T) {
	f := newFixture(t)

	req := exampleRequest()
	req.Amount = decimal.RequireFromString("0.000000001")
	_, err := f.svc.ProcessReward(context.Background(), req)
	require.True(t, errors.Is(err, ErrValidation))
	var base errutil.BaseError
	require.True(t, errors.As(err, &base))
	require.Equal(t, "Amount has too many decimal places", base.Message)
	f.requireEmptyLedger(t)

	req = exampleRequest()
	req.TransactionID = "tx2"
	req.Amount = decimal.RequireFromString("12.50000000")
	res, err := f.svc.ProcessReward(context.Background(), req)
	require.NoError(t, err)
	require.True(t, res.NewBalance.Equal(decimal.RequireFromString("12.5")))
}

func TestProcessRewardMissingFields(t *testing.T) {
	blank := []func(*Request){
		func(r *Request) { r.TransactionID = "" },
		func(r *Request) { r.UserID = "" },
		func(r *Request) { r.EconomyID = "" },
		func(r *Request) { r.KnowledgeType = "" },
		func(r *Request) { r.KnowledgeID = "" },
		func(r *Request) { r.Signature = "" },
	}

	for i, mutate := range blank {
		t.Run(fmt.Sprintf("field_%d", i), func(t *testing.T) {
			f := newFixture(t)
			req := exampleRequest()
			mutate(req)

			_, err := f.svc.ProcessReward(context.Background(), req)
			require.True(t, errors.Is(err, ErrValidation))

			var base errutil.BaseError
			require.True(t, errors.As(err, &base))
			require.Equal(t, "Missing required fields", base.Message)
			require.NotEmpty(t, base.Details)

			f.requireEmptyLedger(t)
			require.Len(t, f.sink.all(), 1)
		})
	}
}

func TestProcessRewardNilRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ProcessReward(context.Background(), nil)
	require.True(t, errors.Is(err, ErrValidation))

	entries := f.sink.all()
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].AuditReportID, "unknown-")
}

func TestProcessRewardComplianceRejected(t *testing.T) {
	deny := &verifierMock{verifyFn: func(context.Context, compliance.Claim) (compliance.Decision, error) {
		return compliance.Decision{Valid: false, Reason: "sanctioned user"}, nil
	}}
	f := newFixture(t, withGate(compliance.NewGate(time.Second, false, deny)))

	_, err := f.svc.ProcessReward(context.Background(), exampleRequest())
	require.True(t, errors.Is(err, ErrCompliance))
	require.Equal(t, 403, statusOf(t, err).HTTPStatus())
	f.requireEmptyLedger(t)

	entries := f.sink.all()
	require.Len(t, entries, 1)
	require.Equal(t, audit.ActionComplianceFailed, entries[0].Action)
	require.Equal(t, "sanctioned user", entries[0].ErrorDetails["reason"])
}

func TestProcessRewardComplianceUnavailableFailsClosed(t *testing.T) {
	down := &verifierMock{verifyFn: func(context.Context, compliance.Claim) (compliance.Decision, error) {
		return compliance.Decision{}, compliance.ErrUnavailable
	}}
	f := newFixture(t, withGate(compliance.NewGate(time.Second, false, down)))

	_, err := f.svc.ProcessReward(context.Background(), exampleRequest())
	require.True(t, errors.Is(err, ErrCompliance))
	f.requireEmptyLedger(t)
}

func TestProcessRewardComplianceUnavailableDevMode(t *testing.T) {
	down := &verifierMock{verifyFn: func(context.Context, compliance.Claim) (compliance.Decision, error) {
		return compliance.Decision{}, compliance.ErrUnavailable
	}}
	f := newFixture(t, withGate(compliance.NewGate(time.Second, true, down)))

	_, err := f.svc.ProcessReward(context.Background(), exampleRequest())
	require.NoError(t, err)

	entries := f.sink.all()
	require.Len(t, entries, 1)
	require.True(t, entries[0].ComplianceCheck.DevMode)
}

func TestProcessRewardSignedClaim(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	sig, err := compliance.NewSignatureVerifier(key, "HS256")
	require.NoError(t, err)
	f := newFixture(t, withGate(compliance.NewGate(time.Second, false, sig)))

	req := exampleRequest()
	req.Signature, err = compliance.Sign(key, jose.HS256, compliance.Claim{
		TransactionID: req.TransactionID,
		UserID:        req.UserID,
		EconomyID:     req.EconomyID,
		Amount:        req.Amount,
		KnowledgeType: req.KnowledgeType,
		KnowledgeID:   req.KnowledgeID,
	})
	require.NoError(t, err)

	_, err = f.svc.ProcessReward(context.Background(), req)
	require.NoError(t, err)

	forged := exampleRequest()
	forged.TransactionID = "tx2"
	forged.Signature = req.Signature
	_, err = f.svc.ProcessReward(context.Background(), forged)
	require.True(t, errors.Is(err, ErrCompliance))
}

func TestProcessRewardSettlementFailureRollsBack(t *testing.T) {
	broken := &settlerMock{transferFn: func(context.Context, settlement.Transfer) (*settlement.Receipt, error) {
		return nil, fmt.Errorf("%w: chain halted", settlement.ErrSettlementFailed)
	}}
	f := newFixture(t, withSettler(broken))

	_, err := f.svc.ProcessReward(context.Background(), exampleRequest())
	require.True(t, errors.Is(err, ErrProcessing))
	require.Equal(t, 500, statusOf(t, err).HTTPStatus())
	require.NotContains(t, statusMessage(err), "chain halted")

	f.requireEmptyLedger(t)

	entries := f.sink.all()
	require.Len(t, entries, 1)
	require.Equal(t, audit.ActionTransactionFailed, entries[0].Action)
}

func statusMessage(err error) string {
	var base errutil.BaseError
	if errors.As(err, &base) {
		return base.Message
	}
	return ""
}

func TestProcessRewardInsertFailureRollsBack(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_rewards", func(tx *gorm.DB) {
		if tx.Statement.Table == "knowledge_rewards" {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	_, err := f.svc.ProcessReward(context.Background(), exampleRequest())
	require.True(t, errors.Is(err, ErrProcessing))

	f.requireEmptyLedger(t)
	require.Len(t, f.sink.all(), 1)
}

func TestProcessRewardRaceOnUniqueConstraint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// another replica committed the same transaction between our pre-check and insert
	raced := false
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:race", func(tx *gorm.DB) {
		if tx.Statement.Table != "knowledge_rewards" || raced {
			return
		}
		raced = true
		_ = tx.AddError(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey))
	}))

	_, err := f.svc.ProcessReward(ctx, exampleRequest())
	require.True(t, errors.Is(err, ErrDuplicateTransaction))
	require.Equal(t, 409, statusOf(t, err).HTTPStatus())
	f.requireEmptyLedger(t)

	entries := f.sink.all()
	require.Len(t, entries, 1)
	require.Equal(t, audit.ActionDuplicateTransaction, entries[0].Action)
}

func TestProcessRewardRaceLoserReportsWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	winner, err := f.svc.ProcessReward(ctx, exampleRequest())
	require.NoError(t, err)

	// the next idempotency pre-check misses, so the insert hits the unique index
	hidden := false
	require.NoError(t, f.db.Callback().Query().Before("gorm:query").Register("test:stale_read", func(tx *gorm.DB) {
		if tx.Statement.Table != "knowledge_rewards" || hidden {
			return
		}
		hidden = true
		tx.Statement.AddClause(clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "1 = 0"}}})
	}))

	_, err = f.svc.ProcessReward(ctx, exampleRequest())
	require.True(t, errors.Is(err, ErrDuplicateTransaction))
	require.True(t, hidden)

	var base errutil.BaseError
	require.True(t, errors.As(err, &base))
	require.Equal(t, []errutil.Detail{{Field: "rewardId", Message: winner.RewardID}}, base.Details)

	entries := f.sink.all()
	require.Len(t, entries, 2)
	require.Equal(t, audit.ActionDuplicateTransaction, entries[1].Action)
	require.Equal(t, winner.RewardID, entries[1].RewardDetails.RewardID)

	balances, err := f.svc.GetBalances(ctx, "u1")
	require.NoError(t, err)
	require.True(t, balances[0].Amount.Equal(decimal.NewFromInt(100)))
}

func TestProcessRewardConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ProcessReward(context.Background(), exampleRequest())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrDuplicateTransaction):
				dupes++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, n-1, dupes)
	require.Equal(t, int64(1), f.count(t, &ledger.KnowledgeReward{}))
	require.Len(t, f.sink.all(), n)

	balances, err := f.svc.GetBalances(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, balances[0].Amount.Equal(decimal.NewFromInt(100)))
}

func TestProcessRewardConcurrentSameUserNoLostUpdates(t *testing.T) {
	f := newFixture(t)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := exampleRequest()
			req.TransactionID = fmt.Sprintf("tx-%d", i)
			req.Amount = decimal.NewFromInt(10)
			_, errs[i] = f.svc.ProcessReward(context.Background(), req)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	balances, err := f.svc.GetBalances(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, balances, 1)
	require.True(t, balances[0].Amount.Equal(decimal.NewFromInt(100)))
	require.Equal(t, int64(1), f.count(t, &ledger.User{}))
}

func TestProcessRewardSuccessAuditIsComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ProcessReward(ctx, exampleRequest())
	require.NoError(t, err)

	second := exampleRequest()
	second.TransactionID = "tx2"
	res, err := f.svc.ProcessReward(ctx, second)
	require.NoError(t, err)
	require.True(t, res.NewBalance.Equal(decimal.NewFromInt(200)))

	e := f.sink.all()[1]
	require.Equal(t, "tx2", e.AuditReportID)
	require.Equal(t, audit.StatusSuccess, e.Status)
	require.Equal(t, "azora-mint", e.ServiceInitiator)
	require.Equal(t, "azora-covenant", e.DestinationService)
	require.Equal(t, "PENDING", e.ComplianceCheck.KYCStatus)
	require.Equal(t, "tx2", e.ComplianceCheck.ComplianceLogID)
	require.True(t, e.ComplianceCheck.IdempotencyCheck)
	require.True(t, e.FundStatusSnapshot.UBOBalanceBefore.Equal(decimal.NewFromInt(100)))
	require.True(t, e.FundStatusSnapshot.UBOBalanceAfter.Equal(decimal.NewFromInt(200)))
	require.True(t, e.FundStatusSnapshot.TransferExecuted.Equal(decimal.NewFromInt(100)))
	require.Equal(t, res.TransferHash, e.BlockchainDetails.TransferHash)
	require.Equal(t, res.BlockNumber, e.BlockchainDetails.BlockNumber)
	require.Equal(t, res.RewardID, e.RewardDetails.RewardID)
	require.Equal(t, "course_completion", e.RewardDetails.KnowledgeType)
	require.Equal(t, "completed", e.AuditCheckpoints["transfer"])
}

func TestProcessRewardFailureAuditDefaults(t *testing.T) {
	f := newFixture(t)

	req := exampleRequest()
	req.Amount = decimal.NewFromInt(5000)
	_, err := f.svc.ProcessReward(context.Background(), req)
	require.Error(t, err)

	e := f.sink.all()[0]
	require.Equal(t, "unknown", e.ComplianceCheck.KYCStatus)
	require.Equal(t, "tx1", e.ComplianceCheck.ComplianceLogID)
	require.True(t, e.ComplianceCheck.IdempotencyCheck)
	require.True(t, e.FundStatusSnapshot.UBOBalanceBefore.IsZero())
	require.Empty(t, e.BlockchainDetails.TransferHash)
	require.NotNil(t, e.AuditCheckpoints)
}

func TestProcessRewardKYCStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ProcessReward(ctx, exampleRequest())
	require.NoError(t, err)
	user, err := f.ledger.FindUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, ledger.KYCPending, user.KYCStatus)

	verified := exampleRequest()
	verified.TransactionID = "tx2"
	verified.UserID = "u2"
	verified.KYCStatus = "verified"
	_, err = f.svc.ProcessReward(ctx, verified)
	require.NoError(t, err)
	user, err = f.ledger.FindUser(ctx, "u2")
	require.NoError(t, err)
	require.Equal(t, ledger.KYCVerified, user.KYCStatus)

	bogus := exampleRequest()
	bogus.TransactionID = "tx3"
	bogus.KYCStatus = "trust-me"
	_, err = f.svc.ProcessReward(ctx, bogus)
	require.True(t, errors.Is(err, ErrValidation))
}

func TestProcessRewardUsesHintCache(t *testing.T) {
	f := newFixture(t)
	hints := &hintMock{known: map[string]string{"seen": "42"}, remembered: map[string]string{}}
	f.svc.hints = hints

	req := exampleRequest()
	req.TransactionID = "seen"
	_, err := f.svc.ProcessReward(context.Background(), req)
	require.True(t, errors.Is(err, ErrDuplicateTransaction))
	require.Zero(t, f.count(t, &ledger.KnowledgeReward{}))

	res, err := f.svc.ProcessReward(context.Background(), exampleRequest())
	require.NoError(t, err)
	require.Equal(t, res.RewardID, hints.remembered["tx1"])
}

func TestProcessRewardPublishesEvent(t *testing.T) {
	f := newFixture(t)
	events := &enqueuerMock{}
	f.svc.events = events

	_, err := f.svc.ProcessReward(context.Background(), exampleRequest())
	require.NoError(t, err)

	require.Len(t, events.tasks, 1)
	require.Equal(t, taskname.RewardCompleted, events.tasks[0].Type())

	req := exampleRequest()
	req.KnowledgeType = "nope"
	_, _ = f.svc.ProcessReward(context.Background(), req)
	require.Len(t, events.tasks, 1)
}

func TestProcessRewardPersistsVerifiableReward(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.ProcessReward(context.Background(), exampleRequest())
	require.NoError(t, err)

	reward, err := f.svc.GetReward(context.Background(), "tx1")
	require.NoError(t, err)
	require.Equal(t, res.RewardID, reward.ID.String())
	require.Equal(t, "course_completion: c1", reward.Achievement)
	require.Equal(t, ledger.RewardCompleted, reward.Status)
	require.Equal(t, res.TransferHash, reward.TransferHash)
	require.Equal(t, "azora-covenant", reward.Signer)
	require.Regexp(t, `^RWD-\d{6}-`, reward.Code)
	require.True(t, reward.Verify())
}

func TestGetRewardNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetReward(context.Background(), "missing")
	require.Equal(t, errutil.StatusNotFound, statusOf(t, err))
}

func TestListRewards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		req := exampleRequest()
		req.TransactionID = fmt.Sprintf("tx-%d", i)
		_, err := f.svc.ProcessReward(ctx, req)
		require.NoError(t, err)
	}

	rewards, info, err := f.svc.ListRewards(ctx, "u1", pagination.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, rewards, 2)
	require.True(t, info.HasMore)

	_, _, err = f.svc.ListRewards(ctx, "u1", pagination.Pagination{Cursor: "!!"})
	require.Equal(t, errutil.StatusBadRequest, statusOf(t, err))

	rewards, _, err = f.svc.ListRewards(ctx, "ghost", pagination.Pagination{})
	require.NoError(t, err)
	require.Empty(t, rewards)
}

func TestNewServiceRejectsBadMaxAmount(t *testing.T) {
	cfg := &config.Config{}
	cfg.Reward.MaxAmount = "lots"

	_, err := NewService(Params{Config: cfg})
	require.Error(t, err)
}
