package settlement

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

var ErrSettlementFailed = errors.New("settlement failed")

// Transfer moves a reward amount to the recipient's wallet.
type Transfer struct {
	TransactionID string          `json:"transactionId"`
	From          string          `json:"from"`
	To            string          `json:"to"`
	Amount        decimal.Decimal `json:"amount"`
	CurrencyCode  string          `json:"currencyCode"`
}

// Receipt is the settlement reference persisted on the reward.
type Receipt struct {
	Hash   string `json:"hash"`
	Block  int64  `json:"block"`
	Signer string `json:"signer"`
}

type Settler interface {
	Transfer(ctx context.Context, t Transfer) (*Receipt, error)
}

// LocalSettler derives receipts without any external chain. The hash depends only on the
// transfer, the block number is a process-local counter.
type LocalSettler struct {
	signer string
	block  atomic.Int64
}

func NewLocalSettler(signer string, baseBlock int64) *LocalSettler {
	s := &LocalSettler{signer: signer}
	s.block.Store(baseBlock)
	return s
}

func (s *LocalSettler) Transfer(ctx context.Context, t Transfer) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.TransactionID == "" {
		return nil, fmt.Errorf("%w: missing transaction id", ErrSettlementFailed)
	}

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s|%s", t.TransactionID, t.From, t.To, t.Amount.String(), t.CurrencyCode)))

	return &Receipt{
		Hash:   "0x" + hex.EncodeToString(sum[:]),
		Block:  s.block.Add(1),
		Signer: s.signer,
	}, nil
}
