package reward

import (
	"errors"

	"knowledge-ledger/pkg/errutil"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrCompliance           = errors.New("compliance error")
	ErrProcessing           = errors.New("processing error")
)

func invalid(reason string, details ...errutil.Detail) error {
	return errutil.ValidationFailed(reason, ErrValidation, errutil.WithDetails(details...))
}

func duplicate(rewardID string) error {
	var opts []errutil.Option
	if rewardID != "" {
		opts = append(opts, errutil.WithDetails(errutil.Detail{Field: "rewardId", Message: rewardID}))
	}
	return errutil.Conflict("Transaction already processed", ErrDuplicateTransaction, opts...)
}

func rejected(reason string) error {
	return errutil.Forbidden("Compliance check failed", ErrCompliance,
		errutil.WithDetails(errutil.Detail{Field: "compliance", Message: reason}))
}

// processing keeps cause for errors.Is and server logs; the client only sees the message.
func processing(cause error) error {
	return errutil.Internal("Transaction processing failed", errors.Join(ErrProcessing, cause))
}
