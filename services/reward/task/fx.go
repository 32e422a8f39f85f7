package task

import (
	"knowledge-ledger/services/ledger"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Module = fx.Module("reward.task",
	fx.Provide(
		func(s *ledger.Service) RewardFinder { return s },
		NewHandler,
	),
	fx.Invoke(func(mux *asynq.ServeMux, h *Handler) { h.Register(mux) }),
)
