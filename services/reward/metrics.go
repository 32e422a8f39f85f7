package reward

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "knowledge_ledger",
		Name:      "reward_outcomes_total",
		Help:      "Reward requests by audited action.",
	}, []string{"action"})

	credited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "knowledge_ledger",
		Name:      "reward_credited_total",
		Help:      "Amount credited to user balances, per economy.",
	}, []string{"economy_id"})
)
