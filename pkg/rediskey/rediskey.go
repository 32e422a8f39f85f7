package rediskey

import "fmt"

const (
	RewardTrxPrefix = "reward:trx"
	SequencePrefix  = "seq"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildRewardTrxKey returns "reward:trx:{transactionID}"
func BuildRewardTrxKey(transactionID string) string {
	return NamespaceKey(RewardTrxPrefix, transactionID)
}

// BuildDailySequenceKey returns "seq:{prefix}:{yymmdd}"
func BuildDailySequenceKey(prefix, day string) string {
	return fmt.Sprintf("%s:%s:%s", SequencePrefix, prefix, day)
}
