package rediskey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	require.Equal(t, "reward:trx:tx1", BuildRewardTrxKey("tx1"))
	require.Equal(t, "seq:RWD:250101", BuildDailySequenceKey("RWD", "250101"))
}
