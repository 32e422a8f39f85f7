package sequence

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^RWD-\d{6}-[0-9A-Z]{3,}[A-Z2-9]{2}$`)

func TestLocalGenerator(t *testing.T) {
	g := NewGenerator(Params{})

	first, err := g.NextRewardCode(context.Background())
	require.NoError(t, err)
	require.Regexp(t, codePattern, first)
	require.Contains(t, first, "-001")

	second, err := g.NextRewardCode(context.Background())
	require.NoError(t, err)
	require.Contains(t, second, "-002")
}

func TestLocalGeneratorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocalGenerator().NextRewardCode(ctx)
	require.Error(t, err)
}
