package priceoracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentwood/voiceledger/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubOracle struct {
	price float64
	err   error
	calls int
}

func (s *stubOracle) CurrentPrice(context.Context) (float64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.price, nil
}

func TestCachedOracleServesFromCacheWithinTTL(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	upstream := &stubOracle{price: 0.02}
	oracle := NewCachedOracle(upstream, clk, 5*time.Minute, zap.NewNop(), nil)

	for i := 0; i < 10; i++ {
		price, err := oracle.CurrentPrice(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0.02, price)
	}
	assert.Equal(t, 1, upstream.calls)
}

func TestCachedOracleRefreshesAfterTTL(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	upstream := &stubOracle{price: 0.02}
	oracle := NewCachedOracle(upstream, clk, 5*time.Minute, zap.NewNop(), nil)

	_, err := oracle.CurrentPrice(context.Background())
	require.NoError(t, err)

	upstream.price = 0.04
	clk.Advance(6 * time.Minute)

	price, err := oracle.CurrentPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.04, price)
	assert.Equal(t, 2, upstream.calls)
}

func TestCachedOracleServesStaleOnFetchFailure(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	upstream := &stubOracle{price: 0.02}
	oracle := NewCachedOracle(upstream, clk, time.Minute, zap.NewNop(), nil)

	_, err := oracle.CurrentPrice(context.Background())
	require.NoError(t, err)

	upstream.err = errors.New("connection refused")
	clk.Advance(2 * time.Minute)

	price, err := oracle.CurrentPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.02, price)
}

func TestCachedOracleFailsWhenNeverPrimed(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	upstream := &stubOracle{err: errors.New("connection refused")}
	oracle := NewCachedOracle(upstream, clk, time.Minute, zap.NewNop(), nil)

	_, err := oracle.CurrentPrice(context.Background())
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}
