package game

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlayerBuyAveragesCost(t *testing.T) {
	p := NewPlayer(1_000 * MicrosPerStonky)
	_, err := p.buy("NIMBUS", ShareScale, 100*MicrosPerStonky)
	require.NoError(t, err)
	res, err := p.buy("NIMBUS", ShareScale, 200*MicrosPerStonky)
	require.NoError(t, err)

	pos := p.sortedPositions()
	require.Len(t, pos, 1)
	require.Equal(t, 2*ShareScale, pos[0].QuantityUnits)
	require.Equal(t, 150*MicrosPerStonky, pos[0].AvgPriceMicros)

	fees := feeMicros(100*MicrosPerStonky) + feeMicros(200*MicrosPerStonky)
	require.Equal(t, 700*MicrosPerStonky-fees, p.cash)
	require.Equal(t, p.cash, res.CashMicros)
}

func TestPlayerBuyNeverGoesNegative(t *testing.T) {
	p := NewPlayer(100 * MicrosPerStonky)
	_, err := p.buy("NIMBUS", 2*ShareScale, 100*MicrosPerStonky)
	require.True(t, errors.Is(err, ErrInsufficientFunds))
	require.Contains(t, err.Error(), "max buy")
	require.Equal(t, 100*MicrosPerStonky, p.cash)
	require.Empty(t, p.sortedPositions())
}

func TestPlayerSell(t *testing.T) {
	p := NewPlayer(1_000 * MicrosPerStonky)
	_, err := p.sell("NIMBUS", ShareScale, 100*MicrosPerStonky)
	require.ErrorIs(t, err, ErrInsufficientShares)

	_, err = p.buy("NIMBUS", ShareScale, 100*MicrosPerStonky)
	require.NoError(t, err)
	_, err = p.sell("NIMBUS", 2*ShareScale, 100*MicrosPerStonky)
	require.ErrorIs(t, err, ErrInsufficientShares)

	res, err := p.sell("NIMBUS", ShareScale, 120*MicrosPerStonky)
	require.NoError(t, err)
	require.Equal(t, 120*MicrosPerStonky, res.NotionalMicros)
	require.Empty(t, p.sortedPositions())
}

func TestPlayerHPClamp(t *testing.T) {
	p := NewPlayer(0)
	require.Equal(t, MaxHP, p.adjustHP(25))
	require.Equal(t, 40, p.adjustHP(-60))
	require.Equal(t, 0, p.adjustHP(-100))
}

func TestPlayerIdempotencyWindow(t *testing.T) {
	p := NewPlayer(0)
	require.Error(t, p.checkIdempotency("  "))
	require.NoError(t, p.checkIdempotency("k0"))
	p.rememberKey("k0")
	require.ErrorIs(t, p.checkIdempotency("k0"), ErrDuplicateIdempotency)

	for i := 1; i <= idempotencyWindow; i++ {
		p.rememberKey(fmt.Sprintf("k%d", i))
	}
	require.NoError(t, p.checkIdempotency("k0"))
	require.ErrorIs(t, p.checkIdempotency("k1"), ErrDuplicateIdempotency)
	require.Len(t, p.keyOrder, idempotencyWindow)
}

func TestPlayerStateRoundTrip(t *testing.T) {
	p := NewPlayer(500 * MicrosPerStonky)
	_, err := p.buy("COBOLT", 3*ShareScale, 10*MicrosPerStonky)
	require.NoError(t, err)
	p.rememberKey("abc")
	p.adjustHP(-10)
	p.recordOrder(OrderView{Symbol: "COBOLT", Side: "buy"})

	q := restorePlayer(p.state())
	require.Equal(t, p.cash, q.cash)
	require.Equal(t, p.hp, q.hp)
	require.Equal(t, p.sortedPositions(), q.sortedPositions())
	require.ErrorIs(t, q.checkIdempotency("abc"), ErrDuplicateIdempotency)
	require.Len(t, q.orders, 1)
	require.NotEmpty(t, q.orders[0].ID)
}
