package executor

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/copytracker/internal/crypto"
	"github.com/alanyoungcy/copytracker/internal/domain"
	"github.com/alanyoungcy/copytracker/internal/platform/polymarket"
)

type fakePoster struct {
	posted []crypto.OrderPayload
	types  []string
}

func (f *fakePoster) PostOrder(_ context.Context, payload crypto.OrderPayload, orderType string) (polymarket.OrderResult, error) {
	f.posted = append(f.posted, payload)
	f.types = append(f.types, orderType)
	return polymarket.OrderResult{Success: true, OrderID: "ord-1", Status: "matched"}, nil
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func fill(side domain.Side, size, price float64) domain.TradeEvent {
	return domain.TradeEvent{
		TransactionHash: "0x1",
		Timestamp:       time.Now().UTC(),
		MarketID:        "mkt-1",
		TokenID:         "yes-token",
		Outcome:         "Yes",
		Side:            side,
		Size:            size,
		Price:           price,
	}
}

func TestMirrorBuysWithFixedPointAmounts(t *testing.T) {
	poster := &fakePoster{}
	e := NewCopyExecutor(poster, "0x00000000000000000000000000000000000000aa", false, discard())

	err := e.Mirror(context.Background(), fill(domain.SideBuy, 10, 0.50), domain.Classification{Kind: domain.KindOpen})
	require.NoError(t, err)
	require.Len(t, poster.posted, 1)

	p := poster.posted[0]
	assert.Equal(t, 0, p.Side)
	assert.Equal(t, "5000000", p.MakerAmount) // 10 * 0.50 USDC in 1e6 units
	assert.Equal(t, "10000000", p.TakerAmount)
	assert.Equal(t, "yes-token", p.TokenID)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", p.Maker)
	assert.NotEmpty(t, p.Salt)
	assert.Equal(t, "FOK", poster.types[0])
}

func TestMirrorSellSwapsLegs(t *testing.T) {
	poster := &fakePoster{}
	e := NewCopyExecutor(poster, "0xaa", false, discard())

	err := e.Mirror(context.Background(), fill(domain.SideSell, 10, 0.50), domain.Classification{Kind: domain.KindFullClose})
	require.NoError(t, err)
	require.Len(t, poster.posted, 1)

	p := poster.posted[0]
	assert.Equal(t, 1, p.Side)
	assert.Equal(t, "10000000", p.MakerAmount)
	assert.Equal(t, "5000000", p.TakerAmount)
}

func TestMirrorDeduplicatesByTxHash(t *testing.T) {
	poster := &fakePoster{}
	e := NewCopyExecutor(poster, "0xaa", false, discard())
	ctx := context.Background()

	require.NoError(t, e.Mirror(ctx, fill(domain.SideBuy, 10, 0.50), domain.Classification{Kind: domain.KindOpen}))
	require.NoError(t, e.Mirror(ctx, fill(domain.SideBuy, 10, 0.50), domain.Classification{Kind: domain.KindOpen}))

	assert.Len(t, poster.posted, 1)
}

func TestMirrorDryRunPlacesNothing(t *testing.T) {
	poster := &fakePoster{}
	e := NewCopyExecutor(poster, "0xaa", true, discard())

	err := e.Mirror(context.Background(), fill(domain.SideBuy, 10, 0.50), domain.Classification{Kind: domain.KindOpen})
	require.NoError(t, err)
	assert.Empty(t, poster.posted)
}
