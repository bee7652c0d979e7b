package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/copytracker/internal/domain"
)

var now = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func pos(tokenID, marketID string, size, entry float64) domain.Position {
	return domain.Position{
		TokenID:    tokenID,
		MarketID:   marketID,
		Outcome:    "Yes",
		Size:       size,
		EntryPrice: entry,
		Direction:  domain.DirectionLong,
		OpenedAt:   now,
		UpdatedAt:  now,
	}
}

func closedTrade(id string, pnl float64) domain.ClosedTrade {
	return domain.ClosedTrade{
		ID:          id,
		MarketID:    "mkt-1",
		TokenID:     "yes-token",
		Kind:        domain.KindFullClose,
		ClosingSize: 10,
		EntryPrice:  0.5,
		ExitPrice:   0.6,
		RealizedPnL: pnl,
		ClosedAt:    now,
	}
}

func TestApplyUpsertAndLookup(t *testing.T) {
	l := New()

	require.NoError(t, l.Apply(domain.LedgerDelta{
		Upserts: []domain.Position{pos("yes-token", "mkt-1", 100, 0.5)},
	}))

	got, ok := l.GetPosition("yes-token")
	require.True(t, ok)
	assert.Equal(t, 100.0, got.Size)

	opp, ok := l.GetOppositePosition("mkt-1", "no-token")
	require.True(t, ok)
	assert.Equal(t, "yes-token", opp.TokenID)

	_, ok = l.GetOppositePosition("mkt-1", "yes-token")
	assert.False(t, ok, "a token is not its own opposite")

	_, ok = l.GetOppositePosition("mkt-2", "no-token")
	assert.False(t, ok)
}

func TestApplyRemovalClearsMarketIndex(t *testing.T) {
	l := New()
	require.NoError(t, l.Apply(domain.LedgerDelta{
		Upserts: []domain.Position{pos("yes-token", "mkt-1", 100, 0.5)},
	}))

	require.NoError(t, l.Apply(domain.LedgerDelta{
		Removals: []string{"yes-token"},
		Closed:   []domain.ClosedTrade{closedTrade("t1", 10)},
	}))

	_, ok := l.GetPosition("yes-token")
	assert.False(t, ok)
	_, ok = l.GetOppositePosition("mkt-1", "no-token")
	assert.False(t, ok)
	assert.Equal(t, 10.0, l.CumulativePnL())
}

func TestApplyRejectsNonPositiveUpsert(t *testing.T) {
	l := New()

	err := l.Apply(domain.LedgerDelta{
		Upserts: []domain.Position{pos("yes-token", "mkt-1", 0, 0.5)},
	})
	require.ErrorIs(t, err, domain.ErrInconsistentState)
}

func TestApplyRejectsUnknownRemoval(t *testing.T) {
	l := New()

	err := l.Apply(domain.LedgerDelta{Removals: []string{"ghost"}})
	require.ErrorIs(t, err, domain.ErrInconsistentState)
}

func TestApplyIsAtomicOnValidationFailure(t *testing.T) {
	l := New()
	require.NoError(t, l.Apply(domain.LedgerDelta{
		Upserts: []domain.Position{pos("yes-token", "mkt-1", 100, 0.5)},
	}))

	// The removal is valid but the upsert is not; nothing may change.
	err := l.Apply(domain.LedgerDelta{
		Removals: []string{"yes-token"},
		Upserts:  []domain.Position{pos("no-token", "mkt-1", -5, 0.5)},
		Closed:   []domain.ClosedTrade{closedTrade("t1", 10)},
	})
	require.ErrorIs(t, err, domain.ErrInconsistentState)

	got, ok := l.GetPosition("yes-token")
	require.True(t, ok)
	assert.Equal(t, 100.0, got.Size)
	assert.Zero(t, l.CumulativePnL())
	assert.Empty(t, l.ClosedTrades(0))
}

func TestApplyReverseReplacesPositionInOneCommit(t *testing.T) {
	l := New()
	require.NoError(t, l.Apply(domain.LedgerDelta{
		Upserts: []domain.Position{pos("yes-token", "mkt-1", 100, 0.5)},
	}))

	flipped := pos("yes-token", "mkt-1", 50, 0.6)
	flipped.Direction = domain.DirectionShort
	require.NoError(t, l.Apply(domain.LedgerDelta{
		Upserts: []domain.Position{flipped},
		Closed:  []domain.ClosedTrade{closedTrade("t1", 10)},
	}))

	got, ok := l.GetPosition("yes-token")
	require.True(t, ok)
	assert.Equal(t, domain.DirectionShort, got.Direction)
	assert.Equal(t, 50.0, got.Size)

	// The market index still holds exactly one entry for the token.
	opp, ok := l.GetOppositePosition("mkt-1", "other")
	require.True(t, ok)
	assert.Equal(t, "yes-token", opp.TokenID)
}

func TestClosedTradesNewestFirst(t *testing.T) {
	l := New()
	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, l.Apply(domain.LedgerDelta{
			Closed: []domain.ClosedTrade{closedTrade(id, 1)},
		}))
	}

	all := l.ClosedTrades(0)
	require.Len(t, all, 3)
	assert.Equal(t, "t3", all[0].ID)
	assert.Equal(t, "t1", all[2].ID)

	limited := l.ClosedTrades(2)
	require.Len(t, limited, 2)
	assert.Equal(t, "t3", limited[0].ID)
	assert.Equal(t, "t2", limited[1].ID)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	l := New()
	require.NoError(t, l.Apply(domain.LedgerDelta{
		Upserts: []domain.Position{
			pos("yes-token", "mkt-1", 100, 0.5),
			pos("other", "mkt-2", 30, 0.2),
		},
		Closed: []domain.ClosedTrade{closedTrade("t1", 10), closedTrade("t2", -4)},
	}))
	l.SetCursor(domain.FeedCursor{
		LastSeenTimestamp: now,
		SeenTxHashes:      []string{"0xabc", "0xdef"},
	})

	snap := l.Snapshot()

	restored := New()
	restored.Restore(snap)

	assert.ElementsMatch(t, l.OpenPositions(), restored.OpenPositions())
	assert.Equal(t, l.ClosedTrades(0), restored.ClosedTrades(0))
	assert.InDelta(t, 6.0, restored.CumulativePnL(), 1e-9)
	assert.Equal(t, l.Cursor(), restored.Cursor())

	// Hedge lookups work after restore; the market index was rebuilt.
	opp, ok := restored.GetOppositePosition("mkt-1", "no-token")
	require.True(t, ok)
	assert.Equal(t, "yes-token", opp.TokenID)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	l := New()
	require.NoError(t, l.Apply(domain.LedgerDelta{
		Upserts: []domain.Position{pos("yes-token", "mkt-1", 100, 0.5)},
	}))
	l.SetCursor(domain.FeedCursor{SeenTxHashes: []string{"0xabc"}})

	snap := l.Snapshot()
	snap.Positions[0].Size = 1
	snap.Cursor.SeenTxHashes[0] = "mutated"

	got, _ := l.GetPosition("yes-token")
	assert.Equal(t, 100.0, got.Size)
	assert.Equal(t, []string{"0xabc"}, l.Cursor().SeenTxHashes)
}

func TestRestoreDropsZeroSizeRows(t *testing.T) {
	l := New()
	l.Restore(domain.LedgerSnapshot{
		Positions: []domain.Position{
			pos("yes-token", "mkt-1", 100, 0.5),
			pos("stale", "mkt-2", 0, 0.5),
		},
	})

	_, ok := l.GetPosition("stale")
	assert.False(t, ok)
	_, ok = l.GetPosition("yes-token")
	assert.True(t, ok)
}
