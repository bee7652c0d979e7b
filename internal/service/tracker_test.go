package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/copytracker/internal/domain"
	"github.com/alanyoungcy/copytracker/internal/engine"
	"github.com/alanyoungcy/copytracker/internal/ledger"
)

var now = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

type fakeState struct {
	saves   int
	last    domain.LedgerSnapshot
	loaded  domain.LedgerSnapshot
	hasLoad bool
	saveErr error
}

func (f *fakeState) Save(_ context.Context, snap domain.LedgerSnapshot) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.last = snap
	return nil
}

func (f *fakeState) Load(context.Context) (domain.LedgerSnapshot, bool, error) {
	return f.loaded, f.hasLoad, nil
}

type fakeClosedStore struct {
	appended []domain.ClosedTrade
}

func (f *fakeClosedStore) Append(_ context.Context, ct domain.ClosedTrade) error {
	f.appended = append(f.appended, ct)
	return nil
}
func (f *fakeClosedStore) ListRecent(context.Context, int) ([]domain.ClosedTrade, error) {
	return f.appended, nil
}
func (f *fakeClosedStore) SumPnL(context.Context) (float64, error) { return 0, nil }

type fakePositionStore struct {
	upserts  []domain.Position
	removals []string
}

func (f *fakePositionStore) Upsert(_ context.Context, p domain.Position) error {
	f.upserts = append(f.upserts, p)
	return nil
}
func (f *fakePositionStore) Remove(_ context.Context, tokenID string) error {
	f.removals = append(f.removals, tokenID)
	return nil
}
func (f *fakePositionStore) ListOpen(context.Context) ([]domain.Position, error) {
	return f.upserts, nil
}

type fakeBus struct {
	channel  string
	payloads [][]byte
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.channel = channel
	f.payloads = append(f.payloads, payload)
	return nil
}

type fakeAlerter struct {
	events []string
	titles []string
}

func (f *fakeAlerter) Notify(_ context.Context, event, title, _ string) error {
	f.events = append(f.events, event)
	f.titles = append(f.titles, title)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func fill(side domain.Side, size, price float64) domain.TradeEvent {
	return domain.TradeEvent{
		TransactionHash: "0x1",
		Timestamp:       now,
		MarketID:        "mkt-1",
		TokenID:         "yes-token",
		Outcome:         "Yes",
		Side:            side,
		Size:            size,
		Price:           price,
		Wallet:          "0xtarget",
	}
}

func newTestTracker(st *fakeState, cs *fakeClosedStore, ps *fakePositionStore, bus *fakeBus, al *fakeAlerter) (*Tracker, *ledger.Ledger) {
	led := ledger.New()
	var (
		closed    domain.ClosedTradeStore
		positions domain.PositionStore
		sbus      domain.SignalBus
		alerter   Alerter
	)
	if cs != nil {
		closed = cs
	}
	if ps != nil {
		positions = ps
	}
	if bus != nil {
		sbus = bus
	}
	if al != nil {
		alerter = al
	}
	tr := NewTracker(led, engine.New(), NewSizer(1.0, 0), st, closed, positions, sbus, alerter, discard())
	return tr, led
}

func TestProcessEventOpensAndPersists(t *testing.T) {
	st := &fakeState{}
	tr, led := newTestTracker(st, nil, nil, nil, nil)

	cls, err := tr.ProcessEvent(context.Background(), fill(domain.SideBuy, 100, 0.50))
	require.NoError(t, err)
	assert.Equal(t, domain.KindOpen, cls.Kind)

	got, ok := led.GetPosition("yes-token")
	require.True(t, ok)
	assert.Equal(t, 100.0, got.Size)

	// Snapshot and cursor advanced together.
	require.Equal(t, 1, st.saves)
	assert.Equal(t, now, st.last.Cursor.LastSeenTimestamp)
	assert.Contains(t, st.last.Cursor.SeenTxHashes, "0x1")
}

func TestProcessEventAppliesSizing(t *testing.T) {
	st := &fakeState{}
	led := ledger.New()
	tr := NewTracker(led, engine.New(), NewSizer(0.1, 0), st, nil, nil, nil, nil, discard())

	_, err := tr.ProcessEvent(context.Background(), fill(domain.SideBuy, 100, 0.50))
	require.NoError(t, err)

	got, _ := led.GetPosition("yes-token")
	assert.InDelta(t, 10.0, got.Size, 1e-9)
}

func TestProcessEventMirrorsCloses(t *testing.T) {
	st := &fakeState{}
	cs := &fakeClosedStore{}
	ps := &fakePositionStore{}
	tr, led := newTestTracker(st, cs, ps, nil, nil)

	_, err := tr.ProcessEvent(context.Background(), fill(domain.SideBuy, 100, 0.50))
	require.NoError(t, err)
	_, err = tr.ProcessEvent(context.Background(), fill(domain.SideSell, 100, 0.60))
	require.NoError(t, err)

	require.Len(t, cs.appended, 1)
	assert.InDelta(t, 10.0, cs.appended[0].RealizedPnL, 1e-9)
	assert.Equal(t, []string{"yes-token"}, ps.removals)
	assert.Empty(t, led.OpenPositions())
	assert.InDelta(t, 10.0, led.CumulativePnL(), 1e-9)
}

func TestProcessEventPublishesAndAlerts(t *testing.T) {
	st := &fakeState{}
	bus := &fakeBus{}
	al := &fakeAlerter{}
	tr, _ := newTestTracker(st, nil, nil, bus, al)
	tr.SetBusChannel("classified")

	_, err := tr.ProcessEvent(context.Background(), fill(domain.SideBuy, 100, 0.50))
	require.NoError(t, err)

	assert.Equal(t, "classified", bus.channel)
	require.Len(t, bus.payloads, 1)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(bus.payloads[0], &msg))
	assert.Equal(t, "fill_classified", msg["event"])
	assert.Equal(t, string(domain.KindOpen), msg["kind"])

	require.Len(t, al.events, 1)
	assert.Equal(t, string(domain.KindOpen), al.events[0])
	assert.Contains(t, al.titles[0], "OPEN")
}

func TestProcessEventInvalidLeavesLedgerUntouched(t *testing.T) {
	st := &fakeState{}
	tr, led := newTestTracker(st, nil, nil, nil, nil)

	_, err := tr.ProcessEvent(context.Background(), fill(domain.SideSell, 50, 0.60))
	require.ErrorIs(t, err, domain.ErrInvalidEvent)

	assert.Empty(t, led.OpenPositions())
	assert.Zero(t, st.saves)
}

func TestProcessEventSnapshotFailureIsNotFatal(t *testing.T) {
	st := &fakeState{saveErr: errors.New("disk full")}
	tr, led := newTestTracker(st, nil, nil, nil, nil)

	_, err := tr.ProcessEvent(context.Background(), fill(domain.SideBuy, 100, 0.50))
	require.NoError(t, err)
	assert.Len(t, led.OpenPositions(), 1)
}

func TestResumeRestoresSnapshot(t *testing.T) {
	st := &fakeState{
		hasLoad: true,
		loaded: domain.LedgerSnapshot{
			Positions: []domain.Position{{
				TokenID:    "yes-token",
				MarketID:   "mkt-1",
				Outcome:    "Yes",
				Size:       100,
				EntryPrice: 0.50,
				Direction:  domain.DirectionLong,
				OpenedAt:   now,
				UpdatedAt:  now,
			}},
			ClosedTrades: []domain.ClosedTrade{{ID: "t1", RealizedPnL: 7}},
			Cursor:       domain.FeedCursor{LastSeenTimestamp: now, SeenTxHashes: []string{"0x1"}},
		},
	}
	tr, led := newTestTracker(st, nil, nil, nil, nil)

	require.NoError(t, tr.Resume(context.Background()))
	assert.Len(t, led.OpenPositions(), 1)
	assert.InDelta(t, 7.0, led.CumulativePnL(), 1e-9)
	assert.Equal(t, []string{"0x1"}, led.Cursor().SeenTxHashes)

	// Classification continues against the restored position.
	cls, err := tr.ProcessEvent(context.Background(), fill(domain.SideSell, 40, 0.60))
	require.NoError(t, err)
	assert.Equal(t, domain.KindPartialClose, cls.Kind)
}

func TestResumeFreshStart(t *testing.T) {
	st := &fakeState{hasLoad: false}
	tr, led := newTestTracker(st, nil, nil, nil, nil)

	require.NoError(t, tr.Resume(context.Background()))
	assert.Empty(t, led.OpenPositions())
}
