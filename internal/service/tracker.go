// Package service wires the classification engine, the ledger, and the
// external collaborators (state store, durable mirrors, signal bus,
// notifications) into the fill-processing pipeline.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/copytracker/internal/domain"
	"github.com/alanyoungcy/copytracker/internal/engine"
)

// Alerter delivers human-readable notifications. Satisfied by notify.Notifier.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Tracker processes fills for the target wallet: it validates and sizes each
// event, classifies it against the ledger, applies the resulting delta
// atomically, persists a snapshot, and fans the classification out to the
// durable mirrors, the signal bus, and the notifier.
//
// Fills for the same market must be handed to ProcessEvent in chronological
// order; fills for different markets share no state and may be processed
// concurrently.
type Tracker struct {
	ledger     domain.Ledger
	classifier *engine.Classifier
	sizer      *Sizer
	state      domain.StateStore
	closed     domain.ClosedTradeStore // optional
	positions  domain.PositionStore    // optional
	bus        domain.SignalBus        // optional
	busChannel string
	alerter    Alerter // optional
	logger     *slog.Logger
}

// NewTracker creates a Tracker. The closed-trade store, position store,
// signal bus, and alerter may be nil; the corresponding fan-out is skipped.
func NewTracker(
	ledger domain.Ledger,
	classifier *engine.Classifier,
	sizer *Sizer,
	state domain.StateStore,
	closed domain.ClosedTradeStore,
	positions domain.PositionStore,
	bus domain.SignalBus,
	alerter Alerter,
	logger *slog.Logger,
) *Tracker {
	return &Tracker{
		ledger:     ledger,
		classifier: classifier,
		sizer:      sizer,
		state:      state,
		closed:     closed,
		positions:  positions,
		bus:        bus,
		busChannel: "fills",
		alerter:    alerter,
		logger:     logger.With(slog.String("component", "tracker")),
	}
}

// SetBusChannel overrides the Pub/Sub channel classification events are
// published on. Must be called before ProcessEvent.
func (t *Tracker) SetBusChannel(name string) {
	if name != "" {
		t.busChannel = name
	}
}

// Resume loads the most recent snapshot from the state store into the
// ledger. A missing snapshot is not an error; the tracker starts fresh.
func (t *Tracker) Resume(ctx context.Context) error {
	snap, ok, err := t.state.Load(ctx)
	if err != nil {
		return fmt.Errorf("tracker: load snapshot: %w", err)
	}
	if !ok {
		t.logger.InfoContext(ctx, "no saved state, starting fresh")
		return nil
	}
	t.ledger.Restore(snap)
	t.logger.InfoContext(ctx, "state restored",
		slog.Int("open_positions", len(snap.Positions)),
		slog.Int("closed_trades", len(snap.ClosedTrades)),
	)
	return nil
}

// ProcessEvent runs one fill through sizing, classification, and the ledger,
// then persists and publishes the result. The ledger delta is applied as a
// single atomic unit; on any classification or apply error the ledger is
// untouched and the typed error is returned to the caller.
func (t *Tracker) ProcessEvent(ctx context.Context, ev domain.TradeEvent) (domain.Classification, error) {
	if t.sizer != nil {
		ev = t.sizer.Apply(ev)
	}

	cls, err := t.classifier.Classify(t.ledger, ev)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("tracker: classify %s: %w", ev.TransactionHash, err)
	}

	if err := t.ledger.Apply(cls.Delta); err != nil {
		return domain.Classification{}, fmt.Errorf("tracker: apply %s: %w", ev.TransactionHash, err)
	}

	t.advanceCursor(ev)

	if err := t.state.Save(ctx, t.ledger.Snapshot()); err != nil {
		t.logger.WarnContext(ctx, "snapshot save failed",
			slog.String("tx_hash", ev.TransactionHash),
			slog.String("error", err.Error()),
		)
	}

	t.mirror(ctx, cls)
	t.publish(ctx, ev, cls)
	t.alert(ctx, ev, cls)

	t.logger.InfoContext(ctx, "fill classified",
		slog.String("kind", string(cls.Kind)),
		slog.String("market", ev.MarketID),
		slog.String("outcome", ev.Outcome),
		slog.String("side", string(ev.Side)),
		slog.Float64("size", ev.Size),
		slog.Float64("price", ev.Price),
		slog.Float64("realized_pnl", cls.RealizedPnL()),
	)

	return cls, nil
}

// advanceCursor records the fill in the feed cursor so a restart does not
// reprocess it.
func (t *Tracker) advanceCursor(ev domain.TradeEvent) {
	cur := t.ledger.Cursor()
	if ev.Timestamp.After(cur.LastSeenTimestamp) {
		cur.LastSeenTimestamp = ev.Timestamp
	}
	cur.SeenTxHashes = append(cur.SeenTxHashes, ev.TransactionHash)
	t.ledger.SetCursor(cur)
}

// mirror copies the delta's effects into the durable stores. Mirror failures
// are logged, never fatal: the in-memory ledger plus snapshot remain the
// source of truth.
func (t *Tracker) mirror(ctx context.Context, cls domain.Classification) {
	if t.closed != nil {
		for _, ct := range cls.Delta.Closed {
			if err := t.closed.Append(ctx, ct); err != nil {
				t.logger.WarnContext(ctx, "closed-trade mirror failed",
					slog.String("trade_id", ct.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	if t.positions != nil {
		for _, tokenID := range cls.Delta.Removals {
			if err := t.positions.Remove(ctx, tokenID); err != nil {
				t.logger.WarnContext(ctx, "position mirror remove failed",
					slog.String("token_id", tokenID),
					slog.String("error", err.Error()),
				)
			}
		}
		for _, pos := range cls.Delta.Upserts {
			if err := t.positions.Upsert(ctx, pos); err != nil {
				t.logger.WarnContext(ctx, "position mirror upsert failed",
					slog.String("token_id", pos.TokenID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// publish emits the classification event on the signal bus.
func (t *Tracker) publish(ctx context.Context, ev domain.TradeEvent, cls domain.Classification) {
	if t.bus == nil {
		return
	}

	payload := map[string]any{
		"event":     "fill_classified",
		"kind":      string(cls.Kind),
		"market":    ev.MarketID,
		"token":     ev.TokenID,
		"outcome":   ev.Outcome,
		"side":      string(ev.Side),
		"size":      ev.Size,
		"price":     ev.Price,
		"tx_hash":   ev.TransactionHash,
		"timestamp": ev.Timestamp.UTC(),
	}
	if len(cls.Delta.Closed) > 0 {
		ct := cls.Delta.Closed[0]
		payload["closing_size"] = ct.ClosingSize
		payload["entry_price"] = ct.EntryPrice
		payload["exit_price"] = ct.ExitPrice
		payload["realized_pnl"] = ct.RealizedPnL
	}
	if cls.Resulting != nil {
		payload["resulting_size"] = cls.Resulting.Size
		payload["resulting_entry"] = cls.Resulting.EntryPrice
	}

	evt, _ := json.Marshal(payload)
	if err := t.bus.Publish(ctx, t.busChannel, evt); err != nil {
		t.logger.WarnContext(ctx, "publish event failed",
			slog.String("tx_hash", ev.TransactionHash),
			slog.String("error", err.Error()),
		)
	}
}

// alert renders a human-readable notification for the fill.
func (t *Tracker) alert(ctx context.Context, ev domain.TradeEvent, cls domain.Classification) {
	if t.alerter == nil {
		return
	}

	title := fmt.Sprintf("%s %s %s", cls.Kind, ev.Side, ev.Outcome)
	body := fmt.Sprintf("%.2f shares @ $%.4f ($%.2f USDC)", ev.Size, ev.Price, ev.USDCValue())
	if len(cls.Delta.Closed) > 0 {
		ct := cls.Delta.Closed[0]
		body += fmt.Sprintf("\nClosed %.2f (entry $%.4f, exit $%.4f): PnL $%.2f",
			ct.ClosingSize, ct.EntryPrice, ct.ExitPrice, ct.RealizedPnL)
	}
	if cls.Resulting != nil {
		body += fmt.Sprintf("\nPosition now %.2f @ $%.4f", cls.Resulting.Size, cls.Resulting.EntryPrice)
	}
	body += fmt.Sprintf("\nCumulative PnL: $%.2f", t.ledger.CumulativePnL())

	if err := t.alerter.Notify(ctx, string(cls.Kind), title, body); err != nil {
		t.logger.WarnContext(ctx, "notification failed",
			slog.String("tx_hash", ev.TransactionHash),
			slog.String("error", err.Error()),
		)
	}
}

// OpenPositions returns all open positions for status reporting.
func (t *Tracker) OpenPositions() []domain.Position {
	return t.ledger.OpenPositions()
}

// ClosedTrades returns the most recent closed trades, newest first.
func (t *Tracker) ClosedTrades(limit int) []domain.ClosedTrade {
	return t.ledger.ClosedTrades(limit)
}

// CumulativePnL returns total realized PnL across the closed-trade history.
func (t *Tracker) CumulativePnL() float64 {
	return t.ledger.CumulativePnL()
}
