package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/copytracker/internal/domain"
	"github.com/alanyoungcy/copytracker/internal/platform/polymarket"
)

const reconnectDelay = 5 * time.Second

// LiveFeedConfig holds the user-channel connection parameters.
type LiveFeedConfig struct {
	WsURL      string
	APIKey     string
	Secret     string
	Passphrase string
	Markets    []string
}

// LiveFeed streams the target wallet's fills over the CLOB user WebSocket
// channel and forwards them to the processor. It reconnects with a fixed
// delay and shares the poller's dedup contract so either feed can drive the
// same tracker.
type LiveFeed struct {
	cfg    LiveFeedConfig
	sink   Processor
	cursor CursorSource
	logger *slog.Logger

	seen map[string]bool
}

// NewLiveFeed creates a WebSocket-backed feed.
func NewLiveFeed(cfg LiveFeedConfig, sink Processor, cursor CursorSource, logger *slog.Logger) *LiveFeed {
	return &LiveFeed{
		cfg:    cfg,
		sink:   sink,
		cursor: cursor,
		logger: logger.With(slog.String("component", "live_feed")),
		seen:   make(map[string]bool),
	}
}

// Run connects and dispatches until the context is cancelled. Connection
// drops are logged and retried; they never abort the loop.
func (f *LiveFeed) Run(ctx context.Context) error {
	for _, h := range f.cursor.Cursor().SeenTxHashes {
		f.seen[h] = true
	}

	f.logger.InfoContext(ctx, "live feed started", slog.String("url", f.cfg.WsURL))
	defer f.logger.Info("live feed stopped")

	for {
		ws := polymarket.NewUserWSClient(
			f.cfg.WsURL, f.cfg.APIKey, f.cfg.Secret, f.cfg.Passphrase,
			f.cfg.Markets,
			func(ev domain.TradeEvent) { f.handleTrade(ctx, ev) },
		)

		err := ws.Run(ctx)
		ws.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			f.logger.WarnContext(ctx, "websocket session ended, reconnecting",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", reconnectDelay),
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (f *LiveFeed) handleTrade(ctx context.Context, ev domain.TradeEvent) {
	if ev.TransactionHash != "" {
		if f.seen[ev.TransactionHash] {
			return
		}
		f.seen[ev.TransactionHash] = true
	}

	if _, err := f.sink.ProcessEvent(ctx, ev); err != nil {
		if errors.Is(err, domain.ErrInvalidEvent) {
			f.logger.WarnContext(ctx, "invalid fill dropped",
				slog.String("tx_hash", ev.TransactionHash),
				slog.String("error", err.Error()),
			)
			return
		}
		f.logger.ErrorContext(ctx, "fill processing failed",
			slog.String("tx_hash", ev.TransactionHash),
			slog.String("error", err.Error()),
		)
	}
}
