// Package feed supplies deduplicated, chronologically ordered fill events
// for the target wallet, either by polling the Data API or by listening on
// the CLOB user WebSocket channel. The feed owns deduplication and ordering;
// the tracker downstream assumes both.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/copytracker/internal/domain"
)

const (
	initialRetryDelay = 1 * time.Second
	maxRetryDelay     = 60 * time.Second
)

// ActivitySource fetches trade activity for a wallet. Implemented by
// polymarket.DataAPIClient.
type ActivitySource interface {
	GetTradeActivity(ctx context.Context, wallet string, since time.Time) ([]domain.TradeEvent, error)
}

// Processor consumes one fill at a time. Implemented by service.Tracker.
type Processor interface {
	ProcessEvent(ctx context.Context, ev domain.TradeEvent) (domain.Classification, error)
}

// CursorSource exposes the persisted feed cursor so a restarted poller
// resumes where the previous run stopped.
type CursorSource interface {
	Cursor() domain.FeedCursor
}

// ActivityPoller polls the Data API for the target wallet's fills, drops
// already-seen transaction hashes, sorts each batch oldest first, and hands
// the events to the processor one by one.
type ActivityPoller struct {
	source   ActivitySource
	sink     Processor
	cursor   CursorSource
	wallet   string
	interval time.Duration
	logger   *slog.Logger

	seen     map[string]bool
	lastSeen time.Time
}

// NewActivityPoller creates a poller for the given wallet.
func NewActivityPoller(
	source ActivitySource,
	sink Processor,
	cursor CursorSource,
	wallet string,
	interval time.Duration,
	logger *slog.Logger,
) *ActivityPoller {
	return &ActivityPoller{
		source:   source,
		sink:     sink,
		cursor:   cursor,
		wallet:   wallet,
		interval: interval,
		logger:   logger.With(slog.String("component", "activity_poller")),
		seen:     make(map[string]bool),
	}
}

// Run polls until the context is cancelled. Fetch failures back off
// exponentially up to a cap and never abort the loop.
func (p *ActivityPoller) Run(ctx context.Context) error {
	p.restoreCursor()

	p.logger.InfoContext(ctx, "activity poller started",
		slog.String("wallet", p.wallet),
		slog.Duration("interval", p.interval),
	)
	defer p.logger.Info("activity poller stopped")

	retryDelay := initialRetryDelay
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.WarnContext(ctx, "poll failed, backing off",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", retryDelay),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
			retryDelay = min(retryDelay*2, maxRetryDelay)
			continue
		}
		retryDelay = initialRetryDelay

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// restoreCursor seeds the dedup set and timestamp watermark from the
// persisted cursor.
func (p *ActivityPoller) restoreCursor() {
	cur := p.cursor.Cursor()
	p.lastSeen = cur.LastSeenTimestamp
	if p.lastSeen.IsZero() {
		p.lastSeen = time.Now().UTC()
	}
	for _, h := range cur.SeenTxHashes {
		p.seen[h] = true
	}
	p.logger.Info("cursor restored",
		slog.Time("last_seen", p.lastSeen),
		slog.Int("seen_hashes", len(p.seen)),
	)
}

// poll fetches one activity batch and feeds the new fills downstream in
// chronological order.
func (p *ActivityPoller) poll(ctx context.Context) error {
	events, err := p.source.GetTradeActivity(ctx, p.wallet, p.lastSeen)
	if err != nil {
		return err
	}

	fresh := events[:0]
	for _, ev := range events {
		if ev.TransactionHash == "" || p.seen[ev.TransactionHash] {
			continue
		}
		fresh = append(fresh, ev)
	}
	if len(fresh) == 0 {
		return nil
	}

	// The API returns newest first; the tracker requires oldest first.
	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].Timestamp.Before(fresh[j].Timestamp)
	})

	p.logger.InfoContext(ctx, "new fills detected", slog.Int("count", len(fresh)))

	for _, ev := range fresh {
		p.seen[ev.TransactionHash] = true
		if ev.Timestamp.After(p.lastSeen) {
			p.lastSeen = ev.Timestamp
		}

		if _, err := p.sink.ProcessEvent(ctx, ev); err != nil {
			// Contract violations drop the single event; anything else is
			// reported and the batch continues.
			if errors.Is(err, domain.ErrInvalidEvent) {
				p.logger.WarnContext(ctx, "invalid fill dropped",
					slog.String("tx_hash", ev.TransactionHash),
					slog.String("error", err.Error()),
				)
				continue
			}
			p.logger.ErrorContext(ctx, "fill processing failed",
				slog.String("tx_hash", ev.TransactionHash),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}
