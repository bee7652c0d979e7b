package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/copytracker/internal/domain"
)

var now = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

type stubSource struct {
	batches [][]domain.TradeEvent
	calls   int
	err     error
}

func (s *stubSource) GetTradeActivity(context.Context, string, time.Time) ([]domain.TradeEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.calls >= len(s.batches) {
		return nil, nil
	}
	batch := s.batches[s.calls]
	s.calls++
	return batch, nil
}

type stubSink struct {
	seen []domain.TradeEvent
	errs map[string]error
}

func (s *stubSink) ProcessEvent(_ context.Context, ev domain.TradeEvent) (domain.Classification, error) {
	if err := s.errs[ev.TransactionHash]; err != nil {
		return domain.Classification{}, err
	}
	s.seen = append(s.seen, ev)
	return domain.Classification{Kind: domain.KindOpen}, nil
}

type stubCursor struct {
	cur domain.FeedCursor
}

func (s *stubCursor) Cursor() domain.FeedCursor { return s.cur }

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func ev(hash string, ts time.Time) domain.TradeEvent {
	return domain.TradeEvent{
		TransactionHash: hash,
		Timestamp:       ts,
		MarketID:        "mkt-1",
		TokenID:         "yes-token",
		Side:            domain.SideBuy,
		Size:            10,
		Price:           0.5,
	}
}

func newTestPoller(src ActivitySource, sink Processor, cur CursorSource) *ActivityPoller {
	if cur == nil {
		// A fixed watermark keeps assertions independent of the wall clock.
		cur = &stubCursor{cur: domain.FeedCursor{LastSeenTimestamp: now.Add(-time.Minute)}}
	}
	return NewActivityPoller(src, sink, cur, "0xtarget", time.Second, discard())
}

func TestPollOrdersBatchOldestFirst(t *testing.T) {
	// The Data API returns newest first.
	src := &stubSource{batches: [][]domain.TradeEvent{{
		ev("0x3", now.Add(2*time.Second)),
		ev("0x2", now.Add(time.Second)),
		ev("0x1", now),
	}}}
	sink := &stubSink{}
	p := newTestPoller(src, sink, nil)
	p.restoreCursor()

	require.NoError(t, p.poll(context.Background()))

	require.Len(t, sink.seen, 3)
	assert.Equal(t, "0x1", sink.seen[0].TransactionHash)
	assert.Equal(t, "0x3", sink.seen[2].TransactionHash)
	assert.Equal(t, now.Add(2*time.Second), p.lastSeen)
}

func TestPollSkipsSeenHashes(t *testing.T) {
	src := &stubSource{batches: [][]domain.TradeEvent{
		{ev("0x1", now)},
		{ev("0x2", now.Add(time.Second)), ev("0x1", now)},
	}}
	sink := &stubSink{}
	p := newTestPoller(src, sink, nil)
	p.restoreCursor()

	ctx := context.Background()
	require.NoError(t, p.poll(ctx))
	require.NoError(t, p.poll(ctx))

	require.Len(t, sink.seen, 2)
	assert.Equal(t, "0x1", sink.seen[0].TransactionHash)
	assert.Equal(t, "0x2", sink.seen[1].TransactionHash)
}

func TestPollRestoresCursorHashes(t *testing.T) {
	src := &stubSource{batches: [][]domain.TradeEvent{{
		ev("0xseen", now.Add(time.Second)),
		ev("0xnew", now.Add(2*time.Second)),
	}}}
	sink := &stubSink{}
	p := newTestPoller(src, sink, &stubCursor{cur: domain.FeedCursor{
		LastSeenTimestamp: now,
		SeenTxHashes:      []string{"0xseen"},
	}})
	p.restoreCursor()

	require.NoError(t, p.poll(context.Background()))

	require.Len(t, sink.seen, 1)
	assert.Equal(t, "0xnew", sink.seen[0].TransactionHash)
}

func TestPollDropsInvalidEventAndContinues(t *testing.T) {
	src := &stubSource{batches: [][]domain.TradeEvent{{
		ev("0x2", now.Add(time.Second)),
		ev("0x1", now),
	}}}
	sink := &stubSink{errs: map[string]error{
		"0x1": fmt.Errorf("bad fill: %w", domain.ErrInvalidEvent),
	}}
	p := newTestPoller(src, sink, nil)
	p.restoreCursor()

	require.NoError(t, p.poll(context.Background()))

	// The invalid fill is dropped, the rest of the batch still lands, and
	// the hash is remembered so it is not retried.
	require.Len(t, sink.seen, 1)
	assert.Equal(t, "0x2", sink.seen[0].TransactionHash)
	assert.True(t, p.seen["0x1"])
}

func TestPollPropagatesFetchErrors(t *testing.T) {
	src := &stubSource{err: errors.New("connection refused")}
	p := newTestPoller(src, &stubSink{}, nil)
	p.restoreCursor()

	require.Error(t, p.poll(context.Background()))
}
