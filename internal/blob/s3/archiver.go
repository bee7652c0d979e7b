package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/copytracker/internal/domain"
)

// SnapshotSource exposes a point-in-time copy of the ledger. Implemented by
// the ledger itself.
type SnapshotSource interface {
	Snapshot() domain.LedgerSnapshot
}

// SnapshotArchiver periodically uploads ledger snapshots to object storage,
// giving forensic history beyond the single local state file.
type SnapshotArchiver struct {
	writer   domain.BlobWriter
	source   SnapshotSource
	interval time.Duration
	logger   *slog.Logger
}

// NewSnapshotArchiver creates an archiver uploading every interval.
func NewSnapshotArchiver(writer domain.BlobWriter, source SnapshotSource, interval time.Duration, logger *slog.Logger) *SnapshotArchiver {
	return &SnapshotArchiver{
		writer:   writer,
		source:   source,
		interval: interval,
		logger:   logger.With(slog.String("component", "snapshot_archiver")),
	}
}

// Run uploads snapshots on a ticker until the context is cancelled. Upload
// failures are logged and retried on the next tick.
func (a *SnapshotArchiver) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "snapshot archiver started",
		slog.Duration("interval", a.interval),
	)
	defer a.logger.Info("snapshot archiver stopped")

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.ArchiveOnce(ctx); err != nil {
				a.logger.WarnContext(ctx, "snapshot upload failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// ArchiveOnce uploads a single snapshot under a timestamped key.
func (a *SnapshotArchiver) ArchiveOnce(ctx context.Context) error {
	snap := a.source.Snapshot()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("s3blob: marshal snapshot: %w", err)
	}

	path := snapshotPath(snap.TakenAt)
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "snapshot archived",
		slog.String("path", path),
		slog.Int("positions", len(snap.Positions)),
		slog.Int("closed_trades", len(snap.ClosedTrades)),
	)
	return nil
}

// snapshotPath builds the object key, partitioned by month for cheap listing.
func snapshotPath(ts time.Time) string {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return fmt.Sprintf("snapshots/%s/%s.json", ts.UTC().Format("2006-01"), ts.UTC().Format("20060102T150405Z"))
}
