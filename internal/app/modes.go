package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/alanyoungcy/copytracker/internal/blob/s3"
	"github.com/alanyoungcy/copytracker/internal/crypto"
	"github.com/alanyoungcy/copytracker/internal/domain"
	"github.com/alanyoungcy/copytracker/internal/engine"
	"github.com/alanyoungcy/copytracker/internal/executor"
	"github.com/alanyoungcy/copytracker/internal/feed"
	"github.com/alanyoungcy/copytracker/internal/ledger"
	"github.com/alanyoungcy/copytracker/internal/platform/polymarket"
	"github.com/alanyoungcy/copytracker/internal/service"
)

// polygonChainID is the chain the CLOB settles on.
const polygonChainID = 137

// TrackMode watches the target wallet, classifies its fills, and maintains
// the position ledger without placing any orders.
func (a *App) TrackMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting track mode")

	tracker, led, err := a.buildTracker(ctx, deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startFeed(ctx, g, deps, tracker, led)
	a.startArchiver(ctx, g, deps, led)
	return g.Wait()
}

// CopyMode tracks the target wallet and additionally mirrors each classified
// fill as an order on the operator's own account.
func (a *App) CopyMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting copy mode",
		slog.Bool("dry_run", a.cfg.Risk.DryRun),
	)

	tracker, led, err := a.buildTracker(ctx, deps)
	if err != nil {
		return err
	}

	exec, err := a.buildExecutor()
	if err != nil {
		return err
	}

	sink := &copyPipeline{
		tracker: tracker,
		sizer:   service.NewSizer(a.cfg.Risk.Multiplier, a.cfg.Risk.MaxTradeUSDC),
		exec:    exec,
		logger:  a.logger,
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startFeed(ctx, g, deps, sink, led)
	a.startArchiver(ctx, g, deps, led)
	return g.Wait()
}

// buildTracker assembles the ledger, classifier, and tracker, then restores
// the previous run's snapshot.
func (a *App) buildTracker(ctx context.Context, deps *Dependencies) (*service.Tracker, *ledger.Ledger, error) {
	led := ledger.New()
	sizer := service.NewSizer(a.cfg.Risk.Multiplier, a.cfg.Risk.MaxTradeUSDC)

	tracker := service.NewTracker(
		led,
		engine.New(),
		sizer,
		deps.StateStore,
		deps.ClosedTradeStore,
		deps.PositionStore,
		deps.SignalBus,
		deps.Notifier,
		a.logger,
	)
	tracker.SetBusChannel(a.cfg.Redis.Channel)

	if err := tracker.Resume(ctx); err != nil {
		return nil, nil, fmt.Errorf("app: resume: %w", err)
	}
	return tracker, led, nil
}

// buildExecutor constructs the copy executor. In dry-run mode no wallet key
// is required and no CLOB client is built.
func (a *App) buildExecutor() (*executor.CopyExecutor, error) {
	if a.cfg.Risk.DryRun {
		return executor.NewCopyExecutor(nil, "", true, a.logger), nil
	}

	keyHex, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    a.cfg.Wallet.PrivateKey,
		EncryptedKeyPath: a.cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      a.cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("app: load wallet key: %w", err)
	}

	signer, err := crypto.NewSigner(keyHex, polygonChainID)
	if err != nil {
		return nil, fmt.Errorf("app: wallet signer: %w", err)
	}

	hmac := &crypto.HMACAuth{
		Key:        a.cfg.Polymarket.ApiKey,
		Secret:     a.cfg.Polymarket.ApiSecret,
		Passphrase: a.cfg.Polymarket.ApiPassphrase,
	}
	clob := polymarket.NewClobClient(a.cfg.Polymarket.ClobHost, signer, hmac)

	return executor.NewCopyExecutor(clob, signer.Address().Hex(), false, a.logger), nil
}

// startFeed launches the configured fill source feeding the sink.
func (a *App) startFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies, sink feed.Processor, led *ledger.Ledger) {
	switch strings.ToLower(a.cfg.Target.Feed) {
	case "websocket":
		live := feed.NewLiveFeed(feed.LiveFeedConfig{
			WsURL:      strings.TrimRight(a.cfg.Polymarket.WsHost, "/") + "/ws/user",
			APIKey:     a.cfg.Polymarket.ApiKey,
			Secret:     a.cfg.Polymarket.ApiSecret,
			Passphrase: a.cfg.Polymarket.ApiPassphrase,
		}, sink, led, a.logger)
		g.Go(func() error {
			return live.Run(ctx)
		})
	default:
		poller := feed.NewActivityPoller(
			deps.DataAPI,
			sink,
			led,
			a.cfg.Target.Wallet,
			a.cfg.Target.PollInterval.Duration,
			a.logger,
		)
		g.Go(func() error {
			return poller.Run(ctx)
		})
	}
}

// startArchiver launches the periodic snapshot upload when S3 is enabled.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies, led *ledger.Ledger) {
	if deps.BlobWriter == nil {
		return
	}
	archiver := s3blob.NewSnapshotArchiver(
		deps.BlobWriter,
		led,
		a.cfg.S3.ArchiveInterval.Duration,
		a.logger,
	)
	g.Go(func() error {
		return archiver.Run(ctx)
	})
}

// copyPipeline feeds each fill through the tracker and then mirrors it. The
// mirror order uses the same sizing the tracker applied, so the ledger and
// the placed orders agree. Mirror failures are logged, never propagated: a
// missed copy must not stall classification.
type copyPipeline struct {
	tracker *service.Tracker
	sizer   *service.Sizer
	exec    *executor.CopyExecutor
	logger  *slog.Logger
}

func (p *copyPipeline) ProcessEvent(ctx context.Context, ev domain.TradeEvent) (domain.Classification, error) {
	cls, err := p.tracker.ProcessEvent(ctx, ev)
	if err != nil {
		return cls, err
	}

	if err := p.exec.Mirror(ctx, p.sizer.Apply(ev), cls); err != nil {
		p.logger.ErrorContext(ctx, "copy order failed",
			slog.String("tx_hash", ev.TransactionHash),
			slog.String("error", err.Error()),
		)
	}
	return cls, nil
}
