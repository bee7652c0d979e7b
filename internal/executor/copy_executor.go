// Package executor mirrors the target wallet's classified fills as orders on
// the operator's own account.
package executor

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"time"

	"github.com/alanyoungcy/copytracker/internal/crypto"
	"github.com/alanyoungcy/copytracker/internal/domain"
	"github.com/alanyoungcy/copytracker/internal/platform/polymarket"
)

// usdcDecimals is the fixed-point scale the CLOB uses for both collateral
// and share amounts.
const usdcDecimals = 1e6

const dedupTTL = 2 * time.Minute

// OrderPoster submits a signed order to the exchange. Implemented by
// polymarket.ClobClient.
type OrderPoster interface {
	PostOrder(ctx context.Context, payload crypto.OrderPayload, orderType string) (polymarket.OrderResult, error)
}

// CopyExecutor turns a classified fill into a fill-or-kill order at the
// target's price. In dry-run mode it logs the order it would have placed and
// submits nothing.
type CopyExecutor struct {
	clob    OrderPoster
	address string
	dedup   *Dedup
	dryRun  bool
	logger  *slog.Logger
}

// NewCopyExecutor creates an executor trading as the given wallet address.
func NewCopyExecutor(clob OrderPoster, address string, dryRun bool, logger *slog.Logger) *CopyExecutor {
	return &CopyExecutor{
		clob:    clob,
		address: address,
		dedup:   NewDedup(dedupTTL),
		dryRun:  dryRun,
		logger:  logger.With(slog.String("component", "copy_executor")),
	}
}

// Mirror places an order matching the sized fill. The classification is used
// for logging only; the order always copies the fill's side, size, and price.
func (e *CopyExecutor) Mirror(ctx context.Context, ev domain.TradeEvent, cls domain.Classification) error {
	if ev.TransactionHash != "" && e.dedup.Seen(ev.TransactionHash) {
		e.logger.DebugContext(ctx, "fill already mirrored, skipping",
			slog.String("tx_hash", ev.TransactionHash),
		)
		return nil
	}
	e.dedup.Prune()

	log := e.logger.With(
		slog.String("kind", string(cls.Kind)),
		slog.String("token", ev.TokenID),
		slog.String("side", string(ev.Side)),
		slog.Float64("size", ev.Size),
		slog.Float64("price", ev.Price),
	)

	if e.dryRun {
		log.InfoContext(ctx, "dry run: order not placed",
			slog.Float64("usdc", ev.USDCValue()),
		)
		return nil
	}

	payload, err := e.buildOrder(ev)
	if err != nil {
		return fmt.Errorf("executor: build order: %w", err)
	}

	result, err := e.clob.PostOrder(ctx, payload, "FOK")
	if err != nil {
		return fmt.Errorf("executor: post order: %w", err)
	}

	log.InfoContext(ctx, "copy order placed",
		slog.String("order_id", result.OrderID),
		slog.String("status", result.Status),
	)
	return nil
}

// buildOrder converts the fill into a signable order. The CLOB expresses
// both legs in 6-decimal fixed point: a BUY spends collateral (maker side in
// USDC) for shares, a SELL the reverse.
func (e *CopyExecutor) buildOrder(ev domain.TradeEvent) (crypto.OrderPayload, error) {
	salt, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return crypto.OrderPayload{}, fmt.Errorf("generate salt: %w", err)
	}

	shares := fmt.Sprintf("%d", int64(math.Round(ev.Size*usdcDecimals)))
	collateral := fmt.Sprintf("%d", int64(math.Round(ev.Size*ev.Price*usdcDecimals)))

	payload := crypto.OrderPayload{
		Salt:       salt.String(),
		Maker:      e.address,
		Signer:     e.address,
		Taker:      "0x0000000000000000000000000000000000000000",
		TokenID:    ev.TokenID,
		Expiration: "0",
		Nonce:      "0",
		FeeRateBps: "0",
	}

	if ev.Side == domain.SideBuy {
		payload.Side = 0
		payload.MakerAmount = collateral
		payload.TakerAmount = shares
	} else {
		payload.Side = 1
		payload.MakerAmount = shares
		payload.TakerAmount = collateral
	}
	return payload, nil
}
