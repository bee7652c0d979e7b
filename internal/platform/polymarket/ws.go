package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/copytracker/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// TradeHandler is called for each fill delivered on the user channel.
type TradeHandler func(domain.TradeEvent)

// wsAuth carries the L2 credentials required to subscribe to the user channel.
type wsAuth struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// wsSubscribe is the subscription command for the user channel.
type wsSubscribe struct {
	Auth    wsAuth   `json:"auth"`
	Type    string   `json:"type"`
	Markets []string `json:"markets"`
}

// apiUserTrade is a "trade" message on the user channel.
type apiUserTrade struct {
	EventType string    `json:"event_type"`
	Market    string    `json:"market"`
	AssetID   string    `json:"asset_id"`
	Outcome   string    `json:"outcome"`
	Side      string    `json:"side"`
	Size      flexFloat `json:"size"`
	Price     flexFloat `json:"price"`
	Timestamp string    `json:"timestamp"` // unix millis as string
	TxHash    string    `json:"transaction_hash"`
	Owner     string    `json:"owner"`
}

// UserWSClient is a WebSocket client for the CLOB user channel, which pushes
// the wallet's own fills in real time. It is an alternative fill source to
// Data API polling.
type UserWSClient struct {
	wsURL   string
	auth    wsAuth
	markets []string
	onTrade TradeHandler

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	done   chan struct{}
}

// NewUserWSClient creates a user-channel client.
//
// wsURL is e.g. "wss://ws-subscriptions-clob.polymarket.com/ws/user".
// markets limits the subscription; empty subscribes to all of the wallet's
// markets.
func NewUserWSClient(wsURL, apiKey, secret, passphrase string, markets []string, onTrade TradeHandler) *UserWSClient {
	return &UserWSClient{
		wsURL:   wsURL,
		auth:    wsAuth{APIKey: apiKey, Secret: secret, Passphrase: passphrase},
		markets: markets,
		onTrade: onTrade,
		done:    make(chan struct{}),
	}
}

// Run connects, subscribes, and dispatches fills until the context is
// cancelled or the connection drops. It returns the disconnect cause; the
// caller decides whether to reconnect.
func (w *UserWSClient) Run(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("polymarket/ws: connect: %w", err)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		conn.Close()
		return nil
	}
	w.conn = conn
	w.mu.Unlock()
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	sub := wsSubscribe{Auth: w.auth, Type: "user", Markets: w.markets}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("polymarket/ws: subscribe: %w", err)
	}

	go w.pingLoop(ctx, conn)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("polymarket/ws: read: %w", err)
		}
		w.dispatch(data)
	}
}

func (w *UserWSClient) dispatch(data []byte) {
	var msg apiUserTrade
	if err := json.Unmarshal(data, &msg); err != nil || msg.EventType != "trade" {
		return
	}

	ts := time.Now().UTC()
	if millis, err := json.Number(msg.Timestamp).Int64(); err == nil && millis > 0 {
		ts = time.UnixMilli(millis).UTC()
	}

	w.onTrade(domain.TradeEvent{
		TransactionHash: msg.TxHash,
		Timestamp:       ts,
		MarketID:        msg.Market,
		TokenID:         msg.AssetID,
		Outcome:         msg.Outcome,
		Side:            domain.Side(strings.ToUpper(msg.Side)),
		Size:            float64(msg.Size),
		Price:           float64(msg.Price),
		Wallet:          strings.ToLower(msg.Owner),
	})
}

func (w *UserWSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close stops the client and unblocks Run.
func (w *UserWSClient) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.done)
	if w.conn != nil {
		w.conn.Close()
	}
}
