// ws.go implements the account WebSocket feed for real-time venue data.
//
// One authenticated connection per session, subscribed by wallet address.
// The gateway pushes "oracle_price" updates for every market the wallet can
// trade and "fill" notifications when the wallet's orders execute.
//
// The feed auto-reconnects with exponential backoff (1s → 30s max) and
// re-subscribes on reconnection. A read deadline (90s) ensures silent server
// failures are detected within ~2 missed pings.
package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"driftbet/pkg/types"
)

const (
	pingInterval     = 50 * time.Second // how often we send PING to keep alive
	readTimeout      = 90 * time.Second // ~2 missed pings triggers reconnect
	maxReconnectWait = 30 * time.Second // cap on exponential backoff
	writeTimeout     = 10 * time.Second // deadline for outgoing messages
	oracleBufferSize = 256              // buffer for oracle price events
	fillBufferSize   = 64               // buffer for fill events
)

// AccountFeed manages the account WebSocket connection. It handles connection
// lifecycle, message routing, and automatic reconnection with backoff.
type AccountFeed struct {
	url    string
	wallet string
	conn   *websocket.Conn
	connMu sync.Mutex // protects conn reads/writes

	// Typed event channels — consumers read from these via accessor methods
	oracleCh chan types.WSOracleEvent
	fillCh   chan types.WSFillEvent

	logger *slog.Logger
}

// NewAccountFeed creates a WebSocket feed for the given wallet.
func NewAccountFeed(wsURL, wallet string, logger *slog.Logger) *AccountFeed {
	return &AccountFeed{
		url:      wsURL,
		wallet:   wallet,
		oracleCh: make(chan types.WSOracleEvent, oracleBufferSize),
		fillCh:   make(chan types.WSFillEvent, fillBufferSize),
		logger:   logger.With("component", "ws_account"),
	}
}

// OracleEvents returns a read-only channel of oracle price updates.
func (f *AccountFeed) OracleEvents() <-chan types.WSOracleEvent { return f.oracleCh }

// FillEvents returns a read-only channel of fill notifications.
func (f *AccountFeed) FillEvents() <-chan types.WSFillEvent { return f.fillCh }

// Run connects and maintains the WebSocket connection with auto-reconnect.
// Blocks until ctx is cancelled.
func (f *AccountFeed) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("websocket disconnected, reconnecting",
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		// Exponential backoff: 1s, 2s, 4s, 8s, ..., 30s max
		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// Close gracefully closes the connection.
func (f *AccountFeed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *AccountFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	// Send initial subscription
	sub := types.WSSubscribeMsg{
		Type:          "account",
		Wallet:        f.wallet,
		WithOracle:    true,
		WithPositions: true,
	}
	if err := f.writeJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("websocket connected", "wallet", f.wallet)

	// Start ping goroutine
	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	// Read loop with deadline so we reconnect if server goes silent
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		f.dispatchMessage(msg)
	}
}

func (f *AccountFeed) dispatchMessage(data []byte) {
	// Peek at event_type to route
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		f.logger.Debug("ignoring non-json ws message", "data", string(data))
		return
	}

	switch envelope.EventType {
	case "oracle_price":
		var evt types.WSOracleEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal oracle event", "error", err)
			return
		}
		select {
		case f.oracleCh <- evt:
		default:
			f.logger.Warn("oracle channel full, dropping event", "market", evt.MarketIndex)
		}

	case "fill":
		var evt types.WSFillEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal fill event", "error", err)
			return
		}
		select {
		case f.fillCh <- evt:
		default:
			f.logger.Warn("fill channel full, dropping event", "tx", evt.TxSignature)
		}

	case "subscribed", "heartbeat", "funding_rate":
		// Informational events we don't need to process
		f.logger.Debug("ignoring event", "type", envelope.EventType)

	default:
		f.logger.Debug("unknown ws event type", "type", envelope.EventType)
	}
}

func (f *AccountFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.TextMessage, []byte("PING")); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *AccountFeed) writeJSON(v interface{}) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *AccountFeed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}
