package chain

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
)

// WSClient is a minimal logsSubscribe subscriber used as a fast path: a log
// notification mentioning a watched address triggers an immediate scan
// instead of waiting for the next poll tick.
type WSClient struct {
	Endpoint string
	Conn     *websocket.Conn
}

func NewWSClient(endpoint string) *WSClient {
	return &WSClient{Endpoint: endpoint}
}

// Connect dials the endpoint and ties the connection's lifetime to ctx:
// cancellation closes the connection, which unblocks any pending Read.
func (c *WSClient) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(ctx, c.Endpoint, nil)
	if err != nil {
		return err
	}
	c.Conn = conn
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	return nil
}

func (c *WSClient) Close() {
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}

// SubscribeLogs subscribes to transaction logs mentioning one address. The
// upstream only accepts a single mentions entry per subscription, so callers
// subscribe once per watched address.
func (c *WSClient) SubscribeLogs(ctx context.Context, address string) error {
	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "logsSubscribe",
		"params": []any{
			map[string]any{"mentions": []string{address}},
			map[string]any{"commitment": "confirmed"},
		},
	}
	return c.Conn.WriteJSON(payload)
}

func (c *WSClient) Read() ([]byte, error) {
	_, msg, err := c.Conn.ReadMessage()
	return msg, err
}

type LogNotification struct {
	Signature string
	Err       json.RawMessage
	Logs      []string
}

// ParseWSLog extracts a log notification from a WS frame. Subscription acks
// and unrelated frames return ok=false.
func ParseWSLog(msg []byte) (*LogNotification, bool, error) {
	var env struct {
		Method string `json:"method"`
		Params struct {
			Result struct {
				Value struct {
					Signature string          `json:"signature"`
					Err       json.RawMessage `json:"err"`
					Logs      []string        `json:"logs"`
				} `json:"value"`
			} `json:"result"`
		} `json:"params"`
	}
	if err := json.Unmarshal(msg, &env); err != nil {
		return nil, false, err
	}
	if env.Method != "logsNotification" {
		return nil, false, nil
	}
	value := env.Params.Result.Value
	if value.Signature == "" {
		return nil, false, nil
	}
	return &LogNotification{
		Signature: value.Signature,
		Err:       value.Err,
		Logs:      value.Logs,
	}, true, nil
}
