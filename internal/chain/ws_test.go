package chain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newWSTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Hold the connection open without sending any frames.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWSReadUnblocksOnContextCancel(t *testing.T) {
	srv := newWSTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewWSClient("ws" + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, client.Connect(ctx))
	defer client.Close()

	done := make(chan error, 1)
	go func() {
		_, err := client.Read()
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("read did not unblock after context cancellation")
	}
}
