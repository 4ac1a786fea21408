package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CloakLink/CloakLinkSOL/internal/chain"
	"github.com/CloakLink/CloakLinkSOL/internal/indexer"
)

func TestHealthEndpoint(t *testing.T) {
	lastPoll := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	router := NewHealthRouter(func() indexer.Snapshot {
		return indexer.Snapshot{
			LastPollAt:          &lastPoll,
			LastInvoiceCount:    4,
			SkippedDueToCircuit: 1,
			RPCStatus: chain.Status{
				Endpoint: "https://rpc-a",
				State:    chain.BreakerClosed,
			},
		}
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Status              string       `json:"status"`
		LastPollAt          *time.Time   `json:"lastPollAt"`
		LastInvoiceCount    int          `json:"lastInvoiceCount"`
		SkippedDueToCircuit int          `json:"skippedDueToCircuit"`
		RPCStatus           chain.Status `json:"rpcStatus"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	require.NotNil(t, body.LastPollAt)
	assert.True(t, body.LastPollAt.Equal(lastPoll))
	assert.Equal(t, 4, body.LastInvoiceCount)
	assert.Equal(t, 1, body.SkippedDueToCircuit)
	assert.Equal(t, "https://rpc-a", body.RPCStatus.Endpoint)
	assert.Equal(t, chain.BreakerClosed, body.RPCStatus.State)
}

func TestMetricsEndpoint(t *testing.T) {
	router := NewHealthRouter(func() indexer.Snapshot { return indexer.Snapshot{} })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
