package indexer

import (
	"time"

	"github.com/CloakLink/CloakLinkSOL/internal/chain"
)

// Snapshot is the read-only health view served by the health endpoint.
type Snapshot struct {
	LastPollAt          *time.Time   `json:"lastPollAt"`
	LastInvoiceCount    int          `json:"lastInvoiceCount"`
	SkippedDueToCircuit int          `json:"skippedDueToCircuit"`
	RPCStatus           chain.Status `json:"rpcStatus"`
}

func (ix *Indexer) HealthSnapshot() Snapshot {
	ix.mu.Lock()
	lastPollAt := ix.lastPollAt
	count := ix.lastInvoiceCount
	skipped := ix.skippedDueToCircuit
	ix.mu.Unlock()

	snapshot := Snapshot{
		LastInvoiceCount:    count,
		SkippedDueToCircuit: skipped,
		RPCStatus:           ix.RPC.Status(),
	}
	if !lastPollAt.IsZero() {
		snapshot.LastPollAt = &lastPollAt
	}
	return snapshot
}
