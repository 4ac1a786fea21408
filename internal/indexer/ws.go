package indexer

import (
	"context"
	"time"

	"github.com/CloakLink/CloakLinkSOL/internal/chain"
	"github.com/CloakLink/CloakLinkSOL/internal/models"
)

// RunWS is the optional fast path: subscribe to logs mentioning unpaid
// invoices' receive addresses and run a poll cycle as soon as a notification
// lands, instead of waiting for the next tick. The poll loop stays the source
// of truth; this only shortens the latency between payment and detection.
func (ix *Indexer) RunWS(ctx context.Context) {
	if len(ix.WSEndpoints) == 0 {
		ix.Log.Debug("ws fast path disabled: no ws endpoints configured")
		return
	}

	endpoint := ix.WSEndpoints[0]
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := ix.wsSession(ctx, endpoint); err != nil {
			ix.Log.WithField("endpoint", endpoint).WithError(err).Warn("ws session ended")
		}

		// Reconnect with a flat delay; the subscription set is rebuilt from
		// the current unpaid invoices on every session.
		select {
		case <-ctx.Done():
			return
		case <-time.After(3 * time.Second):
		}
	}
}

func (ix *Indexer) wsSession(ctx context.Context, endpoint string) error {
	invoices, err := ix.Store.ListUnpaidInvoices(ctx, ix.Chain)
	if err != nil {
		return err
	}
	addresses := distinctAddresses(invoices)
	if len(addresses) == 0 {
		// Nothing to watch yet; let the reconnect delay pace the recheck.
		return nil
	}

	// A session-scoped context bounds the connection watcher so reconnects do
	// not pile up goroutines.
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := chain.NewWSClient(endpoint)
	if err := client.Connect(sessionCtx); err != nil {
		return err
	}
	defer client.Close()
	ix.Log.WithField("endpoint", endpoint).Info("ws connected")

	for _, address := range addresses {
		if err := client.SubscribeLogs(ctx, address); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, err := client.Read()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		notification, ok, err := chain.ParseWSLog(msg)
		if err != nil {
			ix.Log.WithError(err).Warn("ws parse failed")
			continue
		}
		if !ok || len(notification.Err) > 0 && string(notification.Err) != "null" {
			continue
		}

		ix.Log.WithField("signature", notification.Signature).Debug("ws activity on watched address")
		if err := ix.PollOnce(ctx); err != nil {
			ix.Log.WithError(err).Error("ws-triggered poll failed")
		}
	}
}

func distinctAddresses(invoices []*models.InvoiceWithCursor) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(invoices))
	for _, invoice := range invoices {
		if _, ok := seen[invoice.ReceiveAddress]; ok {
			continue
		}
		seen[invoice.ReceiveAddress] = struct{}{}
		out = append(out, invoice.ReceiveAddress)
	}
	return out
}
