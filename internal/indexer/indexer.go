// Package indexer drives the reconciliation loop: it scans each unpaid
// invoice's receive address for new signatures, runs the payment matcher over
// the candidates, and persists the paid transition plus cursor progress.
package indexer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/CloakLink/CloakLinkSOL/internal/chain"
	"github.com/CloakLink/CloakLinkSOL/internal/match"
	"github.com/CloakLink/CloakLinkSOL/internal/models"
)

// Store is the slice of the persistence layer the loop needs.
type Store interface {
	ListUnpaidInvoices(ctx context.Context, chain string) ([]*models.InvoiceWithCursor, error)
	MarkInvoicePaid(ctx context.Context, invoiceID, txHash string, paidAt time.Time, lastSignature string) (bool, error)
	UpsertCursor(ctx context.Context, invoiceID, lastSignature string) error
}

// RPC is the resilient ledger client surface the loop calls.
type RPC interface {
	GetSignaturesForAddress(ctx context.Context, address string, opts chain.SignaturesOpts) ([]chain.SignatureInfo, error)
	GetParsedTransaction(ctx context.Context, signature string) (*chain.ParsedTransaction, error)
	Status() chain.Status
}

type Indexer struct {
	Store       Store
	RPC         RPC
	Chain       string
	PageLimit   int
	Interval    time.Duration
	Match       match.Options
	WSEndpoints []string
	Log         *logrus.Entry

	// pollMu serializes cycles so the WS fast path never overlaps a
	// scheduled one.
	pollMu sync.Mutex

	mu                  sync.Mutex
	lastPollAt          time.Time
	lastInvoiceCount    int
	skippedDueToCircuit int

	now func() time.Time
}

func (ix *Indexer) clock() time.Time {
	if ix.now != nil {
		return ix.now()
	}
	return time.Now()
}

// Run polls once immediately, then on the configured interval. Each cycle
// runs to completion before the next is scheduled; ctx stops the loop at the
// next cycle boundary.
func (ix *Indexer) Run(ctx context.Context) {
	ix.Log.WithFields(logrus.Fields{
		"chain":        ix.Chain,
		"pollInterval": ix.Interval.String(),
	}).Info("indexer starting")

	go ix.RunWS(ctx)

	ticker := time.NewTicker(ix.Interval)
	defer ticker.Stop()

	for {
		if err := ix.PollOnce(ctx); err != nil {
			ix.Log.WithError(err).Error("polling error")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PollOnce runs one reconciliation cycle. A failure on one invoice is
// contained to that invoice; only cycle-level failures (loading the unpaid
// set) surface as an error.
func (ix *Indexer) PollOnce(ctx context.Context) error {
	ix.pollMu.Lock()
	defer ix.pollMu.Unlock()

	// The poll timestamp is recorded however the cycle ends, including a
	// failed invoice load.
	defer func() {
		ix.mu.Lock()
		ix.lastPollAt = ix.clock()
		ix.mu.Unlock()
	}()

	status := ix.RPC.Status()
	if status.State == chain.BreakerOpen && status.OpenUntil != nil && ix.clock().Before(*status.OpenUntil) {
		ix.mu.Lock()
		ix.skippedDueToCircuit++
		ix.mu.Unlock()
		ix.Log.WithField("reopenAt", status.OpenUntil).Warn("skipping poll cycle while rpc circuit open")
		return nil
	}

	invoices, err := ix.Store.ListUnpaidInvoices(ctx, ix.Chain)
	if err != nil {
		return err
	}

	for _, invoice := range invoices {
		if err := ix.checkInvoice(ctx, invoice); err != nil {
			ix.Log.WithFields(logrus.Fields{
				"invoiceId": invoice.ID,
				"slug":      invoice.Slug,
			}).WithError(err).Error("error processing invoice")
		}
	}

	ix.mu.Lock()
	ix.lastInvoiceCount = len(invoices)
	ix.mu.Unlock()
	return nil
}

func (ix *Indexer) checkInvoice(ctx context.Context, invoice *models.InvoiceWithCursor) error {
	if invoice.Status == models.InvoicePaid {
		return nil
	}

	var until string
	if invoice.Cursor != nil {
		until = invoice.Cursor.LastSignature
	}

	signatures, err := ix.RPC.GetSignaturesForAddress(ctx, invoice.ReceiveAddress, chain.SignaturesOpts{
		Limit: ix.PageLimit,
		Until: until,
	})
	if err != nil {
		return err
	}
	if len(signatures) == 0 {
		return nil
	}

	// The fetch is newest-first; remember the newest for cursor advancement
	// and replay oldest-first so a batched wallet's earliest qualifying
	// transfer is the one recorded as the payment.
	newest := signatures[0].Signature
	for i := len(signatures) - 1; i >= 0; i-- {
		info := signatures[i]
		paid, err := ix.processSignature(ctx, invoice, info.Signature)
		if err != nil {
			return err
		}
		if !paid {
			continue
		}

		paidAt := ix.clock()
		if info.BlockTime != nil {
			paidAt = time.Unix(*info.BlockTime, 0).UTC()
		}
		updated, err := ix.Store.MarkInvoicePaid(ctx, invoice.ID, info.Signature, paidAt, newest)
		if err != nil {
			return err
		}
		if updated {
			ix.Log.WithFields(logrus.Fields{
				"slug":      invoice.Slug,
				"signature": info.Signature,
			}).Info("invoice paid")
		}
		return nil
	}

	// No payment this page: still advance the watermark so unrelated
	// transaction noise is never rescanned.
	return ix.Store.UpsertCursor(ctx, invoice.ID, newest)
}

func (ix *Indexer) processSignature(ctx context.Context, invoice *models.InvoiceWithCursor, signature string) (bool, error) {
	tx, err := ix.RPC.GetParsedTransaction(ctx, signature)
	if err != nil {
		return false, err
	}
	if tx == nil {
		return false, nil
	}
	return match.Matches(tx, &invoice.Invoice, ix.Match), nil
}
