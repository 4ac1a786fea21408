package indexer

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CloakLink/CloakLinkSOL/internal/chain"
	"github.com/CloakLink/CloakLinkSOL/internal/match"
	"github.com/CloakLink/CloakLinkSOL/internal/models"
)

const receiveAddr = "H3UuEhEDuJeayQM2ngiZX6hgqPdh9vywgqbiZ9erjRzG"

type paidRecord struct {
	txHash        string
	paidAt        time.Time
	lastSignature string
}

type fakeStore struct {
	invoices []*models.InvoiceWithCursor
	listErr  error

	listCalls   int
	paid        map[string]paidRecord
	cursors     map[string]string
	upsertCalls int
}

func newFakeStore(invoices ...*models.InvoiceWithCursor) *fakeStore {
	return &fakeStore{
		invoices: invoices,
		paid:     map[string]paidRecord{},
		cursors:  map[string]string{},
	}
}

func (s *fakeStore) ListUnpaidInvoices(ctx context.Context, chain string) ([]*models.InvoiceWithCursor, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.invoices, nil
}

func (s *fakeStore) MarkInvoicePaid(ctx context.Context, invoiceID, txHash string, paidAt time.Time, lastSignature string) (bool, error) {
	if _, done := s.paid[invoiceID]; done {
		return false, nil
	}
	s.paid[invoiceID] = paidRecord{txHash: txHash, paidAt: paidAt, lastSignature: lastSignature}
	s.cursors[invoiceID] = lastSignature
	return true, nil
}

func (s *fakeStore) UpsertCursor(ctx context.Context, invoiceID, lastSignature string) error {
	s.upsertCalls++
	s.cursors[invoiceID] = lastSignature
	return nil
}

type fakeRPC struct {
	signaturesFn func(address string, opts chain.SignaturesOpts) ([]chain.SignatureInfo, error)
	txs          map[string]*chain.ParsedTransaction
	status       chain.Status

	signatureOpts []chain.SignaturesOpts
	txFetches     []string
}

func (r *fakeRPC) GetSignaturesForAddress(ctx context.Context, address string, opts chain.SignaturesOpts) ([]chain.SignatureInfo, error) {
	r.signatureOpts = append(r.signatureOpts, opts)
	if r.signaturesFn != nil {
		return r.signaturesFn(address, opts)
	}
	return nil, nil
}

func (r *fakeRPC) GetParsedTransaction(ctx context.Context, signature string) (*chain.ParsedTransaction, error) {
	r.txFetches = append(r.txFetches, signature)
	return r.txs[signature], nil
}

func (r *fakeRPC) Status() chain.Status {
	if r.status.State == "" {
		return chain.Status{State: chain.BreakerClosed}
	}
	return r.status
}

func newTestIndexer(store Store, rpc RPC) *Indexer {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Indexer{
		Store:     store,
		RPC:       rpc,
		Chain:     "solana",
		PageLimit: 20,
		Interval:  time.Second,
		Match:     match.Options{},
		Log:       logrus.NewEntry(log),
	}
}

func unpaidInvoice(id string, cursor *models.IndexerCursor) *models.InvoiceWithCursor {
	return &models.InvoiceWithCursor{
		Invoice: models.Invoice{
			ID:             id,
			Slug:           "invoice-" + id,
			Amount:         "1",
			Chain:          "solana",
			ReceiveAddress: receiveAddr,
			Status:         models.InvoicePending,
		},
		Cursor: cursor,
	}
}

// payingTx transfers one whole native coin to the receive address.
func payingTx() *chain.ParsedTransaction {
	return &chain.ParsedTransaction{
		Meta: &chain.TransactionMeta{
			PreBalances:  []uint64{2_000_000_000, 0},
			PostBalances: []uint64{1_000_000_000, 1_000_000_000},
		},
		Message: chain.Message{
			AccountKeys: []chain.AccountKey{
				{Pubkey: "sender", Signer: true},
				{Pubkey: receiveAddr},
			},
		},
	}
}

func noiseTx() *chain.ParsedTransaction {
	return &chain.ParsedTransaction{
		Meta: &chain.TransactionMeta{
			PreBalances:  []uint64{1_000_000_000, 500},
			PostBalances: []uint64{999_000_000, 500},
		},
		Message: chain.Message{
			AccountKeys: []chain.AccountKey{
				{Pubkey: "sender", Signer: true},
				{Pubkey: receiveAddr},
			},
		},
	}
}

func TestFirstPollSetsCursorWithoutMatch(t *testing.T) {
	store := newFakeStore(unpaidInvoice("inv-1", nil))
	rpc := &fakeRPC{
		signaturesFn: func(address string, opts chain.SignaturesOpts) ([]chain.SignatureInfo, error) {
			return []chain.SignatureInfo{{Signature: "S3"}, {Signature: "S2"}, {Signature: "S1"}}, nil
		},
		txs: map[string]*chain.ParsedTransaction{
			"S1": noiseTx(), "S2": noiseTx(), "S3": noiseTx(),
		},
	}
	ix := newTestIndexer(store, rpc)

	require.NoError(t, ix.PollOnce(context.Background()))

	require.Len(t, rpc.signatureOpts, 1)
	assert.Equal(t, 20, rpc.signatureOpts[0].Limit, "first scan is bounded by the page limit")
	assert.Empty(t, rpc.signatureOpts[0].Until, "no cursor means no lower bound")
	assert.Equal(t, "S3", store.cursors["inv-1"], "cursor advances even without a match")
	assert.Empty(t, store.paid)
}

func TestPollIsIdempotentAtNewestSignature(t *testing.T) {
	cursor := &models.IndexerCursor{InvoiceID: "inv-1", LastSignature: "S3"}
	store := newFakeStore(unpaidInvoice("inv-1", cursor))
	rpc := &fakeRPC{
		signaturesFn: func(address string, opts chain.SignaturesOpts) ([]chain.SignatureInfo, error) {
			if opts.Until == "S3" {
				return nil, nil
			}
			return []chain.SignatureInfo{{Signature: "S3"}}, nil
		},
	}
	ix := newTestIndexer(store, rpc)

	require.NoError(t, ix.PollOnce(context.Background()))

	assert.Zero(t, store.upsertCalls, "no new signatures means no state change")
	assert.Empty(t, store.paid)
	assert.Empty(t, rpc.txFetches)
}

func TestOldestQualifyingSignatureWinsCursorEndsAtNewest(t *testing.T) {
	blockTime := int64(1_700_000_000)
	store := newFakeStore(unpaidInvoice("inv-1", nil))
	rpc := &fakeRPC{
		signaturesFn: func(address string, opts chain.SignaturesOpts) ([]chain.SignatureInfo, error) {
			// Newest first: S3, S2, S1. Only S2 pays.
			return []chain.SignatureInfo{
				{Signature: "S3"},
				{Signature: "S2", BlockTime: &blockTime},
				{Signature: "S1"},
			}, nil
		},
		txs: map[string]*chain.ParsedTransaction{
			"S1": noiseTx(),
			"S2": payingTx(),
			"S3": payingTx(),
		},
	}
	ix := newTestIndexer(store, rpc)

	require.NoError(t, ix.PollOnce(context.Background()))

	record, ok := store.paid["inv-1"]
	require.True(t, ok)
	assert.Equal(t, "S2", record.txHash, "oldest qualifying signature is the payment")
	assert.Equal(t, "S3", record.lastSignature, "cursor ends at the newest fetched signature")
	assert.Equal(t, time.Unix(blockTime, 0).UTC(), record.paidAt)
	assert.Equal(t, []string{"S1", "S2"}, rpc.txFetches, "scanning stops at the first match")
	assert.Zero(t, store.upsertCalls, "cursor advance rides the paid transition")
}

func TestFailedInvoiceLoadStillRecordsPollTime(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("db down")
	ix := newTestIndexer(store, &fakeRPC{})

	require.Error(t, ix.PollOnce(context.Background()))

	snapshot := ix.HealthSnapshot()
	require.NotNil(t, snapshot.LastPollAt, "a failed cycle is still a cycle")
}

func TestSkipsCycleWhileCircuitOpen(t *testing.T) {
	store := newFakeStore(unpaidInvoice("inv-1", nil))
	reopenAt := time.Now().Add(time.Minute)
	rpc := &fakeRPC{status: chain.Status{State: chain.BreakerOpen, OpenUntil: &reopenAt}}
	ix := newTestIndexer(store, rpc)

	require.NoError(t, ix.PollOnce(context.Background()))

	assert.Zero(t, store.listCalls, "no invoice work while the circuit is open")
	snapshot := ix.HealthSnapshot()
	assert.Equal(t, 1, snapshot.SkippedDueToCircuit)
	require.NotNil(t, snapshot.LastPollAt)
}

func TestCycleRunsOnceCooldownElapsed(t *testing.T) {
	store := newFakeStore(unpaidInvoice("inv-1", nil))
	reopenAt := time.Now().Add(-time.Minute)
	rpc := &fakeRPC{status: chain.Status{State: chain.BreakerOpen, OpenUntil: &reopenAt}}
	ix := newTestIndexer(store, rpc)

	require.NoError(t, ix.PollOnce(context.Background()))
	assert.Equal(t, 1, store.listCalls, "elapsed cooldown lets the cycle probe")
}

func TestInvoiceErrorDoesNotAbortCycle(t *testing.T) {
	store := newFakeStore(unpaidInvoice("inv-1", nil), unpaidInvoice("inv-2", nil))
	// First invoice fails its signature fetch; the fake then recovers so the
	// second invoice observes a healthy RPC.
	calls := 0
	rpc := &fakeRPC{
		signaturesFn: func(address string, opts chain.SignaturesOpts) ([]chain.SignatureInfo, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("rpc exploded")
			}
			return []chain.SignatureInfo{{Signature: "S1"}}, nil
		},
		txs: map[string]*chain.ParsedTransaction{"S1": noiseTx()},
	}
	ix := newTestIndexer(store, rpc)

	require.NoError(t, ix.PollOnce(context.Background()))

	assert.Equal(t, 2, calls, "second invoice still processed")
	assert.Equal(t, "S1", store.cursors["inv-2"])
	snapshot := ix.HealthSnapshot()
	assert.Equal(t, 2, snapshot.LastInvoiceCount)
}

func TestAlreadyPaidInvoiceIsSkipped(t *testing.T) {
	invoice := unpaidInvoice("inv-1", nil)
	invoice.Status = models.InvoicePaid
	store := newFakeStore(invoice)
	rpc := &fakeRPC{}
	ix := newTestIndexer(store, rpc)

	require.NoError(t, ix.PollOnce(context.Background()))
	assert.Empty(t, rpc.signatureOpts)
}

func TestNotFoundTransactionIsNotAMatch(t *testing.T) {
	store := newFakeStore(unpaidInvoice("inv-1", nil))
	rpc := &fakeRPC{
		signaturesFn: func(address string, opts chain.SignaturesOpts) ([]chain.SignatureInfo, error) {
			return []chain.SignatureInfo{{Signature: "S1"}}, nil
		},
		// S1 deliberately absent from txs: GetParsedTransaction returns nil.
	}
	ix := newTestIndexer(store, rpc)

	require.NoError(t, ix.PollOnce(context.Background()))
	assert.Empty(t, store.paid)
	assert.Equal(t, "S1", store.cursors["inv-1"])
}

func TestMemoRequirementFlowsThroughCycle(t *testing.T) {
	store := newFakeStore(unpaidInvoice("inv-1", nil))
	tx := payingTx()
	rpc := &fakeRPC{
		signaturesFn: func(address string, opts chain.SignaturesOpts) ([]chain.SignatureInfo, error) {
			return []chain.SignatureInfo{{Signature: "S1"}}, nil
		},
		txs: map[string]*chain.ParsedTransaction{"S1": tx},
	}
	ix := newTestIndexer(store, rpc)
	ix.Match = match.Options{RequireMemo: true, MemoPrefix: "cloaklink:"}

	require.NoError(t, ix.PollOnce(context.Background()))
	assert.Empty(t, store.paid, "correct amount without memo must not pay")
	assert.Equal(t, "S1", store.cursors["inv-1"])

	tx.Meta.LogMessages = []string{"Program log: cloaklink:invoice-inv-1"}
	store2 := newFakeStore(unpaidInvoice("inv-1", nil))
	ix.Store = store2
	require.NoError(t, ix.PollOnce(context.Background()))
	require.Contains(t, store2.paid, "inv-1")
}
