package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CloakLink/CloakLinkSOL/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) CreateProfile(ctx context.Context, profile *models.Profile) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO profiles (id, alias, receive_address, default_chain, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`,
		profile.ID,
		profile.Alias,
		profile.ReceiveAddress,
		profile.DefaultChain,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	return err
}

func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, alias, receive_address, default_chain, created_at, updated_at
		FROM profiles WHERE id=$1
	`, id)
	return scanProfile(row)
}

func (s *Store) GetProfileByAlias(ctx context.Context, alias string) (*models.Profile, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, alias, receive_address, default_chain, created_at, updated_at
		FROM profiles WHERE alias=$1
	`, alias)
	return scanProfile(row)
}

func (s *Store) ListProfiles(ctx context.Context) ([]*models.Profile, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, alias, receive_address, default_chain, created_at, updated_at
		FROM profiles ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

const invoiceColumns = `id, profile_id, slug, amount::text, token_symbol, token_address,
	chain, receive_address, description, status, tx_hash, paid_at, created_at, updated_at`

func (s *Store) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO invoices (
			id, profile_id, slug, amount, token_symbol, token_address,
			chain, receive_address, description, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		invoice.ID,
		invoice.ProfileID,
		invoice.Slug,
		invoice.Amount,
		invoice.TokenSymbol,
		invoice.TokenAddress,
		invoice.Chain,
		invoice.ReceiveAddress,
		invoice.Description,
		invoice.Status,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	)
	return err
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id)
	return scanInvoice(row)
}

func (s *Store) GetInvoiceBySlug(ctx context.Context, slug string) (*models.Invoice, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE slug=$1`, slug)
	return scanInvoice(row)
}

func (s *Store) ListInvoicesByProfile(ctx context.Context, profileID string) ([]*models.Invoice, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE profile_id=$1 ORDER BY created_at DESC
	`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []*models.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

// ListUnpaidInvoices returns every non-PAID invoice for the chain, each
// joined with its cursor when one exists. No ordering is imposed.
func (s *Store) ListUnpaidInvoices(ctx context.Context, chain string) ([]*models.InvoiceWithCursor, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT i.id, i.profile_id, i.slug, i.amount::text, i.token_symbol, i.token_address,
			i.chain, i.receive_address, i.description, i.status, i.tx_hash, i.paid_at,
			i.created_at, i.updated_at,
			c.last_signature, c.updated_at
		FROM invoices i
		LEFT JOIN indexer_cursors c ON c.invoice_id = i.id
		WHERE i.status <> 'PAID' AND i.chain = $1
	`, chain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.InvoiceWithCursor
	for rows.Next() {
		var item models.InvoiceWithCursor
		var tokenAddress, description, txHash, lastSignature sql.NullString
		var paidAt, cursorUpdatedAt sql.NullTime
		if err := rows.Scan(
			&item.ID,
			&item.ProfileID,
			&item.Slug,
			&item.Amount,
			&item.TokenSymbol,
			&tokenAddress,
			&item.Chain,
			&item.ReceiveAddress,
			&description,
			&item.Status,
			&txHash,
			&paidAt,
			&item.CreatedAt,
			&item.UpdatedAt,
			&lastSignature,
			&cursorUpdatedAt,
		); err != nil {
			return nil, err
		}
		if tokenAddress.Valid {
			item.TokenAddress = &tokenAddress.String
		}
		if description.Valid {
			item.Description = &description.String
		}
		if txHash.Valid {
			item.TxHash = &txHash.String
		}
		if paidAt.Valid {
			item.PaidAt = &paidAt.Time
		}
		if lastSignature.Valid {
			item.Cursor = &models.IndexerCursor{
				InvoiceID:     item.ID,
				LastSignature: lastSignature.String,
				UpdatedAt:     cursorUpdatedAt.Time,
			}
		}
		out = append(out, &item)
	}
	return out, rows.Err()
}

// MarkInvoicePaid applies the PENDING→PAID transition and the cursor advance
// in one transaction. The status UPDATE is guarded so a second detection is a
// no-op, and a failed status write never strands the cursor past the paying
// signature.
func (s *Store) MarkInvoicePaid(ctx context.Context, invoiceID, txHash string, paidAt time.Time, lastSignature string) (bool, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	res, err := tx.Exec(ctx, `
		UPDATE invoices
		SET status='PAID', tx_hash=$2, paid_at=$3, updated_at=now()
		WHERE id=$1 AND status <> 'PAID'
	`, invoiceID, txHash, paidAt)
	if err != nil {
		return false, err
	}
	if res.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO indexer_cursors (invoice_id, last_signature, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (invoice_id) DO UPDATE SET last_signature=EXCLUDED.last_signature, updated_at=now()
	`, invoiceID, lastSignature); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) UpsertCursor(ctx context.Context, invoiceID, lastSignature string) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO indexer_cursors (invoice_id, last_signature, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (invoice_id) DO UPDATE SET last_signature=EXCLUDED.last_signature, updated_at=now()
	`, invoiceID, lastSignature)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var profile models.Profile
	if err := row.Scan(
		&profile.ID,
		&profile.Alias,
		&profile.ReceiveAddress,
		&profile.DefaultChain,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &profile, nil
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	var invoice models.Invoice
	var tokenAddress, description, txHash sql.NullString
	var paidAt sql.NullTime
	if err := row.Scan(
		&invoice.ID,
		&invoice.ProfileID,
		&invoice.Slug,
		&invoice.Amount,
		&invoice.TokenSymbol,
		&tokenAddress,
		&invoice.Chain,
		&invoice.ReceiveAddress,
		&description,
		&invoice.Status,
		&txHash,
		&paidAt,
		&invoice.CreatedAt,
		&invoice.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if tokenAddress.Valid {
		invoice.TokenAddress = &tokenAddress.String
	}
	if description.Valid {
		invoice.Description = &description.String
	}
	if txHash.Valid {
		invoice.TxHash = &txHash.String
	}
	if paidAt.Valid {
		invoice.PaidAt = &paidAt.Time
	}
	return &invoice, nil
}
