package models

import "time"

type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "PENDING"
	InvoicePaid    InvoiceStatus = "PAID"
)

type AssetKind int

const (
	AssetNative AssetKind = iota
	AssetToken
)

// Asset is the tagged "what are we being paid in" variant: the native coin,
// or a fungible token identified by its mint address.
type Asset struct {
	Kind AssetKind
	Mint string
}

type Profile struct {
	ID             string
	Alias          string
	ReceiveAddress string
	DefaultChain   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Invoice struct {
	ID             string
	ProfileID      string
	Slug           string
	Amount         string
	TokenSymbol    string
	TokenAddress   *string
	Chain          string
	ReceiveAddress string
	Description    *string
	Status         InvoiceStatus
	TxHash         *string
	PaidAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Asset resolves the invoice's asset variant. An absent token address means
// the chain's native coin.
func (i *Invoice) Asset() Asset {
	if i.TokenAddress == nil || *i.TokenAddress == "" {
		return Asset{Kind: AssetNative}
	}
	return Asset{Kind: AssetToken, Mint: *i.TokenAddress}
}

// IndexerCursor is the last-scanned-signature watermark for one invoice.
// Absence means the invoice's address has never been scanned.
type IndexerCursor struct {
	InvoiceID     string
	LastSignature string
	UpdatedAt     time.Time
}

type InvoiceWithCursor struct {
	Invoice
	Cursor *IndexerCursor
}
