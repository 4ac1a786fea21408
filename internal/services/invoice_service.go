package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/CloakLink/CloakLinkSOL/internal/chain"
	"github.com/CloakLink/CloakLinkSOL/internal/models"
	"github.com/CloakLink/CloakLinkSOL/internal/store"
)

var (
	ErrInvalidAmount       = errors.New("amount must be a positive decimal")
	ErrInvalidTokenSymbol  = errors.New("token symbol is required")
	ErrInvalidTokenAddress = errors.New("token address is not a valid mint")
	ErrInvalidSlug         = errors.New("slug must be at least 3 characters")
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

type CreateInvoiceInput struct {
	Amount       string
	TokenSymbol  string
	TokenAddress string
	Chain        string
	Description  string
	Slug         string
}

type InvoiceService struct {
	Store *store.Store
}

func (s *InvoiceService) CreateInvoice(ctx context.Context, profile *models.Profile, in CreateInvoiceInput) (*models.Invoice, error) {
	amount, err := decimal.NewFromString(in.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if in.TokenSymbol == "" {
		return nil, ErrInvalidTokenSymbol
	}
	if in.TokenAddress != "" && !chain.ValidAddress(in.TokenAddress) {
		return nil, ErrInvalidTokenAddress
	}

	slug := in.Slug
	if slug == "" {
		slug = Slugify(profile.Alias) + "-" + shortID()
	}
	if len(slug) < 3 {
		return nil, ErrInvalidSlug
	}

	invoiceChain := in.Chain
	if invoiceChain == "" {
		invoiceChain = profile.DefaultChain
	}

	now := time.Now().UTC()
	invoice := &models.Invoice{
		ID:             uuid.NewString(),
		ProfileID:      profile.ID,
		Slug:           slug,
		Amount:         amount.String(),
		TokenSymbol:    in.TokenSymbol,
		Chain:          invoiceChain,
		ReceiveAddress: profile.ReceiveAddress,
		Status:         models.InvoicePending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.TokenAddress != "" {
		invoice.TokenAddress = &in.TokenAddress
	}
	if in.Description != "" {
		invoice.Description = &in.Description
	}

	if err := s.Store.CreateInvoice(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *InvoiceService) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	return s.Store.GetInvoice(ctx, id)
}

func (s *InvoiceService) GetInvoiceBySlug(ctx context.Context, slug string) (*models.Invoice, error) {
	return s.Store.GetInvoiceBySlug(ctx, slug)
}

func (s *InvoiceService) ListInvoicesByProfile(ctx context.Context, profileID string) ([]*models.Invoice, error) {
	return s.Store.ListInvoicesByProfile(ctx, profileID)
}

func Slugify(text string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(text), "-")
	return strings.Trim(slug, "-")
}

func shortID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:6]
}
