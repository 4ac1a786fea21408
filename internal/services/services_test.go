package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CloakLink/CloakLinkSOL/internal/models"
)

const validAddr = "H3UuEhEDuJeayQM2ngiZX6hgqPdh9vywgqbiZ9erjRzG"

// Validation runs before any store access, so a nil store is safe for the
// rejection paths.
func TestCreateProfileValidation(t *testing.T) {
	svc := &ProfileService{}
	ctx := context.Background()

	_, err := svc.CreateProfile(ctx, "a", validAddr, "solana")
	assert.ErrorIs(t, err, ErrInvalidAlias)

	_, err = svc.CreateProfile(ctx, "alice", "not-an-address", "solana")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = svc.CreateProfile(ctx, "alice", validAddr, "s")
	assert.ErrorIs(t, err, ErrInvalidChain)
}

func TestCreateInvoiceValidation(t *testing.T) {
	svc := &InvoiceService{}
	ctx := context.Background()
	profile := &models.Profile{ID: "p1", Alias: "alice", ReceiveAddress: validAddr, DefaultChain: "solana"}

	cases := []struct {
		name string
		in   CreateInvoiceInput
		want error
	}{
		{"zero amount", CreateInvoiceInput{Amount: "0", TokenSymbol: "SOL"}, ErrInvalidAmount},
		{"negative amount", CreateInvoiceInput{Amount: "-5", TokenSymbol: "SOL"}, ErrInvalidAmount},
		{"garbage amount", CreateInvoiceInput{Amount: "five", TokenSymbol: "SOL"}, ErrInvalidAmount},
		{"missing symbol", CreateInvoiceInput{Amount: "1"}, ErrInvalidTokenSymbol},
		{"bad mint", CreateInvoiceInput{Amount: "1", TokenSymbol: "USDC", TokenAddress: "xyz"}, ErrInvalidTokenAddress},
		{"short slug", CreateInvoiceInput{Amount: "1", TokenSymbol: "SOL", Slug: "ab"}, ErrInvalidSlug},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateInvoice(ctx, profile, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "alice-s-shop", Slugify("Alice's Shop"))
	assert.Equal(t, "my-shop-42", Slugify("  My Shop 42  "))
	assert.Equal(t, "abc", Slugify("---abc---"))
	assert.Empty(t, Slugify("!!!"))
}

func TestShortIDLength(t *testing.T) {
	id := shortID()
	require.Len(t, id, 6)
	assert.NotEqual(t, id, shortID())
}
