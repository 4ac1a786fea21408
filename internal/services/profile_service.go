package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/CloakLink/CloakLinkSOL/internal/chain"
	"github.com/CloakLink/CloakLinkSOL/internal/models"
	"github.com/CloakLink/CloakLinkSOL/internal/store"
)

var (
	ErrInvalidAlias   = errors.New("alias must be at least 2 characters")
	ErrInvalidAddress = errors.New("receive address is not a valid account key")
	ErrInvalidChain   = errors.New("chain must be at least 2 characters")
)

type ProfileService struct {
	Store *store.Store
}

func (s *ProfileService) CreateProfile(ctx context.Context, alias, receiveAddress, defaultChain string) (*models.Profile, error) {
	if len(alias) < 2 {
		return nil, ErrInvalidAlias
	}
	if !chain.ValidAddress(receiveAddress) {
		return nil, ErrInvalidAddress
	}
	if len(defaultChain) < 2 {
		return nil, ErrInvalidChain
	}

	now := time.Now().UTC()
	profile := &models.Profile{
		ID:             uuid.NewString(),
		Alias:          alias,
		ReceiveAddress: receiveAddress,
		DefaultChain:   defaultChain,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Store.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *ProfileService) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	return s.Store.GetProfile(ctx, id)
}

func (s *ProfileService) GetProfileByAlias(ctx context.Context, alias string) (*models.Profile, error) {
	return s.Store.GetProfileByAlias(ctx, alias)
}

func (s *ProfileService) ListProfiles(ctx context.Context) ([]*models.Profile, error) {
	return s.Store.ListProfiles(ctx)
}
