package entitlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateReseller provisions a reseller account with an initial credit
// balance (may be zero). Administrative action.
func (s *Service) CreateReseller(ctx context.Context, email, name, password string, initialCredits int) (*Reseller, error) {
	if email == "" {
		return nil, Error{Kind: KindInvalidInput, Code: "INVALID_EMAIL", Message: "reseller email is required"}
	}
	if initialCredits < 0 {
		return nil, ErrInvalidAmount
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.clock.Now()
	reseller := &Reseller{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Credits:      initialCredits,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateReseller(ctx, reseller); err != nil {
		return nil, err
	}
	return reseller, nil
}

// TopUpReseller adds credits to a reseller balance. The row is locked for
// the read-modify-write so concurrent top-ups and debits serialize.
func (s *Service) TopUpReseller(ctx context.Context, id string, amount int) (*Reseller, error) {
	var reseller *Reseller
	err := s.store.InTx(ctx, func(tx Store) error {
		r, err := tx.GetResellerByID(ctx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return ErrResellerNotFound
		}
		if _, err := s.ledger.Credit(r, amount); err != nil {
			return err
		}
		if err := tx.SaveReseller(ctx, r); err != nil {
			return err
		}
		reseller = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reseller, nil
}

// GetReseller loads a reseller by id.
func (s *Service) GetReseller(ctx context.Context, id string) (*Reseller, error) {
	r, err := s.store.GetResellerByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrResellerNotFound
	}
	return r, nil
}
