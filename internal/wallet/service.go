package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wallet-ledger/wallet_ledger/internal/ledger"
	"github.com/wallet-ledger/wallet_ledger/internal/money"
)

// Service provisions wallets at onboarding and serves wallet reads. Balance
// mutation never happens here; that is the coordinator's job.
type Service struct {
	store           ledger.Store
	defaultCurrency string
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store, defaultCurrency string) *Service {
	return &Service{store: store, defaultCurrency: defaultCurrency}
}

// CreateInput captures data required to create a wallet.
type CreateInput struct {
	OwnerID  string
	Currency string
}

// Create provisions one wallet per owner and currency, starting at zero.
func (s *Service) Create(ctx context.Context, input CreateInput) (ledger.Wallet, error) {
	if _, err := uuid.Parse(input.OwnerID); err != nil {
		return ledger.Wallet{}, fmt.Errorf("invalid owner id: %w", err)
	}

	currency := input.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}
	if err := validateCurrency(currency); err != nil {
		return ledger.Wallet{}, err
	}

	w := ledger.Wallet{
		ID:        uuid.NewString(),
		OwnerID:   input.OwnerID,
		Currency:  currency,
		Balance:   money.Zero,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateWallet(ctx, w); err != nil {
		return ledger.Wallet{}, err
	}
	return w, nil
}

// Get retrieves wallet metadata and current balance.
func (s *Service) Get(ctx context.Context, walletID string) (ledger.Wallet, error) {
	return s.store.Wallet(ctx, walletID)
}

// GetByOwner retrieves the owner's wallet in the given currency.
func (s *Service) GetByOwner(ctx context.Context, ownerID, currency string) (ledger.Wallet, error) {
	if currency == "" {
		currency = s.defaultCurrency
	}
	return s.store.WalletByOwner(ctx, ownerID, currency)
}

// History returns the wallet's ledger entries, newest first.
func (s *Service) History(ctx context.Context, walletID string) ([]ledger.Entry, error) {
	if _, err := s.store.Wallet(ctx, walletID); err != nil {
		return nil, err
	}
	return s.store.Entries(ctx, walletID)
}

func validateCurrency(code string) error {
	if len(code) != 3 {
		return fmt.Errorf("currency must be a 3-letter code, got %q", code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("currency must be upper-case letters, got %q", code)
		}
	}
	return nil
}
