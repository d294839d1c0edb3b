package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wallet-ledger/wallet_ledger/internal/money"
)

// memoryStore is a concurrency-safe in-memory Store used in unit tests.
// Atomically mutates a copy of the state and swaps it in on success, so an
// aborted unit of work leaves nothing behind, mirroring the Postgres
// backend's rollback semantics.
type memoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

type memoryState struct {
	wallets      map[string]Wallet      // by wallet id
	ownerIndex   map[string]string      // owner|currency -> wallet id
	transactions map[string]Transaction // by transaction id
	references   map[string]string      // reference -> transaction id
	entries      []Entry
}

// NewMemory creates an in-memory store implementing the same contract as
// the Postgres backend.
func NewMemory() Store {
	return &memoryStore{state: newMemoryState()}
}

func newMemoryState() *memoryState {
	return &memoryState{
		wallets:      make(map[string]Wallet),
		ownerIndex:   make(map[string]string),
		transactions: make(map[string]Transaction),
		references:   make(map[string]string),
	}
}

func (st *memoryState) clone() *memoryState {
	next := newMemoryState()
	for k, v := range st.wallets {
		next.wallets[k] = v
	}
	for k, v := range st.ownerIndex {
		next.ownerIndex[k] = v
	}
	for k, v := range st.transactions {
		next.transactions[k] = v
	}
	for k, v := range st.references {
		next.references[k] = v
	}
	next.entries = append(next.entries, st.entries...)
	return next
}

func ownerKey(ownerID, currency string) string {
	return ownerID + "|" + currency
}

// Atomically serializes units of work behind the store mutex, which gives
// the same per-wallet ordering guarantee the conditional UPDATE provides
// in Postgres.
func (s *memoryStore) Atomically(ctx context.Context, fn func(UnitOfWork) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return translateTimeout(ctx, err)
	}

	staged := s.state.clone()
	if err := fn(&memoryUnit{state: staged}); err != nil {
		return translateTimeout(ctx, err)
	}
	if err := ctx.Err(); err != nil {
		return translateTimeout(ctx, err)
	}

	s.state = staged
	return nil
}

func (s *memoryStore) CreateWallet(_ context.Context, w Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ownerKey(w.OwnerID, w.Currency)
	if _, exists := s.state.ownerIndex[key]; exists {
		return ErrWalletExists
	}
	s.state.wallets[w.ID] = w
	s.state.ownerIndex[key] = w.ID
	return nil
}

func (s *memoryStore) Wallet(_ context.Context, walletID string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.state.wallets[walletID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

func (s *memoryStore) WalletByOwner(_ context.Context, ownerID, currency string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.state.ownerIndex[ownerKey(ownerID, currency)]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return s.state.wallets[id], nil
}

func (s *memoryStore) Entries(_ context.Context, walletID string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []Entry
	for i := len(s.state.entries) - 1; i >= 0; i-- {
		if s.state.entries[i].WalletID == walletID {
			entries = append(entries, s.state.entries[i])
		}
	}
	return entries, nil
}

// memoryUnit applies writes to the staged state only.
type memoryUnit struct {
	state *memoryState
}

func (u *memoryUnit) Credit(_ context.Context, ownerID, currency string, amount money.Money) (string, money.Money, error) {
	id, ok := u.state.ownerIndex[ownerKey(ownerID, currency)]
	if !ok {
		return "", money.Zero, ErrWalletNotFound
	}
	w := u.state.wallets[id]
	w.Balance = w.Balance.Add(amount)
	u.state.wallets[id] = w
	return w.ID, w.Balance, nil
}

func (u *memoryUnit) Debit(_ context.Context, ownerID, currency string, amount money.Money) (string, money.Money, error) {
	id, ok := u.state.ownerIndex[ownerKey(ownerID, currency)]
	if !ok {
		return "", money.Zero, ErrWalletNotFound
	}
	w := u.state.wallets[id]
	if w.Balance.Cmp(amount) < 0 {
		return "", money.Zero, ErrInsufficientFunds
	}
	w.Balance = w.Balance.Sub(amount)
	u.state.wallets[id] = w
	return w.ID, w.Balance, nil
}

func (u *memoryUnit) Begin(_ context.Context, kind TransactionKind, reference string) (Transaction, error) {
	if reference != "" {
		if _, used := u.state.references[reference]; used {
			return Transaction{}, ErrDuplicateReference
		}
	}
	rec := Transaction{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusPending,
		Reference: reference,
		CreatedAt: time.Now().UTC(),
	}
	u.state.transactions[rec.ID] = rec
	if reference != "" {
		u.state.references[reference] = rec.ID
	}
	return rec, nil
}

func (u *memoryUnit) Finalize(_ context.Context, txID string, status TransactionStatus) error {
	if status != StatusCompleted && status != StatusFailed {
		return ErrInvalidTransactionState
	}
	rec, ok := u.state.transactions[txID]
	if !ok || rec.Status != StatusPending {
		return ErrInvalidTransactionState
	}
	rec.Status = status
	u.state.transactions[txID] = rec
	return nil
}

func (u *memoryUnit) Append(_ context.Context, walletID, txID string, amount money.Money) error {
	if _, ok := u.state.wallets[walletID]; !ok {
		return ErrWalletNotFound
	}
	u.state.entries = append(u.state.entries, Entry{
		ID:            uuid.NewString(),
		WalletID:      walletID,
		TransactionID: txID,
		Amount:        amount,
		CreatedAt:     time.Now().UTC(),
	})
	return nil
}

func (u *memoryUnit) Reserve(_ context.Context, reference string) error {
	if reference == "" {
		return nil
	}
	if _, used := u.state.references[reference]; used {
		return ErrDuplicateReference
	}
	return nil
}
