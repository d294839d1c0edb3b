package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/wallet-ledger/wallet_ledger/internal/money"
)

var (
	// ErrWalletNotFound occurs when no wallet exists for the requested
	// identity.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrWalletExists indicates the owner already holds a wallet in the
	// requested currency.
	ErrWalletExists = errors.New("wallet already exists")

	// ErrInsufficientFunds occurs when a debit would take the balance
	// below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateReference indicates the caller-supplied idempotency
	// reference is already attached to a recorded transaction.
	ErrDuplicateReference = errors.New("duplicate transaction reference")

	// ErrInvalidTransactionState indicates an attempt to finalize a
	// transaction that is not pending.
	ErrInvalidTransactionState = errors.New("invalid transaction state")

	// ErrTransactionTimeout indicates the unit of work did not reach
	// commit within the storage deadline. Nothing was persisted.
	ErrTransactionTimeout = errors.New("transaction timed out")
)

// TransactionKind distinguishes the two supported operations.
type TransactionKind string

const (
	KindDeposit    TransactionKind = "deposit"
	KindWithdrawal TransactionKind = "withdrawal"
)

// TransactionStatus tracks a transaction through its lifecycle. The only
// legal transitions are pending -> completed and pending -> failed.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Wallet holds the current balance for one owner and currency. The balance
// is mutated only through a unit of work and always equals the sum of the
// wallet's ledger entries.
type Wallet struct {
	ID        string
	OwnerID   string
	Currency  string
	Balance   money.Money
	CreatedAt time.Time
}

// Transaction is one attempted deposit or withdrawal. Reference, when
// non-empty, is the globally unique idempotency key.
type Transaction struct {
	ID        string
	Kind      TransactionKind
	Status    TransactionStatus
	Reference string
	CreatedAt time.Time
}

// Entry is one immutable signed balance change: credit positive, debit
// negative. Entries are never updated or deleted; corrections append a
// compensating entry.
type Entry struct {
	ID            string
	WalletID      string
	TransactionID string
	Amount        money.Money
	CreatedAt     time.Time
}

// WalletStore mutates wallet balances. Both operations resolve the wallet
// by owner and currency and return the wallet id together with the balance
// produced by the same atomic mutation.
type WalletStore interface {
	// Credit unconditionally increases the balance.
	Credit(ctx context.Context, ownerID, currency string, amount money.Money) (walletID string, balance money.Money, err error)
	// Debit decreases the balance only if the current balance covers the
	// amount. The predicate check and the write are one indivisible
	// storage operation.
	Debit(ctx context.Context, ownerID, currency string, amount money.Money) (walletID string, balance money.Money, err error)
}

// TransactionLog records every attempted operation.
type TransactionLog interface {
	// Begin inserts a pending transaction. A reference already held by a
	// recorded transaction fails with ErrDuplicateReference.
	Begin(ctx context.Context, kind TransactionKind, reference string) (Transaction, error)
	// Finalize moves a pending transaction to completed or failed.
	Finalize(ctx context.Context, txID string, status TransactionStatus) error
}

// LedgerRecorder appends immutable entries.
type LedgerRecorder interface {
	Append(ctx context.Context, walletID, txID string, amount money.Money) error
}

// IdempotencyGuard rejects replays of an already-recorded reference.
type IdempotencyGuard interface {
	Reserve(ctx context.Context, reference string) error
}

// UnitOfWork groups the four write contracts behind one atomic boundary:
// everything done through it commits or aborts together.
type UnitOfWork interface {
	WalletStore
	TransactionLog
	LedgerRecorder
	IdempotencyGuard
}

// Store is the persistence contract implemented by Postgres and the
// in-memory backend used in tests.
type Store interface {
	// Atomically runs fn inside one unit of work. If fn returns an error
	// or the context deadline passes, every write made through the unit
	// of work is discarded.
	Atomically(ctx context.Context, fn func(UnitOfWork) error) error

	CreateWallet(ctx context.Context, w Wallet) error
	Wallet(ctx context.Context, walletID string) (Wallet, error)
	WalletByOwner(ctx context.Context, ownerID, currency string) (Wallet, error)
	// Entries returns the wallet's ledger history, newest first.
	Entries(ctx context.Context, walletID string) ([]Entry, error)
}
