package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wallet-ledger/wallet_ledger/internal/money"
)

const uniqueViolation = "23505"

// PostgresStore persists wallets, transactions and ledger entries in
// PostgreSQL. Amounts are stored as BIGINT minor units.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Atomically runs fn inside one database transaction. A context deadline
// hit anywhere before commit surfaces as ErrTransactionTimeout with nothing
// persisted.
func (s *PostgresStore) Atomically(ctx context.Context, fn func(UnitOfWork) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return translateTimeout(ctx, err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(&postgresUnit{tx: tx}); err != nil {
		return translateTimeout(ctx, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return translateTimeout(ctx, err)
	}
	return nil
}

// CreateWallet inserts a wallet row. One wallet per owner and currency.
func (s *PostgresStore) CreateWallet(ctx context.Context, w Wallet) error {
	walletID, err := uuid.Parse(w.ID)
	if err != nil {
		return fmt.Errorf("parse wallet id: %w", err)
	}
	ownerID, err := uuid.Parse(w.OwnerID)
	if err != nil {
		return fmt.Errorf("parse owner id: %w", err)
	}
	_, err = s.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, currency, balance, created_at)
        VALUES ($1, $2, $3, $4, $5)`, walletID, ownerID, w.Currency, w.Balance.MinorUnits(), w.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return ErrWalletExists
	}
	return err
}

// Wallet fetches a wallet by identifier.
func (s *PostgresStore) Wallet(ctx context.Context, walletID string) (Wallet, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT id, owner_id, currency, balance, created_at
        FROM wallets WHERE id = $1`, id)
	return scanWallet(row)
}

// WalletByOwner fetches the owner's wallet in the given currency.
func (s *PostgresStore) WalletByOwner(ctx context.Context, ownerID, currency string) (Wallet, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT id, owner_id, currency, balance, created_at
        FROM wallets WHERE owner_id = $1 AND currency = $2`, owner, currency)
	return scanWallet(row)
}

// Entries returns the wallet's ledger history, newest first.
func (s *PostgresStore) Entries(ctx context.Context, walletID string) ([]Entry, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return nil, ErrWalletNotFound
	}
	rows, err := s.db.Query(ctx, `SELECT id, wallet_id, transaction_id, amount, created_at
        FROM ledger_entries WHERE wallet_id = $1 ORDER BY created_at DESC, id DESC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entryID   uuid.UUID
			wID       uuid.UUID
			txID      uuid.UUID
			units     int64
			createdAt time.Time
			e         Entry
		)
		if err := rows.Scan(&entryID, &wID, &txID, &units, &createdAt); err != nil {
			return nil, err
		}
		e.ID = entryID.String()
		e.WalletID = wID.String()
		e.TransactionID = txID.String()
		e.Amount = money.FromMinorUnits(units)
		e.CreatedAt = createdAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// postgresUnit implements UnitOfWork on top of one pgx transaction.
type postgresUnit struct {
	tx pgx.Tx
}

// Credit unconditionally increases the balance and returns the row the
// same UPDATE produced.
func (u *postgresUnit) Credit(ctx context.Context, ownerID, currency string, amount money.Money) (string, money.Money, error) {
	return u.applyBalanceUpdate(ctx, ownerID, currency, `UPDATE wallets
        SET balance = balance + $1
        WHERE owner_id = $2 AND currency = $3
        RETURNING id, balance`, amount)
}

// Debit decreases the balance through a single conditional UPDATE so that
// the sufficiency check and the write cannot interleave with a concurrent
// debit. A missed predicate is told apart from a missing wallet by a
// follow-up existence check inside the same transaction.
func (u *postgresUnit) Debit(ctx context.Context, ownerID, currency string, amount money.Money) (string, money.Money, error) {
	walletID, balance, err := u.applyBalanceUpdate(ctx, ownerID, currency, `UPDATE wallets
        SET balance = balance - $1
        WHERE owner_id = $2 AND currency = $3 AND balance >= $1
        RETURNING id, balance`, amount)
	if !errors.Is(err, ErrWalletNotFound) {
		return walletID, balance, err
	}

	owner, parseErr := uuid.Parse(ownerID)
	if parseErr != nil {
		return "", money.Zero, ErrWalletNotFound
	}
	var exists bool
	if err := u.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM wallets WHERE owner_id = $1 AND currency = $2)`,
		owner, currency).Scan(&exists); err != nil {
		return "", money.Zero, err
	}
	if !exists {
		return "", money.Zero, ErrWalletNotFound
	}
	return "", money.Zero, ErrInsufficientFunds
}

func (u *postgresUnit) applyBalanceUpdate(ctx context.Context, ownerID, currency, query string, amount money.Money) (string, money.Money, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return "", money.Zero, ErrWalletNotFound
	}
	var (
		walletID uuid.UUID
		units    int64
	)
	if err := u.tx.QueryRow(ctx, query, amount.MinorUnits(), owner, currency).Scan(&walletID, &units); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", money.Zero, ErrWalletNotFound
		}
		return "", money.Zero, err
	}
	return walletID.String(), money.FromMinorUnits(units), nil
}

// Begin inserts a pending transaction. The unique index on reference turns
// a concurrent replay into ErrDuplicateReference.
func (u *postgresUnit) Begin(ctx context.Context, kind TransactionKind, reference string) (Transaction, error) {
	rec := Transaction{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusPending,
		Reference: reference,
		CreatedAt: time.Now().UTC(),
	}
	_, err := u.tx.Exec(ctx, `INSERT INTO transactions (id, kind, status, reference, created_at)
        VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
		uuid.MustParse(rec.ID), string(rec.Kind), string(rec.Status), rec.Reference, rec.CreatedAt)
	if isUniqueViolation(err) {
		return Transaction{}, ErrDuplicateReference
	}
	if err != nil {
		return Transaction{}, err
	}
	return rec, nil
}

// Finalize transitions pending -> completed or pending -> failed. Any other
// transition is a programming error.
func (u *postgresUnit) Finalize(ctx context.Context, txID string, status TransactionStatus) error {
	if status != StatusCompleted && status != StatusFailed {
		return ErrInvalidTransactionState
	}
	id, err := uuid.Parse(txID)
	if err != nil {
		return ErrInvalidTransactionState
	}
	tag, err := u.tx.Exec(ctx, `UPDATE transactions SET status = $2
        WHERE id = $1 AND status = $3`, id, string(status), string(StatusPending))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransactionState
	}
	return nil
}

// Append inserts one immutable signed entry.
func (u *postgresUnit) Append(ctx context.Context, walletID, txID string, amount money.Money) error {
	wID, err := uuid.Parse(walletID)
	if err != nil {
		return ErrWalletNotFound
	}
	tID, err := uuid.Parse(txID)
	if err != nil {
		return fmt.Errorf("parse transaction id: %w", err)
	}
	_, err = u.tx.Exec(ctx, `INSERT INTO ledger_entries (id, wallet_id, transaction_id, amount, created_at)
        VALUES ($1, $2, $3, $4, $5)`, uuid.New(), wID, tID, amount.MinorUnits(), time.Now().UTC())
	return err
}

// Reserve pre-checks the reference before Begin races on the unique index.
func (u *postgresUnit) Reserve(ctx context.Context, reference string) error {
	if reference == "" {
		return nil
	}
	var used bool
	if err := u.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM transactions WHERE reference = $1)`,
		reference).Scan(&used); err != nil {
		return err
	}
	if used {
		return ErrDuplicateReference
	}
	return nil
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		id        uuid.UUID
		ownerID   uuid.UUID
		currency  string
		units     int64
		createdAt time.Time
	)
	if err := row.Scan(&id, &ownerID, &currency, &units, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	return Wallet{
		ID:        id.String(),
		OwnerID:   ownerID.String(),
		Currency:  currency,
		Balance:   money.FromMinorUnits(units),
		CreatedAt: createdAt.UTC(),
	}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func translateTimeout(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTransactionTimeout
	}
	return err
}
