package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/wallet-ledger/wallet_ledger/internal/ledger"
	"github.com/wallet-ledger/wallet_ledger/internal/metrics"
	"github.com/wallet-ledger/wallet_ledger/internal/money"
	"github.com/wallet-ledger/wallet_ledger/internal/notification"
)

// defaultTimeout bounds a unit of work when no explicit timeout is set.
const defaultTimeout = 5 * time.Second

// Coordinator runs each deposit or withdrawal as one atomic unit of work:
// reserve the reference, record a pending transaction, mutate the balance,
// append the signed ledger entry, finalize, commit. Any failure aborts the
// whole unit of work and nothing partial becomes visible.
type Coordinator struct {
	store    ledger.Store
	notifier notification.Notifier
	metrics  *metrics.Engine
	logger   *slog.Logger
	timeout  time.Duration
}

// Options collects Coordinator dependencies. Store is required; everything
// else has a working default.
type Options struct {
	Store    ledger.Store
	Notifier notification.Notifier
	Metrics  *metrics.Engine
	Logger   *slog.Logger
	Timeout  time.Duration
}

// NewCoordinator builds a transaction coordinator.
func NewCoordinator(opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Coordinator{
		store:    opts.Store,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		timeout:  opts.Timeout,
	}
}

// Result is the outcome of a committed operation.
type Result struct {
	TransactionID string
	WalletID      string
	Balance       money.Money
}

// Deposit credits the owner's wallet. The reference, when non-empty, makes
// the operation idempotent: a replay fails with ErrDuplicateReference and
// leaves the balance unchanged.
func (c *Coordinator) Deposit(ctx context.Context, ownerID, currency string, amount money.Money, reference string) (Result, error) {
	return c.execute(ctx, ledger.KindDeposit, ownerID, currency, amount, reference)
}

// Withdraw debits the owner's wallet if the balance covers the amount.
func (c *Coordinator) Withdraw(ctx context.Context, ownerID, currency string, amount money.Money, reference string) (Result, error) {
	return c.execute(ctx, ledger.KindWithdrawal, ownerID, currency, amount, reference)
}

func (c *Coordinator) execute(ctx context.Context, kind ledger.TransactionKind, ownerID, currency string, amount money.Money, reference string) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, money.ErrInvalidAmount
	}

	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	var res Result
	err := c.store.Atomically(opCtx, func(uow ledger.UnitOfWork) error {
		if reference != "" {
			if err := uow.Reserve(opCtx, reference); err != nil {
				return err
			}
		}

		rec, err := uow.Begin(opCtx, kind, reference)
		if err != nil {
			return err
		}

		var (
			walletID string
			balance  money.Money
		)
		signed := amount
		switch kind {
		case ledger.KindDeposit:
			walletID, balance, err = uow.Credit(opCtx, ownerID, currency, amount)
		case ledger.KindWithdrawal:
			walletID, balance, err = uow.Debit(opCtx, ownerID, currency, amount)
			signed = amount.Neg()
		}
		if err != nil {
			return err
		}

		if err := uow.Append(opCtx, walletID, rec.ID, signed); err != nil {
			return err
		}
		if err := uow.Finalize(opCtx, rec.ID, ledger.StatusCompleted); err != nil {
			return err
		}

		res = Result{TransactionID: rec.ID, WalletID: walletID, Balance: balance}
		return nil
	})
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = ledger.ErrTransactionTimeout
		}
		c.metrics.ObserveTransaction(string(kind), "failed", elapsed)
		c.logger.Warn("transaction aborted",
			"kind", kind,
			"owner_id", ownerID,
			"currency", currency,
			"error", err,
		)
		c.recordFailedAttempt(ctx, kind)
		return Result{}, err
	}

	c.metrics.ObserveTransaction(string(kind), "completed", elapsed)
	c.logger.Info("transaction completed",
		"kind", kind,
		"transaction_id", res.TransactionID,
		"wallet_id", res.WalletID,
		"balance", res.Balance.String(),
	)
	c.notify(ctx, kind, res, amount)
	return res, nil
}

// recordFailedAttempt keeps the attempt log complete after a rollback. The
// failed row is written in its own unit of work and deliberately carries no
// reference, so a retry with the same reference is not blocked. Best
// effort: a failure here is logged, never surfaced.
func (c *Coordinator) recordFailedAttempt(ctx context.Context, kind ledger.TransactionKind) {
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	err := c.store.Atomically(recCtx, func(uow ledger.UnitOfWork) error {
		rec, err := uow.Begin(recCtx, kind, "")
		if err != nil {
			return err
		}
		return uow.Finalize(recCtx, rec.ID, ledger.StatusFailed)
	})
	if err != nil {
		c.logger.Warn("record failed attempt", "kind", kind, "error", err)
	}
}

func (c *Coordinator) notify(ctx context.Context, kind ledger.TransactionKind, res Result, amount money.Money) {
	if c.notifier == nil {
		return
	}
	msgKind := notification.KindDepositCompleted
	if kind == ledger.KindWithdrawal {
		msgKind = notification.KindWithdrawalCompleted
	}
	if err := c.notifier.Send(ctx, notification.Message{
		Kind:          msgKind,
		WalletID:      res.WalletID,
		TransactionID: res.TransactionID,
		Amount:        amount.String(),
	}); err != nil {
		c.logger.Warn("send notification", "kind", msgKind, "error", err)
	}
}
