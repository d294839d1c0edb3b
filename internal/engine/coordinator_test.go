package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wallet-ledger/wallet_ledger/internal/ledger"
	"github.com/wallet-ledger/wallet_ledger/internal/logging"
	"github.com/wallet-ledger/wallet_ledger/internal/money"
)

func newTestCoordinator(t *testing.T) (*Coordinator, ledger.Store, ledger.Wallet) {
	t.Helper()
	store := ledger.NewMemory()
	w := ledger.Wallet{
		ID:        uuid.NewString(),
		OwnerID:   uuid.NewString(),
		Currency:  "USD",
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateWallet(context.Background(), w); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	coordinator := NewCoordinator(Options{Store: store, Logger: logging.Discard()})
	return coordinator, store, w
}

func seed(s ledger.Store, w ledger.Wallet, units int64) {
	ledger.SeedBalance(s, w.ID, money.FromMinorUnits(units))
}

func countByStatus(s ledger.Store, status ledger.TransactionStatus) int {
	n := 0
	for _, rec := range ledger.Transactions(s) {
		if rec.Status == status {
			n++
		}
	}
	return n
}

func TestDepositCreditsWalletAndAppendsEntry(t *testing.T) {
	c, store, w := newTestCoordinator(t)
	ctx := context.Background()

	res, err := c.Deposit(ctx, w.OwnerID, w.Currency, money.FromMinorUnits(5_000), "dep-1")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.WalletID != w.ID {
		t.Fatalf("expected wallet %s, got %s", w.ID, res.WalletID)
	}
	if res.Balance.MinorUnits() != 5_000 {
		t.Fatalf("expected balance 5000, got %d", res.Balance.MinorUnits())
	}

	entries, err := store.Entries(ctx, w.ID)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Amount.MinorUnits() != 5_000 {
		t.Fatalf("expected entry amount 5000, got %d", entries[0].Amount.MinorUnits())
	}
	if entries[0].TransactionID != res.TransactionID {
		t.Fatal("entry not tied to its transaction")
	}
	if countByStatus(store, ledger.StatusPending) != 0 {
		t.Fatal("pending transaction visible after commit")
	}
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	c, store, w := newTestCoordinator(t)
	ctx := context.Background()

	for _, units := range []int64{0, -100} {
		if _, err := c.Deposit(ctx, w.OwnerID, w.Currency, money.FromMinorUnits(units), ""); !errors.Is(err, money.ErrInvalidAmount) {
			t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", units, err)
		}
	}

	// Rejected before any record is created.
	if got := len(ledger.Transactions(store)); got != 0 {
		t.Fatalf("expected no transaction records, got %d", got)
	}
}

func TestDuplicateReferenceLeavesBalanceUnchanged(t *testing.T) {
	c, store, w := newTestCoordinator(t)
	ctx := context.Background()

	if _, err := c.Deposit(ctx, w.OwnerID, w.Currency, money.FromMinorUnits(5_000), "idem-50"); err != nil {
		t.Fatalf("first deposit: %v", err)
	}

	_, err := c.Deposit(ctx, w.OwnerID, w.Currency, money.FromMinorUnits(5_000), "idem-50")
	if !errors.Is(err, ledger.ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference, got %v", err)
	}

	got, _ := store.Wallet(ctx, w.ID)
	if got.Balance.MinorUnits() != 5_000 {
		t.Fatalf("replay mutated balance: %d", got.Balance.MinorUnits())
	}
	entries, _ := store.Entries(ctx, w.ID)
	if len(entries) != 1 {
		t.Fatalf("replay appended entries: %d", len(entries))
	}
}

func TestWithdrawInsufficientFundsLeavesStateUntouched(t *testing.T) {
	c, store, w := newTestCoordinator(t)
	ctx := context.Background()
	seed(store, w, 1_000) // $10

	_, err := c.Withdraw(ctx, w.OwnerID, w.Currency, money.FromMinorUnits(5_000), "over")
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	got, _ := store.Wallet(ctx, w.ID)
	if got.Balance.MinorUnits() != 1_000 {
		t.Fatalf("failed withdrawal mutated balance: %d", got.Balance.MinorUnits())
	}
	entries, _ := store.Entries(ctx, w.ID)
	if len(entries) != 0 {
		t.Fatalf("failed withdrawal appended entries: %d", len(entries))
	}

	// The attempt is still on the log, as failed and without the reference.
	if countByStatus(store, ledger.StatusFailed) != 1 {
		t.Fatal("expected one failed attempt on the log")
	}
	if _, err := c.Deposit(ctx, w.OwnerID, w.Currency, money.FromMinorUnits(100), "over"); err != nil {
		t.Fatalf("reference should remain free after failed attempt: %v", err)
	}
}

func TestWithdrawMissingWallet(t *testing.T) {
	c, _, w := newTestCoordinator(t)
	ctx := context.Background()

	_, err := c.Withdraw(ctx, uuid.NewString(), w.Currency, money.FromMinorUnits(100), "")
	if !errors.Is(err, ledger.ErrWalletNotFound) {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}
}

func TestDepositThenEqualWithdrawalRoundTrips(t *testing.T) {
	c, store, w := newTestCoordinator(t)
	ctx := context.Background()
	seed(store, w, 2_500)

	if _, err := c.Deposit(ctx, w.OwnerID, w.Currency, money.FromMinorUnits(7_500), ""); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	res, err := c.Withdraw(ctx, w.OwnerID, w.Currency, money.FromMinorUnits(7_500), "")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if res.Balance.MinorUnits() != 2_500 {
		t.Fatalf("expected balance back at 2500, got %d", res.Balance.MinorUnits())
	}

	entries, _ := store.Entries(ctx, w.ID)
	if len(entries) != 2 {
		t.Fatalf("expected exactly 2 entries, got %d", len(entries))
	}
	sum := money.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}
	if !sum.IsZero() {
		t.Fatalf("entries do not sum to zero: %s", sum)
	}
}

func TestConcurrentWithdrawalsExactlyOneWins(t *testing.T) {
	c, store, w := newTestCoordinator(t)
	ctx := context.Background()
	seed(store, w, 10_000) // $100

	const amount = 6_000 // $60

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = c.Withdraw(ctx, w.OwnerID, w.Currency, money.FromMinorUnits(amount), uuid.NewString())
		}(i)
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ledger.ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || insufficient != 1 {
		t.Fatalf("expected exactly one winner, got %d successes and %d rejections", succeeded, insufficient)
	}

	got, _ := store.Wallet(ctx, w.ID)
	if got.Balance.MinorUnits() != 4_000 {
		t.Fatalf("expected balance 4000, got %d", got.Balance.MinorUnits())
	}
}

func TestConcurrentMixedOperationsBalanceInvariant(t *testing.T) {
	c, store, w := newTestCoordinator(t)
	ctx := context.Background()
	seed(store, w, 50_000)

	const workers = 30

	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := int64(0)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := money.FromMinorUnits(int64(1_000 + i*500))
			if i%2 == 0 {
				if _, err := c.Deposit(ctx, w.OwnerID, w.Currency, amount, uuid.NewString()); err == nil {
					mu.Lock()
					applied += amount.MinorUnits()
					mu.Unlock()
				}
			} else {
				if _, err := c.Withdraw(ctx, w.OwnerID, w.Currency, amount, uuid.NewString()); err == nil {
					mu.Lock()
					applied -= amount.MinorUnits()
					mu.Unlock()
				}
			}
		}(i)
	}
	wg.Wait()

	got, _ := store.Wallet(ctx, w.ID)
	if got.Balance.IsNegative() {
		t.Fatalf("balance went negative: %s", got.Balance)
	}
	if got.Balance.MinorUnits() != 50_000+applied {
		t.Fatalf("expected balance %d, got %d", 50_000+applied, got.Balance.MinorUnits())
	}

	// The ledger remains the source of truth: entries sum to the balance.
	entries, _ := store.Entries(ctx, w.ID)
	sum := money.FromMinorUnits(50_000)
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}
	if sum.Cmp(got.Balance) != 0 {
		t.Fatalf("entry sum %s does not match balance %s", sum, got.Balance)
	}
}

func TestTimeoutSurfacesAsTransactionTimeout(t *testing.T) {
	store := ledger.NewMemory()
	w := ledger.Wallet{ID: uuid.NewString(), OwnerID: uuid.NewString(), Currency: "USD"}
	if err := store.CreateWallet(context.Background(), w); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	c := NewCoordinator(Options{Store: store, Logger: logging.Discard(), Timeout: time.Nanosecond})

	_, err := c.Deposit(context.Background(), w.OwnerID, w.Currency, money.FromMinorUnits(100), "")
	if !errors.Is(err, ledger.ErrTransactionTimeout) {
		t.Fatalf("expected ErrTransactionTimeout, got %v", err)
	}

	got, _ := store.Wallet(context.Background(), w.ID)
	if !got.Balance.IsZero() {
		t.Fatalf("timed-out deposit persisted a balance change: %s", got.Balance)
	}
}
