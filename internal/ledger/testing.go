package ledger

import "github.com/wallet-ledger/wallet_ledger/internal/money"

// SeedBalance is a test helper that sets a wallet balance directly when
// using the in-memory store, bypassing the unit of work.
func SeedBalance(s Store, walletID string, balance money.Money) {
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if w, exists := mem.state.wallets[walletID]; exists {
			w.Balance = balance
			mem.state.wallets[walletID] = w
		}
	}
}

// Transactions is a test helper that lists all recorded transactions when
// using the in-memory store.
func Transactions(s Store) []Transaction {
	mem, ok := s.(*memoryStore)
	if !ok {
		return nil
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	out := make([]Transaction, 0, len(mem.state.transactions))
	for _, rec := range mem.state.transactions {
		out = append(out, rec)
	}
	return out
}
