package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wallet-ledger/wallet_ledger/internal/engine"
)

// RegisterTransactionRoutes wires the deposit and withdrawal endpoints.
func RegisterTransactionRoutes(r fiber.Router, h *engine.Handler) {
	r.Post("/deposit", h.Deposit)
	r.Post("/withdraw", h.Withdraw)
}
