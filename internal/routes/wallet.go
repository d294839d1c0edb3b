package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wallet-ledger/wallet_ledger/internal/wallet"
)

// RegisterWalletRoutes wires wallet provisioning and read endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Post("/wallets", h.Create)
	r.Get("/wallets/:walletId", h.Get)
	r.Get("/wallets/:walletId/entries", h.Entries)
}
