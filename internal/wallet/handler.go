package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/wallet-ledger/wallet_ledger/internal/ledger"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	OwnerID  string `json:"owner_id"`
	Currency string `json:"currency"`
}

type walletResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Currency  string    `json:"currency"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

type entryResponse struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	Amount        string    `json:"amount"`
	CreatedAt     time.Time `json:"created_at"`
}

// Create provisions a wallet for the given owner.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	w, err := h.service.Create(c.UserContext(), CreateInput{OwnerID: req.OwnerID, Currency: req.Currency})
	if err != nil {
		if errors.Is(err, ledger.ErrWalletExists) {
			return fiber.NewError(http.StatusConflict, err.Error())
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toWalletResponse(w))
}

// Get returns wallet metadata and the current balance.
func (h *Handler) Get(c *fiber.Ctx) error {
	w, err := h.service.Get(c.UserContext(), c.Params("walletId"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toWalletResponse(w))
}

// Entries returns the wallet's ledger history, newest first.
func (h *Handler) Entries(c *fiber.Ctx) error {
	entries, err := h.service.History(c.UserContext(), c.Params("walletId"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			ID:            e.ID,
			TransactionID: e.TransactionID,
			Amount:        e.Amount.String(),
			CreatedAt:     e.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id": c.Params("walletId"),
		"entries":   out,
	})
}

func toWalletResponse(w ledger.Wallet) walletResponse {
	return walletResponse{
		ID:        w.ID,
		OwnerID:   w.OwnerID,
		Currency:  w.Currency,
		Balance:   w.Balance.String(),
		CreatedAt: w.CreatedAt,
	}
}
