package engine

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/wallet-ledger/wallet_ledger/internal/ledger"
	"github.com/wallet-ledger/wallet_ledger/internal/money"
)

// Handler exposes deposit and withdrawal HTTP endpoints. The owner id it
// receives is assumed to be resolved by the caller; the engine never
// authenticates.
type Handler struct {
	coordinator     *Coordinator
	defaultCurrency string
}

// NewHandler builds a transaction HTTP handler.
func NewHandler(coordinator *Coordinator, defaultCurrency string) *Handler {
	return &Handler{coordinator: coordinator, defaultCurrency: defaultCurrency}
}

type transactionRequest struct {
	OwnerID   string `json:"owner_id"`
	Currency  string `json:"currency"`
	Amount    string `json:"amount"`
	Reference string `json:"reference"`
}

type transactionResponse struct {
	TransactionID string `json:"transaction_id"`
	WalletID      string `json:"wallet_id"`
	Balance       string `json:"balance"`
}

// Deposit credits the owner's wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	return h.handle(c, h.coordinator.Deposit)
}

// Withdraw debits the owner's wallet.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	return h.handle(c, h.coordinator.Withdraw)
}

func (h *Handler) handle(c *fiber.Ctx, op func(ctx context.Context, ownerID, currency string, amount money.Money, reference string) (Result, error)) error {
	var req transactionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.OwnerID == "" {
		return fiber.NewError(http.StatusBadRequest, "owner_id is required")
	}
	currency := req.Currency
	if currency == "" {
		currency = h.defaultCurrency
	}

	amount, err := money.Parse(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := op(c.UserContext(), req.OwnerID, currency, amount, req.Reference)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}

	return c.Status(http.StatusOK).JSON(transactionResponse{
		TransactionID: res.TransactionID,
		WalletID:      res.WalletID,
		Balance:       res.Balance.String(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, money.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrWalletNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrDuplicateReference):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrTransactionTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
