package notification

import (
	"context"
	"log/slog"
)

const (
	// KindDepositCompleted indicates a deposit settled into a wallet.
	KindDepositCompleted = "deposit_completed"
	// KindWithdrawalCompleted indicates a withdrawal left a wallet.
	KindWithdrawalCompleted = "withdrawal_completed"
)

// Message describes a notification payload for a settled transaction.
type Message struct {
	Kind          string
	WalletID      string
	TransactionID string
	Amount        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", message.Kind,
		"wallet_id", message.WalletID,
		"transaction_id", message.TransactionID,
		"amount", message.Amount,
	)
	return nil
}
