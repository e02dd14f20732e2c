package accounts

import (
	"context"
	"errors"
)

// Transaction kinds written to the wallet log.
const (
	KindDeposit      = "DEPOSIT"
	KindEntryFee     = "ENTRY_FEE"
	KindPrize        = "PRIZE"
	KindRefund       = "REFUND"
	KindCommission   = "COMMISSION"
	KindCompensation = "COMPENSATION"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// Entry describes one balance movement. Amount is always positive; the
// direction comes from whether it is passed to Debit or Credit.
type Entry struct {
	OwnerID     string
	Amount      int64
	Kind        string
	Reference   string
	Description string
}

// Tx is a unit of work against wallets. Every mutation writes a wallet
// transaction row alongside the balance change.
type Tx interface {
	Balance(ownerID string) (int64, error)
	Debit(e Entry) error
	Credit(e Entry) error
}

// Store groups wallet mutations. InTx commits only if fn returns nil.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
	Balance(ctx context.Context, ownerID string) (int64, error)
	// Atomic reports whether a failed InTx leaves no partial writes behind.
	Atomic() bool
}

func validate(e Entry) error {
	if e.OwnerID == "" {
		return ErrWalletNotFound
	}
	if e.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
