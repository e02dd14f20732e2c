package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/quizduel/backend/internal/models"
)

// PostgresStore keeps wallets in the wallets / wallet_transactions tables.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Atomic() bool { return true }

func (s *PostgresStore) InTx(ctx context.Context, fn func(Tx) error) error {
	if s.db == nil {
		return fmt.Errorf("db is nil")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) Balance(ctx context.Context, ownerID string) (int64, error) {
	var balance int64
	err := s.db.GetContext(ctx, &balance, `SELECT balance FROM wallets WHERE owner_id=$1`, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// EnsureWallet creates a wallet for ownerID if missing and, when deposit > 0,
// credits it. Used by the seeder.
func (s *PostgresStore) EnsureWallet(ctx context.Context, ownerID string, deposit int64) error {
	if deposit <= 0 {
		_, err := s.db.ExecContext(ctx, `INSERT INTO wallets (owner_id, balance) VALUES ($1, 0) ON CONFLICT (owner_id) DO NOTHING`, ownerID)
		return err
	}
	return s.InTx(ctx, func(tx Tx) error {
		return tx.Credit(Entry{OwnerID: ownerID, Amount: deposit, Kind: KindDeposit, Reference: "seed", Description: "Initial deposit"})
	})
}

type pgTx struct {
	ctx context.Context
	tx  *sqlx.Tx
}

// lock selects the wallet row FOR UPDATE, creating it first when create is set.
func (t *pgTx) lock(ownerID string, create bool) (*models.Wallet, error) {
	if create {
		if _, err := t.tx.ExecContext(t.ctx, `INSERT INTO wallets (owner_id, balance) VALUES ($1, 0) ON CONFLICT (owner_id) DO NOTHING`, ownerID); err != nil {
			return nil, err
		}
	}

	var w models.Wallet
	err := t.tx.GetContext(t.ctx, &w, `SELECT id, owner_id, balance, created_at, updated_at FROM wallets WHERE owner_id=$1 FOR UPDATE`, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, ownerID)
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (t *pgTx) Balance(ownerID string) (int64, error) {
	w, err := t.lock(ownerID, false)
	if errors.Is(err, ErrWalletNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

func (t *pgTx) Debit(e Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	w, err := t.lock(e.OwnerID, false)
	if errors.Is(err, ErrWalletNotFound) {
		return fmt.Errorf("%w: %s has no wallet", ErrInsufficientFunds, e.OwnerID)
	}
	if err != nil {
		return err
	}
	if w.Balance < e.Amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, e.OwnerID, w.Balance, e.Amount)
	}
	return t.apply(w, -e.Amount, e)
}

func (t *pgTx) Credit(e Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	w, err := t.lock(e.OwnerID, true)
	if err != nil {
		return err
	}
	return t.apply(w, e.Amount, e)
}

func (t *pgTx) apply(w *models.Wallet, delta int64, e Entry) error {
	newBalance := w.Balance + delta

	if _, err := t.tx.ExecContext(t.ctx, `UPDATE wallets SET balance=$1, updated_at=NOW() WHERE id=$2`, newBalance, w.ID); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(t.ctx, `INSERT INTO wallet_transactions (wallet_id, owner_id, amount, kind, reference, description, balance_after, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())`,
		w.ID, w.OwnerID, delta, e.Kind, e.Reference, e.Description, newBalance); err != nil {
		return err
	}

	log.Printf("[ACCT] %s owner=%s delta=%d balance_after=%d ref=%s", e.Kind, w.OwnerID, delta, newBalance, e.Reference)
	return nil
}
