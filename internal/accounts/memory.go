package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/quizduel/backend/internal/models"
)

// MemoryStore is an in-process wallet store. InTx holds the store lock for
// the whole unit of work and applies staged balances only on success.
type MemoryStore struct {
	mu       sync.Mutex
	balances map[string]int64
	log      []models.WalletTransaction
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{balances: make(map[string]int64)}
}

func (s *MemoryStore) Atomic() bool { return true }

// Deposit seeds a balance outside of any match flow.
func (s *MemoryStore) Deposit(ownerID string, amount int64) {
	s.InTx(context.Background(), func(tx Tx) error {
		return tx.Credit(Entry{OwnerID: ownerID, Amount: amount, Kind: KindDeposit, Reference: "deposit"})
	})
}

func (s *MemoryStore) Balance(_ context.Context, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[ownerID], nil
}

// Transactions returns a copy of the log for ownerID, oldest first.
func (s *MemoryStore) Transactions(ownerID string) []models.WalletTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WalletTransaction
	for _, t := range s.log {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, staged: make(map[string]int64)}
	if err := fn(tx); err != nil {
		return err
	}

	for owner, bal := range tx.staged {
		s.balances[owner] = bal
	}
	for _, t := range tx.pending {
		s.nextID++
		t.ID = s.nextID
		s.log = append(s.log, t)
	}
	return nil
}

type memTx struct {
	store   *MemoryStore
	staged  map[string]int64
	pending []models.WalletTransaction
}

func (t *memTx) Balance(ownerID string) (int64, error) {
	if b, ok := t.staged[ownerID]; ok {
		return b, nil
	}
	return t.store.balances[ownerID], nil
}

func (t *memTx) Debit(e Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	bal, _ := t.Balance(e.OwnerID)
	if bal < e.Amount {
		return ErrInsufficientFunds
	}
	t.stage(e, -e.Amount, bal)
	return nil
}

func (t *memTx) Credit(e Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	bal, _ := t.Balance(e.OwnerID)
	t.stage(e, e.Amount, bal)
	return nil
}

func (t *memTx) stage(e Entry, delta, bal int64) {
	t.staged[e.OwnerID] = bal + delta
	t.pending = append(t.pending, models.WalletTransaction{
		OwnerID:      e.OwnerID,
		Amount:       delta,
		Kind:         e.Kind,
		Reference:    e.Reference,
		Description:  e.Description,
		BalanceAfter: bal + delta,
		CreatedAt:    time.Now(),
	})
}
