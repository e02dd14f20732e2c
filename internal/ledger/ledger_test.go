package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/quizduel/backend/internal/accounts"
)

func balance(t *testing.T, s accounts.Store, owner string) int64 {
	t.Helper()
	b, err := s.Balance(context.Background(), owner)
	if err != nil {
		t.Fatalf("balance %s: %v", owner, err)
	}
	return b
}

func TestReserveEntryFees(t *testing.T) {
	store := accounts.NewMemoryStore()
	store.Deposit("a", 100)
	store.Deposit("b", 100)
	l := New(store, Config{WinnerSharePercent: 80})

	if err := l.ReserveEntryFees(context.Background(), "m1", "a", "b", 10); err != nil {
		t.Fatalf("ReserveEntryFees: %v", err)
	}
	if got := balance(t, store, "a"); got != 90 {
		t.Errorf("a = %d, want 90", got)
	}
	if got := balance(t, store, "b"); got != 90 {
		t.Errorf("b = %d, want 90", got)
	}
}

func TestReserveEntryFeesRollsBack(t *testing.T) {
	store := accounts.NewMemoryStore()
	store.Deposit("a", 100)
	store.Deposit("b", 5)
	l := New(store, Config{})

	err := l.ReserveEntryFees(context.Background(), "m1", "a", "b", 10)
	pid, ok := IsInsufficientFunds(err)
	if !ok || pid != "b" {
		t.Fatalf("expected insufficient funds for b, got %v", err)
	}
	if got := balance(t, store, "a"); got != 100 {
		t.Errorf("a = %d, want 100 (no partial debit)", got)
	}
}

func TestReserveZeroFeeIsNoop(t *testing.T) {
	store := accounts.NewMemoryStore()
	l := New(store, Config{})
	if err := l.ReserveEntryFees(context.Background(), "m1", "a", "b", 0); err != nil {
		t.Fatalf("free match should not touch wallets: %v", err)
	}
	if err := l.ReserveEntryFees(context.Background(), "m1", "a", "b", -1); !errors.Is(err, accounts.ErrInvalidAmount) {
		t.Fatalf("negative fee should be rejected, got %v", err)
	}
}

// directStore applies writes immediately, like a store without transactions.
type directStore struct {
	mu       sync.Mutex
	balances map[string]int64
	failOn   string
	kinds    []string
}

func (s *directStore) Atomic() bool { return false }

func (s *directStore) Balance(_ context.Context, owner string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[owner], nil
}

func (s *directStore) InTx(_ context.Context, fn func(accounts.Tx) error) error {
	return fn(directTx{s})
}

type directTx struct{ s *directStore }

func (t directTx) Balance(owner string) (int64, error) {
	return t.s.Balance(context.Background(), owner)
}

func (t directTx) Debit(e accounts.Entry) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.OwnerID == s.failOn {
		return errors.New("connection reset")
	}
	s.balances[e.OwnerID] -= e.Amount
	s.kinds = append(s.kinds, e.Kind)
	return nil
}

func (t directTx) Credit(e accounts.Entry) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[e.OwnerID] += e.Amount
	s.kinds = append(s.kinds, e.Kind)
	return nil
}

func TestReserveCompensatesNonAtomicStore(t *testing.T) {
	store := &directStore{balances: map[string]int64{"a": 50, "b": 50}, failOn: "b"}
	l := New(store, Config{})

	err := l.ReserveEntryFees(context.Background(), "m1", "a", "b", 10)
	if err == nil {
		t.Fatal("expected reservation error")
	}
	if _, ok := IsInsufficientFunds(err); ok {
		t.Errorf("transport failure should not be reported as insufficient funds")
	}
	if got := store.balances["a"]; got != 50 {
		t.Errorf("a = %d, want 50 after compensation", got)
	}
	if len(store.kinds) != 2 || store.kinds[1] != accounts.KindCompensation {
		t.Errorf("expected debit then compensation, got %v", store.kinds)
	}
}

func TestSettleWinner(t *testing.T) {
	store := accounts.NewMemoryStore()
	store.Deposit("a", 100)
	store.Deposit("b", 100)
	l := New(store, Config{WinnerSharePercent: 80})
	ctx := context.Background()

	if err := l.ReserveEntryFees(ctx, "m1", "a", "b", 10); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	out, err := l.Settle(ctx, Settlement{MatchID: "m1", Player1ID: "a", Player2ID: "b", EntryFee: 10, Player1Score: 40, Player2Score: 20})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	if out.WinnerID != "a" || out.Prize != 16 || out.Commission != 4 || out.IsDraw {
		t.Errorf("unexpected outcome %+v", out)
	}
	if got := balance(t, store, "a"); got != 106 {
		t.Errorf("a = %d, want 106", got)
	}
	if got := balance(t, store, "b"); got != 90 {
		t.Errorf("b = %d, want 90", got)
	}
	// commission stays implicit by default
	if got := balance(t, store, "house"); got != 0 {
		t.Errorf("house = %d, want 0", got)
	}
}

func TestSettleDrawRefundsFullFee(t *testing.T) {
	store := accounts.NewMemoryStore()
	store.Deposit("a", 10)
	store.Deposit("b", 10)
	l := New(store, Config{WinnerSharePercent: 80, RecordCommission: true})
	ctx := context.Background()

	if err := l.ReserveEntryFees(ctx, "m1", "a", "b", 10); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	out, err := l.Settle(ctx, Settlement{MatchID: "m1", Player1ID: "a", Player2ID: "b", EntryFee: 10, Player1Score: 30, Player2Score: 30})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !out.IsDraw || out.WinnerID != "" || out.Commission != 0 {
		t.Errorf("unexpected outcome %+v", out)
	}
	if balance(t, store, "a") != 10 || balance(t, store, "b") != 10 {
		t.Errorf("draw should be fee-neutral")
	}
	if got := balance(t, store, "house"); got != 0 {
		t.Errorf("no commission on draw, house = %d", got)
	}
}

func TestSettleRecordsCommissionWhenEnabled(t *testing.T) {
	store := accounts.NewMemoryStore()
	store.Deposit("a", 7)
	store.Deposit("b", 7)
	l := New(store, Config{WinnerSharePercent: 80, RecordCommission: true, HouseAccountID: "house"})
	ctx := context.Background()

	if err := l.ReserveEntryFees(ctx, "m1", "a", "b", 7); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	out, err := l.Settle(ctx, Settlement{MatchID: "m1", Player1ID: "a", Player2ID: "b", EntryFee: 7, Player1Score: 0, Player2Score: 10})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	// floor(14 * 0.8) = 11
	if out.Prize != 11 || out.Commission != 3 {
		t.Fatalf("prize/commission = %d/%d, want 11/3", out.Prize, out.Commission)
	}
	total := balance(t, store, "a") + balance(t, store, "b") + balance(t, store, "house")
	if total != 14 {
		t.Errorf("money not conserved: total = %d, want 14", total)
	}
}

func TestPrizeNeverExceedsPool(t *testing.T) {
	l := New(accounts.NewMemoryStore(), Config{WinnerSharePercent: 80})
	for pool := int64(0); pool < 500; pool++ {
		prize := l.Prize(pool)
		if prize > pool || prize < 0 {
			t.Fatalf("pool %d produced prize %d", pool, prize)
		}
		if prize+(pool-prize) != pool {
			t.Fatalf("arithmetic drift at pool %d", pool)
		}
	}
}

func TestSettleFreeMatch(t *testing.T) {
	store := accounts.NewMemoryStore()
	l := New(store, Config{})
	out, err := l.Settle(context.Background(), Settlement{MatchID: "m", Player1ID: "a", Player2ID: "b", Player1Score: 10})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if out.WinnerID != "a" || out.Prize != 0 {
		t.Errorf("unexpected outcome %+v", out)
	}
}
