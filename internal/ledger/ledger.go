package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/quizduel/backend/internal/accounts"
)

// ReserveError identifies which player's debit failed during escrow.
type ReserveError struct {
	PlayerID string
	Err      error
}

func (e *ReserveError) Error() string {
	return fmt.Sprintf("reserve entry fee for %s: %v", e.PlayerID, e.Err)
}

func (e *ReserveError) Unwrap() error { return e.Err }

type Config struct {
	WinnerSharePercent int
	RecordCommission   bool
	HouseAccountID     string
}

// Ledger moves entry fees into escrow and pays out finished matches.
type Ledger struct {
	store            accounts.Store
	sharePercent     int64
	recordCommission bool
	house            string
}

func New(store accounts.Store, cfg Config) *Ledger {
	share := int64(cfg.WinnerSharePercent)
	if share <= 0 || share > 100 {
		share = 80
	}
	house := cfg.HouseAccountID
	if house == "" {
		house = "house"
	}
	return &Ledger{
		store:            store,
		sharePercent:     share,
		recordCommission: cfg.RecordCommission,
		house:            house,
	}
}

// Balance reads a player's current wallet balance.
func (l *Ledger) Balance(ctx context.Context, playerID string) (int64, error) {
	return l.store.Balance(ctx, playerID)
}

// Prize is the winner's share of a pool, rounded down.
func (l *Ledger) Prize(totalPool int64) int64 {
	return totalPool * l.sharePercent / 100
}

// ReserveEntryFees debits fee from both players in one transaction. A zero
// fee is a free match and touches nothing.
func (l *Ledger) ReserveEntryFees(ctx context.Context, matchID, player1ID, player2ID string, fee int64) error {
	if fee < 0 {
		return accounts.ErrInvalidAmount
	}
	if fee == 0 {
		return nil
	}

	var applied []string
	err := l.store.InTx(ctx, func(tx accounts.Tx) error {
		for _, pid := range []string{player1ID, player2ID} {
			if err := tx.Debit(accounts.Entry{
				OwnerID:     pid,
				Amount:      fee,
				Kind:        accounts.KindEntryFee,
				Reference:   matchID,
				Description: "Battle entry fee moved to escrow",
			}); err != nil {
				return &ReserveError{PlayerID: pid, Err: err}
			}
			applied = append(applied, pid)
		}
		return nil
	})
	if err == nil {
		log.Printf("[LEDGER] Reserved %d from %s and %s for match %s", fee, player1ID, player2ID, matchID)
		return nil
	}

	if !l.store.Atomic() && len(applied) > 0 {
		l.compensate(ctx, matchID, applied, fee)
	}
	return err
}

// compensate refunds debits that a non-transactional store already applied.
func (l *Ledger) compensate(ctx context.Context, matchID string, players []string, fee int64) {
	for _, pid := range players {
		err := l.store.InTx(ctx, func(tx accounts.Tx) error {
			return tx.Credit(accounts.Entry{
				OwnerID:     pid,
				Amount:      fee,
				Kind:        accounts.KindCompensation,
				Reference:   matchID,
				Description: "Entry fee returned after failed reservation",
			})
		})
		if err != nil {
			log.Printf("[LEDGER] ALERT compensation failed for player %s match %s amount %d: %v", pid, matchID, fee, err)
			continue
		}
		log.Printf("[LEDGER] Compensated %d to %s for match %s", fee, pid, matchID)
	}
}

// Settlement carries the final scores of a match.
type Settlement struct {
	MatchID      string
	Player1ID    string
	Player2ID    string
	EntryFee     int64
	Player1Score int
	Player2Score int
}

// Outcome is what Settle paid out.
type Outcome struct {
	WinnerID   string
	IsDraw     bool
	TotalPool  int64
	Prize      int64
	Commission int64
}

// Resolve computes the payout without touching wallets.
func (l *Ledger) Resolve(s Settlement) Outcome {
	total := s.EntryFee * 2
	out := Outcome{TotalPool: total}
	switch {
	case s.Player1Score == s.Player2Score:
		out.IsDraw = true
	case s.Player1Score > s.Player2Score:
		out.WinnerID = s.Player1ID
	default:
		out.WinnerID = s.Player2ID
	}
	if !out.IsDraw {
		out.Prize = l.Prize(total)
		out.Commission = total - out.Prize
	}
	return out
}

// Settle pays the winner or refunds both players on a draw. All writes for
// the outcome happen in a single transaction.
func (l *Ledger) Settle(ctx context.Context, s Settlement) (Outcome, error) {
	out := l.Resolve(s)
	if s.EntryFee <= 0 {
		return out, nil
	}

	err := l.store.InTx(ctx, func(tx accounts.Tx) error {
		if out.IsDraw {
			for _, pid := range []string{s.Player1ID, s.Player2ID} {
				if err := tx.Credit(accounts.Entry{
					OwnerID:     pid,
					Amount:      s.EntryFee,
					Kind:        accounts.KindRefund,
					Reference:   s.MatchID,
					Description: "Battle draw refund",
				}); err != nil {
					return err
				}
			}
			return nil
		}

		if out.Prize > 0 {
			if err := tx.Credit(accounts.Entry{
				OwnerID:     out.WinnerID,
				Amount:      out.Prize,
				Kind:        accounts.KindPrize,
				Reference:   s.MatchID,
				Description: "Battle winner prize",
			}); err != nil {
				return err
			}
		}
		if l.recordCommission && out.Commission > 0 {
			if err := tx.Credit(accounts.Entry{
				OwnerID:     l.house,
				Amount:      out.Commission,
				Kind:        accounts.KindCommission,
				Reference:   s.MatchID,
				Description: "Battle commission",
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("settle match %s: %w", s.MatchID, err)
	}

	if out.IsDraw {
		log.Printf("[LEDGER] Match %s draw: refunded %d to %s and %s", s.MatchID, s.EntryFee, s.Player1ID, s.Player2ID)
	} else {
		log.Printf("[LEDGER] Match %s won by %s: prize=%d commission=%d pool=%d", s.MatchID, out.WinnerID, out.Prize, out.Commission, out.TotalPool)
	}
	return out, nil
}

// IsInsufficientFunds reports whether err is a reservation failure caused by
// a player's balance, returning that player.
func IsInsufficientFunds(err error) (string, bool) {
	var re *ReserveError
	if errors.As(err, &re) && errors.Is(re.Err, accounts.ErrInsufficientFunds) {
		return re.PlayerID, true
	}
	return "", false
}
