package models

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Wallet is a player's (or the house's) spendable balance in minor units.
type Wallet struct {
	ID        int64     `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// WalletTransaction is one signed balance movement. Debits are negative.
type WalletTransaction struct {
	ID           int64     `db:"id" json:"id"`
	WalletID     int64     `db:"wallet_id" json:"wallet_id"`
	OwnerID      string    `db:"owner_id" json:"owner_id"`
	Amount       int64     `db:"amount" json:"amount"`
	Kind         string    `db:"kind" json:"kind"`
	Reference    string    `db:"reference" json:"reference"`
	Description  string    `db:"description" json:"description,omitempty"`
	BalanceAfter int64     `db:"balance_after" json:"balance_after"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Question is a question bank row.
type Question struct {
	ID            int64          `db:"id" json:"id"`
	CategoryID    string         `db:"category_id" json:"category_id"`
	Text          string         `db:"text" json:"text"`
	Options       pq.StringArray `db:"options" json:"options"`
	CorrectOption int            `db:"correct_option" json:"correct_option"`
	IsActive      bool           `db:"is_active" json:"is_active"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// BattleMatch is the persisted summary of a finished match.
type BattleMatch struct {
	ID              string         `db:"id" json:"id"`
	PoolID          string         `db:"pool_id" json:"pool_id"`
	CategoryID      string         `db:"category_id" json:"category_id"`
	Player1ID       string         `db:"player1_id" json:"player1_id"`
	Player2ID       string         `db:"player2_id" json:"player2_id"`
	Player1Score    int            `db:"player1_score" json:"player1_score"`
	Player2Score    int            `db:"player2_score" json:"player2_score"`
	WinnerID        sql.NullString `db:"winner_id" json:"winner_id,omitempty"`
	IsDraw          bool           `db:"is_draw" json:"is_draw"`
	EntryFee        int64          `db:"entry_fee" json:"entry_fee"`
	TotalPool       int64          `db:"total_pool" json:"total_pool"`
	Prize           int64          `db:"prize" json:"prize"`
	SettlementError sql.NullString `db:"settlement_error" json:"settlement_error,omitempty"`
	StartedAt       sql.NullTime   `db:"started_at" json:"started_at,omitempty"`
	FinishedAt      time.Time      `db:"finished_at" json:"finished_at"`
}

// BattleAnswer is one recorded (or timed-out) answer within a finished match.
type BattleAnswer struct {
	ID            int64          `db:"id" json:"id"`
	MatchID       string         `db:"match_id" json:"match_id"`
	PlayerID      string         `db:"player_id" json:"player_id"`
	QuestionIndex int            `db:"question_index" json:"question_index"`
	QuestionID    string         `db:"question_id" json:"question_id"`
	Answer        sql.NullString `db:"answer" json:"answer,omitempty"`
	IsCorrect     bool           `db:"is_correct" json:"is_correct"`
	TimedOut      bool           `db:"timed_out" json:"timed_out"`
	TimeSpent     float64        `db:"time_spent" json:"time_spent"`
	AnsweredAt    time.Time      `db:"answered_at" json:"answered_at"`
}
