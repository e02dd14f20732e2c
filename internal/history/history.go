package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/quizduel/backend/internal/models"
)

// AnswerRecord is one player's answer (or timeout) for one question.
type AnswerRecord struct {
	PlayerID      string
	QuestionIndex int
	QuestionID    string
	Answer        any
	Correct       bool
	TimedOut      bool
	TimeSpent     float64
	AnsweredAt    time.Time
}

// MatchRecord is the archived summary of a finished match.
type MatchRecord struct {
	MatchID         string
	PoolID          string
	CategoryID      string
	Player1ID       string
	Player2ID       string
	Player1Score    int
	Player2Score    int
	WinnerID        string
	IsDraw          bool
	EntryFee        int64
	TotalPool       int64
	Prize           int64
	SettlementError string
	StartedAt       time.Time
	FinishedAt      time.Time
	Answers         []AnswerRecord
}

// Recorder archives finished matches.
type Recorder interface {
	Record(ctx context.Context, rec MatchRecord) error
}

func (r MatchRecord) row() models.BattleMatch {
	m := models.BattleMatch{
		ID:           r.MatchID,
		PoolID:       r.PoolID,
		CategoryID:   r.CategoryID,
		Player1ID:    r.Player1ID,
		Player2ID:    r.Player2ID,
		Player1Score: r.Player1Score,
		Player2Score: r.Player2Score,
		IsDraw:       r.IsDraw,
		EntryFee:     r.EntryFee,
		TotalPool:    r.TotalPool,
		Prize:        r.Prize,
		FinishedAt:   r.FinishedAt,
	}
	if r.WinnerID != "" && !r.IsDraw {
		m.WinnerID = sql.NullString{String: r.WinnerID, Valid: true}
	}
	if r.SettlementError != "" {
		m.SettlementError = sql.NullString{String: r.SettlementError, Valid: true}
	}
	if !r.StartedAt.IsZero() {
		m.StartedAt = sql.NullTime{Time: r.StartedAt, Valid: true}
	}
	return m
}

func (a AnswerRecord) row(matchID string) (models.BattleAnswer, error) {
	row := models.BattleAnswer{
		MatchID:       matchID,
		PlayerID:      a.PlayerID,
		QuestionIndex: a.QuestionIndex,
		QuestionID:    a.QuestionID,
		IsCorrect:     a.Correct && !a.TimedOut,
		TimedOut:      a.TimedOut,
		TimeSpent:     a.TimeSpent,
		AnsweredAt:    a.AnsweredAt,
	}
	if a.Answer != nil && !a.TimedOut {
		b, err := json.Marshal(a.Answer)
		if err != nil {
			return row, fmt.Errorf("encode answer for %s q%d: %w", a.PlayerID, a.QuestionIndex, err)
		}
		row.Answer = sql.NullString{String: string(b), Valid: true}
	}
	return row, nil
}

// PostgresRecorder writes battle_matches and battle_answers in one transaction.
type PostgresRecorder struct {
	db *sqlx.DB
}

func NewPostgresRecorder(db *sqlx.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

func (p *PostgresRecorder) Record(ctx context.Context, rec MatchRecord) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO battle_matches (id, pool_id, category_id, player1_id, player2_id, player1_score, player2_score,
			winner_id, is_draw, entry_fee, total_pool, prize, settlement_error, started_at, finished_at)
		VALUES (:id, :pool_id, :category_id, :player1_id, :player2_id, :player1_score, :player2_score,
			:winner_id, :is_draw, :entry_fee, :total_pool, :prize, :settlement_error, :started_at, :finished_at)
		ON CONFLICT (id) DO NOTHING`, rec.row()); err != nil {
		return fmt.Errorf("insert battle_matches %s: %w", rec.MatchID, err)
	}

	for _, a := range rec.Answers {
		row, err := a.row(rec.MatchID)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO battle_answers (match_id, player_id, question_index, question_id, answer, is_correct, timed_out, time_spent, answered_at)
			VALUES (:match_id, :player_id, :question_index, :question_id, :answer, :is_correct, :timed_out, :time_spent, :answered_at)
			ON CONFLICT (match_id, player_id, question_index) DO NOTHING`, row); err != nil {
			return fmt.Errorf("insert battle_answers %s: %w", rec.MatchID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	log.Printf("[HISTORY] Recorded match %s (%d answers)", rec.MatchID, len(rec.Answers))
	return nil
}

// RecentForPlayer lists the player's latest finished matches, newest first.
func (p *PostgresRecorder) RecentForPlayer(ctx context.Context, playerID string, limit int) ([]models.BattleMatch, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var rows []models.BattleMatch
	err := p.db.SelectContext(ctx, &rows, `
		SELECT id, pool_id, category_id, player1_id, player2_id, player1_score, player2_score, winner_id,
		       is_draw, entry_fee, total_pool, prize, settlement_error, started_at, finished_at
		FROM battle_matches
		WHERE player1_id = $1 OR player2_id = $1
		ORDER BY finished_at DESC
		LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
