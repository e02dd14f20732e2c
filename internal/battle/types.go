package battle

import (
	"errors"
	"fmt"
	"time"

	"github.com/quizduel/backend/internal/questions"
)

var (
	ErrNotRegistered   = errors.New("connection has no registered identity")
	ErrAlreadyInMatch  = errors.New("player already in an active match")
	ErrMatchNotFound   = errors.New("match not found")
	ErrNotParticipant  = errors.New("player is not part of this match")
	ErrMatchNotPlaying = errors.New("match is not in progress")
	ErrWrongQuestion   = errors.New("question is not open for answers")
	ErrAlreadyAnswered = errors.New("question already answered")
	ErrInvalidStake    = errors.New("invalid stake amount")
	ErrPlayerBusy      = errors.New("player is already in another match")
	ErrStaleEntry      = errors.New("queue entry no longer waiting")
)

// StaleEntryError rejects a pairing because at least one side's entry was
// cancelled or replaced. Keep holds the entries that are still waiting.
type StaleEntryError struct {
	Keep []QueueEntry
}

func (e *StaleEntryError) Error() string { return ErrStaleEntry.Error() }

func (e *StaleEntryError) Unwrap() error { return ErrStaleEntry }

// Question is the immutable content handed to a match.
type Question = questions.Question

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	StatusStarting MatchStatus = "starting"
	StatusPlaying  MatchStatus = "playing"
	StatusFinished MatchStatus = "finished"
)

// QuizMeta describes what kind of match a queue entry asked for.
type QuizMeta struct {
	QuizID          string `json:"quizId,omitempty"`
	CategoryID      string `json:"categoryId"`
	Mode            string `json:"mode"`
	QuestionCount   int    `json:"questionCount"`
	TimePerQuestion int    `json:"timePerQuestion"`
	EntryFee        int64  `json:"entryFee"`
}

// QueueEntry is one player waiting in a matchmaking pool.
type QueueEntry struct {
	PlayerID     string    `json:"playerId"`
	ConnectionID string    `json:"connectionId"`
	PoolID       string    `json:"poolId"`
	Quiz         QuizMeta  `json:"quiz"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// sameEntry compares by connection identity, the key queue removal uses.
func (e QueueEntry) sameEntry(o QueueEntry) bool {
	return e.PlayerID == o.PlayerID && e.ConnectionID == o.ConnectionID
}

// PoolKey groups entries that can be paired: same quiz selection and stake.
func PoolKey(q QuizMeta) string {
	mode := q.Mode
	if mode == "" {
		mode = "classic"
	}
	if q.QuizID != "" {
		return fmt.Sprintf("quiz:%s:mode:%s:stake:%d", q.QuizID, mode, q.EntryFee)
	}
	return fmt.Sprintf("cat:%s:mode:%s:q:%d:stake:%d", q.CategoryID, mode, q.QuestionCount, q.EntryFee)
}
