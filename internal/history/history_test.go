package history

import (
	"testing"
	"time"
)

func TestMatchRecordRowDraw(t *testing.T) {
	rec := MatchRecord{MatchID: "m1", Player1ID: "a", Player2ID: "b", WinnerID: "a", IsDraw: true, FinishedAt: time.Now()}
	row := rec.row()
	if row.WinnerID.Valid {
		t.Errorf("draw must not persist a winner, got %q", row.WinnerID.String)
	}
	if row.StartedAt.Valid {
		t.Errorf("zero start time should be NULL")
	}
}

func TestMatchRecordRowWinner(t *testing.T) {
	started := time.Now().Add(-time.Minute)
	rec := MatchRecord{MatchID: "m1", WinnerID: "b", Prize: 16, SettlementError: "db down", StartedAt: started}
	row := rec.row()
	if !row.WinnerID.Valid || row.WinnerID.String != "b" {
		t.Errorf("winner = %+v", row.WinnerID)
	}
	if !row.SettlementError.Valid {
		t.Errorf("settlement error should be recorded")
	}
	if !row.StartedAt.Valid || !row.StartedAt.Time.Equal(started) {
		t.Errorf("started_at = %+v", row.StartedAt)
	}
}

func TestAnswerRecordRow(t *testing.T) {
	row, err := AnswerRecord{PlayerID: "a", QuestionIndex: 2, Answer: "Paris", Correct: true}.row("m1")
	if err != nil {
		t.Fatalf("row: %v", err)
	}
	if row.Answer.String != `"Paris"` || !row.IsCorrect || row.MatchID != "m1" {
		t.Errorf("unexpected row %+v", row)
	}

	row, err = AnswerRecord{PlayerID: "a", Answer: 1.0, Correct: true, TimedOut: true}.row("m1")
	if err != nil {
		t.Fatalf("row: %v", err)
	}
	if row.Answer.Valid || row.IsCorrect {
		t.Errorf("timed out answer must be stored as NULL and incorrect, got %+v", row)
	}
}

func TestAnswerRecordRowUnencodable(t *testing.T) {
	if _, err := (AnswerRecord{Answer: make(chan int)}).row("m1"); err == nil {
		t.Fatal("expected encode error")
	}
}
