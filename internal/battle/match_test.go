package battle

import (
	"errors"
	"testing"
	"time"
)

type matchHarness struct {
	m        *Match
	sched    *manualScheduler
	tr       *recordingTransport
	finished int
}

// newPlayingMatch returns an alice-vs-bob match with its first question open.
func newPlayingMatch(t *testing.T, questions int) *matchHarness {
	t.Helper()
	h := newStartingMatch(questions)
	h.m.Start()
	h.sched.Advance(5 * time.Second)
	if h.m.Status() != StatusPlaying {
		t.Fatalf("status after intro = %s, want playing", h.m.Status())
	}
	return h
}

func newStartingMatch(questions int) *matchHarness {
	h := &matchHarness{sched: newManualScheduler(), tr: newRecordingTransport()}
	h.m = newMatch(MatchParams{
		ID:        "m1",
		PoolID:    "pool",
		Quiz:      QuizMeta{CategoryID: "general", QuestionCount: questions, EntryFee: 10},
		Player1:   PlayerHandle{PlayerID: "alice", ConnectionID: "c-alice"},
		Player2:   PlayerHandle{PlayerID: "bob", ConnectionID: "c-bob"},
		Questions: abcdQuestions(questions),
		Timing:    testTiming(),
		Scheduler: h.sched,
		Notifier:  NewNotifier(h.tr),
		OnFinish:  func(*Match) { h.finished++ },
	})
	return h
}

func TestMatchAnnouncesPhasesInOrder(t *testing.T) {
	h := newStartingMatch(3)
	h.m.Start()
	h.m.Start()

	if n := h.tr.count("c-alice", EventOpponentFound); n != 1 {
		t.Fatalf("opponent-found sent %d times", n)
	}
	ev, _ := h.tr.last("c-bob", EventOpponentFound)
	found := ev.Data.(OpponentFound)
	if found.Opponent != "alice" || found.QuestionCount != 3 || found.TotalPrizePool != 20 {
		t.Errorf("opponent-found = %+v", found)
	}

	h.sched.Advance(2 * time.Second)
	ev, ok := h.tr.last("c-alice", EventMatchStarting)
	if !ok || ev.Data.(MatchStarting).Countdown != 3 {
		t.Fatalf("match-starting = %+v, %v", ev, ok)
	}
	if h.m.Status() != StatusStarting {
		t.Errorf("status during countdown = %s", h.m.Status())
	}
	if err := h.m.Submit("alice", 0, 0, 1); !errors.Is(err, ErrMatchNotPlaying) {
		t.Errorf("Submit before playing = %v, want ErrMatchNotPlaying", err)
	}

	h.sched.Advance(3 * time.Second)
	if h.tr.count("c-bob", EventMatchReady) != 1 {
		t.Error("match-ready not sent")
	}
	ev, ok = h.tr.last("c-bob", EventMatchStarted)
	if !ok {
		t.Fatal("match-started not sent")
	}
	rq := ev.Data.(RoundQuestion)
	if rq.QuestionIndex != 0 || rq.TimeLimit != 15 || rq.TotalQuestions != 3 {
		t.Errorf("match-started = %+v", rq)
	}
}

func TestSubmitAnswerFirstWriteWins(t *testing.T) {
	h := newPlayingMatch(t, 3)

	if err := h.m.Submit("alice", 0, 0, 2); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := h.m.Submit("alice", 0, 1, 3); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("second Submit = %v, want ErrAlreadyAnswered", err)
	}

	evs := h.tr.of("c-bob", EventOpponentAnswered)
	if len(evs) != 1 {
		t.Fatalf("bob got %d opponent-answered, want 1", len(evs))
	}
	if oa := evs[0].Data.(OpponentAnswered); oa.Answer != 0 || oa.TimedOut {
		t.Errorf("opponent-answered = %+v", oa)
	}

	h.m.Submit("bob", 0, 2, 4)
	h.sched.Advance(time.Second)
	// round 0 scores: alice correct once
	view, _ := h.m.StatusFor("alice")
	if view.MyScore != 10 || view.OpponentScore != 0 {
		t.Errorf("scores = %d/%d, want 10/0", view.MyScore, view.OpponentScore)
	}
}

func TestSubmitValidation(t *testing.T) {
	h := newPlayingMatch(t, 3)

	if err := h.m.Submit("mallory", 0, 0, 1); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("outsider Submit = %v", err)
	}
	if err := h.m.Submit("alice", 1, 0, 1); !errors.Is(err, ErrWrongQuestion) {
		t.Errorf("future question Submit = %v", err)
	}

	h.m.Submit("alice", 0, 0, 1)
	h.m.Submit("bob", 0, 0, 1)
	// round closed, next not open yet
	if err := h.m.Submit("alice", 0, 0, 1); !errors.Is(err, ErrWrongQuestion) {
		t.Errorf("Submit after close = %v, want ErrWrongQuestion", err)
	}
}

func TestRoundTimeoutRecordsSyntheticAnswer(t *testing.T) {
	h := newPlayingMatch(t, 3)

	h.m.Submit("alice", 0, "A", 3)
	h.sched.Advance(15 * time.Second)

	ev, ok := h.tr.last("c-alice", EventOpponentAnswered)
	if !ok || !ev.Data.(OpponentAnswered).TimedOut {
		t.Fatalf("alice not told bob timed out: %+v", ev)
	}
	rec := h.m.seats[1].answers[0]
	if !rec.TimedOut || rec.Value != nil {
		t.Errorf("bob record = %+v, want timed out with nil value", rec)
	}
	if IsCorrect(rec, h.m.questions[0]) {
		t.Error("timeout counted as correct")
	}
	if h.m.seats[0].answers[0].TimedOut {
		t.Error("alice's real answer was overwritten")
	}

	h.sched.Advance(time.Second)
	if h.m.CurrentIndex() != 1 {
		t.Errorf("CurrentIndex = %d, want 1", h.m.CurrentIndex())
	}
	if ev, ok := h.tr.last("c-bob", EventNextQuestion); !ok || ev.Data.(RoundQuestion).QuestionIndex != 1 {
		t.Errorf("next-question = %+v, %v", ev, ok)
	}
}

func TestEarlyCloseCancelsRoundTimer(t *testing.T) {
	h := newPlayingMatch(t, 3)

	h.sched.Advance(time.Second)
	h.m.Submit("alice", 0, 0, 1)
	h.m.Submit("bob", 0, 0, 1)
	h.sched.Advance(time.Second)
	if h.m.CurrentIndex() != 1 {
		t.Fatalf("CurrentIndex = %d, want 1", h.m.CurrentIndex())
	}

	// the superseded round 0 timer would have fired here
	h.sched.Advance(13 * time.Second)
	if h.m.CurrentIndex() != 1 {
		t.Fatalf("index advanced by stale timer: %d", h.m.CurrentIndex())
	}
	if _, ok := h.m.seats[0].answers[1]; ok {
		t.Error("round 1 timed out early")
	}

	h.sched.Advance(2 * time.Second)
	if _, ok := h.m.seats[0].answers[1]; !ok {
		t.Error("round 1 did not time out after its own limit")
	}

	indexes := []int{0}
	for _, ev := range h.tr.of("c-alice", EventNextQuestion) {
		indexes = append(indexes, ev.Data.(RoundQuestion).QuestionIndex)
	}
	for i, idx := range indexes {
		if idx != i {
			t.Errorf("question order %v skips or repeats", indexes)
			break
		}
	}
}

func TestMatchFinishesOnceAndClearsTimers(t *testing.T) {
	h := newPlayingMatch(t, 2)

	for i := 0; i < 2; i++ {
		h.m.Submit("alice", i, 0, 1)
		h.m.Submit("bob", i, 1, 1)
		h.sched.Advance(time.Second)
	}

	if h.m.Status() != StatusFinished {
		t.Fatalf("status = %s, want finished", h.m.Status())
	}
	if h.finished != 1 {
		t.Errorf("OnFinish called %d times", h.finished)
	}
	h.sched.Advance(time.Minute)
	if h.finished != 1 {
		t.Errorf("OnFinish called again by a timer: %d", h.finished)
	}
	if n := h.sched.pending(); n != 0 {
		t.Errorf("%d timers still pending", n)
	}

	res := h.m.Result()
	if res.WinnerID != "alice" || res.IsDraw || res.Player1Score != 20 || res.Player2Score != 0 {
		t.Errorf("result = %+v", res)
	}

	ended, ok := h.m.EndedFor("bob")
	if !ok || ended.MyScore != 0 || ended.OpponentScore != 20 || ended.MyPosition != "player2" {
		t.Errorf("bob's view = %+v", ended)
	}
	if ended.Winner == nil || *ended.Winner != "alice" {
		t.Errorf("winner = %v", ended.Winner)
	}

	view, err := h.m.StatusFor("bob")
	if err != nil || view.Status != StatusFinished || view.Result == nil {
		t.Fatalf("finished status view = %+v, %v", view, err)
	}
}

func TestReconnectRoutesToNewConnection(t *testing.T) {
	h := newPlayingMatch(t, 3)

	h.m.UpdateConnection("bob", "c-bob-2")
	h.m.Submit("alice", 0, 1, 2)

	if h.tr.count("c-bob", EventOpponentAnswered) != 0 {
		t.Error("event went to the old connection")
	}
	if h.tr.count("c-bob-2", EventOpponentAnswered) != 1 {
		t.Error("event did not reach the new connection")
	}

	h.sched.Advance(4 * time.Second)
	view, err := h.m.StatusFor("bob")
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != StatusPlaying || view.QuestionIndex != 0 || view.Question == nil {
		t.Fatalf("status view = %+v", view)
	}
	if view.Answered {
		t.Error("bob marked as answered")
	}
	if view.TimeRemaining != 11 {
		t.Errorf("TimeRemaining = %v, want 11", view.TimeRemaining)
	}
	if _, err := h.m.StatusFor("mallory"); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("outsider StatusFor = %v", err)
	}
}

func TestDisconnectedPlayerKeepsTimingOut(t *testing.T) {
	h := newPlayingMatch(t, 2)
	h.tr.setOffline("c-bob", true)

	for i := 0; i < 2; i++ {
		h.m.Submit("alice", i, 0, 1)
		h.sched.Advance(16 * time.Second)
	}

	if h.m.Status() != StatusFinished {
		t.Fatalf("status = %s, want finished", h.m.Status())
	}
	if res := h.m.Result(); res.WinnerID != "alice" || res.Player2Score != 0 {
		t.Errorf("result = %+v", res)
	}
	if h.tr.count("c-bob", EventNextQuestion) != 0 {
		t.Error("events delivered to an offline connection")
	}
	if h.tr.count("c-alice", EventNextQuestion) != 1 {
		t.Error("online player missed next-question")
	}
}

func TestEmptyQuestionListFallsBack(t *testing.T) {
	m := newMatch(MatchParams{
		ID:        "m1",
		Quiz:      QuizMeta{QuestionCount: 4},
		Player1:   PlayerHandle{PlayerID: "a"},
		Player2:   PlayerHandle{PlayerID: "b"},
		Scheduler: newManualScheduler(),
	})
	if len(m.questions) != 4 {
		t.Errorf("fallback gave %d questions, want 4", len(m.questions))
	}
}
