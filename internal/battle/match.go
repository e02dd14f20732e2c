package battle

import (
	"log"
	"sync"
	"time"

	"github.com/quizduel/backend/internal/questions"
)

// Timing holds the fixed delays of the match protocol.
type Timing struct {
	Intro      time.Duration // opponent-found -> match-starting
	Countdown  time.Duration // match-starting -> first question
	Question   time.Duration // answer window per question
	InterRound time.Duration // round closed -> next question
}

// DefaultTiming mirrors the stock client animations.
func DefaultTiming() Timing {
	return Timing{
		Intro:      2 * time.Second,
		Countdown:  3 * time.Second,
		Question:   15 * time.Second,
		InterRound: time.Second,
	}
}

type seat struct {
	playerID string
	connID   string
	position string
	answers  map[int]AnswerRecord
}

// MatchParams configures a new match.
type MatchParams struct {
	ID        string
	PoolID    string
	Quiz      QuizMeta
	Player1   PlayerHandle
	Player2   PlayerHandle
	Questions []Question
	Timing    Timing
	Scheduler Scheduler
	Notifier  *Notifier
	OnFinish  func(*Match)
	CreatedAt time.Time
}

// Match runs one head-to-head quiz. All state is guarded by mu; every
// scheduled callback re-checks status and round index before acting, so a
// superseded timer is a no-op.
type Match struct {
	ID             string
	PoolID         string
	Quiz           QuizMeta
	EntryFee       int64
	TotalPrizePool int64

	mu             sync.Mutex
	seats          [2]*seat
	questions      []Question
	status         MatchStatus
	started        bool
	current        int
	roundOpen      bool
	roundStartedAt time.Time
	timer          Timer
	createdAt      time.Time
	startedAt      time.Time
	finishedAt     time.Time

	timing   Timing
	sched    Scheduler
	notifier *Notifier
	onFinish func(*Match)
}

func newMatch(p MatchParams) *Match {
	if p.Scheduler == nil {
		p.Scheduler = RealScheduler()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.Scheduler.Now()
	}
	qs := make([]Question, len(p.Questions))
	copy(qs, p.Questions)
	if len(qs) == 0 {
		qs = questions.Fallback(p.Quiz.QuestionCount)
	}

	return &Match{
		ID:             p.ID,
		PoolID:         p.PoolID,
		Quiz:           p.Quiz,
		EntryFee:       p.Quiz.EntryFee,
		TotalPrizePool: p.Quiz.EntryFee * 2,
		seats: [2]*seat{
			{playerID: p.Player1.PlayerID, connID: p.Player1.ConnectionID, position: "player1", answers: make(map[int]AnswerRecord)},
			{playerID: p.Player2.PlayerID, connID: p.Player2.ConnectionID, position: "player2", answers: make(map[int]AnswerRecord)},
		},
		questions: qs,
		status:    StatusStarting,
		createdAt: p.CreatedAt,
		timing:    p.Timing,
		sched:     p.Scheduler,
		notifier:  p.Notifier,
		onFinish:  p.OnFinish,
	}
}

// playerIDs is safe without the lock; seat identities never change.
func (m *Match) playerIDs() [2]string {
	return [2]string{m.seats[0].playerID, m.seats[1].playerID}
}

// seatOf returns the player's seat and the opponent's.
func (m *Match) seatOf(playerID string) (*seat, *seat) {
	switch playerID {
	case m.seats[0].playerID:
		return m.seats[0], m.seats[1]
	case m.seats[1].playerID:
		return m.seats[1], m.seats[0]
	}
	return nil, nil
}

func (m *Match) send(s *seat, evType string, data any) {
	m.notifier.Deliver(s.connID, Event{Type: evType, Data: data})
}

func (m *Match) broadcast(evType string, data any) {
	for _, s := range m.seats {
		m.send(s, evType, data)
	}
}

func (m *Match) schedule(d time.Duration, f func()) {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = m.sched.AfterFunc(d, f)
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}

// Start announces the opponent and schedules the countdown. Calling it twice
// has no effect.
func (m *Match) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.status != StatusStarting {
		return
	}
	m.started = true

	for i, s := range m.seats {
		m.send(s, EventOpponentFound, OpponentFound{
			MatchID:        m.ID,
			Opponent:       m.seats[1-i].playerID,
			QuestionCount:  len(m.questions),
			EntryFee:       m.EntryFee,
			TotalPrizePool: m.TotalPrizePool,
		})
	}
	m.schedule(m.timing.Intro, m.announceCountdown)
}

func (m *Match) announceCountdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusStarting {
		return
	}
	m.broadcast(EventMatchStarting, MatchStarting{MatchID: m.ID, Countdown: seconds(m.timing.Countdown)})
	m.schedule(m.timing.Countdown, m.begin)
}

func (m *Match) begin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusStarting {
		return
	}
	m.broadcast(EventMatchReady, MatchReady{MatchID: m.ID})
	m.status = StatusPlaying
	m.startedAt = m.sched.Now()
	log.Printf("[MATCH] %s playing: %s vs %s, %d questions", m.ID, m.seats[0].playerID, m.seats[1].playerID, len(m.questions))
	m.openRound(0)
}

// openRound must be called with mu held.
func (m *Match) openRound(index int) {
	m.current = index
	m.roundOpen = true
	m.roundStartedAt = m.sched.Now()

	evType := EventNextQuestion
	if index == 0 {
		evType = EventMatchStarted
	}
	m.broadcast(evType, RoundQuestion{
		MatchID:        m.ID,
		QuestionIndex:  index,
		Question:       viewOf(m.questions[index]),
		TimeLimit:      seconds(m.timing.Question),
		TotalQuestions: len(m.questions),
	})
	m.schedule(m.timing.Question, func() { m.expireRound(index) })
}

// Submit records a player's first answer for the open question.
func (m *Match) Submit(playerID string, index int, value any, timeSpent float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, opp := m.seatOf(playerID)
	if s == nil {
		return ErrNotParticipant
	}
	if m.status != StatusPlaying {
		return ErrMatchNotPlaying
	}
	if index != m.current || !m.roundOpen {
		return ErrWrongQuestion
	}
	if _, done := s.answers[index]; done {
		return ErrAlreadyAnswered
	}

	limit := m.timing.Question.Seconds()
	if timeSpent < 0 {
		timeSpent = 0
	} else if limit > 0 && timeSpent > limit {
		timeSpent = limit
	}
	s.answers[index] = AnswerRecord{Value: value, TimeSpent: timeSpent, Timestamp: m.sched.Now()}

	// the raw value goes to the opponent right away; clients use it for the reveal animation
	m.send(opp, EventOpponentAnswered, OpponentAnswered{MatchID: m.ID, QuestionIndex: index, Answer: value})

	if _, done := opp.answers[index]; done {
		m.closeRound()
	}
	return nil
}

func (m *Match) expireRound(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusPlaying || !m.roundOpen || m.current != index {
		return
	}

	now := m.sched.Now()
	for i, s := range m.seats {
		if _, done := s.answers[index]; done {
			continue
		}
		s.answers[index] = AnswerRecord{TimeSpent: m.timing.Question.Seconds(), Timestamp: now, TimedOut: true}
		m.send(m.seats[1-i], EventOpponentAnswered, OpponentAnswered{MatchID: m.ID, QuestionIndex: index, TimedOut: true})
	}
	m.closeRound()
}

// closeRound must be called with mu held.
func (m *Match) closeRound() {
	m.roundOpen = false
	next := m.current + 1
	if next >= len(m.questions) {
		m.schedule(m.timing.InterRound, m.finish)
		return
	}
	m.schedule(m.timing.InterRound, func() { m.advance(next) })
}

func (m *Match) advance(next int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusPlaying || m.roundOpen || next != m.current+1 {
		return
	}
	m.openRound(next)
}

func (m *Match) finish() {
	m.mu.Lock()
	if m.status == StatusFinished {
		m.mu.Unlock()
		return
	}
	m.status = StatusFinished
	m.roundOpen = false
	m.finishedAt = m.sched.Now()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	cb := m.onFinish
	m.mu.Unlock()

	// settlement blocks on the ledger; never under the match lock
	if cb != nil {
		cb(m)
	}
}

// UpdateConnection points the player's seat at a new connection.
func (m *Match) UpdateConnection(playerID, connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, _ := m.seatOf(playerID)
	if s == nil {
		return false
	}
	s.connID = connID
	return true
}

// ConnectionOf returns the connection currently bound to the player's seat.
func (m *Match) ConnectionOf(playerID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, _ := m.seatOf(playerID); s != nil {
		return s.connID
	}
	return ""
}

func (m *Match) Status() MatchStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// CurrentIndex is the question currently open or last closed.
func (m *Match) CurrentIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Result is the outcome derived from recorded answers.
type Result struct {
	Player1Score int
	Player2Score int
	WinnerID     string
	IsDraw       bool
}

func (m *Match) Result() Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resultLocked(len(m.questions))
}

// resultLocked scores the first n questions.
func (m *Match) resultLocked(n int) Result {
	qs := m.questions[:n]
	r := Result{
		Player1Score: Score(m.seats[0].answers, qs),
		Player2Score: Score(m.seats[1].answers, qs),
	}
	switch {
	case r.Player1Score == r.Player2Score:
		r.IsDraw = true
	case r.Player1Score > r.Player2Score:
		r.WinnerID = m.seats[0].playerID
	default:
		r.WinnerID = m.seats[1].playerID
	}
	return r
}

func (m *Match) endedFor(s *seat, r Result) MatchEnded {
	ended := MatchEnded{MatchID: m.ID, IsDraw: r.IsDraw, MyPosition: s.position}
	if s == m.seats[0] {
		ended.MyScore, ended.OpponentScore = r.Player1Score, r.Player2Score
	} else {
		ended.MyScore, ended.OpponentScore = r.Player2Score, r.Player1Score
	}
	if !r.IsDraw {
		winner := r.WinnerID
		ended.Winner = &winner
	}
	return ended
}

// EndedFor builds the match-ended payload from the player's point of view.
func (m *Match) EndedFor(playerID string) (MatchEnded, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, _ := m.seatOf(playerID)
	if s == nil {
		return MatchEnded{}, false
	}
	return m.endedFor(s, m.resultLocked(len(m.questions))), true
}

// StatusFor answers a status query from one participant. Running scores only
// count closed rounds.
func (m *Match) StatusFor(playerID string) (StatusView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, _ := m.seatOf(playerID)
	if s == nil {
		return StatusView{}, ErrNotParticipant
	}

	view := StatusView{
		MatchID:        m.ID,
		Status:         m.status,
		TotalQuestions: len(m.questions),
		QuestionIndex:  m.current,
	}

	switch m.status {
	case StatusPlaying:
		q := viewOf(m.questions[m.current])
		view.Question = &q
		_, view.Answered = s.answers[m.current]
		closed := m.current
		if !m.roundOpen {
			closed++
		} else {
			remaining := m.timing.Question - m.sched.Now().Sub(m.roundStartedAt)
			if remaining < 0 {
				remaining = 0
			}
			view.TimeRemaining = remaining.Seconds()
		}
		ended := m.endedFor(s, m.resultLocked(closed))
		view.MyScore, view.OpponentScore = ended.MyScore, ended.OpponentScore
	case StatusFinished:
		ended := m.endedFor(s, m.resultLocked(len(m.questions)))
		view.MyScore, view.OpponentScore = ended.MyScore, ended.OpponentScore
		view.Result = &ended
	}
	return view, nil
}

// matchSnapshot is a consistent copy of a match for archiving.
type matchSnapshot struct {
	players    [2]string
	answers    [2]map[int]AnswerRecord
	questions  []Question
	startedAt  time.Time
	finishedAt time.Time
}

func (m *Match) snapshot() matchSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := matchSnapshot{
		players:    m.playerIDs(),
		questions:  m.questions,
		startedAt:  m.startedAt,
		finishedAt: m.finishedAt,
	}
	for i, s := range m.seats {
		snap.answers[i] = make(map[int]AnswerRecord, len(s.answers))
		for k, v := range s.answers {
			snap.answers[i][k] = v
		}
	}
	return snap
}
