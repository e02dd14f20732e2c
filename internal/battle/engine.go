package battle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quizduel/backend/internal/accounts"
	"github.com/quizduel/backend/internal/history"
	"github.com/quizduel/backend/internal/ledger"
	"github.com/quizduel/backend/internal/questions"
)

const settleTimeout = 10 * time.Second

// Settings are the tunables the engine reads from config.
type Settings struct {
	Timing               Timing
	DefaultQuestionCount int
	MaxQuestionCount     int
	MaxStake             int64
	QueueExpiry          time.Duration
	FetchTimeout         time.Duration
}

// Deps are the collaborators of an Engine. Nil fields get in-process
// defaults, except Transport which is required for anything to be delivered.
type Deps struct {
	Queue     QueueStore
	Registry  *Registry
	Ledger    *ledger.Ledger
	Questions questions.Repository
	Recorder  history.Recorder
	Transport Transport
	Scheduler Scheduler
}

// JoinRequest is the payload of join-matchmaking.
type JoinRequest struct {
	CategoryID    string `json:"categoryId"`
	Mode          string `json:"mode"`
	QuizID        string `json:"quizId,omitempty"`
	QuestionCount int    `json:"questionCount,omitempty"`
	Stake         int64  `json:"stake,omitempty"`
}

// SubmitAnswerRequest is the payload of submit-answer.
type SubmitAnswerRequest struct {
	MatchID       string  `json:"matchId"`
	QuestionIndex int     `json:"questionIndex"`
	Answer        any     `json:"answer"`
	TimeSpent     float64 `json:"timeSpent"`
}

// Engine ties the directory, queue, matchmaker, registry, ledger and notifier
// together and is the single entry point for inbound player events.
type Engine struct {
	settings   Settings
	directory  *Directory
	queue      QueueStore
	registry   *Registry
	matchmaker *Matchmaker
	ledger     *ledger.Ledger
	questions  questions.Repository
	recorder   history.Recorder
	notifier   *Notifier
	sched      Scheduler

	mu sync.Mutex
	// waiting is the authoritative entry per queued player; the store may
	// hold stale copies (after a reconnect or a restart) that are skipped.
	waiting map[string]QueueEntry
}

func NewEngine(settings Settings, deps Deps) *Engine {
	if settings.Timing == (Timing{}) {
		settings.Timing = DefaultTiming()
	}
	if settings.DefaultQuestionCount <= 0 {
		settings.DefaultQuestionCount = 5
	}
	if settings.MaxQuestionCount < settings.DefaultQuestionCount {
		settings.MaxQuestionCount = settings.DefaultQuestionCount
	}
	if settings.FetchTimeout <= 0 {
		settings.FetchTimeout = 3 * time.Second
	}
	if deps.Queue == nil {
		deps.Queue = NewMemoryQueue()
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry(5 * time.Minute)
	}
	if deps.Scheduler == nil {
		deps.Scheduler = RealScheduler()
	}
	if deps.Ledger == nil {
		deps.Ledger = ledger.New(accounts.NewMemoryStore(), ledger.Config{})
	}

	e := &Engine{
		settings:  settings,
		directory: NewDirectory(),
		queue:     deps.Queue,
		registry:  deps.Registry,
		ledger:    deps.Ledger,
		questions: deps.Questions,
		recorder:  deps.Recorder,
		notifier:  NewNotifier(deps.Transport),
		sched:     deps.Scheduler,
		waiting:   make(map[string]QueueEntry),
	}
	e.matchmaker = NewMatchmaker(e.queue, e.registry, e.createMatch)
	return e
}

func (e *Engine) Directory() *Directory { return e.directory }

func (e *Engine) Registry() *Registry { return e.registry }

func (e *Engine) deliver(connID, evType string, data any) {
	e.notifier.Deliver(connID, Event{Type: evType, Data: data})
}

func (e *Engine) playerFor(connID string) (string, error) {
	pid, ok := e.directory.PlayerFor(connID)
	if !ok {
		return "", ErrNotRegistered
	}
	return pid, nil
}

// RegisterIdentity binds connID to playerID. A reconnecting player keeps
// their queue position and their active match, both now routed to connID.
// It returns the id of the player's active match, if any.
func (e *Engine) RegisterIdentity(ctx context.Context, connID, playerID string) (string, error) {
	if playerID == "" || connID == "" {
		return "", ErrNotRegistered
	}
	if replaced := e.directory.Register(playerID, connID); replaced != "" {
		log.Printf("[BATTLE] Player %s reconnected: %s -> %s", playerID, replaced, connID)
	}

	e.mu.Lock()
	old, queued := e.waiting[playerID]
	rebound := old
	if queued && old.ConnectionID != connID {
		rebound.ConnectionID = connID
		e.waiting[playerID] = rebound
	}
	e.mu.Unlock()
	if queued && old.ConnectionID != connID {
		e.queue.Remove(ctx, old.PoolID, old)
		e.queue.Enqueue(ctx, rebound.PoolID, rebound)
	}

	activeID := ""
	if m, ok := e.registry.FindByPlayer(playerID); ok {
		m.UpdateConnection(playerID, connID)
		activeID = m.ID
	}

	e.deliver(connID, EventIdentityRegistered, IdentityRegistered{PlayerID: playerID, ActiveMatchID: activeID})
	return activeID, nil
}

func (e *Engine) questionCount(requested int) int {
	switch {
	case requested <= 0:
		return e.settings.DefaultQuestionCount
	case requested > e.settings.MaxQuestionCount:
		return e.settings.MaxQuestionCount
	}
	return requested
}

// Join puts the connection's player in the pool described by req and runs a
// matchmaking pass on that pool. A second join replaces the first.
func (e *Engine) Join(ctx context.Context, connID string, req JoinRequest) (QueueEntry, error) {
	playerID, err := e.playerFor(connID)
	if err != nil {
		return QueueEntry{}, err
	}
	if _, busy := e.registry.FindByPlayer(playerID); busy {
		return QueueEntry{}, ErrAlreadyInMatch
	}
	if req.Stake < 0 || (e.settings.MaxStake > 0 && req.Stake > e.settings.MaxStake) {
		return QueueEntry{}, ErrInvalidStake
	}
	if req.Stake > 0 {
		balance, err := e.ledger.Balance(ctx, playerID)
		if err != nil {
			return QueueEntry{}, fmt.Errorf("failed to read balance: %w", err)
		}
		if balance < req.Stake {
			return QueueEntry{}, accounts.ErrInsufficientFunds
		}
	}

	mode := req.Mode
	if mode == "" {
		mode = "classic"
	}
	quiz := QuizMeta{
		QuizID:          req.QuizID,
		CategoryID:      req.CategoryID,
		Mode:            mode,
		QuestionCount:   e.questionCount(req.QuestionCount),
		TimePerQuestion: seconds(e.settings.Timing.Question),
		EntryFee:        req.Stake,
	}
	entry := QueueEntry{
		PlayerID:     playerID,
		ConnectionID: connID,
		PoolID:       PoolKey(quiz),
		Quiz:         quiz,
		JoinedAt:     e.sched.Now(),
	}

	e.mu.Lock()
	prev, had := e.waiting[playerID]
	e.waiting[playerID] = entry
	e.mu.Unlock()
	if had {
		e.queue.Remove(ctx, prev.PoolID, prev)
	}
	e.queue.Enqueue(ctx, entry.PoolID, entry)

	log.Printf("[BATTLE] Player %s joined pool %s", playerID, entry.PoolID)
	e.deliver(connID, EventMatchmakingUpdate, MatchmakingUpdate{
		Status:      QueueSearching,
		Message:     "Searching for an opponent...",
		PoolID:      entry.PoolID,
		QueueLength: e.queue.Length(ctx, entry.PoolID),
	})

	e.matchmaker.TryMatch(ctx, entry.PoolID)
	return entry, nil
}

// Cancel takes the player out of matchmaking. Cancelling while not queued is
// not an error.
func (e *Engine) Cancel(ctx context.Context, connID string) error {
	playerID, err := e.playerFor(connID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	entry, ok := e.waiting[playerID]
	delete(e.waiting, playerID)
	e.mu.Unlock()
	if ok {
		e.queue.Remove(ctx, entry.PoolID, entry)
		log.Printf("[BATTLE] Player %s left pool %s", playerID, entry.PoolID)
	}

	e.deliver(connID, EventMatchmakingUpdate, MatchmakingUpdate{Status: QueueCancelled, Message: "Matchmaking cancelled"})
	return nil
}

// SubmitAnswer records an answer for the connection's player.
func (e *Engine) SubmitAnswer(connID string, req SubmitAnswerRequest) error {
	playerID, err := e.playerFor(connID)
	if err != nil {
		return err
	}
	m, ok := e.registry.Get(req.MatchID)
	if !ok {
		return ErrMatchNotFound
	}
	return m.Submit(playerID, req.QuestionIndex, req.Answer, req.TimeSpent)
}

// QueryStatus answers query-match-status for the connection's player.
func (e *Engine) QueryStatus(connID, matchID string) (StatusView, error) {
	playerID, err := e.playerFor(connID)
	if err != nil {
		return StatusView{}, err
	}
	return e.MatchStatus(playerID, matchID)
}

// MatchStatus looks up active and recently finished matches.
func (e *Engine) MatchStatus(playerID, matchID string) (StatusView, error) {
	m, ok := e.registry.Lookup(matchID)
	if !ok {
		return StatusView{}, ErrMatchNotFound
	}
	return m.StatusFor(playerID)
}

// Disconnect releases connID. A queued player is dequeued; a player in a
// match stays in it and times out until they reconnect.
func (e *Engine) Disconnect(ctx context.Context, connID string) {
	playerID, ok := e.directory.PlayerFor(connID)
	e.directory.Release(connID)
	if !ok {
		return
	}

	e.mu.Lock()
	entry, queued := e.waiting[playerID]
	if queued && entry.ConnectionID == connID {
		delete(e.waiting, playerID)
	} else {
		queued = false
	}
	e.mu.Unlock()

	if queued {
		e.queue.Remove(ctx, entry.PoolID, entry)
		log.Printf("[BATTLE] Player %s disconnected, removed from pool %s", playerID, entry.PoolID)
	}
}

func sameWaiting(a, b QueueEntry) bool {
	return a.sameEntry(b) && a.PoolID == b.PoolID && a.JoinedAt.Equal(b.JoinedAt)
}

// claim atomically takes both entries out of the waiting table. It fails,
// leaving the table untouched, if either entry has been cancelled or
// replaced since it was queued.
func (e *Engine) claim(a, b QueueEntry) (bool, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	wa, okA := e.waiting[a.PlayerID]
	wb, okB := e.waiting[b.PlayerID]
	okA = okA && sameWaiting(wa, a)
	okB = okB && sameWaiting(wb, b)
	if okA && okB {
		delete(e.waiting, a.PlayerID)
		delete(e.waiting, b.PlayerID)
	}
	return okA, okB
}

// requeue puts a claimed entry back in its pool, unless the player has since
// joined again, left, or lost the connection the entry belongs to.
func (e *Engine) requeue(ctx context.Context, entry QueueEntry) bool {
	h, ok := e.directory.Lookup(entry.PlayerID)
	if !ok || h.ConnectionID != entry.ConnectionID {
		return false
	}
	if _, busy := e.registry.FindByPlayer(entry.PlayerID); busy {
		return false
	}

	e.mu.Lock()
	if _, taken := e.waiting[entry.PlayerID]; taken {
		e.mu.Unlock()
		return false
	}
	e.waiting[entry.PlayerID] = entry
	e.mu.Unlock()

	e.queue.Enqueue(ctx, entry.PoolID, entry)
	return true
}

func (e *Engine) fetchQuestions(ctx context.Context, quiz QuizMeta) []Question {
	if e.questions != nil {
		fctx, cancel := context.WithTimeout(ctx, e.settings.FetchTimeout)
		qs, err := e.questions.Fetch(fctx, quiz.CategoryID, quiz.QuestionCount)
		cancel()
		if err != nil {
			log.Printf("[BATTLE] Question fetch for category %q failed, using built-in set: %v", quiz.CategoryID, err)
		}
		if len(qs) > 0 {
			return qs
		}
	}
	return questions.Fallback(quiz.QuestionCount)
}

func (e *Engine) connectionFor(entry QueueEntry) string {
	if h, ok := e.directory.Lookup(entry.PlayerID); ok && h.ConnectionID != "" {
		return h.ConnectionID
	}
	return entry.ConnectionID
}

// createMatch is the matchmaker's MatchFunc. Both entries are already out of
// the queue store.
func (e *Engine) createMatch(ctx context.Context, a, b QueueEntry) error {
	okA, okB := e.claim(a, b)
	if !okA || !okB {
		// the entry that is still current goes back in the store
		stale := &StaleEntryError{}
		if okA {
			e.queue.Enqueue(ctx, a.PoolID, a)
			stale.Keep = append(stale.Keep, a)
		}
		if okB {
			e.queue.Enqueue(ctx, b.PoolID, b)
			stale.Keep = append(stale.Keep, b)
		}
		return stale
	}

	m := newMatch(MatchParams{
		ID:        uuid.NewString(),
		PoolID:    a.PoolID,
		Quiz:      a.Quiz,
		Player1:   PlayerHandle{PlayerID: a.PlayerID, ConnectionID: e.connectionFor(a)},
		Player2:   PlayerHandle{PlayerID: b.PlayerID, ConnectionID: e.connectionFor(b)},
		Questions: e.fetchQuestions(ctx, a.Quiz),
		Timing:    e.settings.Timing,
		Scheduler: e.sched,
		Notifier:  e.notifier,
		OnFinish:  e.onMatchFinished,
	})

	if err := e.registry.Put(m); err != nil {
		for _, entry := range []QueueEntry{a, b} {
			e.requeue(ctx, entry)
		}
		return err
	}

	if err := e.ledger.ReserveEntryFees(ctx, m.ID, a.PlayerID, b.PlayerID, m.EntryFee); err != nil {
		e.registry.Discard(m.ID)
		e.abortPairing(ctx, err, a, b)
		return fmt.Errorf("match %s: %w", m.ID, err)
	}

	log.Printf("[BATTLE] Match %s created in %s: %s vs %s (fee %d)", m.ID, m.PoolID, a.PlayerID, b.PlayerID, m.EntryFee)
	m.Start()
	return nil
}

// abortPairing returns players to matchmaking after a failed reservation. A
// player who could not pay is told so and dropped; everyone else waits for
// the next pass.
func (e *Engine) abortPairing(ctx context.Context, err error, a, b QueueEntry) {
	short, insufficient := ledger.IsInsufficientFunds(err)
	if !insufficient {
		log.Printf("[BATTLE] Entry fee reservation failed for %s vs %s: %v", a.PlayerID, b.PlayerID, err)
	}

	for _, entry := range []QueueEntry{a, b} {
		conn := e.connectionFor(entry)
		if insufficient && entry.PlayerID == short {
			e.deliver(conn, EventMatchmakingError, ErrorPayload{Message: "Insufficient balance for this stake"})
			continue
		}
		if !e.requeue(ctx, entry) {
			continue
		}
		e.deliver(conn, EventMatchmakingUpdate, MatchmakingUpdate{
			Status:  QueueRetrying,
			Message: "Opponent unavailable, still searching...",
			PoolID:  entry.PoolID,
		})
	}
}

// onMatchFinished settles, announces the result, retires the match and
// archives it. Settlement failure never blocks the rest.
func (e *Engine) onMatchFinished(m *Match) {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	players := m.playerIDs()
	res := m.Result()
	out, err := e.ledger.Settle(ctx, ledger.Settlement{
		MatchID:      m.ID,
		Player1ID:    players[0],
		Player2ID:    players[1],
		EntryFee:     m.EntryFee,
		Player1Score: res.Player1Score,
		Player2Score: res.Player2Score,
	})
	settleErr := ""
	if err != nil {
		settleErr = err.Error()
		log.Printf("[LEDGER] ALERT settlement failed for match %s (fee %d): %v", m.ID, m.EntryFee, err)
	}

	for _, pid := range players {
		if ended, ok := m.EndedFor(pid); ok {
			e.deliver(m.ConnectionOf(pid), EventMatchEnded, ended)
		}
	}
	e.registry.Remove(m.ID)

	if res.IsDraw {
		log.Printf("[MATCH] %s finished: draw %d-%d", m.ID, res.Player1Score, res.Player2Score)
	} else {
		log.Printf("[MATCH] %s finished: %s won %d-%d", m.ID, res.WinnerID, res.Player1Score, res.Player2Score)
	}

	e.record(ctx, m, res, out, settleErr)
}

func (e *Engine) record(ctx context.Context, m *Match, res Result, out ledger.Outcome, settleErr string) {
	if e.recorder == nil {
		return
	}
	snap := m.snapshot()
	rec := history.MatchRecord{
		MatchID:         m.ID,
		PoolID:          m.PoolID,
		CategoryID:      m.Quiz.CategoryID,
		Player1ID:       snap.players[0],
		Player2ID:       snap.players[1],
		Player1Score:    res.Player1Score,
		Player2Score:    res.Player2Score,
		WinnerID:        res.WinnerID,
		IsDraw:          res.IsDraw,
		EntryFee:        m.EntryFee,
		TotalPool:       m.TotalPrizePool,
		Prize:           out.Prize,
		SettlementError: settleErr,
		StartedAt:       snap.startedAt,
		FinishedAt:      snap.finishedAt,
	}
	for i, pid := range snap.players {
		for idx, a := range snap.answers[i] {
			if idx < 0 || idx >= len(snap.questions) {
				continue
			}
			q := snap.questions[idx]
			rec.Answers = append(rec.Answers, history.AnswerRecord{
				PlayerID:      pid,
				QuestionIndex: idx,
				QuestionID:    q.ID,
				Answer:        a.Value,
				Correct:       IsCorrect(a, q),
				TimedOut:      a.TimedOut,
				TimeSpent:     a.TimeSpent,
				AnsweredAt:    a.Timestamp,
			})
		}
	}
	if err := e.recorder.Record(ctx, rec); err != nil {
		log.Printf("[HISTORY] Failed to record match %s: %v", m.ID, err)
	}
}

// SweepPools runs a matchmaking pass over every pool that may hold entries.
func (e *Engine) SweepPools(ctx context.Context) int {
	created := 0
	for _, pool := range e.queue.Pools(ctx) {
		if ctx.Err() != nil {
			break
		}
		created += e.matchmaker.TryMatch(ctx, pool)
	}
	return created
}

// ExpireQueued drops waiting players who joined before now minus the queue
// expiry, and store entries that no waiting player owns.
func (e *Engine) ExpireQueued(ctx context.Context, now time.Time) int {
	if e.settings.QueueExpiry <= 0 {
		return 0
	}
	cutoff := now.Add(-e.settings.QueueExpiry)

	var expired []QueueEntry
	e.mu.Lock()
	for pid, entry := range e.waiting {
		if entry.JoinedAt.Before(cutoff) {
			expired = append(expired, entry)
			delete(e.waiting, pid)
		}
	}
	e.mu.Unlock()

	for _, entry := range expired {
		e.queue.Remove(ctx, entry.PoolID, entry)
		e.deliver(entry.ConnectionID, EventMatchmakingUpdate, MatchmakingUpdate{
			Status:  QueueExpired,
			Message: "No opponent found, please try again",
			PoolID:  entry.PoolID,
		})
	}

	orphans := 0
	for _, pool := range e.queue.Pools(ctx) {
		for _, entry := range e.queue.Dequeue(ctx, pool) {
			if !entry.JoinedAt.Before(cutoff) || e.owns(entry) {
				continue
			}
			e.queue.Remove(ctx, pool, entry)
			orphans++
		}
	}
	if len(expired) > 0 || orphans > 0 {
		log.Printf("[QUEUE] Expired %d waiting players, removed %d orphaned entries", len(expired), orphans)
	}
	return len(expired) + orphans
}

// owns reports whether a current waiting entry would be hit by removing entry.
func (e *Engine) owns(entry QueueEntry) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.waiting[entry.PlayerID]
	return ok && w.sameEntry(entry)
}

// IsWaiting reports whether the player is queued.
func (e *Engine) IsWaiting(playerID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.waiting[playerID]
	return ok
}

func (e *Engine) QueueLength(ctx context.Context, poolID string) int {
	return e.queue.Length(ctx, poolID)
}

func (e *Engine) ActiveMatches() int {
	return e.registry.ActiveCount()
}

// QueueDegraded reports whether the queue store is running on its fallback.
func (e *Engine) QueueDegraded() bool {
	if d, ok := e.queue.(interface{ Degraded() bool }); ok {
		return d.Degraded()
	}
	return false
}

// IsUserError reports whether err is a rejection the client caused, as
// opposed to an internal failure.
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrNotRegistered, ErrAlreadyInMatch, ErrMatchNotFound, ErrNotParticipant,
		ErrMatchNotPlaying, ErrWrongQuestion, ErrAlreadyAnswered, ErrInvalidStake,
		accounts.ErrInsufficientFunds,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
