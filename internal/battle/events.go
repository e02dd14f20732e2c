package battle

// Outbound event types.
const (
	EventIdentityRegistered = "identity-registered"
	EventMatchmakingUpdate  = "matchmaking-update"
	EventMatchmakingError   = "matchmaking-error"
	EventOpponentFound      = "opponent-found"
	EventMatchStarting      = "match-starting"
	EventMatchReady         = "match-ready"
	EventMatchStarted       = "match-started"
	EventOpponentAnswered   = "opponent-answered"
	EventNextQuestion       = "next-question"
	EventMatchEnded         = "match-ended"
	EventMatchStatus        = "match-status"
	EventRoomError          = "room-error"
	EventPong               = "pong"
)

// Matchmaking statuses carried by matchmaking-update.
const (
	QueueSearching = "searching"
	QueueCancelled = "cancelled"
	QueueRetrying  = "retrying"
	QueueExpired   = "expired"
)

type IdentityRegistered struct {
	PlayerID      string `json:"playerId"`
	ActiveMatchID string `json:"activeMatchId,omitempty"`
}

type MatchmakingUpdate struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	PoolID      string `json:"poolId,omitempty"`
	QueueLength int    `json:"queueLength,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type OpponentFound struct {
	MatchID        string `json:"matchId"`
	Opponent       string `json:"opponent"`
	QuestionCount  int    `json:"questionCount"`
	EntryFee       int64  `json:"entryFee"`
	TotalPrizePool int64  `json:"totalPrizePool"`
}

type MatchStarting struct {
	MatchID   string `json:"matchId"`
	Countdown int    `json:"countdown"`
}

type MatchReady struct {
	MatchID string `json:"matchId"`
}

// QuestionView is a question as shown to players: no correct index.
type QuestionView struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

func viewOf(q Question) QuestionView {
	return QuestionView{ID: q.ID, Text: q.Text, Options: q.Options}
}

// RoundQuestion is the payload of both match-started and next-question.
type RoundQuestion struct {
	MatchID        string       `json:"matchId"`
	QuestionIndex  int          `json:"questionIndex"`
	Question       QuestionView `json:"question"`
	TimeLimit      int          `json:"timeLimit"`
	TotalQuestions int          `json:"totalQuestions"`
}

type OpponentAnswered struct {
	MatchID       string `json:"matchId"`
	QuestionIndex int    `json:"questionIndex"`
	Answer        any    `json:"answer"`
	TimedOut      bool   `json:"timedOut"`
}

type MatchEnded struct {
	MatchID       string  `json:"matchId"`
	MyScore       int     `json:"myScore"`
	OpponentScore int     `json:"opponentScore"`
	Winner        *string `json:"winner"`
	IsDraw        bool    `json:"isDraw"`
	MyPosition    string  `json:"myPosition"`
}

// StatusView answers query-match-status for one participant.
type StatusView struct {
	MatchID        string        `json:"matchId"`
	Status         MatchStatus   `json:"status"`
	TotalQuestions int           `json:"totalQuestions"`
	QuestionIndex  int           `json:"questionIndex"`
	Question       *QuestionView `json:"question,omitempty"`
	TimeRemaining  float64       `json:"timeRemaining,omitempty"`
	Answered       bool          `json:"answered"`
	MyScore        int           `json:"myScore"`
	OpponentScore  int           `json:"opponentScore"`
	Result         *MatchEnded   `json:"result,omitempty"`
}
