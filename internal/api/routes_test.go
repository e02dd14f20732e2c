package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quizduel/backend/internal/auth"
	"github.com/quizduel/backend/internal/battle"
	"github.com/quizduel/backend/internal/config"
	"github.com/quizduel/backend/internal/models"
	"github.com/quizduel/backend/internal/ws"
)

type fakeHistory struct {
	rows []models.BattleMatch
}

func (f fakeHistory) RecentForPlayer(_ context.Context, _ string, _ int) ([]models.BattleMatch, error) {
	return f.rows, nil
}

func setupRouter(t *testing.T) (*gin.Engine, *auth.Verifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{Environment: "test", QuestionTimeSeconds: 15, DefaultQuestionCount: 5, MaxQuestionCount: 20, WinnerSharePercent: 80}
	hub := ws.NewHub()
	engine := battle.NewEngine(battle.Settings{}, battle.Deps{Transport: hub})
	verifier := auth.NewVerifier("secret")

	history := fakeHistory{rows: []models.BattleMatch{{
		ID:           "m1",
		Player1ID:    "alice",
		Player2ID:    "bob",
		Player1Score: 40,
		Player2Score: 20,
		WinnerID:     sql.NullString{String: "alice", Valid: true},
		EntryFee:     10,
		Prize:        16,
		FinishedAt:   time.Now(),
	}}}

	router := gin.New()
	SetupRoutes(router, Deps{Config: cfg, Engine: engine, Hub: hub, Verifier: verifier, History: history})
	return router, verifier
}

func get(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthReportsEngineState(t *testing.T) {
	router, _ := setupRouter(t)
	w := get(router, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["queue_degraded"] != false || body["active_matches"] != float64(0) {
		t.Errorf("health body = %v", body)
	}
}

func TestConfigExposesRules(t *testing.T) {
	router, _ := setupRouter(t)
	w := get(router, "/api/v1/config", "")
	var body map[string]any
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["winner_share_percent"] != float64(80) || body["question_time_seconds"] != float64(15) {
		t.Errorf("config body = %v", body)
	}
}

func TestQueueStatusRequiresPool(t *testing.T) {
	router, _ := setupRouter(t)
	if w := get(router, "/api/v1/battle/queue", ""); w.Code != http.StatusBadRequest {
		t.Errorf("missing pool status = %d", w.Code)
	}
	w := get(router, "/api/v1/battle/queue?pool=cat:x:mode:classic:q:5:stake:0", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["length"] != float64(0) {
		t.Errorf("queue body = %v", body)
	}
}

func TestMatchStatusNeedsAuth(t *testing.T) {
	router, verifier := setupRouter(t)
	if w := get(router, "/api/v1/battle/matches/abc", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d", w.Code)
	}
	token, _ := verifier.Issue("alice", time.Hour)
	if w := get(router, "/api/v1/battle/matches/abc", token); w.Code != http.StatusNotFound {
		t.Errorf("unknown match status = %d", w.Code)
	}
}

func TestHistoryFromPlayersPointOfView(t *testing.T) {
	router, verifier := setupRouter(t)
	token, _ := verifier.Issue("bob", time.Hour)
	w := get(router, "/api/v1/battle/history", token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Matches []map[string]any `json:"matches"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Matches) != 1 {
		t.Fatalf("matches = %v", body.Matches)
	}
	m := body.Matches[0]
	if m["result"] != "lost" || m["opponent"] != "alice" || m["my_score"] != float64(20) {
		t.Errorf("bob's history row = %v", m)
	}
}

func TestWebSocketRouteRejectsBadToken(t *testing.T) {
	router, _ := setupRouter(t)
	if w := get(router, "/api/v1/battle/ws?token=nope", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
}
