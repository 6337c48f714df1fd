package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tradesense-go/internal/challenge"
	"tradesense-go/internal/config"
	"tradesense-go/internal/models"
)

type stubQuotes struct {
	price float64
	err   error
}

func (s stubQuotes) Quote(ctx context.Context, ticker string) (float64, error) {
	return s.price, s.err
}

type stubScraper struct {
	price float64
	err   error
}

func (s stubScraper) PriceIAM(ctx context.Context) (float64, error) {
	return s.price, s.err
}

type stubAdvisor struct {
	reply string
	err   error
}

func (s stubAdvisor) Reply(ctx context.Context, message string) (string, error) {
	return s.reply, s.err
}

// setupHandler builds a Handler backed by a real service on an isolated
// in-memory database, with stubbed external collaborators.
func setupHandler(t *testing.T) (*gorm.DB, *Handler) {
	dsn := fmt.Sprintf("file:api_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Challenge{}, &models.Trade{}, &models.PlatformSetting{}))

	log := zap.NewNop()
	cfg := config.Challenge{
		Plans:          map[string]float64{"starter": 5000, "standard": 10000},
		DefaultPlan:    "starter",
		DailyLossLimit: 0.05,
		TotalLossLimit: 0.10,
	}
	svc := challenge.NewService(log, db, challenge.NewRuleEngine(log), cfg)

	h := NewHandler(log, db, svc,
		stubQuotes{price: 187.42},
		stubScraper{price: 97.80},
		stubAdvisor{reply: "hold"})
	return db, h
}

func doJSON(t *testing.T, h *Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func createTestChallenge(t *testing.T, db *gorm.DB) *models.Challenge {
	user := &models.User{Username: "trader", Email: "trader@example.com"}
	require.NoError(t, db.Create(user).Error)
	ch := &models.Challenge{
		UserID:         user.ID,
		StartBalance:   10000,
		CurrentEquity:  10000,
		Status:         models.StatusActive,
		DailyLossLimit: 0.05,
		TotalLossLimit: 0.10,
	}
	require.NoError(t, db.Create(ch).Error)
	return ch
}

func TestTradeHandler_Success(t *testing.T) {
	db, h := setupHandler(t)
	ch := createTestChallenge(t, db)

	rec := doJSON(t, h, http.MethodPost, "/api/trade", map[string]any{
		"challenge_id": ch.ID,
		"symbol":       "aapl",
		"type":         "buy",
		"quantity":     10,
		"open_price":   50,
		"close_price":  61,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	out := decodeBody(t, rec)
	assert.Equal(t, "Success", out["status"])

	trade := out["trade"].(map[string]any)
	assert.Equal(t, "AAPL", trade["symbol"])
	assert.Equal(t, 110.0, trade["profit_loss"])

	challengeOut := out["challenge"].(map[string]any)
	assert.Equal(t, 10110.0, challengeOut["current_equity"])
	assert.Equal(t, "active", challengeOut["status"])
}

func TestTradeHandler_MissingFields(t *testing.T) {
	db, h := setupHandler(t)
	createTestChallenge(t, db)

	rec := doJSON(t, h, http.MethodPost, "/api/trade", map[string]any{
		"symbol": "AAPL",
		"type":   "buy",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	out := decodeBody(t, rec)
	assert.Contains(t, out["error"], "missing fields")
	assert.Contains(t, out["error"], "challenge_id")

	// Rejected before any core logic: nothing persisted.
	var n int64
	require.NoError(t, db.Model(&models.Trade{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}

func TestTradeHandler_BadSide(t *testing.T) {
	db, h := setupHandler(t)
	ch := createTestChallenge(t, db)

	rec := doJSON(t, h, http.MethodPost, "/api/trade", map[string]any{
		"challenge_id": ch.ID,
		"symbol":       "AAPL",
		"type":         "hold",
		"quantity":     1,
		"open_price":   1,
		"close_price":  1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTradeHandler_UnknownChallenge(t *testing.T) {
	_, h := setupHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/trade", map[string]any{
		"challenge_id": 424242,
		"symbol":       "AAPL",
		"type":         "buy",
		"quantity":     1,
		"open_price":   1,
		"close_price":  2,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuyChallengeHandler(t *testing.T) {
	db, h := setupHandler(t)
	user := &models.User{Username: "buyer", Email: "buyer@example.com"}
	require.NoError(t, db.Create(user).Error)

	rec := doJSON(t, h, http.MethodPost, "/api/buy-challenge", map[string]any{
		"user_id":   user.ID,
		"plan_type": "standard",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	out := decodeBody(t, rec)
	assert.Equal(t, "Success", out["status"])
	assert.NotZero(t, out["challenge_id"])

	rec = doJSON(t, h, http.MethodPost, "/api/buy-challenge", map[string]any{"plan_type": "standard"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/buy-challenge", map[string]any{"user_id": 999})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeaderboardHandler(t *testing.T) {
	db, h := setupHandler(t)
	createTestChallenge(t, db)

	rec := doJSON(t, h, http.MethodGet, "/api/leaderboard", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	out := decodeBody(t, rec)
	entries := out["leaderboard"].([]any)
	assert.Len(t, entries, 1)
}

func TestUsersHandlers(t *testing.T) {
	_, h := setupHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/users", map[string]any{
		"name":  "alice",
		"email": "Alice@Example.com",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	out := decodeBody(t, rec)
	assert.Equal(t, "ok", out["status"])

	// Duplicate rejected.
	rec = doJSON(t, h, http.MethodPost, "/api/users", map[string]any{
		"name":  "alice",
		"email": "alice@example.com",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Missing email rejected.
	rec = doJSON(t, h, http.MethodPost, "/api/users", map[string]any{"name": "bob"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var users []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0]["name"])
	assert.Equal(t, "alice@example.com", users[0]["email"])
	assert.Equal(t, "active", users[0]["status"])
}

func TestPlatformSettingsHandler(t *testing.T) {
	_, h := setupHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/api/platform-settings", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	out := decodeBody(t, rec)
	assert.Nil(t, out["paypal_email"])

	rec = doJSON(t, h, http.MethodPost, "/api/platform-settings", map[string]any{
		"paypal_email": "Payouts@Example.com",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/platform-settings", nil)
	out = decodeBody(t, rec)
	assert.Equal(t, "payouts@example.com", out["paypal_email"])
}

func TestPriceHandler(t *testing.T) {
	_, h := setupHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/api/price/AAPL", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	out := decodeBody(t, rec)
	assert.Equal(t, 187.42, out["price"])

	// IAM routes through the scraper.
	rec = doJSON(t, h, http.MethodGet, "/api/price/IAM", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	out = decodeBody(t, rec)
	assert.Equal(t, 97.8, out["price"])
}

func TestPriceHandler_UpstreamFailure(t *testing.T) {
	db, h := setupHandler(t)
	_ = db
	h.quotes = stubQuotes{err: errors.New("feed down")}

	rec := doJSON(t, h, http.MethodGet, "/api/price/AAPL", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	out := decodeBody(t, rec)
	assert.Contains(t, out["error"], "feed down")
}

func TestChatHandler(t *testing.T) {
	_, h := setupHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/chat", map[string]any{"message": "should I buy?"})
	assert.Equal(t, http.StatusOK, rec.Code)
	out := decodeBody(t, rec)
	assert.Equal(t, "hold", out["reply"])

	rec = doJSON(t, h, http.MethodPost, "/api/chat", map[string]any{"message": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	_, h := setupHandler(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/trade", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}
