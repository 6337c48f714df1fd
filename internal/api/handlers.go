package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"tradesense-go/internal/advisor"
	"tradesense-go/internal/challenge"
	"tradesense-go/internal/market"
	"tradesense-go/internal/models"
)

// Handler holds dependencies for the API endpoints.
type Handler struct {
	log     *zap.Logger
	db      *gorm.DB
	svc     *challenge.Service
	quotes  market.QuoteClientInterface
	scraper market.ScraperInterface
	advisor advisor.ClientInterface
}

// NewHandler creates a new Handler.
func NewHandler(log *zap.Logger, db *gorm.DB, svc *challenge.Service, quotes market.QuoteClientInterface, scraper market.ScraperInterface, adv advisor.ClientInterface) *Handler {
	return &Handler{
		log:     log,
		db:      db,
		svc:     svc,
		quotes:  quotes,
		scraper: scraper,
		advisor: adv,
	}
}

func (h *Handler) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respond(w, status, map[string]string{"error": msg})
}

// statusForError maps the domain error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case challenge.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, challenge.ErrChallengeNotFound), errors.Is(err, challenge.ErrUserNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// tradeRequest is the wire shape for POST /api/trade. Pointer fields so that
// missing keys are rejected before any core logic runs.
type tradeRequest struct {
	ChallengeID *uint    `json:"challenge_id"`
	Symbol      *string  `json:"symbol"`
	Type        *string  `json:"type"`
	Quantity    *int     `json:"quantity"`
	OpenPrice   *float64 `json:"open_price"`
	ClosePrice  *float64 `json:"close_price"`
}

func (r *tradeRequest) missingFields() []string {
	var missing []string
	if r.ChallengeID == nil {
		missing = append(missing, "challenge_id")
	}
	if r.Symbol == nil {
		missing = append(missing, "symbol")
	}
	if r.Type == nil {
		missing = append(missing, "type")
	}
	if r.Quantity == nil {
		missing = append(missing, "quantity")
	}
	if r.OpenPrice == nil {
		missing = append(missing, "open_price")
	}
	if r.ClosePrice == nil {
		missing = append(missing, "close_price")
	}
	return missing
}

// TradeHandler executes a trade against a challenge and returns the trade
// together with the challenge's post-evaluation equity and status.
func (h *Handler) TradeHandler(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if missing := req.missingFields(); len(missing) > 0 {
		h.respondError(w, http.StatusBadRequest, "missing fields: "+strings.Join(missing, ", "))
		return
	}

	result, err := h.svc.ExecuteTrade(challenge.TradeRequest{
		ChallengeID: *req.ChallengeID,
		Symbol:      *req.Symbol,
		Side:        *req.Type,
		Quantity:    *req.Quantity,
		OpenPrice:   *req.OpenPrice,
		ClosePrice:  *req.ClosePrice,
	})
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			h.log.Error("Trade execution failed", zap.Error(err))
			h.respondError(w, status, "trade execution failed")
			return
		}
		h.respondError(w, status, err.Error())
		return
	}

	h.respond(w, http.StatusOK, map[string]any{
		"status": "Success",
		"trade": map[string]any{
			"id":          result.Trade.ID,
			"symbol":      result.Trade.Symbol,
			"type":        result.Trade.Side,
			"quantity":    result.Trade.Quantity,
			"open_price":  result.Trade.OpenPrice,
			"close_price": result.Trade.ClosePrice,
			"profit_loss": result.Trade.ProfitLoss,
		},
		"challenge": map[string]any{
			"id":             result.Challenge.ID,
			"current_equity": result.Challenge.CurrentEquity,
			"status":         result.Challenge.Status,
		},
	})
}

// buyChallengeRequest is the wire shape for POST /api/buy-challenge.
type buyChallengeRequest struct {
	UserID   *uint  `json:"user_id"`
	PlanType string `json:"plan_type"`
}

// BuyChallengeHandler creates a new challenge for a user from a plan.
func (h *Handler) BuyChallengeHandler(w http.ResponseWriter, r *http.Request) {
	var req buyChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == nil {
		h.respondError(w, http.StatusBadRequest, "user_id must be an integer")
		return
	}

	ch, err := h.svc.BuyChallenge(*req.UserID, req.PlanType)
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			h.log.Error("Challenge purchase failed", zap.Error(err))
			h.respondError(w, status, "challenge purchase failed")
			return
		}
		h.respondError(w, status, err.Error())
		return
	}

	h.respond(w, http.StatusOK, map[string]any{
		"status":       "Success",
		"challenge_id": ch.ID,
	})
}

// LeaderboardHandler returns the top 10 traders by percentage profit.
func (h *Handler) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Leaderboard(10)
	if err != nil {
		h.log.Error("Failed to build leaderboard", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to build leaderboard")
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"leaderboard": entries})
}

// usersListEntry is one row of the GET /api/users response.
type usersListEntry struct {
	ID     uint                   `json:"id"`
	Name   string                 `json:"name"`
	Email  string                 `json:"email"`
	Status models.ChallengeStatus `json:"status"`
}

// UsersHandler lists users with the status of their most recent challenge.
func (h *Handler) UsersHandler(w http.ResponseWriter, r *http.Request) {
	var users []models.User
	if err := h.db.Limit(50).Find(&users).Error; err != nil {
		h.log.Error("Failed to list users", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	results := make([]usersListEntry, 0, len(users))
	for _, u := range users {
		status := models.StatusActive
		var last models.Challenge
		err := h.db.Where("user_id = ?", u.ID).Order("start_date DESC").First(&last).Error
		if err == nil {
			status = last.Status
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.log.Error("Failed to load latest challenge", zap.Uint("user_id", u.ID), zap.Error(err))
			h.respondError(w, http.StatusInternalServerError, "failed to list users")
			return
		}
		results = append(results, usersListEntry{
			ID:     u.ID,
			Name:   u.Username,
			Email:  u.Email,
			Status: status,
		})
	}
	h.respond(w, http.StatusOK, results)
}

// createUserRequest is the wire shape for POST /api/users.
type createUserRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// CreateUserHandler registers a challenge owner. Authentication is handled
// elsewhere; this only records the identity.
func (h *Handler) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.TrimSpace(req.Username)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" {
		h.respondError(w, http.StatusBadRequest, "name and email are required")
		return
	}

	var existing models.User
	err := h.db.Where("LOWER(email) = ? OR LOWER(username) = LOWER(?)", email, name).First(&existing).Error
	if err == nil {
		h.respondError(w, http.StatusConflict, "username or email already in use")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		h.log.Error("Failed to check existing user", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	user := models.User{Username: name, Email: email}
	if err := h.db.Create(&user).Error; err != nil {
		h.log.Error("Failed to create user", zap.Error(err))
		h.respondError(w, http.StatusConflict, "username or email already in use")
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"status": "ok", "user_id": user.ID})
}

// PlatformSettingsHandler reads or updates the single platform settings row.
func (h *Handler) PlatformSettingsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		var row models.PlatformSetting
		err := h.db.Order("id ASC").First(&row).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			h.log.Error("Failed to load platform settings", zap.Error(err))
			h.respondError(w, http.StatusInternalServerError, "failed to load platform settings")
			return
		}
		h.respond(w, http.StatusOK, map[string]any{"paypal_email": row.PaypalEmail})
		return
	}

	var req struct {
		PaypalEmail string `json:"paypal_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.PaypalEmail))
	var value *string
	if email != "" {
		value = &email
	}

	var row models.PlatformSetting
	err := h.db.Order("id ASC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = models.PlatformSetting{PaypalEmail: value}
		err = h.db.Create(&row).Error
	} else if err == nil {
		err = h.db.Model(&row).Update("paypal_email", value).Error
		row.PaypalEmail = value
	}
	if err != nil {
		h.log.Error("Failed to save platform settings", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to save platform settings")
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"status": "ok", "paypal_email": row.PaypalEmail})
}

// PriceHandler returns the current price for a ticker. Maroc Telecom (IAM)
// goes through the Casablanca scraper, everything else through the quote
// endpoint.
func (h *Handler) PriceHandler(w http.ResponseWriter, r *http.Request) {
	ticker := r.PathValue("ticker")
	var (
		price float64
		err   error
	)
	if strings.EqualFold(ticker, "IAM") {
		price, err = h.scraper.PriceIAM(r.Context())
	} else {
		price, err = h.quotes.Quote(r.Context(), ticker)
	}
	if err != nil {
		h.log.Warn("Price lookup failed", zap.String("ticker", ticker), zap.Error(err))
		h.respond(w, http.StatusBadGateway, map[string]any{"ticker": ticker, "error": err.Error()})
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"ticker": ticker, "price": price})
}

// ChatHandler proxies a user message to the trading advisor.
func (h *Handler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		h.respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := h.advisor.Reply(r.Context(), message)
	if err != nil {
		h.log.Warn("Advisor request failed", zap.Error(err))
		h.respondError(w, http.StatusBadGateway, "advisor unavailable")
		return
	}
	h.respond(w, http.StatusOK, map[string]string{"reply": reply})
}
