package api

import "net/http"

// Routes builds the API mux with permissive CORS, matching what the browser
// frontend expects.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/trade", h.TradeHandler)
	mux.HandleFunc("POST /api/buy-challenge", h.BuyChallengeHandler)
	mux.HandleFunc("GET /api/leaderboard", h.LeaderboardHandler)
	mux.HandleFunc("GET /api/users", h.UsersHandler)
	mux.HandleFunc("POST /api/users", h.CreateUserHandler)
	mux.HandleFunc("GET /api/platform-settings", h.PlatformSettingsHandler)
	mux.HandleFunc("POST /api/platform-settings", h.PlatformSettingsHandler)
	mux.HandleFunc("GET /api/price/{ticker}", h.PriceHandler)
	mux.HandleFunc("POST /api/chat", h.ChatHandler)

	return corsMiddleware(mux)
}

// corsMiddleware adds permissive CORS headers and answers OPTIONS preflight
// requests before they reach the mux.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
