package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"chatbackend/internal/config"
	"chatbackend/internal/domain"
	"chatbackend/internal/identity"
	"chatbackend/internal/service"
	"chatbackend/internal/ws"
)

// Deps bundles the constructed components the router wires together.
type Deps struct {
	Cfg      *config.Config
	Resolver *identity.Resolver
	Gateway  *ws.Gateway

	Auth     *service.AuthService
	Users    *service.UserService
	Chats    *service.ChatService
	Messages *service.MessageService
}

// NewRouter constructs the main HTTP router and wires routes, services, and
// middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": d.Cfg.AppName, "version": "1.0.0"})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api", func(r chi.Router) {
		// Local auth fallback (no auth required)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handleRegister(d.Auth))
			r.Post("/login", handleLogin(d.Auth))
		})

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Resolver))

			r.Post("/auth/logout", handleLogout(d.Auth))
			r.Get("/auth/me", handleMe())

			r.Route("/users", func(r chi.Router) {
				r.Get("/", handleListUsers(d.Users))
				r.Get("/check-username", handleCheckUsername(d.Users))
				r.Put("/profile", handleUpdateProfile(d.Users))
				r.Post("/block/{userID}", handleBlock(d.Users))
				r.Delete("/block/{userID}", handleUnblock(d.Users))
			})

			r.Route("/chats", func(r chi.Router) {
				r.Get("/", handleListChats(d.Chats))
				r.Post("/", handleAccessChat(d.Chats))
				r.Post("/group", handleCreateGroup(d.Chats))
				r.Put("/group/rename", handleRenameGroup(d.Chats))
				r.Put("/group/add", handleAddToGroup(d.Chats))
				r.Put("/group/remove", handleRemoveFromGroup(d.Chats))
				r.Delete("/group/{chatID}", handleDeleteGroup(d.Chats))
			})

			r.Route("/messages", func(r chi.Router) {
				r.Get("/{chatID}", handleListMessages(d.Messages))
				r.Post("/", handleSendMessage(d.Messages))
				r.Put("/seen/{chatID}", handleMarkSeen(d.Messages))
				r.Put("/reaction/{messageID}", handleReaction(d.Messages))
			})

			r.Mount("/uploads", UploadRoutes(d.Cfg))
		})
	})

	// WebSocket endpoint; identity is announced in-band via setup.
	r.Get("/ws", d.Gateway.Handler())

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain sentinels to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrInternal):
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"message": err.Error()})
}
