// Package rest wires the chi router for the chat HTTP API.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"chat-backend/application/services"
	"chat-backend/interfaces/http/rest/handlers"
	"chat-backend/interfaces/http/rest/middleware"
	"chat-backend/pkg/auth"
)

// Router creates and configures the HTTP router
type Router struct {
	chatService *services.ChatService
	validator   *auth.JWTValidator
	logger      *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(chatService *services.ChatService, validator *auth.JWTValidator, logger *zap.Logger) *Router {
	return &Router{
		chatService: chatService,
		validator:   validator,
		logger:      logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", rt.healthCheck)

	router.Route("/api/v1/chat", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.validator, rt.logger))

		chatHandler := handlers.NewChatHandler(rt.chatService, rt.logger)

		r.Post("/profile", chatHandler.CreateProfile)

		r.Route("/rooms", func(r chi.Router) {
			r.Post("/", chatHandler.CreateGroupRoom)
			r.Post("/one-to-one", chatHandler.CreateOneToOneRoom)
			r.Post("/support", chatHandler.CreateSupportRoom)
			r.Get("/", chatHandler.ListRooms)
			r.Get("/{roomID}", chatHandler.GetRoom)
			r.Put("/{roomID}", chatHandler.UpdateRoom)
			r.Post("/{roomID}/leave", chatHandler.LeaveRoom)
			r.Get("/{roomID}/members", chatHandler.ListMembers)
			r.Post("/{roomID}/members", chatHandler.AddMembers)
			r.Delete("/{roomID}/members/{userID}", chatHandler.RemoveMember)
			r.Get("/{roomID}/messages", chatHandler.ListMessages)
			r.Post("/{roomID}/messages", chatHandler.SendMessage)
			r.Put("/{roomID}/messages/{messageID}", chatHandler.UpdateMessage)
			r.Delete("/{roomID}/messages/{messageID}", chatHandler.DeleteMessage)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
