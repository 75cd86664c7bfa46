package http

import (
	"net/http"
	wsDelivery "wichat/internal/delivery/websocket"

	"github.com/go-chi/chi/v5"
)

func MapHttpRoutes(
	r *chi.Mux,
	messageHandler *MessageHandler,
	authHandler *AuthHandler,
	websocketHandler *wsDelivery.WebsocketHandler,
	authMiddleware *AuthMiddleware,
) {
	r.Handle("/ws/{userId}", http.HandlerFunc(websocketHandler.HandleWebSocket))

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", http.HandlerFunc(authHandler.Signup))
		r.Post("/login", http.HandlerFunc(authHandler.Login))
		r.Post("/refresh", http.HandlerFunc(authHandler.RefreshToken))
		r.Post("/logout", http.HandlerFunc(authHandler.Logout))

		// Protected auth routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Get("/check", http.HandlerFunc(authHandler.Check))
			r.Put("/update-profile", http.HandlerFunc(authHandler.UpdateProfile))
			r.Post("/logout-all", http.HandlerFunc(authHandler.LogoutAllDevices))
		})
	})

	// Message routes (protected). Fixed paths are registered before the
	// parameterized /{peerId} so literal segments are never captured as
	// a peer id.
	r.Route("/messages", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Get("/users", http.HandlerFunc(messageHandler.ListUsers))
		r.Get("/unread-count", http.HandlerFunc(messageHandler.UnreadCounts))
		r.Post("/send/{peerId}", http.HandlerFunc(messageHandler.Send))
		r.Patch("/mark-read/{peerId}", http.HandlerFunc(messageHandler.MarkRead))
		r.Get("/{peerId}", http.HandlerFunc(messageHandler.GetConversation))
	})
}
