package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"wichat/infrastructure/cache"
	"wichat/infrastructure/db"
	"wichat/infrastructure/media"
	"wichat/infrastructure/ws"
	httpHandler "wichat/internal/delivery/http"
	wsDelivery "wichat/internal/delivery/websocket"
	"wichat/internal/repository"
	"wichat/internal/usecase"
	"wichat/pkg/jwt"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("godotenv: error loading .env file")
	}

	log, err := newLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	mongoDb, err := db.NewMongoStore(ctx, os.Getenv("MONGODB_URI"), os.Getenv("MONGODB_DATABASE"))
	if err != nil {
		log.Fatal("mongo connect failed", zap.Error(err))
	}
	defer mongoDb.Close(ctx)

	if err := mongoDb.EnsureIndexes(ctx); err != nil {
		log.Fatal("ensure indexes failed", zap.Error(err))
	}

	log.Info("connected to MongoDB")

	// Repositories
	userRepo := repository.NewUserRepository(*mongoDb.DB)
	messageRepo := repository.NewMessageRepository(*mongoDb.DB)
	refreshTokenRepo := repository.NewRefreshTokenRepository(*mongoDb.DB)

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "your-secret-key-change-this-in-production" // Default for development
		log.Warn("using default JWT secret, set JWT_SECRET in .env for production")
	}

	// Access token: 15 minutes, Refresh token: 30 days
	jwtManager := jwt.NewJWTManager(jwtSecret, 15*time.Minute, 30*24*time.Hour)

	// Media store collaborator
	uploader := media.NewCloudinaryUploader(
		os.Getenv("CLOUDINARY_CLOUD_NAME"),
		os.Getenv("CLOUDINARY_UPLOAD_PRESET"),
		log,
	)

	// Advisory unread-count cache: Redis when configured, in-memory
	// otherwise. The ledger stays the source of truth either way.
	var unreadCache cache.UnreadCache
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		log.Info("using Redis unread cache", zap.String("addr", redisAddr))
		unreadCache = cache.NewRedisUnreadCache(redisAddr, time.Minute, log)
	} else {
		log.Info("using in-memory unread cache")
		unreadCache = cache.NewMemUnreadCache(time.Minute, 5*time.Minute)
	}

	// Presence registry
	hub := ws.NewHub(log)

	// Delivery router fans ledger changes out over the registry.
	pusher := wsDelivery.NewPusher(hub, log)
	router := usecase.NewDeliveryRouter(hub, pusher, messageRepo, log)

	// Use cases
	authUc := usecase.NewAuthUsecase(userRepo, refreshTokenRepo, jwtManager)
	userUc := usecase.NewUserUsecase(userRepo, uploader)
	messageUc := usecase.NewMessageUsecase(messageRepo, userRepo, uploader, router, unreadCache, usecase.MessageConfig{
		RequireContent: os.Getenv("MESSAGE_REQUIRE_CONTENT") == "true",
	})

	hub.SetOnPresenceChange(router.BroadcastPresence)
	hub.SetOnClientRegister(func(client *ws.UserClient) {
		router.NotifyInitialState(ctx, client.UserId)
	})
	hub.SetOnClientUnregister(func(client *ws.UserClient) error {
		return userUc.HandleUnregisterClient(ctx, client.UserId)
	})

	go hub.Run()

	log.Info("websocket hub is running")

	clientOrigin := os.Getenv("CLIENT_ORIGIN")
	if clientOrigin == "" {
		clientOrigin = "http://localhost:3000"
	}

	mux := chi.NewRouter()
	mux.Use(middleware.Logger)
	mux.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", clientOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// Handlers
	websocketH := wsDelivery.NewWebsocketHandler(hub, userUc, log)
	messageH := httpHandler.NewMessageHandler(messageUc, userUc, log)
	authH := httpHandler.NewAuthHandler(authUc, userUc, log)
	authMiddleware := httpHandler.NewAuthMiddleware(authUc)

	httpHandler.MapHttpRoutes(mux, messageH, authH, websocketH, authMiddleware)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Info("HTTP server is running", zap.String("port", port))

	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
