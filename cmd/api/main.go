package main

import (
	"context"
	stderrors "errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"
	"gorm.io/gorm"

	fbapp "firebase.google.com/go/v4"

	"cakemarket/internal/adapter/api"
	"cakemarket/internal/adapter/api/handler"
	apimiddleware "cakemarket/internal/adapter/api/middleware"
	"cakemarket/internal/adapter/api/router"
	"cakemarket/internal/adapter/repository"
	domainrepo "cakemarket/internal/domain/repository"
	"cakemarket/internal/domain/service"
	"cakemarket/internal/infrastructure/auth"
	"cakemarket/internal/infrastructure/database"
	"cakemarket/internal/infrastructure/firebase"
	"cakemarket/internal/infrastructure/pubsub"
	"cakemarket/internal/infrastructure/ratelimit"
	"cakemarket/internal/infrastructure/websocket"
	"cakemarket/internal/usecase"
	"cakemarket/pkg/config"
	"cakemarket/pkg/logger"
)

type repositories struct {
	users    domainrepo.UserRepository
	stores   domainrepo.StoreRepository
	rooms    domainrepo.ChatRoomRepository
	messages domainrepo.MessageRepository
	tx       domainrepo.Transactor
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.SetDebug(cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.HealthCheck{}

	var firebaseApp *fbapp.App
	if cfg.StorageDriver == "firestore" || cfg.AuthProvider == "firebase" {
		firebaseApp, err = fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, firebaseCredentials(cfg))
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
	}

	// Storage
	var repos repositories
	switch cfg.StorageDriver {
	case "firestore":
		firestoreClient, err := firebaseApp.Firestore(ctx)
		if err != nil {
			log.Fatalf("Failed to create Firestore client: %v", err)
		}
		defer firestoreClient.Close()

		repos = firestoreRepositories(firestoreClient)
		checks["storage"] = func(ctx context.Context) error {
			_, err := firestoreClient.Collection("chatRooms").Limit(1).Documents(ctx).GetAll()
			return err
		}
	case "sqlite", "postgres", "postgresql":
		dsn := cfg.DatabaseURL
		if cfg.StorageDriver == "sqlite" {
			dsn = cfg.SQLitePath
		}
		db, err := database.Open(cfg.StorageDriver, dsn, cfg.IsDevelopment())
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		if err := database.Migrate(db, repository.GormModels()...); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("Failed to access database pool: %v", err)
		}
		defer sqlDB.Close()

		repos = gormRepositories(db)
		checks["storage"] = sqlDB.PingContext
	default:
		log.Fatalf("Unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	// Authentication
	var verifier service.TokenVerifier
	switch cfg.AuthProvider {
	case "jwt":
		verifier = auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	case "jwks":
		jwks, err := auth.NewJWKSVerifier(ctx, cfg.JWKSURL, cfg.JWTIssuer)
		if err != nil {
			log.Fatalf("Failed to load JWKS from %s: %v", cfg.JWKSURL, err)
		}
		defer jwks.Close()
		verifier = jwks
	case "firebase":
		authClient, err := firebaseApp.Auth(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase Auth: %v", err)
		}
		verifier = firebase.NewFirebaseAuthClient(authClient)
	default:
		log.Fatalf("Unknown AUTH_PROVIDER %q", cfg.AuthProvider)
	}

	// Real-time fan-out
	hub := websocket.NewHub(websocket.NewRegistry())
	var broadcaster usecase.Broadcaster = hub
	switch cfg.BroadcastDriver {
	case "local":
	case "nats":
		nc, err := pubsub.ConnectNATS(cfg.NATSURL, "cakemarket-chat")
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		natsBroadcaster := pubsub.NewNATSBroadcaster(nc, hub)
		if err := natsBroadcaster.Start(); err != nil {
			log.Fatalf("Failed to subscribe to NATS: %v", err)
		}
		defer natsBroadcaster.Close()

		broadcaster = natsBroadcaster
		checks["broker"] = func(ctx context.Context) error {
			if !nc.IsConnected() {
				return stderrors.New("nats: " + nc.Status().String())
			}
			return nil
		}
	case "redis":
		rdb, err := pubsub.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		redisBroadcaster := pubsub.NewRedisBroadcaster(rdb, hub)
		if err := redisBroadcaster.Start(ctx); err != nil {
			log.Fatalf("Failed to subscribe to Redis: %v", err)
		}
		defer redisBroadcaster.Close()

		broadcaster = redisBroadcaster
		checks["broker"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	default:
		log.Fatalf("Unknown BROADCAST_DRIVER %q", cfg.BroadcastDriver)
	}

	limiter := ratelimit.NewRateLimiter(cfg.SendRate, cfg.SendBurst)
	limiter.StartCleanupRoutine(ctx)

	authUseCase := usecase.NewAuthUseCase(verifier, repos.users)
	chatUseCase := usecase.NewChatUseCase(repos.rooms, repos.messages, repos.stores, repos.tx, broadcaster, hub, limiter)
	gateway := websocket.NewGateway(hub, authUseCase, chatUseCase, cfg.WSHandshakeTimeout)

	handler.Setup(chatUseCase, gateway, cfg.WSAllowedOrigins, cfg.WSHandshakeTimeout, checks)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()

	router.Setup(e, apimiddleware.NewAuthMiddleware(authUseCase), limiter)

	go func() {
		logger.Info("Starting server on port %s (storage=%s auth=%s broadcast=%s)",
			cfg.ServerPort, cfg.StorageDriver, cfg.AuthProvider, cfg.BroadcastDriver)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	gateway.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
}

// firebaseCredentials prefers inline service account JSON (production) over
// a credentials file (local development).
func firebaseCredentials(cfg *config.Config) option.ClientOption {
	if cfg.FirebaseServiceAccountJSON != "" {
		log.Printf("Using Firebase service account from environment variable")
		return option.WithCredentialsJSON([]byte(cfg.FirebaseServiceAccountJSON))
	}

	path := cfg.FirebaseServiceAccountPath
	if path == "" {
		path = "./firebase-service-account.json"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Fatalf("Service account file does not exist: %s", path)
	}

	log.Printf("Using Firebase service account from file: %s", path)
	return option.WithCredentialsFile(path)
}

func firestoreRepositories(client *firestore.Client) repositories {
	return repositories{
		users:    repository.NewFirestoreUserRepository(client),
		stores:   repository.NewFirestoreStoreRepository(client),
		rooms:    repository.NewFirestoreChatRoomRepository(client),
		messages: repository.NewFirestoreMessageRepository(client),
		tx:       repository.NewFirestoreTransactor(client),
	}
}

func gormRepositories(db *gorm.DB) repositories {
	return repositories{
		users:    repository.NewGormUserRepository(db),
		stores:   repository.NewGormStoreRepository(db),
		rooms:    repository.NewGormChatRoomRepository(db),
		messages: repository.NewGormMessageRepository(db),
		tx:       repository.NewGormTransactor(db),
	}
}
