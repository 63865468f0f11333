package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ridemate/internal/config"
	handlers "ridemate/internal/handlers/shared"
	"ridemate/internal/repositories/interfaces"
	"ridemate/internal/repositories/memory"
	"ridemate/internal/repositories/mongodb"
	"ridemate/internal/services"
	"ridemate/pkg/cache"
	"ridemate/pkg/database"
	"ridemate/pkg/identity"
	"ridemate/pkg/logger"
	"ridemate/pkg/storage"
	"ridemate/pkg/websocket"
	"ridemate/routes"

	"github.com/gin-gonic/gin"
)

// store bundles the repositories of one document store driver.
type store struct {
	tx       interfaces.Transactor
	feed     interfaces.ChangeFeed
	rideRepo interfaces.RideRepository
	chatRepo interfaces.ChatRepository
	userRepo interfaces.UserRepository
	close    func() error
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:   logger.LogLevel(cfg.App.LogLevel),
		Format:  cfg.App.LogFormat,
		Output:  cfg.App.LogOutput,
		AppName: cfg.App.Name,
		Version: cfg.App.Version,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.WithError(err).Fatal("Server stopped with error")
	}
	appLogger.Info("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) error {
	db, err := openStore(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer db.close()

	listingCache, closeCache, err := newListingCache(cfg, appLogger)
	if err != nil {
		return err
	}
	defer closeCache()

	files, closeFiles, err := newStorageProvider(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeFiles()

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return err
	}

	// Services
	policy := services.RetryPolicy{
		MaxRetries: cfg.Membership.MaxRetries,
		Backoff:    cfg.Membership.RetryBackoff,
	}
	rideService := services.NewRideService(db.rideRepo, listingCache, cfg.Membership.ListingCacheTTL, cfg.Membership.ListingLimit, appLogger)
	chatService := services.NewChatService(db.tx, db.chatRepo, db.userRepo, policy, appLogger)
	membershipService := services.NewMembershipService(db.tx, db.rideRepo, db.chatRepo, rideService, policy, appLogger)
	profileService := services.NewProfileService(db.userRepo, files, services.ImageOptions{
		MaxSize:      cfg.Storage.MaxImageSize,
		MaxDimension: cfg.Storage.ImageMaxDimension,
	}, appLogger)
	feedService := services.NewFeedService(db.feed, db.chatRepo, appLogger)

	// Websocket hub
	hub := websocket.NewHub(appLogger)
	go hub.Run(ctx)
	wsHandler := websocket.NewHandler(hub, feedService, websocket.Options{
		ReadBufferSize:    cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:   cfg.WebSocket.WriteBufferSize,
		HandshakeTimeout:  cfg.WebSocket.HandshakeTimeout,
		PingInterval:      cfg.WebSocket.PingInterval,
		PongTimeout:       cfg.WebSocket.PongTimeout,
		MaxMessageSize:    cfg.WebSocket.MaxMessageSize,
		MaxConnections:    cfg.WebSocket.MaxConnections,
		EnableCompression: cfg.WebSocket.EnableCompression,
		AllowedOrigins:    cfg.WebSocket.AllowedOrigins,
	}, appLogger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.NewRouter(&routes.RouterDeps{
		Verifier:         verifier,
		ProfileService:   profileService,
		RideHandler:      handlers.NewRideHandler(rideService, membershipService, appLogger),
		ChatHandler:      handlers.NewChatHandler(chatService, appLogger),
		ProfileHandler:   handlers.NewProfileHandler(profileService, appLogger),
		WebSocketHandler: wsHandler,
		WebSocketPath:    cfg.WebSocket.Path,
		AllowedOrigins:   cfg.Security.CORSAllowedOrigins,
		Logger:           appLogger,
	})
	if err := router.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}
	if cfg.Storage.Provider == "local" {
		router.Static("/uploads", cfg.Storage.Local.BasePath)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.WithFields(map[string]interface{}{
			"addr":         server.Addr,
			"store_driver": cfg.Database.Driver,
			"auth":         cfg.Auth.Provider,
			"storage":      cfg.Storage.Provider,
		}).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	appLogger.Infof("Shutting down server, waiting up to %s for open requests", cfg.App.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (*store, error) {
	if cfg.Database.Driver == config.DriverMemory {
		appLogger.Warn("Using the in-memory document store, data is lost on restart")
		s := memory.New()
		return &store{
			tx:       s,
			feed:     s,
			rideRepo: memory.NewRideRepository(s),
			chatRepo: memory.NewChatRepository(s),
			userRepo: memory.NewUserRepository(s),
			close:    s.Close,
		}, nil
	}

	mongoDB, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if cfg.Database.RunMigrations {
		if err := database.NewMigrator(mongoDB.Database, appLogger).Up(ctx); err != nil {
			mongoDB.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &store{
		tx:       mongodb.NewTransactor(mongoDB),
		feed:     mongodb.NewChangeFeed(mongoDB.Database, appLogger),
		rideRepo: mongodb.NewRideRepository(mongoDB.Database),
		chatRepo: mongodb.NewChatRepository(mongoDB.Database),
		userRepo: mongodb.NewUserRepository(mongoDB.Database),
		close:    mongoDB.Close,
	}, nil
}

// newListingCache connects to Redis when enabled. Without it ride listings
// are always read from the store.
func newListingCache(cfg *config.Config, appLogger *logger.Logger) (services.CacheService, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}

	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Redis.Addr(), err)
	}

	closeCache := func() {
		if err := redisCache.Close(); err != nil {
			appLogger.WithError(err).Warn("Failed to close Redis client")
		}
	}
	return services.NewCacheService(redisCache, appLogger, "ridemate", cfg.Membership.ListingCacheTTL), closeCache, nil
}

func newStorageProvider(ctx context.Context, cfg *config.StorageConfig) (storage.Provider, func(), error) {
	switch cfg.Provider {
	case "local":
		provider, err := storage.NewLocalStorage(cfg.Local.BasePath, cfg.Local.BaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create local storage: %w", err)
		}
		return provider, func() {}, nil

	case "aws":
		provider, err := storage.NewAWSS3Storage(ctx, cfg.AWS.Region, cfg.AWS.Bucket,
			cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey, cfg.AWS.CDNDomain)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create S3 storage: %w", err)
		}
		return provider, func() {}, nil

	case "gcp":
		provider, err := storage.NewGCPStorage(ctx, cfg.GCP.Bucket, cfg.GCP.CredentialsFile, cfg.GCP.CDNDomain)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create GCS storage: %w", err)
		}
		return provider, func() { provider.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage provider %q", cfg.Provider)
	}
}

func newVerifier(ctx context.Context, cfg *config.Config) (identity.Verifier, error) {
	if cfg.Auth.Provider == config.AuthProviderFirebase {
		verifier, err := identity.NewFirebaseVerifier(ctx, cfg.Auth.FirebaseProjectID, cfg.Auth.FirebaseCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create Firebase verifier: %w", err)
		}
		return verifier, nil
	}

	verifier, err := identity.NewJWTVerifier(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.JWTAccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT verifier: %w", err)
	}
	return verifier, nil
}
