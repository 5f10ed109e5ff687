package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/threadline/backend/internal/cache"
	"github.com/threadline/backend/internal/handlers"
	"github.com/threadline/backend/internal/logging"
	"github.com/threadline/backend/internal/media"
	"github.com/threadline/backend/internal/middleware"
	"github.com/threadline/backend/internal/models"
	"github.com/threadline/backend/internal/repositories"
	"github.com/threadline/backend/internal/router"
	"github.com/threadline/backend/internal/serializers"
	"github.com/threadline/backend/internal/services"
	"github.com/threadline/backend/pkg/config"
	"github.com/threadline/backend/pkg/firebase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.InitDB(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize databases")
	}
	defer db.CloseDB()

	if err := db.Migrate(&models.User{}); err != nil {
		logging.Fatal().Err(err).Msg("Failed to migrate user directory")
	}
	mongoDB := db.Mongo.Database(cfg.MongoDatabase)
	if err := repositories.EnsureIndexes(ctx, mongoDB); err != nil {
		logging.Fatal().Err(err).Msg("Failed to create MongoDB indexes")
	}

	minioHost, err := media.NewMinIOHost(ctx, media.MinIOConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize asset host")
	}
	assets := media.NewBreakerHost(minioHost, media.DefaultBreakerSettings)

	// Repositories
	userRepo := repositories.NewPostgresUserRepository(db.Postgres)
	postRepo := repositories.NewMongoPostRepository(mongoDB)
	likeRepo := repositories.NewMongoLikeRepository(mongoDB)
	mediaRepo := repositories.NewMongoMediaRepository(mongoDB)

	// A nil *AuthorCache must not reach the interface
	var authorCache services.AuthorCache
	if db.Redis != nil {
		authorCache = cache.NewAuthorCache(db.Redis, cfg.AuthorCacheTTL)
	}
	authors := services.NewAuthorDirectory(userRepo, authorCache)
	serializer := serializers.New(media.NewResolver(cfg.MediaBaseURL))

	// Services
	feedService := services.NewFeedService(postRepo, likeRepo, mediaRepo, authors, serializer, services.FeedConfig{
		DefaultLimit: cfg.FeedDefaultLimit,
		MaxLimit:     cfg.FeedMaxLimit,
	})
	threadService := services.NewThreadService(postRepo, likeRepo, mediaRepo, authors, serializer)
	likeService := services.NewLikeService(likeRepo, postRepo)
	postService := services.NewPostService(postRepo, assets, serializer, cfg.EditWindow)

	// Identity
	var verifiers []middleware.TokenVerifier
	if cfg.JWTSecret != "" {
		verifiers = append(verifiers, middleware.NewJWTVerifier(cfg.JWTSecret))
	} else {
		logging.Warn().Msg("JWT_SECRET not set, bearer JWTs are rejected")
	}
	if cfg.FirebaseCredentialsPath != "" {
		app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize Firebase")
		}
		verifiers = append(verifiers, middleware.NewFirebaseVerifier(app.AuthClient, userRepo))
	}

	e := echo.New()
	config.SetupEcho(e, cfg)
	router.SetupPipeline(e, cfg.RequestTimeout, verifiers...)
	router.SetupRoutes(e, router.Handlers{
		Feed:  handlers.NewFeedHandler(feedService, threadService),
		Likes: handlers.NewLikeHandler(likeService),
		Posts: handlers.NewPostHandler(postService),
	})

	metricsServer := echo.New()
	metricsServer.HideBanner = true
	metricsServer.HidePort = true
	metricsServer.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go serve(e, ":"+cfg.Port, "api")
	go serve(metricsServer, ":"+cfg.MetricsPort, "metrics")

	<-ctx.Done()
	logging.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range []*echo.Echo{e, metricsServer} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("Server shutdown failed")
		}
	}
}

func serve(e *echo.Echo, addr, name string) {
	logging.Info().Str("addr", addr).Str("server", name).Msg("Server starting")
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Fatal().Err(err).Str("server", name).Msg("Server failed")
	}
}
