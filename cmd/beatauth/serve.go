package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/layer-3/beatauth/adapters/events"
	"github.com/layer-3/beatauth/adapters/store"
	"github.com/layer-3/beatauth/adapters/tokenizer"
	"github.com/layer-3/beatauth/internal/config"
	"github.com/layer-3/beatauth/pkg/logger"
	"github.com/layer-3/beatauth/ports"
	"github.com/layer-3/beatauth/service"
	transporthttp "github.com/layer-3/beatauth/transport/http"
)

const connectTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP auth service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{Level: cfg.LogLevel, Pretty: !cfg.Production(), Service: "beatauth"})
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	var signKey *ecdsa.PrivateKey
	if cfg.JWTSigningKey != "" {
		signKey, err = tokenizer.ParseKey(cfg.JWTSigningKey)
	} else {
		log.Warn().Msg("JWT_SIGNING_KEY not set, sessions will not survive a restart")
		signKey, err = tokenizer.GenerateKey()
	}
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}

	redisClient, err := store.ConnectRedis(ctx, cfg.Redis.URL, connectTimeout)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	mongoClient, db, err := store.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database, connectTimeout)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		_ = mongoClient.Disconnect(shutdownCtx)
	}()

	var eventPub ports.EventPublisher = events.NopPublisher{}
	if cfg.EventsEnabled {
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			events.NewZerologAdapter(log),
		)
		if err != nil {
			return fmt.Errorf("failed to create Redis publisher: %w", err)
		}
		defer publisher.Close()
		eventPub = events.NewWatermillPublisher(publisher)
	}

	allowlist := cfg.Allowlist()
	if allowlist.Len() > 0 {
		log.Info().Int("addresses", allowlist.Len()).Msg("super-admin allowlist loaded")
	}

	challenges := store.NewRedisChallengeStore(redisClient)
	identities := store.NewMongoIdentityStore(db)
	authService := service.NewAuthService(service.AuthDeps{
		Issuer: service.NewChallengeIssuer(challenges, cfg.Session.NonceTTL, log),
		Verifier: service.NewSignatureVerifier(challenges, service.VerifierConfig{
			Domain:   cfg.SIWE.Domain,
			NonceTTL: cfg.Session.NonceTTL,
		}, log),
		Identities: identities,
		Resolver:   service.NewRoleResolver(allowlist, log),
		Tokenizer:  tokenizer.NewJWTTokenizer(signKey, nil),
		Tokens:     store.NewRedisTokenStore(redisClient),
		Events:     eventPub,
	}, cfg.Session.SessionTTL, cfg.Session.StoreRetryInterval, log)

	router := transporthttp.SetupRouter(transporthttp.RouterConfig{
		Auth:        authService,
		Identities:  service.NewIdentityService(identities, eventPub, cfg.Session.StoreRetryInterval, log),
		RateLimiter: transporthttp.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, log),
		Log:         log,
	})

	return run(ctx, log, &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	})
}

func run(ctx context.Context, log zerolog.Logger, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
