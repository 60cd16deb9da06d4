package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"github.com/PaulBabatuyi/socialchat/internal/auth"
	"github.com/PaulBabatuyi/socialchat/internal/config"
	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/db"
	"github.com/PaulBabatuyi/socialchat/internal/health"
	"github.com/PaulBabatuyi/socialchat/internal/logging"
	"github.com/PaulBabatuyi/socialchat/internal/media"
	"github.com/PaulBabatuyi/socialchat/internal/middleware"
	"github.com/PaulBabatuyi/socialchat/internal/relay"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("init logger")
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Env,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
		}); err != nil {
			log.WithError(err).Error("sentry init failed")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Initialize database
	dbClient, err := db.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = dbClient.Close(closeCtx)
	}()

	// Ensure indexes exist
	if err := dbClient.CreateIndexes(ctx); err != nil {
		return err
	}

	files, err := newMediaStore(ctx, cfg, dbClient)
	if err != nil {
		return err
	}

	jwtMgr, err := newJWTManager(cfg)
	if err != nil {
		return err
	}

	hub := NewConnectionHub()
	srv := newServer(
		data.NewUsersStore(dbClient.UsersCollection()),
		data.NewContactsStore(dbClient.ContactsCollection()),
		data.NewMessagesStore(dbClient.MessagesCollection()),
		data.NewPostsStore(dbClient.PostsCollection()),
		files, jwtMgr, hub, log,
	)
	srv.chatRate = cfg.ChatRate
	srv.chatBurst = cfg.ChatBurst

	if cfg.RedisURL != "" {
		rl, err := relay.New(cfg.RedisURL, cfg.RedisChannel, log)
		if err != nil {
			return err
		}
		defer rl.Close()
		if err := rl.Subscribe(ctx, srv.broadcastLocal); err != nil {
			return err
		}
		srv.relay = rl
		log.WithField("channel", cfg.RedisChannel).Info("chat relay enabled")
	}

	// Health side channel
	hs := health.New(dbClient, log)
	hlis, err := net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		return err
	}
	go func() {
		if err := hs.Serve(hlis); err != nil {
			log.WithError(err).Error("health server exit")
		}
	}()
	go hs.Run(ctx, 15*time.Second)
	defer hs.Stop()

	limiter := middleware.NewLimiterStore(cfg.RateLimitMax, cfg.RateLimitWindow, time.Minute)
	defer limiter.Stop()

	httpSrv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: srv.httpHandler(httpOptions{
			staticDir:  cfg.StaticDir,
			production: cfg.Production(),
			sentry:     cfg.SentryDSN != "",
			limiter:    limiter,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": httpSrv.Addr, "health": cfg.HealthAddr}).Info("server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func newMediaStore(ctx context.Context, cfg *config.Config, dbClient *db.Client) (media.Store, error) {
	if cfg.MediaBackend == "s3" {
		return media.NewS3Store(ctx, media.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	}
	return media.NewGridFSStore(dbClient.GridFSBucket(cfg.GridFSBucket)), nil
}

// newJWTManager uses JWT_KEYS when supplied so tokens can be rotated, and
// the single JWT_SECRET otherwise.
func newJWTManager(cfg *config.Config) (*auth.JWTManager, error) {
	if cfg.JWTKeys != "" {
		keys, err := auth.ParseKeys(cfg.JWTKeys)
		if err != nil {
			return nil, err
		}
		return auth.NewJWTManagerFromKeys(keys, cfg.JWTActiveKid, cfg.TokenTTL), nil
	}
	return auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL), nil
}
