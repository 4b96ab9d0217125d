package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.ngrok.com/ngrok"
	ngrokconfig "golang.ngrok.com/ngrok/config"

	"standupbot/config"
	"standupbot/internal/api"
	"standupbot/internal/crypto"
	"standupbot/internal/events"
	"standupbot/internal/linkage"
	"standupbot/internal/notify"
	"standupbot/internal/scheduler"
	"standupbot/internal/slack"
	"standupbot/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config: " + err.Error())
	}

	log, err := newLogger(cfg)
	if err != nil {
		panic("logger: " + err.Error())
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	log.Info("database connected")

	sealer, err := crypto.NewSealer(cfg.EncryptionKey)
	if err != nil {
		return err
	}

	var dedupe events.Deduper = passthroughDeduper{}
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(strings.TrimSpace(cfg.RedisURL))
		if err != nil {
			return err
		}
		client := redis.NewClient(opt)
		if err := client.Ping(context.Background()).Err(); err != nil {
			return err
		}
		defer client.Close()
		dedupe = events.NewRedisDeduper(client, time.Hour, log)
		log.Info("redis connected")
	} else {
		log.Warn("REDIS_URL not set; webhook redeliveries will not be deduplicated")
	}

	gateway := slack.NewClient()
	linker := linkage.NewManager(st, st, gateway, sealer, log)
	dispatcher := notify.NewDispatcher(st, st, st, gateway, sealer, notify.Options{}, log)
	webhook := events.NewHandler(cfg.SlackSigningSecret, st, st, st, gateway, sealer, dedupe, log)
	handlers := api.New(cfg, st, linker, gateway, dispatcher, sealer, log)

	sched, err := scheduler.New(cfg.DispatchCron, dispatcher, log)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	router := newRouter(handlers, webhook)
	return serve(cfg, router, log)
}

func serve(cfg *config.Config, handler http.Handler, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// With an ngrok token present, expose the webhook through a tunnel so
	// Slack can reach a local dev instance.
	if os.Getenv("NGROK_AUTHTOKEN") != "" {
		tunnel, err := ngrok.Listen(ctx, ngrokconfig.HTTPEndpoint(), ngrok.WithAuthtokenFromEnv())
		if err != nil {
			return err
		}
		log.Info("ngrok tunnel up", zap.String("url", tunnel.URL()))
		return http.Serve(tunnel, handler)
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if cfg.Environment == "production" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// passthroughDeduper treats every delivery as the first one; used when redis
// is not configured. The check-in upsert stays idempotent either way.
type passthroughDeduper struct{}

func (passthroughDeduper) FirstDelivery(ctx context.Context, eventID string) bool { return true }
