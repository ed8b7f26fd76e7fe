package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/MJE43/promo-games-go/internal/api"
	"github.com/MJE43/promo-games-go/internal/config"
	"github.com/MJE43/promo-games-go/internal/engine"
	"github.com/MJE43/promo-games-go/internal/jobs"
	"github.com/MJE43/promo-games-go/internal/promo"
	"github.com/MJE43/promo-games-go/internal/scripting"
	"github.com/MJE43/promo-games-go/internal/secrets"
	"github.com/MJE43/promo-games-go/internal/store"
	"github.com/MJE43/promo-games-go/internal/upstream"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load before the environment")
	usage := flag.Bool("usage", false, "print recognised environment variables and exit")
	flag.Parse()

	setupLogging()

	if *usage {
		if err := config.Usage(); err != nil {
			log.Fatalf("usage: %v", err)
		}
		return
	}

	if err := run(*envFile); err != nil {
		log.Fatalf("promo-server: %v", err)
	}
}

func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
}

func run(envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("Invalid log level %q, keeping info", cfg.LogLevel)
	}
	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	}
	logger := log.StandardLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer db.Close()
	log.Infof("Store ready (driver=%s)", cfg.DBDriver)

	keys := secrets.NewKeyringStore(cfg.SecretsService, cfg.SecretsFallbackPath)

	apiKey := cfg.UpstreamAPIKey
	if apiKey == "" {
		if apiKey, err = keys.UpstreamAPIKey(); err != nil {
			log.Warnf("No upstream API key configured: %v", err)
			apiKey = ""
		}
	}

	signingKey := []byte(cfg.ReceiptSecret)
	if len(signingKey) == 0 {
		if signingKey, err = keys.SigningKey(); err != nil {
			return fmt.Errorf("receipt signing key: %w", err)
		}
	}
	receipts, err := promo.NewReceiptSigner(signingKey, cfg.ReceiptTTL)
	if err != nil {
		return err
	}

	client := upstream.NewClient(upstream.Config{
		BaseURL:    cfg.UpstreamURL,
		APIKey:     apiKey,
		MaxRetries: cfg.UpstreamMaxRetries,
		HTTPClient: &http.Client{Timeout: cfg.UpstreamTimeout},
		UserAgent:  "promo-games/" + api.ServerVersion,
	})

	opts := promo.Options{
		RotationPolicy: cfg.Policy.Wheel,
		ScratchPolicy:  cfg.Policy.Scratch,
		CanvasWidth:    cfg.Policy.Canvas.Width,
		CanvasHeight:   cfg.Policy.Canvas.Height,
		Source:         engine.Default(),
		Audited:        cfg.Audited(),
		Receipts:       receipts,
		Logger:         logger,
	}
	if cfg.Policy.TargetingScript != "" {
		targeter, err := scripting.LoadFile(cfg.Policy.TargetingScript)
		if err != nil {
			return fmt.Errorf("targeting script: %w", err)
		}
		opts.Targeter = targeter
		log.Infof("Targeting script loaded from %s", cfg.Policy.TargetingScript)
	}

	svc, err := promo.NewService(client, db, opts)
	if err != nil {
		return err
	}

	scheduler, err := jobs.NewScheduler(svc, cfg.PruneSchedule, cfg.SessionIdleTTL)
	if err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	server := api.NewServer(svc, db, api.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
		StaticDir:      cfg.StaticDir,
		RotationPolicy: cfg.Policy.Wheel,
		Logger:         logger,
	})
	listener := api.NewListener(cfg.Addr(), cfg.RequestTimeout)
	if err := listener.Start(server.Routes()); err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr(), err)
	}
	log.Infof("Listening on %s (env=%s, rng=%s)", listener.Addr(), cfg.Env, cfg.RNG)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigCh:
		log.Infof("Received signal %v, shutting down...", sig)
	case err, ok := <-listener.Errors():
		if ok && err != nil {
			serveErr = fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := listener.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Errorf("Shutdown: %v", err)
	}
	return serveErr
}
