package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/CloakLink/CloakLinkSOL/internal/chain"
	"github.com/CloakLink/CloakLinkSOL/internal/config"
	"github.com/CloakLink/CloakLinkSOL/internal/db"
	internalhttp "github.com/CloakLink/CloakLinkSOL/internal/http"
	"github.com/CloakLink/CloakLinkSOL/internal/indexer"
	"github.com/CloakLink/CloakLinkSOL/internal/logging"
	"github.com/CloakLink/CloakLinkSOL/internal/match"
	"github.com/CloakLink/CloakLinkSOL/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		logging.New("info").WithError(err).Fatal("config load failed")
	}
	log := logging.New(cfg.Log.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	defer pool.Close()

	rpc, err := chain.NewClient(chain.Options{
		Endpoints:         cfg.Chain.RPCEndpoints,
		MaxRetries:        cfg.Indexer.RPCMaxRetries,
		RetryDelay:        cfg.RPCRetryDelay(),
		BackoffMax:        cfg.RPCBackoffMax(),
		Timeout:           cfg.RPCTimeout(),
		BreakerThreshold:  cfg.Indexer.RPCBreakerThreshold,
		BreakerCooldown:   cfg.RPCBreakerCooldown(),
		FailoverThreshold: cfg.Indexer.RPCFailoverThreshold,
		CacheTTL:          cfg.RPCCacheTTL(),
	}, log.WithField("component", "rpc-client"))
	if err != nil {
		log.WithError(err).Fatal("rpc client init failed")
	}

	ix := &indexer.Indexer{
		Store:     store.New(pool),
		RPC:       rpc,
		Chain:     cfg.Chain.Name,
		PageLimit: cfg.Indexer.PageLimit,
		Interval:  cfg.PollInterval(),
		Match: match.Options{
			RequireMemo: cfg.Indexer.RequireMemoMatch,
			MemoPrefix:  cfg.Indexer.MemoPrefix,
		},
		WSEndpoints: cfg.Chain.WSEndpoints,
		Log:         log.WithField("component", "runtime"),
	}

	healthServer := &http.Server{
		Addr:    cfg.Indexer.HealthAddr,
		Handler: internalhttp.NewHealthRouter(ix.HealthSnapshot),
	}
	go func() {
		log.WithField("addr", cfg.Indexer.HealthAddr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("health server error")
		}
	}()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		sig := <-stop
		log.WithField("signal", sig.String()).Info("received shutdown signal")
		cancel()
		_ = healthServer.Close()
	}()

	ix.Run(ctx)
	log.Info("indexer shutdown complete")
}
