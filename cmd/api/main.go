package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/CloakLink/CloakLinkSOL/internal/config"
	"github.com/CloakLink/CloakLinkSOL/internal/db"
	internalhttp "github.com/CloakLink/CloakLinkSOL/internal/http"
	"github.com/CloakLink/CloakLinkSOL/internal/logging"
	"github.com/CloakLink/CloakLinkSOL/internal/services"
	"github.com/CloakLink/CloakLinkSOL/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		logging.New("info").WithError(err).Fatal("config load failed")
	}
	log := logging.New(cfg.Log.Level)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	defer pool.Close()

	st := store.New(pool)
	profiles := &services.ProfileService{Store: st}
	invoices := &services.InvoiceService{Store: st}

	h := internalhttp.NewHandler(profiles, invoices)
	srv := internalhttp.NewServer(h)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("api listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
