package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suPer8Hu/macrolog/internal/app"
	"github.com/suPer8Hu/macrolog/internal/config"
	"github.com/suPer8Hu/macrolog/internal/httpapi"
	"github.com/suPer8Hu/macrolog/internal/httpapi/handlers"
	"github.com/suPer8Hu/macrolog/internal/store/rabbitmq"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, true)
	if err != nil {
		log.Fatalf("server: init err=%v", err)
	}
	defer a.Close()

	// async turns need the broker; everything else works without it
	var jobs handlers.JobPublisher
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Printf("server: rabbit unavailable, async turns disabled err=%v", err)
		} else {
			defer pub.Close()
			jobs = pub
		}
	}

	r := httpapi.NewRouter(handlers.NewHandler(a, jobs), cfg.UploadDir)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("server listening addr=%s db=%s provider=%s async=%v", cfg.HTTPAddr, cfg.DBDriver, cfg.AIProvider, jobs != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: listen err=%v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server: shutdown err=%v", err)
	}
}
