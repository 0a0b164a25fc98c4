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

	"github.com/robfig/cron/v3"

	"github.com/concord-assembly/concord/src/api/config"
	"github.com/concord-assembly/concord/src/api/data"
	"github.com/concord-assembly/concord/src/api/resolution"
	"github.com/concord-assembly/concord/src/api/session"
	"github.com/concord-assembly/concord/src/api/webserver"
)

func main() {
	cfg := config.Load()

	db := data.MustMySQL(cfg.MySQLDSN)
	if err := data.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if err := data.LoadSettings(db); err != nil {
		log.Fatalf("settings: %v", err)
	}

	rdb := data.MustRedis(cfg.RedisURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := session.NewRegistry(rdb)
	go reg.Run(ctx)

	// periodic sweep so expired amendments settle even with no reads
	sweeper := cron.New()
	spec := fmt.Sprintf("@every %ds", cfg.SweepInterval)
	if _, err := sweeper.AddFunc(spec, func() {
		if err := resolution.CloseExpired(db, ""); err != nil {
			log.Printf("close sweep: %v", err)
		}
	}); err != nil {
		log.Fatalf("sweep schedule: %v", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      webserver.New(cfg, db, rdb, reg),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
