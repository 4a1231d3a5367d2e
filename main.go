// Package main, custodian servisinin giriş noktasıdır.
//
// Dependency Injection "wire-up":
//  1. Config + logger
//  2. Database (embedded migrations)
//  3. Primitive'ler (cache, limiter, revocation store, IP throttle, Redis)
//  4. Repository → Service → Handler
//  5. Revocation store'u kalıcı tablodan ısıt
//  6. Maintenance döngüsü
//  7. Router + CORS + IP throttle
//  8. HTTP server + graceful shutdown
//
// Global değişken yok; her şey burada oluşturulup birbirine bağlanır.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/akinalp/custodian/config"
	"github.com/akinalp/custodian/database"
	"github.com/akinalp/custodian/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "custodian: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ─── 1. Config + Logger ───
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log = log.Named("main")
	log.Info("config loaded", zap.Int("port", cfg.Server.Port))

	// ─── 2. Database ───
	db, err := database.New(cfg.Database.Path, database.Migrations(), log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// ─── 3. Primitives ───
	prims := initPrimitives(cfg, log)
	defer prims.Close(log)

	// ─── 4. Layers ───
	repos := initRepositories(db.Conn, prims.UserCache, log)
	svcs := initServices(db.Conn, repos, prims, cfg, log)
	h := initHandlers(svcs)

	// ─── 5. Revocation warm-up ───
	// Restart sonrası iptal edilmiş ama süresi dolmamış token'lar yeniden
	// reddedilebilsin diye istek kabul etmeden önce yapılır.
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
	_, err = svcs.Revoker.Warm(warmCtx)
	warmCancel()
	if err != nil {
		return err
	}

	// ─── 6. Maintenance ───
	bgCtx, bgCancel := context.WithCancel(context.Background())
	maintenanceDone := svcs.Maintenance.Start(bgCtx)
	defer func() {
		bgCancel()
		<-maintenanceDone
	}()

	// ─── 7. Router ───
	mux := http.NewServeMux()
	initRoutes(mux, h, svcs.Auth, repos, log)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
	})
	handler := corsHandler.Handler(prims.IPThrottle.Limit(mux))

	// ─── 8. HTTP Server ───
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.Server.Addr()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-done:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Yeni request kabul etmeyi durdur, mevcutların bitmesini bekle (5sn).
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}
