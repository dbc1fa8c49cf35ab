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
	_ "time/tzdata"

	"go.uber.org/zap"

	"robotics_club_services/app"
	"robotics_club_services/auth"
	"robotics_club_services/config"
	"robotics_club_services/routes"
)

func main() {
	envErr := config.LoadEnv()
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// issue-admin-token <name>: 打印一个管理员 token
	if len(os.Args) > 1 && os.Args[1] == "issue-admin-token" {
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: issue-admin-token <name>")
			os.Exit(2)
		}
		tok, err := auth.Issue(cfg.JWTSecret, os.Args[2], cfg.AdminTokenTTL)
		if err != nil {
			fmt.Fprintln(os.Stderr, "issue token:", err)
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	logger, err := app.NewLogger(cfg.AppEnv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	if envErr != nil {
		logger.Warn("could not read .env", zap.Error(envErr))
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer application.Close()

	routes.RegisterRoutes(application.Router, application)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           application.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}
