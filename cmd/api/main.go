package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"minigames/internal/config"
	"minigames/internal/server"
)

func gracefulShutdown(srv *server.FiberServer, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logrus.Info("shutting down gracefully, press Ctrl+C again to force")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.App.ShutdownWithContext(ctx); err != nil {
		logrus.WithError(err).Warn("server forced to shutdown")
	}
	srv.Shutdown()

	logrus.Info("server exiting")
	done <- true
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	cfg := config.FromEnv()

	srv := server.New(cfg)
	srv.RegisterFiberRoutes()

	done := make(chan bool, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logrus.WithField("addr", addr).Info("listening")
		if err := srv.Listen(addr); err != nil {
			logrus.WithError(err).Fatal("http server error")
		}
	}()

	go gracefulShutdown(srv, done)

	<-done
	logrus.Info("graceful shutdown complete")
}
