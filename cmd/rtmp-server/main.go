package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alxayo/go-livestream/internal/account"
	"github.com/alxayo/go-livestream/internal/logger"
	"github.com/alxayo/go-livestream/internal/metrics"
	"github.com/alxayo/go-livestream/internal/notify"
	srv "github.com/alxayo/go-livestream/internal/server"
)

func main() {
	cliCfg, err := parseFlags(os.Args[1:])
	if err != nil {
		// flag package already printed usage/error
		os.Exit(2)
	}
	if cliCfg.showVersion {
		fmt.Println(version)
		return
	}

	// Initialize global logger and set level based on flag/env.
	logger.Init()
	if err := logger.SetLevel(cliCfg.logLevel); err != nil {
		fmt.Printf("Warning: invalid log level %q, using default\n", cliCfg.logLevel)
	}
	log := logger.Logger().With("component", "cli")

	accounts := account.NewInMemoryStore(true)
	server := srv.New(cliCfg.toConfig(), accounts, notify.Noop{}, metrics.New())

	if err := server.Start(); err != nil {
		log.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	log.Info("server started", "rtmp_addr", server.Addr().String(), "version", version)

	// Set up signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Perform shutdown in a separate goroutine in case it blocks; we just wait or force exit on timeout.
	done := make(chan struct{})
	go func() {
		if err := server.Stop(); err != nil {
			log.Error("server stop error", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info("server stopped cleanly")
	case <-shutdownCtx.Done():
		log.Error("forced exit after timeout")
	}
}
