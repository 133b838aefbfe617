package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"depositcore/native/deposit"
	"depositcore/observability/logging"
	"depositcore/services/depositd"
	"depositcore/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to depositd configuration")
	flag.Parse()

	cfg, err := depositd.LoadConfig(cfgPath)
	if err != nil {
		logging.Setup("depositd", "", "info", nil).Error("load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup("depositd", cfg.Environment, cfg.LogLevel, cfg.LogFile)

	store, err := storage.OpenBolt(cfg.DatabasePath, nil)
	if err != nil {
		logger.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	engine := deposit.NewEngine(store)
	contracts := depositd.NewContractClient(cfg.Contract)
	srv := depositd.NewServer(cfg, store, engine, contracts, logger, depositd.NewMetrics())

	server := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		logger.Error("listen", "address", cfg.ListenAddress, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("depositd listening", "address", listener.Addr().String(), "env", cfg.Environment)
		if serveErr := server.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("serve", "error", serveErr)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
