// wsserver runs the volume relay: clients connect over websocket at /ws
// and every volume change one of them sends is relayed to the others.
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

	"github.com/spf13/pflag"
	"github.com/vmorsell/volctl/internal/config"
	"github.com/vmorsell/volctl/internal/relay"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var configPath, listen string
	var debug bool
	flagSet := pflag.NewFlagSet("wsserver", pflag.ExitOnError)
	flagSet.StringVar(&configPath, "config", "", "path to config file (default: $"+config.EnvConfig+")")
	flagSet.StringVar(&listen, "listen", "", "address to listen on (default: :$PORT or relay.listen)")
	flagSet.BoolVar(&debug, "debug", false, "enable debug logging")
	flagSet.Parse(os.Args[1:])

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	var logger *zap.Logger
	if debug || cfg.Log.Debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	addr := listenAddr(listen, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := relay.NewServer(logger, relay.Config{
		VolumeChangeRate: cfg.Relay.VolumeChangeRate,
	})
	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		s.Run(hubCtx)
		close(hubDone)
	}()

	mux := http.NewServeMux()
	mux.Handle("/ws", s)

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("volume relay server started", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	// Hijacked websocket connections are not closed by Shutdown.
	stopHub()
	<-hubDone
	logger.Info("server exited")
}

// listenAddr picks the flag, then $PORT, then the config value.
func listenAddr(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return cfg.Relay.Listen
}
