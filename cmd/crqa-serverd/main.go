// Command crqa-serverd is the Compute Server binary: it listens on a
// Unix domain socket and runs the CRQA kernel against whatever
// Device Model dials in, the userspace half of the reference
// systemc_server / psd.c split (spec §4.2).
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/qcrqa/crqa-accel/internal/constants"
	"github.com/qcrqa/crqa-accel/internal/logging"
	"github.com/qcrqa/crqa-accel/internal/server"
)

func main() {
	var (
		socketPath = flag.String("socket", constants.DefaultSocketPath, "Unix domain socket path to listen on")
		verbose    = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	srv, err := server.New(*socketPath, logger)
	if err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}
	defer srv.Close()

	logger.Info("compute server listening", "socket", *socketPath)
	fmt.Printf("crqa-serverd listening on %s\n", *socketPath)
	fmt.Printf("Press Ctrl+C to stop...\n")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("server exited", "error", err)
			os.Exit(1)
		}
	case <-sigCh:
		logger.Info("received shutdown signal")
		if err := srv.Close(); err != nil {
			logger.Error("error closing listener", "error", err)
		}
		<-serveErr
	}

	logger.Info("compute server stopped", "requests_served", srv.RequestCount())
}
