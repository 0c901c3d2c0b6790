// Command crqa-accel hosts an in-process Device Model bound to a
// Compute Server socket, standing in for the bus enumeration and
// interrupt wiring a real PCIe/QEMU emulator would own (out of scope
// per this repository's purpose — there is no kernel module here).
// It exists so a Client can be pointed at a running accelerator
// without a real character device node present.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qcrqa/crqa-accel"
	"github.com/qcrqa/crqa-accel/internal/logging"
)

func main() {
	var (
		socketPath = flag.String("socket", crqa.DefaultSocketPath, "Compute Server socket to dial")
		notify     = flag.Bool("notify", false, "Use notification (interrupt) mode instead of synchronous dial-per-request")
		verbose    = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	params := crqa.DefaultAcceleratorParams()
	params.SocketPath = *socketPath
	params.Notify = *notify
	params.Logger = logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("dialing compute server", "socket", *socketPath, "notify", *notify)
	accel, err := crqa.StartAccelerator(ctx, params)
	if err != nil {
		logger.Error("failed to start accelerator", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("stopping accelerator")
		if err := accel.Stop(); err != nil {
			logger.Error("error stopping accelerator", "error", err)
		}
	}()

	fmt.Printf("Accelerator running against %s (notify=%v)\n", *socketPath, *notify)
	fmt.Printf("Press Ctrl+C to stop...\n")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal")
			snap := accel.MetricsSnapshot()
			logger.Info("final metrics", "triggers", snap.Triggers, "compute_success", snap.ComputeSuccess, "compute_failure", snap.ComputeFailure)
			return
		case <-ticker.C:
			snap := accel.MetricsSnapshot()
			logger.Debug("metrics tick", "triggers", snap.Triggers, "compute_success", snap.ComputeSuccess)
		}
	}
}
