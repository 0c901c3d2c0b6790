// Command crqa-client drives a running accelerator through either
// driver face: the per-field register window or the shared-buffer
// mapping, loading two signal files and printing the resulting CRQA
// metric bundle. Grounded on
// original_source/dir-working/ioctl-calling/main.c's load/stat/trigger
// sequence, restated against internal/chardev instead of raw ioctl(2).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/qcrqa/crqa-accel/internal/bus"
	"github.com/qcrqa/crqa-accel/internal/chardev"
	"github.com/qcrqa/crqa-accel/internal/constants"
	"github.com/qcrqa/crqa-accel/internal/interfaces"
	"github.com/qcrqa/crqa-accel/internal/ipc"
	"github.com/qcrqa/crqa-accel/internal/logging"
)

const (
	defaultSig1File = "systemc_input_FP1_F7.txt"
	defaultSig2File = "systemc_input_F7_T7.txt"
)

func main() {
	var (
		socketPath = flag.String("socket", constants.DefaultSocketPath, "Compute Server socket to dial")
		mode       = flag.String("mode", "register", "Driver face to use: \"register\" or \"mapping\"")
		devicePath = flag.String("device", "", "Real character device node to mmap for mapping mode (falls back to the local transport's backing when empty or unavailable)")
		r          = flag.Float64("r", constants.DefaultR, "Recurrence threshold R")
		opcode     = flag.Uint("opcode", 42, "Opcode value written alongside the signals")
		verbose    = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	sig1File, sig2File := defaultSig1File, defaultSig2File
	if args := flag.Args(); len(args) > 0 {
		sig1File = args[0]
		if len(args) > 1 {
			sig2File = args[1]
		}
	}

	fmt.Println("=== CRQA Accelerator Client ===")

	var sig1, sig2 [constants.N]float64
	loaded1, err := loadSignalFromFile(sig1File, sig1[:])
	if err != nil {
		logger.Error("failed to load signal file", "file", sig1File, "error", err)
		os.Exit(1)
	}
	loaded2, err := loadSignalFromFile(sig2File, sig2[:])
	if err != nil {
		logger.Error("failed to load signal file", "file", sig2File, "error", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d samples from %s\n", loaded1, sig1File)
	fmt.Printf("Loaded %d samples from %s\n", loaded2, sig2File)
	printSignalStats("Signal 1", sig1[:])
	printSignalStats("Signal 2", sig2[:])

	dial := func() (interfaces.ComputeClient, error) {
		return ipc.Dial(*socketPath, false)
	}
	transport, err := bus.NewLocalTransport(dial)
	if err != nil {
		logger.Error("failed to construct transport", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closer, ok := transport.(interface{ Close() error }); ok {
			closer.Close()
		}
	}()

	fmt.Printf("\nR = %.3f, opcode = %d, mode = %s\n", *r, *opcode, *mode)

	start := time.Now()
	var bundle [8]float64
	switch *mode {
	case "register":
		bundle, err = runRegisterMode(transport, *r, uint32(*opcode), &sig1, &sig2)
	case "mapping":
		bundle, err = runMappingMode(transport, *devicePath, *r, uint32(*opcode), &sig1, &sig2)
	default:
		logger.Error("unknown mode", "mode", *mode)
		os.Exit(1)
	}
	if err != nil {
		logger.Error("compute failed", "error", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	printResults(*r, elapsed, bundle)
}

func runRegisterMode(t bus.Transport, r float64, opcode uint32, sig1, sig2 *[constants.N]float64) ([8]float64, error) {
	var bundle [8]float64
	face := chardev.NewRegisterFace(t)

	if err := face.WriteR(r); err != nil {
		return bundle, fmt.Errorf("write R: %w", err)
	}
	if err := face.LoadSignal1(sig1[:]); err != nil {
		return bundle, fmt.Errorf("load signal 1: %w", err)
	}
	if err := face.LoadSignal2(sig2[:]); err != nil {
		return bundle, fmt.Errorf("load signal 2: %w", err)
	}
	if err := face.WriteOpcode(opcode); err != nil {
		return bundle, fmt.Errorf("write opcode: %w", err)
	}

	epsilon, err := face.TriggerCompute()
	if err != nil {
		return bundle, fmt.Errorf("trigger compute: %w", err)
	}
	bundle[0] = epsilon

	for i := 0; i < 7; i++ {
		v, err := face.ReadMetric(i)
		if err != nil {
			return bundle, fmt.Errorf("read metric %d: %w", i, err)
		}
		bundle[i+1] = v
	}
	return bundle, nil
}

func runMappingMode(t bus.Transport, devicePath string, r float64, opcode uint32, sig1, sig2 *[constants.N]float64) ([8]float64, error) {
	var bundle [8]float64
	face := chardev.NewMappingFace(t, devicePath)

	region, err := face.Map()
	if err != nil {
		return bundle, fmt.Errorf("map: %w", err)
	}
	defer region.Close()

	id := region.ID()
	region.EncodeRequest(r, opcode, id, sig1, sig2)
	if err := region.Flush(); err != nil {
		return bundle, fmt.Errorf("flush: %w", err)
	}

	accepted, _, err := face.Trigger(id)
	if err != nil {
		return bundle, fmt.Errorf("trigger: %w", err)
	}
	if !accepted {
		return bundle, fmt.Errorf("trigger rejected: stale id %d", id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	select {
	case <-face.Ready():
	case <-ctx.Done():
		return bundle, fmt.Errorf("timed out waiting for readiness")
	}

	return region.DecodeMetrics(), nil
}

// loadSignalFromFile reads up to len(signal) whitespace-separated
// floats from path, one per non-blank, non-comment ('#') line,
// zero-padding any remainder and ignoring samples past len(signal).
func loadSignalFromFile(path string, signal []float64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for count < len(signal) && scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		v, err := strconv.ParseFloat(strings.Fields(line)[0], 64)
		if err != nil {
			continue
		}
		signal[count] = v
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("reading %s: %w", path, err)
	}

	if count < len(signal) {
		fmt.Printf("Warning: file %s only contains %d values (expected %d)\n", path, count, len(signal))
		for i := count; i < len(signal); i++ {
			signal[i] = 0.0
		}
	}
	return count, nil
}

func printSignalStats(name string, signal []float64) {
	min, max, sum := signal[0], signal[0], 0.0
	for _, v := range signal {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	mean := sum / float64(len(signal))
	var variance float64
	for _, v := range signal {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(signal))
	fmt.Printf("%s: min=%.4f, max=%.4f, mean=%.4f, stddev=%.4f\n", name, min, max, mean, math.Sqrt(variance))
}

func printResults(r float64, elapsed time.Duration, bundle [8]float64) {
	fmt.Printf("\nCRQA cycle time = %.3f ms\n", float64(elapsed.Microseconds())/1000.0)
	fmt.Println("\n=== CRQA Results ===")
	fmt.Printf("Configuration:\n  R = %.3f, N = %d samples\n", r, constants.N)
	fmt.Println("\nMetrics:")
	fmt.Printf("  Epsilon (DET):               %10.6f\n", bundle[0])
	fmt.Printf("  Recurrence Rate (RR):        %10.6f\n", bundle[1])
	fmt.Printf("  Determinism (DET):           %10.6f\n", bundle[2])
	fmt.Printf("  Laminarity (LAM):            %10.6f\n", bundle[3])
	fmt.Printf("  Trapping Time (TT):          %10.6f\n", bundle[4])
	fmt.Printf("  Max Diagonal Line (MAXL):    %10.6f\n", bundle[5])
	fmt.Printf("  Divergence (DIV):            %10.6f\n", bundle[6])
	fmt.Printf("  Entropy (ENTR):              %10.6f\n", bundle[7])
	fmt.Println("============================")
}
