// Command rayhunter-daemon runs the capture pipeline against a real or
// simulated diag device: it loads the daemon config, opens the device,
// configures its log masks, opens (or recovers) the recording store, and
// blocks until interrupted. Flag surface and console status lines follow
// sa53fw/main.go; log-level handling follows cmd/ntpresponder/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/EFForg/rayhunter-sub000/analyzerharness"
	"github.com/EFForg/rayhunter-sub000/analyzers/imsiexposure"
	"github.com/EFForg/rayhunter-sub000/analyzers/nullcipher"
	"github.com/EFForg/rayhunter-sub000/capturepipeline"
	"github.com/EFForg/rayhunter-sub000/daemonconfig"
	"github.com/EFForg/rayhunter-sub000/diagdevice"
	"github.com/EFForg/rayhunter-sub000/recordingstore"
	"github.com/EFForg/rayhunter-sub000/rrcie"
)

// toolVersion is stamped into every manifest entry this daemon creates.
const toolVersion = "0.1.0"

var (
	okString   = color.GreenString("[OK]")
	infoString = color.GreenString("[INFO]")
	warnString = color.YellowString("[WARN]")
	failString = color.RedString("[FAIL]")
)

func main() {
	var (
		configPath   string
		devicePath   string
		simulated    bool
		simulateBaud int
		logLevel     string
	)

	flag.StringVar(&configPath, "config", "/etc/rayhunter/config.yaml", "Daemon config file")
	flag.StringVar(&devicePath, "device", "/dev/diag", "Diag character device path")
	flag.BoolVar(&simulated, "simulated", false, "Open a serial-backed simulated device instead of the real /dev/diag ioctl path")
	flag.IntVar(&simulateBaud, "simulated-baud", 115200, "Baud rate for the simulated device")
	flag.StringVar(&logLevel, "loglevel", "", "Override the config's log level (debug, info, warning, error)")
	flag.Parse()

	cfg := daemonconfig.Default()
	if loaded, err := daemonconfig.Load(configPath); err != nil {
		fmt.Println(warnString, "no usable config at", configPath, "- using defaults:", err)
	} else {
		cfg = loaded
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	configureLogLevel(cfg.LogLevel)

	for {
		restart, err := runOnce(cfg, devicePath, simulated, simulateBaud)
		if err != nil {
			fmt.Println(failString, err)
			os.Exit(1)
		}
		if !restart {
			fmt.Println(okString, "shutting down")
			return
		}
		fmt.Println(infoString, "restart requested, reloading config")
		if reloaded, err := daemonconfig.Load(configPath); err == nil {
			cfg = reloaded
			configureLogLevel(cfg.LogLevel)
		}
	}
}

func configureLogLevel(name string) {
	lvl, err := log.ParseLevel(name)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

// runOnce opens the device and store, runs the pipeline until shutdown,
// and reports whether a restart was requested (true) versus a clean exit
// on interrupt (false).
func runOnce(cfg daemonconfig.Config, devicePath string, simulated bool, simulateBaud int) (bool, error) {
	fmt.Println(infoString, "opening diag device...")
	driver, err := openDevice(devicePath, simulated, simulateBaud)
	if err != nil {
		return false, fmt.Errorf("opening diag device: %w", err)
	}
	defer driver.Close()

	if !cfg.ReadonlyMode {
		fmt.Println(infoString, "configuring log masks...")
		if err := driver.ConfigureLogs(); err != nil {
			return false, fmt.Errorf("configuring log masks: %w", err)
		}
		fmt.Println(okString, "log masks configured")
	}

	store, err := openOrRecoverStore(cfg.QmdlStorePath)
	if err != nil {
		return false, fmt.Errorf("opening recording store: %w", err)
	}
	var storeMu sync.RWMutex

	reg := prometheus.NewRegistry()
	harness := analyzerharness.New(reg, rrcie.NoopDecoder{}, toolVersion, nullcipher.Analyzer{}, imsiexposure.Analyzer{})

	pipeline := capturepipeline.New(driver, store, &storeMu, harness)

	ctx, cancel := context.WithCancel(context.Background())
	runErrCh := make(chan error, 1)
	go func() { runErrCh <- pipeline.Run(ctx) }()

	if !cfg.ReadonlyMode {
		pipeline.DeviceCtrl <- capturepipeline.StartRecording
		fmt.Println(okString, "recording started")
	}

	go drainUIUpdates(pipeline)
	go printStatusLine(ctx, pipeline)

	sigCh := make(chan os.Signal, 1)
	restartCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	signal.Notify(restartCh, syscall.SIGHUP)

	select {
	case <-sigCh:
		cancel()
		<-runErrCh
		return false, nil
	case <-restartCh:
		cancel()
		<-runErrCh
		return true, nil
	case err := <-runErrCh:
		cancel()
		return false, err
	}
}

// progressLine overwrites the current terminal line, the way
// sa53fw/main.go reports firmware-upload progress. It's a no-op when
// stdout isn't a terminal, so log files never fill up with carriage
// returns.
func progressLine(format string, args ...interface{}) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return
	}
	fmt.Printf("[1000D")
	fmt.Printf(format, args...)
}

// printStatusLine reports the offline-analysis queue depth on a terminal
// until ctx is cancelled.
func printStatusLine(ctx context.Context, p *capturepipeline.Pipeline) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := p.Status()
			running := "-"
			if s.Running != nil {
				running = *s.Running
			}
			progressLine("analysis: %d queued, running=%s, %d finished", len(s.Queued), running, len(s.Finished))
		}
	}
}

func drainUIUpdates(p *capturepipeline.Pipeline) {
	for state := range p.UIUpdates {
		switch state {
		case capturepipeline.Recording:
			log.Info("ui: recording")
		case capturepipeline.Paused:
			log.Info("ui: paused")
		case capturepipeline.WarningDetected:
			fmt.Println(warnString, "analyzer raised a warning-severity event")
		}
	}
}

func openDevice(path string, simulated bool, baud int) (*diagdevice.Driver, error) {
	if simulated {
		return diagdevice.OpenSimulated(path, baud)
	}
	return diagdevice.Open(path)
}

func openOrRecoverStore(path string) (*recordingstore.Store, error) {
	exists, err := recordingstore.Exists(path)
	if err != nil {
		return nil, err
	}
	if exists {
		return recordingstore.Load(path)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		fmt.Println(warnString, "store directory exists without a manifest, recovering...")
		return recordingstore.Recover(path)
	}
	return recordingstore.Create(path)
}
