// bridged is the bridge daemon: it attaches to a serial motor controller,
// brings the servo power rail up, probes device capabilities, runs the
// idle watchdog and advertises the bridge over mDNS until terminated.
//
// Usage:
//
//	# Attach to an auto-detected USB serial port
//	bridged
//
//	# Explicit port and config file
//	bridged -port /dev/ttyUSB0 -config /etc/motorbridge/bridge.yaml
//
//	# Disable the watchdog, verbose console output
//	bridged -no-watchdog -verbose
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/motorbridge/bridge-go/pkg/bridge"
	"github.com/motorbridge/bridge-go/pkg/caps"
	"github.com/motorbridge/bridge-go/pkg/channel"
	"github.com/motorbridge/bridge-go/pkg/config"
	"github.com/motorbridge/bridge-go/pkg/discovery"
	"github.com/motorbridge/bridge-go/pkg/log"
	"github.com/motorbridge/bridge-go/pkg/proto"
	"github.com/motorbridge/bridge-go/pkg/safety"
	"github.com/motorbridge/bridge-go/pkg/version"
	"github.com/motorbridge/bridge-go/pkg/watchdog"
)

type flags struct {
	ConfigFile string
	Port       string
	Baud       int
	LogFile    string
	Verbose    bool
	NoWatchdog bool
	NoMDNS     bool
	Enforce    bool
}

var opts flags

func init() {
	flag.StringVar(&opts.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&opts.Port, "port", "", "Serial port path, or \"auto\" (overrides config)")
	flag.IntVar(&opts.Baud, "baud", 0, "Serial baud rate (overrides config)")
	flag.StringVar(&opts.LogFile, "log-file", "", "Event log path (CBOR, overrides config)")
	flag.BoolVar(&opts.Verbose, "verbose", false, "Mirror events to console at debug level")
	flag.BoolVar(&opts.NoWatchdog, "no-watchdog", false, "Disable the idle watchdog")
	flag.BoolVar(&opts.NoMDNS, "no-mdns", false, "Disable mDNS advertisement")
	flag.BoolVar(&opts.Enforce, "enforce-caps", false, "Reject commands the device does not announce")
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bridged: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	settings, err := config.Load(opts.ConfigFile)
	if err != nil {
		return err
	}
	applyFlags(settings)

	logger, closeLog, err := buildLogger(settings)
	if err != nil {
		return err
	}
	defer closeLog()

	portName := settings.Serial.Port
	if portName == "auto" {
		portName, err = channel.DiscoverPort(nil)
		if err != nil {
			return fmt.Errorf("port discovery: %w", err)
		}
		slog.Info("discovered serial port", "port", portName)
	}

	mgr := channel.NewManager(channel.Config{
		Port:       portName,
		Baud:       settings.Serial.Baud,
		Timeout:    settings.SerialTimeout(),
		OpenSettle: settings.OpenSettle(),
		Logger:     logger,
	})
	defer mgr.Shutdown()

	safetyCfg, err := settings.SafetyConfig()
	if err != nil {
		return err
	}
	engine := safety.NewEngine(safetyCfg)

	capOpts := []caps.Option{
		caps.WithLogger(logger),
		caps.WithProbeTimeout(time.Duration(settings.Caps.ProbeTimeoutMs) * time.Millisecond),
	}
	if settings.Caps.Enforce {
		capOpts = append(capOpts, caps.WithEnforcement())
	}
	cache := caps.NewCache(mgr, capOpts...)

	br := bridge.New(mgr, cache, engine, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bring the device up: power rail first, then the capability probe.
	if settings.Servos.PowerMode != "" {
		mode, err := proto.ParsePowerMode(settings.Servos.PowerMode)
		if err != nil {
			return err
		}
		if err := br.EnsurePowerMode(ctx, mode); err != nil {
			return fmt.Errorf("power bootstrap: %w", err)
		}
		slog.Info("servo power configured", "mode", mode)
	}

	snapshot, err := cache.Probe(ctx)
	if err != nil {
		slog.Warn("capability probe failed, continuing without capabilities", "err", err)
	} else {
		slog.Info("device attached",
			"port", portName,
			"device", snapshot.Device,
			"firmware", snapshot.Firmware,
			"servos", snapshot.ServoCount)
	}

	if settings.Caps.ReprobeIntervalMs > 0 {
		go cache.RunPeriodic(ctx, time.Duration(settings.Caps.ReprobeIntervalMs)*time.Millisecond)
	}

	if settings.Watchdog.Enabled {
		wd := watchdog.New(watchdog.Config{
			Tick:      time.Duration(settings.Watchdog.TickMs) * time.Millisecond,
			MotorIdle: time.Duration(settings.Watchdog.MotorIdleMs) * time.Millisecond,
			ServoIdle: time.Duration(settings.Watchdog.ServoIdleMs) * time.Millisecond,
			ServoSafe: settings.Watchdog.ServoSafe,
		}, br, br.Activity(), logger)
		go wd.Run(ctx)
		slog.Info("watchdog running",
			"motor_idle_ms", settings.Watchdog.MotorIdleMs,
			"servo_idle_ms", settings.Watchdog.ServoIdleMs)
	}

	var advertiser *discovery.MDNSAdvertiser
	if settings.Discovery.Enabled {
		advertiser = discovery.NewMDNSAdvertiser(discovery.DefaultAdvertiserConfig())
		info := &discovery.BridgeInfo{
			InstanceName: settings.Discovery.InstanceName,
			Port:         settings.Discovery.Port,
			ServoCount:   settings.Servos.Count,
			SerialPort:   portName,
			SessionID:    mgr.SessionID(),
		}
		if snap, ok := cache.Get(); ok {
			info.Device = snap.Device
			info.Firmware = snap.Firmware
			// Boards answer FWVER in varying shapes; advertise the
			// normalized form when one can be extracted.
			if fw, _, err := version.Extract(snap.Firmware); err == nil {
				info.Firmware = fw.String()
			}
		}
		if err := advertiser.Advertise(info); err != nil {
			slog.Warn("mDNS advertisement failed", "err", err)
			advertiser = nil
		} else {
			slog.Info("advertising", "instance", info.InstanceName, "type", discovery.ServiceType)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig.String())

	cancel()
	if advertiser != nil {
		advertiser.Stop()
	}

	// Leave the device stationary. Best effort: the port may be gone.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer stopCancel()
	if err := br.StopAllMotors(stopCtx, false); err != nil {
		slog.Warn("final motor stop failed", "err", err)
	}

	return nil
}

// applyFlags overlays command-line flags on the loaded settings.
func applyFlags(s *config.Settings) {
	if opts.Port != "" {
		s.Serial.Port = opts.Port
	}
	if opts.Baud > 0 {
		s.Serial.Baud = opts.Baud
	}
	if opts.LogFile != "" {
		s.Log.File = opts.LogFile
	}
	if opts.Verbose {
		s.Log.Console = true
	}
	if opts.NoWatchdog {
		s.Watchdog.Enabled = false
	}
	if opts.NoMDNS {
		s.Discovery.Enabled = false
	}
	if opts.Enforce {
		s.Caps.Enforce = true
	}
}

// buildLogger assembles the event logger from the log settings: a CBOR
// file sink, a console mirror, both, or neither.
func buildLogger(s *config.Settings) (log.Logger, func(), error) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var loggers []log.Logger
	closeLog := func() {}

	if s.Log.File != "" {
		fl, err := log.NewFileLogger(s.Log.File)
		if err != nil {
			return nil, nil, fmt.Errorf("opening event log: %w", err)
		}
		loggers = append(loggers, fl)
		closeLog = func() { fl.Close() }
	}
	if s.Log.Console {
		loggers = append(loggers, log.NewSlogAdapter(slog.Default()))
	}

	switch len(loggers) {
	case 0:
		return nil, closeLog, nil
	case 1:
		return loggers[0], closeLog, nil
	default:
		return log.NewMultiLogger(loggers...), closeLog, nil
	}
}
