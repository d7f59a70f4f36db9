// bridge-console is an interactive shell for a serial motor controller.
// It attaches to the device through the same pipeline as bridged and
// exposes motors, servos, drive mixing and the emergency stop as
// readline commands.
//
// Usage:
//
//	bridge-console
//	bridge-console -port /dev/ttyUSB0 -config bridge.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/motorbridge/bridge-go/cmd/bridge-console/interactive"
	"github.com/motorbridge/bridge-go/pkg/bridge"
	"github.com/motorbridge/bridge-go/pkg/caps"
	"github.com/motorbridge/bridge-go/pkg/channel"
	"github.com/motorbridge/bridge-go/pkg/config"
	"github.com/motorbridge/bridge-go/pkg/proto"
	"github.com/motorbridge/bridge-go/pkg/safety"
)

func main() {
	configFile := flag.String("config", "", "Configuration file path (YAML)")
	port := flag.String("port", "", "Serial port path, or \"auto\" (overrides config)")
	baud := flag.Int("baud", 0, "Serial baud rate (overrides config)")
	noPower := flag.Bool("no-power", false, "Skip the servo power bootstrap")
	flag.Parse()

	if err := run(*configFile, *port, *baud, *noPower); err != nil {
		fmt.Fprintf(os.Stderr, "bridge-console: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, portFlag string, baudFlag int, noPower bool) error {
	settings, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if portFlag != "" {
		settings.Serial.Port = portFlag
	}
	if baudFlag > 0 {
		settings.Serial.Baud = baudFlag
	}

	portName := settings.Serial.Port
	if portName == "auto" {
		portName, err = channel.DiscoverPort(nil)
		if err != nil {
			return fmt.Errorf("port discovery: %w", err)
		}
		fmt.Printf("Using serial port %s\n", portName)
	}

	mgr := channel.NewManager(channel.Config{
		Port:       portName,
		Baud:       settings.Serial.Baud,
		Timeout:    settings.SerialTimeout(),
		OpenSettle: settings.OpenSettle(),
	})
	defer mgr.Shutdown()

	safetyCfg, err := settings.SafetyConfig()
	if err != nil {
		return err
	}
	engine := safety.NewEngine(safetyCfg)

	capOpts := []caps.Option{
		caps.WithProbeTimeout(time.Duration(settings.Caps.ProbeTimeoutMs) * time.Millisecond),
	}
	if settings.Caps.Enforce {
		capOpts = append(capOpts, caps.WithEnforcement())
	}
	cache := caps.NewCache(mgr, capOpts...)

	br := bridge.New(mgr, cache, engine, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !noPower && settings.Servos.PowerMode != "" {
		mode, err := proto.ParsePowerMode(settings.Servos.PowerMode)
		if err != nil {
			return err
		}
		fmt.Println("Bringing up servo power...")
		if err := br.EnsurePowerMode(ctx, mode); err != nil {
			fmt.Printf("Warning: power bootstrap failed: %v\n", err)
		}
	}

	if snap, err := cache.Probe(ctx); err != nil {
		fmt.Printf("Warning: capability probe failed: %v\n", err)
	} else {
		fmt.Printf("Attached: %s (fw %s, %d servos)\n", snap.Device, snap.Firmware, snap.ServoCount)
	}

	console, err := interactive.New(br)
	if err != nil {
		return err
	}
	console.Run(ctx, cancel)
	return nil
}
