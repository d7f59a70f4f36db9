package caps

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/motorbridge/bridge-go/pkg/channel"
	"github.com/motorbridge/bridge-go/pkg/log"
	"github.com/motorbridge/bridge-go/pkg/proto"
)

// Exchanger performs serial round trips. *channel.Manager satisfies it.
type Exchanger interface {
	Execute(ctx context.Context, req channel.Request) (proto.Reply, error)
}

// UnsupportedError indicates a command the device does not advertise.
type UnsupportedError struct {
	// Command is the gated wire verb.
	Command string
}

// Error implements the error interface.
func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("command %s not supported by device", e.Command)
}

// DeviceCapabilities is a cached capability snapshot. Replaced wholesale
// on re-probe, never partially mutated.
type DeviceCapabilities struct {
	// Device is the device identity string, if reported.
	Device string

	// ServoCount is the servo header count, if reported.
	ServoCount int

	// DegMin and DegMax bound the reported degree range.
	DegMin int
	DegMax int

	// Features holds reported feature flags.
	Features map[string]bool

	// Commands is the advertised command list. Nil means the device did
	// not advertise one (support unknown).
	Commands []string

	// Firmware is the firmware version string, if any query answered.
	Firmware string

	// FirmwareVerb is the query verb the device answered.
	FirmwareVerb string

	// CapturedAt is when this snapshot was taken.
	CapturedAt time.Time
}

// Cache issues capability probes and answers support queries.
// Safe for concurrent use.
type Cache struct {
	ex      Exchanger
	enforce bool
	logger  log.Logger

	// probeTimeout bounds each probe round trip.
	probeTimeout time.Duration

	mu   sync.RWMutex
	caps *DeviceCapabilities
}

// Option configures a Cache.
type Option func(*Cache)

// WithEnforcement enables rejection of commands missing from an advertised
// command list. Without it the list is informational only.
func WithEnforcement() Option {
	return func(c *Cache) { c.enforce = true }
}

// WithLogger sets the event logger.
func WithLogger(l log.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithProbeTimeout overrides the per-round-trip probe deadline.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Cache) { c.probeTimeout = d }
}

// NewCache creates an empty Cache over the given exchanger.
func NewCache(ex Exchanger, opts ...Option) *Cache {
	c := &Cache{
		ex:           ex,
		probeTimeout: 2500 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = log.OrNoop(c.logger)
	return c
}

// Probe performs a capability round trip followed by a version round trip
// and replaces the cached snapshot atomically. Each round trip can fail
// independently; an unreachable device still yields a timestamped snapshot
// with absent fields. Safe to call while commands are in flight.
func (c *Cache) Probe(ctx context.Context) (DeviceCapabilities, error) {
	snap := DeviceCapabilities{CapturedAt: time.Now()}

	if err := c.probeCaps(ctx, &snap); err != nil {
		c.logError("caps probe", err)
	}
	if err := c.probeFirmware(ctx, &snap); err != nil {
		c.logError("firmware probe", err)
	}

	c.mu.Lock()
	c.caps = &snap
	c.mu.Unlock()

	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerBridge,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.EntityCaps,
			NewState: "PROBED",
			Reason:   fmt.Sprintf("fw=%q commands=%d", snap.Firmware, len(snap.Commands)),
		},
	})
	return snap, ctx.Err()
}

func (c *Cache) probeCaps(ctx context.Context, snap *DeviceCapabilities) error {
	reply, err := c.ex.Execute(ctx, channel.Request{
		Line:            proto.VerbCaps,
		Timeout:         c.probeTimeout,
		KeepOpenOnError: true,
	})
	if err != nil {
		return err
	}

	var desc proto.CapsDescriptor
	if err := proto.DecodeJSONReply(reply, proto.VerbCaps, &desc); err != nil {
		return err
	}

	snap.Device = desc.Device
	snap.ServoCount = desc.ServoCount
	snap.DegMin = desc.DegMin
	snap.DegMax = desc.DegMax
	snap.Features = desc.Features
	snap.Commands = desc.CommandList()
	return nil
}

func (c *Cache) probeFirmware(ctx context.Context, snap *DeviceCapabilities) error {
	var lastErr error
	for _, verb := range proto.FirmwareVerbs {
		reply, err := c.ex.Execute(ctx, channel.Request{
			Line:            verb,
			Expect:          []string{"OK " + verb},
			Timeout:         c.probeTimeout,
			KeepOpenOnError: true,
		})
		if err != nil {
			lastErr = err
			continue
		}
		v, err := proto.DecodeVersionReply(reply, verb)
		if err != nil {
			lastErr = err
			continue
		}
		snap.Firmware = v
		snap.FirmwareVerb = verb
		return nil
	}
	// No alternate answered. Version state stays absent; not an error
	// condition for the bridge as a whole.
	return lastErr
}

// Get returns the cached snapshot, or ok=false when no probe has run.
func (c *Cache) Get() (DeviceCapabilities, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.caps == nil {
		return DeviceCapabilities{}, false
	}
	return *c.caps, true
}

// IsSupported reports whether the device supports a command. True when no
// snapshot exists, when the snapshot has no command list, when enforcement
// is disabled, or when the list contains the command (case-insensitive).
func (c *Cache) IsSupported(command string) bool {
	if !c.enforce {
		return true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.caps == nil || c.caps.Commands == nil {
		return true
	}
	for _, cmd := range c.caps.Commands {
		if strings.EqualFold(cmd, command) {
			return true
		}
	}
	return false
}

// Gate returns an UnsupportedError when the command is not supported.
func (c *Cache) Gate(command string) error {
	if !c.IsSupported(command) {
		return &UnsupportedError{Command: command}
	}
	return nil
}

// RunPeriodic re-probes at the given interval until the context is
// cancelled. Probe failures are logged and swallowed; the loop never
// terminates on a failed exchange.
func (c *Cache) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Probe(ctx); err != nil && ctx.Err() == nil {
				c.logError("periodic probe", err)
			}
		}
	}
}

func (c *Cache) logError(context string, err error) {
	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerBridge,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerBridge,
			Message: err.Error(),
			Context: context,
		},
	})
}
