package log

import (
	"time"
)

// Event represents a bridge log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies one open of the serial channel (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates line flow relative to the bridge.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Port is the serial port name, when known.
	Port string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Line        *LineEvent        `cbor:"7,keyasint,omitempty"`  // Channel layer
	Exchange    *ExchangeEvent    `cbor:"8,keyasint,omitempty"`  // Proto layer
	StateChange *StateChangeEvent `cbor:"9,keyasint,omitempty"`  // Bridge state
	Error       *ErrorEventData   `cbor:"10,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of a wire line.
type Direction uint8

const (
	// DirectionRX indicates a line received from the device.
	DirectionRX Direction = 0
	// DirectionTX indicates a line sent to the device.
	DirectionTX Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionRX:
		return "RX"
	case DirectionTX:
		return "TX"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which bridge layer captured the event.
type Layer uint8

const (
	// LayerChannel is the serial transport layer (raw lines).
	LayerChannel Layer = 0
	// LayerProto is the codec layer (decoded exchanges).
	LayerProto Layer = 1
	// LayerBridge is the core/safety layer.
	LayerBridge Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerChannel:
		return "CHANNEL"
	case LayerProto:
		return "PROTO"
	case LayerBridge:
		return "BRIDGE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryLine indicates a raw wire line.
	CategoryLine Category = 0
	// CategoryExchange indicates a completed command/reply round trip.
	CategoryExchange Category = 1
	// CategoryState indicates a state change (estop, watchdog, channel).
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryLine:
		return "LINE"
	case CategoryExchange:
		return "EXCHANGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LineEvent captures one raw line at the channel layer.
type LineEvent struct {
	// Text is the line content (may be truncated for preview limits).
	Text string `cbor:"1,keyasint"`

	// Size is the full line size in bytes.
	Size int `cbor:"2,keyasint"`

	// Truncated indicates if Text was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// ExchangeEvent captures one completed command round trip.
type ExchangeEvent struct {
	// Sent is the sanitized command line.
	Sent string `cbor:"1,keyasint"`

	// Reply is the matched reply line (empty on failure).
	Reply string `cbor:"2,keyasint,omitempty"`

	// Elapsed is the round-trip duration. Stored as nanoseconds.
	Elapsed time.Duration `cbor:"3,keyasint,omitempty"`

	// MarkedActivity indicates the exchange advanced the watchdog clock.
	MarkedActivity bool `cbor:"4,keyasint,omitempty"`
}

// StateChangeEvent captures bridge state transitions.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity identifies what kind of state changed.
type StateEntity uint8

const (
	// EntityChannel is the serial channel open/closed state.
	EntityChannel StateEntity = 0
	// EntityEstop is the emergency-stop latch.
	EntityEstop StateEntity = 1
	// EntityWatchdog is the idle watchdog.
	EntityWatchdog StateEntity = 2
	// EntityCaps is the capability cache.
	EntityCaps StateEntity = 3
)

// String returns the entity name.
func (e StateEntity) String() string {
	switch e {
	case EntityChannel:
		return "CHANNEL"
	case EntityEstop:
		return "ESTOP"
	case EntityWatchdog:
		return "WATCHDOG"
	case EntityCaps:
		return "CAPS"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures error details at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`

	// Context describes what was being attempted.
	Context string `cbor:"3,keyasint,omitempty"`
}
