package channel

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/motorbridge/bridge-go/pkg/log"
	"github.com/motorbridge/bridge-go/pkg/proto"
)

// Default manager settings.
const (
	// DefaultBaud is the serial baud rate.
	DefaultBaud = 115200

	// DefaultTimeout is the per-exchange reply deadline.
	DefaultTimeout = 2500 * time.Millisecond

	// DefaultOpenSettle is how long to wait after opening the port.
	// Arduino-class boards reset on open and need time to boot.
	DefaultOpenSettle = 2200 * time.Millisecond

	// DefaultMaxLine bounds a single reply line.
	DefaultMaxLine = 256

	// rxBufferCap bounds the receive buffer; on overflow the tail is kept.
	rxBufferCap  = 4096
	rxBufferKeep = 1024

	// readSlice bounds how long a single reply-wait iteration blocks
	// before re-checking the deadline and context.
	readSlice = 400 * time.Millisecond

	// maxSeenLines caps the unexpected lines recorded for a timeout error.
	maxSeenLines = 10
)

// Config configures a Manager.
type Config struct {
	// Port is the serial device path.
	Port string

	// Baud is the serial baud rate (default 115200).
	Baud int

	// Timeout is the default per-exchange reply deadline (default 2.5s).
	Timeout time.Duration

	// OpenSettle is the post-open boot delay (default 2.2s).
	OpenSettle time.Duration

	// MaxLine bounds a single reply line (default 256).
	MaxLine int

	// Opener opens the port. Defaults to OpenSerialPort.
	Opener PortOpener

	// Logger receives channel events. Nil disables logging.
	Logger log.Logger
}

// Request describes one exchange.
type Request struct {
	// Line is the command line (sanitized before sending).
	Line string

	// Expect are upper-cased reply prefixes that satisfy the exchange.
	// Nil infers them from the verb.
	Expect []string

	// Timeout overrides the manager default when positive.
	Timeout time.Duration

	// PreDrain discards buffered input for this long before sending.
	PreDrain time.Duration

	// KeepOpenOnError leaves the port open after a failed exchange.
	// By default the port is closed so the next exchange reconnects clean.
	KeepOpenOnError bool
}

// Manager owns the serial channel and serializes all exchanges on it.
type Manager struct {
	cfg    Config
	logger log.Logger

	// mu serializes exchanges and guards the connection. At most one
	// exchange holds it at a time; callers queue in acquisition order.
	mu   chan struct{}
	port Port
	rx   []byte

	// obs holds cheap observability state readable while an exchange
	// is in flight.
	obs struct {
		mu           chan struct{}
		sessionID    string
		connected    bool
		lastExchange time.Time
	}

	closed bool
}

// NewManager creates a Manager. The port is opened lazily on first use.
func NewManager(cfg Config) *Manager {
	if cfg.Baud <= 0 {
		cfg.Baud = DefaultBaud
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.OpenSettle < 0 {
		cfg.OpenSettle = 0
	} else if cfg.OpenSettle == 0 {
		cfg.OpenSettle = DefaultOpenSettle
	}
	if cfg.MaxLine <= 0 {
		cfg.MaxLine = DefaultMaxLine
	}
	if cfg.Opener == nil {
		cfg.Opener = OpenSerialPort
	}

	m := &Manager{
		cfg:    cfg,
		logger: log.OrNoop(cfg.Logger),
		mu:     make(chan struct{}, 1),
	}
	m.obs.mu = make(chan struct{}, 1)
	return m
}

// lock acquires the exchange lock, honoring context cancellation.
func (m *Manager) lock(ctx context.Context) error {
	select {
	case m.mu <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) unlock() { <-m.mu }

func (m *Manager) setObs(fn func()) {
	m.obs.mu <- struct{}{}
	fn()
	<-m.obs.mu
}

// SessionID returns the UUID of the current port session, or "" when the
// port is closed.
func (m *Manager) SessionID() string {
	var id string
	m.setObs(func() {
		if m.obs.connected {
			id = m.obs.sessionID
		}
	})
	return id
}

// Connected reports whether the port is currently open.
func (m *Manager) Connected() bool {
	var c bool
	m.setObs(func() { c = m.obs.connected })
	return c
}

// LastExchange returns the time of the last attempted exchange, successful
// or not. Zero when no exchange was ever attempted.
func (m *Manager) LastExchange() time.Time {
	var t time.Time
	m.setObs(func() { t = m.obs.lastExchange })
	return t
}

// Connect opens the port if it is not already open. It is called
// implicitly by Execute.
func (m *Manager) Connect(ctx context.Context) error {
	if err := m.lock(ctx); err != nil {
		return err
	}
	defer m.unlock()
	return m.connectLocked()
}

func (m *Manager) connectLocked() error {
	if m.closed {
		return ErrClosed
	}
	if m.port != nil {
		return nil
	}

	p, err := m.cfg.Opener(m.cfg.Port, m.cfg.Baud)
	if err != nil {
		m.logError("open", err)
		return &ChannelError{Op: "open", Err: err}
	}

	// Let the board finish its reset before talking to it.
	time.Sleep(m.cfg.OpenSettle)
	_ = p.ResetInputBuffer()
	_ = p.ResetOutputBuffer()

	m.port = p
	m.rx = m.rx[:0]

	sid := uuid.NewString()
	m.setObs(func() {
		m.obs.sessionID = sid
		m.obs.connected = true
	})
	m.logState(log.EntityChannel, "CLOSED", "OPEN", "")
	return nil
}

// Close closes the port. The manager may be reused; the next exchange
// reconnects. Use Shutdown to close permanently.
func (m *Manager) Close() error {
	m.mu <- struct{}{}
	defer m.unlock()
	return m.closeLocked()
}

// Shutdown closes the port and rejects all further exchanges.
func (m *Manager) Shutdown() error {
	m.mu <- struct{}{}
	defer m.unlock()
	m.closed = true
	return m.closeLocked()
}

func (m *Manager) closeLocked() error {
	if m.port == nil {
		return nil
	}
	err := m.port.Close()
	m.port = nil
	m.rx = m.rx[:0]
	m.setObs(func() { m.obs.connected = false })
	m.logState(log.EntityChannel, "OPEN", "CLOSED", "")
	if err != nil {
		return &ChannelError{Op: "close", Err: err}
	}
	return nil
}

// Execute performs one command/reply round trip. Callers are serialized;
// the reply belongs to this request or the call fails.
func (m *Manager) Execute(ctx context.Context, req Request) (proto.Reply, error) {
	if err := m.lock(ctx); err != nil {
		return proto.Reply{}, err
	}
	defer m.unlock()
	return m.executeLocked(ctx, req)
}

// ExecuteAll performs several exchanges under a single acquisition of the
// channel, stopping at the first failure. Used for command groups that
// must not interleave with other callers (stop A + stop B).
func (m *Manager) ExecuteAll(ctx context.Context, reqs []Request) ([]proto.Reply, error) {
	if err := m.lock(ctx); err != nil {
		return nil, err
	}
	defer m.unlock()

	replies := make([]proto.Reply, 0, len(reqs))
	for _, req := range reqs {
		r, err := m.executeLocked(ctx, req)
		if err != nil {
			return replies, err
		}
		replies = append(replies, r)
	}
	return replies, nil
}

func (m *Manager) executeLocked(ctx context.Context, req Request) (proto.Reply, error) {
	m.setObs(func() { m.obs.lastExchange = time.Now() })

	clean := proto.SanitizeLine(req.Line)
	if clean == "" {
		return proto.Reply{}, ErrEmptyCommand
	}

	if err := m.connectLocked(); err != nil {
		return proto.Reply{}, err
	}

	expect := req.Expect
	if expect == nil {
		expect = proto.ExpectPrefixes(clean)
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = m.cfg.Timeout
	}

	if req.PreDrain > 0 {
		m.drainLocked(ctx, req.PreDrain)
	}

	started := time.Now()
	reply, err := m.roundTripLocked(ctx, clean, expect, timeout)
	if err != nil {
		m.logError("exchange", err)
		if !req.KeepOpenOnError {
			_ = m.closeLocked()
		}
		return proto.Reply{}, err
	}

	m.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: m.obs.sessionID,
		Direction: log.DirectionTX,
		Layer:     log.LayerProto,
		Category:  log.CategoryExchange,
		Port:      m.cfg.Port,
		Exchange: &log.ExchangeEvent{
			Sent:    clean,
			Reply:   reply.Raw,
			Elapsed: time.Since(started),
		},
	})
	return reply, nil
}

func (m *Manager) roundTripLocked(ctx context.Context, line string, expect []string, timeout time.Duration) (proto.Reply, error) {
	payload := []byte(line + "\n")
	m.logLine(log.DirectionTX, line)

	if _, err := m.port.Write(payload); err != nil {
		return proto.Reply{}, &ChannelError{Op: "write", Err: err}
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var seen []string
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return proto.Reply{}, err
		}

		slice := time.Now().Add(readSlice)
		if slice.After(deadline) {
			slice = deadline
		}
		s, err := m.readLineLocked(slice)
		if err != nil {
			return proto.Reply{}, err
		}
		if s == "" {
			continue
		}
		m.logLine(log.DirectionRX, s)

		if proto.Ignorable(s) {
			continue
		}

		reply, derr := proto.DecodeReply(s)
		if derr != nil {
			// Framing garbage; count it against the deadline but keep
			// waiting for a real reply.
			seen = appendSeen(seen, s)
			continue
		}
		if !reply.OK {
			return proto.Reply{}, &proto.DeviceError{
				Sent:    line,
				Code:    reply.Code,
				Message: reply.Message,
			}
		}

		if matchesAny(reply, expect) {
			return reply, nil
		}
		// A reply for someone else, likely a previous timed-out
		// exchange. Discard it.
		seen = appendSeen(seen, s)
	}

	return proto.Reply{}, &TimeoutError{Sent: line, Expect: expect, Seen: seen}
}

// readLineLocked assembles one complete line from the port, or returns ""
// when the deadline passes first. CR bytes are stripped and blank lines
// skipped. An overlong line clears the buffer and surfaces as a device
// error line.
func (m *Manager) readLineLocked(deadline time.Time) (string, error) {
	chunk := make([]byte, 64)
	for time.Now().Before(deadline) {
		if i := bytes.IndexByte(m.rx, '\n'); i >= 0 {
			raw := m.rx[:i]
			m.rx = m.rx[i+1:]
			s := strings.TrimSpace(strings.ReplaceAll(string(raw), "\r", ""))
			if s == "" {
				continue
			}
			return s, nil
		}

		n, err := m.port.Read(chunk)
		if err != nil {
			return "", &ChannelError{Op: "read", Err: err}
		}
		if n > 0 {
			m.rx = append(m.rx, chunk[:n]...)
			if len(m.rx) > rxBufferCap {
				m.rx = append(m.rx[:0:0], m.rx[len(m.rx)-rxBufferKeep:]...)
			}
		}

		if len(m.rx) > m.cfg.MaxLine && bytes.IndexByte(m.rx, '\n') < 0 {
			m.rx = m.rx[:0]
			return "ERR LineTooLong", nil
		}
	}
	return "", nil
}

// Drain reads and discards device output for the given duration. Used at
// startup to flush boot noise before the first real exchange.
func (m *Manager) Drain(ctx context.Context, d time.Duration) ([]string, error) {
	if err := m.lock(ctx); err != nil {
		return nil, err
	}
	defer m.unlock()

	if err := m.connectLocked(); err != nil {
		return nil, err
	}
	return m.drainLocked(ctx, d), nil
}

func (m *Manager) drainLocked(ctx context.Context, d time.Duration) []string {
	const maxLines = 200
	end := time.Now().Add(d)
	var lines []string
	for time.Now().Before(end) && len(lines) < maxLines && ctx.Err() == nil {
		s, err := m.readLineLocked(time.Now().Add(100 * time.Millisecond))
		if err != nil {
			break
		}
		if s != "" {
			m.logLine(log.DirectionRX, s)
			lines = append(lines, s)
		}
	}
	return lines
}

// Ping performs a no-op round trip. Used by health checks.
func (m *Manager) Ping(ctx context.Context) error {
	_, err := m.Execute(ctx, Request{
		Line:            proto.VerbPing,
		KeepOpenOnError: true,
	})
	return err
}

func (m *Manager) logLine(dir log.Direction, s string) {
	const preview = 200
	ev := log.Event{
		Timestamp: time.Now(),
		SessionID: m.obs.sessionID,
		Direction: dir,
		Layer:     log.LayerChannel,
		Category:  log.CategoryLine,
		Port:      m.cfg.Port,
		Line:      &log.LineEvent{Text: s, Size: len(s)},
	}
	if len(s) > preview {
		ev.Line.Text = s[:preview]
		ev.Line.Truncated = true
	}
	m.logger.Log(ev)
}

func (m *Manager) logError(context string, err error) {
	m.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: m.obs.sessionID,
		Layer:     log.LayerChannel,
		Category:  log.CategoryError,
		Port:      m.cfg.Port,
		Error: &log.ErrorEventData{
			Layer:   log.LayerChannel,
			Message: err.Error(),
			Context: context,
		},
	})
}

func (m *Manager) logState(entity log.StateEntity, oldState, newState, reason string) {
	m.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: m.obs.sessionID,
		Layer:     log.LayerChannel,
		Category:  log.CategoryState,
		Port:      m.cfg.Port,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func matchesAny(r proto.Reply, prefixes []string) bool {
	for _, p := range prefixes {
		if r.HasPrefix(p) {
			return true
		}
	}
	return false
}

func appendSeen(seen []string, s string) []string {
	if len(seen) < maxSeenLines {
		seen = append(seen, s)
	}
	return seen
}
