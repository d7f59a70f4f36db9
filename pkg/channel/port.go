package channel

import (
	"time"

	"go.bug.st/serial"
)

// Port abstracts the subset of a serial port the manager uses.
// go.bug.st/serial.Port satisfies it; tests substitute a fake device.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadTimeout(d time.Duration) error
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// PortOpener opens a Port by name at the given baud rate.
type PortOpener func(name string, baud int) (Port, error)

// chunkReadTimeout bounds a single Read so the reply wait loop can check
// its deadline between chunks.
const chunkReadTimeout = 50 * time.Millisecond

// OpenSerialPort is the default PortOpener backed by go.bug.st/serial.
func OpenSerialPort(name string, baud int) (Port, error) {
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(chunkReadTimeout); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}
