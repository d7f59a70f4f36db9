package channel

import (
	"errors"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// ErrNoPorts is returned when no serial ports are present on the host.
var ErrNoPorts = errors.New("no serial ports found")

// PortInfo describes one enumerated serial port.
type PortInfo struct {
	// Name is the device path, e.g. /dev/ttyACM0.
	Name string

	// Product is the USB product string, if the port is USB-attached.
	Product string

	// VID and PID are the USB vendor/product IDs (upper-case hex, no 0x).
	VID string
	PID string

	// IsUSB indicates a USB-attached port.
	IsUSB bool
}

// usbKeywords mark product strings of the USB-serial adapters commonly
// found on Arduino-class boards.
var usbKeywords = []string{
	"arduino",
	"ch340",
	"wch",
	"cp210",
	"silicon labs",
	"ftdi",
	"usb serial",
	"usb-serial",
	"acm",
	"serial",
}

// score ranks a port by how likely it is to be the attached controller.
func (p PortInfo) score() int {
	s := 0
	text := strings.ToLower(p.Product)
	for _, k := range usbKeywords {
		if strings.Contains(text, k) {
			s += 10
			break
		}
	}
	if strings.HasPrefix(p.Name, "/dev/ttyACM") || strings.Contains(strings.ToLower(p.Name), "usbmodem") {
		s += 5
	}
	if strings.HasPrefix(p.Name, "/dev/ttyUSB") {
		s += 3
	}
	if p.IsUSB {
		s++
	}
	return s
}

// ListPorts enumerates the host's serial ports with USB details.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	infos := make([]PortInfo, 0, len(details))
	for _, d := range details {
		infos = append(infos, PortInfo{
			Name:    d.Name,
			Product: d.Product,
			VID:     d.VID,
			PID:     d.PID,
			IsUSB:   d.IsUSB,
		})
	}
	return infos, nil
}

// DiscoverPort picks the port most likely to be the device. When preferred
// VID:PID pairs are given (e.g. "2341:0043" for an Uno) an exact match wins
// outright; otherwise ports are ranked by adapter heuristics.
func DiscoverPort(preferVIDPID []string) (string, error) {
	ports, err := ListPorts()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", ErrNoPorts
	}

	for _, want := range preferVIDPID {
		parts := strings.SplitN(strings.ToUpper(want), ":", 2)
		if len(parts) != 2 {
			continue
		}
		for _, p := range ports {
			if p.VID == parts[0] && p.PID == parts[1] {
				return p.Name, nil
			}
		}
	}

	sort.SliceStable(ports, func(i, j int) bool {
		return ports[i].score() > ports[j].score()
	})
	return ports[0].Name, nil
}
