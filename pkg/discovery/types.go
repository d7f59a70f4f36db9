// Package discovery advertises a running bridge on the local network via
// mDNS/DNS-SD. The advertisement carries the bridged device's identity in
// TXT records so controllers can pick a bridge without opening a
// connection.
package discovery

import (
	"errors"
	"strconv"
)

const (
	// ServiceType is the DNS-SD service type for bridge daemons.
	ServiceType = "_motorbridge._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPort is advertised when no port is configured.
	DefaultPort = 8280

	// MaxInstanceNameLen caps the advertised instance name per DNS-SD
	// label limits.
	MaxInstanceNameLen = 63
)

// TXT record keys.
const (
	TXTKeyDevice     = "dev"  // device model string from CAPS
	TXTKeyFirmware   = "fw"   // firmware version
	TXTKeyServoCount = "sc"   // number of servos
	TXTKeySerialPort = "port" // serial port path the bridge is attached to
	TXTKeySession    = "sid"  // channel session UUID
)

var (
	// ErrMissingRequired indicates a required field is missing.
	ErrMissingRequired = errors.New("missing required field")

	// ErrNotAdvertising indicates no advertisement is active.
	ErrNotAdvertising = errors.New("not advertising")
)

// BridgeInfo describes one advertised bridge.
type BridgeInfo struct {
	// InstanceName is the DNS-SD instance name.
	InstanceName string

	// Port is the advertised TCP port.
	Port int

	// Device is the device model from the capability probe.
	Device string

	// Firmware is the device firmware version.
	Firmware string

	// ServoCount is the number of configured servos.
	ServoCount int

	// SerialPort is the serial port the bridge is attached to.
	SerialPort string

	// SessionID is the current channel session.
	SessionID string
}

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates TXT records for a bridge advertisement.
func EncodeTXT(info *BridgeInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	if info.Device != "" {
		txt[TXTKeyDevice] = info.Device
	}
	if info.Firmware != "" {
		txt[TXTKeyFirmware] = info.Firmware
	}
	if info.ServoCount > 0 {
		txt[TXTKeyServoCount] = strconv.Itoa(info.ServoCount)
	}
	if info.SerialPort != "" {
		txt[TXTKeySerialPort] = info.SerialPort
	}
	if info.SessionID != "" {
		txt[TXTKeySession] = info.SessionID
	}

	return txt
}

// DecodeTXT parses TXT records from a browse result.
func DecodeTXT(txt TXTRecordMap) *BridgeInfo {
	info := &BridgeInfo{
		Device:     txt[TXTKeyDevice],
		Firmware:   txt[TXTKeyFirmware],
		SerialPort: txt[TXTKeySerialPort],
		SessionID:  txt[TXTKeySession],
	}
	if sc, err := strconv.Atoi(txt[TXTKeyServoCount]); err == nil {
		info.ServoCount = sc
	}
	return info
}

// TXTRecordsToStrings converts a TXT map to "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	out := make([]string, 0, len(txt))
	for k, v := range txt {
		out = append(out, k+"="+v)
	}
	return out
}

// ParseTXTStrings converts "key=value" strings to a TXT map. Entries
// without "=" are ignored.
func ParseTXTStrings(records []string) TXTRecordMap {
	txt := make(TXTRecordMap, len(records))
	for _, r := range records {
		for i := 0; i < len(r); i++ {
			if r[i] == '=' {
				txt[r[:i]] = r[i+1:]
				break
			}
		}
	}
	return txt
}
