package caps

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorbridge/bridge-go/pkg/channel"
	"github.com/motorbridge/bridge-go/pkg/proto"
)

// scriptedExchanger answers exchanges from a fixed reply table.
type scriptedExchanger struct {
	replies map[string]string
	errs    map[string]error
	lines   []string
}

func (s *scriptedExchanger) Execute(ctx context.Context, req channel.Request) (proto.Reply, error) {
	s.lines = append(s.lines, req.Line)
	if err, ok := s.errs[req.Line]; ok {
		return proto.Reply{}, err
	}
	raw, ok := s.replies[req.Line]
	if !ok {
		return proto.Reply{}, errors.New("unexpected command: " + req.Line)
	}
	return proto.DecodeReply(raw)
}

func TestProbe(t *testing.T) {
	ex := &scriptedExchanger{replies: map[string]string{
		"CAPS":  `OK CAPS {"device":"romeo","servo_count":4,"deg_min":0,"deg_max":180,"commands":["SetServo","PING"]}`,
		"FWVER": "OK FWVER 2.1.0",
	}}
	cache := NewCache(ex)

	snap, err := cache.Probe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "romeo", snap.Device)
	assert.Equal(t, 4, snap.ServoCount)
	assert.Equal(t, "2.1.0", snap.Firmware)
	assert.Equal(t, "FWVER", snap.FirmwareVerb)
	assert.Equal(t, []string{"SetServo", "PING"}, snap.Commands)
	assert.False(t, snap.CapturedAt.IsZero())

	got, ok := cache.Get()
	require.True(t, ok)
	assert.Equal(t, snap, got)
}

func TestProbeFirmwareFallback(t *testing.T) {
	// Old firmware ignores FWVER and VERSION, answers only VER.
	ex := &scriptedExchanger{
		replies: map[string]string{
			"CAPS": `OK CAPS {"device":"legacy"}`,
			"VER":  "OK VER 0.9",
		},
		errs: map[string]error{
			"FWVER":   errors.New("timeout"),
			"VERSION": errors.New("timeout"),
		},
	}
	cache := NewCache(ex)

	snap, err := cache.Probe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "0.9", snap.Firmware)
	assert.Equal(t, "VER", snap.FirmwareVerb)
	// Alternates were tried in order.
	assert.Equal(t, []string{"CAPS", "FWVER", "VERSION", "VER"}, ex.lines)
}

func TestProbePartialFailure(t *testing.T) {
	// CAPS fails but the firmware probe is independent of it.
	ex := &scriptedExchanger{
		replies: map[string]string{
			"FWVER": "OK FWVER 1.0",
		},
		errs: map[string]error{
			"CAPS": errors.New("timeout"),
		},
	}
	cache := NewCache(ex)

	snap, err := cache.Probe(context.Background())
	require.NoError(t, err)

	assert.Empty(t, snap.Device)
	assert.Nil(t, snap.Commands)
	assert.Equal(t, "1.0", snap.Firmware)

	// The failed probe still produced a snapshot.
	_, ok := cache.Get()
	assert.True(t, ok)
}

func TestIsSupportedWithoutEnforcement(t *testing.T) {
	ex := &scriptedExchanger{replies: map[string]string{
		"CAPS":  `OK CAPS {"commands":[]}`,
		"FWVER": "OK FWVER 1.0",
	}}
	cache := NewCache(ex)

	_, err := cache.Probe(context.Background())
	require.NoError(t, err)

	// Enforcement is off, even an empty advertised list blocks nothing.
	assert.True(t, cache.IsSupported("SetServo"))
	assert.NoError(t, cache.Gate("SetServo"))
}

func TestGateEnforced(t *testing.T) {
	ex := &scriptedExchanger{replies: map[string]string{
		"CAPS":  `OK CAPS {"commands":["SetServo","SetAEngine"]}`,
		"FWVER": "OK FWVER 1.0",
	}}
	cache := NewCache(ex, WithEnforcement())

	// Before any probe everything passes.
	assert.NoError(t, cache.Gate("EStop"))

	_, err := cache.Probe(context.Background())
	require.NoError(t, err)

	assert.NoError(t, cache.Gate("SetServo"))
	assert.NoError(t, cache.Gate("setservo")) // case-insensitive

	err = cache.Gate("ServoCenter")
	var uerr *UnsupportedError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "ServoCenter", uerr.Command)
}

func TestGateEnforcedNoList(t *testing.T) {
	// A device that advertises no command list cannot be gated.
	ex := &scriptedExchanger{replies: map[string]string{
		"CAPS":  `OK CAPS {"device":"quiet"}`,
		"FWVER": "OK FWVER 1.0",
	}}
	cache := NewCache(ex, WithEnforcement())

	_, err := cache.Probe(context.Background())
	require.NoError(t, err)

	assert.NoError(t, cache.Gate("AnythingAtAll"))
}

func TestGateEnforcedEmptyList(t *testing.T) {
	// An explicit empty list blocks every gated command.
	ex := &scriptedExchanger{replies: map[string]string{
		"CAPS":  `OK CAPS {"commands":[]}`,
		"FWVER": "OK FWVER 1.0",
	}}
	cache := NewCache(ex, WithEnforcement())

	_, err := cache.Probe(context.Background())
	require.NoError(t, err)

	var uerr *UnsupportedError
	require.ErrorAs(t, cache.Gate("SetServo"), &uerr)
}

func TestProbeReplacesSnapshot(t *testing.T) {
	ex := &scriptedExchanger{replies: map[string]string{
		"CAPS":  `OK CAPS {"commands":["SetServo"]}`,
		"FWVER": "OK FWVER 1.0",
	}}
	cache := NewCache(ex, WithEnforcement())

	_, err := cache.Probe(context.Background())
	require.NoError(t, err)
	require.NoError(t, cache.Gate("SetServo"))

	// New firmware answer drops the command.
	ex.replies["CAPS"] = `OK CAPS {"commands":["PING"]}`
	_, err = cache.Probe(context.Background())
	require.NoError(t, err)

	var uerr *UnsupportedError
	assert.ErrorAs(t, cache.Gate("SetServo"), &uerr)
}
