package bridge

import (
	"context"
	"errors"

	"github.com/motorbridge/bridge-go/pkg/caps"
	"github.com/motorbridge/bridge-go/pkg/channel"
	"github.com/motorbridge/bridge-go/pkg/estop"
	"github.com/motorbridge/bridge-go/pkg/proto"
	"github.com/motorbridge/bridge-go/pkg/safety"
)

// Code classifies a bridge failure for callers such as an HTTP layer.
type Code uint8

const (
	// CodeUnknown is an unclassified failure.
	CodeUnknown Code = 0

	// CodeTimeout indicates no reply within the deadline.
	CodeTimeout Code = 1

	// CodeChannel indicates a transport I/O fault.
	CodeChannel Code = 2

	// CodeProtocol indicates a reply that didn't match expected framing.
	CodeProtocol Code = 3

	// CodeDevice indicates the device replied with its own failure.
	CodeDevice Code = 4

	// CodeUnsupported indicates a command absent from the device's
	// advertised support list, with enforcement on.
	CodeUnsupported Code = 5

	// CodeEstopActive indicates the emergency-stop latch blocked the call.
	CodeEstopActive Code = 6

	// CodeRateLimited indicates the servo rate limiter rejected the call.
	CodeRateLimited Code = 7

	// CodeValidation indicates malformed input caught before transport.
	CodeValidation Code = 8
)

// String returns the code name.
func (c Code) String() string {
	switch c {
	case CodeTimeout:
		return "TIMEOUT"
	case CodeChannel:
		return "CHANNEL_ERROR"
	case CodeProtocol:
		return "PROTOCOL_VIOLATION"
	case CodeDevice:
		return "DEVICE_ERROR"
	case CodeUnsupported:
		return "UNSUPPORTED"
	case CodeEstopActive:
		return "ESTOP_ACTIVE"
	case CodeRateLimited:
		return "RATE_LIMITED"
	case CodeValidation:
		return "VALIDATION_ERROR"
	default:
		return "UNKNOWN"
	}
}

// CodeOf classifies an error from any bridge layer. Unrecognized errors
// map to CodeUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return CodeUnknown
	}

	var (
		timeoutErr     *channel.TimeoutError
		channelErr     *channel.ChannelError
		violationErr   *proto.ViolationError
		deviceErr      *proto.DeviceError
		unsupportedErr *caps.UnsupportedError
		rateErr        *safety.RateLimitedError
		validationErr  *safety.ValidationError
	)

	switch {
	case errors.Is(err, estop.ErrActive):
		return CodeEstopActive
	case errors.As(err, &rateErr):
		return CodeRateLimited
	case errors.As(err, &validationErr), errors.Is(err, channel.ErrEmptyCommand):
		return CodeValidation
	case errors.As(err, &unsupportedErr):
		return CodeUnsupported
	case errors.As(err, &timeoutErr), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.As(err, &violationErr):
		return CodeProtocol
	case errors.As(err, &deviceErr):
		return CodeDevice
	case errors.As(err, &channelErr), errors.Is(err, channel.ErrClosed):
		return CodeChannel
	default:
		return CodeUnknown
	}
}
