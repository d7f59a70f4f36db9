package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/motorbridge/bridge-go/pkg/proto"
)

// Power-mode bootstrap tuning. Boards coming out of reset answer
// erratically for a moment; the bootstrap retries on a short cadence.
const (
	bootstrapAttempts = 6
	bootstrapBackoff  = 250 * time.Millisecond
	bootstrapDrain    = 2 * time.Second
)

// EnsurePowerMode brings the device to a known servo power mode at
// startup: drain boot noise, ping until the device answers steadily, then
// apply the mode. Fails only when the device never settles.
func (b *Bridge) EnsurePowerMode(ctx context.Context, mode proto.PowerMode) error {
	if _, err := b.ch.Drain(ctx, bootstrapDrain); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < bootstrapAttempts; i++ {
		if lastErr = b.ch.Ping(ctx); lastErr == nil {
			break
		}
		if err := sleepOr(ctx, bootstrapBackoff); err != nil {
			return err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("device not answering PING: %w", lastErr)
	}

	for i := 0; i < bootstrapAttempts; i++ {
		if lastErr = b.SetServoPower(ctx, mode); lastErr == nil {
			return nil
		}
		if err := sleepOr(ctx, bootstrapBackoff); err != nil {
			return err
		}
	}
	return fmt.Errorf("setting servo power mode %s: %w", mode, lastErr)
}

func sleepOr(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
