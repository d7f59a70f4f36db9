// Package safety implements the motion-safety transformations applied to
// every actuator command before it reaches the serial channel.
//
// Three transformations run in order, per servo:
//
//   - Clamp: the requested angle is forced into the servo's configured
//     [min,max] range.
//   - Slew-rate shaping: the change from the last applied angle is capped
//     at rate*Δt degrees. The first command for a servo passes unshaped.
//   - Rate limiting: a minimum interval of 1/maxHz between commands,
//     enforced either by rejecting early commands or by holding the caller
//     until the interval elapses.
//
// The engine is a pure transformation plus per-servo bookkeeping; it
// performs no I/O. Callers apply the transformation, perform the exchange,
// and commit the applied angle back so the next command shapes correctly.
package safety
