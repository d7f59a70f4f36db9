// Package bridge is the device bridge core: it translates high-level
// actuator operations into serial exchanges while enforcing the safety
// invariants the device cannot guarantee itself.
//
// Every actuator operation flows through the same pipeline:
//
//	emergency-stop gate -> capability gate -> safety engine ->
//	codec -> channel -> activity clock
//
// The emergency-stop latch blocks all motion while set. The capability
// gate rejects verbs the device does not advertise (when enforcement is
// on). The safety engine clamps, slew-shapes and rate-limits servo
// angles. The channel serializes exchanges on the single serial port.
// Successful motion commands advance the watchdog's activity clock unless
// the caller opts out (the watchdog itself does, so its stop commands
// cannot re-arm it).
//
// All failures surface as typed errors; CodeOf maps them onto the
// taxonomy an outer request layer needs.
package bridge
