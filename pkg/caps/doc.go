// Package caps probes and caches the device's capability descriptor.
//
// A probe is two independent round trips: the CAPS command for the
// capability document, then the firmware version query (trying FWVER,
// VERSION and VER in order, accepting the first that answers). Either can
// fail without blocking the other; a device that answers neither still
// yields a (mostly empty) snapshot with a capture timestamp.
//
// The cached snapshot is replaced wholesale on re-probe, never partially
// mutated, so readers always observe a consistent value.
//
// # Command support gating
//
// When the descriptor advertises an explicit command list, and enforcement
// is enabled, commands absent from the list are rejected before touching
// the channel. A descriptor without a list means support is unknown and
// everything is allowed (best-effort mode). An explicitly empty list blocks
// every gated command: a list is a statement of support, and an empty one
// states that nothing is supported.
package caps
