// Package version parses and compares device firmware versions.
//
// Firmware replies are free-form: some boards answer a bare "2.1.0",
// others prefix a board name ("romeo 2.1"). Extract pulls the first
// version-looking token out of such a reply; Parse handles the strict
// "major.minor[.patch]" form.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Firmware is a parsed firmware version.
type Firmware struct {
	Major int
	Minor int
	Patch int
}

// Parse parses a "major.minor" or "major.minor.patch" version string.
func Parse(s string) (Firmware, error) {
	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Firmware{}, fmt.Errorf("invalid version %q: expected major.minor[.patch]", s)
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Firmware{}, fmt.Errorf("invalid version %q: bad component %q", s, p)
		}
		nums[i] = n
	}

	fw := Firmware{Major: nums[0], Minor: nums[1]}
	if len(nums) == 3 {
		fw.Patch = nums[2]
	}
	return fw, nil
}

// Extract finds the first version-looking token in a free-form firmware
// reply. Returns the parsed version and the field it came from.
func Extract(reply string) (Firmware, string, error) {
	for _, field := range strings.Fields(reply) {
		token := strings.TrimPrefix(field, "v")
		if fw, err := Parse(token); err == nil {
			return fw, field, nil
		}
	}
	return Firmware{}, "", fmt.Errorf("no version in %q", reply)
}

// String returns "major.minor.patch".
func (f Firmware) String() string {
	return fmt.Sprintf("%d.%d.%d", f.Major, f.Minor, f.Patch)
}

// Compare returns -1, 0, or 1 ordering f against other.
func (f Firmware) Compare(other Firmware) int {
	if f.Major != other.Major {
		return sign(f.Major - other.Major)
	}
	if f.Minor != other.Minor {
		return sign(f.Minor - other.Minor)
	}
	return sign(f.Patch - other.Patch)
}

// AtLeast reports whether f is other or newer.
func (f Firmware) AtLeast(other Firmware) bool {
	return f.Compare(other) >= 0
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
