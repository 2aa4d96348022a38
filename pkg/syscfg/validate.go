package syscfg

import (
	"fmt"
	"regexp"
)

var (
	hostnameLabelRe = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)
	timezoneRe      = regexp.MustCompile(`^[A-Za-z_+\-]+(/[A-Za-z0-9_+\-]+){1,2}$`)
	ifaceNameRe     = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,15}$`)
)

// ValidateHostname accepts RFC 1123 host names, optionally dotted.
func ValidateHostname(name string) error {
	if name == "" || len(name) > 253 {
		return fmt.Errorf("invalid hostname length")
	}
	start := 0
	for i := 0; i <= len(name); i++ {
		if i == len(name) || name[i] == '.' {
			if !hostnameLabelRe.MatchString(name[start:i]) {
				return fmt.Errorf("invalid hostname %q", name)
			}
			start = i + 1
		}
	}
	return nil
}

// ValidateTimezone accepts Region/City identifiers such as Asia/Tehran or
// America/Argentina/Ushuaia.
func ValidateTimezone(tz string) error {
	if !timezoneRe.MatchString(tz) {
		return fmt.Errorf("invalid timezone %q; expected Region/City", tz)
	}
	return nil
}

// ValidateInterfaceName bounds names to kernel conventions; it also keeps
// stanza markers in the interfaces file unambiguous.
func ValidateInterfaceName(name string) error {
	if !ifaceNameRe.MatchString(name) {
		return fmt.Errorf("invalid interface name %q", name)
	}
	return nil
}
