package devicetrust

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// IPMode selects how much of the client address is pinned to a trusted device.
type IPMode uint8

const (
	// IPModeNone disables IP pinning.
	IPModeNone IPMode = iota
	// IPModePrefix pins the first N octets (IPv4) or N 16-bit groups (IPv6).
	IPModePrefix
	// IPModeExact pins the full address.
	IPModeExact
)

// IPPolicy is the configurable IP pinning rule. The zero value disables pinning.
type IPPolicy struct {
	Mode   IPMode
	Groups int
}

// DefaultIPPolicy pins the first two IPv4 octets, tolerant of carrier address churn.
func DefaultIPPolicy() IPPolicy {
	return IPPolicy{Mode: IPModePrefix, Groups: 2}
}

// ParseIPPolicy accepts "none", "exact" or "prefix-N" with N in 1..4.
func ParseIPPolicy(v string) (IPPolicy, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch {
	case v == "" || v == "none":
		return IPPolicy{Mode: IPModeNone}, nil
	case v == "exact":
		return IPPolicy{Mode: IPModeExact}, nil
	case strings.HasPrefix(v, "prefix-"):
		n, err := strconv.Atoi(strings.TrimPrefix(v, "prefix-"))
		if err != nil {
			return IPPolicy{}, fmt.Errorf("invalid ip policy %q", v)
		}
		p := IPPolicy{Mode: IPModePrefix, Groups: n}
		return p, p.Validate()
	default:
		return IPPolicy{}, fmt.Errorf("invalid ip policy %q", v)
	}
}

// Validate reports whether the policy is usable.
func (p IPPolicy) Validate() error {
	switch p.Mode {
	case IPModeNone, IPModeExact:
		return nil
	case IPModePrefix:
		if p.Groups < 1 || p.Groups > 4 {
			return errors.New("ip prefix groups must be between 1 and 4")
		}
		return nil
	default:
		return errors.New("unknown ip policy mode")
	}
}

func (p IPPolicy) String() string {
	switch p.Mode {
	case IPModeExact:
		return "exact"
	case IPModePrefix:
		return "prefix-" + strconv.Itoa(p.Groups)
	default:
		return "none"
	}
}

// Prefix returns the pinned portion of ip under this policy. It returns "" when
// pinning is disabled or ip does not parse.
func (p IPPolicy) Prefix(ip string) string {
	if p.Mode == IPModeNone {
		return ""
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return ""
	}
	if p.Mode == IPModeExact {
		return parsed.String()
	}

	if v4 := parsed.To4(); v4 != nil {
		parts := make([]string, 0, p.Groups)
		for i := 0; i < p.Groups; i++ {
			parts = append(parts, strconv.Itoa(int(v4[i])))
		}
		return strings.Join(parts, ".")
	}

	v6 := parsed.To16()
	parts := make([]string, 0, p.Groups)
	for i := 0; i < p.Groups; i++ {
		group := uint16(v6[2*i])<<8 | uint16(v6[2*i+1])
		parts = append(parts, strconv.FormatUint(uint64(group), 16))
	}
	return strings.Join(parts, ":") + "::"
}
