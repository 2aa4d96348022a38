package syscfg

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
)

type Mode string

const (
	ModeDHCP   Mode = "dhcp"
	ModeStatic Mode = "static"
)

// ValidationError marks a request rejected before any process is spawned
// or file touched; handlers map it to 400.
type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// NetworkConfig is a fully validated interface configuration. Construct it
// through ParseNetworkConfig; the executor trusts its fields.
type NetworkConfig struct {
	Mode       Mode
	Address    netip.Addr
	Prefix     int
	Gateway    netip.Addr
	DNSServers []netip.Addr
}

// ParseNetworkConfig validates the raw request fields. Accepted modes are
// exactly "dhcp" and "static"; static requires address, prefix in [0,32]
// and gateway. All addresses must be IPv4.
func ParseNetworkConfig(mode string, address string, prefix *int, gateway string, dnsServers []string) (NetworkConfig, error) {
	cfg := NetworkConfig{Mode: Mode(mode)}
	switch cfg.Mode {
	case ModeDHCP:
	case ModeStatic:
		if address == "" || prefix == nil || gateway == "" {
			return NetworkConfig{}, validationErrorf("static mode requires ip_address, subnet_prefix and gateway")
		}
		addr, err := parseIPv4(address)
		if err != nil {
			return NetworkConfig{}, validationErrorf("invalid ip_address %q", address)
		}
		gw, err := parseIPv4(gateway)
		if err != nil {
			return NetworkConfig{}, validationErrorf("invalid gateway %q", gateway)
		}
		if *prefix < 0 || *prefix > 32 {
			return NetworkConfig{}, validationErrorf("subnet_prefix must be in [0,32], got %d", *prefix)
		}
		cfg.Address, cfg.Gateway, cfg.Prefix = addr, gw, *prefix
	default:
		return NetworkConfig{}, validationErrorf("invalid mode %q; expected \"dhcp\" or \"static\"", mode)
	}
	for _, d := range dnsServers {
		addr, err := parseIPv4(d)
		if err != nil {
			return NetworkConfig{}, validationErrorf("invalid dns server %q", d)
		}
		cfg.DNSServers = append(cfg.DNSServers, addr)
	}
	return cfg, nil
}

func parseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, err
	}
	if !addr.Is4() {
		return netip.Addr{}, errors.New("not an IPv4 address")
	}
	return addr, nil
}

// ApplyResult reports the outcome of a network mutation. Partial means the
// configuration was written but the follow-up service restart failed; the
// written file is intentionally left in place.
type ApplyResult struct {
	Status string `json:"status"` // "success" or "partial"
	Detail string `json:"detail,omitempty"`
}

// ConfigureInterface applies cfg to the named interface. With a configured
// network script it delegates to that script; otherwise it rewrites the
// legacy interfaces file and restarts networking.
func (e *Executor) ConfigureInterface(ctx context.Context, iface string, cfg NetworkConfig) (ApplyResult, error) {
	if err := ValidateInterfaceName(iface); err != nil {
		return ApplyResult{}, &ValidationError{msg: err.Error()}
	}
	if e.netScript != "" {
		return e.configureViaScript(ctx, iface, cfg)
	}
	return e.configureViaFile(ctx, iface, cfg)
}

func (e *Executor) configureViaScript(ctx context.Context, iface string, cfg NetworkConfig) (ApplyResult, error) {
	args := []string{iface, string(cfg.Mode)}
	if cfg.Mode == ModeStatic {
		args = append(args, cfg.Address.String(), strconv.Itoa(cfg.Prefix), cfg.Gateway.String())
	}
	for _, d := range cfg.DNSServers {
		args = append(args, d.String())
	}
	res, err := e.run(ctx, e.timeout, e.netScript, args...)
	if err != nil || res.Code != 0 {
		e.logger.Error().
			Str("script", e.netScript).
			Str("iface", iface).
			Int("code", res.Code).
			Str("stderr", res.StderrText()).
			Msg("network script failed")
		return ApplyResult{}, &ExecError{Cmd: e.netScript, Code: res.Code, Stderr: res.StderrText()}
	}
	return ApplyResult{Status: "success"}, nil
}
