package syscfg

import (
	"context"
	"fmt"
	"net"
	"strings"

	"rasdevd/internal/fsatomic"
)

// configureViaFile rewrites the legacy interfaces file: back up, drop the
// named interface's stanza, append the new one, optionally overwrite the
// resolver file, then restart networking. Concurrent mutations of the same
// file are serialized; a failed restart after a successful write is
// reported as partial and the file is not rolled back.
func (e *Executor) configureViaFile(ctx context.Context, iface string, cfg NetworkConfig) (ApplyResult, error) {
	mu := e.fileLock(e.interfacesPath)
	mu.Lock()
	err := fsatomic.WithLock(e.interfacesPath, func() error {
		current, exists, err := fsatomic.LoadBytes(e.interfacesPath)
		if err != nil {
			return err
		}
		if exists {
			if err := fsatomic.SaveBytes(e.interfacesPath+".backup", current, 0o644); err != nil {
				return fmt.Errorf("back up interfaces file: %w", err)
			}
		}
		next := replaceStanza(string(current), iface, renderStanza(iface, cfg))
		return fsatomic.SaveBytes(e.interfacesPath, []byte(next), 0o644)
	})
	mu.Unlock()
	if err != nil {
		return ApplyResult{}, err
	}

	if len(cfg.DNSServers) > 0 {
		var b strings.Builder
		for _, d := range cfg.DNSServers {
			fmt.Fprintf(&b, "nameserver %s\n", d)
		}
		if err := fsatomic.SaveBytes(e.resolvPath, []byte(b.String()), 0o644); err != nil {
			return ApplyResult{}, fmt.Errorf("write resolver file: %w", err)
		}
	}

	if err := e.invoke(ctx, "systemctl", "restart", "networking"); err != nil {
		// The write already happened; surface the restart failure without
		// masking the applied configuration.
		return ApplyResult{
			Status: "partial",
			Detail: fmt.Sprintf("configuration written but networking restart failed: %v", err),
		}, nil
	}
	return ApplyResult{Status: "success"}, nil
}

// replaceStanza removes the stanza for iface and appends replacement. The
// stanza starts at a whole-line `auto <iface>` or `iface <iface> inet ...`
// marker; option lines under the iface marker belong to it. Everything
// else keeps its content and ordering.
func replaceStanza(content, iface, replacement string) string {
	var out []string
	inStanza := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		fields := strings.Fields(trimmed)
		topLevel := len(fields) > 0 && isTopLevelDirective(fields[0])
		if topLevel {
			inStanza = len(fields) >= 2 && fields[1] == iface &&
				(fields[0] == "auto" || fields[0] == "iface" || strings.HasPrefix(fields[0], "allow-"))
		} else if trimmed == "" {
			inStanza = false
		}
		if inStanza {
			continue
		}
		out = append(out, line)
	}
	body := strings.TrimRight(strings.Join(out, "\n"), "\n")
	if body == "" {
		return replacement
	}
	return body + "\n\n" + replacement
}

func isTopLevelDirective(word string) bool {
	switch word {
	case "auto", "iface", "mapping", "source", "source-directory":
		return true
	}
	return strings.HasPrefix(word, "allow-")
}

func renderStanza(iface string, cfg NetworkConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "auto %s\n", iface)
	if cfg.Mode == ModeDHCP {
		fmt.Fprintf(&b, "iface %s inet dhcp\n", iface)
		return b.String()
	}
	fmt.Fprintf(&b, "iface %s inet static\n", iface)
	fmt.Fprintf(&b, "    address %s\n", cfg.Address)
	fmt.Fprintf(&b, "    netmask %s\n", prefixToNetmask(cfg.Prefix))
	fmt.Fprintf(&b, "    gateway %s\n", cfg.Gateway)
	if len(cfg.DNSServers) > 0 {
		var names []string
		for _, d := range cfg.DNSServers {
			names = append(names, d.String())
		}
		fmt.Fprintf(&b, "    dns-nameservers %s\n", strings.Join(names, " "))
	}
	return b.String()
}

func prefixToNetmask(prefix int) string {
	mask := net.CIDRMask(prefix, 32)
	return fmt.Sprintf("%d.%d.%d.%d", mask[0], mask[1], mask[2], mask[3])
}
