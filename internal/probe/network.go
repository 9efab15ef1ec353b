package probe

import (
	"bufio"
	"context"
	"net/netip"
	"os"
	"strings"

	"chrinstaller/internal/config"
	"chrinstaller/internal/runner"
)

// Network holds the live system's addressing, used as prompt defaults.
type Network struct {
	Interface string
	Address   string // CIDR, e.g. 192.168.88.2/24
	Gateway   string
	DNS       []string
}

// Network reads the default route, the address of its interface and the
// resolver list. Missing pieces stay empty; DNS falls back to 8.8.8.8.
func (p *Prober) Network(ctx context.Context) Network {
	var n Network
	if out, err := p.Runner.Run(ctx, runner.Command{Name: "ip", Args: []string{"-4", "route", "show", "default"}}); err == nil {
		n.Gateway, n.Interface = parseDefaultRoute(string(out))
	}
	if n.Interface != "" {
		out, err := p.Runner.Run(ctx, runner.Command{Name: "ip", Args: []string{"-4", "-o", "addr", "show", "dev", n.Interface}})
		if err == nil {
			n.Address = parseAddr(string(out))
		}
	}
	servers, err := parseDNSServers(p.ResolvConf)
	if err != nil || len(servers) == 0 {
		servers = []string{config.DefaultDNS}
	}
	n.DNS = servers
	return n
}

// parseDefaultRoute extracts gateway and device from the first line of
// `ip -4 route show default`.
func parseDefaultRoute(out string) (gateway, iface string) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] != "default" {
			continue
		}
		for i := 0; i+1 < len(fields); i++ {
			switch fields[i] {
			case "via":
				gateway = fields[i+1]
			case "dev":
				iface = fields[i+1]
			}
		}
		return gateway, iface
	}
	return "", ""
}

// parseAddr returns the first inet prefix of `ip -4 -o addr show`.
func parseAddr(out string) string {
	fields := strings.Fields(out)
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] == "inet" {
			if _, err := netip.ParsePrefix(fields[i+1]); err == nil {
				return fields[i+1]
			}
		}
	}
	return ""
}

// parseDNSServers reads nameserver lines from a resolv.conf. Loopback
// stubs are skipped since they mean nothing to the installed router.
func parseDNSServers(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var servers []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "nameserver") {
			parts := strings.Fields(line)
			if len(parts) < 2 {
				continue
			}
			addr, err := netip.ParseAddr(parts[1])
			if err != nil || addr.IsLoopback() {
				continue
			}
			servers = append(servers, addr.String())
		}
	}

	return servers, scanner.Err()
}
