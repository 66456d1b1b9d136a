package recorder

import (
	"net"
	"os"
	"strings"

	"github.com/agrif/OctoPrint-InfluxDB/internal/backend"
)

// Host identity methods accepted by the hostmethod setting.
const (
	HostMethodNode   = "node"
	HostMethodFQDN   = "fqdn"
	HostMethodCustom = "custom"
)

// lookupFQDN resolves the fully qualified name of this machine. It falls
// back to the plain hostname when reverse lookups yield nothing better.
func lookupFQDN() (string, error) {
	name, err := os.Hostname()
	if err != nil {
		return "", err
	}
	if strings.Contains(name, ".") {
		return name, nil
	}

	addrs, err := net.LookupHost(name)
	if err != nil {
		return name, nil
	}
	for _, addr := range addrs {
		names, err := net.LookupAddr(addr)
		if err != nil {
			continue
		}
		for _, n := range names {
			n = strings.TrimSuffix(n, ".")
			if strings.HasPrefix(n, name+".") {
				return n, nil
			}
		}
	}
	return name, nil
}

// resolveHost returns the value of the host tag for the configured method.
// Unknown methods behave like "node".
func (r *Recorder) resolveHost(s backend.Settings) string {
	method := s.GetString("hostmethod")
	if method == HostMethodCustom {
		return s.GetString("hostcustom")
	}

	lookup := r.hostname
	if method == HostMethodFQDN {
		lookup = r.fqdn
	}
	host, err := lookup()
	if err != nil {
		r.logger.Warn("resolving host name", "method", method, "error", err)
		return ""
	}
	return host
}
