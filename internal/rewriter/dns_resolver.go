package rewriter

import (
	"fmt"
	"net"

	"github.com/miekg/dns"
)

// DNSResolver resolves DNS-name host labels with an explicit A-record
// query rather than the stdlib resolver, so Dake controls its own
// timeout/retry behavior independent of the system's NSS configuration
// (spec.md §6: "DNS name (resolved to port 1808)").
type DNSResolver struct {
	Client *dns.Client
	Config *dns.ClientConfig
}

// NewDNSResolver loads the system resolver configuration from
// /etc/resolv.conf, the same file the stdlib resolver would consult.
func NewDNSResolver() (*DNSResolver, error) {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return nil, fmt.Errorf("load resolver config: %w", err)
	}
	return &DNSResolver{Client: new(dns.Client), Config: cfg}, nil
}

func (r *DNSResolver) ResolveHost(name string) (net.IP, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeA)

	var lastErr error
	for _, server := range r.Config.Servers {
		addr := net.JoinHostPort(server, r.Config.Port)
		resp, _, err := r.Client.Exchange(msg, addr)
		if err != nil {
			lastErr = err
			continue
		}
		for _, ans := range resp.Answer {
			if a, ok := ans.(*dns.A); ok {
				return a.A, nil
			}
		}
		lastErr = fmt.Errorf("no A record for %q", name)
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no DNS servers configured to resolve %q", name)
	}
	return nil, lastErr
}
