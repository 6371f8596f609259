// Package rewriter partitions a labeled Makefile into one primary makefile
// and one submakefile per additional host, injecting fetch stubs for
// targets owned by other hosts (spec.md §4.2).
package rewriter

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/ZivoMartin/Dake/internal/transport"
)

// DefaultPort is the port a bare DNS name or IP label resolves to
// (spec.md §6).
const DefaultPort = 1808

// Resolver resolves a DNS name to an IP address. The rewriter's core
// algorithm (Rewrite, below) never touches the network directly -- only
// label parsing does, and only through this interface -- so the rewriter
// stays a pure function of its inputs and is unit-testable with a fake
// resolver (spec.md §9 "Rewriter purity").
type Resolver interface {
	ResolveHost(name string) (net.IP, error)
}

// Label is a parsed `[<host>[:<port>][|<path>]]` target annotation
// (spec.md §6).
type Label struct {
	Host    transport.Socket
	Path    string
	HasPath bool
}

// ParseLabel parses the contents of a target's bracketed annotation (the
// text between `[` and `]`, exclusive), resolving a bare DNS name via r.
func ParseLabel(r Resolver, raw string) (Label, error) {
	hostPart := raw
	var path string
	var hasPath bool

	if idx := strings.LastIndex(raw, "|"); idx >= 0 {
		hostPart = raw[:idx]
		path = raw[idx+1:]
		hasPath = true
	}

	sock, err := resolveHostId(r, hostPart)
	if err != nil {
		return Label{}, fmt.Errorf("parse label %q: %w", raw, err)
	}

	return Label{Host: sock, Path: path, HasPath: hasPath}, nil
}

// resolveHostId implements the HostId grammar: a `host:port` pair, a bare
// IP (defaulting to DefaultPort), or a DNS name (resolved then defaulted to
// DefaultPort).
func resolveHostId(r Resolver, s string) (transport.Socket, error) {
	if host, portStr, err := net.SplitHostPort(s); err == nil {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return transport.Socket{}, fmt.Errorf("invalid port in %q: %w", s, err)
		}
		ip, err := resolveIPOrName(r, host)
		if err != nil {
			return transport.Socket{}, err
		}
		return transport.TCP(fmt.Sprintf("%s:%d", ip, port)), nil
	}

	ip, err := resolveIPOrName(r, s)
	if err != nil {
		return transport.Socket{}, err
	}
	return transport.TCP(fmt.Sprintf("%s:%d", ip, DefaultPort)), nil
}

func resolveIPOrName(r Resolver, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}

	if r == nil {
		return nil, fmt.Errorf("%q is not a literal IP and no resolver was provided", host)
	}
	return r.ResolveHost(host)
}
