// Package config reads Dake's environment-variable surface and persists the
// per-host daemon config file (spec.md §6).
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

// DefaultPort is the daemon's TCP port when DAKE_PORT is unset.
const DefaultPort = 1808

// Env is the process's environment-derived configuration, read once at
// startup (spec.md §6 "Environment variables").
type Env struct {
	Port      int
	IP        string
	DakePath  string
	SpacePath string
}

// LoadEnv reads DAKE_PORT, DAKE_IP, DAKE_PATH and DAKE_SPACE_PATH, applying
// the defaults spec.md names for each.
func LoadEnv() (Env, error) {
	env := Env{Port: DefaultPort}

	if v := os.Getenv("DAKE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Env{}, fmt.Errorf("DAKE_PORT: %w", err)
		}
		env.Port = port
	}

	if v := os.Getenv("DAKE_IP"); v != "" {
		env.IP = v
	} else {
		ip, err := selfProbeIP()
		if err != nil {
			return Env{}, fmt.Errorf("probe local IP: %w", err)
		}
		env.IP = ip
	}

	if v := os.Getenv("DAKE_PATH"); v != "" {
		env.DakePath = v
	} else {
		exe, err := os.Executable()
		if err != nil {
			return Env{}, fmt.Errorf("resolve dake binary path: %w", err)
		}
		env.DakePath = exe
	}

	if v := os.Getenv("DAKE_SPACE_PATH"); v != "" {
		env.SpacePath = v
	} else {
		dir, err := defaultSpacePath()
		if err != nil {
			return Env{}, fmt.Errorf("resolve workspace path: %w", err)
		}
		env.SpacePath = dir
	}

	return env, nil
}

// selfProbeIP determines the host's outbound IP by dialing a UDP "connection"
// to a well-known address and inspecting the local address the kernel chose;
// no packets are actually sent (spec.md §6 "determined by UDP self-probe to
// 8.8.8.8:80").
func selfProbeIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local addr type %T", conn.LocalAddr())
	}
	return local.IP.String(), nil
}

// defaultSpacePath returns the platform-standard application data directory
// for the Dake workspace.
func defaultSpacePath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return base + "/dake", nil
}

// UnixSocketPath is the well-known pathname the caller dials and the daemon
// listens on (spec.md §6).
func UnixSocketPath() string {
	if v := os.Getenv("DAKE_SOCK_PATH"); v != "" {
		return v
	}
	return "/tmp/dake_daemon.sock"
}

// BindAddr is the TCP address the daemon listens on: 0.0.0.0:<port>.
func (e Env) BindAddr() string {
	return fmt.Sprintf("0.0.0.0:%d", e.Port)
}

// DialAddr is the TCP address other daemons use to reach this host.
func (e Env) DialAddr() string {
	return fmt.Sprintf("%s:%d", e.IP, e.Port)
}
