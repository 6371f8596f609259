package config

import "testing"

func TestLoadEnvAppliesExplicitOverrides(t *testing.T) {
	t.Setenv("DAKE_PORT", "9000")
	t.Setenv("DAKE_IP", "10.0.0.5")
	t.Setenv("DAKE_PATH", "/usr/local/bin/dake")
	t.Setenv("DAKE_SPACE_PATH", "/tmp/dake-space")

	env, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if env.Port != 9000 {
		t.Fatalf("Port = %d, want 9000", env.Port)
	}
	if env.IP != "10.0.0.5" {
		t.Fatalf("IP = %q, want 10.0.0.5", env.IP)
	}
	if env.DakePath != "/usr/local/bin/dake" {
		t.Fatalf("DakePath = %q", env.DakePath)
	}
	if env.SpacePath != "/tmp/dake-space" {
		t.Fatalf("SpacePath = %q", env.SpacePath)
	}
}

func TestLoadEnvRejectsNonNumericPort(t *testing.T) {
	t.Setenv("DAKE_PORT", "not-a-number")
	if _, err := LoadEnv(); err == nil {
		t.Fatalf("expected an error for a non-numeric DAKE_PORT")
	}
}

func TestBindAddrAndDialAddr(t *testing.T) {
	env := Env{Port: 1808, IP: "192.168.1.7"}
	if got := env.BindAddr(); got != "0.0.0.0:1808" {
		t.Fatalf("BindAddr = %q", got)
	}
	if got := env.DialAddr(); got != "192.168.1.7:1808" {
		t.Fatalf("DialAddr = %q", got)
	}
}

func TestUnixSocketPathDefaultsAndOverrides(t *testing.T) {
	if got := UnixSocketPath(); got != "/tmp/dake_daemon.sock" {
		t.Fatalf("default UnixSocketPath = %q", got)
	}

	t.Setenv("DAKE_SOCK_PATH", "/tmp/custom.sock")
	if got := UnixSocketPath(); got != "/tmp/custom.sock" {
		t.Fatalf("UnixSocketPath override = %q", got)
	}
}
