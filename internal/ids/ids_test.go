package ids

import (
	"encoding/json"
	"testing"
)

func TestDaemonIdHexRoundTrip(t *testing.T) {
	id, err := NewDaemonId()
	if err != nil {
		t.Fatalf("NewDaemonId: %v", err)
	}

	got, err := DaemonIdFromHex(id.String())
	if err != nil {
		t.Fatalf("DaemonIdFromHex: %v", err)
	}
	if got != id {
		t.Fatalf("round trip mismatch: got %v, want %v", got, id)
	}
}

func TestDaemonIdFromHexRejectsMalformed(t *testing.T) {
	if _, err := DaemonIdFromHex("not-hex"); err == nil {
		t.Fatalf("expected an error for non-hex input")
	}
	if _, err := DaemonIdFromHex("aabb"); err == nil {
		t.Fatalf("expected an error for a too-short id")
	}
}

func TestDaemonIdJSONRoundTrip(t *testing.T) {
	id, err := NewDaemonId()
	if err != nil {
		t.Fatalf("NewDaemonId: %v", err)
	}

	data, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got DaemonId
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != id {
		t.Fatalf("JSON round trip mismatch: got %v, want %v", got, id)
	}
}

func TestProcessIdEncodeDecodeRoundTrip(t *testing.T) {
	daemonId, err := NewDaemonId()
	if err != nil {
		t.Fatalf("NewDaemonId: %v", err)
	}
	project := NewProjectId(daemonId, "/home/user/project")
	pid := NewProcessId(42, project)

	got, err := DecodeProcessId(pid.Encode())
	if err != nil {
		t.Fatalf("DecodeProcessId: %v", err)
	}
	if got != pid {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, pid)
	}
}

func TestDecodeProcessIdRejectsMalformedInput(t *testing.T) {
	if _, err := DecodeProcessId("not-enough-fields"); err == nil {
		t.Fatalf("expected an error for an input with too few fields")
	}
}

func TestProcessIdHashIsStableAndDistinguishesIds(t *testing.T) {
	daemonId, err := NewDaemonId()
	if err != nil {
		t.Fatalf("NewDaemonId: %v", err)
	}
	project := NewProjectId(daemonId, "/home/user/project")
	a := NewProcessId(1, project)
	b := NewProcessId(2, project)

	if a.Hash() != a.Hash() {
		t.Fatalf("Hash is not stable across calls")
	}
	if a.Hash() == b.Hash() {
		t.Fatalf("expected different process ids to hash differently")
	}
}

func TestProcesslessSentinel(t *testing.T) {
	daemonId, err := NewDaemonId()
	if err != nil {
		t.Fatalf("NewDaemonId: %v", err)
	}
	project := NewProjectId(daemonId, "/tmp")

	if !NewProcessId(Processless, project).Processless() {
		t.Fatalf("expected id 0 to be Processless")
	}
	if NewProcessId(1, project).Processless() {
		t.Fatalf("expected id 1 not to be Processless")
	}
}
