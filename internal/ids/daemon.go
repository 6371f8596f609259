package ids

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// DaemonId is a random 128-bit identifier generated once at daemon startup
// and persisted alongside the OS pid so that a restart can tell whether
// another instance of the daemon is already running (see config.DaemonConfig).
type DaemonId [16]byte

// NewDaemonId generates a fresh random DaemonId.
func NewDaemonId() (DaemonId, error) {
	var id DaemonId
	if _, err := rand.Read(id[:]); err != nil {
		return DaemonId{}, fmt.Errorf("generate daemon id: %w", err)
	}
	return id, nil
}

func (d DaemonId) String() string {
	return hex.EncodeToString(d[:])
}

// Hi and Lo split the 128-bit id into two uint64s, used to feed the id into
// ProcessId.Hash (the hashed workspace path) as raw integers.
func (d DaemonId) Hi() uint64 { return binary.BigEndian.Uint64(d[:8]) }
func (d DaemonId) Lo() uint64 { return binary.BigEndian.Uint64(d[8:]) }

func DaemonIdFromHex(s string) (DaemonId, error) {
	var id DaemonId
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return DaemonId{}, fmt.Errorf("malformed daemon id %q", s)
	}
	copy(id[:], b)
	return id, nil
}

// MarshalJSON renders the id as a hex string so config.json stays
// human-readable, rather than as a raw byte array.
func (d DaemonId) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *DaemonId) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("malformed daemon id json %q", data)
	}
	parsed, err := DaemonIdFromHex(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
