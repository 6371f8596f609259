package ids

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Processless is the reserved ProcessId.Id value used for messages scoped
// to a project rather than a specific build (e.g. TargetUnlock broadcasts).
const Processless uint64 = 0

// ProcessId identifies one build invocation: a monotonically increasing id
// (starting at 1) scoped to a ProjectId. It is comparable and is carried in
// every message (spec.md §3).
type ProcessId struct {
	Id      uint64
	Project ProjectId
}

func NewProcessId(id uint64, project ProjectId) ProcessId {
	return ProcessId{Id: id, Project: project}
}

// Processless reports whether this id is the project-wide sentinel (Id==0).
func (p ProcessId) Processless() bool {
	return p.Id == Processless
}

func (p ProcessId) String() string {
	return fmt.Sprintf("%s#%d", p.Project, p.Id)
}

// fieldSep separates a ProcessId's encoded fields. Unit separator (0x1f) is
// used instead of a printable character so a filesystem path can never
// collide with it.
const fieldSep = "\x1f"

// Encode renders p as a single command-line-safe token, used to pass a
// ProcessId through the generated fetch stub's argument list (spec.md
// §4.2, §6 "dake fetch").
func (p ProcessId) Encode() string {
	return strings.Join([]string{p.Project.Caller.String(), p.Project.Path, strconv.FormatUint(p.Id, 10)}, fieldSep)
}

// DecodeProcessId reverses Encode.
func DecodeProcessId(s string) (ProcessId, error) {
	parts := strings.Split(s, fieldSep)
	if len(parts) != 3 {
		return ProcessId{}, fmt.Errorf("malformed encoded process id %q", s)
	}

	caller, err := DaemonIdFromHex(parts[0])
	if err != nil {
		return ProcessId{}, fmt.Errorf("decode process id: %w", err)
	}
	id, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return ProcessId{}, fmt.Errorf("decode process id: %w", err)
	}

	return NewProcessId(id, NewProjectId(caller, parts[1])), nil
}

// Hash returns a stable hex digest of the ProcessId's fields, used to name
// the per-process workspace directory that holds the received submakefile
// (spec.md §3 RemoteMakefile, §4.4.3). The DaemonId half feeds in as its two
// raw uint64 halves (DaemonId.Hi/Lo) rather than its hex string, so hashing
// never pays for a hex-encode/decode round trip of the id it's already
// holding as bytes.
func (p ProcessId) Hash() string {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], p.Project.Caller.Hi())
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], p.Project.Caller.Lo())
	h.Write(buf[:])
	h.Write([]byte(p.Project.Path))
	binary.BigEndian.PutUint64(buf[:], p.Id)
	h.Write(buf[:])
	return hex.EncodeToString(h.Sum(nil))[:32]
}
