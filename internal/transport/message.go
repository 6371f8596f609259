package transport

import (
	"fmt"

	"github.com/ZivoMartin/Dake/internal/ids"
)

// RemoteMakefile pairs a rewritten submakefile's text with the host it is
// destined for (spec.md §3).
type RemoteMakefile struct {
	Text string
	Host Socket
}

// ProcessData is the per-process record held by the orchestrator and by
// every participating daemon (spec.md §3).
type ProcessData struct {
	CallerDaemon  Socket
	InvolvedHosts []Socket
	Args          []string
}

// DaemonMessageType enumerates the eight DaemonMessage variants named in
// spec.md §4.1. Dispatch always matches exhaustively over this type so that
// adding a variant forces every switch to be revisited (spec.md §9).
type DaemonMessageType int

const (
	MsgFreshId DaemonMessageType = iota
	MsgNewProcess
	MsgNewMakefile
	MsgFetch
	MsgStdoutLog
	MsgStderrLog
	MsgMakeError
	MsgDone
)

func (t DaemonMessageType) String() string {
	switch t {
	case MsgFreshId:
		return "FreshId"
	case MsgNewProcess:
		return "NewProcess"
	case MsgNewMakefile:
		return "NewMakefile"
	case MsgFetch:
		return "Fetch"
	case MsgStdoutLog:
		return "StdoutLog"
	case MsgStderrLog:
		return "StderrLog"
	case MsgMakeError:
		return "MakeError"
	case MsgDone:
		return "Done"
	default:
		return fmt.Sprintf("DaemonMessageType(%d)", int(t))
	}
}

// DaemonMessage is the single wire structure sent client-to-daemon and
// daemon-to-daemon. Only the fields relevant to Type are populated; this
// mirrors minimega's iomeshage.Message, which carries every variant's
// payload as optional fields on one tagged struct rather than as a Go sum
// type, so a single gob type covers the whole protocol.
type DaemonMessage struct {
	Type DaemonMessageType
	Pid  ids.ProcessId

	// NewProcess
	Makefiles []RemoteMakefile
	Args      []string

	// NewMakefile
	Makefile    RemoteMakefile
	ProcessData ProcessData

	// Fetch
	Target         string
	LabeledPath    string
	HasLabeledPath bool

	// StdoutLog / StderrLog
	Text string

	// MakeError
	GuiltyHost Socket
	ExitCode   int32
}

// ProcessMessageType enumerates the four ProcessMessage variants
// (daemon -> caller client).
type ProcessMessageType int

const (
	PMsgFreshId ProcessMessageType = iota
	PMsgStdoutLog
	PMsgStderrLog
	PMsgEnd
)

func (t ProcessMessageType) String() string {
	switch t {
	case PMsgFreshId:
		return "FreshId"
	case PMsgStdoutLog:
		return "StdoutLog"
	case PMsgStderrLog:
		return "StderrLog"
	case PMsgEnd:
		return "End"
	default:
		return fmt.Sprintf("ProcessMessageType(%d)", int(t))
	}
}

type ProcessMessage struct {
	Type     ProcessMessageType
	Pid      ids.ProcessId
	Text     string
	ExitCode int32
}

// AckType is Ok or Failure.
type AckType int

const (
	AckOk AckType = iota
	AckFailure
)

type AckMessage struct {
	Pid  ids.ProcessId
	Type AckType
}

// FetcherType is Object or Failed.
type FetcherType int

const (
	FetcherObject FetcherType = iota
	FetcherFailed
)

type FetcherMessage struct {
	Pid  ids.ProcessId
	Type FetcherType
	Data []byte
}
