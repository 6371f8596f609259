// Package dakeclient is the thin client the dake CLI uses to talk to its
// local daemon over the Unix socket, modeled on miniclient's Conn (dial with
// exponential backoff, one request/response pair per call).
package dakeclient

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/ZivoMartin/Dake/internal/ids"
	"github.com/ZivoMartin/Dake/internal/transport"
)

// Conn is a connection to the local daemon's Unix socket.
type Conn struct {
	stream *transport.Stream
}

// Dial connects to the daemon at sockPath, retrying with exponential
// backoff starting at 5ms up to maxWait total before giving up (spec.md §8
// scenario 6 "Daemon autostart": "polls with 5 ms retries up to 3 s").
func Dial(sockPath string, maxWait time.Duration) (*Conn, error) {
	deadline := time.Now().Add(maxWait)
	backoff := 5 * time.Millisecond

	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.Dial("unix", sockPath)
		if err == nil {
			return &Conn{stream: &transport.Stream{Conn: conn}}, nil
		}
		lastErr = err
		time.Sleep(backoff)
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("dial %s: timed out after %s: %w", sockPath, maxWait, lastErr)
}

func (c *Conn) Close() error { return c.stream.Close() }

// FreshId requests a new ProcessId for project scoped to path. The server
// fills in the Caller/Id fields; the client only needs to supply the
// working directory.
func (c *Conn) FreshId(path string) (ids.ProcessId, error) {
	req := ids.NewProcessId(ids.Processless, ids.NewProjectId(ids.DaemonId{}, path))

	if err := transport.WriteDaemonMessage(c.stream, transport.DaemonMessage{
		Type: transport.MsgFreshId,
		Pid:  req,
	}); err != nil {
		return ids.ProcessId{}, fmt.Errorf("send FreshId: %w", err)
	}

	resp, err := transport.ReadProcessMessage(c.stream)
	if err != nil {
		return ids.ProcessId{}, fmt.Errorf("read FreshId reply: %w", err)
	}
	if resp.Type != transport.PMsgFreshId {
		return ids.ProcessId{}, fmt.Errorf("unexpected reply type %v to FreshId", resp.Type)
	}
	return resp.Pid, nil
}

// NewProcess starts a distributed build and streams ProcessMessages
// (StdoutLog/StderrLog/End) to onMessage until End is received, returning
// the build's exit code.
func (c *Conn) NewProcess(pid ids.ProcessId, makefiles []transport.RemoteMakefile, args []string, onMessage func(transport.ProcessMessage)) (int32, error) {
	if err := transport.WriteDaemonMessage(c.stream, transport.DaemonMessage{
		Type:      transport.MsgNewProcess,
		Pid:       pid,
		Makefiles: makefiles,
		Args:      args,
	}); err != nil {
		return 1, fmt.Errorf("send NewProcess: %w", err)
	}

	for {
		msg, err := transport.ReadProcessMessage(c.stream)
		if err != nil {
			return 1, fmt.Errorf("read process message: %w", err)
		}
		onMessage(msg)
		if msg.Type == transport.PMsgEnd {
			return msg.ExitCode, nil
		}
	}
}

// fetchFailedGracePeriod bounds how long Fetch waits after a FetcherFailed
// before giving up (SPEC_FULL.md "FetcherMessage::Failed + 90s grace
// window"). Grounded on src/fetch.rs: on a daemon-reported failure, the
// fetch process does not exit immediately -- it stays alive long enough for
// the caller's Done broadcast to reach this process's local daemon and kill
// its process group, rather than racing the orchestrator's own teardown
// with its own exit.
const fetchFailedGracePeriod = 90 * time.Second

// Fetch requests target from the owning daemon sock and writes each
// streamed chunk via onChunk until the daemon signals completion or
// failure. It dials sock directly rather than going through the caller's
// own Unix socket, since a fetch stub talks to the remote host that owns
// the target.
func Fetch(pid ids.ProcessId, sock transport.Socket, target, labeledPath string, hasLabeledPath bool, onChunk func([]byte)) error {
	stream, err := transport.Connect(sock)
	if err != nil {
		return fmt.Errorf("connect to %v: %w", sock, err)
	}
	defer stream.Close()

	if err := transport.WriteDaemonMessage(stream, transport.DaemonMessage{
		Type:           transport.MsgFetch,
		Pid:            pid,
		Target:         target,
		LabeledPath:    labeledPath,
		HasLabeledPath: hasLabeledPath,
	}); err != nil {
		return fmt.Errorf("send Fetch: %w", err)
	}

	for {
		msg, err := transport.ReadFetcherMessage(stream)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read fetcher message: %w", err)
		}
		switch msg.Type {
		case transport.FetcherObject:
			if len(msg.Data) == 0 {
				return nil
			}
			onChunk(msg.Data)
		case transport.FetcherFailed:
			time.Sleep(fetchFailedGracePeriod)
			return fmt.Errorf("fetch %s from %v failed", target, sock)
		}
	}
}
