package daemon

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/ZivoMartin/Dake/internal/dakelog"
	"github.com/ZivoMartin/Dake/internal/ids"
	"github.com/ZivoMartin/Dake/internal/transport"
)

// MakeResult is the outcome of a local make supervision (spec.md §4.4.5).
type MakeResult struct {
	ExitCode int32
	Aborted  bool
}

// logSender serializes writes of StdoutLog/StderrLog DaemonMessages to the
// caller daemon over one lazily-dialed, reused connection (spec.md §4.4.5
// step 4 "opens (or reuses) a connection to the caller daemon").
type logSender struct {
	mu     sync.Mutex
	caller transport.Socket
	stream *transport.Stream
}

func newLogSender(caller transport.Socket) *logSender {
	return &logSender{caller: caller}
}

func (s *logSender) send(pid ids.ProcessId, msgType transport.DaemonMessageType, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		stream, err := transport.Connect(s.caller)
		if err != nil {
			return fmt.Errorf("connect to caller daemon %v: %w", s.caller, err)
		}
		s.stream = stream
	}

	err := transport.WriteDaemonMessage(s.stream, transport.DaemonMessage{
		Type: msgType,
		Pid:  pid,
		Text: text,
	})
	if err != nil {
		s.stream.Close()
		s.stream = nil
		return fmt.Errorf("send %v to caller daemon: %w", msgType, err)
	}
	return nil
}

func (s *logSender) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		s.stream.Close()
		s.stream = nil
	}
}

// forwardPipe reads r in chunks and relays each non-empty read as a
// StdoutLog/StderrLog message. Forwarding is byte-buffered, not
// line-buffered (spec.md §9 Open Questions: "the spec states
// byte-buffered"), so within-pipe order is preserved but line boundaries
// are not guaranteed across chunks.
func forwardPipe(pid ids.ProcessId, r io.Reader, msgType transport.DaemonMessageType, sender *logSender, wg *sync.WaitGroup) {
	defer wg.Done()

	buf := bufio.NewReaderSize(r, 8192)
	chunk := make([]byte, 4096)
	for {
		n, err := buf.Read(chunk)
		if n > 0 {
			if serr := sender.send(pid, msgType, string(chunk[:n])); serr != nil {
				dakelog.Warn("forward %v for %v: %v", msgType, pid, serr)
			}
		}
		if err != nil {
			return
		}
	}
}

// RunMake spawns `make [<target>] <args...>` in workDir, piping its stdout
// and stderr back to callerDaemon as DaemonMessages tagged with pid, and
// races its completion against a Done notification on pid's notifier
// channel (spec.md §4.4.5). If target is non-empty, the project's target
// lock is held for the duration and released before returning.
func RunMake(state *State, pid ids.ProcessId, workDir, target string, args []string, callerDaemon transport.Socket) (MakeResult, error) {
	if target != "" {
		if err := state.LockTarget(pid.Project, target); err != nil {
			return MakeResult{}, fmt.Errorf("acquire target lock for %s: %w", target, err)
		}
		defer state.UnlockTarget(pid.Project, target)
	}

	makeArgs := append([]string{}, args...)
	if target != "" {
		makeArgs = append([]string{target}, makeArgs...)
	}

	cmd := exec.Command("make", makeArgs...)
	cmd.Dir = workDir
	// Own process group so a Done cancellation can kill the fetch stub
	// children make spawns, not just make itself (spec.md §9 "Ambient
	// async" cancellation at task granularity).
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return MakeResult{}, fmt.Errorf("open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return MakeResult{}, fmt.Errorf("open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return MakeResult{}, fmt.Errorf("spawn make: %w", err)
	}

	sender := newLogSender(callerDaemon)
	defer sender.close()

	var wg sync.WaitGroup
	wg.Add(2)
	go forwardPipe(pid, stdout, transport.MsgStdoutLog, sender, &wg)
	go forwardPipe(pid, stderr, transport.MsgStderrLog, sender, &wg)

	notifications := state.Notifiers.Subscribe(pid, 100)

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	var result MakeResult
	select {
	case waitErr := <-waitDone:
		result = MakeResult{ExitCode: exitCodeOf(waitErr), Aborted: false}

	case n, ok := <-notifications:
		if ok && n.Kind == NotifyDone {
			if cmd.Process != nil {
				killProcessGroup(cmd.Process.Pid)
			}
			<-waitDone
			result = MakeResult{Aborted: true}
		} else {
			waitErr := <-waitDone
			result = MakeResult{ExitCode: exitCodeOf(waitErr), Aborted: false}
		}
	}

	wg.Wait()
	return result, nil
}

func exitCodeOf(err error) int32 {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return int32(exitErr.ExitCode())
	}
	return 1
}
