package orchestrator

import (
	"fmt"
	"time"

	"github.com/ZivoMartin/Dake/internal/dakelog"
	"github.com/ZivoMartin/Dake/internal/daemon"
	"github.com/ZivoMartin/Dake/internal/ids"
	"github.com/ZivoMartin/Dake/internal/transport"
)

// ackBarrierTimeout bounds how long Distribute and the Done teardown wait
// for every involved host's Ack (spec.md §4.4.2 step 1, §5 "Ack barriers").
const ackBarrierTimeout = 30 * time.Second

// Distribute opens one stream per makefile's host, sends NewMakefile, and
// collects one AckMessage per stream within ackBarrierTimeout. It returns an
// error if any host fails to ack, acks Failure, or the barrier times out
// (spec.md §4.4.2 step 1).
func Distribute(makefiles []transport.RemoteMakefile, data transport.ProcessData, pid ids.ProcessId) error {
	if len(makefiles) == 0 {
		return nil
	}

	socks := make([]transport.Socket, len(makefiles))
	byHost := make(map[transport.Socket]transport.RemoteMakefile, len(makefiles))
	for i, rm := range makefiles {
		socks[i] = rm.Host
		byHost[rm.Host] = rm
	}

	streams, connErr := transport.Broadcast(socks, func(sock transport.Socket) (transport.Kind, interface{}) {
		return transport.KindDaemonMessage, transport.DaemonMessage{
			Type:        transport.MsgNewMakefile,
			Pid:         pid,
			Makefile:    byHost[sock],
			ProcessData: data,
		}
	})
	defer func() {
		for _, s := range streams {
			s.Close()
		}
	}()
	if connErr != nil {
		return fmt.Errorf("distribute makefiles: %w", connErr)
	}
	if len(streams) != len(socks) {
		return fmt.Errorf("distribute makefiles: only reached %d/%d hosts", len(streams), len(socks))
	}

	type ackResult struct {
		sock transport.Socket
		err  error
	}
	results := make(chan ackResult, len(streams))
	for sock, stream := range streams {
		go func(sock transport.Socket, stream *transport.Stream) {
			ack, err := transport.ReadAckMessage(stream)
			if err != nil {
				results <- ackResult{sock, fmt.Errorf("read ack from %v: %w", sock, err)}
				return
			}
			if ack.Type != transport.AckOk {
				results <- ackResult{sock, fmt.Errorf("host %v acked Failure", sock)}
				return
			}
			results <- ackResult{sock, nil}
		}(sock, stream)
	}

	deadline := time.After(ackBarrierTimeout)
	for range streams {
		select {
		case r := <-results:
			if r.err != nil {
				return r.err
			}
		case <-deadline:
			return fmt.Errorf("ack barrier timed out after %s", ackBarrierTimeout)
		}
	}
	return nil
}

// broadcastDone sends Done to every involved host and waits (bounded) for
// their Ack, the teardown step the caller runs after an Error notification
// (spec.md §4.4.2 step 4, §4.4.6). It is not called when the local build
// finishes without an Error.
func broadcastDone(involved []transport.Socket, pid ids.ProcessId) {
	if len(involved) == 0 {
		return
	}

	streams, err := transport.Broadcast(involved, func(transport.Socket) (transport.Kind, interface{}) {
		return transport.KindDaemonMessage, transport.DaemonMessage{Type: transport.MsgDone, Pid: pid}
	})
	if err != nil {
		dakelog.Warn("broadcast Done for %v: %v", pid, err)
	}
	defer func() {
		for _, s := range streams {
			s.Close()
		}
	}()

	deadline := time.After(ackBarrierTimeout)
	remaining := len(streams)
	results := make(chan error, remaining)
	for _, stream := range streams {
		go func(stream *transport.Stream) {
			_, err := transport.ReadAckMessage(stream)
			results <- err
		}(stream)
	}
	for i := 0; i < remaining; i++ {
		select {
		case err := <-results:
			if err != nil {
				dakelog.Warn("Done ack for %v: %v", pid, err)
			}
		case <-deadline:
			dakelog.Warn("Done ack barrier timed out for %v", pid)
			return
		}
	}
}

// HandleNewProcess implements spec.md §4.4.2, run on the caller daemon when
// its own client sends NewProcess over the local Unix socket. It registers
// process data, distributes submakefiles, runs the local build, multiplexes
// remote notifications against local completion, and finally writes exactly
// one End ProcessMessage to the client stream (spec.md §5 "End is always
// the last ProcessMessage").
func (o *Orchestrator) HandleNewProcess(ctx *daemon.HandlerContext) error {
	pid := ctx.Msg.Pid

	involved := make([]transport.Socket, len(ctx.Msg.Makefiles))
	for i, rm := range ctx.Msg.Makefiles {
		involved[i] = rm.Host
	}

	// Remote participants run their own persisted submakefile, not the
	// caller's temp file, so the --file pair meant for the local `make`
	// invocation must not be forwarded to them (spec.md §4.4.2 "Inputs").
	data := transport.ProcessData{
		CallerDaemon:  o.Self,
		InvolvedHosts: involved,
		Args:          stripFileFlag(ctx.Msg.Args),
	}
	if err := o.State.RegisterProcess(pid, data); err != nil {
		return fmt.Errorf("register process %v: %w", pid, err)
	}

	if err := Distribute(ctx.Msg.Makefiles, data, pid); err != nil {
		dakelog.Error("distribute makefiles for %v: %v", pid, err)
		o.finish(ctx, pid, fmt.Sprintf("dake: distributing build failed: %v\n", err), 1)
		o.State.RemoveProcess(pid)
		return nil
	}

	notifications := o.State.Notifiers.Subscribe(pid, 100)

	localDone := make(chan daemon.MakeResult, 1)
	localErr := make(chan error, 1)
	go func() {
		result, err := daemon.RunMake(o.State, pid, pid.Project.Path, "", ctx.Msg.Args, o.Self)
		if err != nil {
			localErr <- err
			return
		}
		localDone <- result
	}()

	exitCode := int32(1)
multiplex:
	for {
		select {
		case result := <-localDone:
			exitCode = result.ExitCode
			if result.Aborted {
				exitCode = 1
			}
			break multiplex

		case err := <-localErr:
			dakelog.Error("local make for %v: %v", pid, err)
			break multiplex

		case n, ok := <-notifications:
			if !ok {
				break multiplex
			}
			switch n.Kind {
			case daemon.NotifyError:
				broadcastDone(involved, pid)
				exitCode = n.ExitCode
				break multiplex
			case daemon.NotifyLog:
				msgType := transport.PMsgStdoutLog
				if n.Stream == daemon.StderrStream {
					msgType = transport.PMsgStderrLog
				}
				if err := transport.WriteProcessMessage(ctx.Stream, transport.ProcessMessage{
					Type: msgType, Pid: pid, Text: n.Text,
				}); err != nil {
					dakelog.Warn("forward log to client for %v: %v", pid, err)
				}
			case daemon.NotifyDone:
				// ignored here: Done is what we broadcast, not what we wait for
			}
		}
	}

	o.finish(ctx, pid, "", exitCode)
	o.State.RemoveProcess(pid)
	return nil
}

// stripFileFlag removes a "--file <path>" (or "-f <path>") pair from args so
// a remote participant's `make` invocation uses its own persisted
// submakefile rather than inheriting the caller's temp file name.
func stripFileFlag(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] == "--file" || args[i] == "-f" {
			i++ // also skip the path that follows
			continue
		}
		out = append(out, args[i])
	}
	return out
}

func (o *Orchestrator) finish(ctx *daemon.HandlerContext, pid ids.ProcessId, stderr string, exitCode int32) {
	if stderr != "" {
		if err := transport.WriteProcessMessage(ctx.Stream, transport.ProcessMessage{
			Type: transport.PMsgStderrLog, Pid: pid, Text: stderr,
		}); err != nil {
			dakelog.Warn("write stderr to client for %v: %v", pid, err)
		}
	}
	if err := transport.WriteProcessMessage(ctx.Stream, transport.ProcessMessage{
		Type: transport.PMsgEnd, Pid: pid, ExitCode: exitCode,
	}); err != nil {
		dakelog.Warn("write End to client for %v: %v", pid, err)
	}
}
