package orchestrator

import (
	"fmt"
	"io"
	"os"

	"github.com/ZivoMartin/Dake/internal/config"
	"github.com/ZivoMartin/Dake/internal/dakelog"
	"github.com/ZivoMartin/Dake/internal/daemon"
	"github.com/ZivoMartin/Dake/internal/ids"
	"github.com/ZivoMartin/Dake/internal/transport"
)

// Orchestrator binds the shared daemon state and environment that every
// handler needs, and produces the HandlerSet the dispatcher dispatches to
// (spec.md §4.4).
type Orchestrator struct {
	State *daemon.State
	Env   config.Env
	Self  transport.Socket
}

func New(state *daemon.State, env config.Env) *Orchestrator {
	return &Orchestrator{
		State: state,
		Env:   env,
		Self:  transport.TCP(env.DialAddr()),
	}
}

// Handlers returns the complete, exhaustively-keyed HandlerSet for the
// eight DaemonMessage variants Dake dispatches (spec.md §9 "Sum-type
// messages" -- adding a ninth variant means adding a key here too).
func (o *Orchestrator) Handlers() daemon.HandlerSet {
	return daemon.HandlerSet{
		transport.MsgFreshId:     o.handleFreshId,
		transport.MsgNewProcess:  o.HandleNewProcess,
		transport.MsgNewMakefile: o.handleNewMakefile,
		transport.MsgFetch:       o.handleFetch,
		transport.MsgStdoutLog:   o.handleStdoutLog,
		transport.MsgStderrLog:   o.handleStderrLog,
		transport.MsgMakeError:   o.handleMakeError,
		transport.MsgDone:        o.handleDone,
	}
}

// handleFreshId implements spec.md §4.4.1: allocate a fresh ProcessId
// scoped to this daemon's identity and the caller's working directory,
// register a default ProcessData, and reply with the allocated pid.
func (o *Orchestrator) handleFreshId(ctx *daemon.HandlerContext) error {
	project := ids.NewProjectId(o.State.Config.Id, ctx.Msg.Pid.Project.Path)

	pid, err := o.State.FreshId(project)
	if err != nil {
		return fmt.Errorf("allocate fresh id: %w", err)
	}

	if err := o.State.RegisterProcess(pid, transport.ProcessData{}); err != nil {
		return fmt.Errorf("register fresh process %v: %w", pid, err)
	}

	return transport.WriteProcessMessage(ctx.Stream, transport.ProcessMessage{
		Type: transport.PMsgFreshId,
		Pid:  pid,
	})
}

// handleNewMakefile implements spec.md §4.4.3: register the process data a
// participant needs to report back to the caller, persist the submakefile,
// and ack. Persisting twice for the same pid is intentionally idempotent:
// RegisterProcess overwrites and PersistMakefile truncates-and-rewrites, so
// a duplicate NewMakefile just repeats the same effect (spec.md §8
// "Idempotence").
func (o *Orchestrator) handleNewMakefile(ctx *daemon.HandlerContext) error {
	pid := ctx.Msg.Pid

	if err := o.State.RegisterProcess(pid, ctx.Msg.ProcessData); err != nil {
		return ackAndReturn(ctx.Stream, pid, fmt.Errorf("register process data: %w", err))
	}

	if err := PersistMakefile(o.Env.SpacePath, pid, ctx.Msg.Makefile.Text); err != nil {
		return ackAndReturn(ctx.Stream, pid, fmt.Errorf("persist makefile: %w", err))
	}

	return transport.WriteAckMessage(ctx.Stream, transport.AckMessage{Pid: pid, Type: transport.AckOk})
}

func ackAndReturn(stream *transport.Stream, pid ids.ProcessId, cause error) error {
	if werr := transport.WriteAckMessage(stream, transport.AckMessage{Pid: pid, Type: transport.AckFailure}); werr != nil {
		return fmt.Errorf("%w (also failed to send Ack::Failure: %v)", cause, werr)
	}
	return cause
}

// handleFetch implements spec.md §4.4.4: run `make <target>` under the
// project's target lock in the resolved build directory, then stream the
// produced artifact back on the same connection in 8 KiB chunks.
func (o *Orchestrator) handleFetch(ctx *daemon.HandlerContext) error {
	pid := ctx.Msg.Pid

	data, err := ensureRegistered(o.State, pid)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", ctx.Msg.Target, err)
	}

	dir := ResolveBuildDir(o.Env.SpacePath, pid, ctx.Msg.LabeledPath, ctx.Msg.HasLabeledPath)

	result, err := daemon.RunMake(o.State, pid, dir, ctx.Msg.Target, data.Args, data.CallerDaemon)
	if err != nil {
		return fmt.Errorf("run make %s in %s: %w", ctx.Msg.Target, dir, err)
	}
	if result.Aborted {
		return nil
	}
	if result.ExitCode != 0 {
		return reportMakeError(data.CallerDaemon, pid, o.Self, result.ExitCode)
	}

	artifact := dir + "/" + ctx.Msg.Target
	info, err := os.Stat(artifact)
	if err != nil || !info.Mode().IsRegular() {
		dakelog.Error("fetch %s: produced path is not a regular file (pid %v)", ctx.Msg.Target, pid)
		if merr := reportMakeError(data.CallerDaemon, pid, o.Self, 1); merr != nil {
			dakelog.Error("report make error for %s: %v", ctx.Msg.Target, merr)
		}
		return transport.WriteFetcherMessage(ctx.Stream, transport.FetcherMessage{Pid: pid, Type: transport.FetcherFailed})
	}

	return streamArtifact(ctx.Stream, pid, artifact)
}

func reportMakeError(callerDaemon transport.Socket, pid ids.ProcessId, guilty transport.Socket, exitCode int32) error {
	stream, err := transport.Connect(callerDaemon)
	if err != nil {
		return fmt.Errorf("connect to caller daemon %v: %w", callerDaemon, err)
	}
	defer stream.Close()

	return transport.WriteDaemonMessage(stream, transport.DaemonMessage{
		Type:       transport.MsgMakeError,
		Pid:        pid,
		GuiltyHost: guilty,
		ExitCode:   exitCode,
	})
}

// fetchChunkSize is the per-FetcherMessage chunk size (spec.md §4.4.4, "8
// KiB each, final short chunk permitted").
const fetchChunkSize = 8192

func streamArtifact(stream *transport.Stream, pid ids.ProcessId, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, fetchChunkSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if werr := transport.WriteFetcherMessage(stream, transport.FetcherMessage{
				Pid:  pid,
				Type: transport.FetcherObject,
				Data: chunk,
			}); werr != nil {
				return fmt.Errorf("stream artifact chunk: %w", werr)
			}
		}
		if rerr == io.EOF {
			// a trailing empty Object chunk signals completion to the
			// fetcher, which otherwise has no way to distinguish "more
			// chunks coming" from "stream exhausted" on this connection.
			return transport.WriteFetcherMessage(stream, transport.FetcherMessage{
				Pid: pid, Type: transport.FetcherObject,
			})
		}
		if rerr != nil {
			return fmt.Errorf("read artifact %s: %w", path, rerr)
		}
	}
}

// handleStdoutLog / handleStderrLog implement spec.md §4.4.7: translate a
// DaemonMessage log into a notifier broadcast, which the caller's
// NewProcess multiplexer (distribute.go) turns into a ProcessMessage.
func (o *Orchestrator) handleStdoutLog(ctx *daemon.HandlerContext) error {
	o.State.Notifiers.Publish(ctx.Msg.Pid, daemon.Notification{
		Kind: daemon.NotifyLog, Stream: daemon.StdoutStream, Text: ctx.Msg.Text,
	})
	return nil
}

func (o *Orchestrator) handleStderrLog(ctx *daemon.HandlerContext) error {
	o.State.Notifiers.Publish(ctx.Msg.Pid, daemon.Notification{
		Kind: daemon.NotifyLog, Stream: daemon.StderrStream, Text: ctx.Msg.Text,
	})
	return nil
}

// handleMakeError implements spec.md §4.4.8: translate a MakeError
// DaemonMessage into an Error notification for the orchestrator's
// multiplexer.
func (o *Orchestrator) handleMakeError(ctx *daemon.HandlerContext) error {
	o.State.Notifiers.Publish(ctx.Msg.Pid, daemon.Notification{
		Kind:       daemon.NotifyError,
		ExitCode:   ctx.Msg.ExitCode,
		GuiltyHost: ctx.Msg.GuiltyHost,
	})
	return nil
}

// handleDone implements spec.md §4.4.6: publish Done to whoever is still
// subscribed (the local make supervisor, any waiter), then remove the
// process entry (which retires its notifier channel), then ack.
func (o *Orchestrator) handleDone(ctx *daemon.HandlerContext) error {
	pid := ctx.Msg.Pid

	o.State.Notifiers.Publish(pid, daemon.Notification{Kind: daemon.NotifyDone})
	if err := o.State.RemoveProcess(pid); err != nil {
		return fmt.Errorf("remove process %v on Done: %w", pid, err)
	}

	return transport.WriteAckMessage(ctx.Stream, transport.AckMessage{Pid: pid, Type: transport.AckOk})
}

func ensureRegistered(state *daemon.State, pid ids.ProcessId) (transport.ProcessData, error) {
	data, ok, err := state.GetProcess(pid)
	if err != nil {
		return transport.ProcessData{}, err
	}
	if !ok {
		return transport.ProcessData{}, fmt.Errorf("pid %v not registered", pid)
	}
	return data, nil
}
