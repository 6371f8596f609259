package daemon

import (
	"net"
	"testing"
	"time"

	"github.com/ZivoMartin/Dake/internal/config"
	"github.com/ZivoMartin/Dake/internal/ids"
	"github.com/ZivoMartin/Dake/internal/transport"
)

func pipeStream() (*transport.Stream, *transport.Stream) {
	a, b := net.Pipe()
	return &transport.Stream{Conn: a}, &transport.Stream{Conn: b}
}

func TestDispatcherRoutesToRegisteredHandler(t *testing.T) {
	state := NewState(config.DaemonConfig{})
	project := testProject(t)
	pid := ids.NewProcessId(1, project)
	if err := state.RegisterProcess(pid, transport.ProcessData{}); err != nil {
		t.Fatalf("RegisterProcess: %v", err)
	}

	seen := make(chan ids.ProcessId, 1)
	handlers := HandlerSet{
		transport.MsgDone: func(ctx *HandlerContext) error {
			seen <- ctx.Msg.Pid
			return transport.WriteAckMessage(ctx.Stream, transport.AckMessage{Pid: ctx.Msg.Pid, Type: transport.AckOk})
		},
	}
	d := NewDispatcher(state, handlers)

	client, server := pipeStream()
	defer client.Close()
	go d.handleConnection(server)

	if err := transport.WriteDaemonMessage(client, transport.DaemonMessage{Type: transport.MsgDone, Pid: pid}); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case got := <-seen:
		if got != pid {
			t.Fatalf("handler saw pid %v, want %v", got, pid)
		}
	case <-time.After(time.Second):
		t.Fatalf("handler was never invoked")
	}

	ack, err := transport.ReadAckMessage(client)
	if err != nil {
		t.Fatalf("ReadAckMessage: %v", err)
	}
	if ack.Type != transport.AckOk {
		t.Fatalf("expected AckOk, got %v", ack.Type)
	}
}

func TestDispatcherDropsMessageForUnregisteredPid(t *testing.T) {
	state := NewState(config.DaemonConfig{})
	project := testProject(t)
	pid := ids.NewProcessId(99, project) // never registered

	called := make(chan struct{}, 1)
	handlers := HandlerSet{
		transport.MsgDone: func(ctx *HandlerContext) error {
			called <- struct{}{}
			return nil
		},
	}
	d := NewDispatcher(state, handlers)

	client, server := pipeStream()
	go d.handleConnection(server)

	if err := transport.WriteDaemonMessage(client, transport.DaemonMessage{Type: transport.MsgDone, Pid: pid}); err != nil {
		t.Fatalf("write: %v", err)
	}
	client.Close()

	select {
	case <-called:
		t.Fatalf("handler ran for an unregistered pid, expected it to be dropped")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDispatcherAdmitsProcesslessMessageWithoutRegistration(t *testing.T) {
	state := NewState(config.DaemonConfig{})
	project := testProject(t)
	pid := ids.NewProcessId(ids.Processless, project)

	called := make(chan struct{}, 1)
	handlers := HandlerSet{
		transport.MsgFreshId: func(ctx *HandlerContext) error {
			called <- struct{}{}
			return transport.WriteProcessMessage(ctx.Stream, transport.ProcessMessage{Type: transport.PMsgFreshId, Pid: pid})
		},
	}
	d := NewDispatcher(state, handlers)

	client, server := pipeStream()
	defer client.Close()
	go d.handleConnection(server)

	if err := transport.WriteDaemonMessage(client, transport.DaemonMessage{Type: transport.MsgFreshId, Pid: pid}); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatalf("processless message was never dispatched")
	}

	if _, err := transport.ReadProcessMessage(client); err != nil {
		t.Fatalf("ReadProcessMessage: %v", err)
	}
}
