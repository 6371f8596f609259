package daemon

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/ZivoMartin/Dake/internal/dakelog"
	"github.com/ZivoMartin/Dake/internal/transport"
)

// HandlerContext is the aggregate value handed to every message handler:
// the shared connection, the shared state, and the message's pid (spec.md
// §9 "Duck-typed handler context" -- modeled here as one struct passed by
// pointer rather than dynamic dispatch).
type HandlerContext struct {
	Stream *transport.Stream
	State  *State
	Msg    transport.DaemonMessage
}

// Handler processes one DaemonMessage of a specific type.
type Handler func(ctx *HandlerContext) error

// HandlerSet maps every DaemonMessageType to its handler. The dispatcher
// matches exhaustively: an unregistered type is a programmer error, not a
// silently ignored message (spec.md §9 "Sum-type messages").
type HandlerSet map[transport.DaemonMessageType]Handler

// Dispatcher owns both listeners and routes incoming connections to
// HandlerSet (spec.md §4.3 "Listener", "Per-connection loop").
type Dispatcher struct {
	State    *State
	Handlers HandlerSet
}

func NewDispatcher(state *State, handlers HandlerSet) *Dispatcher {
	return &Dispatcher{State: state, Handlers: handlers}
}

// Serve binds a Unix listener at sockPath (after unlinking any stale
// socket) and a TCP listener at tcpAddr, and runs both accept loops. It
// returns only if unlinking or binding fails; an accept error afterwards is
// logged and ends that listener's loop, but Serve itself keeps running.
func (d *Dispatcher) Serve(sockPath, tcpAddr string) error {
	if err := os.RemoveAll(sockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unlink stale socket %s: %w", sockPath, err)
	}

	unixLn, err := net.Listen("unix", sockPath)
	if err != nil {
		return fmt.Errorf("listen unix %s: %w", sockPath, err)
	}

	tcpLn, err := net.Listen("tcp", tcpAddr)
	if err != nil {
		unixLn.Close()
		return fmt.Errorf("listen tcp %s: %w", tcpAddr, err)
	}

	conns := make(chan net.Conn)
	go acceptLoop(unixLn, conns)
	go acceptLoop(tcpLn, conns)

	for conn := range conns {
		go d.handleConnection(&transport.Stream{Conn: conn})
	}
	return nil
}

func acceptLoop(ln net.Listener, conns chan<- net.Conn) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			dakelog.Error("accept on %v: %v", ln.Addr(), err)
			return
		}
		conns <- conn
	}
}

// handleConnection reads DaemonMessages off stream until the peer closes or
// a fatal framing error occurs, admitting and dispatching each in turn
// (spec.md §4.3 "Per-connection loop").
func (d *Dispatcher) handleConnection(stream *transport.Stream) {
	defer stream.Close()

	for {
		msg, err := transport.ReadDaemonMessage(stream)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			dakelog.Error("connection from %v: %v", stream.PeerAddr(), err)
			return
		}

		if !msg.Pid.Processless() {
			if _, ok, lerr := d.State.GetProcess(msg.Pid); lerr != nil {
				dakelog.Error("dispatch %v: %v", msg.Type, lerr)
				continue
			} else if !ok {
				dakelog.Debug("dropping late %v for unregistered pid %v", msg.Type, msg.Pid)
				continue
			}
		}

		handler, ok := d.Handlers[msg.Type]
		if !ok {
			dakelog.Error("no handler registered for %v", msg.Type)
			continue
		}

		if err := handler(&HandlerContext{Stream: stream, State: d.State, Msg: msg}); err != nil {
			dakelog.Error("handle %v for %v: %v", msg.Type, msg.Pid, err)
		}
	}
}
