package transport

import (
	"net"
	"testing"
)

// listenUnix starts a listener that accepts connections until stopped,
// reads one DaemonMessage-kind-tagged envelope off each, and replies with
// an AckMessage.
func listenUnix(t *testing.T) (sockPath string, stop func()) {
	t.Helper()
	dir := t.TempDir()
	sockPath = dir + "/d.sock"

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				stream := &Stream{Conn: conn}
				var msg DaemonMessage
				if err := Read(stream, KindDaemonMessage, &msg); err != nil {
					return
				}
				WriteAckMessage(stream, AckMessage{Pid: msg.Pid, Type: AckOk})
			}(conn)
		}
	}()

	return sockPath, func() { ln.Close() }
}

func TestBroadcastOpensAllReachableSockets(t *testing.T) {
	pathA, stopA := listenUnix(t)
	defer stopA()
	pathB, stopB := listenUnix(t)
	defer stopB()

	socks := []Socket{Unix(pathA), Unix(pathB)}
	streams, err := Broadcast(socks, func(s Socket) (Kind, interface{}) {
		return KindDaemonMessage, DaemonMessage{Type: MsgDone, Pid: testPid()}
	})
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if len(streams) != 2 {
		t.Fatalf("expected 2 streams, got %d", len(streams))
	}

	for sock, stream := range streams {
		ack, err := ReadAckMessage(stream)
		if err != nil {
			t.Fatalf("read ack from %v: %v", sock, err)
		}
		if ack.Type != AckOk {
			t.Fatalf("expected AckOk from %v, got %v", sock, ack.Type)
		}
		stream.Close()
	}
}

func TestBroadcastReturnsPartialResultsOnUnreachableSocket(t *testing.T) {
	pathA, stopA := listenUnix(t)
	defer stopA()

	deadPath := pathA + "-does-not-exist"
	socks := []Socket{Unix(pathA), Unix(deadPath)}

	streams, err := Broadcast(socks, func(s Socket) (Kind, interface{}) {
		return KindDaemonMessage, DaemonMessage{Type: MsgDone, Pid: testPid()}
	})
	if err == nil {
		t.Fatalf("expected an error for the unreachable socket")
	}
	if len(streams) != 1 {
		t.Fatalf("expected exactly 1 surviving stream, got %d", len(streams))
	}
	for _, stream := range streams {
		stream.Close()
	}
}
