package transport

import (
	"io"
	"net"
	"testing"

	"github.com/ZivoMartin/Dake/internal/ids"
)

func pipeStreams() (*Stream, *Stream) {
	a, b := net.Pipe()
	return &Stream{Conn: a}, &Stream{Conn: b}
}

func testPid() ids.ProcessId {
	project := ids.NewProjectId(ids.DaemonId{1, 2, 3}, "/tmp/p")
	return ids.NewProcessId(7, project)
}

func TestDaemonMessageRoundTrip(t *testing.T) {
	client, server := pipeStreams()
	defer client.Close()
	defer server.Close()

	want := DaemonMessage{
		Type: MsgNewProcess,
		Pid:  testPid(),
		Args: []string{"all", "--flag"},
	}

	done := make(chan error, 1)
	go func() { done <- WriteDaemonMessage(client, want) }()

	got, err := ReadDaemonMessage(server)
	if err != nil {
		t.Fatalf("ReadDaemonMessage: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WriteDaemonMessage: %v", err)
	}

	if got.Type != want.Type || got.Pid != want.Pid || len(got.Args) != len(want.Args) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestReadWrongKindIsProtocolError(t *testing.T) {
	client, server := pipeStreams()
	defer client.Close()
	defer server.Close()

	go WriteAckMessage(client, AckMessage{Pid: testPid(), Type: AckOk})

	var out DaemonMessage
	err := Read(server, KindDaemonMessage, &out)
	if err == nil {
		t.Fatalf("expected a protocol error, got nil")
	}
}

func TestReadOnClosedStreamReturnsEOF(t *testing.T) {
	client, server := pipeStreams()
	client.Close()

	var out DaemonMessage
	err := Read(server, KindDaemonMessage, &out)
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	server.Close()
}
