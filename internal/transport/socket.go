package transport

import (
	"fmt"
	"net"
)

// SocketKind distinguishes a TCP endpoint from a Unix pathname endpoint
// (spec.md §4.1).
type SocketKind int

const (
	TCPSocket SocketKind = iota
	UnixSocket
)

// Socket is the address abstraction used throughout Dake: the caller talks
// to its local daemon over a Unix socket, inter-daemon traffic runs over
// TCP. It is comparable so it can be used as a map key (e.g. the set of
// involved hosts for a process).
type Socket struct {
	Kind SocketKind
	Addr string // "host:port" for TCP, pathname for Unix
}

func TCP(addr string) Socket  { return Socket{Kind: TCPSocket, Addr: addr} }
func Unix(path string) Socket { return Socket{Kind: UnixSocket, Addr: path} }

func (s Socket) Network() string {
	if s.Kind == UnixSocket {
		return "unix"
	}
	return "tcp"
}

func (s Socket) String() string {
	return fmt.Sprintf("%s:%s", s.Network(), s.Addr)
}

// Connect opens a stream to sock.
func Connect(sock Socket) (*Stream, error) {
	conn, err := net.Dial(sock.Network(), sock.Addr)
	if err != nil {
		return nil, fmt.Errorf("connect %v: %w", sock, err)
	}
	return &Stream{Conn: conn}, nil
}

// Broadcast opens one stream per address concurrently and writes msg (or a
// per-address variant produced by msgFor) on each, returning the opened
// streams keyed by socket for subsequent reads (e.g. ack collection). A
// connect or write failure for one socket does not prevent the others from
// being attempted; the error is returned alongside whatever streams did
// succeed.
func Broadcast(socks []Socket, msgFor func(Socket) (Kind, interface{})) (map[Socket]*Stream, error) {
	type result struct {
		sock   Socket
		stream *Stream
		err    error
	}

	results := make(chan result, len(socks))
	for _, sock := range socks {
		go func(sock Socket) {
			stream, err := Connect(sock)
			if err != nil {
				results <- result{sock: sock, err: err}
				return
			}
			kind, body := msgFor(sock)
			if err := Write(stream, kind, body); err != nil {
				stream.Close()
				results <- result{sock: sock, err: err}
				return
			}
			results <- result{sock: sock, stream: stream}
		}(sock)
	}

	streams := make(map[Socket]*Stream, len(socks))
	var firstErr error
	for range socks {
		r := <-results
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		streams[r.sock] = r.stream
	}

	return streams, firstErr
}
