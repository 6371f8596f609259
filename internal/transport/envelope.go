package transport

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
)

// Kind tags the payload carried by an envelope (spec.md §4.1).
type Kind byte

const (
	KindDaemonMessage Kind = iota
	KindProcessMessage
	KindAckMessage
	KindFetcherMessage
)

func (k Kind) String() string {
	switch k {
	case KindDaemonMessage:
		return "DaemonMessage"
	case KindProcessMessage:
		return "ProcessMessage"
	case KindAckMessage:
		return "AckMessage"
	case KindFetcherMessage:
		return "FetcherMessage"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

// ErrProtocol signals a framing mismatch: an unexpected kind byte, or a
// payload whose length doesn't match the header. It is fatal for the
// connection (spec.md §7): the caller should close the stream.
var ErrProtocol = errors.New("dake: protocol error")

// headerLen is the fixed-size header: 8 bytes of little-endian payload
// length followed by 1 byte of Kind.
const headerLen = 9

// Write frames body (gob-encoded) under kind and flushes it to stream.
func Write(stream *Stream, kind Kind, body interface{}) error {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(body); err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	var header [headerLen]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(payload.Len()))
	header[8] = byte(kind)

	if err := stream.WriteAll(header[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := stream.WriteAll(payload.Bytes()); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return stream.Flush()
}

// Read reads one envelope from stream, verifying its kind matches expected,
// and gob-decodes the payload into out (a pointer to the expected variant
// struct). Returns io.EOF if the stream ends before a full header is read;
// a kind mismatch or a short payload is ErrProtocol. Other header read
// errors and payload decode errors are returned wrapped, not as
// ErrProtocol.
func Read(stream *Stream, expected Kind, out interface{}) error {
	var header [headerLen]byte
	if err := stream.ReadExact(header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return io.EOF
		}
		return fmt.Errorf("read header: %w", err)
	}

	length := binary.LittleEndian.Uint64(header[:8])
	kind := Kind(header[8])
	if kind != expected {
		return fmt.Errorf("%w: expected %v, got %v", ErrProtocol, expected, kind)
	}

	payload := make([]byte, length)
	if err := stream.ReadExact(payload); err != nil {
		return fmt.Errorf("%w: short payload: %v", ErrProtocol, err)
	}

	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
