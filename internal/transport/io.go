package transport

// Typed convenience wrappers around Write/Read for each envelope Kind, so
// callers never have to pass the wrong out-pointer type for the kind they
// asked for.

func WriteDaemonMessage(stream *Stream, msg DaemonMessage) error {
	return Write(stream, KindDaemonMessage, msg)
}

func ReadDaemonMessage(stream *Stream) (DaemonMessage, error) {
	var msg DaemonMessage
	err := Read(stream, KindDaemonMessage, &msg)
	return msg, err
}

func WriteProcessMessage(stream *Stream, msg ProcessMessage) error {
	return Write(stream, KindProcessMessage, msg)
}

func ReadProcessMessage(stream *Stream) (ProcessMessage, error) {
	var msg ProcessMessage
	err := Read(stream, KindProcessMessage, &msg)
	return msg, err
}

func WriteAckMessage(stream *Stream, msg AckMessage) error {
	return Write(stream, KindAckMessage, msg)
}

func ReadAckMessage(stream *Stream) (AckMessage, error) {
	var msg AckMessage
	err := Read(stream, KindAckMessage, &msg)
	return msg, err
}

func WriteFetcherMessage(stream *Stream, msg FetcherMessage) error {
	return Write(stream, KindFetcherMessage, msg)
}

func ReadFetcherMessage(stream *Stream) (FetcherMessage, error) {
	var msg FetcherMessage
	err := Read(stream, KindFetcherMessage, &msg)
	return msg, err
}
