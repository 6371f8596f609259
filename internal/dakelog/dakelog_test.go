package dakelog

import (
	"bytes"
	"strings"
	"testing"
)

func resetLoggers() {
	mu.Lock()
	loggers = make(map[string]*logger)
	mu.Unlock()
}

func TestWillLogRespectsRegisteredLevel(t *testing.T) {
	resetLoggers()
	defer resetLoggers()

	AddLogger("test", &bytes.Buffer{}, WARN)

	if WillLog(DEBUG) {
		t.Fatalf("expected DEBUG to be suppressed when the only logger is WARN")
	}
	if !WillLog(ERROR) {
		t.Fatalf("expected ERROR to pass a WARN-level logger")
	}
}

func TestEmitWritesToLoggersAtOrAboveLevel(t *testing.T) {
	resetLoggers()
	defer resetLoggers()

	var buf bytes.Buffer
	AddLogger("test", &buf, INFO)

	Debug("should not appear")
	Info("hello %s", "world")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("DEBUG message leaked through an INFO-level logger: %q", out)
	}
	if !strings.Contains(out, "hello world") {
		t.Fatalf("expected INFO message in output, got %q", out)
	}
}

func TestSetLevelAllChangesEveryLogger(t *testing.T) {
	resetLoggers()
	defer resetLoggers()

	var buf bytes.Buffer
	AddLogger("test", &buf, ERROR)
	SetLevelAll(DEBUG)

	Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Fatalf("expected DEBUG message after SetLevelAll(DEBUG), got %q", buf.String())
	}
}

func TestDelLoggerStopsFurtherOutput(t *testing.T) {
	resetLoggers()
	defer resetLoggers()

	var buf bytes.Buffer
	AddLogger("test", &buf, DEBUG)
	DelLogger("test")

	Info("should not be written")
	if buf.Len() != 0 {
		t.Fatalf("expected no output after DelLogger, got %q", buf.String())
	}
}
