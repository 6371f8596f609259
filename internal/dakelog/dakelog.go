// Package dakelog extends the standard log package to support multiple
// named loggers, each with its own level. Call AddLogger for each desired
// destination, then use the package-level Debug/Info/Warn/Error/Fatal
// functions to fan a message out to every logger that is configured to see
// it.
package dakelog

import (
	"flag"
	"fmt"
	golog "log"
	"io"
	"os"
	"path/filepath"
	"sync"
)

var (
	LevelFlag = flag.String("level", "warn", "set log level: [debug, info, warn, error, fatal]")
	Verbose   = flag.Bool("v", true, "log on stderr")
	LogFile   = flag.String("logfile", "", "also log to file")
)

var (
	mu      sync.RWMutex
	loggers = make(map[string]*logger)
)

type logger struct {
	l     *golog.Logger
	level Level
}

// AddLogger registers a named logger writing to output at or above level.
func AddLogger(name string, output io.Writer, level Level) {
	mu.Lock()
	defer mu.Unlock()

	loggers[name] = &logger{l: golog.New(output, "", golog.LstdFlags), level: level}
}

// DelLogger removes a previously registered logger.
func DelLogger(name string) {
	mu.Lock()
	defer mu.Unlock()

	delete(loggers, name)
}

// WillLog reports whether a message at level would be emitted by any
// configured logger. Callers use this to skip building expensive debug
// strings on hot paths.
func WillLog(level Level) bool {
	mu.RLock()
	defer mu.RUnlock()

	for _, lg := range loggers {
		if lg.level <= level {
			return true
		}
	}
	return false
}

// SetLevelAll changes the level of every registered logger.
func SetLevelAll(level Level) {
	mu.Lock()
	defer mu.Unlock()

	for _, lg := range loggers {
		lg.level = level
	}
}

// Init sets up logging according to the registered flags. Call after
// flag.Parse.
func Init() error {
	level, err := LevelFromString(*LevelFlag)
	if err != nil {
		return err
	}

	if *Verbose {
		AddLogger("stderr", os.Stderr, level)
	}

	if *LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(*LogFile), 0755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(*LogFile, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0660)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		AddLogger("file", f, level)
	}

	return nil
}

func emit(level Level, format string, arg ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()

	var msg string
	for _, lg := range loggers {
		if lg.level > level {
			continue
		}
		if msg == "" {
			msg = level.String() + " " + fmt.Sprintf(format, arg...)
		}
		lg.l.Println(msg)
	}
}

func Debug(format string, arg ...interface{}) { emit(DEBUG, format, arg...) }
func Info(format string, arg ...interface{})  { emit(INFO, format, arg...) }
func Warn(format string, arg ...interface{})  { emit(WARN, format, arg...) }
func Error(format string, arg ...interface{}) { emit(ERROR, format, arg...) }

func Fatal(format string, arg ...interface{}) {
	emit(FATAL, format, arg...)
	os.Exit(1)
}

func Debugln(arg ...interface{}) { emit(DEBUG, "%s", fmt.Sprintln(arg...)) }
func Infoln(arg ...interface{})  { emit(INFO, "%s", fmt.Sprintln(arg...)) }
func Warnln(arg ...interface{})  { emit(WARN, "%s", fmt.Sprintln(arg...)) }
func Errorln(arg ...interface{}) { emit(ERROR, "%s", fmt.Sprintln(arg...)) }

func Fatalln(arg ...interface{}) {
	emit(FATAL, "%s", fmt.Sprintln(arg...))
	os.Exit(1)
}
