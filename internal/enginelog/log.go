// Package enginelog is a thin level-prefixed wrapper around the
// standard library's log.Logger, writing to a debug file by default
// and to any io.Writer for tests.
package enginelog

import (
	"io"
	"log"
	"os"
	"path/filepath"
)

// Logger is a level-prefixed wrapper over *log.Logger.
type Logger struct {
	out *log.Logger
}

// New wraps w (e.g. a debug log file) with level-prefixed helpers.
func New(w io.Writer) *Logger {
	return &Logger{out: log.New(w, "", log.LstdFlags|log.Lshortfile)}
}

// Discard returns a Logger that drops everything, for tests.
func Discard() *Logger { return New(io.Discard) }

// OpenDebugFile opens an append-mode debug file under the user's home
// tmp directory. Errors fall back to a discarding logger; logging is
// never allowed to fail startup.
func OpenDebugFile(appName string) *Logger {
	home, err := os.UserHomeDir()
	if err != nil {
		return Discard()
	}
	dir := filepath.Join(home, "tmp")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Discard()
	}
	f, err := os.OpenFile(filepath.Join(dir, appName+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return Discard()
	}
	return New(f)
}

func (l *Logger) Infof(format string, args ...interface{})  { l.out.Printf("INFO  "+format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.out.Printf("WARN  "+format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.out.Printf("ERROR "+format, args...) }
