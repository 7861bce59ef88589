package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type Logger struct {
	Debug bool

	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

func NewLogger(debug bool) *Logger {
	return &Logger{Debug: debug, out: os.Stdout, now: time.Now}
}

// SetOutput redirects the logger, e.g. above a running progress bar.
// It returns the previous writer.
func (l *Logger) SetOutput(w io.Writer) io.Writer {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.out
	l.out = w
	return prev
}

func (l *Logger) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.out
	if out == nil {
		out = os.Stdout
	}
	_, _ = fmt.Fprintf(out, format, args...)
}

func (l *Logger) Debugf(format string, args ...any) {
	if l.Debug {
		l.printf("[DEBUG] "+format, args...)
	}
}

func (l *Logger) Infof(format string, args ...any) {
	l.printf("[INFO] "+format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.printf("[ERROR] "+format, args...)
}

// Logf writes one run log line prefixed with the local time.
func (l *Logger) Logf(format string, args ...any) {
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	l.printf("[%s] %s\n", now().Format("15:04:05"), fmt.Sprintf(format, args...))
}
