// Package diag implements the ambient diagnostic-message and per-component
// log-file machinery shared by the rest of the module. It follows the
// severity-tagged, channel-driven style of the teacher it was adapted from
// rather than pulling in a structured logging library: nothing in the
// retrieved corpus reaches for one at this layer, so neither do we.
package diag

import (
	"fmt"
	"os"
	"sync"
	"time"
)

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "DEBUG"
	case SeverityInfo:
		return " INFO"
	case SeverityWarning:
		return " WARN"
	case SeverityError:
		return "ERROR"
	default:
		return "     "
	}
}

// Message is a single diagnostic event, optionally tagged with the prefix of
// the component that raised it (e.g. "XServer 2: ").
type Message struct {
	Date     time.Time
	Severity Severity
	Prefix   string
	Content  string
}

func (m *Message) String() string {
	return fmt.Sprintf("[%v][%v] %v%v\n", m.Severity, m.Date.Format("2006-01-02 15:04:05"), m.Prefix, m.Content)
}

// Sink stores recent diagnostic messages and prints them as they arrive. It
// mirrors the teacher's BackendMessages type.
type Sink struct {
	mu       sync.Mutex
	messages []Message
	quiet    bool
}

func NewSink() *Sink {
	return &Sink{}
}

// NewQuietSink builds a Sink that records messages without printing them,
// for use in tests that exercise components with heavy diagnostic output.
func NewQuietSink() *Sink {
	return &Sink{quiet: true}
}

func (s *Sink) Add(severity Severity, prefix, content string) {
	msg := Message{
		Date:     time.Now(),
		Severity: severity,
		Prefix:   prefix,
		Content:  content,
	}

	if !s.quiet {
		fmt.Fprint(os.Stderr, msg.String())
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

func (s *Sink) Addf(severity Severity, prefix, format string, args ...any) {
	s.Add(severity, prefix, fmt.Sprintf(format, args...))
}

// Trim drops messages older than maxAge, keeping the sink from growing
// without bound across the lifetime of a long-running daemon.
func (s *Sink) Trim(maxAge time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var kept []Message
	for _, msg := range s.messages {
		if now.Sub(msg.Date) < maxAge {
			kept = append(kept, msg)
		}
	}
	s.messages = kept
}

func (s *Sink) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Message, len(s.messages))
	copy(result, s.messages)
	return result
}

// Logger is a thin per-component view over a shared Sink that prefixes every
// message, the Go analogue of the teacher's Logger trait / logprefix hook.
type Logger struct {
	sink   *Sink
	prefix string
}

func NewLogger(sink *Sink, prefix string) *Logger {
	return &Logger{sink: sink, prefix: prefix}
}

func (l *Logger) Debugf(format string, args ...any) {
	if l == nil || l.sink == nil {
		return
	}
	l.sink.Addf(SeverityDebug, l.prefix, format, args...)
}

func (l *Logger) Warningf(format string, args ...any) {
	if l == nil || l.sink == nil {
		return
	}
	l.sink.Addf(SeverityWarning, l.prefix, format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	if l == nil || l.sink == nil {
		return
	}
	l.sink.Addf(SeverityError, l.prefix, format, args...)
}
