package diag

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
)

// LogMode selects how FileLog opens its destination file, matching the two
// modes the X server process log can be opened in (§4.6, §6).
type LogMode int

const (
	LogModeAppend LogMode = iota
	LogModeBackupAndTruncate
)

type logMessage struct {
	content      string
	isDiagnostic bool
	isStop       bool
}

func diagnosticLine(content string) logMessage {
	return logMessage{content: content, isDiagnostic: true}
}

func stopLine() logMessage {
	return logMessage{isStop: true}
}

func outputLine(content string) logMessage {
	return logMessage{content: content}
}

// FileLog is a single destination log file fed by a channel and written to
// by one dedicated goroutine, mirroring the teacher's FileLogger.
type FileLog struct {
	channel      chan logMessage
	errorChannel chan error
	waitGroup    sync.WaitGroup
	path         string
}

func NewFileLog(path string) *FileLog {
	return &FileLog{
		channel:      make(chan logMessage),
		errorChannel: make(chan error, 1),
		path:         path,
	}
}

// Run opens the log file according to mode and starts the writer goroutine.
// With LogModeBackupAndTruncate, an existing file is renamed to
// "<path>.old" before being recreated; otherwise new content is appended.
func (f *FileLog) Run(mode LogMode) error {
	var file *os.File
	var err error

	switch mode {
	case LogModeBackupAndTruncate:
		if _, statErr := os.Stat(f.path); statErr == nil {
			_ = os.Rename(f.path, f.path+".old")
		}
		file, err = os.OpenFile(f.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	default:
		file, err = os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	}
	if err != nil {
		return fmt.Errorf("failed opening %v: %w", f.path, err)
	}

	f.waitGroup.Add(1)
	go func() {
		defer f.waitGroup.Done()
		defer file.Close()

		for msg := range f.channel {
			if msg.isStop {
				return
			}

			chunk := msg.content
			if msg.isDiagnostic {
				chunk = fmt.Sprintf("--------------------- %v ---------------------\n", chunk)
			} else {
				chunk += "\n"
			}

			if err := writeAll(file, []byte(chunk)); err != nil {
				select {
				case f.errorChannel <- fmt.Errorf("failed writing to %v: %w", f.path, err):
				default:
				}
				return
			}
		}
	}()

	return nil
}

func (f *FileLog) Stop() {
	f.channel <- stopLine()
	f.waitGroup.Wait()
}

func (f *FileLog) Diagnostic(content string) {
	f.channel <- diagnosticLine(content)
}

func (f *FileLog) Diagnosticf(format string, args ...any) {
	f.Diagnostic(fmt.Sprintf(format, args...))
}

// StreamOutput copies lines from reader into the log file until EOF.
func (f *FileLog) StreamOutput(reader io.Reader) {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		f.channel <- outputLine(scanner.Text())
	}
}

// Errors exposes the channel on which a fatal write failure is reported.
func (f *FileLog) Errors() <-chan error {
	return f.errorChannel
}

func writeAll(w io.Writer, data []byte) error {
	written := 0
	for written < len(data) {
		n, err := w.Write(data[written:])
		if err != nil {
			return err
		}
		written += n
	}
	return nil
}
