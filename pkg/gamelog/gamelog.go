// Package gamelog writes the per-room append-only session log, one JSON
// record per line. The log is the authoritative reconstruction of a session.
package gamelog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry is one session log record.
type Entry struct {
	Timestamp string         `json:"timestamp_iso"`
	ElapsedS  float64        `json:"elapsed_time_s"`
	Room      string         `json:"room"`
	Username  string         `json:"username"`
	Role      string         `json:"role"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	Phase     string         `json:"phase"`
	Score     int            `json:"score"`
}

// opener is the single session_created record at the head of every log.
type opener struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Room      string `json:"room"`
	LogFile   string `json:"log_file"`
}

// Logger appends session records for one room. All writes happen on the
// room's dispatch goroutine, so no locking is needed.
type Logger struct {
	room string
	path string
	file *os.File
	w    *bufio.Writer
}

// New creates the log file for a room and writes the session_created record.
func New(dir, room string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s.jsonl", sanitize(room), time.Now().UTC().Format("20060102T150405"))
	path := filepath.Join(dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening session log: %w", err)
	}
	l := &Logger{room: room, path: path, file: file, w: bufio.NewWriter(file)}
	if err := l.write(opener{
		Event:     "session_created",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Room:      room,
		LogFile:   name,
	}); err != nil {
		file.Close()
		return nil, err
	}
	return l, nil
}

// Path returns the log file path.
func (l *Logger) Path() string {
	return l.path
}

// Append writes one record and flushes it to disk.
func (l *Logger) Append(e Entry) error {
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if e.Room == "" {
		e.Room = l.room
	}
	return l.write(e)
}

func (l *Logger) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding log record: %w", err)
	}
	if _, err := l.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing log record: %w", err)
	}
	if err := l.w.Flush(); err != nil {
		return fmt.Errorf("flushing session log: %w", err)
	}
	return nil
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if err := l.w.Flush(); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}

func sanitize(room string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, room)
}
