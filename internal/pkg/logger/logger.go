// Package logger provides structured JSON logging with email redaction.
// Most operational logging in this codebase uses the stdlib log package
// with component prefixes; this logger is for subscriber-bearing lines
// where PII must not land in plain text.
package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

var (
	mu       sync.Mutex
	minLevel = INFO
)

// SetLevel sets the minimum level that gets emitted.
func SetLevel(l Level) { minLevel = l }

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...any) { emit(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...any) { emit(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...any) { emit(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...any) { emit(ERROR, msg, fields...) }

func emit(level Level, msg string, fields ...any) {
	if level < minLevel {
		return
	}

	entry := map[string]any{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": level.String(),
		"msg":   msg,
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		val := fmt.Sprintf("%v", fields[i+1])
		if strings.Contains(strings.ToLower(key), "email") {
			val = RedactEmail(val)
		}
		entry[key] = val
	}

	data, _ := json.Marshal(entry)
	mu.Lock()
	fmt.Fprintln(os.Stderr, string(data))
	mu.Unlock()
}

// RedactEmail masks an address for safe logging:
// "ada.lovelace@example.com" becomes "ad***@example.com". Local parts of
// two characters or fewer are fully masked.
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "***@***"
	}
	local, domainPart := email[:at], email[at+1:]
	if len(local) > 2 {
		return local[:2] + "***@" + domainPart
	}
	return "***@" + domainPart
}
