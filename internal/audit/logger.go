package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/digiy/pulse/internal/auth"
	"github.com/digiy/pulse/internal/event"
)

// Actions recorded in the audit trail.
const (
	ActionMint   = "mint"
	ActionIngest = "ingest"
)

// Outcome codes.
const (
	CodeSuccess       = "SUCCESS"
	CodeMissingFields = "MISSING_FIELDS"
	CodeInvalidJSON   = "INVALID_JSON"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "FORBIDDEN"
	CodeError         = "ERROR"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	Timestamp  time.Time              `json:"ts"`
	MerchantID string                 `json:"merchantId"`
	Action     string                 `json:"action"`
	Source     string                 `json:"source"`
	Params     map[string]interface{} `json:"params"`
	Outcome    string                 `json:"outcome"`
	Code       string                 `json:"code"`
}

// Logger appends audit entries to a size-rotated JSON lines file.
// A nil *Logger discards entries.
type Logger struct {
	mu       sync.Mutex
	filePath string
	out      io.WriteCloser
	rotator  *lumberjack.Logger
	now      func() time.Time
}

// NewLogger creates a new audit logger writing to filePath.
func NewLogger(filePath string, maxSizeMB, maxBackups int) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}

	return &Logger{
		filePath: filePath,
		out:      rotator,
		rotator:  rotator,
		now:      time.Now,
	}, nil
}

// LogMint records a credential mint.
func (l *Logger) LogMint(ctx context.Context, merchantID, source string, err error) {
	l.Record(ctx, ActionMint, merchantID, source, nil, err)
}

// LogIngest records an ingestion attempt.
func (l *Logger) LogIngest(ctx context.Context, merchantID, source string, params map[string]interface{}, err error) {
	l.Record(ctx, ActionIngest, merchantID, source, params, err)
}

// Record logs an audit entry for an action.
func (l *Logger) Record(_ context.Context, action, merchantID, source string, params map[string]interface{}, err error) {
	if l == nil {
		return
	}
	if params == nil {
		params = make(map[string]interface{})
	}

	outcome := "ok"
	if err != nil {
		outcome = err.Error()
	}

	l.writeEntry(AuditEntry{
		Timestamp:  l.now().UTC(),
		MerchantID: merchantID,
		Action:     action,
		Source:     source,
		Params:     params,
		Outcome:    outcome,
		Code:       CodeFromError(err),
	})
}

// writeEntry writes an audit entry to the log file.
func (l *Logger) writeEntry(entry AuditEntry) {
	jsonData, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal audit entry: %v\n", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out == nil {
		return
	}
	if _, err := l.out.Write(append(jsonData, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write audit entry: %v\n", err)
	}
}

// CodeFromError maps errors to standardized codes.
func CodeFromError(err error) string {
	switch {
	case err == nil:
		return CodeSuccess
	case errors.Is(err, event.ErrMissingFields):
		return CodeMissingFields
	case errors.Is(err, event.ErrInvalidPayload):
		return CodeInvalidJSON
	case errors.Is(err, auth.ErrForbidden):
		return CodeForbidden
	case errors.Is(err, auth.ErrUnauthorized):
		return CodeUnauthorized
	default:
		return CodeError
	}
}

// Close closes the audit logger and its file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out != nil {
		err := l.out.Close()
		l.out = nil
		return err
	}
	return nil
}

// GetFilePath returns the path to the audit log file.
func (l *Logger) GetFilePath() string {
	return l.filePath
}

// Rotate starts a new audit file, keeping the old one as a backup.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotator == nil || l.out == nil {
		return fmt.Errorf("audit logger is closed")
	}
	return l.rotator.Rotate()
}
