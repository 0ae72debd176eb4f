package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names one kind of audit record.
type AuditEventType string

const (
	// Session lifecycle
	AuditSessionStart AuditEventType = "session_start"
	AuditSessionEnd   AuditEventType = "session_end"

	// Exchange lifecycle
	AuditExchangeStart    AuditEventType = "exchange_start"
	AuditExchangeEnd      AuditEventType = "exchange_end"
	AuditExchangeRejected AuditEventType = "exchange_rejected"

	// Gemini API calls
	AuditLLMResponse AuditEventType = "llm_response"
	AuditLLMError    AuditEventType = "llm_error"

	// Websocket clients
	AuditClientConnect    AuditEventType = "client_connect"
	AuditClientDisconnect AuditEventType = "client_disconnect"
)

// AuditEvent is one structured audit record. Each event is written as a JSON
// line to <dir>/<date>_audit.log.
type AuditEvent struct {
	EventType AuditEventType
	SessionID string
	TurnID    string
	Target    string
	Success   bool
	Duration  time.Duration
	Error     string
	Message   string
	Fields    []zap.Field
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

var (
	auditBase *zap.Logger
	auditFile *os.File
)

// AuditLogger writes audit events scoped to an optional session.
type AuditLogger struct {
	sessionID string
}

// InitAudit opens the audit log next to the main log. It is a no-op when
// debug mode is off or the audit log is already open.
func InitAudit() error {
	mu.Lock()
	defer mu.Unlock()

	if !current.DebugMode || auditFile != nil {
		return nil
	}

	path := filepath.Join(current.Dir, fmt.Sprintf("%s_audit.log", time.Now().Format("2006-01-02")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.EpochMillisTimeEncoder
	encCfg.TimeKey = "ts"
	encCfg.MessageKey = "event"
	encCfg.LevelKey = ""
	encCfg.CallerKey = ""

	auditFile = f
	auditBase = zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(f), zapcore.DebugLevel))
	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	mu.Lock()
	defer mu.Unlock()
	closeAuditLocked()
}

func closeAuditLocked() {
	if auditBase != nil {
		_ = auditBase.Sync()
		auditBase = nil
	}
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns an unscoped audit logger.
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditWithSession creates an audit logger scoped to a session
func AuditWithSession(sessionID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID}
}

// =============================================================================
// AUDIT LOGGING METHODS
// =============================================================================

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	mu.RLock()
	l := auditBase
	mu.RUnlock()
	if l == nil {
		return
	}

	if event.SessionID == "" {
		event.SessionID = a.sessionID
	}

	fields := make([]zap.Field, 0, 7+len(event.Fields))
	fields = append(fields, zap.Bool("success", event.Success))
	if event.SessionID != "" {
		fields = append(fields, zap.String("session", event.SessionID))
	}
	if event.TurnID != "" {
		fields = append(fields, zap.String("turn", event.TurnID))
	}
	if event.Target != "" {
		fields = append(fields, zap.String("target", event.Target))
	}
	if event.Duration > 0 {
		fields = append(fields, zap.Int64("dur_ms", event.Duration.Milliseconds()))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	if event.Message != "" {
		fields = append(fields, zap.String("msg", event.Message))
	}
	fields = append(fields, event.Fields...)

	l.Info(string(event.EventType), fields...)
}

// SessionStart logs a new conversation.
func (a *AuditLogger) SessionStart() {
	a.Log(AuditEvent{EventType: AuditSessionStart, Success: true})
}

// SessionEnd logs the end of a conversation.
func (a *AuditLogger) SessionEnd(turnCount int) {
	a.Log(AuditEvent{
		EventType: AuditSessionEnd,
		Success:   true,
		Fields:    []zap.Field{zap.Int("turns", turnCount)},
	})
}

// ExchangeStart logs an admitted user message.
func (a *AuditLogger) ExchangeStart(turnID string, historyLen, inputLen int) {
	a.Log(AuditEvent{
		EventType: AuditExchangeStart,
		TurnID:    turnID,
		Success:   true,
		Fields:    []zap.Field{zap.Int("history", historyLen), zap.Int("input_len", inputLen)},
	})
}

// ExchangeEnd logs the terminal state of an exchange.
func (a *AuditLogger) ExchangeEnd(turnID, outcome string, d time.Duration, err error) {
	ev := AuditEvent{
		EventType: AuditExchangeEnd,
		TurnID:    turnID,
		Target:    outcome,
		Success:   err == nil,
		Duration:  d,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	a.Log(ev)
}

// ExchangeRejected logs a submission that was not admitted.
func (a *AuditLogger) ExchangeRejected(reason string) {
	a.Log(AuditEvent{EventType: AuditExchangeRejected, Target: reason})
}

// LLMCall logs one call to the reasoning engine.
func (a *AuditLogger) LLMCall(model string, d time.Duration, replyLen int, err error) {
	ev := AuditEvent{
		EventType: AuditLLMResponse,
		Target:    model,
		Success:   err == nil,
		Duration:  d,
		Fields:    []zap.Field{zap.Int("reply_len", replyLen)},
	}
	if err != nil {
		ev.EventType = AuditLLMError
		ev.Error = err.Error()
	}
	a.Log(ev)
}

// ClientConnect logs a websocket client joining.
func (a *AuditLogger) ClientConnect(remote string) {
	a.Log(AuditEvent{EventType: AuditClientConnect, Target: remote, Success: true})
}

// ClientDisconnect logs a websocket client leaving.
func (a *AuditLogger) ClientDisconnect(remote string, err error) {
	ev := AuditEvent{EventType: AuditClientDisconnect, Target: remote, Success: err == nil}
	if err != nil {
		ev.Error = err.Error()
	}
	a.Log(ev)
}
