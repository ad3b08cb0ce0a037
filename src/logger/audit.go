// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Rejection describes one failed request verification.
type Rejection struct {
	Reason     string
	RequestID  string
	RemoteAddr string
	Method     string
	Cause      error
}

// Auditor records rejected requests.
type Auditor interface {
	Reject(r Rejection)
}

// AuditLog is an append-only, JSON-lines rejection log built on zap.
// Each line carries an RFC 3339 UTC timestamp and the rejection reason.
//
// AuditLog is safe for concurrent use by multiple goroutines.
type AuditLog struct {
	logger *zap.Logger
	closer io.Closer
}

// NewAuditLog opens destination for appending and returns an AuditLog writing to it.
//
// The destination may be "stderr", "stdout" or a file path. Empty selects stderr.
// Missing parent directories are created. Existing content is never truncated.
func NewAuditLog(destination string) (*AuditLog, error) {
	switch destination {
	case "", "stderr":
		return NewAuditLogWriter(os.Stderr), nil
	case "stdout":
		return NewAuditLogWriter(os.Stdout), nil
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0o750); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(destination, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, err
	}

	a := NewAuditLogWriter(f)
	a.closer = f
	return a, nil
}

// NewAuditLogWriter returns an AuditLog writing to w.
func NewAuditLogWriter(w io.Writer) *AuditLog {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     utcTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(w), zapcore.InfoLevel)
	return &AuditLog{logger: zap.New(core)}
}

func utcTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(time.RFC3339Nano))
}

// Reject appends a rejection entry.
func (a *AuditLog) Reject(r Rejection) {
	fields := []zap.Field{
		zap.String("reason", r.Reason),
		zap.String("request_id", r.RequestID),
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("method", r.Method),
	}
	if r.Cause != nil {
		fields = append(fields, zap.String("cause", r.Cause.Error()))
	}

	a.logger.Warn("validation error", fields...)
}

// Close flushes buffered entries and closes the underlying file, if any.
func (a *AuditLog) Close() error {
	// Sync on a terminal returns EINVAL; that is not worth reporting.
	_ = a.logger.Sync()
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// NopAuditor discards every rejection.
type NopAuditor struct{}

// Reject implements Auditor.
func (NopAuditor) Reject(Rejection) {}
