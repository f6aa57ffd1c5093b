package audit

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapSink writes events as single-line JSON objects in the audit wire
// shape:
//
//	{"timestamp":"<RFC3339>","level":"INFO","security_level":"info",
//	 "event":{"event_type":"ToolInvoked","tool_name":"...",...}}
//
// Field names are consumed by downstream log processors and must not
// change. New fields may be added inside "event".
type ZapSink struct {
	core zapcore.Core
}

// NewZapSink creates a sink encoding to the given destination,
// typically stderr or an append-only audit log file.
func NewZapSink(ws zapcore.WriteSyncer) *ZapSink {
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	})
	return &ZapSink{core: zapcore.NewCore(enc, ws, zapcore.DebugLevel)}
}

func (s *ZapSink) Write(e *Event) {
	entry := zapcore.Entry{
		Time:  e.Timestamp,
		Level: e.Security.Level(),
	}
	fields := []zapcore.Field{
		zap.String("security_level", string(e.Security)),
		zap.Object("event", e),
	}
	// A failed write degrades the trail, never the invocation.
	_ = s.core.Write(entry, fields)
}

func (s *ZapSink) Close() {
	_ = s.core.Sync()
}
