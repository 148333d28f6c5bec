package progress

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Reporter writes every message to the structured zap log and mirrors it as
// an Event on the caller-facing stream, rendering the zap fields as
// key=value pairs after the message.
type Reporter struct {
	logger  *zap.Logger
	emitter Emitter
	runID   uuid.UUID
	now     func() time.Time
}

// NewReporter couples logger and emitter. Nil arguments are replaced by no-ops.
func NewReporter(logger *zap.Logger, emitter Emitter, runID uuid.UUID) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if emitter == nil {
		emitter = Discard
	}
	return &Reporter{
		logger:  logger,
		emitter: emitter,
		runID:   runID,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Nop returns a Reporter that discards everything.
func Nop() *Reporter {
	return NewReporter(nil, nil, uuid.Nil)
}

// Named returns a Reporter whose zap logger carries the given name.
func (r *Reporter) Named(name string) *Reporter {
	cp := *r
	cp.logger = r.logger.Named(name)
	return &cp
}

// Logger exposes the underlying zap logger.
func (r *Reporter) Logger() *zap.Logger {
	return r.logger
}

// Info logs and emits at info level.
func (r *Reporter) Info(msg string, fields ...zap.Field) {
	r.logger.Info(msg, fields...)
	r.emit(StageLog, LevelInfo, msg, fields)
}

// Warn logs and emits at warn level.
func (r *Reporter) Warn(msg string, fields ...zap.Field) {
	r.logger.Warn(msg, fields...)
	r.emit(StageLog, LevelWarn, msg, fields)
}

// Error logs and emits at error level.
func (r *Reporter) Error(msg string, fields ...zap.Field) {
	r.logger.Error(msg, fields...)
	r.emit(StageLog, LevelError, msg, fields)
}

// Milestone logs at info level and emits a lifecycle event with the given stage.
func (r *Reporter) Milestone(stage Stage, msg string, fields ...zap.Field) {
	level := LevelInfo
	if stage == StageRunError {
		level = LevelError
		r.logger.Error(msg, fields...)
	} else {
		r.logger.Info(msg, fields...)
	}
	r.emit(stage, level, msg, fields)
}

func (r *Reporter) emit(stage Stage, level Level, msg string, fields []zap.Field) {
	r.emitter.Emit(Event{
		RunID:   r.runID,
		TS:      r.now(),
		Stage:   stage,
		Level:   level,
		Message: renderMessage(msg, fields),
	})
}

func renderMessage(msg string, fields []zap.Field) string {
	if len(fields) == 0 {
		return msg
	}
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, enc.Fields[k])
	}
	return b.String()
}
