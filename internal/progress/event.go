package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the kind of milestone represented by an Event.
type Stage string

// Supported stages.
const (
	StageRunStart Stage = "RUN_START"
	StageRunDone  Stage = "RUN_DONE"
	StageRunError Stage = "RUN_ERROR"
	StageLog      Stage = "LOG"
)

// Level is the severity of an Event.
type Level string

// Supported levels.
const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event is one entry of the run's log stream.
type Event struct {
	// Seq is assigned by sinks that keep history; emitters leave it zero.
	Seq uint64 `json:"seq,omitempty"`
	// RunID identifies the run that produced the event.
	RunID uuid.UUID `json:"run_id"`
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time `json:"ts"`
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage `json:"stage"`
	// Level is the severity.
	Level Level `json:"level"`
	// Message is the human-readable text shown to operators.
	Message string `json:"message"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if e.Message == "" {
		return errors.New("message is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError, StageLog:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	switch e.Level {
	case LevelInfo, LevelWarn, LevelError:
	default:
		return fmt.Errorf("unknown level %q", e.Level)
	}
	return nil
}

// String renders the event as a "[HH:MM:SS] message" log line.
func (e Event) String() string {
	return fmt.Sprintf("[%s] %s", e.TS.Format(time.TimeOnly), e.Message)
}
