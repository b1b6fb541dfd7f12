package session

import (
	"context"
	"fmt"
	"time"
)

// Stage records how far a tick evaluated the session before deciding.
type Stage int

const (
	StageNone Stage = iota
	StageEnabled
	StageLocked
	StageRunning
	StageIdle
)

func (s Stage) String() string {
	switch s {
	case StageEnabled:
		return "enabled"
	case StageLocked:
		return "locked"
	case StageRunning:
		return "running"
	case StageIdle:
		return "idle"
	default:
		return "none"
	}
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	for _, stage := range []Stage{StageNone, StageEnabled, StageLocked, StageRunning, StageIdle} {
		if stage.String() == string(text) {
			*s = stage
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", text)
}

// State is the per-tick snapshot of the session. Fields past Evaluated were
// not queried and hold their zero value.
type State struct {
	Enabled     bool  `json:"enabled"`
	Locked      bool  `json:"locked"`
	Running     bool  `json:"running"`
	IdleSeconds int   `json:"idle_seconds"`
	Evaluated   Stage `json:"evaluated"`
}

// IdleSource reports the time since the last user input
type IdleSource interface {
	// Name identifies the source in logs and metrics
	Name() string

	// IdleTime returns the time since last input, bounded by ctx
	IdleTime(ctx context.Context) (time.Duration, error)
}

// LockSource reports whether the session lock screen is active
type LockSource interface {
	Name() string
	Locked(ctx context.Context) (bool, error)
}

// LivenessSource reports whether a screensaver process is alive
type LivenessSource interface {
	Name() string
	Running(ctx context.Context) (bool, error)
}

// Probe is the failure-free view of the session used by the activation loop.
// Implementations substitute 0, false and false when the underlying sources fail.
type Probe interface {
	IdleSeconds(ctx context.Context) int
	IsSessionLocked(ctx context.Context) bool
	IsScreensaverRunning(ctx context.Context) bool
}
