package session

import (
	"context"
	"testing"
	"time"
)

type MockSources struct {
	idle    time.Duration
	locked  bool
	running bool
	err     error
}

func (m *MockSources) Name() string {
	return "mock"
}

func (m *MockSources) IdleTime(ctx context.Context) (time.Duration, error) {
	return m.idle, m.err
}

func (m *MockSources) Locked(ctx context.Context) (bool, error) {
	return m.locked, m.err
}

func (m *MockSources) Running(ctx context.Context) (bool, error) {
	return m.running, m.err
}

func TestMockSources(t *testing.T) {
	var _ IdleSource = (*MockSources)(nil)
	var _ LockSource = (*MockSources)(nil)
	var _ LivenessSource = (*MockSources)(nil)

	mock := &MockSources{idle: 90 * time.Second, locked: true}

	idle, err := mock.IdleTime(context.Background())
	if err != nil {
		t.Errorf("IdleTime() error: %v", err)
	}
	if idle != 90*time.Second {
		t.Errorf("IdleTime() = %v, want 1m30s", idle)
	}

	locked, err := mock.Locked(context.Background())
	if err != nil {
		t.Errorf("Locked() error: %v", err)
	}
	if !locked {
		t.Error("Locked() = false, want true")
	}

	running, _ := mock.Running(context.Background())
	if running {
		t.Error("Running() = true, want false")
	}
}

func TestStateZeroValue(t *testing.T) {
	var s State
	if s.Evaluated != StageNone {
		t.Errorf("Evaluated = %v, want StageNone", s.Evaluated)
	}
	if s.Enabled || s.Locked || s.Running || s.IdleSeconds != 0 {
		t.Errorf("zero State not empty: %+v", s)
	}
}

func TestStageText(t *testing.T) {
	for _, stage := range []Stage{StageNone, StageEnabled, StageLocked, StageRunning, StageIdle} {
		text, err := stage.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v) error: %v", stage, err)
		}

		var got Stage
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q) error: %v", text, err)
		}
		if got != stage {
			t.Errorf("round trip of %v = %v", stage, got)
		}
	}

	var s Stage
	if err := s.UnmarshalText([]byte("sleeping")); err == nil {
		t.Error("UnmarshalText(sleeping) should fail")
	}
}
