package gnome

import (
	"context"
	"fmt"
	"time"

	"github.com/termsaver/indicatord/pkg/integrations/common"
)

const (
	idleMonitorDest   = "org.gnome.Mutter.IdleMonitor"
	idleMonitorPath   = "/org/gnome/Mutter/IdleMonitor/Core"
	idleMonitorMethod = "org.gnome.Mutter.IdleMonitor.GetIdletime"

	screenSaverDest   = "org.gnome.ScreenSaver"
	screenSaverPath   = "/org/gnome/ScreenSaver"
	screenSaverMethod = "org.gnome.ScreenSaver.GetActive"
)

// IdleMonitor reads the idle time from Mutter's IdleMonitor service
type IdleMonitor struct {
	bus common.Caller
}

func NewIdleMonitor(bus common.Caller) *IdleMonitor {
	return &IdleMonitor{bus: bus}
}

func (m *IdleMonitor) Name() string {
	return "mutter"
}

func (m *IdleMonitor) IdleTime(ctx context.Context) (time.Duration, error) {
	call, err := m.bus.Call(ctx, idleMonitorDest, idleMonitorPath, idleMonitorMethod)
	if err != nil {
		return 0, err
	}

	var idleMs uint64
	if err := call.Store(&idleMs); err != nil {
		return 0, fmt.Errorf("unexpected GetIdletime reply: %w", err)
	}

	return time.Duration(idleMs) * time.Millisecond, nil
}

// ScreenSaver asks GNOME's shell whether the lock screen is up
type ScreenSaver struct {
	bus common.Caller
}

func NewScreenSaver(bus common.Caller) *ScreenSaver {
	return &ScreenSaver{bus: bus}
}

func (s *ScreenSaver) Name() string {
	return "gnome-screensaver"
}

func (s *ScreenSaver) Locked(ctx context.Context) (bool, error) {
	call, err := s.bus.Call(ctx, screenSaverDest, screenSaverPath, screenSaverMethod)
	if err != nil {
		return false, err
	}

	var active bool
	if err := call.Store(&active); err != nil {
		return false, fmt.Errorf("unexpected GetActive reply: %w", err)
	}

	return active, nil
}
