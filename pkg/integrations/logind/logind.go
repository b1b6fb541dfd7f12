// Package logind reads the session lock hint published by systemd-logind.
package logind

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/termsaver/indicatord/pkg/integrations/common"
)

const (
	loginDest      = "org.freedesktop.login1"
	sessionPath    = "/org/freedesktop/login1/session/auto"
	sessionIface   = "org.freedesktop.login1.Session"
	propertiesGet  = "org.freedesktop.DBus.Properties.Get"
	lockedHintProp = "LockedHint"
)

// LockedHint implements session.LockSource on the system bus
type LockedHint struct {
	bus common.Caller
}

func NewLockedHint(bus common.Caller) *LockedHint {
	return &LockedHint{bus: bus}
}

func (l *LockedHint) Name() string {
	return "logind"
}

func (l *LockedHint) Locked(ctx context.Context) (bool, error) {
	call, err := l.bus.Call(ctx, loginDest, sessionPath, propertiesGet, sessionIface, lockedHintProp)
	if err != nil {
		return false, err
	}

	var value dbus.Variant
	if err := call.Store(&value); err != nil {
		return false, fmt.Errorf("unexpected LockedHint reply: %w", err)
	}

	locked, ok := value.Value().(bool)
	if !ok {
		return false, fmt.Errorf("LockedHint has type %s, want b", value.Signature())
	}
	return locked, nil
}
