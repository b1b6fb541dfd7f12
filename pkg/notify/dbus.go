package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/termsaver/indicatord/pkg/integrations/common"
)

const (
	notificationsDest   = "org.freedesktop.Notifications"
	notificationsPath   = "/org/freedesktop/Notifications"
	notificationsMethod = "org.freedesktop.Notifications.Notify"
)

// DBusNotifier talks to the desktop notification daemon directly
type DBusNotifier struct {
	bus     common.Caller
	appName string
	icon    string
	timeout time.Duration
}

func NewDBusNotifier(bus common.Caller, appName string) *DBusNotifier {
	return &DBusNotifier{
		bus:     bus,
		appName: appName,
		icon:    "preferences-desktop-screensaver",
		timeout: 2 * time.Second,
	}
}

func (n *DBusNotifier) Send(notification Notification) error {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	call, err := n.bus.Call(ctx, notificationsDest, notificationsPath, notificationsMethod,
		n.appName,
		uint32(0),
		n.icon,
		notification.Title,
		notification.Message,
		[]string{},
		map[string]dbus.Variant{},
		int32(-1),
	)
	if err != nil {
		return err
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("unexpected Notify reply: %w", err)
	}
	return nil
}
