// Package notify delivers desktop notifications.
package notify

import (
	"fmt"
	"log"
	"strings"
)

// Notification represents a notification to be sent
type Notification struct {
	Title   string
	Message string
}

// Notifier sends notifications
type Notifier interface {
	Send(notification Notification) error
}

// Chain tries each notifier in order until one succeeds
type Chain []Notifier

func (c Chain) Send(notification Notification) error {
	var errs []string
	for _, n := range c {
		err := n.Send(notification)
		if err == nil {
			return nil
		}
		errs = append(errs, err.Error())
	}
	if len(errs) == 0 {
		return fmt.Errorf("no notifier configured")
	}
	return fmt.Errorf("all notifiers failed: %s", strings.Join(errs, "; "))
}

// Fire sends and only logs failures
func Fire(n Notifier, title, message string) {
	if n == nil {
		return
	}
	if err := n.Send(Notification{Title: title, Message: message}); err != nil {
		log.Printf("notify: %q not delivered: %v", message, err)
	}
}
