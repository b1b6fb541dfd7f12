package notify

import (
	"fmt"
	"io"
	"os"
)

// WriterNotifier prints notifications, used when no desktop is reachable
type WriterNotifier struct {
	w io.Writer
}

func NewStdoutNotifier() *WriterNotifier {
	return &WriterNotifier{w: os.Stdout}
}

func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

func (n *WriterNotifier) Send(notification Notification) error {
	_, err := fmt.Fprintf(n.w, "[%s] %s\n", notification.Title, notification.Message)
	return err
}
