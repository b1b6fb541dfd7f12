package prefs

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Flag is the persisted enabled state. The marker file existing means
// activation is disabled.
type Flag struct {
	marker string
}

func NewFlag(marker string) *Flag {
	return &Flag{marker: marker}
}

func (f *Flag) Enabled() bool {
	_, err := os.Stat(f.marker)
	return err != nil
}

func (f *Flag) Disable() error {
	if err := os.MkdirAll(filepath.Dir(f.marker), 0755); err != nil {
		return errors.Wrap(err, "failed to create state directory")
	}
	file, err := os.OpenFile(f.marker, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "failed to create disabled marker")
	}
	return file.Close()
}

func (f *Flag) Enable() error {
	if err := os.Remove(f.marker); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove disabled marker")
	}
	return nil
}

// Toggle flips the state and returns the new one.
func (f *Flag) Toggle() (bool, error) {
	if f.Enabled() {
		return false, f.Disable()
	}
	return true, f.Enable()
}
