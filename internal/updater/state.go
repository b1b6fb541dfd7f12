package updater

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Kind discriminates the update State
type Kind int

const (
	Unchecked Kind = iota
	UpToDate
	Available
)

func (k Kind) String() string {
	switch k {
	case UpToDate:
		return "up_to_date"
	case Available:
		return "available"
	default:
		return "unchecked"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unchecked", "":
		*k = Unchecked
	case "up_to_date":
		*k = UpToDate
	case "available":
		*k = Available
	default:
		return fmt.Errorf("unknown update state %q", text)
	}
	return nil
}

// State is the outcome of the most recent successful check. Version is only
// set when Kind is Available.
type State struct {
	Kind    Kind   `json:"kind" yaml:"kind"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

func NewAvailable(version string) State {
	return State{Kind: Available, Version: version}
}

func (s State) IsAvailable() bool {
	return s.Kind == Available
}

func (s State) String() string {
	switch s.Kind {
	case Available:
		return fmt.Sprintf("update available: v%s", s.Version)
	case UpToDate:
		return "up to date"
	default:
		return "not checked"
	}
}

// Normalize strips surrounding space and a single leading "v".
func Normalize(version string) string {
	return strings.TrimPrefix(strings.TrimSpace(version), "v")
}

// Compare orders two dotted versions by semantic version precedence. Both
// arguments may carry a leading "v".
func Compare(a, b string) (int, error) {
	ca, err := canonical(a)
	if err != nil {
		return 0, err
	}
	cb, err := canonical(b)
	if err != nil {
		return 0, err
	}
	return semver.Compare(ca, cb), nil
}

func canonical(version string) (string, error) {
	v := "v" + Normalize(version)
	if !semver.IsValid(v) {
		return "", fmt.Errorf("invalid version %q", version)
	}
	return v, nil
}
