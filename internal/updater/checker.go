// Package updater checks the published screensaver release against the
// installed one.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/termsaver/indicatord/internal/metrics"
)

const fallbackVersion = "0.0.0"

// ReleaseInfo is the part of the releases/latest payload we read
type ReleaseInfo struct {
	TagName string `json:"tag_name"`
}

type Options struct {
	URL         string
	UserAgent   string
	Timeout     time.Duration
	VersionFile string
}

// Checker holds the update state. Like the activation controller it is
// driven from the daemon loop only.
type Checker struct {
	opts   Options
	client *http.Client

	state       State
	lastChecked time.Time
}

func NewChecker(opts Options) *Checker {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Checker{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
	}
}

func (c *Checker) State() State {
	return c.state
}

// LastChecked is the time of the last successful check, zero if none.
func (c *Checker) LastChecked() time.Time {
	return c.lastChecked
}

// LocalVersion reads the installed version, falling back to 0.0.0 when the
// file is missing or does not hold a valid version.
func (c *Checker) LocalVersion() string {
	data, err := os.ReadFile(c.opts.VersionFile)
	if err != nil {
		return fallbackVersion
	}
	v := Normalize(string(data))
	if _, err := canonical(v); err != nil {
		return fallbackVersion
	}
	return v
}

// RemoteVersion fetches the latest published tag without its "v" prefix.
func (c *Checker) RemoteVersion(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build release request: %w", err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("latest release request returned %s", resp.Status)
	}

	var release ReleaseInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&release); err != nil {
		return "", fmt.Errorf("failed to decode release: %w", err)
	}

	remote := Normalize(release.TagName)
	if remote == "" {
		return "", fmt.Errorf("release has no tag")
	}
	if _, err := canonical(remote); err != nil {
		return "", fmt.Errorf("release tag: %w", err)
	}
	return remote, nil
}

// CheckOnce compares the installed and published versions. On any failure
// the previous state is kept and the error returned.
func (c *Checker) CheckOnce(ctx context.Context) (State, error) {
	remote, err := c.RemoteVersion(ctx)
	if err != nil {
		metrics.UpdateChecks.WithLabelValues("error").Inc()
		return c.state, err
	}

	local := c.LocalVersion()
	cmp, err := Compare(remote, local)
	if err != nil {
		metrics.UpdateChecks.WithLabelValues("error").Inc()
		return c.state, err
	}

	if cmp > 0 {
		c.state = NewAvailable(remote)
	} else {
		c.state = State{Kind: UpToDate}
	}
	c.lastChecked = time.Now()
	metrics.UpdateChecks.WithLabelValues(c.state.Kind.String()).Inc()
	return c.state, nil
}
