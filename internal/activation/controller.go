package activation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/termsaver/indicatord/internal/metrics"
	"github.com/termsaver/indicatord/internal/models"
	"github.com/termsaver/indicatord/pkg/notify"
	"github.com/termsaver/indicatord/pkg/session"
	"github.com/termsaver/indicatord/pkg/spawn"
)

var (
	ErrScreensaverMissing = errors.New("screensaver is not installed")
	ErrAlreadyRunning     = errors.New("screensaver is already running")
)

// Action is the outcome of one tick
type Action string

const (
	ActionDisabled     Action = "disabled"
	ActionLocked       Action = "locked"
	ActionRunning      Action = "running"
	ActionActive       Action = "active"
	ActionLaunched     Action = "launched"
	ActionLaunchFailed Action = "launch_failed"
)

type Result struct {
	Action  Action        `json:"action"`
	State   session.State `json:"state"`
	Timeout int           `json:"timeout"`
	Time    time.Time     `json:"time"`
	PID     int           `json:"pid,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Flag is the persisted enabled state
type Flag interface {
	Enabled() bool
	Toggle() (bool, error)
}

// TimeoutStore holds the idle timeout in seconds
type TimeoutStore interface {
	Current() int
	Save(timeout int) error
}

// EventStore records history; a nil store disables recording
type EventStore interface {
	Create(event *models.ActivationEvent) error
	CreateErrorLog(errorLog *models.ErrorLog) error
}

type Dependencies struct {
	Probe    session.Probe
	Flag     Flag
	Timeouts TimeoutStore
	Spawner  spawn.Spawner
	Notifier notify.Notifier
	Store    EventStore
}

type Options struct {
	Command      []string      // argv of the screensaver
	Script       string        // must exist for a launch to be attempted, empty skips the check
	ProbeTimeout time.Duration // bound for each session query
	Title        string        // notification title
	RunID        string
}

// Controller decides, once per tick, whether the screensaver should start.
// It is not safe for concurrent use; the daemon loop serializes all calls.
type Controller struct {
	deps Dependencies
	opts Options

	last          Result
	lastLaunchErr string
}

func NewController(deps Dependencies, opts Options) *Controller {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 2 * time.Second
	}
	return &Controller{deps: deps, opts: opts}
}

// Tick evaluates disabled, locked, running and idle in that order; the first
// condition that holds decides. Polling always continues afterwards.
func (c *Controller) Tick(ctx context.Context) Result {
	r := c.evaluate(ctx)
	metrics.Ticks.WithLabelValues(string(r.Action)).Inc()
	c.last = r
	return r
}

func (c *Controller) evaluate(ctx context.Context) Result {
	r := Result{Time: time.Now(), Timeout: c.deps.Timeouts.Current()}
	metrics.TimeoutSeconds.Set(float64(r.Timeout))

	r.State.Evaluated = session.StageEnabled
	r.State.Enabled = c.deps.Flag.Enabled()
	metrics.Enabled.Set(metrics.BoolGauge(r.State.Enabled))
	if !r.State.Enabled {
		r.Action = ActionDisabled
		return r
	}

	r.State.Evaluated = session.StageLocked
	r.State.Locked = c.locked(ctx)
	if r.State.Locked {
		r.Action = ActionLocked
		return r
	}

	r.State.Evaluated = session.StageRunning
	r.State.Running = c.running(ctx)
	if r.State.Running {
		r.Action = ActionRunning
		return r
	}

	r.State.Evaluated = session.StageIdle
	r.State.IdleSeconds = c.idle(ctx)
	metrics.IdleSeconds.Set(float64(r.State.IdleSeconds))
	if r.State.IdleSeconds < r.Timeout {
		r.Action = ActionActive
		return r
	}

	pid, err := c.launch()
	c.recordLaunch(models.KindAutoLaunch, r.State.IdleSeconds, r.Timeout, pid, err)
	if err != nil {
		r.Action = ActionLaunchFailed
		r.Error = err.Error()
		return r
	}

	log.Printf("activation: idle %ds reached timeout %ds, screensaver started (pid %d)",
		r.State.IdleSeconds, r.Timeout, pid)
	r.Action = ActionLaunched
	r.PID = pid
	return r
}

// LaunchNow starts the screensaver regardless of enabled, lock and idle
// state, unless one is already running.
func (c *Controller) LaunchNow(ctx context.Context) (int, error) {
	if c.running(ctx) {
		return 0, ErrAlreadyRunning
	}

	pid, err := c.launch()
	c.recordLaunch(models.KindManualLaunch, 0, c.deps.Timeouts.Current(), pid, err)
	if err != nil {
		return 0, err
	}

	log.Printf("activation: screensaver started on request (pid %d)", pid)
	return pid, nil
}

// ToggleEnabled flips the persisted flag and notifies once with the new state.
func (c *Controller) ToggleEnabled() (bool, error) {
	enabled, err := c.deps.Flag.Toggle()
	if err != nil {
		c.storeError(fmt.Errorf("failed to toggle screensaver: %w", err))
		return c.deps.Flag.Enabled(), err
	}

	msg := "Screensaver disabled"
	detail := "disabled"
	if enabled {
		msg = "Screensaver enabled"
		detail = "enabled"
	}

	metrics.Enabled.Set(metrics.BoolGauge(enabled))
	log.Printf("activation: %s", detail)
	notify.Fire(c.deps.Notifier, c.opts.Title, msg)
	c.record(&models.ActivationEvent{Kind: models.KindToggle, Detail: detail, Success: true})
	return enabled, nil
}

// SetTimeout persists a new idle timeout, used from the next tick on.
func (c *Controller) SetTimeout(seconds int) error {
	if err := c.deps.Timeouts.Save(seconds); err != nil {
		return err
	}

	metrics.TimeoutSeconds.Set(float64(seconds))
	log.Printf("activation: timeout set to %ds", seconds)
	notify.Fire(c.deps.Notifier, c.opts.Title, fmt.Sprintf("Timeout: %ds", seconds))
	c.record(&models.ActivationEvent{
		Kind:           models.KindTimeout,
		Detail:         fmt.Sprintf("%ds", seconds),
		Success:        true,
		TimeoutSeconds: seconds,
	})
	return nil
}

// Last returns the result of the most recent tick
func (c *Controller) Last() Result {
	return c.last
}

func (c *Controller) Enabled() bool {
	return c.deps.Flag.Enabled()
}

func (c *Controller) Timeout() int {
	return c.deps.Timeouts.Current()
}

func (c *Controller) launch() (int, error) {
	if c.opts.Script != "" {
		if _, err := os.Stat(c.opts.Script); err != nil {
			return 0, fmt.Errorf("%w: %s", ErrScreensaverMissing, c.opts.Script)
		}
	}
	return c.deps.Spawner.Spawn(c.opts.Command)
}

func (c *Controller) locked(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
	defer cancel()
	return c.deps.Probe.IsSessionLocked(ctx)
}

func (c *Controller) running(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
	defer cancel()
	return c.deps.Probe.IsScreensaverRunning(ctx)
}

func (c *Controller) idle(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
	defer cancel()
	return c.deps.Probe.IdleSeconds(ctx)
}

func (c *Controller) recordLaunch(kind string, idle, timeout, pid int, err error) {
	trigger := "auto"
	if kind == models.KindManualLaunch {
		trigger = "manual"
	}

	if err != nil {
		metrics.Launches.WithLabelValues(trigger, "error").Inc()
		// A missing screensaver fails every tick; keep one entry per distinct error.
		if err.Error() != c.lastLaunchErr {
			c.lastLaunchErr = err.Error()
			c.storeError(fmt.Errorf("%s launch failed: %w", trigger, err))
		}
		return
	}

	c.lastLaunchErr = ""
	metrics.Launches.WithLabelValues(trigger, "ok").Inc()
	c.record(&models.ActivationEvent{
		Kind:           kind,
		Detail:         fmt.Sprintf("pid %d", pid),
		Success:        true,
		IdleSeconds:    idle,
		TimeoutSeconds: timeout,
	})
}

func (c *Controller) record(event *models.ActivationEvent) {
	if c.deps.Store == nil {
		return
	}
	event.RunID = c.opts.RunID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := c.deps.Store.Create(event); err != nil {
		log.Printf("Failed to record %s event: %v", event.Kind, err)
	}
}

func (c *Controller) storeError(err error) {
	if c.deps.Store == nil {
		log.Printf("activation: %v", err)
		return
	}

	errorLog := &models.ErrorLog{
		Timestamp: time.Now(),
		RunID:     c.opts.RunID,
		ErrorMsg:  err.Error(),
	}

	if dbErr := c.deps.Store.CreateErrorLog(errorLog); dbErr != nil {
		log.Printf("Failed to store error in database: %v (original error: %v)", dbErr, err)
	} else {
		log.Printf("Error logged to database: %v", err)
	}
}
