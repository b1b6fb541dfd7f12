package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/termsaver/indicatord/internal/activation"
	"github.com/termsaver/indicatord/internal/config"
	"github.com/termsaver/indicatord/internal/database"
	"github.com/termsaver/indicatord/internal/metrics"
	"github.com/termsaver/indicatord/internal/models"
	"github.com/termsaver/indicatord/internal/prefs"
	"github.com/termsaver/indicatord/internal/updater"
	"github.com/termsaver/indicatord/pkg/detector"
	"github.com/termsaver/indicatord/pkg/integrations/common"
	"github.com/termsaver/indicatord/pkg/integrations/hybrid"
	"github.com/termsaver/indicatord/pkg/notify"
	"github.com/termsaver/indicatord/pkg/session"
	"github.com/termsaver/indicatord/pkg/spawn"
)

var (
	ErrNotRunning     = errors.New("daemon is not running")
	ErrAlreadyRunning = errors.New("another instance is already running")
	ErrNoHistory      = errors.New("history is disabled")
)

// Server is run alongside the loop once the instance lock is held. Serve
// must return after ctx is cancelled.
type Server interface {
	Serve(ctx context.Context) error
}

// Components are the collaborators the daemon drives
type Components struct {
	Probe    session.Probe
	Spawner  spawn.Spawner
	Notifier notify.Notifier
	Repo     *database.Repository // nil disables history
}

// Status is a snapshot of the daemon taken on the loop
type Status struct {
	RunID       string                  `json:"run_id" yaml:"run_id"`
	PID         int                     `json:"pid" yaml:"pid"`
	StartedAt   time.Time               `json:"started_at" yaml:"started_at"`
	Looping     bool                    `json:"looping" yaml:"looping"`
	Enabled     bool                    `json:"enabled" yaml:"enabled"`
	Timeout     int                     `json:"timeout" yaml:"timeout"`
	Update      updater.State           `json:"update" yaml:"update"`
	LastCheck   time.Time               `json:"last_check,omitempty" yaml:"last_check,omitempty"`
	LastTick    activation.Result       `json:"last_tick" yaml:"last_tick"`
	LastLaunch  *models.ActivationEvent `json:"last_launch,omitempty" yaml:"last_launch,omitempty"`
	Sources     []hybrid.SourceInfo     `json:"sources,omitempty" yaml:"sources,omitempty"`
	DisplayKind string                  `json:"display" yaml:"display"`
}

type request struct {
	ctx  context.Context
	fn   func(ctx context.Context)
	done chan struct{}
}

// Daemon owns the instance lock and the single loop on which every tick,
// update check and control request runs.
type Daemon struct {
	cfg      *config.Config
	lock     *Lock
	probe    session.Probe
	notifier notify.Notifier
	repo     *database.Repository
	ctrl     *activation.Controller
	updates  *updater.Service
	runID    string
	started  time.Time
	servers  []Server
	closers  []io.Closer

	requests chan request
	looping  atomic.Bool
	stopped  chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
	inline   sync.Mutex
}

// New wires a daemon from explicit components. Nothing is started.
func New(cfg *config.Config, c Components) *Daemon {
	d := &Daemon{
		cfg:      cfg,
		lock:     NewLock(cfg.LockFile()),
		probe:    c.Probe,
		notifier: c.Notifier,
		repo:     c.Repo,
		runID:    uuid.New().String(),
		started:  time.Now(),
		requests: make(chan request),
		stopped:  make(chan struct{}),
		quit:     make(chan struct{}),
	}

	var store activation.EventStore
	var updateStore updater.EventStore
	if c.Repo != nil {
		store = c.Repo
		updateStore = c.Repo
	}

	d.ctrl = activation.NewController(activation.Dependencies{
		Probe:    c.Probe,
		Flag:     prefs.NewFlag(cfg.DisabledMarker()),
		Timeouts: prefs.NewStore(cfg.TimeoutFile()),
		Spawner:  c.Spawner,
		Notifier: c.Notifier,
		Store:    store,
	}, activation.Options{
		Command:      cfg.ScreensaverCommand(),
		Script:       cfg.ScreensaverScript(),
		ProbeTimeout: cfg.Monitor.ProbeTimeout,
		Title:        config.AppName,
		RunID:        d.runID,
	})

	checker := updater.NewChecker(updater.Options{
		URL:         cfg.Update.URL,
		UserAgent:   cfg.Update.UserAgent,
		Timeout:     cfg.Update.Timeout,
		VersionFile: cfg.VersionFile(),
	})
	d.updates = updater.NewService(checker, c.Spawner, c.Notifier, updateStore,
		config.AppName, cfg.Update.Command, d.runID)

	return d
}

// Open wires a daemon against the real desktop session.
func Open(cfg *config.Config) (*Daemon, error) {
	var (
		db   *database.DB
		repo *database.Repository
	)
	if cfg.History.Enabled {
		var err error
		db, err = database.Connect(cfg.HistoryPath())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Initialize(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		repo = database.NewRepository(db)
	}

	probe := detector.New(cfg.Launch.Script)
	probe.OnFailure(func(capability, source string, err error) {
		metrics.ProbeFailures.WithLabelValues(capability, source).Inc()
	})

	notifyBus := common.NewSessionBus()
	notifier := notify.Chain{
		notify.NewDBusNotifier(notifyBus, config.AppName),
		notify.NewCommandNotifier(),
	}

	d := New(cfg, Components{
		Probe:    probe,
		Spawner:  spawn.NewDetached(),
		Notifier: notifier,
		Repo:     repo,
	})
	d.closers = append(d.closers, probe, notifyBus)
	if db != nil {
		d.closers = append(d.closers, db)
	}

	log.Printf("Session probe initialized for %s display", detector.DetectDisplayServer())
	return d, nil
}

// AddServer registers s to run for the lifetime of the loop
func (d *Daemon) AddServer(s Server) {
	d.servers = append(d.servers, s)
}

func (d *Daemon) RunID() string {
	return d.runID
}

func (d *Daemon) Lock() *Lock {
	return d.lock
}

// Run takes the instance lock and drives the loop until ctx is cancelled or
// Quit is called. A second instance gets ErrAlreadyRunning.
func (d *Daemon) Run(ctx context.Context) error {
	ok, err := d.lock.Acquire()
	if err != nil {
		return fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	if !ok {
		notify.Fire(d.notifier, config.AppName, "Already running")
		return ErrAlreadyRunning
	}
	defer func() {
		if err := d.lock.Release(); err != nil {
			log.Printf("Error releasing instance lock: %v", err)
		}
	}()

	poll := time.NewTicker(d.cfg.Monitor.PollInterval)
	defer poll.Stop()
	startup := time.NewTimer(d.cfg.Update.StartupDelay)
	defer startup.Stop()
	daily := time.NewTicker(d.cfg.Update.Interval)
	defer daily.Stop()

	// Requests go through the loop from here on. Taking inline waits out a
	// call that started before the loop did.
	d.inline.Lock()
	d.looping.Store(true)
	d.inline.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		d.inline.Lock()
		d.looping.Store(false)
		d.inline.Unlock()
		close(d.stopped)
		cancel()
		wg.Wait()
	}()

	for _, s := range d.servers {
		wg.Add(1)
		go func(s Server) {
			defer wg.Done()
			if err := s.Serve(ctx); err != nil {
				log.Printf("Control server error: %v", err)
				d.Quit()
			}
		}(s)
	}

	log.Printf("Daemon started (run %s, pid %d, poll %v)", d.runID, os.Getpid(), d.cfg.Monitor.PollInterval)
	notify.Fire(d.notifier, config.AppName, "Started")
	d.pruneHistory()

	for {
		select {
		case <-ctx.Done():
			log.Println("Daemon stopped by context")
			return nil

		case <-d.quit:
			log.Println("Daemon stopped on request")
			return nil

		case <-poll.C:
			d.ctrl.Tick(ctx)

		case <-startup.C:
			d.updates.AutoCheck(ctx)

		case <-daily.C:
			d.updates.AutoCheck(ctx)
			d.pruneHistory()

		case req := <-d.requests:
			req.fn(req.ctx)
			close(req.done)
		}
	}
}

// do runs fn on the loop and waits for it. Without a running loop fn runs
// on the caller, still one at a time. Once the loop has taken the request
// do waits for fn to return, so fn may write the caller's variables.
func (d *Daemon) do(ctx context.Context, fn func(ctx context.Context)) error {
	d.inline.Lock()
	if !d.looping.Load() {
		defer d.inline.Unlock()
		fn(ctx)
		return nil
	}
	d.inline.Unlock()

	req := request{ctx: ctx, fn: fn, done: make(chan struct{})}
	select {
	case d.requests <- req:
	case <-d.stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	<-req.done
	return nil
}

func (d *Daemon) Status(ctx context.Context) (Status, error) {
	var st Status
	if err := d.do(ctx, func(context.Context) { st = d.snapshot() }); err != nil {
		return Status{}, err
	}
	return st, nil
}

func (d *Daemon) snapshot() Status {
	st := Status{
		RunID:       d.runID,
		PID:         os.Getpid(),
		StartedAt:   d.started,
		Looping:     d.looping.Load(),
		Enabled:     d.ctrl.Enabled(),
		Timeout:     d.ctrl.Timeout(),
		Update:      d.updates.State(),
		LastCheck:   d.updates.Checker().LastChecked(),
		LastTick:    d.ctrl.Last(),
		DisplayKind: detector.DetectDisplayServer(),
	}
	if p, ok := d.probe.(interface{ Sources() []hybrid.SourceInfo }); ok {
		st.Sources = p.Sources()
	}
	if d.repo != nil {
		last, err := d.repo.GetLatest(models.KindAutoLaunch, models.KindManualLaunch)
		if err != nil {
			log.Printf("Error reading last launch: %v", err)
		}
		st.LastLaunch = last
	}
	return st
}

// Toggle flips automatic activation and returns the new state
func (d *Daemon) Toggle(ctx context.Context) (bool, error) {
	var (
		enabled bool
		err     error
	)
	if doErr := d.do(ctx, func(context.Context) { enabled, err = d.ctrl.ToggleEnabled() }); doErr != nil {
		return false, doErr
	}
	return enabled, err
}

// Launch starts the screensaver now unless one is already running
func (d *Daemon) Launch(ctx context.Context) (int, error) {
	var (
		pid int
		err error
	)
	if doErr := d.do(ctx, func(ctx context.Context) { pid, err = d.ctrl.LaunchNow(ctx) }); doErr != nil {
		return 0, doErr
	}
	return pid, err
}

func (d *Daemon) SetTimeout(ctx context.Context, seconds int) error {
	var err error
	if doErr := d.do(ctx, func(context.Context) { err = d.ctrl.SetTimeout(seconds) }); doErr != nil {
		return doErr
	}
	return err
}

// CheckUpdates runs a user requested update check
func (d *Daemon) CheckUpdates(ctx context.Context) (updater.State, error) {
	var (
		state updater.State
		err   error
	)
	if doErr := d.do(ctx, func(ctx context.Context) { state, err = d.updates.CheckNow(ctx) }); doErr != nil {
		return updater.State{}, doErr
	}
	return state, err
}

func (d *Daemon) RunUpdate(ctx context.Context) (int, error) {
	var (
		pid int
		err error
	)
	if doErr := d.do(ctx, func(context.Context) { pid, err = d.updates.RunUpdate() }); doErr != nil {
		return 0, doErr
	}
	return pid, err
}

// Quit stops the loop; Run then releases the lock and returns.
func (d *Daemon) Quit() {
	d.quitOnce.Do(func() { close(d.quit) })
}

// History reads recent events straight from the database, which is safe
// off the loop.
func (d *Daemon) History(limit int) ([]*models.ActivationEvent, error) {
	if d.repo == nil {
		return nil, ErrNoHistory
	}
	return d.repo.GetRecent(limit)
}

// Summary counts events per kind since the given time
func (d *Daemon) Summary(since time.Time) (*models.History, error) {
	if d.repo == nil {
		return nil, ErrNoHistory
	}

	summaries, err := d.repo.GetKindSummarySince(since)
	if err != nil {
		return nil, err
	}
	events, err := d.repo.GetEventsSince(since)
	if err != nil {
		return nil, err
	}

	return &models.History{
		Since:       since,
		Summaries:   summaries,
		Events:      events,
		GeneratedAt: time.Now(),
	}, nil
}

// Errors returns the newest stored daemon errors
func (d *Daemon) Errors(limit int) ([]*models.ErrorLog, error) {
	if d.repo == nil {
		return nil, ErrNoHistory
	}
	return d.repo.GetRecentErrors(limit)
}

// ClearHistory deletes every stored event and error
func (d *Daemon) ClearHistory() error {
	if d.repo == nil {
		return ErrNoHistory
	}
	if err := d.repo.Clear(); err != nil {
		return err
	}
	log.Println("History cleared")
	return nil
}

// pruneHistory drops events older than the configured retention
func (d *Daemon) pruneHistory() {
	if d.repo == nil || d.cfg.History.Retention <= 0 {
		return
	}
	deleted, err := d.repo.DeleteOldEvents(time.Now().Add(-d.cfg.History.Retention))
	if err != nil {
		log.Printf("Error pruning history: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("Pruned %d events older than %v", deleted, d.cfg.History.Retention)
	}
}

// Close releases probe connections and the database
func (d *Daemon) Close() error {
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			log.Printf("Error closing daemon resource: %v", err)
		}
	}
	d.closers = nil
	return nil
}
