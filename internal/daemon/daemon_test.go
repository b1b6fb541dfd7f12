package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/termsaver/indicatord/internal/activation"
	"github.com/termsaver/indicatord/internal/config"
	"github.com/termsaver/indicatord/internal/database"
	"github.com/termsaver/indicatord/internal/models"
	"github.com/termsaver/indicatord/internal/updater"
	"github.com/termsaver/indicatord/pkg/notify"
)

type stubProbe struct {
	mu      sync.Mutex
	idle    int
	locked  bool
	running bool
}

func (s *stubProbe) set(idle int, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idle = idle
	s.running = running
}

func (s *stubProbe) IdleSeconds(context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle
}

func (s *stubProbe) IsSessionLocked(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

func (s *stubProbe) IsScreensaverRunning(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

type stubSpawner struct {
	mu    sync.Mutex
	calls [][]string
}

func (s *stubSpawner) Spawn(argv []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, argv)
	return 1000 + len(s.calls), nil
}

func (s *stubSpawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubSpawner) first() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[0]
}

type stubNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (s *stubNotifier) Send(n notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, n.Message)
	return nil
}

func (s *stubNotifier) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

type fakeServer struct {
	started chan struct{}
	stopped chan struct{}
}

func (f *fakeServer) Serve(ctx context.Context) error {
	close(f.started)
	<-ctx.Done()
	close(f.stopped)
	return nil
}

type harness struct {
	cfg      *config.Config
	probe    *stubProbe
	spawner  *stubSpawner
	notifier *stubNotifier
	repo     *database.Repository
	daemon   *Daemon
}

func newHarness(t *testing.T, releaseTag string) *harness {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ScreensaverDir = filepath.Join(root, "share")
	cfg.Paths.ConfigDir = filepath.Join(root, "config")
	cfg.Paths.StateDir = filepath.Join(root, "state")
	cfg.Monitor.PollInterval = 20 * time.Millisecond
	cfg.Monitor.ProbeTimeout = 10 * time.Millisecond
	cfg.Update.StartupDelay = time.Hour
	cfg.Update.Interval = time.Hour

	require.NoError(t, os.MkdirAll(cfg.Paths.ScreensaverDir, 0755))
	require.NoError(t, os.WriteFile(cfg.ScreensaverScript(), []byte("# screensaver"), 0644))
	require.NoError(t, os.WriteFile(cfg.VersionFile(), []byte("1.2.0\n"), 0644))

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name":"` + releaseTag + `"}`))
	}))
	t.Cleanup(ts.Close)
	cfg.Update.URL = ts.URL

	db, err := database.Connect(filepath.Join(root, "history.db"))
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })

	h := &harness{
		cfg:      cfg,
		probe:    &stubProbe{},
		spawner:  &stubSpawner{},
		notifier: &stubNotifier{},
		repo:     database.NewRepository(db),
	}
	h.daemon = New(cfg, Components{
		Probe:    h.probe,
		Spawner:  h.spawner,
		Notifier: h.notifier,
		Repo:     h.repo,
	})
	return h
}

// start runs the loop and waits until control requests are served by it
func (h *harness) start(t *testing.T) <-chan error {
	t.Helper()

	errCh := make(chan error, 1)
	go func() { errCh <- h.daemon.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		st, err := h.daemon.Status(context.Background())
		return err == nil && st.Looping
	}, 2*time.Second, 10*time.Millisecond)

	t.Cleanup(func() {
		h.daemon.Quit()
		select {
		case <-h.daemon.stopped:
		case <-time.After(2 * time.Second):
		}
	})
	return errCh
}

func TestRunNotifiesStartedAndHoldsLock(t *testing.T) {
	h := newHarness(t, "v1.2.0")
	h.start(t)

	assert.Contains(t, h.notifier.all(), "Started")

	running, pid, err := NewLock(h.cfg.LockFile()).IsRunning()
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)
}

func TestSecondInstanceRefuses(t *testing.T) {
	h := newHarness(t, "v1.2.0")
	h.start(t)

	second := New(h.cfg, Components{Probe: &stubProbe{}, Spawner: &stubSpawner{}, Notifier: h.notifier})
	err := second.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Contains(t, h.notifier.all(), "Already running")
}

func TestQuitReleasesLockAndStopsServers(t *testing.T) {
	h := newHarness(t, "v1.2.0")
	srv := &fakeServer{started: make(chan struct{}), stopped: make(chan struct{})}
	h.daemon.AddServer(srv)

	errCh := h.start(t)
	<-srv.started

	h.daemon.Quit()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop")
	}

	<-srv.stopped
	_, err := os.Stat(h.cfg.LockFile())
	assert.True(t, os.IsNotExist(err))

	running, _, err := NewLock(h.cfg.LockFile()).IsRunning()
	require.NoError(t, err)
	assert.False(t, running)
}

func TestContextCancelStopsLoop(t *testing.T) {
	h := newHarness(t, "v1.2.0")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.daemon.Run(ctx) }()

	require.Eventually(t, func() bool {
		running, _, _ := NewLock(h.cfg.LockFile()).IsRunning()
		return running
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop")
	}

	_, err := h.daemon.Status(context.Background())
	assert.NoError(t, err)
}

func TestLoopLaunchesWhenIdle(t *testing.T) {
	h := newHarness(t, "v1.2.0")
	h.start(t)

	h.probe.set(500, false)
	require.Eventually(t, func() bool { return h.spawner.count() > 0 }, 2*time.Second, 10*time.Millisecond)

	// Once the screensaver shows up the loop stops launching.
	h.probe.set(500, true)
	require.Eventually(t, func() bool {
		st, err := h.daemon.Status(context.Background())
		return err == nil && st.LastTick.Action == activation.ActionRunning
	}, 2*time.Second, 10*time.Millisecond)

	count := h.spawner.count()
	time.Sleep(5 * h.cfg.Monitor.PollInterval)
	assert.Equal(t, count, h.spawner.count())
	assert.Equal(t, []string{"python3", h.cfg.ScreensaverScript()}, h.spawner.first())
}

func TestControlOperationsOnLoop(t *testing.T) {
	h := newHarness(t, "v1.3.0")
	h.start(t)
	ctx := context.Background()

	enabled, err := h.daemon.Toggle(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
	_, err = os.Stat(h.cfg.DisabledMarker())
	assert.NoError(t, err)

	require.NoError(t, h.daemon.SetTimeout(ctx, 300))
	data, err := os.ReadFile(h.cfg.TimeoutFile())
	require.NoError(t, err)
	assert.Equal(t, "TERMINAL_SCREENSAVER_IDLE_TIMEOUT=300\n", string(data))

	pid, err := h.daemon.Launch(ctx)
	require.NoError(t, err)
	assert.Positive(t, pid)

	state, err := h.daemon.CheckUpdates(ctx)
	require.NoError(t, err)
	assert.Equal(t, updater.NewAvailable("1.3.0"), state)

	_, err = h.daemon.RunUpdate(ctx)
	require.NoError(t, err)

	st, err := h.daemon.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Enabled)
	assert.Equal(t, 300, st.Timeout)
	assert.Equal(t, updater.Available, st.Update.Kind)
	assert.Equal(t, h.daemon.RunID(), st.RunID)
	require.NotNil(t, st.LastLaunch)
	assert.Equal(t, models.KindManualLaunch, st.LastLaunch.Kind)

	messages := h.notifier.all()
	assert.Contains(t, messages, "Screensaver disabled")
	assert.Contains(t, messages, "Timeout: 300s")
	assert.Contains(t, messages, "Checking for updates...")
	assert.Contains(t, messages, "Update available: v1.3.0")
	assert.NotContains(t, messages, "Already up to date")

	events, err := h.daemon.History(10)
	require.NoError(t, err)
	kinds := make(map[string]int)
	for _, e := range events {
		kinds[e.Kind]++
		assert.Equal(t, h.daemon.RunID(), e.RunID)
	}
	assert.Equal(t, 1, kinds[models.KindToggle])
	assert.Equal(t, 1, kinds[models.KindTimeout])
	assert.Equal(t, 1, kinds[models.KindManualLaunch])
	assert.Equal(t, 2, kinds[models.KindUpdate])

	summary, err := h.daemon.Summary(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, summary.Events, len(events))
}

func TestLaunchRefusedWhileRunning(t *testing.T) {
	h := newHarness(t, "v1.2.0")
	h.probe.set(0, true)
	h.start(t)

	_, err := h.daemon.Launch(context.Background())
	assert.ErrorIs(t, err, activation.ErrAlreadyRunning)
}

func TestOperationsRunInlineWithoutLoop(t *testing.T) {
	h := newHarness(t, "v1.2.0")
	ctx := context.Background()

	enabled, err := h.daemon.Toggle(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	state, err := h.daemon.CheckUpdates(ctx)
	require.NoError(t, err)
	assert.Equal(t, updater.UpToDate, state.Kind)
	assert.Contains(t, h.notifier.all(), "Already up to date")

	st, err := h.daemon.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Looping)
	assert.Equal(t, 120, st.Timeout)
}

func TestHistoryDisabled(t *testing.T) {
	h := newHarness(t, "v1.2.0")
	d := New(h.cfg, Components{Probe: h.probe, Spawner: h.spawner, Notifier: h.notifier})

	_, err := d.History(5)
	assert.ErrorIs(t, err, ErrNoHistory)
	_, err = d.Summary(time.Now())
	assert.ErrorIs(t, err, ErrNoHistory)

	_, err = d.Toggle(context.Background())
	assert.NoError(t, err)
}

func TestScheduledUpdateCheck(t *testing.T) {
	tests := []struct {
		name     string
		startup  time.Duration
		interval time.Duration
	}{
		{name: "startup delay", startup: 30 * time.Millisecond, interval: time.Hour},
		{name: "daily interval", startup: time.Hour, interval: 40 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "v1.3.0")
			h.cfg.Update.StartupDelay = tt.startup
			h.cfg.Update.Interval = tt.interval
			h.start(t)

			require.Eventually(t, func() bool {
				st, err := h.daemon.Status(context.Background())
				return err == nil && st.Update.Kind == updater.Available
			}, 2*time.Second, 10*time.Millisecond)

			st, err := h.daemon.Status(context.Background())
			require.NoError(t, err)
			assert.Equal(t, updater.NewAvailable("1.3.0"), st.Update)
			assert.False(t, st.LastCheck.IsZero())

			messages := h.notifier.all()
			assert.Contains(t, messages, "Update available: v1.3.0")
			assert.NotContains(t, messages, "Checking for updates...")
		})
	}
}

func TestScheduledCheckStaysQuietWhenUpToDate(t *testing.T) {
	h := newHarness(t, "v1.2.0")
	h.cfg.Update.StartupDelay = 10 * time.Millisecond
	h.start(t)

	require.Eventually(t, func() bool {
		st, err := h.daemon.Status(context.Background())
		return err == nil && st.Update.Kind == updater.UpToDate
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"Started"}, h.notifier.all())
}

func TestStartPrunesExpiredHistory(t *testing.T) {
	h := newHarness(t, "v1.2.0")
	h.cfg.History.Retention = 24 * time.Hour

	require.NoError(t, h.repo.Create(&models.ActivationEvent{
		Timestamp: time.Now().Add(-48 * time.Hour),
		RunID:     "old-run",
		Kind:      models.KindToggle,
		Detail:    "disabled",
		Success:   true,
	}))
	require.NoError(t, h.repo.Create(&models.ActivationEvent{
		Timestamp: time.Now().Add(-time.Hour),
		RunID:     "old-run",
		Kind:      models.KindTimeout,
		Detail:    "300",
		Success:   true,
	}))

	h.start(t)

	events, err := h.daemon.History(10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.KindTimeout, events[0].Kind)
}

func TestErrorsAndClearHistory(t *testing.T) {
	h := newHarness(t, "v1.2.0")
	require.NoError(t, h.repo.CreateErrorLog(&models.ErrorLog{
		Timestamp: time.Now(),
		RunID:     h.daemon.RunID(),
		ErrorMsg:  "python3 not found",
	}))

	logs, err := h.daemon.Errors(10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "python3 not found", logs[0].ErrorMsg)

	_, err = h.daemon.Toggle(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.daemon.ClearHistory())

	logs, err = h.daemon.Errors(10)
	require.NoError(t, err)
	assert.Empty(t, logs)
	events, err := h.daemon.History(10)
	require.NoError(t, err)
	assert.Empty(t, events)

	st, err := h.daemon.Status(context.Background())
	require.NoError(t, err)
	assert.Nil(t, st.LastLaunch)
}

func TestRequestOutlivesCallerContext(t *testing.T) {
	h := newHarness(t, "v1.2.0")
	h.start(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var finished bool
	err := h.daemon.do(ctx, func(context.Context) {
		cancel()
		time.Sleep(50 * time.Millisecond)
		finished = true
	})
	require.NoError(t, err)
	assert.True(t, finished)
}

func TestLoopWaitsForInlineRequest(t *testing.T) {
	h := newHarness(t, "v1.2.0")
	srv := &fakeServer{started: make(chan struct{}), stopped: make(chan struct{})}
	h.daemon.AddServer(srv)

	entered := make(chan struct{})
	release := make(chan struct{})
	inlineErr := make(chan error, 1)
	go func() {
		inlineErr <- h.daemon.do(context.Background(), func(context.Context) {
			close(entered)
			<-release
		})
	}()
	<-entered

	errCh := make(chan error, 1)
	go func() { errCh <- h.daemon.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		running, _, _ := NewLock(h.cfg.LockFile()).IsRunning()
		return running
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case <-srv.started:
		t.Fatal("server started while an inline request was running")
	case <-time.After(100 * time.Millisecond):
	}
	assert.False(t, h.daemon.looping.Load())

	close(release)
	require.NoError(t, <-inlineErr)

	select {
	case <-srv.started:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}
	assert.True(t, h.daemon.looping.Load())

	h.daemon.Quit()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop")
	}
}
