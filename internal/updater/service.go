package updater

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/termsaver/indicatord/internal/models"
	"github.com/termsaver/indicatord/pkg/notify"
	"github.com/termsaver/indicatord/pkg/spawn"
)

// EventStore records update activity; nil disables recording
type EventStore interface {
	Create(event *models.ActivationEvent) error
}

// Service wraps a Checker with the notifications and the update action.
type Service struct {
	checker  *Checker
	spawner  spawn.Spawner
	notifier notify.Notifier
	store    EventStore
	title    string
	command  []string
	runID    string
}

func NewService(checker *Checker, spawner spawn.Spawner, notifier notify.Notifier, store EventStore, title string, command []string, runID string) *Service {
	return &Service{
		checker:  checker,
		spawner:  spawner,
		notifier: notifier,
		store:    store,
		title:    title,
		command:  command,
		runID:    runID,
	}
}

func (s *Service) Checker() *Checker {
	return s.checker
}

func (s *Service) State() State {
	return s.checker.State()
}

// AutoCheck runs a scheduled check. Only a newer release is announced.
func (s *Service) AutoCheck(ctx context.Context) State {
	state, err := s.check(ctx)
	if err != nil {
		log.Printf("updater: check failed: %v", err)
	}
	return state
}

// CheckNow runs a user requested check and always tells the user the outcome.
func (s *Service) CheckNow(ctx context.Context) (State, error) {
	notify.Fire(s.notifier, s.title, "Checking for updates...")

	state, err := s.check(ctx)
	if err != nil {
		log.Printf("updater: check failed: %v", err)
	}
	if !state.IsAvailable() {
		notify.Fire(s.notifier, s.title, "Already up to date")
	}
	return state, err
}

// RunUpdate starts the updater command detached, usually inside a terminal.
func (s *Service) RunUpdate() (int, error) {
	pid, err := s.spawner.Spawn(s.command)
	if err != nil {
		s.record("run failed: "+err.Error(), false)
		return 0, fmt.Errorf("failed to start updater: %w", err)
	}

	log.Printf("updater: update started (pid %d)", pid)
	s.record(fmt.Sprintf("run pid %d", pid), true)
	return pid, nil
}

func (s *Service) check(ctx context.Context) (State, error) {
	state, err := s.checker.CheckOnce(ctx)
	if err != nil {
		return state, err
	}

	log.Printf("updater: local %s, %s", s.checker.LocalVersion(), state)
	if state.IsAvailable() {
		notify.Fire(s.notifier, s.title, fmt.Sprintf("Update available: v%s", state.Version))
	}
	s.record("check "+state.Kind.String(), true)
	return state, nil
}

func (s *Service) record(detail string, success bool) {
	if s.store == nil {
		return
	}
	event := &models.ActivationEvent{
		Timestamp: time.Now(),
		RunID:     s.runID,
		Kind:      models.KindUpdate,
		Detail:    detail,
		Success:   success,
	}
	if err := s.store.Create(event); err != nil {
		log.Printf("Failed to record update event: %v", err)
	}
}
