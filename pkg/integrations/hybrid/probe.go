package hybrid

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/termsaver/indicatord/pkg/session"
)

// FailureFunc is told about every source that failed to answer
type FailureFunc func(capability, source string, err error)

// Probe asks each source in order and settles on the first answer. When all
// sources of a capability fail it reports the safe default: not idle, not
// locked, not running.
type Probe struct {
	idle     []session.IdleSource
	lock     []session.LockSource
	liveness []session.LivenessSource

	onFailure FailureFunc

	mu       sync.Mutex
	lastErr  map[string]string
	lastUsed map[string]string
	closers  []io.Closer
}

func NewProbe(idle []session.IdleSource, lock []session.LockSource, liveness []session.LivenessSource) *Probe {
	return &Probe{
		idle:     idle,
		lock:     lock,
		liveness: liveness,
		lastErr:  make(map[string]string),
		lastUsed: make(map[string]string),
	}
}

// OnFailure installs a hook called for each failed source query
func (p *Probe) OnFailure(fn FailureFunc) {
	p.onFailure = fn
}

// AddCloser registers a resource released by Close
func (p *Probe) AddCloser(c io.Closer) {
	p.closers = append(p.closers, c)
}

func (p *Probe) IdleSeconds(ctx context.Context) int {
	for _, src := range p.idle {
		idle, err := src.IdleTime(ctx)
		if err == nil {
			p.succeeded("idle", src.Name())
			return int(idle / time.Second)
		}
		p.failed("idle", src.Name(), err)
		if ctx.Err() != nil {
			break
		}
	}
	return 0
}

func (p *Probe) IsSessionLocked(ctx context.Context) bool {
	for _, src := range p.lock {
		locked, err := src.Locked(ctx)
		if err == nil {
			p.succeeded("lock", src.Name())
			return locked
		}
		p.failed("lock", src.Name(), err)
		if ctx.Err() != nil {
			break
		}
	}
	return false
}

func (p *Probe) IsScreensaverRunning(ctx context.Context) bool {
	for _, src := range p.liveness {
		running, err := src.Running(ctx)
		if err == nil {
			p.succeeded("liveness", src.Name())
			return running
		}
		p.failed("liveness", src.Name(), err)
		if ctx.Err() != nil {
			break
		}
	}
	return false
}

func (p *Probe) succeeded(capability, source string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := capability + "/" + source
	if _, ok := p.lastErr[key]; ok {
		log.Printf("probe: %s source %s recovered", capability, source)
		delete(p.lastErr, key)
	}
	p.lastUsed[capability] = source
}

// failed logs a source error once until it changes or the source recovers.
func (p *Probe) failed(capability, source string, err error) {
	if p.onFailure != nil {
		p.onFailure(capability, source, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := capability + "/" + source
	msg := err.Error()
	if p.lastErr[key] == msg {
		return
	}
	p.lastErr[key] = msg
	log.Printf("probe: %s source %s failed: %v", capability, source, err)
}

// SourceInfo describes one configured source
type SourceInfo struct {
	Capability string `json:"capability"`
	Name       string `json:"name"`
	LastError  string `json:"last_error,omitempty"`
	InUse      bool   `json:"in_use"`
}

func (p *Probe) Sources() []SourceInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	var infos []SourceInfo
	add := func(capability, name string) {
		infos = append(infos, SourceInfo{
			Capability: capability,
			Name:       name,
			LastError:  p.lastErr[capability+"/"+name],
			InUse:      p.lastUsed[capability] == name,
		})
	}

	for _, src := range p.idle {
		add("idle", src.Name())
	}
	for _, src := range p.lock {
		add("lock", src.Name())
	}
	for _, src := range p.liveness {
		add("liveness", src.Name())
	}
	return infos
}

func (p *Probe) GetStatus() string {
	status := "Session Probe Status:\n"
	for _, info := range p.Sources() {
		state := "standby"
		if info.InUse {
			state = "in use"
		}
		if info.LastError != "" {
			state = "failing: " + info.LastError
		}
		status += fmt.Sprintf("  %-8s %-18s %s\n", info.Capability, info.Name, state)
	}
	return status
}

func (p *Probe) Close() error {
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			log.Printf("Error closing probe source: %v", err)
		}
	}
	p.closers = nil
	return nil
}
