package detector

import (
	"log"
	"os"

	"github.com/termsaver/indicatord/pkg/integrations/common"
	"github.com/termsaver/indicatord/pkg/integrations/gnome"
	"github.com/termsaver/indicatord/pkg/integrations/hybrid"
	"github.com/termsaver/indicatord/pkg/integrations/logind"
	"github.com/termsaver/indicatord/pkg/integrations/process"
	"github.com/termsaver/indicatord/pkg/integrations/x11"
	"github.com/termsaver/indicatord/pkg/session"
)

// New builds the session probe for the current desktop. signature identifies
// the screensaver process on its command line.
func New(signature string) *hybrid.Probe {
	return newProbe(signature, process.NewScanner())
}

func newProbe(signature string, scanner *process.Scanner) *hybrid.Probe {
	sessionBus := common.NewSessionBus()
	systemBus := common.NewSystemBus()

	idle := []session.IdleSource{gnome.NewIdleMonitor(sessionBus)}
	var xQuery *x11.IdleQuery
	if display := os.Getenv("DISPLAY"); display != "" {
		xQuery = x11.NewIdleQuery(display)
		if DetectDisplayServer() == "x11" {
			idle = []session.IdleSource{xQuery, idle[0]}
		} else {
			idle = append(idle, xQuery)
		}
	}

	lock := []session.LockSource{
		gnome.NewScreenSaver(sessionBus),
		logind.NewLockedHint(systemBus),
	}

	// Without procfs the screensaver is always reported as not running.
	var liveness []session.LivenessSource
	if scanner.IsAvailable() {
		lock = append(lock, process.NewLockerDetector(scanner, process.DefaultLockers))
		liveness = append(liveness, process.NewCommandMatcher(scanner, signature))
	} else {
		log.Printf("detector: process table unavailable, lock and liveness checks limited")
	}

	probe := hybrid.NewProbe(idle, lock, liveness)
	probe.AddCloser(sessionBus)
	probe.AddCloser(systemBus)
	if xQuery != nil {
		probe.AddCloser(xQuery)
	}
	return probe
}

func DetectDisplayServer() string {
	sessionType := os.Getenv("XDG_SESSION_TYPE")
	waylandDisplay := os.Getenv("WAYLAND_DISPLAY")
	x11Display := os.Getenv("DISPLAY")

	if sessionType == "wayland" || waylandDisplay != "" {
		return "wayland"
	}

	if sessionType == "x11" || x11Display != "" {
		return "x11"
	}

	return "unknown"
}
