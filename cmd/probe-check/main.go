package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/termsaver/indicatord/internal/config"
	"github.com/termsaver/indicatord/pkg/detector"
)

func main() {
	duration := flag.Duration("for", 30*time.Second, "how long to sample")
	interval := flag.Duration("every", 2*time.Second, "sampling interval")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Session probe check")
	fmt.Println("===================")

	probe := detector.New(cfg.Launch.Script)
	defer probe.Close()

	fmt.Printf("\nDisplay Server: %s\n", detector.DetectDisplayServer())
	fmt.Printf("Screensaver: %s\n\n", cfg.Launch.Script)

	fmt.Printf("Sampling idle, lock and screensaver state for %v\n", *duration)
	fmt.Println("Leave the keyboard alone or lock the screen to see the values change")
	fmt.Println()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	timeout := time.After(*duration)
	count := 0

	for {
		select {
		case <-timeout:
			fmt.Println()
			fmt.Print(probe.GetStatus())
			return

		case <-ticker.C:
			count++
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Monitor.ProbeTimeout)
			idle := probe.IdleSeconds(ctx)
			locked := probe.IsSessionLocked(ctx)
			running := probe.IsScreensaverRunning(ctx)
			cancel()

			fmt.Printf("[%d] Idle: %5ds | Locked: %-5v | Screensaver: %v\n", count, idle, locked, running)
		}
	}
}
