package backup

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ParseInterval maps a backup.interval config value to a duration. "off" and
// anything unknown map to zero.
func ParseInterval(s string) time.Duration {
	switch s {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "10m":
		return 10 * time.Minute
	case "30m":
		return 30 * time.Minute
	default:
		return 0
	}
}

// Scheduler zips a directory into auto backups on a fixed interval and
// prunes old ones after each run.
type Scheduler struct {
	mu         sync.Mutex
	backupsDir string
	srcDir     string
	interval   time.Duration
	keep       int
	stopCh     chan struct{}
	doneCh     chan struct{}
	running    bool

	// OnBackup, when set, is called after every attempt with the archive
	// path or the error. It runs on the scheduler goroutine.
	OnBackup func(path string, err error)
}

// NewScheduler returns a stopped scheduler. Start it with Start.
func NewScheduler(backupsDir, srcDir string, interval time.Duration, keep int) *Scheduler {
	return &Scheduler{
		backupsDir: backupsDir,
		srcDir:     srcDir,
		interval:   interval,
		keep:       keep,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start spawns the backup loop. It is non-blocking; starting an already
// running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("backup interval is off")
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

// Stop halts the loop and waits for it to finish. Stopping twice, or a
// scheduler that never started, is safe.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			path, err := Create(s.backupsDir, s.srcDir, "auto")
			if err == nil {
				_, err = Prune(s.backupsDir, s.keep)
			}
			if s.OnBackup != nil {
				s.OnBackup(path, err)
			}
		}
	}
}
