package searchsvc

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	lockFileName  = "write.lock"
	lockTimeout   = 5 * time.Second
	lockRetryWait = 500 * time.Millisecond
)

// ErrLockHeld is returned when another live process owns the write lock
var ErrLockHeld = errors.New("write lock held by another process")

// writeLock is a PID file that serializes collection writes across processes.
// The indexer and a serving process may share one data directory.
type writeLock struct {
	path    string
	timeout time.Duration

	mu   sync.Mutex
	held bool
}

func newWriteLock(path string) *writeLock {
	return &writeLock{path: path, timeout: lockTimeout}
}

// owner returns the PID stored in the lock file, or 0 when there is none
func (l *writeLock) owner() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read lock file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		log.Printf("Warning: Corrupted lock file %s, removing...", l.path)
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return 0, fmt.Errorf("failed to remove corrupted lock: %w", err)
		}
		return 0, nil
	}
	return pid, nil
}

// acquire takes the lock, waiting up to timeout for a live owner and
// removing locks left behind by dead processes
func (l *writeLock) acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held {
		return nil
	}
	ourPID := os.Getpid()
	startTime := time.Now()

	for {
		pid, err := l.owner()
		if err != nil {
			return err
		}

		switch {
		case pid == ourPID:
			l.held = true
			return nil
		case pid != 0 && processAlive(pid):
			if elapsed := time.Since(startTime); elapsed >= l.timeout {
				return fmt.Errorf("%w (PID %d) after %v", ErrLockHeld, pid, elapsed.Round(time.Millisecond))
			}
			time.Sleep(lockRetryWait)
			continue
		case pid != 0:
			log.Printf("Stale lock detected (PID %d not running), cleaning...", pid)
		}

		if err := os.WriteFile(l.path, []byte(strconv.Itoa(ourPID)), 0644); err != nil {
			return fmt.Errorf("failed to create lock file: %w", err)
		}
		l.held = true
		log.Printf("✓ Write lock acquired (PID %d)", ourPID)
		return nil
	}
}

// release removes the lock file if this process owns it
func (l *writeLock) release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		return nil
	}
	l.held = false

	pid, err := l.owner()
	if err != nil {
		return err
	}
	if pid != os.Getpid() {
		log.Printf("Warning: Lock file contains different PID (%d vs %d), not removing", pid, os.Getpid())
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}
