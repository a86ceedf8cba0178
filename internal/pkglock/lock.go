// Package pkglock serializes system package-manager invocations across
// concurrently running installer tasks through a named advisory file lock.
package pkglock

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	// DefaultAcquireTimeout bounds how long a task waits for the package-manager lock.
	DefaultAcquireTimeout = 20 * time.Minute
	// DefaultPollInterval spaces out acquisition attempts while another task holds the lock.
	DefaultPollInterval = 500 * time.Millisecond

	lockFilePermissionConstant            = 0o644
	lockFileCreationErrorTemplateConstant = "unable to create lock file %s: %w"
	lockFileReadErrorTemplateConstant     = "unable to read lock file %s: %w"
	lockFileRemovalErrorTemplateConstant  = "unable to remove lock file %s: %w"
	lockTimeoutErrorTemplateConstant      = "package-manager lock %s not acquired within %s"
	lockNotHeldErrorTemplateConstant      = "package-manager lock %s is not held by this process"
)

// AcquireTimeoutError reports that the bounded wait for the lock expired.
type AcquireTimeoutError struct {
	LockPath string
	Timeout  time.Duration
}

// Error describes the expired wait.
func (timeoutError AcquireTimeoutError) Error() string {
	return fmt.Sprintf(lockTimeoutErrorTemplateConstant, timeoutError.LockPath, timeoutError.Timeout)
}

// Lock is a PID-stamped advisory file lock with a bounded acquisition wait.
// Locks abandoned by dead processes are reclaimed automatically.
type Lock struct {
	lockFilePath   string
	acquireTimeout time.Duration
	pollInterval   time.Duration
	held           bool
}

// New constructs a Lock at the provided path using the default wait bound.
func New(lockFilePath string) *Lock {
	return NewWithTimeout(lockFilePath, DefaultAcquireTimeout)
}

// NewWithTimeout constructs a Lock at the provided path with a custom wait bound.
func NewWithTimeout(lockFilePath string, acquireTimeout time.Duration) *Lock {
	if acquireTimeout <= 0 {
		acquireTimeout = DefaultAcquireTimeout
	}
	return &Lock{
		lockFilePath:   lockFilePath,
		acquireTimeout: acquireTimeout,
		pollInterval:   DefaultPollInterval,
	}
}

// Acquire blocks until the lock is obtained, the wait bound expires, or the
// context is cancelled. Expiry surfaces as AcquireTimeoutError.
func (lock *Lock) Acquire(executionContext context.Context) error {
	deadline := time.Now().Add(lock.acquireTimeout)

	for {
		acquired, attemptError := lock.tryAcquire()
		if attemptError != nil {
			return attemptError
		}
		if acquired {
			lock.held = true
			return nil
		}

		if time.Now().After(deadline) {
			return AcquireTimeoutError{LockPath: lock.lockFilePath, Timeout: lock.acquireTimeout}
		}

		select {
		case <-executionContext.Done():
			return executionContext.Err()
		case <-time.After(lock.pollInterval):
		}
	}
}

// Release removes the lock file. Releasing an unheld lock is an error.
func (lock *Lock) Release() error {
	if !lock.held {
		return fmt.Errorf(lockNotHeldErrorTemplateConstant, lock.lockFilePath)
	}
	lock.held = false

	removalError := os.Remove(lock.lockFilePath)
	if removalError != nil && !os.IsNotExist(removalError) {
		return fmt.Errorf(lockFileRemovalErrorTemplateConstant, lock.lockFilePath, removalError)
	}
	return nil
}

// WithLock runs the provided function while holding the lock.
func (lock *Lock) WithLock(executionContext context.Context, lockedSection func() error) error {
	if acquireError := lock.Acquire(executionContext); acquireError != nil {
		return acquireError
	}
	sectionError := lockedSection()
	releaseError := lock.Release()
	if sectionError != nil {
		return sectionError
	}
	return releaseError
}

func (lock *Lock) tryAcquire() (bool, error) {
	lockFile, creationError := os.OpenFile(lock.lockFilePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, lockFilePermissionConstant)
	if creationError == nil {
		_, writeError := fmt.Fprintf(lockFile, "%d", os.Getpid())
		lockFile.Close()
		if writeError != nil {
			os.Remove(lock.lockFilePath)
			return false, fmt.Errorf(lockFileCreationErrorTemplateConstant, lock.lockFilePath, writeError)
		}
		return true, nil
	}

	if !os.IsExist(creationError) {
		return false, fmt.Errorf(lockFileCreationErrorTemplateConstant, lock.lockFilePath, creationError)
	}

	stale, staleContent, staleCheckError := lock.holderIsStale()
	if staleCheckError != nil {
		return false, staleCheckError
	}
	if !stale {
		return false, nil
	}

	if removalError := lock.removeStaleLock(staleContent); removalError != nil {
		return false, removalError
	}
	return false, nil
}

func (lock *Lock) holderIsStale() (bool, []byte, error) {
	lockContent, readError := os.ReadFile(lock.lockFilePath)
	if readError != nil {
		if os.IsNotExist(readError) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf(lockFileReadErrorTemplateConstant, lock.lockFilePath, readError)
	}

	holderPID, parseError := strconv.Atoi(strings.TrimSpace(string(lockContent)))
	if parseError != nil {
		return true, lockContent, nil
	}

	return !processExists(holderPID), lockContent, nil
}

// removeStaleLock removes the lock file only while it still holds the content
// judged stale. A lock re-created by a new holder in the meantime keeps it.
func (lock *Lock) removeStaleLock(staleContent []byte) error {
	currentContent, readError := os.ReadFile(lock.lockFilePath)
	if readError != nil {
		if os.IsNotExist(readError) {
			return nil
		}
		return fmt.Errorf(lockFileReadErrorTemplateConstant, lock.lockFilePath, readError)
	}
	if !bytes.Equal(currentContent, staleContent) {
		return nil
	}

	removalError := os.Remove(lock.lockFilePath)
	if removalError != nil && !os.IsNotExist(removalError) {
		return fmt.Errorf(lockFileRemovalErrorTemplateConstant, lock.lockFilePath, removalError)
	}
	return nil
}

func processExists(processIdentifier int) bool {
	if processIdentifier == os.Getpid() {
		return true
	}
	process, findError := os.FindProcess(processIdentifier)
	if findError != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
