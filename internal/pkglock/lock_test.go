package pkglock_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/rigup/internal/pkglock"
)

const (
	testLockFileNameConstant          = "apt.lock"
	testLockShortTimeoutConstant      = 50 * time.Millisecond
	testLockSectionDurationConstant   = 20 * time.Millisecond
	testLockContenderCountConstant    = 4
	testLockEntriesPerContenderCount  = 3
	testStaleLockBogusContentConstant = "not-a-pid"
	testStaleLockDeadPIDConstant      = "999999"
)

func TestLockSerializesLockedSections(testInstance *testing.T) {
	lockFilePath := filepath.Join(testInstance.TempDir(), testLockFileNameConstant)

	var sectionOccupancyCounter int32
	var observedOverlap bool
	var observationMutex sync.Mutex
	enteredSectionCount := 0

	var waitGroup sync.WaitGroup
	for contenderIndex := 0; contenderIndex < testLockContenderCountConstant; contenderIndex++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()

			contenderLock := pkglock.New(lockFilePath)
			for entryIndex := 0; entryIndex < testLockEntriesPerContenderCount; entryIndex++ {
				lockError := contenderLock.WithLock(context.Background(), func() error {
					observationMutex.Lock()
					if sectionOccupancyCounter != 0 {
						observedOverlap = true
					}
					sectionOccupancyCounter++
					enteredSectionCount++
					observationMutex.Unlock()

					time.Sleep(testLockSectionDurationConstant)

					observationMutex.Lock()
					sectionOccupancyCounter--
					observationMutex.Unlock()
					return nil
				})
				require.NoError(testInstance, lockError)
			}
		}()
	}
	waitGroup.Wait()

	require.False(testInstance, observedOverlap)
	require.Equal(testInstance, testLockContenderCountConstant*testLockEntriesPerContenderCount, enteredSectionCount)

	_, statError := os.Stat(lockFilePath)
	require.True(testInstance, os.IsNotExist(statError))
}

func TestLockAcquireTimesOutWhileHeld(testInstance *testing.T) {
	lockFilePath := filepath.Join(testInstance.TempDir(), testLockFileNameConstant)

	holdingLock := pkglock.New(lockFilePath)
	require.NoError(testInstance, holdingLock.Acquire(context.Background()))
	defer func() {
		require.NoError(testInstance, holdingLock.Release())
	}()

	waitingLock := pkglock.NewWithTimeout(lockFilePath, testLockShortTimeoutConstant)
	acquireError := waitingLock.Acquire(context.Background())
	require.Error(testInstance, acquireError)

	var timeoutError pkglock.AcquireTimeoutError
	require.ErrorAs(testInstance, acquireError, &timeoutError)
	require.Equal(testInstance, lockFilePath, timeoutError.LockPath)
}

func TestLockReclaimsStaleHolders(testInstance *testing.T) {
	testCases := []struct {
		name        string
		lockContent string
	}{
		{name: "invalid_pid_content", lockContent: testStaleLockBogusContentConstant},
		{name: "dead_process_pid", lockContent: testStaleLockDeadPIDConstant},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			lockFilePath := filepath.Join(testInstance.TempDir(), testLockFileNameConstant)
			require.NoError(testInstance, os.WriteFile(lockFilePath, []byte(testCase.lockContent), 0o644))

			reclaimingLock := pkglock.NewWithTimeout(lockFilePath, time.Second)
			require.NoError(testInstance, reclaimingLock.Acquire(context.Background()))
			require.NoError(testInstance, reclaimingLock.Release())
		})
	}
}

func TestLockReleaseWithoutAcquireFails(testInstance *testing.T) {
	lockFilePath := filepath.Join(testInstance.TempDir(), testLockFileNameConstant)
	require.Error(testInstance, pkglock.New(lockFilePath).Release())
}

func TestLockWithLockPropagatesSectionError(testInstance *testing.T) {
	lockFilePath := filepath.Join(testInstance.TempDir(), testLockFileNameConstant)

	sectionError := os.ErrPermission
	lockError := pkglock.New(lockFilePath).WithLock(context.Background(), func() error {
		return sectionError
	})
	require.ErrorIs(testInstance, lockError, sectionError)

	_, statError := os.Stat(lockFilePath)
	require.True(testInstance, os.IsNotExist(statError))
}
