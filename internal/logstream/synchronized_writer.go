package logstream

import (
	"io"
	"sync"
)

// SynchronizedWriter serializes writes to a shared destination. Line writers
// fanning into one console sink from concurrent tasks must share a single
// SynchronizedWriter so their lines never interleave mid-write.
type SynchronizedWriter struct {
	mutex       sync.Mutex
	destination io.Writer
}

// NewSynchronizedWriter wraps the destination behind one mutex. A destination
// that is already synchronized is returned unchanged, so repeated wrapping
// keeps every producer on the same lock.
func NewSynchronizedWriter(destination io.Writer) *SynchronizedWriter {
	if synchronized, alreadySynchronized := destination.(*SynchronizedWriter); alreadySynchronized {
		return synchronized
	}
	return &SynchronizedWriter{destination: destination}
}

// Write implements io.Writer while holding the shared lock.
func (writer *SynchronizedWriter) Write(payload []byte) (int, error) {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	return writer.destination.Write(payload)
}
