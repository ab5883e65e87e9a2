package accessmethod

import (
	"errors"
	"sync"

	"github.com/wadahiro/apiaccess/internal/log"
)

var iteratorLogger = log.For(log.ComponentIterator)

// ErrNoEnabledMethods is returned when an iterator is created over a data
// source without a single enabled method.
var ErrNoEnabledMethods = errors.New("no enabled access methods")

// Iterator is a cursor over the enabled methods of a DataSource.
//
// The cursor remembers the ID of the method it points at. When settings
// change, the cursor follows that method to its new position; if the method
// is gone or disabled the old index is clamped to the enabled list instead.
type Iterator struct {
	mu     sync.Mutex
	ds     DataSource
	index  int
	lastID string
}

// NewIterator creates an iterator positioned on the first enabled method.
func NewIterator(ds DataSource) (*Iterator, error) {
	enabled := EnabledOf(ds.All())
	if len(enabled) == 0 {
		return nil, ErrNoEnabledMethods
	}
	return &Iterator{ds: ds, lastID: enabled[0].ID}, nil
}

// Pick returns the current method without moving the cursor.
//
// If every method has been disabled since construction, Pick falls back to
// the built-in direct method.
func (it *Iterator) Pick() Method {
	it.mu.Lock()
	defer it.mu.Unlock()

	enabled := EnabledOf(it.ds.All())
	pos := it.position(enabled)
	if pos < 0 {
		iteratorLogger.Warn("No enabled access methods, falling back to direct")
		return Direct()
	}
	return enabled[pos]
}

// Rotate advances the cursor to the next enabled method, wrapping after the last.
func (it *Iterator) Rotate() {
	it.mu.Lock()
	defer it.mu.Unlock()

	enabled := EnabledOf(it.ds.All())
	pos := it.position(enabled)
	if pos < 0 {
		iteratorLogger.Warn("No enabled access methods, nothing to rotate to")
		return
	}

	next := (pos + 1) % len(enabled)
	it.index = next
	it.lastID = enabled[next].ID
	iteratorLogger.Debug("Rotated access method", "from", enabled[pos].String(), "to", enabled[next].String())
}

// Equal reports whether both iterators currently pick the same method.
func (it *Iterator) Equal(other *Iterator) bool {
	if it == nil || other == nil {
		return it == other
	}
	return it.Pick().Equal(other.Pick())
}

// position must be called with it.mu held. It returns -1 for an empty list.
func (it *Iterator) position(enabled []Method) int {
	if len(enabled) == 0 {
		return -1
	}
	for i, m := range enabled {
		if m.ID == it.lastID {
			return i
		}
	}
	return it.index % len(enabled)
}
