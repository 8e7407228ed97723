package memory

import "sync/atomic"

type errorHolder struct {
	err error
}

var lastError atomic.Pointer[errorHolder]

// RecordError stores err in the process-wide last-error slot. Releases run on paths that cannot
// return errors, so failures to deallocate are recorded here instead of being lost.
func RecordError(err error) {
	if err == nil {
		return
	}

	lastError.Store(&errorHolder{err: err})
}

// LastError returns the most recently recorded error, or nil
func LastError() error {
	holder := lastError.Load()
	if holder == nil {
		return nil
	}
	return holder.err
}

// ClearLastError empties the last-error slot and returns what it contained
func ClearLastError() error {
	holder := lastError.Swap(nil)
	if holder == nil {
		return nil
	}
	return holder.err
}
