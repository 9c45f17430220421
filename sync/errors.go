package sync

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection aborts a run before any action is attempted.
	ErrConnection = errors.New("sftp connection failed")
	// ErrListing aborts a run when either side cannot be listed.
	ErrListing = errors.New("listing failed")
	// ErrSyncAlreadyRunning is returned by Run while another run holds the slot.
	ErrSyncAlreadyRunning = errors.New("sync already running")
	// ErrInvalidTransition signals a phase change the machine does not allow.
	ErrInvalidTransition = errors.New("invalid phase transition")
)

// TransferError is a non-fatal failure of a single action. Local actions
// (download, mkdir, trash) report filesystem errors through it as well.
type TransferError struct {
	Action Action
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Action.Type, e.Action.Target, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Local reports whether the failure happened on the local tree.
func (e *TransferError) Local() bool { return e.Action.Type.IsLocal() }
