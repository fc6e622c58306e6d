package engine

import "errors"

var (
	// ErrAlreadyRunning is returned by Start while the server is running or stopping.
	ErrAlreadyRunning = errors.New("server is already running")
)
