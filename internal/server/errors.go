package server

import "errors"

// Inspector errors
var (
	ErrServerClosed         = errors.New("server is closed")
	ErrServerNotRunning     = errors.New("server is not running")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrUnknownSource        = errors.New("unknown event source")
	ErrUnauthorized         = errors.New("unauthorized")
)
