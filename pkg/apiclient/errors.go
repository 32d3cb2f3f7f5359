package apiclient

import "errors"

var (
	// ErrRefreshExhausted means the client hit the global refresh cap and
	// will not attempt further refreshes until a new login succeeds.
	ErrRefreshExhausted = errors.New("refresh attempts exhausted")

	// ErrNoRefreshSession means a refresh was attempted with no refresh
	// cookie present (never logged in, or the session was cleared).
	ErrNoRefreshSession = errors.New("no refresh session")
)
