package session

import "errors"

// Typed rejection errors for session-control commands. Rejections never alter
// session state and are always reported to the caller, never silently dropped.
var (
	// ErrInvalidTransition means the command is not valid for the current state.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrUnknownSession means the command references a session that does not exist.
	ErrUnknownSession = errors.New("unknown session")
	// ErrDuplicateSession means a start command reused a live session id.
	ErrDuplicateSession = errors.New("session already exists")
	// ErrDuplicateFragment means a fragment's sequence number was already processed.
	ErrDuplicateFragment = errors.New("duplicate fragment")
	// ErrExternalTimeout means an external collaborator exceeded its bound.
	ErrExternalTimeout = errors.New("external collaborator timed out")
	// ErrMalformedEntity means an inbound payload carried an unparseable field.
	ErrMalformedEntity = errors.New("malformed entity")
	// ErrDuplicateAssembly means evidence was already produced for the session.
	ErrDuplicateAssembly = errors.New("evidence already assembled")
	// ErrAssemblyFailed means evidence assembly or persistence failed after retries.
	ErrAssemblyFailed = errors.New("evidence assembly failed")
	// ErrUnknownPackage means a review update references an unknown package id.
	ErrUnknownPackage = errors.New("unknown evidence package")
)
