// Package jinerr defines the closed set of error kinds surfaced at the
// core boundary (spec §7). Every fallible core operation returns one of
// these, wrapped with context, so the CLI layer can map a single error to
// an exit code without inspecting strings.
package jinerr

import (
	"errors"
	"fmt"
)

// Kind is one of the closed error kinds the core can surface.
type Kind string

const (
	NotInitialized    Kind = "not_initialized"
	NotFound          Kind = "not_found"
	RouteErr          Kind = "route_error"
	AlreadyTracked    Kind = "already_tracked"
	ConflictKind      Kind = "conflict"
	Locked            Kind = "locked"
	ParseKind         Kind = "parse"
	DetachedWorkspace Kind = "detached_workspace"
	Corrupt           Kind = "corrupt"
	Transport         Kind = "transport"
	Validation        Kind = "validation"
	IoKind            Kind = "io"
	PathBlocked       Kind = "path_blocked"
	StillConflicted   Kind = "still_conflicted"
	NotInPausedState  Kind = "not_in_paused_state"
	NoPausedApply     Kind = "no_paused_apply"
)

// Error is the concrete error type returned across the core boundary.
// Fields beyond Kind/Message are populated as relevant to the kind.
type Error struct {
	Kind    Kind
	Message string

	// Context fields, populated as relevant to Kind.
	Resource string // lock resource name
	RefPath  string // ref path involved in a Conflict
	FilePath string // file path involved in Conflict/Parse/AlreadyTracked
	Format   string // structured format involved in a Parse error
	TrackBy  string // "host" | "jin", for AlreadyTracked

	Err error // underlying error, if any
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, jinerr.ErrDetachedWorkspace) style checks against
// the sentinels below, matching on Kind rather than identity.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is comparisons against a bare kind, mirroring the
// way internal/vcs/errors.go exposes package-level sentinels.
var (
	ErrNotInitialized    = &Error{Kind: NotInitialized}
	ErrNotFound          = &Error{Kind: NotFound}
	ErrRoute             = &Error{Kind: RouteErr}
	ErrAlreadyTracked    = &Error{Kind: AlreadyTracked}
	ErrConflict          = &Error{Kind: ConflictKind}
	ErrLocked            = &Error{Kind: Locked}
	ErrParse             = &Error{Kind: ParseKind}
	ErrDetachedWorkspace = &Error{Kind: DetachedWorkspace}
	ErrCorrupt           = &Error{Kind: Corrupt}
	ErrTransport         = &Error{Kind: Transport}
	ErrValidation        = &Error{Kind: Validation}
	ErrIo                = &Error{Kind: IoKind}
	ErrPathBlocked       = &Error{Kind: PathBlocked}
	ErrStillConflicted   = &Error{Kind: StillConflicted}
	ErrNotInPausedState  = &Error{Kind: NotInPausedState}
	ErrNoPausedApply     = &Error{Kind: NoPausedApply}
)

// NotFoundf builds a NotFound error naming the kind of thing missing
// (e.g. "layer", "mode", "scope", "file", "ref") and its name.
func NotFoundf(kind, name string) *Error {
	return &Error{Kind: NotFound, Message: fmt.Sprintf("%s %q not found", kind, name)}
}

// Routef builds a RouteError carrying the human-readable unsatisfied
// precondition, per spec §4.B / §7.
func Routef(format string, args ...any) *Error {
	return &Error{Kind: RouteErr, Message: fmt.Sprintf(format, args...)}
}

// Conflictf builds a Conflict error over a ref path or file path.
func Conflictf(refOrFilePath, format string, args ...any) *Error {
	return &Error{Kind: ConflictKind, RefPath: refOrFilePath, Message: fmt.Sprintf(format, args...)}
}

// Lockedf builds a Locked error naming the contended resource.
func Lockedf(resource string, err error) *Error {
	return &Error{Kind: Locked, Resource: resource, Err: err,
		Message: fmt.Sprintf("timed out acquiring lock on %s", resource)}
}

// Parsef builds a Parse error for a structured-merge failure.
func Parsef(format, path string, err error) *Error {
	return &Error{Kind: ParseKind, Format: format, FilePath: path, Err: err,
		Message: fmt.Sprintf("failed to parse %s as %s: %v", path, format, err)}
}

// AlreadyTrackedf builds an AlreadyTracked error.
func AlreadyTrackedf(path, by string) *Error {
	return &Error{Kind: AlreadyTracked, FilePath: path, TrackBy: by,
		Message: fmt.Sprintf("%s is already tracked by %s", path, by)}
}

// Validationf builds a Validation error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: Validation, Message: fmt.Sprintf(format, args...)}
}

// PathBlockedf builds a PathBlocked error for a file the host VCS already
// tracks, in the way of an apply (spec §4.F).
func PathBlockedf(path string) *Error {
	return &Error{Kind: PathBlocked, FilePath: path,
		Message: fmt.Sprintf("%s is tracked by the host VCS and cannot be overwritten", path)}
}

// StillConflictedf builds a StillConflicted error for a resolve attempt
// against a file that still carries conflict markers (spec §4.G).
func StillConflictedf(path string) *Error {
	return &Error{Kind: StillConflicted, FilePath: path,
		Message: fmt.Sprintf("%s still contains conflict markers", path)}
}

// NotInPausedStatef builds a NotInPausedState error for a resolve attempt
// against a path that isn't part of the current paused apply (spec §4.G).
func NotInPausedStatef(path string) *Error {
	return &Error{Kind: NotInPausedState, FilePath: path,
		Message: fmt.Sprintf("%s is not part of the current paused apply", path)}
}

// NoPausedApplyf builds a NoPausedApply error for a resolve attempt when no
// paused-apply state exists at all (spec §4.G).
func NoPausedApplyf() *Error {
	return &Error{Kind: NoPausedApply, Message: "no paused apply in progress"}
}

// Transportf builds a Transport error around a remote-fetch/push failure
// (spec §4.L).
func Transportf(err error) *Error {
	return &Error{Kind: Transport, Err: err, Message: fmt.Sprintf("transport error: %v", err)}
}

// Wrap builds an Io error as a last resort around an opaque underlying
// failure, per the propagation policy in spec §7.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: IoKind, Err: err}
}

// As is a thin convenience wrapper over errors.As for *Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
