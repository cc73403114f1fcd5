// Package domainerr holds the error taxonomy shared by the booking core.
// Callers classify failures with errors.Is against the sentinels; the typed
// errors carry the detail a client needs to render an actionable message.
package domainerr

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrTransient  = errors.New("transient persistence failure")
	ErrForbidden  = errors.New("forbidden")
)

// ValidationError reports malformed input. Never retried.
type ValidationError struct {
	Field string
	Err   error
}

func Validation(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

// Validationf builds a ValidationError from a formatted message.
func Validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Err: fmt.Errorf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %v", e.Err)
	}
	return fmt.Sprintf("validation: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a missing or inactive entity.
type NotFoundError struct {
	Kind     string
	ID       string
	Inactive bool
}

func NotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// Unavailable reports an entity that exists but is disabled.
func Unavailable(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id, Inactive: true}
}

func (e *NotFoundError) Error() string {
	if e.Inactive {
		return fmt.Sprintf("%s %s is not available", e.Kind, e.ID)
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictReason says why a date was rejected.
type ConflictReason string

const (
	ReasonBlocked    ConflictReason = "blocked"
	ReasonAtCapacity ConflictReason = "at_capacity"
	ReasonDuplicate  ConflictReason = "duplicate"
)

// ConflictError names the first offending date of a rejected admission. It
// never references other reservations.
type ConflictError struct {
	Date        time.Time
	Slot        string
	Reason      ConflictReason
	BlockReason string
	Requested   int
	Remaining   int
}

func (e *ConflictError) Error() string {
	when := e.Date.Format(time.DateOnly)
	if e.Slot != "" {
		when += " " + e.Slot
	}
	switch e.Reason {
	case ReasonBlocked:
		return fmt.Sprintf("conflict: %s is blocked", when)
	case ReasonAtCapacity:
		return fmt.Sprintf("conflict: %s has %d of %d requested places left", when, e.Remaining, e.Requested)
	default:
		return fmt.Sprintf("conflict: %s %s", when, e.Reason)
	}
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// TransientError wraps an unreachable or timed out store. The whole
// read-then-write pipeline may be retried.
type TransientError struct {
	Op  string
	Err error
}

func Transient(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// ForbiddenError is returned when the principal may not perform an action.
type ForbiddenError struct {
	Action string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

// Kind returns a short class name for logs and cached idempotency results.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "internal"
	}
}

// FromKind rebuilds a classified error from a stored kind and message. The
// message is returned as is.
func FromKind(kind, msg string) error {
	switch kind {
	case "validation":
		return &classified{sentinel: ErrValidation, msg: msg}
	case "not_found":
		return &classified{sentinel: ErrNotFound, msg: msg}
	case "conflict":
		return &classified{sentinel: ErrConflict, msg: msg}
	case "forbidden":
		return &classified{sentinel: ErrForbidden, msg: msg}
	case "transient":
		return &classified{sentinel: ErrTransient, msg: msg}
	default:
		return errors.New(msg)
	}
}

type classified struct {
	sentinel error
	msg      string
}

func (e *classified) Error() string { return e.msg }

func (e *classified) Is(target error) bool { return target == e.sentinel }

// Detail is the storable form of a classified error. Rebuild turns it back
// into the typed error it was taken from.
type Detail struct {
	Kind        string `json:"kind"`
	Message     string `json:"message"`
	Field       string `json:"field,omitempty"`
	Entity      string `json:"entity,omitempty"`
	ID          string `json:"id,omitempty"`
	Inactive    bool   `json:"inactive,omitempty"`
	Date        string `json:"date,omitempty"`
	Slot        string `json:"slot,omitempty"`
	Reason      string `json:"reason,omitempty"`
	BlockReason string `json:"block_reason,omitempty"`
	Requested   int    `json:"requested,omitempty"`
	Remaining   int    `json:"remaining,omitempty"`
	Op          string `json:"op,omitempty"`
	Action      string `json:"action,omitempty"`
}

// Describe captures err for later replay. Untyped errors keep only their
// kind and message.
func Describe(err error) Detail {
	d := Detail{Kind: Kind(err)}
	if err == nil {
		return d
	}
	d.Message = err.Error()
	var (
		ve *ValidationError
		nf *NotFoundError
		ce *ConflictError
		te *TransientError
		fe *ForbiddenError
	)
	switch {
	case errors.As(err, &ve):
		d.Field = ve.Field
		if ve.Err != nil {
			d.Message = ve.Err.Error()
		}
	case errors.As(err, &nf):
		d.Entity, d.ID, d.Inactive = nf.Kind, nf.ID, nf.Inactive
	case errors.As(err, &ce):
		d.Date = ce.Date.UTC().Format(time.DateOnly)
		d.Slot = ce.Slot
		d.Reason = string(ce.Reason)
		d.BlockReason = ce.BlockReason
		d.Requested, d.Remaining = ce.Requested, ce.Remaining
	case errors.As(err, &te):
		d.Op = te.Op
		if te.Err != nil {
			d.Message = te.Err.Error()
		}
	case errors.As(err, &fe):
		d.Action = fe.Action
	}
	return d
}

// Rebuild returns the typed error d describes, falling back to FromKind when
// the typed fields are missing.
func (d Detail) Rebuild() error {
	switch d.Kind {
	case "validation":
		return &ValidationError{Field: d.Field, Err: errors.New(d.Message)}
	case "not_found":
		if d.Entity != "" {
			return &NotFoundError{Kind: d.Entity, ID: d.ID, Inactive: d.Inactive}
		}
	case "conflict":
		if d.Reason != "" {
			date, err := time.Parse(time.DateOnly, d.Date)
			if err == nil {
				return &ConflictError{
					Date:        date,
					Slot:        d.Slot,
					Reason:      ConflictReason(d.Reason),
					BlockReason: d.BlockReason,
					Requested:   d.Requested,
					Remaining:   d.Remaining,
				}
			}
		}
	case "transient":
		if d.Op != "" {
			return &TransientError{Op: d.Op, Err: errors.New(d.Message)}
		}
	case "forbidden":
		if d.Action != "" {
			return &ForbiddenError{Action: d.Action}
		}
	}
	return FromKind(d.Kind, d.Message)
}
