package model

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrorKind is a stable identifier used in reports and for exit codes.
type ErrorKind string

// Error kinds.
const (
	KindSourceMalformed      ErrorKind = "SOURCE_MALFORMED"
	KindStateUnknown         ErrorKind = "NORMALIZE_STATE_UNKNOWN"
	KindMatchNoCandidate     ErrorKind = "MATCH_NO_CANDIDATE"
	KindMatchAmbiguous       ErrorKind = "MATCH_AMBIGUOUS"
	KindMatchChamberMismatch ErrorKind = "MATCH_CHAMBER_MISMATCH"
	KindGuardR1              ErrorKind = "GUARD_R1"
	KindGuardR2              ErrorKind = "GUARD_R2"
	KindGuardR3              ErrorKind = "GUARD_R3"
	KindGuardR4              ErrorKind = "GUARD_R4"
	KindGuardR5              ErrorKind = "GUARD_R5"
	KindGuardR6              ErrorKind = "GUARD_R6"
	KindGuardR7              ErrorKind = "GUARD_R7"
	KindGuardViolation       ErrorKind = "GUARD_VIOLATION"
	KindConflictOutranked    ErrorKind = "CONFLICT_OUTRANKED"
	KindLowConfidence        ErrorKind = "LOW_CONFIDENCE"
	KindDBTransient          ErrorKind = "DB_TRANSIENT"
	KindLockContention       ErrorKind = "LOCK_CONTENTION"
)

// IsGuard reports whether k is one of the invariant guard rules.
func (k ErrorKind) IsGuard() bool {
	switch k {
	case KindGuardR1, KindGuardR2, KindGuardR3, KindGuardR4, KindGuardR5, KindGuardR6, KindGuardR7:
		return true
	}
	return false
}

// KindError attaches a stable kind to an error.
type KindError struct {
	Kind ErrorKind
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *KindError) Unwrap() error {
	return e.Err
}

// WithKind wraps err with a stable kind. A nil err yields nil.
func WithKind(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: kind, Err: err}
}

// NewKindError builds a kinded error from a message.
func NewKindError(kind ErrorKind, format string, args ...any) error {
	return &KindError{Kind: kind, Err: eris.Errorf(format, args...)}
}

// KindOf returns the stable kind carried anywhere in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return ""
}
