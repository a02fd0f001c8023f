package core

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies engine errors.
type Kind string

const (
	KindInvalidRecord   Kind = "invalid_record"
	KindDuplicateRecord Kind = "duplicate_record"
	KindConfig          Kind = "config_error"
	KindEmission        Kind = "emission_error"
	KindAborted         Kind = "aborted"
)

// Reason names why a record was rejected.
type Reason string

const (
	ReasonInsufficientTiles Reason = "InsufficientTiles"
	ReasonExtraTiles        Reason = "ExtraTiles"
	ReasonEmptyPhrase       Reason = "EmptyPhrase"
	ReasonPhraseTooLong     Reason = "PhraseTooLong"
	ReasonDuplicatePhrase   Reason = "DuplicatePhrase"
	ReasonEmptyInput        Reason = "EmptyInput"
	ReasonEmotionMismatch   Reason = "EmotionMismatch"
	ReasonBadEmotion        Reason = "BadEmotion"
	ReasonBadWeight         Reason = "BadWeight"
	ReasonBadLayer          Reason = "BadLayer"
	ReasonUnknownCategory   Reason = "UnknownCategory"
	ReasonLowInformation    Reason = "LowInformation"
	ReasonDuplicateOutput   Reason = "DuplicateOutput"
)

// Error is the typed error returned by every engine component.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += "{" + string(e.Reason) + "}"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// InvalidRecord builds a per-record rejection.
func InvalidRecord(reason Reason, format string, args ...any) error {
	return &Error{Kind: KindInvalidRecord, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ConfigError wraps a configuration problem found before the build starts.
func ConfigError(message string, cause error) error {
	return &Error{Kind: KindConfig, Message: message, Cause: cause}
}

// EmissionError wraps an I/O failure while writing artifacts.
func EmissionError(message string, cause error) error {
	return &Error{Kind: KindEmission, Message: message, Cause: cause}
}

// Aborted wraps a cancellation observed during a build.
func Aborted(cause error) error {
	return &Error{Kind: KindAborted, Message: "build aborted", Cause: cause}
}

func kindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// ReasonOf returns the rejection reason carried by err, if any.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

func IsInvalidRecord(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindInvalidRecord
}

func IsDuplicateRecord(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindDuplicateRecord
}

func IsConfigError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindConfig
}

func IsEmissionError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindEmission
}

func IsAborted(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindAborted
}

// Exit codes shared with callers of the CLI.
const (
	ExitOK      = 0
	ExitConfig  = 1
	ExitIO      = 2
	ExitAborted = 3
)

// ExitCode maps an error returned by a command to the process exit status.
// Untyped errors (bad flags, unreadable inputs) count as configuration errors.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, context.Canceled) {
		return ExitAborted
	}
	switch k, _ := kindOf(err); k {
	case KindEmission:
		return ExitIO
	case KindAborted:
		return ExitAborted
	default:
		return ExitConfig
	}
}
