package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/marcshift/internal/ir"
)

// Error kinds. Match them with errors.Is; WithErrorHandler keys on them.
var (
	// ErrMissingRule is reported for a key no registered pattern matches.
	ErrMissingRule = errors.New("no rule matches key")

	// ErrSealed is returned when a rule is registered after the engine
	// has built its index.
	ErrSealed = errors.New("rule index already built")

	// ErrInvalidPattern is returned when a pattern does not compile.
	ErrInvalidPattern = errors.New("invalid key pattern")
)

// RuntimeError represents an error detected while converting a record.
//
// Runtime errors include:
//   - Missing rule: no pattern matches a key
//   - Handler failure: a rule handler returned an error
//
// RuntimeError carries the key and rule so callers can report where a
// conversion stopped.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Direction is the conversion that failed.
	Direction ir.Direction

	// Key is the input key being converted.
	Key string

	// Rule names the matched rule, empty for missing rules.
	Rule string

	// Err is the handler's own error.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeMissingRule indicates no registered pattern matches the key.
	ErrCodeMissingRule RuntimeErrorCode = "MISSING_RULE"

	// ErrCodeHandlerFailed indicates a rule handler returned an error.
	ErrCodeHandlerFailed RuntimeErrorCode = "HANDLER_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("%s: %s (%s key=%q, rule=%s)", e.Code, e.Message, e.Direction, e.Key, e.Rule)
	}
	return fmt.Sprintf("%s: %s (%s key=%q)", e.Code, e.Message, e.Direction, e.Key)
}

// Unwrap exposes the handler's error to errors.Is and errors.As.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrMissingRule) match missing-rule errors.
func (e *RuntimeError) Is(target error) bool {
	return target == ErrMissingRule && e.Code == ErrCodeMissingRule
}

// IsMissingRule returns true if the error reports an unmatched key.
// Uses errors.As to handle wrapped errors.
func IsMissingRule(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeMissingRule
	}
	return false
}

// IsHandlerError returns true if the error came out of a rule handler.
func IsHandlerError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeHandlerFailed
	}
	return false
}

// NewMissingRuleError creates a RuntimeError for an unmatched key.
func NewMissingRuleError(dir ir.Direction, key string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeMissingRule,
		Message:   "no rule matches key",
		Direction: dir,
		Key:       key,
	}
}

// NewHandlerError wraps err as a RuntimeError raised by rule.
func NewHandlerError(dir ir.Direction, key, rule string, err error) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeHandlerFailed,
		Message:   err.Error(),
		Direction: dir,
		Key:       key,
		Rule:      rule,
		Err:       err,
	}
}
