package main

import (
	"errors"

	"github.com/amonks/spacetodo/internal/ids"
	"github.com/amonks/spacetodo/record"
)

// Exit codes.
const (
	exitFailure  = 1
	exitUsage    = 2
	exitNotFound = 3
	exitConflict = 4
)

// exitError carries an exit code and, when msg is set, the text to show
// in place of err.
type exitError struct {
	code int
	msg  string
	err  error
}

func (e *exitError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

func exitWith(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// failWith classifies err and shows message instead of its text.
func failWith(message string, err error) error {
	classified := classify(err)
	var exitErr *exitError
	if message != "" && errors.As(classified, &exitErr) {
		return &exitError{code: exitErr.code, msg: message, err: err}
	}
	return classified
}

// classify picks the exit code for err from its kind.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return err
	}
	if errors.Is(err, ids.ErrNoMatch) {
		return exitWith(exitNotFound, err)
	}
	if errors.Is(err, ids.ErrAmbiguousPrefix) {
		return exitWith(exitUsage, err)
	}
	switch record.KindOf(err) {
	case record.KindValidation:
		return exitWith(exitUsage, err)
	case record.KindNotFound:
		return exitWith(exitNotFound, err)
	case record.KindUniqueConstraint, record.KindReferentialIntegrity:
		return exitWith(exitConflict, err)
	}
	return exitWith(exitFailure, err)
}
