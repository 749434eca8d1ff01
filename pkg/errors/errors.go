package errors

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyDenominator = errors.New("empty denominator")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnknownSchema    = errors.New("unknown metadata schema")
	ErrUnknownBackend   = errors.New("unknown backend")
	ErrIndexUnavailable = errors.New("search index unavailable")
	ErrStoreUnavailable = errors.New("backing store unavailable")
)

// Process exit codes used by the command line tools.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitUsage    = 2
	ExitNoData   = 3
	ExitExternal = 4
)

type AppError struct {
	Err      error
	Message  string
	ExitCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, exitCode int, message string) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  message,
		ExitCode: exitCode,
	}
}

func Newf(sentinel error, exitCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  fmt.Sprintf(format, args...),
		ExitCode: exitCode,
	}
}

// ExitCode maps an error returned by a pipeline to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnknownSchema), errors.Is(err, ErrUnknownBackend):
		return ExitUsage
	case errors.Is(err, ErrEmptyDenominator):
		return ExitNoData
	case errors.Is(err, ErrIndexUnavailable), errors.Is(err, ErrStoreUnavailable):
		return ExitExternal
	default:
		return ExitFailure
	}
}
