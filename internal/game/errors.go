package game

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is a machine-readable failure code. Each code maps to a fixed
// HTTP-style status class that the routing layer translates to a transport
// response.
type ErrorCode string

const (
	CodeSessionNotFound      ErrorCode = "SessionNotFound"
	CodePlayerNotFound       ErrorCode = "PlayerNotFound"
	CodeStateVersionMismatch ErrorCode = "StateVersionMismatch"
	CodeGameAlreadyCompleted ErrorCode = "GameAlreadyCompleted"
	CodeTurnNotAvailable     ErrorCode = "TurnNotAvailable"
	CodeChipInsufficient     ErrorCode = "ChipInsufficient"
	CodePlayerOrderInvalid   ErrorCode = "PlayerOrderInvalid"
	CodeActionNotSupported   ErrorCode = "ActionNotSupported"
)

// Error is a typed domain failure carrying a code and status class. Commands
// that fail with an Error never partially mutate stored state.
type Error struct {
	Code    ErrorCode
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches errors by code, so sentinel comparisons via errors.Is work
// across separately constructed instances.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// IsCode reports whether err carries the given domain error code.
func IsCode(err error, code ErrorCode) bool {
	var domainErr *Error
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// StatusOf returns the HTTP status class for err, or 500 if err is not a
// domain error.
func StatusOf(err error) int {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Status
	}
	return http.StatusInternalServerError
}

func newError(code ErrorCode, status int, format string, args ...any) *Error {
	return &Error{Code: code, Status: status, Message: fmt.Sprintf(format, args...)}
}

func ErrSessionNotFound(id string) *Error {
	return newError(CodeSessionNotFound, http.StatusNotFound, "session %s not found", id)
}

func ErrPlayerNotFound(id string) *Error {
	return newError(CodePlayerNotFound, http.StatusNotFound, "player %s not registered in session", id)
}

func ErrStateVersionMismatch(expected, actual string) *Error {
	return newError(CodeStateVersionMismatch, http.StatusConflict,
		"expected version %s but current version is %s", expected, actual)
}

func ErrGameAlreadyCompleted(id string) *Error {
	return newError(CodeGameAlreadyCompleted, http.StatusConflict, "session %s is already completed", id)
}

func ErrTurnNotAvailable(reason string) *Error {
	return newError(CodeTurnNotAvailable, http.StatusUnprocessableEntity, "%s", reason)
}

func ErrChipInsufficient(playerID string) *Error {
	return newError(CodeChipInsufficient, http.StatusUnprocessableEntity,
		"player %s has no chips to place", playerID)
}

func ErrPlayerOrderInvalid(reason string) *Error {
	return newError(CodePlayerOrderInvalid, http.StatusUnprocessableEntity, "%s", reason)
}

func ErrActionNotSupported(action string) *Error {
	return newError(CodeActionNotSupported, http.StatusUnprocessableEntity,
		"action %q is not supported", action)
}
