package game

import "errors"

// Sentinel errors surfaced to the gateway.
var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room full")
)

// ValidationError rejects an operation without mutating room state. The
// gateway reports Msg to the caller as an error_msg; Tag goes to the
// session log.
type ValidationError struct {
	Tag string
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationErr(tag, msg string) *ValidationError {
	return &ValidationError{Tag: tag, Msg: msg}
}
