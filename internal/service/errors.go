package service

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type ErrorCode string

const (
	ErrorCodeValidation    ErrorCode = "VALIDATION"
	ErrorCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrorCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrorCodePhaseGate     ErrorCode = "PHASE_GATE"
	ErrorCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrorCodeTeamExists    ErrorCode = "TEAM_EXISTS"
	ErrorCodeEmailExists   ErrorCode = "EMAIL_EXISTS"
	ErrorCodeAlreadySolved ErrorCode = "ALREADY_SOLVED"
	ErrorCodeIncorrectFlag ErrorCode = "INCORRECT_FLAG"
	ErrorCodeInternal      ErrorCode = "INTERNAL"
)

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func (e *Error) Error() string {
	return e.Message
}

// fromTxError unwraps the *Error returned from a transaction body. Anything
// else, such as a failed commit, is logged and becomes INTERNAL.
func fromTxError(l *zap.Logger, err error, message string) *Error {
	if err == nil {
		return nil
	}

	var res *Error
	if errors.As(err, &res) {
		return res
	}

	l.Error("transaction failed", zap.Error(err))
	return NewError(ErrorCodeInternal, message)
}
