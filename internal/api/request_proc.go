package api

import (
	"github.com/labstack/echo/v4"
	"github.com/yakoovad/ctf-platform/internal/service"
)

// ProcessRequest runs the steps in order and stops at the first failure.
func ProcessRequest[T any](e echo.Context, req *T, steps ...func(echo.Context, *T) error) error {
	for _, step := range steps {
		if err := step(e, req); err != nil {
			return err
		}
	}
	return nil
}

type normalizer interface {
	Normalize()
}

func bindStep[T any](e echo.Context, req *T) error {
	if err := e.Bind(req); err != nil {
		return service.NewError(service.ErrorCodeValidation, "invalid request body")
	}
	return nil
}

// normalizeStep trims input before validation so that " Alice@Domain " passes the email rules.
func normalizeStep[T any](_ echo.Context, req *T) error {
	if n, ok := any(req).(normalizer); ok {
		n.Normalize()
	}
	return nil
}

func validateStep[T any](e echo.Context, req *T) error {
	if err := e.Validate(req); err != nil {
		return service.NewError(service.ErrorCodeValidation, err.Error())
	}
	return nil
}

func decodeRequest[T any](e echo.Context, req *T) *service.Error {
	err := ProcessRequest(e, req, bindStep[T], normalizeStep[T], validateStep[T])
	if err == nil {
		return nil
	}
	if svcErr, ok := err.(*service.Error); ok {
		return svcErr
	}
	return service.NewError(service.ErrorCodeValidation, err.Error())
}
