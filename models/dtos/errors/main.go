package errors

import (
	"net/http"
	"time"

	gerrors "gohan/variantstore/errors"
	"gohan/variantstore/models/dtos"
)

/*
	Utility functions to facillitate returning error responses to HTTP clients
*/

// -- Simplest: 1 error with message
func CreateSimpleBadRequest(message string) dtos.GeneralErrorResponseDto {
	return create(http.StatusBadRequest, "", message)
}
func CreateSimpleNotFound(message string) dtos.GeneralErrorResponseDto {
	return create(http.StatusNotFound, "", message)
}
func CreateSimpleInternalServerError(message string) dtos.GeneralErrorResponseDto {
	return create(http.StatusInternalServerError, "", message)
}

// FromError maps a coded error onto its HTTP envelope
func FromError(err error) dtos.GeneralErrorResponseDto {
	code := gerrors.CodeOf(err)
	return create(StatusOf(code), string(code), err.Error())
}

func StatusOf(code gerrors.Code) int {
	switch code {
	case gerrors.ErrMalformedParameter, gerrors.ErrUnknownParameter:
		return http.StatusBadRequest
	case gerrors.ErrUnresolvedReference:
		return http.StatusNotFound
	case gerrors.ErrUnsupportedOperation:
		return http.StatusNotImplemented
	case gerrors.ErrBackendUnavailable:
		return http.StatusServiceUnavailable
	case gerrors.ErrTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func create(status int, code string, message string) dtos.GeneralErrorResponseDto {
	return dtos.GeneralErrorResponseDto{
		Code:      status,
		Message:   http.StatusText(status),
		Timestamp: time.Now(),
		Errors: []dtos.GeneralError{
			{
				Code:    code,
				Message: message,
			},
		},
	}
}
