// Package apperr carries the request error taxonomy: every failure a handler
// can surface maps to one of 400, 401, 403, 404 or 500 with a JSON
// {message, details?} body.
package apperr

import (
	"errors"
	"net/http"
)

type Error struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

func Validation(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: message}
}

func Authentication() *Error {
	return &Error{Status: http.StatusUnauthorized, Message: "Authentication required"}
}

func Authorization(message string) *Error {
	if message == "" {
		message = "You are not allowed to perform this action"
	}
	return &Error{Status: http.StatusForbidden, Message: message}
}

func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return &Error{Status: http.StatusNotFound, Message: message}
}

func Internal(err error) *Error {
	e := &Error{Status: http.StatusInternalServerError, Message: "Internal Server Error"}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

// From extracts an *Error from err, wrapping anything unknown as a 500.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

// IsClientError reports whether the error maps to a 4xx status.
func (e *Error) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500
}
