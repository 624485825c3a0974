// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/datalode/conveyor/queue"
)

// ErrorStatus describes errors that correspond to specific HTTP status
// codes.
type ErrorStatus interface {
	// HTTPStatus returns the HTTP status code for this error.
	HTTPStatus() int
}

// ErrUnsupportedMediaType is returned from Decode() if the provided
// Content-Type: is unrecognized.  This translates directly into the
// equivalent HTTP 415 error.
type ErrUnsupportedMediaType struct {
	Type string
}

func (e ErrUnsupportedMediaType) Error() string {
	return fmt.Sprintf("Unsupported media type %q", e.Type)
}

// HTTPStatus returns a fixed 415 Unsupported Media Type error code.
func (e ErrUnsupportedMediaType) HTTPStatus() int {
	return http.StatusUnsupportedMediaType
}

// ErrNotFound is a wrapper error that indicates that, due to the
// embedded error, a REST service should return a 404 Not Found error.
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 404 Not Found error code.
func (e ErrNotFound) HTTPStatus() int {
	return http.StatusNotFound
}

// ErrBadRequest is returned when there is an error decoding HTTP
// headers or the request body.
type ErrBadRequest struct {
	Err error
}

func (e ErrBadRequest) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 400 Bad Request HTTP status code.
func (e ErrBadRequest) HTTPStatus() int {
	return http.StatusBadRequest
}

// FromError populates an ErrorResponse based on an error value.  This
// remaps the well-known queue errors to specific e.Error codes.
func (e *ErrorResponse) FromError(err error) {
	e.Error = "error"
	e.Message = err.Error()
	switch err {
	case queue.ErrLostLease:
		e.Error = "ErrLostLease"
	case queue.ErrMissingClassification:
		e.Error = "ErrMissingClassification"
	case queue.ErrMissingPayload:
		e.Error = "ErrMissingPayload"
	case queue.ErrDedupeKeyTooLong:
		e.Error = "ErrDedupeKeyTooLong"
	}
	switch et := err.(type) {
	case queue.ErrNoSuchItem:
		e.Error = "ErrNoSuchItem"
		e.Value = et.ID
	case queue.ErrNoSuchRun:
		e.Error = "ErrNoSuchRun"
		e.Value = et.ID
	case ErrNotFound:
		// Discard this wrapper and report the embedded error
		e.FromError(et.Err)
	case ErrBadRequest:
		e.FromError(et.Err)
	}
}

// ToError converts e back to a queue error, if that is possible.  If
// not, returns a plain error with e.Message text.
func (e *ErrorResponse) ToError() error {
	switch e.Error {
	case "ErrLostLease":
		return queue.ErrLostLease
	case "ErrMissingClassification":
		return queue.ErrMissingClassification
	case "ErrMissingPayload":
		return queue.ErrMissingPayload
	case "ErrDedupeKeyTooLong":
		return queue.ErrDedupeKeyTooLong
	case "ErrNoSuchItem":
		return queue.ErrNoSuchItem{ID: e.Value}
	case "ErrNoSuchRun":
		return queue.ErrNoSuchRun{ID: e.Value}
	}
	return errors.New(e.Message)
}

// FromPanic populates an error response based on a panic.  Typical use
// is:
//
//	defer func() {
//	    if obj := recover(); obj != nil {
//	        resp := restdata.ErrorResponse{}
//	        resp.FromPanic(obj)
//	        // write resp out as makes sense
//	    }
//	}()
func (e *ErrorResponse) FromPanic(obj interface{}) {
	e.Error = "panic"
	if recoveredError, isError := obj.(error); isError {
		e.Message = recoveredError.Error()
	} else {
		e.Message = fmt.Sprintf("%+v", obj)
	}
	var stack [4096]byte
	n := runtime.Stack(stack[:], false)
	e.Stack = string(stack[:n])
}
