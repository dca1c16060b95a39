// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorKind categorizes transport errors for handling.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotReachable
	KindTimeout
	KindStatus
	KindDecode
	KindCanceled
)

// String returns the string representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNotReachable:
		return "not_reachable"
	case KindTimeout:
		return "timeout"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// TransportError is returned for every failed call to the service.
type TransportError struct {
	Kind ErrorKind

	// Op names the endpoint, e.g. "chat" or "upload".
	Op string

	// Status is the HTTP status code for KindStatus errors.
	Status int

	// Message is the server-provided detail when available.
	Message string

	Cause error
}

func (e *TransportError) Error() string {
	msg := e.Op + ": " + e.Kind.String()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Sentinel errors for easy checking with errors.Is.
var (
	ErrNotReachable = &TransportError{Kind: KindNotReachable}
	ErrTimeout      = &TransportError{Kind: KindTimeout}
)

// Is matches sentinel errors by kind.
func (e *TransportError) Is(target error) bool {
	t, ok := target.(*TransportError)
	if !ok {
		return false
	}
	return t.Op == "" && t.Status == 0 && t.Message == "" && t.Cause == nil && t.Kind == e.Kind
}

// classify maps an http.Client error onto a TransportError.
func classify(op string, err error) *TransportError {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return &TransportError{Kind: KindCanceled, Op: op, Cause: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &TransportError{Kind: KindTimeout, Op: op, Cause: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &TransportError{Kind: KindTimeout, Op: op, Cause: err}
	default:
		return &TransportError{Kind: KindNotReachable, Op: op, Cause: err}
	}
}

// IsTimeout returns true if err is a transport timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNotReachable returns true if the service could not be reached.
func IsNotReachable(err error) bool {
	return errors.Is(err, ErrNotReachable)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}
