// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import "errors"

// ErrUnsupported is returned when no speech recognizer is available.
var ErrUnsupported = errors.New("speech recognition is not supported in this environment")

// Capture operations reported in CaptureError.Op.
const (
	OpStart  = "start"
	OpListen = "listen"
	OpSubmit = "submit"
)

// CaptureError reports a failed voice capture. The partial transcript, if
// any, has been discarded.
type CaptureError struct {
	Op  string
	Err error
}

func (e *CaptureError) Error() string {
	switch e.Op {
	case OpStart:
		return "could not start speech recognition: " + e.Err.Error()
	case OpSubmit:
		return "transcript not sent: " + e.Err.Error()
	default:
		return "speech recognition error: " + e.Err.Error()
	}
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}
