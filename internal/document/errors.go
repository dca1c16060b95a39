// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package document

import (
	"errors"
	"fmt"
)

// ErrUploadInProgress is returned when an upload is requested while another
// one has not finished.
var ErrUploadInProgress = errors.New("an upload is already in progress")

// Reason categorizes upload failures.
type Reason int

const (
	// ReasonTransport means the service could not index the document.
	ReasonTransport Reason = iota
	// ReasonUnreadable means the file could not be opened or read.
	ReasonUnreadable
	// ReasonNotPDF means the file is not a PDF.
	ReasonNotPDF
	// ReasonTooLarge means the file exceeds the configured limit.
	ReasonTooLarge
)

// UploadError is returned by Manager.Upload.
type UploadError struct {
	Reason Reason
	Name   string
	Cause  error
}

func (e *UploadError) Error() string {
	var msg string
	switch e.Reason {
	case ReasonUnreadable:
		msg = fmt.Sprintf("cannot read %s", e.Name)
	case ReasonNotPDF:
		msg = fmt.Sprintf("%s is not a PDF file", e.Name)
	case ReasonTooLarge:
		msg = fmt.Sprintf("%s is too large", e.Name)
	default:
		msg = fmt.Sprintf("failed to upload %s", e.Name)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *UploadError) Unwrap() error {
	return e.Cause
}

// Validation reports whether the upload was rejected before reaching the
// service.
func (e *UploadError) Validation() bool {
	return e.Reason != ReasonTransport
}
