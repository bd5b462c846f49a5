// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies per-item sync failures. The kind decides the remedy
// the caller is offered: retry, edit-and-retry, manual hotel selection, or
// skip.
type ErrorKind string

const (
	// KindExtraction means no extractor could produce the required fields.
	KindExtraction ErrorKind = "extraction_failed"
	// KindAmbiguous means the hotel name matched several candidates and a
	// human decision is required. Never retried automatically.
	KindAmbiguous ErrorKind = "resolution_ambiguous"
	// KindHotelNotFound means no candidate scored above the similarity
	// threshold.
	KindHotelNotFound ErrorKind = "hotel_not_found"
	// KindReferenceMiss means a room or board code is unknown to the
	// external system.
	KindReferenceMiss ErrorKind = "reference_lookup_miss"
	// KindProtocol means the external system rejected a phase-1 or phase-2
	// call; the message carries its error code verbatim.
	KindProtocol ErrorKind = "protocol_failure"
	// KindTransient covers timeouts, connection errors and 5xx responses.
	// Retried with backoff up to the configured bound.
	KindTransient ErrorKind = "transient_failure"
	// KindAuth means the tenant credentials were rejected.
	KindAuth ErrorKind = "auth_failure"
)

// SyncError is an error with a classification kind attached.
type SyncError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *SyncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SyncError) Unwrap() error { return e.Err }

// NewSyncError builds a classified error.
func NewSyncError(kind ErrorKind, format string, args ...any) *SyncError {
	return &SyncError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapSyncError classifies an underlying error.
func WrapSyncError(kind ErrorKind, err error, format string, args ...any) *SyncError {
	return &SyncError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the classification from an error chain. Unclassified
// errors default to KindTransient so unknown failures stay retryable rather
// than being reported as permanent.
func KindOf(err error) ErrorKind {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindTransient
}

// Retryable reports whether a failure of this kind may be retried
// automatically. Validation-shaped failures need user remediation instead.
func (k ErrorKind) Retryable() bool {
	return k == KindTransient
}
