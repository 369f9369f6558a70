// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

package mkr5

import "fmt"

// DecodeErrorKind classifies why a candidate byte sequence failed to decode.
type DecodeErrorKind int

const (
	// Malformed means the bytes looked like a Data frame but violated the
	// declared structure (bad length, missing ETX or stop flag).
	Malformed DecodeErrorKind = iota

	// Unrecognized means the bytes match no known frame shape at all.
	Unrecognized

	// CRCMismatch means the frame was structurally sound but failed the
	// integrity check. The frame is discarded, never corrected.
	CRCMismatch

	// UnknownCommand means a valid Data frame carried a command nibble this
	// implementation does not know how to interpret.
	UnknownCommand
)

// String implements fmt.Stringer.
func (k DecodeErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case Unrecognized:
		return "unrecognized"
	case CRCMismatch:
		return "crc mismatch"
	case UnknownCommand:
		return "unknown command"
	default:
		return fmt.Sprintf("DecodeErrorKind(%d)", int(k))
	}
}

// DecodeError is the typed failure returned by frame and response decoding.
// Decoding never panics on malformed input; callers log and discard.
type DecodeError struct {
	Kind   DecodeErrorKind
	Reason string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func decodeErrorf(kind DecodeErrorKind, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// IsDecodeError reports whether err is a *DecodeError of the given kind.
func IsDecodeError(err error, kind DecodeErrorKind) bool {
	de, ok := err.(*DecodeError)
	return ok && de.Kind == kind
}
