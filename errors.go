// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

package ustar

import "errors"

// Sentinel errors for ustar operations. Use errors.Is in callers.
var (
	// ErrInvalidOptions means one of entry options (mode, uid, gid, mtime, uname, gname, devmajor, devminor) is malformed.
	ErrInvalidOptions = errors.New("invalid entry options")
	// ErrInvalidSize means declared file size is negative or does not fit the size field.
	ErrInvalidSize = errors.New("invalid file size")
	// ErrPathname means pathname cannot be split into ustar prefix/name fields or pre-split form is inconsistent.
	ErrPathname = errors.New("invalid pathname")
	// ErrSizeMismatch means body producer returned a different byte count than declared.
	ErrSizeMismatch = errors.New("body size does not match declared size")
	// ErrChecksum means header checksum does not match header bytes.
	ErrChecksum = errors.New("invalid header checksum")
	// ErrInvalidHeader means a numeric header field is not valid octal.
	ErrInvalidHeader = errors.New("invalid header field")
	// ErrTruncatedArchive means stream ended mid-header, mid-body, or is not block aligned.
	ErrTruncatedArchive = errors.New("truncated archive")
	// ErrArchiveTooSmall means stream ended before two trailer blocks were seen.
	ErrArchiveTooSmall = errors.New("archive too small")
	// ErrInvalidTrailer means the two final blocks are not all zero.
	ErrInvalidTrailer = errors.New("invalid end-of-archive trailer")
	// ErrDuplicatePath means two entries resolve to the same pathname in strict mode.
	ErrDuplicatePath = errors.New("duplicate entry path")
	// ErrNilReader means the reader is nil.
	ErrNilReader = errors.New("reader is nil")
	// ErrNilWriter means the writer is nil.
	ErrNilWriter = errors.New("writer is nil")
	// ErrClosed means the encoder, decoder, or body is already closed.
	ErrClosed = errors.New("already closed")
	// ErrNilDescriptor means a nil descriptor was passed to the encoder.
	ErrNilDescriptor = errors.New("descriptor is nil")
	// ErrEntryNotFound means no member with requested pathname exists.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrInvalidFilterRules means one or more path filter rules are invalid.
	ErrInvalidFilterRules = errors.New("invalid filter rules")
	// ErrInvalidExtractPath means archive entry path is invalid for extraction destination.
	ErrInvalidExtractPath = errors.New("invalid extract path")
	// ErrExtractPathOutsideRoot means resolved extraction path escapes destination root.
	ErrExtractPathOutsideRoot = errors.New("extract path escapes destination root")
)
