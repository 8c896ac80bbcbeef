// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

package ustar

import (
	"fmt"
	"time"
)

// Field width limits for option strings.
const (
	maxIDDigits  = 6 // mode, uid, gid
	maxDevDigits = 8 // devmajor, devminor
)

// validate checks option field widths and charsets.
func (o *EntryOptions) validate() error {
	octal := []struct {
		name  string
		value string
		limit int
	}{
		{name: "mode", value: o.Mode, limit: maxIDDigits},
		{name: "uid", value: o.UID, limit: maxIDDigits},
		{name: "gid", value: o.GID, limit: maxIDDigits},
		{name: "devmajor", value: o.Devmajor, limit: maxDevDigits},
		{name: "devminor", value: o.Devminor, limit: maxDevDigits},
	}
	for _, f := range octal {
		if len(f.value) > f.limit {
			return fmt.Errorf("%w: %s %q exceeds %d octal digits", ErrInvalidOptions, f.name, f.value, f.limit)
		}
		if !isOctalDigits(f.value) {
			return fmt.Errorf("%w: %s %q is not octal", ErrInvalidOptions, f.name, f.value)
		}
	}

	for _, f := range []struct {
		name  string
		value string
	}{
		{name: "uname", value: o.Uname},
		{name: "gname", value: o.Gname},
	} {
		if len(f.value) > ownerSize {
			return fmt.Errorf("%w: %s %q exceeds %d bytes", ErrInvalidOptions, f.name, f.value, ownerSize)
		}
		if !isASCII(f.value) {
			return fmt.Errorf("%w: %s %q is not ASCII", ErrInvalidOptions, f.name, f.value)
		}
	}

	if !o.ModTime.IsZero() {
		sec := o.ModTime.Unix()
		if sec < 0 || sec > maxModTime {
			return fmt.Errorf("%w: mtime %d does not fit 11 octal digits", ErrInvalidOptions, sec)
		}
	}

	return nil
}

// withDefaults returns a copy with mode and mtime defaults applied for member kind.
func (o EntryOptions) withDefaults(isDir bool, now func() time.Time) EntryOptions {
	if o.Mode == "" {
		o.Mode = DefaultFileMode
		if isDir {
			o.Mode = DefaultDirMode
		}
	}

	if o.ModTime.IsZero() {
		o.ModTime = now()
	}

	return o
}

// isOctalDigits reports whether s contains only '0'..'7'.
func isOctalDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '7' {
			return false
		}
	}

	return true
}

// isASCII reports whether s contains only ASCII bytes.
func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}

	return true
}
