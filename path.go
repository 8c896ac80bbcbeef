// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

package ustar

import (
	"bytes"
	"fmt"
	"strings"
)

// SplitPath is a pathname already divided into ustar prefix and name fields.
type SplitPath struct {
	// Prefix is directory part stored in the 155-byte prefix field (may be empty).
	Prefix []byte `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	// Name is final part stored in the 100-byte name field; directories end with "/".
	Name []byte `json:"name" yaml:"name"`
}

// String returns the resolved pathname.
func (p SplitPath) String() string {
	return joinPathname(string(p.Prefix), string(p.Name))
}

// NormalizePathname removes empty segments and a leading "./" and appends "/" for directories.
func NormalizePathname(pathname string, isDir bool) string {
	parts := strings.Split(pathname, "/")
	clean := parts[:0]
	for i, part := range parts {
		if part == "" {
			continue
		}
		if part == "." && len(clean) == 0 && i < len(parts)-1 {
			continue
		}

		clean = append(clean, part)
	}

	normalized := strings.Join(clean, "/")
	if isDir && normalized != "" {
		normalized += "/"
	}

	return normalized
}

// Split normalizes pathname and divides it into prefix and name fields.
// Names up to 100 bytes are returned with empty prefix. Longer names are cut at
// the leftmost "/" that keeps name within 100 bytes; the prefix must fit 155 bytes.
func Split(pathname string, isDir bool) (prefix []byte, name []byte, err error) {
	full := []byte(NormalizePathname(pathname, isDir))
	if len(full) == 0 {
		return nil, nil, fmt.Errorf("%w: empty pathname %q", ErrPathname, pathname)
	}
	if len(full) <= nameSize {
		return nil, full, nil
	}
	if len(full) > maxPathSize {
		return nil, nil, fmt.Errorf("%w: %q is %d bytes, limit is %d", ErrPathname, full, len(full), maxPathSize)
	}

	// A directory's trailing slash belongs to the name part.
	searchEnd := len(full)
	if isDir {
		searchEnd--
	}

	cut := bytes.LastIndexByte(full[:searchEnd], '/')
	if cut < 0 || len(full)-cut-1 > nameSize {
		return nil, nil, fmt.Errorf("%w: final segment of %q exceeds %d bytes", ErrPathname, full, nameSize)
	}

	for {
		next := bytes.LastIndexByte(full[:cut], '/')
		if next < 0 || len(full)-next-1 > nameSize {
			break
		}

		cut = next
	}

	if cut > prefixSize {
		return nil, nil, fmt.Errorf("%w: prefix of %q is %d bytes, limit is %d", ErrPathname, full, cut, prefixSize)
	}

	return full[:cut], full[cut+1:], nil
}

// validateSplitPath checks pre-split field widths and the trailing-slash directory convention.
func validateSplitPath(p SplitPath, isDir bool) error {
	if len(p.Name) == 0 {
		return fmt.Errorf("%w: empty name field", ErrPathname)
	}
	if len(p.Name) > nameSize {
		return fmt.Errorf("%w: name field is %d bytes, limit is %d", ErrPathname, len(p.Name), nameSize)
	}
	if len(p.Prefix) > prefixSize {
		return fmt.Errorf("%w: prefix field is %d bytes, limit is %d", ErrPathname, len(p.Prefix), prefixSize)
	}

	hasSlash := p.Name[len(p.Name)-1] == '/'
	if isDir && !hasSlash {
		return fmt.Errorf("%w: directory name %q must end with \"/\"", ErrPathname, p.Name)
	}
	if !isDir && hasSlash {
		return fmt.Errorf("%w: file name %q must not end with \"/\"", ErrPathname, p.Name)
	}

	return nil
}

// joinPathname resolves prefix and name into one pathname.
func joinPathname(prefix string, name string) string {
	if prefix == "" {
		return name
	}

	return prefix + "/" + name
}
