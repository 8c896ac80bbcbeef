// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

package ustar

import (
	"context"
	"fmt"
	"io"
	"os"
)

// ListEntries decodes all member headers from r, skipping file bodies.
// Returned entries have nil Body.
func ListEntries(ctx context.Context, r io.Reader, opts DecoderOptions) ([]Entry, error) {
	opts.SkipUnreadBodies = true

	dec, err := NewDecoder(r, opts)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for entry, err := range dec.Entries(ctx) {
		if err != nil {
			return nil, err
		}

		listed := *entry
		listed.Body = nil
		entries = append(entries, listed)
	}

	return entries, nil
}

// ListEntriesFile opens archive by path and returns member headers without reading bodies.
func ListEntriesFile(ctx context.Context, path string, opts DecoderOptions) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ListEntries(ctx, f, opts)
}

// ReadEntry scans r for the first regular file with pathname name and returns its bytes.
// The rest of the archive is not validated once the file is found.
func ReadEntry(ctx context.Context, r io.Reader, name string, opts DecoderOptions) ([]byte, error) {
	opts.SkipUnreadBodies = true

	dec, err := NewDecoder(r, opts)
	if err != nil {
		return nil, err
	}

	lookup := NormalizePathname(name, false)
	for entry, err := range dec.Entries(ctx) {
		if err != nil {
			return nil, err
		}
		if entry.Body == nil || NormalizePathname(entry.Path, false) != lookup {
			continue
		}

		return io.ReadAll(entry.Body)
	}

	return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
}
