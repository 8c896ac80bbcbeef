// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

package ustar

import (
	"bytes"
	"context"
	"io"
	"iter"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/woozymasta/pathrules"
)

// fixedTime is deterministic modification time for test archives.
var fixedTime = time.Unix(1700000000, 0)

// fixedNow returns fixedTime as encoder clock.
func fixedNow() time.Time {
	return fixedTime
}

// decodedEntry is one fully read member for assertions.
type decodedEntry struct {
	Path   string
	Data   []byte
	Header Header
}

// chunkReader returns at most n bytes per Read call.
type chunkReader struct {
	r io.Reader
	n int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(p) > c.n {
		p = p[:c.n]
	}

	return c.r.Read(p)
}

// includeRules builds include rules from raw patterns for concise test setup.
func includeRules(patterns ...string) []pathrules.Rule {
	rules := make([]pathrules.Rule, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		rules = append(rules, pathrules.Rule{
			Action:  pathrules.ActionInclude,
			Pattern: pattern,
		})
	}

	return rules
}

// excludeRules builds exclude rules from raw patterns for concise test setup.
func excludeRules(patterns ...string) []pathrules.Rule {
	rules := includeRules(patterns...)
	for i := range rules {
		rules[i].Action = pathrules.ActionExclude
	}

	return rules
}

// descriptors wraps items into an encode iterator.
func descriptors(items ...Descriptor) iter.Seq[Descriptor] {
	return slices.Values(items)
}

// textFile returns file descriptor with string body.
func textFile(path string, body string) File {
	return File{
		Path: path,
		Size: int64(len(body)),
		Body: strings.NewReader(body),
	}
}

// encodeArchive encodes items with fixed clock and returns archive bytes.
func encodeArchive(tb testing.TB, opts EncoderOptions, items ...Descriptor) []byte {
	tb.Helper()

	if opts.Now == nil {
		opts.Now = fixedNow
	}

	var buf bytes.Buffer
	if _, err := Encode(context.Background(), &buf, descriptors(items...), opts); err != nil {
		tb.Fatalf("Encode: %v", err)
	}

	return buf.Bytes()
}

// decodeArchive reads every member and its body from r.
func decodeArchive(tb testing.TB, r io.Reader, opts DecoderOptions) []decodedEntry {
	tb.Helper()

	dec, err := NewDecoder(r, opts)
	if err != nil {
		tb.Fatalf("NewDecoder: %v", err)
	}

	var out []decodedEntry
	for entry, err := range dec.Entries(context.Background()) {
		if err != nil {
			tb.Fatalf("Entries: %v", err)
		}

		got := decodedEntry{Path: entry.Path, Header: entry.Header}
		if entry.Body != nil {
			got.Data, err = io.ReadAll(entry.Body)
			if err != nil {
				tb.Fatalf("read body %s: %v", entry.Path, err)
			}
		}

		out = append(out, got)
	}

	return out
}

// patchHeader applies fn to header block at index and refreshes its checksum.
func patchHeader(tb testing.TB, archive []byte, index int, fn func(b *block)) []byte {
	tb.Helper()

	start := index * BlockSize
	if start+BlockSize > len(archive) {
		tb.Fatalf("block %d is outside archive of %d bytes", index, len(archive))
	}

	out := bytes.Clone(archive)
	var b block
	copy(b[:], out[start:start+BlockSize])
	fn(&b)
	b.setChecksum()
	copy(out[start:], b[:])

	return out
}

// pathsOf returns entry pathnames in order.
func pathsOf(entries []decodedEntry) []string {
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}

	return paths
}
