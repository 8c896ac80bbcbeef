// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

package ustar

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

// sampleArchive returns archive with directories and files of assorted sizes.
func sampleArchive(tb testing.TB) ([]byte, map[string][]byte) {
	tb.Helper()

	bodies := map[string][]byte{
		"root.txt":          []byte("root"),
		"assets/empty.bin":  {},
		"assets/block.bin":  bytes.Repeat([]byte{'b'}, BlockSize),
		"assets/odd.bin":    bytes.Repeat([]byte{'o'}, 1300),
		"assets/deep/x.cfg": []byte("x = 1\n"),
	}

	items := []Descriptor{Directory{Path: "assets"}, Directory{Path: "assets/deep"}}
	for _, name := range []string{"root.txt", "assets/empty.bin", "assets/block.bin", "assets/odd.bin", "assets/deep/x.cfg"} {
		items = append(items, File{
			Path: name,
			Size: int64(len(bodies[name])),
			Body: bytes.NewReader(bodies[name]),
		})
	}

	return encodeArchive(tb, EncoderOptions{}, items...), bodies
}

// openSingleFile returns decoder positioned at body of the only member of archive.
func openSingleFile(t *testing.T, archive []byte, opts DecoderOptions) (*Decoder, *Entry) {
	t.Helper()

	dec, err := NewDecoder(bytes.NewReader(archive), opts)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	entry, err := dec.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if entry.Body == nil {
		t.Fatalf("entry %s has no body", entry.Path)
	}

	return dec, entry
}

func TestDecode_RoundTripChunked(t *testing.T) {
	t.Parallel()

	archive, bodies := sampleArchive(t)
	wantPaths := []string{
		"assets/", "assets/deep/", "root.txt", "assets/empty.bin",
		"assets/block.bin", "assets/odd.bin", "assets/deep/x.cfg",
	}

	for _, chunk := range []int{1, 100, 512, 777, len(archive)} {
		entries := decodeArchive(t, &chunkReader{r: bytes.NewReader(archive), n: chunk}, DecoderOptions{})
		if got := pathsOf(entries); !slices.Equal(got, wantPaths) {
			t.Fatalf("chunk %d: paths=%q, want %q", chunk, got, wantPaths)
		}

		for _, e := range entries {
			if e.Header.IsDir() {
				continue
			}
			if !bytes.Equal(e.Data, bodies[e.Path]) {
				t.Fatalf("chunk %d: body of %s has %d bytes, want %d", chunk, e.Path, len(e.Data), len(bodies[e.Path]))
			}
			if e.Header.Size != int64(len(bodies[e.Path])) {
				t.Fatalf("chunk %d: Size of %s=%d", chunk, e.Path, e.Header.Size)
			}
		}
	}
}

func TestBody_ReadSmallBuffer(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 1300)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	archive := encodeArchive(t, EncoderOptions{}, File{Path: "odd.bin", Size: int64(len(payload)), Body: bytes.NewReader(payload)})
	_, entry := openSingleFile(t, archive, DecoderOptions{})

	var got []byte
	buf := make([]byte, 7)
	for {
		n, err := entry.Body.Read(buf)
		got = append(got, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}

	if !bytes.Equal(got, payload) {
		t.Fatalf("read %d bytes, want %d identical bytes", len(got), len(payload))
	}
}

func TestBody_ReadChunk(t *testing.T) {
	t.Parallel()

	archive := encodeArchive(t, EncoderOptions{}, File{
		Path: "odd.bin",
		Size: 1300,
		Body: bytes.NewReader(bytes.Repeat([]byte{'c'}, 1300)),
	})
	_, entry := openSingleFile(t, archive, DecoderOptions{})

	var sizes []int
	for {
		chunk, err := entry.Body.ReadChunk()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadChunk: %v", err)
		}

		sizes = append(sizes, len(chunk))
	}

	if want := []int{512, 512, 276}; !slices.Equal(sizes, want) {
		t.Fatalf("chunk sizes=%v, want %v", sizes, want)
	}
}

func TestBody_CancelSkipsRemaining(t *testing.T) {
	t.Parallel()

	archive := encodeArchive(t, EncoderOptions{},
		File{Path: "big.bin", Size: 3000, Body: bytes.NewReader(bytes.Repeat([]byte{'x'}, 3000))},
		textFile("next.txt", "next"),
	)
	dec, entry := openSingleFile(t, archive, DecoderOptions{})

	head := make([]byte, 10)
	if _, err := io.ReadFull(entry.Body, head); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if err := entry.Body.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := entry.Body.Cancel(); err != nil {
		t.Fatalf("second Cancel: %v", err)
	}
	if _, err := entry.Body.Read(head); !errors.Is(err, ErrClosed) {
		t.Fatalf("Read after Cancel err=%v, want ErrClosed", err)
	}

	next, err := dec.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	data, err := io.ReadAll(next.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if next.Path != "next.txt" || string(data) != "next" {
		t.Fatalf("next entry=%s %q, want next.txt next", next.Path, data)
	}

	if _, err := dec.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Next err=%v, want io.EOF", err)
	}
}

func TestDecoder_NextWaitsForBody(t *testing.T) {
	t.Parallel()

	archive := encodeArchive(t, EncoderOptions{},
		textFile("first.txt", "first"),
		textFile("second.txt", "second"),
	)
	dec, entry := openSingleFile(t, archive, DecoderOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := dec.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Next with open body err=%v, want context.DeadlineExceeded", err)
	}

	done := make(chan []byte, 1)
	go func() {
		data, _ := io.ReadAll(entry.Body)
		done <- data
	}()

	next, err := dec.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if next.Path != "second.txt" {
		t.Fatalf("Path=%q, want second.txt", next.Path)
	}
	if data := <-done; string(data) != "first" {
		t.Fatalf("first body=%q, want first", data)
	}
}

func TestDecoder_SkipUnreadBodies(t *testing.T) {
	t.Parallel()

	archive, _ := sampleArchive(t)
	dec, err := NewDecoder(bytes.NewReader(archive), DecoderOptions{SkipUnreadBodies: true})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	var paths []string
	for {
		entry, err := dec.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}

		paths = append(paths, entry.Path)
	}

	if len(paths) != 7 {
		t.Fatalf("paths=%q, want 7 entries", paths)
	}
}

func TestDecoder_EntriesBreakEarly(t *testing.T) {
	t.Parallel()

	archive, _ := sampleArchive(t)
	dec, err := NewDecoder(bytes.NewReader(archive), DecoderOptions{})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	count := 0
	var last *Entry
	for entry, err := range dec.Entries(context.Background()) {
		if err != nil {
			t.Fatalf("Entries: %v", err)
		}

		count++
		if count == 3 {
			last = entry
			break
		}
	}

	// A body kept past break stays open until it is cancelled or read.
	if last.Body == nil {
		t.Fatalf("entry %s has no body", last.Path)
	}
	if err := last.Body.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	rest := 0
	for _, err := range dec.Entries(context.Background()) {
		if err != nil {
			t.Fatalf("Entries: %v", err)
		}

		rest++
	}

	if count+rest != 7 {
		t.Fatalf("count=%d rest=%d, want 7 total", count, rest)
	}
}

func TestDecoder_Close(t *testing.T) {
	t.Parallel()

	archive, _ := sampleArchive(t)
	dec, err := NewDecoder(bytes.NewReader(archive), DecoderOptions{})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	for {
		entry, err := dec.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if entry.Body != nil && entry.Body.Size() > 0 {
			break
		}
	}

	if err := dec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := dec.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Next after Close err=%v, want io.EOF", err)
	}
}

func TestDecode_ZeroSizeBodyResolved(t *testing.T) {
	t.Parallel()

	archive := encodeArchive(t, EncoderOptions{},
		File{Path: "empty.txt"},
		textFile("after.txt", "a"),
	)
	dec, entry := openSingleFile(t, archive, DecoderOptions{})

	select {
	case <-entry.Body.Done():
	default:
		t.Fatal("empty body is not resolved")
	}

	if _, err := entry.Body.Read(make([]byte, 4)); !errors.Is(err, io.EOF) {
		t.Fatalf("Read err=%v, want io.EOF", err)
	}

	next, err := dec.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if next.Path != "after.txt" {
		t.Fatalf("Path=%q, want after.txt", next.Path)
	}
}

func TestDecode_TruncatedBody(t *testing.T) {
	t.Parallel()

	archive := encodeArchive(t, EncoderOptions{}, File{
		Path: "big.bin",
		Size: 1500,
		Body: bytes.NewReader(bytes.Repeat([]byte{'t'}, 1500)),
	})
	// Drop the last body block; the trailer stays intact.
	truncated := slices.Concat(archive[:3*BlockSize], archive[4*BlockSize:])

	t.Run("read", func(t *testing.T) {
		t.Parallel()

		dec, entry := openSingleFile(t, truncated, DecoderOptions{})
		if _, err := io.ReadAll(entry.Body); !errors.Is(err, ErrTruncatedArchive) {
			t.Fatalf("ReadAll err=%v, want ErrTruncatedArchive", err)
		}
		if _, err := dec.Next(context.Background()); !errors.Is(err, ErrTruncatedArchive) {
			t.Fatalf("Next err=%v, want ErrTruncatedArchive", err)
		}
	})

	t.Run("cancel", func(t *testing.T) {
		t.Parallel()

		_, entry := openSingleFile(t, truncated, DecoderOptions{})
		if err := entry.Body.Cancel(); !errors.Is(err, ErrTruncatedArchive) {
			t.Fatalf("Cancel err=%v, want ErrTruncatedArchive", err)
		}
	})
}

func TestDecode_EndErrors(t *testing.T) {
	t.Parallel()

	archive := encodeArchive(t, EncoderOptions{},
		Directory{Path: "potato"},
		textFile("text.txt", "Hello World!"),
	)
	badTrailer := bytes.Clone(archive)
	badTrailer[len(badTrailer)-1] = 1

	testCases := []struct {
		want error
		name string
		data []byte
	}{
		{name: "not aligned", data: archive[:len(archive)-100], want: ErrTruncatedArchive},
		{name: "empty", data: nil, want: ErrArchiveTooSmall},
		{name: "single block", data: make([]byte, BlockSize), want: ErrArchiveTooSmall},
		{name: "trailer corrupted", data: badTrailer, want: ErrInvalidTrailer},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			dec, err := NewDecoder(bytes.NewReader(tc.data), DecoderOptions{})
			if err != nil {
				t.Fatalf("NewDecoder: %v", err)
			}

			var gotErr error
			for _, err := range dec.Entries(context.Background()) {
				if err != nil {
					gotErr = err
				}
			}
			if !errors.Is(gotErr, tc.want) {
				t.Fatalf("err=%v, want %v", gotErr, tc.want)
			}
		})
	}
}

func TestDecode_RecordPadding(t *testing.T) {
	t.Parallel()

	archive := encodeArchive(t, EncoderOptions{}, textFile("text.txt", "Hello World!"))
	padded := append(bytes.Clone(archive), make([]byte, 16*BlockSize)...)

	entries := decodeArchive(t, bytes.NewReader(padded), DecoderOptions{SkipZeroBlocks: true})
	if got := pathsOf(entries); !slices.Equal(got, []string{"text.txt"}) {
		t.Fatalf("paths=%q, want [text.txt]", got)
	}
}

func TestDecode_ZeroHeaderBlockChecksum(t *testing.T) {
	t.Parallel()

	t.Run("only zero blocks", func(t *testing.T) {
		t.Parallel()

		dec, err := NewDecoder(bytes.NewReader(make([]byte, 3*BlockSize)), DecoderOptions{})
		if err != nil {
			t.Fatalf("NewDecoder: %v", err)
		}

		if _, err := dec.Next(context.Background()); !errors.Is(err, ErrChecksum) {
			t.Fatalf("Next err=%v, want ErrChecksum", err)
		}
	})

	t.Run("padding after member", func(t *testing.T) {
		t.Parallel()

		archive := encodeArchive(t, EncoderOptions{}, textFile("text.txt", "Hello World!"))
		padded := append(bytes.Clone(archive), make([]byte, 4*BlockSize)...)

		dec, err := NewDecoder(bytes.NewReader(padded), DecoderOptions{})
		if err != nil {
			t.Fatalf("NewDecoder: %v", err)
		}

		entry, err := dec.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if err := entry.Body.Cancel(); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if _, err := dec.Next(context.Background()); !errors.Is(err, ErrChecksum) {
			t.Fatalf("Next err=%v, want ErrChecksum", err)
		}
	})

	t.Run("skip enabled", func(t *testing.T) {
		t.Parallel()

		entries, err := ListEntries(context.Background(), bytes.NewReader(make([]byte, 3*BlockSize)), DecoderOptions{SkipZeroBlocks: true})
		if err != nil {
			t.Fatalf("ListEntries: %v", err)
		}
		if len(entries) != 0 {
			t.Fatalf("len(entries)=%d, want 0", len(entries))
		}
	})
}

func TestDecode_Filter(t *testing.T) {
	t.Parallel()

	archive, bodies := sampleArchive(t)
	entries := decodeArchive(t, bytes.NewReader(archive), DecoderOptions{
		Filter: excludeRules("*.bin"),
	})

	want := []string{"assets/", "assets/deep/", "root.txt", "assets/deep/x.cfg"}
	if got := pathsOf(entries); !slices.Equal(got, want) {
		t.Fatalf("paths=%q, want %q", got, want)
	}
	if !bytes.Equal(entries[3].Data, bodies["assets/deep/x.cfg"]) {
		t.Fatalf("x.cfg body=%q after skipped members", entries[3].Data)
	}
}

func TestNewDecoder_Errors(t *testing.T) {
	t.Parallel()

	if _, err := NewDecoder(nil, DecoderOptions{}); !errors.Is(err, ErrNilReader) {
		t.Fatalf("NewDecoder(nil) err=%v, want ErrNilReader", err)
	}
}

func TestListEntries(t *testing.T) {
	t.Parallel()

	archive, bodies := sampleArchive(t)

	entries, err := ListEntries(context.Background(), bytes.NewReader(archive), DecoderOptions{})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 7 {
		t.Fatalf("len(entries)=%d, want 7", len(entries))
	}

	for _, e := range entries {
		if e.Body != nil {
			t.Fatalf("entry %s has body", e.Path)
		}
		if want, ok := bodies[e.Path]; ok && e.Header.Size != int64(len(want)) {
			t.Fatalf("Size of %s=%d, want %d", e.Path, e.Header.Size, len(want))
		}
	}

	path := filepath.Join(t.TempDir(), "sample.tar")
	if err := os.WriteFile(path, archive, 0o600); err != nil {
		t.Fatal(err)
	}

	fromFile, err := ListEntriesFile(context.Background(), path, DecoderOptions{})
	if err != nil {
		t.Fatalf("ListEntriesFile: %v", err)
	}
	if len(fromFile) != len(entries) {
		t.Fatalf("len(fromFile)=%d, want %d", len(fromFile), len(entries))
	}
}

func TestReadEntry(t *testing.T) {
	t.Parallel()

	archive, bodies := sampleArchive(t)

	data, err := ReadEntry(context.Background(), bytes.NewReader(archive), "./assets/deep/x.cfg", DecoderOptions{})
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if !bytes.Equal(data, bodies["assets/deep/x.cfg"]) {
		t.Fatalf("data=%q, want %q", data, bodies["assets/deep/x.cfg"])
	}

	_, err = ReadEntry(context.Background(), bytes.NewReader(archive), "missing.txt", DecoderOptions{})
	if !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("ReadEntry missing err=%v, want ErrEntryNotFound", err)
	}
}
