// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/cosnicolaou/pbzip2"
	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/pierrec/lz4/v4"
)

// Compression format names accepted by --compression.
const (
	compressionAuto          = "auto"
	compressionNone          = "none"
	compressionGzip          = "gzip"
	compressionParallelGzip  = "parallelgzip"
	compressionLZ4           = "lz4"
	compressionZstd          = "zstd"
	compressionBrotli        = "brotli"
	compressionBzip2         = "bzip2"
	compressionParallelBzip2 = "parallelbzip2"
)

// Compression level names accepted by --compression-level.
const (
	levelFastest  = "fastest"
	levelBalanced = "balanced"
	levelSmallest = "smallest"
)

var (
	// errUnsupportedCompression is returned for unknown compression format names.
	errUnsupportedCompression = errors.New("unsupported compression format")
	// errUnsupportedLevel is returned for unknown compression level names.
	errUnsupportedLevel = errors.New("unsupported compression level")

	knownCompressionFormats = []string{
		compressionNone,
		compressionGzip,
		compressionParallelGzip,
		compressionLZ4,
		compressionZstd,
		compressionBrotli,
		compressionBzip2,
		compressionParallelBzip2,
	}
	knownCompressionLevels = []string{levelFastest, levelBalanced, levelSmallest}

	gzipMagic  = []byte{0x1f, 0x8b}
	zstdMagic  = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic   = []byte{0x04, 0x22, 0x4d, 0x18}
	bzip2Magic = []byte("BZh")
)

// nopWriteCloser adds a no-op Close to a plain writer.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// levelIndex maps a level name to 0 (fastest), 1 (balanced) or 2 (smallest).
func levelIndex(level string) (int, error) {
	switch level {
	case levelFastest:
		return 0, nil
	case levelBalanced, "":
		return 1, nil
	case levelSmallest:
		return 2, nil
	default:
		return 0, fmt.Errorf("%w: %q", errUnsupportedLevel, level)
	}
}

// compressWriter wraps dst with the selected compression stage.
// Closing the result flushes the compressor but leaves dst open.
func compressWriter(dst io.Writer, format string, level string) (io.WriteCloser, error) {
	if format == compressionNone || format == "" {
		return nopWriteCloser{dst}, nil
	}

	idx, err := levelIndex(level)
	if err != nil {
		return nil, err
	}

	switch format {
	case compressionGzip:
		return gzip.NewWriterLevel(dst, [...]int{gzip.BestSpeed, gzip.DefaultCompression, gzip.BestCompression}[idx])

	case compressionParallelGzip:
		return pgzip.NewWriterLevel(dst, [...]int{pgzip.BestSpeed, pgzip.DefaultCompression, pgzip.BestCompression}[idx])

	case compressionLZ4:
		lz := lz4.NewWriter(dst)
		l := [...]lz4.CompressionLevel{lz4.Level1, lz4.Level5, lz4.Level9}[idx]
		if err := lz.Apply(lz4.CompressionLevelOption(l), lz4.ConcurrencyOption(-1)); err != nil {
			return nil, err
		}

		return lz, nil

	case compressionZstd:
		l := [...]zstd.EncoderLevel{zstd.SpeedFastest, zstd.SpeedDefault, zstd.SpeedBestCompression}[idx]
		return zstd.NewWriter(dst, zstd.WithEncoderLevel(l))

	case compressionBrotli:
		return brotli.NewWriterLevel(dst, [...]int{brotli.BestSpeed, brotli.DefaultCompression, brotli.BestCompression}[idx]), nil

	case compressionBzip2, compressionParallelBzip2:
		return bzip2.NewWriter(dst, &bzip2.WriterConfig{
			Level: [...]int{bzip2.BestSpeed, bzip2.DefaultCompression, bzip2.BestCompression}[idx],
		})

	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedCompression, format)
	}
}

// decompressReader wraps src with the matching decompression stage.
// Format auto sniffs the stream magic and falls back to plain tar;
// brotli has no magic and must be named explicitly.
func decompressReader(ctx context.Context, src io.Reader, format string) (io.ReadCloser, error) {
	if format == compressionAuto || format == "" {
		br := bufio.NewReader(src)
		// Short streams are left to the archive decoder to reject.
		magic, _ := br.Peek(len(zstdMagic))
		format = detectCompression(magic)
		src = br
	}

	switch format {
	case compressionNone:
		return io.NopCloser(src), nil

	case compressionGzip:
		return gzip.NewReader(src)

	case compressionParallelGzip:
		return pgzip.NewReader(src)

	case compressionLZ4:
		lz := lz4.NewReader(src)
		if err := lz.Apply(lz4.ConcurrencyOption(-1)); err != nil {
			return nil, err
		}

		return io.NopCloser(lz), nil

	case compressionZstd:
		zr, err := zstd.NewReader(src)
		if err != nil {
			return nil, err
		}

		return zr.IOReadCloser(), nil

	case compressionBrotli:
		return io.NopCloser(brotli.NewReader(src)), nil

	case compressionBzip2:
		return bzip2.NewReader(src, nil)

	case compressionParallelBzip2:
		return io.NopCloser(pbzip2.NewReader(ctx, src)), nil

	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedCompression, format)
	}
}

// detectCompression names the compression format from leading stream bytes.
func detectCompression(magic []byte) string {
	switch {
	case bytes.HasPrefix(magic, zstdMagic):
		return compressionZstd
	case bytes.HasPrefix(magic, gzipMagic):
		return compressionGzip
	case bytes.HasPrefix(magic, lz4Magic):
		return compressionLZ4
	case bytes.HasPrefix(magic, bzip2Magic):
		return compressionBzip2
	default:
		return compressionNone
	}
}
