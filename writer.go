// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

package ustar

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"time"
)

var (
	// defaultCopyBufferPool reuses body copy buffers between encoders.
	defaultCopyBufferPool = sync.Pool{
		New: func() any {
			return new([DefaultCopyBufferSize]byte)
		},
	}
	// zeroBlock is source for body padding and trailer bytes.
	zeroBlock block
)

// Encoder writes members as a ustar byte stream.
// It is not safe for concurrent use.
type Encoder struct {
	// startedAt is encoder creation time for result duration.
	startedAt time.Time
	// w receives archive bytes.
	w io.Writer
	// err is terminal error; every call after a failure returns it.
	err error
	// filter drops excluded members; nil includes all.
	filter *pathFilter
	// seen holds resolved pathnames already written.
	seen map[string]struct{}
	// releaseBuf returns pooled copyBuf.
	releaseBuf func()
	// copyBuf is body copy buffer.
	copyBuf []byte
	// opts are encoder options with defaults applied.
	opts EncoderOptions
	// result accumulates output statistics.
	result EncodeResult
	// hdr is reusable header block.
	hdr block
	// closed reports whether trailer was written.
	closed bool
}

// NewEncoder returns an encoder writing archive bytes to w.
// Close must be called to emit the end-of-archive trailer.
func NewEncoder(w io.Writer, opts EncoderOptions) (*Encoder, error) {
	if w == nil {
		return nil, ErrNilWriter
	}

	opts.applyDefaults()

	filter, err := newPathFilter(opts.Filter, opts.FilterMatcherOptions)
	if err != nil {
		return nil, err
	}

	buf, release := acquireCopyBuffer(opts.CopyBufferSize)

	return &Encoder{
		startedAt:  time.Now(),
		w:          w,
		filter:     filter,
		seen:       make(map[string]struct{}),
		copyBuf:    buf,
		releaseBuf: release,
		opts:       opts,
	}, nil
}

// Encode writes all descriptors from entries followed by the trailer.
// A nil entries sequence produces an empty archive.
func Encode(ctx context.Context, w io.Writer, entries iter.Seq[Descriptor], opts EncoderOptions) (*EncodeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	enc, err := NewEncoder(w, opts)
	if err != nil {
		return nil, err
	}

	if entries != nil {
		for desc := range entries {
			if err := enc.WriteEntry(ctx, desc); err != nil {
				enc.release()
				return nil, err
			}
		}
	}

	if err := enc.Close(); err != nil {
		return nil, err
	}

	res := enc.Result()
	return &res, nil
}

// NewEncodeReader returns a stream producing archive bytes for entries on demand.
// Encoding runs in a goroutine paced by reads; closing the reader stops it.
func NewEncodeReader(ctx context.Context, entries iter.Seq[Descriptor], opts EncoderOptions) io.ReadCloser {
	pr, pw := io.Pipe()
	go streamEncode(ctx, pw, entries, opts)

	return pr
}

// streamEncode runs Encode into pipe writer and propagates its outcome to the reader side.
func streamEncode(ctx context.Context, dst *io.PipeWriter, entries iter.Seq[Descriptor], opts EncoderOptions) {
	if _, err := Encode(ctx, dst, entries, opts); err != nil {
		_ = dst.CloseWithError(err)
		return
	}

	_ = dst.Close()
}

// Result returns output statistics collected so far.
func (e *Encoder) Result() EncodeResult {
	return e.result
}

// WriteEntry validates and writes one member. Members whose pathname was already
// written are skipped silently unless StrictDuplicates is set.
func (e *Encoder) WriteEntry(ctx context.Context, desc Descriptor) error {
	if e.err != nil {
		return e.err
	}
	if e.closed {
		return ErrClosed
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return e.fail(err)
		}
	}

	var err error
	switch d := desc.(type) {
	case nil:
		err = ErrNilDescriptor
	case File:
		err = e.writeFile(&d)
	case *File:
		if d == nil {
			err = fmt.Errorf("%w: %T", ErrNilDescriptor, desc)
			break
		}
		err = e.writeFile(d)
	case Directory:
		err = e.writeDirectory(&d)
	case *Directory:
		if d == nil {
			err = fmt.Errorf("%w: %T", ErrNilDescriptor, desc)
			break
		}
		err = e.writeDirectory(d)
	default:
		err = fmt.Errorf("unsupported descriptor %T", desc)
	}

	if err != nil {
		return e.fail(err)
	}

	return nil
}

// Close writes the two-block trailer once and releases buffers.
func (e *Encoder) Close() error {
	if e.closed {
		return e.err
	}
	if e.err != nil {
		e.release()
		return e.err
	}

	e.closed = true
	defer e.release()

	for range trailerBlocks {
		if err := e.write(zeroBlock[:], "trailer"); err != nil {
			return e.fail(err)
		}
	}

	e.result.Duration = time.Since(e.startedAt)
	e.opts.Logger.Debug("archive written",
		slog.Int("entries", e.result.WrittenEntries),
		slog.Int64("bytes", e.result.TotalSize),
	)

	return nil
}

// writeFile writes header, body, and padding for one file member.
func (e *Encoder) writeFile(f *File) error {
	if f.Size < 0 || f.Size > MaxFileSize {
		return fmt.Errorf("%w: %d is outside [0, %d]", ErrInvalidSize, f.Size, int64(MaxFileSize))
	}

	split, skip, err := e.prepare(f.Path, f.Split, false, &f.Options)
	if err != nil || skip {
		return err
	}

	src, closeSrc, err := openFileBody(f)
	if err != nil {
		return err
	}

	offset := e.result.TotalSize
	opts := f.Options.withDefaults(false, e.opts.Now)
	if err := e.writeHeader(split, TypeReg, f.Size, opts); err != nil {
		_ = closeSrc()
		return err
	}

	written, copyErr := copyBodyBounded(e.w, src, f.Size, e.copyBuf)
	e.result.TotalSize += written
	e.result.DataSize += written
	closeErr := closeSrc()

	pathname := split.String()
	if copyErr != nil {
		return fmt.Errorf("write body %s: %w", pathname, copyErr)
	}
	if written != f.Size {
		return fmt.Errorf("%w: %s produced %d bytes, declared %d", ErrSizeMismatch, pathname, written, f.Size)
	}
	if closeErr != nil {
		return fmt.Errorf("close body %s: %w", pathname, closeErr)
	}

	padding := blockPadding(f.Size)
	if padding > 0 {
		if err := e.write(zeroBlock[:padding], "padding"); err != nil {
			return err
		}
	}

	e.done(EntryProgress{
		Path:         pathname,
		Offset:       offset,
		Size:         f.Size,
		Padding:      padding,
		Typeflag:     TypeReg,
		SizeExtended: f.Size >= sizeExtensionThreshold,
	})

	return nil
}

// writeDirectory writes header for one directory member.
func (e *Encoder) writeDirectory(d *Directory) error {
	split, skip, err := e.prepare(d.Path, d.Split, true, &d.Options)
	if err != nil || skip {
		return err
	}

	offset := e.result.TotalSize
	opts := d.Options.withDefaults(true, e.opts.Now)
	if err := e.writeHeader(split, TypeDir, 0, opts); err != nil {
		return err
	}

	e.done(EntryProgress{
		Path:     split.String(),
		Offset:   offset,
		Typeflag: TypeDir,
	})

	return nil
}

// prepare validates options, resolves pathname, and applies filter and duplicate policy.
// It reports skip=true when member must not be written.
func (e *Encoder) prepare(path string, pre *SplitPath, isDir bool, opts *EntryOptions) (SplitPath, bool, error) {
	if err := opts.validate(); err != nil {
		return SplitPath{}, false, err
	}

	var split SplitPath
	if pre != nil {
		if err := validateSplitPath(*pre, isDir); err != nil {
			return SplitPath{}, false, err
		}

		split = *pre
	} else {
		prefix, name, err := Split(path, isDir)
		if err != nil {
			return SplitPath{}, false, err
		}

		split = SplitPath{Prefix: prefix, Name: name}
	}

	pathname := split.String()
	if !e.filter.Included(pathname, isDir) {
		e.result.FilteredEntries++
		e.opts.Logger.Debug("entry excluded by filter", slog.String("path", pathname))
		return split, true, nil
	}

	if _, ok := e.seen[pathname]; ok {
		if e.opts.StrictDuplicates {
			return SplitPath{}, false, fmt.Errorf("%w: %q", ErrDuplicatePath, pathname)
		}

		e.result.SkippedDuplicates++
		e.opts.Logger.Debug("duplicate entry skipped", slog.String("path", pathname))
		return split, true, nil
	}

	e.seen[pathname] = struct{}{}
	return split, false, nil
}

// writeHeader builds, checksums, and writes one header block.
func (e *Encoder) writeHeader(split SplitPath, typeflag byte, size int64, opts EntryOptions) error {
	h := &e.hdr
	h.reset()

	copy(h.name(), split.Name)

	putOctalString(h.mode(), opts.Mode, maxIDDigits)
	copy(h.mode()[maxIDDigits:], " \x00")
	putOctalString(h.uid(), opts.UID, maxIDDigits)
	copy(h.uid()[maxIDDigits:], " \x00")
	putOctalString(h.gid(), opts.GID, maxIDDigits)
	copy(h.gid()[maxIDDigits:], " \x00")

	// Sizes from 8^11 widen to all 12 digits with no terminator.
	if size < sizeExtensionThreshold {
		putOctal(h.size()[:11], size)
		h.size()[11] = ' '
	} else {
		putOctal(h.size(), size)
	}

	putOctal(h.modTime()[:11], opts.ModTime.Unix())
	h.modTime()[11] = ' '

	h.typeflag()[0] = typeflag
	copy(h.magic(), magicUSTAR)
	copy(h.version(), versionUSTAR)
	copy(h.uname(), opts.Uname)
	copy(h.gname(), opts.Gname)
	putDevNumber(h.devmajor(), opts.Devmajor)
	putDevNumber(h.devminor(), opts.Devminor)
	copy(h.prefix(), split.Prefix)

	h.setChecksum()

	return e.write(h[:], "header")
}

// putDevNumber writes device number digits; short values get zero padding and NUL terminator.
func putDevNumber(field []byte, digits string) {
	switch {
	case digits == "":
		return
	case len(digits) >= len(field):
		copy(field, digits)
	default:
		putOctalString(field, digits, len(field)-1)
		field[len(field)-1] = 0
	}
}

// write sends p to output and accounts written bytes.
func (e *Encoder) write(p []byte, what string) error {
	n, err := e.w.Write(p)
	e.result.TotalSize += int64(n)
	if err != nil {
		return fmt.Errorf("write %s: %w", what, err)
	}
	if n != len(p) {
		return fmt.Errorf("write %s: %w", what, io.ErrShortWrite)
	}

	return nil
}

// done records a completed member.
func (e *Encoder) done(progress EntryProgress) {
	e.result.WrittenEntries++
	if e.opts.OnEntryDone != nil {
		e.opts.OnEntryDone(progress)
	}
}

// fail stores terminal error.
func (e *Encoder) fail(err error) error {
	if e.err == nil {
		e.err = err
	}

	return e.err
}

// release returns pooled buffers once.
func (e *Encoder) release() {
	if e.releaseBuf != nil {
		e.releaseBuf()
		e.releaseBuf = nil
		e.copyBuf = nil
	}
}

// openFileBody resolves file body source and its close callback.
func openFileBody(f *File) (io.Reader, func() error, error) {
	noClose := func() error { return nil }

	if f.Open != nil {
		rc, err := f.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("open body %s: %w", f.Path, err)
		}

		return rc, rc.Close, nil
	}

	if f.Body != nil {
		return f.Body, noClose, nil
	}

	return eofReader{}, noClose, nil
}

// eofReader is an empty body.
type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

// acquireCopyBuffer returns body copy buffer and release callback.
func acquireCopyBuffer(size int) ([]byte, func()) {
	if size == DefaultCopyBufferSize {
		arr := defaultCopyBufferPool.Get().(*[DefaultCopyBufferSize]byte) //nolint:forcetypeassert // pool contains only fixed-size buffers
		return arr[:], func() {
			defaultCopyBufferPool.Put(arr)
		}
	}

	return make([]byte, size), func() {}
}

// copyBodyBounded streams body from src to dst and stops at limit.
// It returns ErrSizeMismatch when src has more than limit bytes.
func copyBodyBounded(dst io.Writer, src io.Reader, limit int64, buf []byte) (int64, error) {
	var written int64
	emptyReads := 0
	for written < limit {
		chunkSize := len(buf)
		if remaining := limit - written; int64(chunkSize) > remaining {
			chunkSize = int(remaining)
		}

		n, readErr := src.Read(buf[:chunkSize])
		if n > 0 {
			emptyReads = 0
			nw, writeErr := dst.Write(buf[:n])
			written += int64(nw)

			if writeErr != nil {
				return written, writeErr
			}
			if nw != n {
				return written, io.ErrShortWrite
			}
		}
		if n == 0 && readErr == nil {
			emptyReads++
			if emptyReads > 100 {
				return written, io.ErrNoProgress
			}

			continue
		}

		if readErr != nil {
			if readErr == io.EOF {
				return written, nil
			}

			return written, readErr
		}
	}

	// Probe one extra byte to ensure source is not longer than declared.
	var probe [1]byte
	for range 100 {
		n, err := src.Read(probe[:])
		if n > 0 {
			return written, fmt.Errorf("%w: body has more than %d bytes", ErrSizeMismatch, limit)
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}

	return written, io.ErrNoProgress
}

// blockPadding returns number of zero bytes needed to pad n up to a block boundary.
func blockPadding(n int64) int64 {
	return -n & (BlockSize - 1)
}
