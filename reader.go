// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

package ustar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
)

// decoderState is decoder position in the archive state machine.
type decoderState int

const (
	// stateAwaitingHeader means next block is a header.
	stateAwaitingHeader decoderState = iota
	// stateBodyOpen means a file body is handed out and not yet resolved.
	stateBodyOpen
	// stateClosed means trailer was reached or decoder was closed.
	stateClosed
	// stateFailed means a terminal error occurred.
	stateFailed
)

// Entry is one decoded archive member.
type Entry struct {
	// Body streams file bytes; nil for everything except regular files.
	// It must be read to the end or cancelled before the next header can be decoded.
	Body *Body
	// Path is resolved pathname (prefix + "/" + name, or name).
	Path string
	// Header is parsed header record.
	Header Header
}

// Decoder reads members from a ustar byte stream.
//
// Only one file body may be open at a time: Next waits until the body of the
// previous file is fully read or cancelled. Body methods may be called from a
// different goroutine than Next.
type Decoder struct {
	// blocks reassembles input into 512-byte blocks.
	blocks *blockReader
	// err is terminal error when state is stateFailed.
	err error
	// filter drops excluded members; nil includes all.
	filter *pathFilter
	// body is the open file body when state is stateBodyOpen.
	body *Body
	// opts are decoder options with defaults applied.
	opts DecoderOptions
	// mu guards state, body, and the block cursor.
	mu sync.Mutex
	// state is current state machine value.
	state decoderState
}

// NewDecoder returns a decoder reading archive bytes from r in any chunking.
func NewDecoder(r io.Reader, opts DecoderOptions) (*Decoder, error) {
	if r == nil {
		return nil, ErrNilReader
	}

	opts.applyDefaults()

	filter, err := newPathFilter(opts.Filter, opts.FilterMatcherOptions)
	if err != nil {
		return nil, err
	}

	return &Decoder{
		blocks: newBlockReader(r),
		filter: filter,
		opts:   opts,
	}, nil
}

// Next returns the next member. It returns io.EOF after a valid trailer.
// While the previous file body is unresolved, Next blocks until the body is
// fully read or cancelled, or ctx is done (unless SkipUnreadBodies is set).
func (d *Decoder) Next(ctx context.Context) (*Entry, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		d.mu.Lock()
		switch d.state {
		case stateFailed:
			err := d.err
			d.mu.Unlock()
			return nil, err
		case stateClosed:
			d.mu.Unlock()
			return nil, io.EOF
		case stateBodyOpen:
			body := d.body
			d.mu.Unlock()

			if d.opts.SkipUnreadBodies {
				if err := body.Cancel(); err != nil {
					return nil, err
				}

				continue
			}

			select {
			case <-body.done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}

			continue
		}

		entry, err := d.readEntryLocked()
		d.mu.Unlock()
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return entry, nil
		}
	}
}

// Entries returns an iterator over remaining members.
// A body left unresolved by the loop body is cancelled before the next member is decoded.
func (d *Decoder) Entries(ctx context.Context) iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		for {
			entry, err := d.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}

			if !yield(entry, nil) {
				return
			}

			if entry.Body != nil {
				if err := entry.Body.Cancel(); err != nil && !errors.Is(err, ErrClosed) {
					yield(nil, err)
					return
				}
			}
		}
	}
}

// Close cancels an open body and stops decoding. Subsequent Next calls return io.EOF.
func (d *Decoder) Close() error {
	d.mu.Lock()
	body := d.body
	d.mu.Unlock()

	var err error
	if body != nil {
		if cancelErr := body.Cancel(); cancelErr != nil && !errors.Is(cancelErr, ErrClosed) {
			err = cancelErr
		}
	}

	d.mu.Lock()
	if d.state != stateFailed {
		d.state = stateClosed
	}
	d.mu.Unlock()

	return err
}

// readEntryLocked decodes one header and prepares its entry.
// It returns nil entry for skipped zero padding blocks and members excluded by filter. Caller holds d.mu.
func (d *Decoder) readEntryLocked() (*Entry, error) {
	blk, err := d.blocks.next()
	if errors.Is(err, io.EOF) {
		d.state = stateClosed
		return nil, io.EOF
	}
	if err != nil {
		return nil, d.failLocked(err)
	}

	if d.opts.SkipZeroBlocks && blk.isZero() {
		return nil, nil
	}

	hdr, err := parseHeader(blk)
	if err != nil {
		return nil, d.failLocked(fmt.Errorf("header at block %d: %w", d.blocks.forwarded-1, err))
	}

	entry := &Entry{
		Path:   hdr.Pathname(),
		Header: hdr,
	}

	if !d.filter.Included(entry.Path, hdr.IsDir()) {
		d.opts.Logger.Debug("entry excluded by filter", slog.String("path", entry.Path))
		if hdr.IsRegular() {
			if err := d.skipBlocksLocked(blockCount(hdr.Size)); err != nil {
				return nil, d.failLocked(fmt.Errorf("skip body %s: %w", entry.Path, err))
			}
		}

		return nil, nil
	}

	if hdr.IsRegular() {
		body := newBody(d, entry.Path, hdr.Size)
		if hdr.Size == 0 {
			body.resolveLocked(nil)
		} else {
			d.body = body
			d.state = stateBodyOpen
		}

		entry.Body = body
	}

	return entry, nil
}

// skipBlocksLocked advances block cursor by n blocks. Caller holds d.mu.
func (d *Decoder) skipBlocksLocked(n int64) error {
	for ; n > 0; n-- {
		if _, err := d.blocks.next(); err != nil {
			return bodyReadError(err)
		}
	}

	return nil
}

// failLocked moves decoder to failed state with err. Caller holds d.mu.
func (d *Decoder) failLocked(err error) error {
	if d.state != stateFailed {
		d.state = stateFailed
		d.err = err
	}

	return d.err
}

// blockCount returns number of blocks occupied by a body of size bytes.
func blockCount(size int64) int64 {
	return (size + BlockSize - 1) / BlockSize
}

// bodyReadError maps end of blocks inside a body to ErrTruncatedArchive.
func bodyReadError(err error) error {
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: archive ended inside file body", ErrTruncatedArchive)
	}

	return err
}
