// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

package ustar

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
)

// Body is a single-use stream over one file's bytes inside the archive.
//
// It is resolved when every byte was read or Cancel was called; until then the
// decoder cannot advance to the next header. Body is safe for use from a
// different goroutine than the decoder.
type Body struct {
	// d owns block cursor and lock.
	d *Decoder
	// done is closed once body is resolved.
	done chan struct{}
	// err is resolution error, nil for fully read or cancelled bodies.
	err error
	// pending holds undelivered bytes of the current block.
	pending []byte
	// path is member pathname for error context.
	path string
	// size is declared body size.
	size int64
	// remaining is number of body bytes not yet taken from blocks.
	remaining int64
	// stash backs pending when caller buffer was smaller than a block.
	stash block
	// resolved reports whether body was fully read, cancelled, or failed.
	resolved bool
	// cancelled reports whether body was resolved by Cancel.
	cancelled bool
}

// newBody returns unresolved body of size bytes bound to decoder cursor.
func newBody(d *Decoder, path string, size int64) *Body {
	return &Body{
		d:         d,
		done:      make(chan struct{}),
		path:      path,
		size:      size,
		remaining: size,
	}
}

// Size returns declared body size in bytes.
func (b *Body) Size() int64 {
	return b.size
}

// Done returns a channel closed once body is resolved.
func (b *Body) Done() <-chan struct{} {
	return b.done
}

// Read reads up to len(p) body bytes. Bytes that do not fit p are retained for the next call.
func (b *Body) Read(p []byte) (int, error) {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()

	if err := b.readableLocked(); err != nil {
		return 0, err
	}

	n := 0
	for n < len(p) {
		if len(b.pending) > 0 {
			c := copy(p[n:], b.pending)
			b.pending = b.pending[c:]
			n += c
			continue
		}
		if b.remaining == 0 {
			break
		}

		payload, err := b.nextPayloadLocked()
		if err != nil {
			return n, err
		}

		c := copy(p[n:], payload)
		n += c
		if c < len(payload) {
			b.pending = b.stash[:copy(b.stash[:], payload[c:])]
		}
	}

	b.resolveIfDrainedLocked()
	return n, nil
}

// ReadChunk returns the next available chunk of body bytes (at most one block).
// The returned slice is owned by the caller. It returns io.EOF after the last chunk.
func (b *Body) ReadChunk() ([]byte, error) {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()

	if err := b.readableLocked(); err != nil {
		return nil, err
	}

	var chunk []byte
	if len(b.pending) > 0 {
		chunk = bytes.Clone(b.pending)
		b.pending = nil
	} else {
		payload, err := b.nextPayloadLocked()
		if err != nil {
			return nil, err
		}

		chunk = bytes.Clone(payload)
	}

	b.resolveIfDrainedLocked()
	return chunk, nil
}

// WriteTo writes remaining body bytes to w without intermediate buffering.
func (b *Body) WriteTo(w io.Writer) (int64, error) {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()

	if err := b.readableLocked(); err != nil {
		if err == io.EOF {
			return 0, nil
		}

		return 0, err
	}

	var total int64
	for {
		var payload []byte
		if len(b.pending) > 0 {
			payload = b.pending
			b.pending = nil
		} else {
			if b.remaining == 0 {
				break
			}

			next, err := b.nextPayloadLocked()
			if err != nil {
				return total, err
			}

			payload = next
		}

		n, err := w.Write(payload)
		total += int64(n)
		if err != nil {
			return total, err
		}
		if n != len(payload) {
			return total, io.ErrShortWrite
		}
	}

	b.resolveIfDrainedLocked()
	return total, nil
}

// Cancel discards unread body bytes and advances the archive cursor past them.
// It returns ErrTruncatedArchive when input ends before the body does.
// Cancelling a resolved body is a no-op.
func (b *Body) Cancel() error {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()

	if b.resolved {
		return b.err
	}

	skip := blockCount(b.remaining)
	b.pending = nil
	if err := b.d.skipBlocksLocked(skip); err != nil {
		return b.failLocked(err)
	}

	b.remaining = 0
	b.cancelled = true
	if skip > 0 {
		b.d.opts.Logger.Debug("entry body cancelled",
			slog.String("path", b.path),
			slog.Int64("skipped_blocks", skip),
		)
	}

	b.resolveLocked(nil)
	return nil
}

// Close cancels body if it is not fully read.
func (b *Body) Close() error {
	return b.Cancel()
}

// readableLocked returns error for reads from resolved body or failed decoder. Caller holds d.mu.
func (b *Body) readableLocked() error {
	if b.resolved {
		switch {
		case b.err != nil:
			return b.err
		case b.cancelled:
			return ErrClosed
		default:
			return io.EOF
		}
	}

	if b.d.state == stateFailed {
		b.resolveLocked(b.d.err)
		return b.d.err
	}

	return nil
}

// nextPayloadLocked pulls one body block and returns its payload view.
// The view is valid until the next block is pulled. Caller holds d.mu.
func (b *Body) nextPayloadLocked() ([]byte, error) {
	blk, err := b.d.blocks.next()
	if err != nil {
		return nil, b.failLocked(err)
	}

	n := min(b.remaining, BlockSize)
	b.remaining -= n

	return blk[:n], nil
}

// failLocked fails decoder and resolves body with err. Caller holds d.mu.
func (b *Body) failLocked(err error) error {
	err = b.d.failLocked(fmt.Errorf("read body %s: %w", b.path, bodyReadError(err)))
	b.resolveLocked(err)
	return err
}

// resolveIfDrainedLocked resolves body once every byte was delivered. Caller holds d.mu.
func (b *Body) resolveIfDrainedLocked() {
	if b.remaining == 0 && len(b.pending) == 0 {
		b.resolveLocked(nil)
	}
}

// resolveLocked marks body resolved and releases decoder for the next header. Caller holds d.mu.
func (b *Body) resolveLocked(err error) {
	if b.resolved {
		return
	}

	b.resolved = true
	b.err = err
	b.pending = nil

	if b.d.body == b {
		b.d.body = nil
		if b.d.state == stateBodyOpen {
			b.d.state = stateAwaitingHeader
		}
	}

	close(b.done)
}
