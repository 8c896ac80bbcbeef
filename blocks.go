// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

package ustar

import (
	"errors"
	"fmt"
	"io"
)

// trailerBlocks is number of all-zero blocks terminating an archive.
const trailerBlocks = 2

// blockReader reassembles arbitrarily chunked input into 512-byte blocks.
//
// The last two blocks are always held back in a fixed ring: a block is handed
// out only after two more blocks arrived behind it. At end of input the held
// blocks must form the all-zero trailer.
type blockReader struct {
	// src is the chunked archive input.
	src io.Reader
	// err is terminal error; io.EOF after a valid trailer.
	err error
	// ring keeps lookahead blocks; ring[head] is the oldest one.
	ring [trailerBlocks]block
	// incoming receives the block read behind the lookahead window.
	incoming block
	// out is the block returned by the latest next call.
	out block
	// head is ring index of the oldest held block.
	head int
	// held is number of valid blocks in ring.
	held int
	// forwarded counts blocks handed out to the consumer.
	forwarded int64
}

// newBlockReader returns block reassembler over src.
func newBlockReader(src io.Reader) *blockReader {
	return &blockReader{src: src}
}

// next returns the next content block. The returned block is valid until the next call.
// It returns io.EOF once input ended with a valid trailer.
func (r *blockReader) next() (*block, error) {
	if r.err != nil {
		return nil, r.err
	}

	for r.held < trailerBlocks {
		ok, err := r.fill(&r.ring[(r.head+r.held)%trailerBlocks])
		if err != nil {
			r.err = err
			return nil, err
		}
		if !ok {
			r.err = r.finish()
			return nil, r.err
		}

		r.held++
	}

	ok, err := r.fill(&r.incoming)
	if err != nil {
		r.err = err
		return nil, err
	}
	if !ok {
		r.err = r.finish()
		return nil, r.err
	}

	r.out = r.ring[r.head]
	r.ring[r.head] = r.incoming
	r.head = (r.head + 1) % trailerBlocks
	r.forwarded++

	return &r.out, nil
}

// fill reads exactly one block into dst. It reports false on clean end of input.
func (r *blockReader) fill(dst *block) (bool, error) {
	n, err := io.ReadFull(r.src, dst[:])
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, io.EOF):
		return false, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		return false, fmt.Errorf("%w: %d trailing bytes do not form a full block", ErrTruncatedArchive, n)
	default:
		return false, fmt.Errorf("read archive: %w", err)
	}
}

// finish validates held lookahead blocks as the end-of-archive trailer.
func (r *blockReader) finish() error {
	if r.held < trailerBlocks {
		return fmt.Errorf("%w: %d blocks after last entry, need %d", ErrArchiveTooSmall, r.held, trailerBlocks)
	}

	for i := range r.held {
		if !r.ring[(r.head+i)%trailerBlocks].isZero() {
			return fmt.Errorf("%w: block %d is not zero", ErrInvalidTrailer, r.forwarded+int64(i))
		}
	}

	return io.EOF
}
