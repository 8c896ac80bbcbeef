// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

package ustar

import (
	"bytes"
	"fmt"
	"io/fs"
	"strconv"
	"time"
)

// Internal binary layout and format limits.
const (
	BlockSize   = 512 // size of one archive block in bytes
	nameSize    = 100 // name field width
	prefixSize  = 155 // prefix field width
	maxPathSize = 256 // prefix + "/" + name
	ownerSize   = 32  // uname/gname field width

	// MaxFileSize is the largest body size accepted by the encoder (8^12 - 1).
	MaxFileSize = 1<<36 - 1
	// sizeExtensionThreshold is the first size that needs the 12-digit size field (8^11).
	sizeExtensionThreshold = 1 << 33
	// maxModTime is the largest mtime representable with 11 octal digits.
	maxModTime = 1<<33 - 1
)

// Typeflag values written by the encoder. Other values are passed through by the decoder.
const (
	TypeReg byte = '0'
	TypeDir byte = '5'
)

// Magic and version bytes identifying POSIX ustar headers.
const (
	magicUSTAR   = "ustar\x00"
	versionUSTAR = "00"
)

// Format identifies header flavor detected by the decoder.
type Format int

// Header formats.
const (
	// FormatV7 is the old-style header without magic, owner names, and prefix.
	FormatV7 Format = iota + 1
	// FormatUSTAR is the POSIX.1-1988 header with "ustar\x00" magic and "00" version.
	FormatUSTAR
)

// String returns format name.
func (f Format) String() string {
	switch f {
	case FormatV7:
		return "V7"
	case FormatUSTAR:
		return "USTAR"
	default:
		return "<unknown>"
	}
}

// block is one raw 512-byte archive block with named header field ranges.
type block [BlockSize]byte

func (b *block) name() []byte     { return b[0:][:nameSize] }
func (b *block) mode() []byte     { return b[100:][:8] }
func (b *block) uid() []byte      { return b[108:][:8] }
func (b *block) gid() []byte      { return b[116:][:8] }
func (b *block) size() []byte     { return b[124:][:12] }
func (b *block) modTime() []byte  { return b[136:][:12] }
func (b *block) chksum() []byte   { return b[148:][:8] }
func (b *block) typeflag() []byte { return b[156:][:1] }
func (b *block) linkname() []byte { return b[157:][:100] }
func (b *block) magic() []byte    { return b[257:][:6] }
func (b *block) version() []byte  { return b[263:][:2] }
func (b *block) uname() []byte    { return b[265:][:ownerSize] }
func (b *block) gname() []byte    { return b[297:][:ownerSize] }
func (b *block) devmajor() []byte { return b[329:][:8] }
func (b *block) devminor() []byte { return b[337:][:8] }
func (b *block) prefix() []byte   { return b[345:][:prefixSize] }

// reset clears the block with all zeros.
func (b *block) reset() {
	*b = block{}
}

// isZero reports whether every byte of the block is zero.
func (b *block) isZero() bool {
	return *b == block{}
}

// computeChecksum sums all header bytes with the checksum field counted as ASCII spaces.
func (b *block) computeChecksum() int64 {
	var sum int64
	for i, c := range b {
		if 148 <= i && i < 156 {
			c = ' '
		}

		sum += int64(c)
	}

	return sum
}

// setChecksum writes the checksum field as six octal digits, NUL, and space.
// It must be called after every other header byte is final.
func (b *block) setChecksum() {
	field := b.chksum()
	putOctal(field[:6], b.computeChecksum())
	field[6] = 0
	field[7] = ' '
}

// Header is one parsed header record.
type Header struct {
	// ModTime is entry modification time (seconds precision).
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
	// Name is the raw name field.
	Name string `json:"name" yaml:"name"`
	// Linkname is the raw linkname field.
	Linkname string `json:"linkname,omitempty" yaml:"linkname,omitempty"`
	// Uname is owner user name (USTAR only).
	Uname string `json:"uname,omitempty" yaml:"uname,omitempty"`
	// Gname is owner group name (USTAR only).
	Gname string `json:"gname,omitempty" yaml:"gname,omitempty"`
	// Prefix is directory prefix of a split pathname (USTAR only).
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	// Mode is permission and mode bits.
	Mode int64 `json:"mode" yaml:"mode"`
	// UID is owner user id.
	UID int64 `json:"uid" yaml:"uid"`
	// GID is owner group id.
	GID int64 `json:"gid" yaml:"gid"`
	// Size is body size in bytes.
	Size int64 `json:"size" yaml:"size"`
	// Devmajor is device major number (USTAR only).
	Devmajor int64 `json:"devmajor,omitempty" yaml:"devmajor,omitempty"`
	// Devminor is device minor number (USTAR only).
	Devminor int64 `json:"devminor,omitempty" yaml:"devminor,omitempty"`
	// Format is detected header flavor.
	Format Format `json:"format" yaml:"format"`
	// Typeflag is entry kind; NUL is normalized to TypeReg.
	Typeflag byte `json:"typeflag" yaml:"typeflag"`
}

// Pathname returns prefix + "/" + name when prefix is present, otherwise name.
func (h *Header) Pathname() string {
	return joinPathname(h.Prefix, h.Name)
}

// IsDir reports whether header describes a directory.
func (h *Header) IsDir() bool {
	return h.Typeflag == TypeDir
}

// IsRegular reports whether header describes a regular file with a body.
func (h *Header) IsRegular() bool {
	return h.Typeflag == TypeReg
}

// FileMode converts header mode and typeflag to fs.FileMode.
func (h *Header) FileMode() fs.FileMode {
	mode := fs.FileMode(h.Mode & 0o777) //nolint:gosec // masked to permission bits
	if h.Mode&0o4000 != 0 {
		mode |= fs.ModeSetuid
	}
	if h.Mode&0o2000 != 0 {
		mode |= fs.ModeSetgid
	}
	if h.Mode&0o1000 != 0 {
		mode |= fs.ModeSticky
	}
	if h.IsDir() {
		mode |= fs.ModeDir
	}

	return mode
}

// numericField binds one octal header field to its parsed destination.
type numericField struct {
	dst   *int64
	field []byte
	name  string
}

// parseHeader verifies checksum and decodes header fields from raw block.
func parseHeader(b *block) (Header, error) {
	stored, err := parseOctal(b.chksum())
	if err != nil || isBlank(b.chksum()) {
		return Header{}, fmt.Errorf("%w: unreadable checksum field %q", ErrChecksum, b.chksum())
	}
	if computed := b.computeChecksum(); stored != computed {
		return Header{}, fmt.Errorf("%w: stored %o, computed %o", ErrChecksum, stored, computed)
	}

	hdr := Header{
		Name:     cString(b.name()),
		Linkname: cString(b.linkname()),
		Typeflag: b.typeflag()[0],
		Format:   FormatV7,
	}
	if hdr.Typeflag == 0 {
		hdr.Typeflag = TypeReg
	}

	var mtime int64
	numeric := []numericField{
		{dst: &hdr.Mode, field: b.mode(), name: "mode"},
		{dst: &hdr.UID, field: b.uid(), name: "uid"},
		{dst: &hdr.GID, field: b.gid(), name: "gid"},
		{dst: &hdr.Size, field: b.size(), name: "size"},
		{dst: &mtime, field: b.modTime(), name: "mtime"},
	}

	if string(b.magic()) == magicUSTAR && string(b.version()) == versionUSTAR {
		hdr.Format = FormatUSTAR
		hdr.Uname = cString(b.uname())
		hdr.Gname = cString(b.gname())
		hdr.Prefix = cString(b.prefix())
		numeric = append(numeric,
			numericField{dst: &hdr.Devmajor, field: b.devmajor(), name: "devmajor"},
			numericField{dst: &hdr.Devminor, field: b.devminor(), name: "devminor"},
		)
	}

	for _, n := range numeric {
		v, err := parseOctal(n.field)
		if err != nil {
			return Header{}, fmt.Errorf("%w: %s field %q: %w", ErrInvalidHeader, n.name, n.field, err)
		}

		*n.dst = v
	}
	if hdr.Size < 0 || hdr.Size > MaxFileSize {
		return Header{}, fmt.Errorf("%w: size %d out of range", ErrInvalidHeader, hdr.Size)
	}

	hdr.ModTime = time.Unix(mtime, 0)
	return hdr, nil
}

// putOctal writes v as zero-padded octal digits filling dst exactly.
// The caller guarantees v fits in len(dst) digits.
func putOctal(dst []byte, v int64) {
	digits := strconv.FormatInt(v, 8)
	pad := len(dst) - len(digits)
	for i := 0; i < pad; i++ {
		dst[i] = '0'
	}

	copy(dst[pad:], digits)
}

// putOctalString writes an already validated octal digit string left-padded with zeros to width.
func putOctalString(dst []byte, digits string, width int) {
	pad := width - len(digits)
	for i := 0; i < pad; i++ {
		dst[i] = '0'
	}

	copy(dst[pad:width], digits)
}

// parseOctal parses octal field trimming surrounding spaces and NUL bytes.
// A blank field parses as zero. Only digits 0..7 are accepted, so signs are rejected.
func parseOctal(field []byte) (int64, error) {
	trimmed := bytes.Trim(field, " \x00")
	if len(trimmed) == 0 {
		return 0, nil
	}

	for _, c := range trimmed {
		if c < '0' || c > '7' {
			return 0, fmt.Errorf("non-octal byte %q", c)
		}
	}

	return strconv.ParseInt(string(trimmed), 8, 64)
}

// isBlank reports whether field contains only spaces and NUL bytes.
func isBlank(field []byte) bool {
	return len(bytes.Trim(field, " \x00")) == 0
}

// cString returns field bytes up to the first NUL.
func cString(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		return string(field[:i])
	}

	return string(field)
}
