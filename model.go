// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

package ustar

import (
	"io"
	"log/slog"
	"time"

	"github.com/woozymasta/pathrules"
)

// Default encoder tuning values and entry option defaults.
const (
	DefaultCopyBufferSize = 64 * 1024
	DefaultFileMode       = "644"
	DefaultDirMode        = "755"
)

// Descriptor is one archive member to encode: File or Directory.
type Descriptor interface {
	// isDir reports descriptor kind.
	isDir() bool
}

// File describes a regular file member.
type File struct {
	// Body produces file bytes; ignored when Open is set.
	Body io.Reader `json:"-" yaml:"-"`
	// Open lazily returns file bytes; called only when the entry is actually written.
	Open func() (io.ReadCloser, error) `json:"-" yaml:"-"`
	// Split is an optional pre-split pathname used instead of Path.
	Split *SplitPath `json:"split,omitempty" yaml:"split,omitempty"`
	// Path is member pathname, split with Split rules when Split is nil.
	Path string `json:"path" yaml:"path"`
	// Options are optional header fields.
	Options EntryOptions `json:"options,omitzero" yaml:"options,omitzero"`
	// Size is declared body size in bytes; the body must produce exactly this many bytes.
	Size int64 `json:"size" yaml:"size"`
}

// Directory describes a directory member.
type Directory struct {
	// Split is an optional pre-split pathname used instead of Path; Name must end with "/".
	Split *SplitPath `json:"split,omitempty" yaml:"split,omitempty"`
	// Path is member pathname; "/" is appended during normalization.
	Path string `json:"path" yaml:"path"`
	// Options are optional header fields.
	Options EntryOptions `json:"options,omitzero" yaml:"options,omitzero"`
}

func (File) isDir() bool      { return false }
func (Directory) isDir() bool { return true }

// EntryOptions are optional header fields for one member.
// Numeric fields are octal digit strings as stored in the header.
type EntryOptions struct {
	// ModTime is modification time; zero means current time. Must be in [0, 8^11) seconds.
	ModTime time.Time `json:"mod_time,omitzero" yaml:"mod_time,omitzero"`
	// Mode is octal permission string up to 6 digits; default "644" for files and "755" for directories.
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`
	// UID is octal user id up to 6 digits.
	UID string `json:"uid,omitempty" yaml:"uid,omitempty"`
	// GID is octal group id up to 6 digits.
	GID string `json:"gid,omitempty" yaml:"gid,omitempty"`
	// Uname is ASCII user name up to 32 bytes.
	Uname string `json:"uname,omitempty" yaml:"uname,omitempty"`
	// Gname is ASCII group name up to 32 bytes.
	Gname string `json:"gname,omitempty" yaml:"gname,omitempty"`
	// Devmajor is octal device major number up to 8 digits.
	Devmajor string `json:"devmajor,omitempty" yaml:"devmajor,omitempty"`
	// Devminor is octal device minor number up to 8 digits.
	Devminor string `json:"devminor,omitempty" yaml:"devminor,omitempty"`
}

// EntryProgress contains one completed member write event from encode flow.
type EntryProgress struct {
	// Path is resolved member pathname.
	Path string `json:"path" yaml:"path"`
	// Offset is header block offset in output stream.
	Offset int64 `json:"offset" yaml:"offset"`
	// Size is body size in bytes (zero for directories).
	Size int64 `json:"size" yaml:"size"`
	// Padding is number of zero bytes appended after body.
	Padding int64 `json:"padding,omitempty" yaml:"padding,omitempty"`
	// Typeflag is written member kind.
	Typeflag byte `json:"typeflag" yaml:"typeflag"`
	// SizeExtended reports whether the 12-digit size field was used.
	SizeExtended bool `json:"size_extended,omitempty" yaml:"size_extended,omitempty"`
}

// EncodeResult contains encode output statistics.
type EncodeResult struct {
	// WrittenEntries is number of members written to archive.
	WrittenEntries int `json:"written_entries" yaml:"written_entries"`
	// SkippedDuplicates is number of members dropped because pathname was already written.
	SkippedDuplicates int `json:"skipped_duplicates,omitempty" yaml:"skipped_duplicates,omitempty"`
	// FilteredEntries is number of members dropped by Filter rules.
	FilteredEntries int `json:"filtered_entries,omitempty" yaml:"filtered_entries,omitempty"`
	// DataSize is total body bytes written (without padding).
	DataSize int64 `json:"data_size" yaml:"data_size"`
	// TotalSize is total bytes written including headers, padding, and trailer.
	TotalSize int64 `json:"total_size" yaml:"total_size"`
	// Duration is time between encoder creation and Close.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// EncoderOptions configures encode behavior.
type EncoderOptions struct {
	// Logger receives debug records; nil discards.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// OnEntryDone is called after one member is fully written.
	OnEntryDone func(entry EntryProgress) `json:"-" yaml:"-"`
	// Now returns current time for default ModTime; nil means time.Now.
	Now func() time.Time `json:"-" yaml:"-"`
	// Filter defines ordered path rules; excluded members are skipped.
	Filter []pathrules.Rule `json:"filter,omitempty" yaml:"filter,omitempty"`
	// FilterMatcherOptions control Filter matching; default action is include.
	FilterMatcherOptions pathrules.MatcherOptions `json:"filter_matcher_options,omitzero" yaml:"filter_matcher_options,omitzero"`
	// CopyBufferSize is body copy buffer size in bytes.
	CopyBufferSize int `json:"copy_buffer_size,omitempty" yaml:"copy_buffer_size,omitempty"`
	// StrictDuplicates returns ErrDuplicatePath instead of silently skipping repeated pathnames.
	StrictDuplicates bool `json:"strict_duplicates,omitempty" yaml:"strict_duplicates,omitempty"`
}

// DecoderOptions configures decode behavior.
type DecoderOptions struct {
	// Logger receives debug records; nil discards.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// Filter defines ordered path rules; excluded members are skipped without being returned.
	Filter []pathrules.Rule `json:"filter,omitempty" yaml:"filter,omitempty"`
	// FilterMatcherOptions control Filter matching; default action is include.
	FilterMatcherOptions pathrules.MatcherOptions `json:"filter_matcher_options,omitzero" yaml:"filter_matcher_options,omitzero"`
	// SkipUnreadBodies makes Next cancel an unresolved body instead of waiting for it.
	SkipUnreadBodies bool `json:"skip_unread_bodies,omitempty" yaml:"skip_unread_bodies,omitempty"`
	// SkipZeroBlocks treats all-zero header blocks ahead of the trailer as record
	// padding (GNU tar pads archives to whole records). Without it such blocks fail
	// the checksum check.
	SkipZeroBlocks bool `json:"skip_zero_blocks,omitempty" yaml:"skip_zero_blocks,omitempty"`
}

// ExtractOptions configures Extract behavior.
type ExtractOptions struct {
	// OnEntryDone is called after one member is materialized on disk.
	OnEntryDone func(entry *Entry, written int64, outputPath string) `json:"-" yaml:"-"`
	// FileMode controls output file creation policy.
	FileMode ExtractFileMode `json:"file_mode,omitempty" yaml:"file_mode,omitempty"`
	// DecoderOptions are applied to the underlying decoder.
	DecoderOptions DecoderOptions `json:"decoder_options,omitzero" yaml:"decoder_options,omitzero"`
	// PreserveModTime applies header modification time to extracted files and directories.
	PreserveModTime bool `json:"preserve_mod_time,omitempty" yaml:"preserve_mod_time,omitempty"`
	// PreservePermissions applies header permission bits to extracted files and directories.
	PreservePermissions bool `json:"preserve_permissions,omitempty" yaml:"preserve_permissions,omitempty"`
	// SanitizeNames rewrites member pathnames to filesystem-safe unique names before writing.
	SanitizeNames bool `json:"sanitize_names,omitempty" yaml:"sanitize_names,omitempty"`
}

// ExtractFileMode controls output file open behavior during extraction.
type ExtractFileMode string

// Output file creation policies for extraction.
const (
	// ExtractFileModeTruncate opens existing files with truncate and creates missing files.
	ExtractFileModeTruncate ExtractFileMode = "truncate"
	// ExtractFileModeCreateOnly creates files only when absent and fails on existing files.
	ExtractFileModeCreateOnly ExtractFileMode = "create_only"
	// ExtractFileModeSkipExisting leaves existing files untouched and skips their bodies.
	ExtractFileModeSkipExisting ExtractFileMode = "skip_existing"
)

// applyDefaults fills zero-valued encoder options with defaults.
func (opts *EncoderOptions) applyDefaults() {
	if opts.CopyBufferSize < BlockSize {
		opts.CopyBufferSize = DefaultCopyBufferSize
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	opts.Logger = loggerOrDiscard(opts.Logger)
	opts.FilterMatcherOptions = filterMatcherDefaults(opts.FilterMatcherOptions)
}

// applyDefaults fills zero-valued decoder options with defaults.
func (opts *DecoderOptions) applyDefaults() {
	opts.Logger = loggerOrDiscard(opts.Logger)
	opts.FilterMatcherOptions = filterMatcherDefaults(opts.FilterMatcherOptions)
}

// applyDefaults fills zero-valued extract options with defaults.
func (opts *ExtractOptions) applyDefaults() {
	if opts.FileMode == "" {
		opts.FileMode = ExtractFileModeTruncate
	}

	opts.DecoderOptions.applyDefaults()
}

// loggerOrDiscard returns l or a logger that drops every record.
func loggerOrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}

	return l
}
