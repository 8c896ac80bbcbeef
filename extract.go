// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

package ustar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Extract decodes archive from r and materializes directories and regular files under dstDir.
// Members of other types are skipped. Extraction is sequential because bodies are streamed.
func Extract(ctx context.Context, r io.Reader, dstDir string, opts ExtractOptions) error {
	opts.applyDefaults()

	dec, err := NewDecoder(r, opts.DecoderOptions)
	if err != nil {
		return err
	}

	dstRootAbs, err := filepath.Abs(dstDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}

	if err := os.MkdirAll(dstRootAbs, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var sanitizer *nameSanitizer
	if opts.SanitizeNames {
		sanitizer = newNameSanitizer()
	}

	// Directory times are applied last so that file creation does not bump them.
	var dirTimes []extractedDir
	for entry, err := range dec.Entries(ctx) {
		if err != nil {
			return err
		}

		relPath := entry.Path
		if sanitizer != nil {
			relPath, err = sanitizer.Sanitize(entry.Path)
			if err != nil {
				return err
			}
		}

		outPath, err := resolveExtractPath(dstRootAbs, relPath)
		if err != nil {
			return fmt.Errorf("entry %s: %w", entry.Path, err)
		}

		switch {
		case entry.Header.IsDir():
			if err := extractDir(outPath, entry, opts); err != nil {
				return err
			}

			if opts.PreserveModTime {
				dirTimes = append(dirTimes, extractedDir{path: outPath, entry: entry})
			}

			if opts.OnEntryDone != nil {
				opts.OnEntryDone(entry, 0, outPath)
			}
		case entry.Body != nil:
			written, skipped, err := extractFile(outPath, entry, opts)
			if err != nil {
				return err
			}

			if !skipped && opts.OnEntryDone != nil {
				opts.OnEntryDone(entry, written, outPath)
			}
		default:
			opts.DecoderOptions.Logger.Debug("unsupported entry type skipped",
				"path", entry.Path,
				"typeflag", string(entry.Header.Typeflag),
			)
		}
	}

	for i := len(dirTimes) - 1; i >= 0; i-- {
		mtime := dirTimes[i].entry.Header.ModTime
		if err := os.Chtimes(dirTimes[i].path, mtime, mtime); err != nil {
			return fmt.Errorf("set times %s: %w", dirTimes[i].entry.Path, err)
		}
	}

	return nil
}

// ExtractFile opens archive by path and extracts it into dstDir.
func ExtractFile(ctx context.Context, path string, dstDir string, opts ExtractOptions) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Extract(ctx, f, dstDir, opts)
}

// extractedDir remembers a created directory for deferred mtime update.
type extractedDir struct {
	entry *Entry
	path  string
}

// extractDir creates one directory member.
func extractDir(outPath string, entry *Entry, opts ExtractOptions) error {
	perm := fs.FileMode(0o750)
	if opts.PreservePermissions {
		perm = entry.Header.FileMode().Perm()
	}

	if err := os.MkdirAll(outPath, perm); err != nil {
		return fmt.Errorf("create directory %s: %w", entry.Path, err)
	}

	if opts.PreservePermissions {
		if err := os.Chmod(outPath, perm); err != nil {
			return fmt.Errorf("chmod %s: %w", entry.Path, err)
		}
	}

	return nil
}

// extractFile writes one regular file member. It reports skipped=true when the file already exists
// and FileMode is ExtractFileModeSkipExisting.
func extractFile(outPath string, entry *Entry, opts ExtractOptions) (int64, bool, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return 0, false, fmt.Errorf("create parent directory %s: %w", entry.Path, err)
	}

	perm := fs.FileMode(0o600)
	if opts.PreservePermissions {
		perm = entry.Header.FileMode().Perm()
	}

	file, err := openExtractFile(outPath, opts.FileMode, perm)
	if errors.Is(err, fs.ErrExist) && opts.FileMode == ExtractFileModeSkipExisting {
		return 0, true, entry.Body.Cancel()
	}
	if err != nil {
		return 0, false, fmt.Errorf("open %s: %w", entry.Path, err)
	}

	written, copyErr := entry.Body.WriteTo(file)
	closeErr := file.Close()
	if copyErr != nil {
		return written, false, fmt.Errorf("write %s: %w", entry.Path, copyErr)
	}
	if closeErr != nil {
		return written, false, fmt.Errorf("close %s: %w", entry.Path, closeErr)
	}

	if opts.PreservePermissions {
		if err := os.Chmod(outPath, perm); err != nil {
			return written, false, fmt.Errorf("chmod %s: %w", entry.Path, err)
		}
	}

	if opts.PreserveModTime {
		mtime := entry.Header.ModTime
		if err := os.Chtimes(outPath, mtime, mtime); err != nil {
			return written, false, fmt.Errorf("set times %s: %w", entry.Path, err)
		}
	}

	return written, false, nil
}

// openExtractFile opens output path according to selected extract file mode.
func openExtractFile(path string, mode ExtractFileMode, perm fs.FileMode) (*os.File, error) {
	switch mode {
	case ExtractFileModeTruncate:
		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	case ExtractFileModeCreateOnly, ExtractFileModeSkipExisting:
		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	default:
		return nil, fmt.Errorf("unknown extract file mode %q", mode)
	}
}

// resolveExtractPath maps entry pathname to an absolute output path inside root.
func resolveExtractPath(rootAbs string, entryPath string) (string, error) {
	normalized, err := normalizeExtractEntryPath(entryPath)
	if err != nil {
		return "", err
	}

	outPath := filepath.Join(rootAbs, filepath.FromSlash(normalized))
	rel, err := filepath.Rel(rootAbs, outPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrExtractPathOutsideRoot
	}

	return outPath, nil
}

// normalizeExtractEntryPath normalizes entry path and rejects absolute/traversal inputs.
func normalizeExtractEntryPath(entryPath string) (string, error) {
	raw := strings.TrimSpace(entryPath)
	if raw == "" {
		return "", ErrInvalidExtractPath
	}
	if strings.ContainsRune(raw, 0) {
		return "", ErrInvalidExtractPath
	}
	if strings.HasPrefix(raw, `/`) || strings.HasPrefix(raw, `\`) {
		return "", ErrInvalidExtractPath
	}

	raw = strings.ReplaceAll(raw, `\`, `/`)
	if hasWindowsAbsDrivePrefix(raw) {
		return "", ErrInvalidExtractPath
	}

	parts := strings.Split(raw, `/`)
	cleanParts := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			return "", ErrInvalidExtractPath
		default:
			cleanParts = append(cleanParts, part)
		}
	}
	if len(cleanParts) == 0 {
		return "", ErrInvalidExtractPath
	}

	return strings.Join(cleanParts, `/`), nil
}

// hasWindowsAbsDrivePrefix reports whether path starts with drive-root prefix like C:/.
func hasWindowsAbsDrivePrefix(path string) bool {
	if len(path) < 3 {
		return false
	}

	return isASCIIAlpha(path[0]) && path[1] == ':' && path[2] == '/'
}

// isASCIIAlpha reports whether byte is ASCII latin letter.
func isASCIIAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
