// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

package main

import (
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/woozymasta/ustar"
)

const (
	strictDuplicatesFlag = "strict-duplicates"
	ownerFlag            = "owner"
	groupFlag            = "group"
)

func newCreateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "create",
		Aliases: []string{"c"},
		Short:   "Create an archive from a directory tree",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}

			return runCreate(cmd, v)
		},
	}

	cmd.Flags().StringP(fileFlag, "f", stdioPath, "Archive to write (- for stdout)")
	cmd.Flags().StringP(directoryFlag, "C", ".", "Directory to archive")
	cmd.Flags().StringP(compressionFlag, "c", compressionNone, fmt.Sprintf("Compression format to use (one of %v)", knownCompressionFormats))
	cmd.Flags().StringP(compressionLevelFlag, "l", levelBalanced, fmt.Sprintf("Compression level to use (one of %v)", knownCompressionLevels))
	cmd.Flags().Bool(strictDuplicatesFlag, false, "Fail on duplicate pathnames instead of skipping them")
	cmd.Flags().String(ownerFlag, "", "Owner user name to record in headers")
	cmd.Flags().String(groupFlag, "", "Owner group name to record in headers")
	addFilterFlags(cmd)

	return cmd
}

func runCreate(cmd *cobra.Command, v *viper.Viper) (err error) {
	logger := newLogger(v, cmd.ErrOrStderr())

	root, err := filepath.Abs(v.GetString(directoryFlag))
	if err != nil {
		return err
	}

	var (
		out     io.Writer = cmd.OutOrStdout()
		outPath string
	)
	if name := v.GetString(fileFlag); name != stdioPath {
		outPath, err = filepath.Abs(name)
		if err != nil {
			return err
		}

		var f *os.File
		f, err = os.Create(outPath)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(outPath)
			}
		}()

		out = f
	}

	cw, err := compressWriter(out, v.GetString(compressionFlag), v.GetString(compressionLevelFlag))
	if err != nil {
		return err
	}

	walker := &sourceWalker{
		root:   root,
		skip:   outPath,
		logger: logger,
		owner: ustar.EntryOptions{
			Uname: v.GetString(ownerFlag),
			Gname: v.GetString(groupFlag),
		},
	}

	res, err := ustar.Encode(cmd.Context(), cw, walker.Entries(), ustar.EncoderOptions{
		Logger:               logger,
		Filter:               filterRules(v.GetStringSlice(includeFlag), v.GetStringSlice(excludeFlag)),
		FilterMatcherOptions: matcherOptions(v),
		StrictDuplicates:     v.GetBool(strictDuplicatesFlag),
	})
	if err == nil {
		err = walker.Err()
	}
	if cerr := cw.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	logger.Info("archive created",
		"entries", res.WrittenEntries,
		"filtered", res.FilteredEntries,
		"duplicates", res.SkippedDuplicates,
		"bytes", res.TotalSize,
		"duration", res.Duration,
	)

	return nil
}

// sourceWalker yields archive descriptors for a directory tree in lexical order.
type sourceWalker struct {
	err    error
	logger *slog.Logger
	// owner carries user and group names applied to every entry.
	owner ustar.EntryOptions
	root  string
	// skip is an absolute path left out of the walk, typically the output archive.
	skip string
}

// Entries walks the tree lazily. File bodies are opened only when encoded.
func (w *sourceWalker) Entries() iter.Seq[ustar.Descriptor] {
	return func(yield func(ustar.Descriptor) bool) {
		w.err = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == w.skip {
				return nil
			}

			rel, err := filepath.Rel(w.root, path)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}
			rel = filepath.ToSlash(rel)

			info, err := d.Info()
			if err != nil {
				return err
			}

			opts := w.owner
			opts.ModTime = info.ModTime().Truncate(time.Second)
			opts.Mode = strconv.FormatUint(uint64(info.Mode().Perm()), 8)

			var desc ustar.Descriptor
			switch {
			case info.IsDir():
				desc = ustar.Directory{Path: rel, Options: opts}
			case info.Mode().IsRegular():
				desc = ustar.File{
					Path:    rel,
					Size:    info.Size(),
					Options: opts,
					Open: func() (io.ReadCloser, error) {
						return os.Open(path)
					},
				}
			default:
				w.logger.Warn("skip unsupported file type", "path", rel, "mode", info.Mode().Type().String())
				return nil
			}

			if !yield(desc) {
				return filepath.SkipAll
			}

			return nil
		})
	}
}

// Err returns the first walk failure, if any.
func (w *sourceWalker) Err() error {
	return w.err
}
