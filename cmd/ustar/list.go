// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/woozymasta/ustar"
)

const (
	outputFlag = "output"

	outputText = "text"
	outputJSON = "json"
)

// listedEntry is one JSON line of list output.
type listedEntry struct {
	ModTime  time.Time `json:"mod_time"`
	Path     string    `json:"path"`
	Mode     string    `json:"mode"`
	Typeflag string    `json:"typeflag"`
	Format   string    `json:"format"`
	Size     int64     `json:"size"`
}

func newListCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "t"},
		Short:   "List the members of an archive",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}

			return runList(cmd, v)
		},
	}

	cmd.Flags().StringP(fileFlag, "f", stdioPath, "Archive to read (- for stdin)")
	cmd.Flags().StringP(compressionFlag, "c", compressionAuto, fmt.Sprintf("Compression format of the archive (one of %v)", append([]string{compressionAuto}, knownCompressionFormats...)))
	cmd.Flags().StringP(outputFlag, "o", outputText, fmt.Sprintf("Output format (one of %v)", []string{outputText, outputJSON}))
	addDecodeFlags(cmd)

	return cmd
}

func runList(cmd *cobra.Command, v *viper.Viper) (err error) {
	logger := newLogger(v, cmd.ErrOrStderr())

	format := v.GetString(outputFlag)
	if format != outputText && format != outputJSON {
		return fmt.Errorf("unsupported output format %q", format)
	}

	src, err := openInput(cmd, v)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := src.Close(); err == nil {
			err = cerr
		}
	}()

	entries, err := ustar.ListEntries(cmd.Context(), src, ustar.DecoderOptions{
		Logger:               logger,
		Filter:               filterRules(v.GetStringSlice(includeFlag), v.GetStringSlice(excludeFlag)),
		FilterMatcherOptions: matcherOptions(v),
		SkipZeroBlocks:       v.GetBool(skipZeroBlocksFlag),
	})
	if err != nil {
		return err
	}

	if format == outputJSON {
		return writeListJSON(cmd.OutOrStdout(), entries)
	}

	return writeListText(cmd.OutOrStdout(), entries)
}

// writeListText prints an aligned table similar to tar -tv.
func writeListText(w io.Writer, entries []ustar.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for i := range entries {
		h := &entries[i].Header
		if _, err := fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n",
			h.FileMode(), h.Size, h.ModTime.UTC().Format(time.DateTime), entries[i].Path); err != nil {
			return err
		}
	}

	return tw.Flush()
}

// writeListJSON prints one JSON object per entry.
func writeListJSON(w io.Writer, entries []ustar.Entry) error {
	enc := json.NewEncoder(w)
	for i := range entries {
		h := &entries[i].Header
		err := enc.Encode(listedEntry{
			Path:     entries[i].Path,
			Mode:     fmt.Sprintf("%04o", h.Mode),
			Typeflag: string(rune(h.Typeflag)),
			Format:   h.Format.String(),
			Size:     h.Size,
			ModTime:  h.ModTime.UTC(),
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// openInput opens the archive named by the file flag and strips compression.
func openInput(cmd *cobra.Command, v *viper.Viper) (io.ReadCloser, error) {
	var (
		raw    io.Reader = cmd.InOrStdin()
		closer io.Closer = io.NopCloser(raw)
	)
	if name := v.GetString(fileFlag); name != stdioPath {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}

		raw, closer = f, f
	}

	dr, err := decompressReader(cmd.Context(), raw, v.GetString(compressionFlag))
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	return &stackedReadCloser{ReadCloser: dr, inner: closer}, nil
}

// stackedReadCloser closes the decompressor and then the underlying file.
type stackedReadCloser struct {
	io.ReadCloser
	inner io.Closer
}

func (s *stackedReadCloser) Close() error {
	err := s.ReadCloser.Close()
	if cerr := s.inner.Close(); err == nil {
		err = cerr
	}

	return err
}
