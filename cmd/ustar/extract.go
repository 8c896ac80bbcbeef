// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/woozymasta/ustar"
)

const (
	fileModeFlag            = "file-mode"
	preserveModTimeFlag     = "preserve-mod-time"
	preservePermissionsFlag = "preserve-permissions"
	sanitizeNamesFlag       = "sanitize-names"
)

func newExtractCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "extract",
		Aliases: []string{"x"},
		Short:   "Extract an archive into a directory",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}

			return runExtract(cmd, v)
		},
	}

	cmd.Flags().StringP(fileFlag, "f", stdioPath, "Archive to read (- for stdin)")
	cmd.Flags().StringP(directoryFlag, "C", ".", "Destination directory")
	cmd.Flags().StringP(compressionFlag, "c", compressionAuto, fmt.Sprintf("Compression format of the archive (one of %v)", append([]string{compressionAuto}, knownCompressionFormats...)))
	cmd.Flags().StringP(fileModeFlag, "m", string(ustar.ExtractFileModeTruncate), fmt.Sprintf("Existing file policy (one of %v)", []ustar.ExtractFileMode{ustar.ExtractFileModeTruncate, ustar.ExtractFileModeCreateOnly, ustar.ExtractFileModeSkipExisting}))
	cmd.Flags().BoolP(preserveModTimeFlag, "t", false, "Restore modification times from headers")
	cmd.Flags().BoolP(preservePermissionsFlag, "p", false, "Restore permission bits from headers")
	cmd.Flags().Bool(sanitizeNamesFlag, false, "Rewrite member pathnames to filesystem-safe unique names")
	addDecodeFlags(cmd)

	return cmd
}

func runExtract(cmd *cobra.Command, v *viper.Viper) (err error) {
	logger := newLogger(v, cmd.ErrOrStderr())

	mode := ustar.ExtractFileMode(v.GetString(fileModeFlag))
	switch mode {
	case ustar.ExtractFileModeTruncate, ustar.ExtractFileModeCreateOnly, ustar.ExtractFileModeSkipExisting:
	default:
		return fmt.Errorf("unsupported file mode %q", mode)
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

	var files int
	err = ustar.Extract(cmd.Context(), src, v.GetString(directoryFlag), ustar.ExtractOptions{
		FileMode:            mode,
		PreserveModTime:     v.GetBool(preserveModTimeFlag),
		PreservePermissions: v.GetBool(preservePermissionsFlag),
		SanitizeNames:       v.GetBool(sanitizeNamesFlag),
		DecoderOptions: ustar.DecoderOptions{
			Logger:               logger,
			Filter:               filterRules(v.GetStringSlice(includeFlag), v.GetStringSlice(excludeFlag)),
			FilterMatcherOptions: matcherOptions(v),
			SkipZeroBlocks:       v.GetBool(skipZeroBlocksFlag),
		},
		OnEntryDone: func(entry *ustar.Entry, written int64, outputPath string) {
			files++
			logger.Debug("extracted", "path", entry.Path, "bytes", written, "output", outputPath)
		},
	})
	if err != nil {
		return err
	}

	logger.Info("archive extracted", "entries", files, "directory", v.GetString(directoryFlag))

	return nil
}
