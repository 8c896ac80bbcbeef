// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/woozymasta/pathrules"
)

const (
	verboseFlag          = "verbose"
	fileFlag             = "file"
	directoryFlag        = "directory"
	compressionFlag      = "compression"
	compressionLevelFlag = "compression-level"
	excludeFlag          = "exclude"
	includeFlag          = "include"
	ignoreCaseFlag       = "ignore-case"
	skipZeroBlocksFlag   = "skip-zero-blocks"

	// stdioPath selects stdin or stdout instead of a file.
	stdioPath = "-"
)

// newRootCmd builds the command tree. Every invocation gets its own viper
// instance so flags and environment never leak between runs.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ustar")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "ustar",
		Short: "Create, list, and extract POSIX ustar archives",
		Long: `Create, list, and extract POSIX ustar archives.

Every flag can also be set through an environment variable with the USTAR_
prefix, e.g. USTAR_COMPRESSION=zstd.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolP(verboseFlag, "v", false, "Enable debug logging")

	root.AddCommand(
		newCreateCmd(v),
		newListCmd(v),
		newExtractCmd(v),
	)

	return root
}

// newLogger returns a text logger on w; debug level when verbose is set.
func newLogger(v *viper.Viper, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if v.GetBool(verboseFlag) {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// filterRules turns include and exclude patterns into ordered path rules.
// Includes come first so that excludes win on overlap.
func filterRules(includes []string, excludes []string) []pathrules.Rule {
	rules := make([]pathrules.Rule, 0, len(includes)+len(excludes))
	for _, p := range includes {
		rules = append(rules, pathrules.Rule{Action: pathrules.ActionInclude, Pattern: p})
	}
	for _, p := range excludes {
		rules = append(rules, pathrules.Rule{Action: pathrules.ActionExclude, Pattern: p})
	}

	return rules
}

// matcherOptions returns filter matcher options for the current flags.
// With include patterns present, unmatched paths are excluded.
func matcherOptions(v *viper.Viper) pathrules.MatcherOptions {
	opts := pathrules.MatcherOptions{CaseInsensitive: v.GetBool(ignoreCaseFlag)}
	if len(v.GetStringSlice(includeFlag)) > 0 {
		opts.DefaultAction = pathrules.ActionExclude
	}

	return opts
}

// addFilterFlags registers shared path filter flags.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP(excludeFlag, "x", nil, "Exclude pathnames matching gitignore-style pattern (repeatable)")
	cmd.Flags().StringSliceP(includeFlag, "i", nil, "Only keep pathnames matching gitignore-style pattern (repeatable)")
	cmd.Flags().Bool(ignoreCaseFlag, false, "Match filter patterns case-insensitively")
}

// addDecodeFlags registers flags shared by commands that read archives.
func addDecodeFlags(cmd *cobra.Command) {
	cmd.Flags().Bool(skipZeroBlocksFlag, false, "Tolerate zero record padding before the trailer (GNU tar output)")
	addFilterFlags(cmd)
}
