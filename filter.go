// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

package ustar

import (
	"fmt"
	"strings"

	"github.com/woozymasta/pathrules"
)

// pathFilter holds compiled include/exclude rules for member pathnames.
type pathFilter struct {
	matcher *pathrules.Matcher
}

// newPathFilter compiles filter rules. It returns nil filter when no usable rules remain.
func newPathFilter(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*pathFilter, error) {
	rules = normalizeFilterRules(rules)
	if len(rules) == 0 {
		return nil, nil
	}

	matcher, err := pathrules.NewMatcher(rules, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidFilterRules, err)
	}

	return &pathFilter{matcher: matcher}, nil
}

// normalizeFilterRules trims rule patterns and drops empty patterns.
func normalizeFilterRules(rules []pathrules.Rule) []pathrules.Rule {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := strings.TrimSpace(rule.Pattern)
		pattern = strings.TrimPrefix(pattern, "./")
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}

	return normalized
}

// filterMatcherDefaults makes unset matcher options include everything by default.
func filterMatcherDefaults(opts pathrules.MatcherOptions) pathrules.MatcherOptions {
	if opts.DefaultAction == pathrules.ActionUnknown {
		opts.DefaultAction = pathrules.ActionInclude
	}

	return opts
}

// Included reports whether pathname passes filter rules. Nil filter includes everything.
func (f *pathFilter) Included(pathname string, isDir bool) bool {
	if f == nil || f.matcher == nil {
		return true
	}

	candidate := strings.TrimSuffix(pathname, "/")
	if candidate == "" {
		return true
	}

	return f.matcher.Included(candidate, isDir)
}
