// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

package ustar

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizePathname(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		in    string
		want  string
		isDir bool
	}{
		{name: "empty", in: "", want: ""},
		{name: "clean", in: "a/b/c.txt", want: "a/b/c.txt"},
		{name: "double slash", in: "a//b///c.txt", want: "a/b/c.txt"},
		{name: "leading dot", in: "./a/b", want: "a/b"},
		{name: "absolute", in: "/etc/hosts", want: "etc/hosts"},
		{name: "dir", in: "potato", want: "potato/", isDir: true},
		{name: "dir with slash", in: "potato/", want: "potato/", isDir: true},
		{name: "file trailing slash", in: "a/b/", want: "a/b"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := NormalizePathname(tc.in, tc.isDir)
			if got != tc.want {
				t.Fatalf("NormalizePathname(%q, %v)=%q, want %q", tc.in, tc.isDir, got, tc.want)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	long60 := strings.Repeat("x", 60)
	long95 := strings.Repeat("n", 95)

	testCases := []struct {
		name       string
		in         string
		wantPrefix string
		wantName   string
		isDir      bool
	}{
		{name: "short", in: "text.txt", wantName: "text.txt"},
		{name: "short dir", in: "potato", wantName: "potato/", isDir: true},
		{name: "exact name width", in: strings.Repeat("a", 100), wantName: strings.Repeat("a", 100)},
		{name: "two segments", in: long60 + "/" + long60, wantPrefix: long60, wantName: long60},
		{name: "dir keeps slash in name", in: long60 + "/" + long60, wantPrefix: long60, wantName: long60 + "/", isDir: true},
		{
			name:       "leftmost cut",
			in:         long60 + "/" + "aa/" + long95,
			wantPrefix: long60,
			wantName:   "aa/" + long95,
		},
		{
			name:       "max total",
			in:         strings.Repeat("p", 155) + "/" + strings.Repeat("n", 100),
			wantPrefix: strings.Repeat("p", 155),
			wantName:   strings.Repeat("n", 100),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			prefix, name, err := Split(tc.in, tc.isDir)
			if err != nil {
				t.Fatalf("Split(%q): %v", tc.in, err)
			}
			if string(prefix) != tc.wantPrefix {
				t.Fatalf("prefix=%q, want %q", prefix, tc.wantPrefix)
			}
			if string(name) != tc.wantName {
				t.Fatalf("name=%q, want %q", name, tc.wantName)
			}
		})
	}
}

func TestSplit_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		in   string
	}{
		{name: "empty", in: ""},
		{name: "only slashes", in: "///"},
		{name: "long segment without slash", in: strings.Repeat("a", 101)},
		{name: "long final segment", in: strings.Repeat("a/", 3) + strings.Repeat("n", 105)},
		{name: "too long total", in: strings.Repeat("d/", 130) + "tail.txt"},
		{name: "prefix too long", in: strings.Repeat("p", 160) + "/" + strings.Repeat("n", 50)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := Split(tc.in, false)
			if !errors.Is(err, ErrPathname) {
				t.Fatalf("Split(%q) err=%v, want ErrPathname", tc.in, err)
			}
		})
	}
}

func TestSplit_Recombines(t *testing.T) {
	t.Parallel()

	for k := 0; k <= 50; k++ {
		for _, isDir := range []bool{false, true} {
			in := strings.Repeat("dir/", k) + "file.txt"
			want := NormalizePathname(in, isDir)

			prefix, name, err := Split(in, isDir)
			if err != nil {
				t.Fatalf("Split(%q, %v): %v", in, isDir, err)
			}
			if len(name) > nameSize {
				t.Fatalf("len(name)=%d, want <= %d", len(name), nameSize)
			}
			if len(prefix) > prefixSize {
				t.Fatalf("len(prefix)=%d, want <= %d", len(prefix), prefixSize)
			}

			got := SplitPath{Prefix: prefix, Name: name}.String()
			if got != want {
				t.Fatalf("recombined %q, want %q", got, want)
			}
		}
	}
}

func TestValidateSplitPath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		split   SplitPath
		isDir   bool
		wantErr bool
	}{
		{name: "file", split: SplitPath{Name: []byte("a.txt")}},
		{name: "dir", split: SplitPath{Prefix: []byte("a"), Name: []byte("b/")}, isDir: true},
		{name: "file with slash", split: SplitPath{Name: []byte("a/")}, wantErr: true},
		{name: "dir without slash", split: SplitPath{Name: []byte("a")}, isDir: true, wantErr: true},
		{name: "empty name", split: SplitPath{Prefix: []byte("a")}, wantErr: true},
		{name: "name too long", split: SplitPath{Name: []byte(strings.Repeat("n", 101))}, wantErr: true},
		{name: "prefix too long", split: SplitPath{Prefix: []byte(strings.Repeat("p", 156)), Name: []byte("n")}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := validateSplitPath(tc.split, tc.isDir)
			if tc.wantErr && !errors.Is(err, ErrPathname) {
				t.Fatalf("validateSplitPath err=%v, want ErrPathname", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("validateSplitPath: %v", err)
			}
		})
	}
}
