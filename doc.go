// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ustar

/*
Package ustar provides streaming encode, decode, list, and extract operations
for POSIX ustar (tar) archives. Archives are produced and consumed as byte
streams: encoding pulls member bodies from caller-provided readers, and decoding
accepts input in any chunking without loading member payloads into memory.

Format rules (summary):
  - every header and body occupies whole 512-byte blocks;
  - pathnames longer than 100 bytes are split into prefix (up to 155 bytes)
    and name (up to 100 bytes) at a "/" boundary;
  - directory pathnames end with "/";
  - the header checksum is computed last with its own field counted as spaces;
  - sizes from 8^11 bytes use a 12-digit size field with no terminator;
  - the archive ends with two all-zero blocks.

# Encoding

Encode an iterator of descriptors into a writer:

	entries := func(yield func(ustar.Descriptor) bool) {
	    if !yield(ustar.Directory{Path: "potato"}) {
	        return
	    }
	    yield(ustar.File{
	        Path: "potato/text.txt",
	        Size: 12,
	        Body: strings.NewReader("Hello World!"),
	    })
	}
	res, err := ustar.Encode(ctx, w, entries, ustar.EncoderOptions{})
	if err != nil {
	    return err
	}
	_ = res.TotalSize

Bodies may be opened lazily with File.Open, which is called only when the
member is actually written. Repeated pathnames are skipped unless
EncoderOptions.StrictDuplicates is set.

To consume archive bytes as a stream instead of writing them:

	rc := ustar.NewEncodeReader(ctx, entries, ustar.EncoderOptions{})
	defer rc.Close()
	_, err := io.Copy(dst, rc)

# Decoding

Iterate members and read file bodies:

	dec, err := ustar.NewDecoder(r, ustar.DecoderOptions{})
	if err != nil {
	    return err
	}
	for entry, err := range dec.Entries(ctx) {
	    if err != nil {
	        return err
	    }
	    if entry.Body != nil {
	        data, _ := io.ReadAll(entry.Body)
	        _ = data
	    }
	}

Only one body is open at a time. Decoder.Next waits until the previous body
was read to the end or cancelled with Body.Cancel; set
DecoderOptions.SkipUnreadBodies to cancel unread bodies automatically.
Entries cancels a body the loop left unresolved.

For metadata-only scans:

	entries, err := ustar.ListEntries(ctx, r, ustar.DecoderOptions{})

# Extracting

	err := ustar.Extract(ctx, r, "out", ustar.ExtractOptions{
	    FileMode:        ustar.ExtractFileModeCreateOnly,
	    PreserveModTime: true,
	})

Entry pathnames are normalized and rejected when absolute or escaping the
destination root.

# Filtering

Encoder, decoder, and extract flows accept ordered include/exclude rules from
github.com/woozymasta/pathrules:

	opts := ustar.DecoderOptions{
	    Filter: []pathrules.Rule{
	        {Action: pathrules.ActionExclude, Pattern: "*.tmp"},
	    },
	}

Errors are sentinel values checked with errors.Is, for example ErrChecksum,
ErrTruncatedArchive, or ErrSizeMismatch.
*/
package ustar
