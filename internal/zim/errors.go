package zim

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Wrap these with fmt.Errorf's %w so callers can
// errors.Is/errors.As through any amount of context.
var (
	// ErrUnsupportedFormat means the magic number didn't match or the
	// major version isn't one this package understands.
	ErrUnsupportedFormat = errors.New("zim: unsupported format")

	// ErrFormatError means the archive is structurally inconsistent:
	// descending offsets, a NUL-less string, a pointer out of range.
	// Fatal to the operation that found it, not to the archive.
	ErrFormatError = errors.New("zim: format error")

	// ErrUnsupportedCompression means a cluster uses a compression tag
	// with no registered codec. Raised lazily on first access.
	ErrUnsupportedCompression = errors.New("zim: unsupported compression")

	// ErrNotFound means a lookup of a nonexistent URL, title, or index.
	ErrNotFound = errors.New("zim: not found")

	// ErrRedirectLoop means redirect resolution revisited an already
	// visited entry.
	ErrRedirectLoop = errors.New("zim: redirect loop")

	// ErrRedirectTooDeep means redirect resolution exceeded the
	// configured maximum depth.
	ErrRedirectTooDeep = errors.New("zim: redirect chain too deep")

	// ErrBindRequired means an operation that needs an archive
	// back-reference was invoked on an unbound entry or cluster.
	ErrBindRequired = errors.New("zim: bind required")

	// ErrDuplicateEntry means addEntry was called for a URL that
	// already exists in the namespace, without the overwrite option.
	ErrDuplicateEntry = errors.New("zim: duplicate entry")

	// ErrChecksumMismatch means the computed MD5 did not match the
	// trailer. Returned by Archive.VerifyChecksum, which opening runs
	// when Policy.VerifyChecksumOnOpen is set.
	ErrChecksumMismatch = errors.New("zim: checksum mismatch")
)

// formatErrorf wraps ErrFormatError with additional context, keeping
// errors.Is(err, ErrFormatError) true.
func formatErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormatError, fmt.Sprintf(format, args...))
}

// notFoundErrorf wraps ErrNotFound with additional context.
func notFoundErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
