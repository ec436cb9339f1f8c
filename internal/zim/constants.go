// Package zim implements the ZIM archive format: a binary codec, cluster
// subsystem, entry/redirect resolver, cache layer, and a writable-archive
// engine with a free-space allocator.
package zim

// Magic is the value every ZIM file begins with, stored as the first
// 4 bytes of the header (little-endian).
const Magic uint32 = 0x44D495A

// SupportedMajorVersions lists the major ZIM versions this package can
// read and write.
var SupportedMajorVersions = []uint16{6}

// HeaderSize is the fixed on-disk size of the ZIM header, in bytes.
const HeaderSize = 80

// NoEntry is the header sentinel meaning "no main/layout page set".
const NoEntry uint32 = 0xFFFFFFFF

// MimetypeRedirect marks a directory entry as a redirect rather than
// content.
const MimetypeRedirect uint16 = 0xFFFF

// ChecksumLength is the length, in bytes, of the MD5 trailer.
const ChecksumLength = 16

// Well-known namespaces.
const (
	NamespaceContent  = 'C'
	NamespaceMetadata = 'M'
	NamespaceLayout   = 'W'
	NamespaceArticle  = 'A'
)

// DefaultRedirectMaxDepth is the default maximum redirect chain length
// before resolution fails with ErrRedirectTooDeep.
const DefaultRedirectMaxDepth = 16
