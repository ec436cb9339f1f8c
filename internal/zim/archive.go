package zim

import (
	"errors"
	"fmt"
	"os"

	ioutil "github.com/zimkit/zimkit/internal/ioutil"
)

// This file implements the public read-only Archive handle tying
// together the header, MIME table, pointer lists, entry cache, and
// cluster cache built in the rest of this package. Its Open/Close
// lifecycle and embedded *os.File ownership mirror a typical segment-file
// handle: Open acquires the resource, Close releases it, and every
// lookup reads through whatever caches the Policy configured.

// Archive is a read-only handle onto one ZIM file. It owns the
// underlying *os.File (when opened via Open) and the caches configured
// by its Policy. An Archive is not safe for concurrent use without
// external synchronization.
type Archive struct {
	source ioutil.Source
	file   *os.File    // non-nil when this Archive owns the file (opened via Open)
	mmap   *MmapSource // non-nil when this Archive owns an mmap (opened via OpenMmapped)

	header    Header
	mimeTypes *MimeTypeList

	urlPointers     *PointerListView
	titlePointers   *PointerListView
	clusterPointers *PointerListView

	registry *CompressionRegistry
	policy   Policy

	entryCache   *Cache[uint32, *Entry]
	clusterCache *Cache[uint32, *Cluster]

	metrics *Metrics

	checksumVerified bool
}

// Metrics returns the archive's running counters.
func (a *Archive) Metrics() *Metrics { return a.metrics }

// Open opens the ZIM file at path for reading, applying policy.
func Open(path string, policy Policy) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open zim archive: %w", err)
	}
	a, err := newArchive(f, policy)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.file = f
	return a, nil
}

// OpenMmapped opens the ZIM file at path via a memory-mapped source
// (MmapSource) instead of ordinary *os.File reads. Close on the
// resulting Archive also unmaps and closes the underlying file.
func OpenMmapped(path string, policy Policy) (*Archive, error) {
	m, err := OpenMmap(path)
	if err != nil {
		return nil, err
	}
	a, err := newArchive(m, policy)
	if err != nil {
		m.Close()
		return nil, err
	}
	a.mmap = m
	return a, nil
}

// OpenSource opens a ZIM archive already available as a random-access
// byte source (e.g. a memory-mapped region or a *bytes.Reader in
// tests), without taking ownership of it. Close on the resulting
// Archive does not close src.
func OpenSource(src ioutil.Source, policy Policy) (*Archive, error) {
	return newArchive(src, policy)
}

func newArchive(src ioutil.Source, policy Policy) (*Archive, error) {
	policy.normalize()

	header, err := ReadHeader(src)
	if err != nil {
		return nil, err
	}

	mimeTypes, err := ReadMimeTypeList(src, header.MimeListPosition)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		source:    src,
		header:    header,
		mimeTypes: mimeTypes,
		registry:  NewCompressionRegistry(),
		policy:    policy,
	}
	for _, tag := range policy.DisabledCompressionTags {
		a.registry.Disable(tag)
	}

	a.urlPointers = NewPointerListView(src, int64(header.URLPointerPosition), PointerWidth64, int(header.EntryCount))
	a.titlePointers = NewPointerListView(src, int64(header.TitlePointerPos), PointerWidth32, int(header.EntryCount))
	a.clusterPointers = NewPointerListView(src, int64(header.ClusterPointerPos), PointerWidth64, int(header.ClusterCount))

	entryEviction := EvictionLRU
	if policy.EntryCacheCapacity == 0 {
		entryEviction = EvictionNone
	}
	clusterEviction := EvictionLRU
	if policy.ClusterCacheCapacity == 0 {
		clusterEviction = EvictionNone
	}
	a.entryCache = NewCache[uint32, *Entry](entryEviction, policy.EntryCacheCapacity)
	a.clusterCache = NewCache[uint32, *Cluster](clusterEviction, policy.ClusterCacheCapacity)
	a.metrics = &Metrics{}

	if policy.VerifyChecksumOnOpen {
		if err := a.VerifyChecksum(); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Close releases resources held by the archive. Closing an Archive
// opened via OpenSource does not close the underlying source.
func (a *Archive) Close() error {
	if a.file != nil {
		err := a.file.Close()
		a.file = nil
		return err
	}
	if a.mmap != nil {
		err := a.mmap.Close()
		a.mmap = nil
		return err
	}
	return nil
}

// Header returns the archive's parsed 80-byte header.
func (a *Archive) Header() Header { return a.header }

// UUID returns the archive's 16-byte identifier.
func (a *Archive) UUID() [16]byte { return a.header.UUID }

// EntryCount returns the total number of directory entries.
func (a *Archive) EntryCount() int { return int(a.header.EntryCount) }

// ClusterCount returns the total number of clusters.
func (a *Archive) ClusterCount() int { return int(a.header.ClusterCount) }

// MainPage returns the entry the header designates as the main page, if
// any.
func (a *Archive) MainPage() (*Entry, error) {
	if !a.header.HasMainPage() {
		return nil, ErrNotFound
	}
	return a.getEntryByIndex(a.header.MainPage)
}

// LayoutPage returns the entry the header designates as the layout
// page, if any.
func (a *Archive) LayoutPage() (*Entry, error) {
	if !a.header.HasLayoutPage() {
		return nil, ErrNotFound
	}
	return a.getEntryByIndex(a.header.LayoutPage)
}

// GetEntryByFullURL looks up an entry by its namespace-qualified URL
// ("C/some/path"). The returned entry is bound but not resolved: call
// Resolve() if it may be a redirect.
func (a *Archive) GetEntryByFullURL(fullURL string) (*Entry, error) {
	if len(fullURL) < 2 || fullURL[1] != '/' {
		return nil, formatErrorf("malformed full url %q", fullURL)
	}
	return a.GetEntryByURL(fullURL[0], fullURL[2:])
}

// GetEntryByURL looks up an entry by namespace and URL.
func (a *Archive) GetEntryByURL(namespace byte, url string) (*Entry, error) {
	idx, err := a.findByURLKey(namespace, url)
	if err != nil {
		return nil, err
	}
	return a.getEntryByIndex(idx)
}

// GetContentEntryByURL looks up an entry by namespace and URL and
// resolves any redirect, returning the underlying content entry.
func (a *Archive) GetContentEntryByURL(namespace byte, url string) (*Entry, error) {
	e, err := a.GetEntryByURL(namespace, url)
	if err != nil {
		return nil, err
	}
	return e.Resolve()
}

// GetEntryByTitle looks up an entry by namespace and title.
func (a *Archive) GetEntryByTitle(namespace byte, title string) (*Entry, error) {
	idx, err := a.findByTitleKey(namespace, title)
	if err != nil {
		return nil, err
	}
	return a.getEntryByIndex(idx)
}

// GetEntryByID returns the entry at the given global entry index (its
// position in the URL pointer list).
func (a *Archive) GetEntryByID(id uint32) (*Entry, error) {
	return a.getEntryByIndex(id)
}

// Metadata returns the value stored under the "M/"+key metadata entry,
// resolving redirects. Returns ErrNotFound if the key is absent, mirroring
// pyzim's metadata(key) accessor.
func (a *Archive) Metadata(key string) ([]byte, error) {
	e, err := a.GetContentEntryByURL(NamespaceMetadata, key)
	if err != nil {
		return nil, err
	}
	return e.Read()
}

// IterEntries calls fn for every directory entry in URL-pointer-list
// order (namespace, then raw byte order of URL), stopping at the first
// error fn returns.
func (a *Archive) IterEntries(fn func(*Entry) error) error {
	for i := 0; i < a.urlPointers.Len(); i++ {
		e, err := a.getEntryByIndex(uint32(i))
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// IterClusters calls fn for every cluster in file order, stopping at
// the first error fn or the underlying read returns. Each cluster is
// closed after fn returns.
func (a *Archive) IterClusters(fn func(*Cluster) error) error {
	n := a.clusterPointers.Len()
	for i := 0; i < n; i++ {
		c, err := a.getClusterByIndex(uint32(i))
		if err != nil {
			return err
		}
		err = fn(c)
		c.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// getClusterByIndex returns the cluster at position idx in the cluster
// pointer list, using the cache when present.
func (a *Archive) getClusterByIndex(idx uint32) (*Cluster, error) {
	if cached, ok := a.clusterCache.Get(idx); ok {
		a.metrics.ClusterCacheHits.Add(1)
		return cached, nil
	}
	a.metrics.ClusterCacheMisses.Add(1)
	n := a.clusterPointers.Len()
	if int(idx) >= n {
		return nil, notFoundErrorf("cluster index %d out of range", idx)
	}
	offset, err := a.clusterPointers.Get(int(idx))
	if err != nil {
		return nil, err
	}
	var next int64
	if int(idx)+1 < n {
		nextOffset, err := a.clusterPointers.Get(int(idx) + 1)
		if err != nil {
			return nil, err
		}
		next = int64(nextOffset)
	} else {
		next = int64(a.header.ChecksumPosition)
	}
	a.policy.Logger.Debug("cluster read", "index", idx, "offset", offset, "representation", a.policy.ClusterRepresentationForRead)
	c, err := readClusterAt(a, idx, int64(offset), next, a.registry, a.policy.ClusterRepresentationForRead)
	if err != nil {
		if errors.Is(err, ErrUnsupportedCompression) {
			a.policy.Logger.Warn("cluster uses an unsupported or disabled codec", "index", idx, "error", err)
		}
		return nil, err
	}
	a.metrics.ClustersRead.Add(1)
	a.clusterCache.Put(idx, c)
	return c, nil
}

// VerifyChecksum recomputes the MD5 digest over every byte preceding
// the checksum trailer and compares it against the stored trailer,
// returning ErrChecksumMismatch on a mismatch.
func (a *Archive) VerifyChecksum() error {
	end := int64(a.header.ChecksumPosition)
	computed, err := computeChecksum(a.source, end)
	if err != nil {
		return err
	}
	var stored [ChecksumLength]byte
	if err := ioutil.ReadAt(a.source, end, stored[:]); err != nil {
		return fmt.Errorf("verify checksum: %w", err)
	}
	if computed != stored {
		return ErrChecksumMismatch
	}
	a.checksumVerified = true
	return nil
}
