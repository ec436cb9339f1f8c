package zim

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"

	ioutil "github.com/zimkit/zimkit/internal/ioutil"
)

// This file implements the writer/editor engine: a single *os.File
// guarded by a sync.RWMutex, mutations staged in memory and only made
// durable on flush, with Close calling flush and joining errors via
// errors.Join. The set kept in memory is the staged directory-entry and
// cluster edits; flush rewrites the three pointer lists and the header
// in place, since ZIM's format is not append-only at the logical level
// even though individual edits prefer appending bytes over in-place
// rewriting.

// Writer opens a ZIM archive for reading and staged editing. Edits
// (AddEntry, RemoveEntry, EditEntry, AddCluster) only affect the staged
// in-memory state; Flush makes them durable. A Writer is not safe for
// concurrent use from multiple goroutines without external
// synchronization beyond what its internal mutex provides for
// serializing flush against reads.
type Writer struct {
	mu sync.RWMutex

	path   string
	file   *os.File
	policy Policy

	header    Header
	mimeTypes *MimeTypeList
	registry  *CompressionRegistry

	urlList     *MutablePointerList
	titleList   *MutablePointerList
	clusterList *MutablePointerList

	// entries mirrors urlList: entries[i] is the directory entry whose
	// pointer is urlList.Get(i). Fully materialized because edits need
	// random-access rewriting of titles/content and re-sorting.
	entries []*Entry

	// pendingClusters holds newly encoded cluster bytes awaiting
	// allocation+placement at Flush, in the order AddCluster staged
	// them. Their eventual cluster numbers are len(clusterList) +
	// their position in this slice.
	pendingClusters [][]byte

	allocator *Allocator
	dirty     bool

	// counter tracks MIME-type tallies incrementally as entries are
	// added/removed, so Flush can rewrite M/Counter without a full
	// rescan. nil until first touched by an edit on a Writer opened
	// via OpenWriter; lazily built from the existing archive then.
	counter *Counter
	// counterSynced is the M/Counter body written by the most recent
	// flush, if any. syncCounterEntryLocked skips rewriting (and
	// leaking a fresh cluster for) an unchanged counter.
	counterSynced []byte

	// prevEntryRanges, prevMimeRange, prevURLListRange,
	// prevTitleListRange and prevClusterListRange record where this
	// content currently lives on disk, as of the last flush (or the
	// archive's state at OpenWriter). flushLocked releases all of these
	// back to the allocator before reallocating, since every flush
	// rewrites every entry and every table regardless of whether its
	// content actually changed; without this, each flush would orphan
	// the previous layout and the file would grow without bound.
	prevEntryRanges      []freeRange
	prevMimeRange        freeRange
	prevURLListRange     freeRange
	prevTitleListRange   freeRange
	prevClusterListRange freeRange
	// prevChecksumRange is the MD5 trailer's current disk range. Tracked
	// separately from w.header.ChecksumPosition (which flushLocked
	// overwrites with the new position before this is updated) so the
	// old trailer bytes get released like everything else instead of
	// stranding 16 bytes between the freed tables and the file's old
	// end on every flush.
	prevChecksumRange freeRange
}

// OpenWriter opens path for reading and writing and prepares a Writer
// over its existing contents.
func OpenWriter(path string, policy Policy) (*Writer, error) {
	policy.normalize()

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open zim archive for writing: %w", err)
	}

	header, err := ReadHeader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	mimeTypes, err := ReadMimeTypeList(f, header.MimeListPosition)
	if err != nil {
		f.Close()
		return nil, err
	}

	urlView := NewPointerListView(f, int64(header.URLPointerPosition), PointerWidth64, int(header.EntryCount))
	titleView := NewPointerListView(f, int64(header.TitlePointerPos), PointerWidth32, int(header.EntryCount))
	clusterView := NewPointerListView(f, int64(header.ClusterPointerPos), PointerWidth64, int(header.ClusterCount))

	urlList, err := LoadMutablePointerList(urlView)
	if err != nil {
		f.Close()
		return nil, err
	}
	titleList, err := LoadMutablePointerList(titleView)
	if err != nil {
		f.Close()
		return nil, err
	}
	clusterList, err := LoadMutablePointerList(clusterView)
	if err != nil {
		f.Close()
		return nil, err
	}

	entries := make([]*Entry, urlList.Len())
	entryRanges := make([]freeRange, urlList.Len())
	for i := 0; i < urlList.Len(); i++ {
		offset := int64(urlList.Get(i))
		e, next, err := decodeEntry(f, offset)
		if err != nil {
			f.Close()
			return nil, err
		}
		entries[i] = e
		entryRanges[i] = freeRange{Offset: uint64(offset), Size: uint64(next - offset)}
	}

	clusterRanges := make([]freeRange, clusterList.Len())
	for i := 0; i < clusterList.Len(); i++ {
		start := clusterList.Get(i)
		end := header.ChecksumPosition
		if i+1 < clusterList.Len() {
			end = clusterList.Get(i + 1)
		}
		clusterRanges[i] = freeRange{Offset: start, Size: end - start}
	}

	registry := NewCompressionRegistry()
	for _, tag := range policy.DisabledCompressionTags {
		registry.Disable(tag)
	}

	prevMimeRange := freeRange{Offset: header.MimeListPosition, Size: uint64(mimeTypes.EncodedSize())}
	prevURLListRange := freeRange{Offset: header.URLPointerPosition, Size: uint64(urlList.EncodedSize())}
	prevTitleListRange := freeRange{Offset: header.TitlePointerPos, Size: uint64(titleList.EncodedSize())}
	prevClusterListRange := freeRange{Offset: header.ClusterPointerPos, Size: uint64(clusterList.EncodedSize())}

	allocator := NewAllocator(0, policy.AllocStrategy, policy.CoalesceFreeRanges)
	allocator.SetLogger(policy.Logger)

	prevChecksumRange := freeRange{Offset: header.ChecksumPosition, Size: ChecksumLength}

	regions := make([]freeRange, 0, len(entryRanges)+len(clusterRanges)+6)
	regions = append(regions, freeRange{Offset: 0, Size: HeaderSize})
	regions = append(regions, prevChecksumRange)
	regions = append(regions, prevMimeRange, prevURLListRange, prevTitleListRange, prevClusterListRange)
	regions = append(regions, entryRanges...)
	regions = append(regions, clusterRanges...)
	allocator.SeedFromRegions(regions, header.ChecksumPosition+ChecksumLength)

	w := &Writer{
		path:                 path,
		file:                 f,
		policy:               policy,
		header:               header,
		mimeTypes:            mimeTypes,
		registry:             registry,
		urlList:              urlList,
		titleList:            titleList,
		clusterList:          clusterList,
		entries:              entries,
		allocator:            allocator,
		prevEntryRanges:      entryRanges,
		prevMimeRange:        prevMimeRange,
		prevURLListRange:     prevURLListRange,
		prevTitleListRange:   prevTitleListRange,
		prevClusterListRange: prevClusterListRange,
		prevChecksumRange:    prevChecksumRange,
	}
	return w, nil
}

// Create initializes a brand-new, empty ZIM archive at path and returns
// a Writer over it. Nothing is written until the first Flush; the
// allocator reserves the first HeaderSize bytes, and Flush writes the
// header there once pointer positions are known.
func Create(path string, uuid [16]byte, policy Policy) (*Writer, error) {
	policy.normalize()

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create zim archive: %w", err)
	}

	header := Header{
		MagicNumber:  Magic,
		MajorVersion: 6,
		MinorVersion: 1,
		UUID:         uuid,
		MainPage:     NoEntry,
		LayoutPage:   NoEntry,
	}

	allocator := NewAllocator(HeaderSize, policy.AllocStrategy, policy.CoalesceFreeRanges)
	allocator.SetLogger(policy.Logger)

	w := &Writer{
		path:        path,
		file:        f,
		policy:      policy,
		header:      header,
		mimeTypes:   NewMimeTypeList(nil),
		registry:    NewCompressionRegistry(),
		urlList:     NewMutablePointerList(PointerWidth64),
		titleList:   NewMutablePointerList(PointerWidth32),
		clusterList: NewMutablePointerList(PointerWidth64),
		allocator:   allocator,
		dirty:       true,
	}
	for _, tag := range policy.DisabledCompressionTags {
		w.registry.Disable(tag)
	}
	return w, nil
}

// AddEntry stages the addition of a new directory entry. e must not
// already be bound. If overwrite is false and an entry with the same
// (Namespace, URL) already exists, ErrDuplicateEntry is returned; if
// true, the existing entry is replaced in place (EditEntry semantics).
func (w *Writer) AddEntry(e *Entry, overwrite bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.addEntryLocked(e, overwrite)
}

func (w *Writer) addEntryLocked(e *Entry, overwrite bool) error {
	w.ensureCounter()

	if !e.IsRedirect() && e.MimetypeName != "" {
		e.MimetypeID = w.mimeTypes.IndexOf(e.MimetypeName)
	}

	pos := find(len(w.entries), func(i int) bool {
		return compareNamespacedKey(w.entries[i].Namespace, []byte(w.entries[i].URL), e.Namespace, []byte(e.URL)) < 0
	})
	if pos < len(w.entries) && w.entries[pos].Namespace == e.Namespace && w.entries[pos].URL == e.URL {
		if !overwrite {
			return ErrDuplicateEntry
		}
		return w.replaceAt(pos, e)
	}

	w.countEntry(e)
	w.entries = append(w.entries, nil)
	copy(w.entries[pos+1:], w.entries[pos:])
	w.entries[pos] = e
	w.urlList.Insert(pos, 0) // placeholder; Flush assigns real offsets
	w.retitlePositions()
	w.dirty = true
	return nil
}

// replaceAt overwrites the entry at position pos (already matching
// newEntry's key) with newEntry, preserving its position.
func (w *Writer) replaceAt(pos int, newEntry *Entry) error {
	titleChanged := newEntry.Title() != w.entries[pos].Title()
	w.uncountEntry(w.entries[pos])
	w.countEntry(newEntry)
	w.entries[pos] = newEntry
	if titleChanged {
		w.retitlePositions()
	}
	w.dirty = true
	return nil
}

// ensureCounter lazily builds the MIME-type tally from the currently
// staged entries the first time any counted edit touches it.
func (w *Writer) ensureCounter() {
	if w.counter != nil {
		return
	}
	c := NewCounter()
	for _, e := range w.entries {
		if e.IsRedirect() {
			continue
		}
		if mt, err := w.mimeTypes.Get(e.MimetypeID); err == nil {
			c.Add(mt)
		}
	}
	w.counter = c
}

// countEntry adds e's mimetype to the counter, if e is non-nil and not
// a redirect.
func (w *Writer) countEntry(e *Entry) {
	if e == nil || e.IsRedirect() || w.counter == nil {
		return
	}
	if mt, err := w.mimeTypes.Get(e.MimetypeID); err == nil {
		w.counter.Add(mt)
	}
}

// uncountEntry removes e's mimetype from the counter, if e is non-nil
// and not a redirect.
func (w *Writer) uncountEntry(e *Entry) {
	if e == nil || e.IsRedirect() || w.counter == nil {
		return
	}
	if mt, err := w.mimeTypes.Get(e.MimetypeID); err == nil {
		w.counter.Remove(mt)
	}
}

// retitlePositions rebuilds the title pointer list from scratch against
// the current entries slice. Simpler and safer than incremental
// maintenance, and cheap relative to a flush's other costs since titles
// are small integers.
func (w *Writer) retitlePositions() {
	order := make([]int, len(w.entries))
	for i := range order {
		order[i] = i
	}
	sortByTitle(order, w.entries)
	w.titleList = NewMutablePointerList(PointerWidth32)
	for _, idx := range order {
		w.titleList.Append(uint64(idx))
	}
}

func sortByTitle(order []int, entries []*Entry) {
	for i := 1; i < len(order); i++ {
		for j := i; j > 0; j-- {
			a, b := entries[order[j-1]], entries[order[j]]
			if compareNamespacedKey(a.Namespace, []byte(a.Title()), b.Namespace, []byte(b.Title())) <= 0 {
				break
			}
			order[j-1], order[j] = order[j], order[j-1]
		}
	}
}

// RemoveEntry stages removal of the entry with the given namespace and
// URL. Returns ErrNotFound if no such entry is staged.
func (w *Writer) RemoveEntry(namespace byte, url string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ensureCounter()

	pos := find(len(w.entries), func(i int) bool {
		return compareNamespacedKey(w.entries[i].Namespace, []byte(w.entries[i].URL), namespace, []byte(url)) < 0
	})
	if pos >= len(w.entries) || w.entries[pos].Namespace != namespace || w.entries[pos].URL != url {
		return notFoundErrorf("no entry with url %c/%s", namespace, url)
	}

	w.uncountEntry(w.entries[pos])
	w.entries = append(w.entries[:pos], w.entries[pos+1:]...)
	w.urlList.Remove(pos)
	w.retitlePositions()
	w.dirty = true
	return nil
}

// EditEntry stages an edit of the entry at (namespace, url), replacing
// its fields with those of updated. updated's own Namespace/URL must
// match the key being edited; use RemoveEntry+AddEntry to rename.
func (w *Writer) EditEntry(namespace byte, url string, updated *Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ensureCounter()

	pos := find(len(w.entries), func(i int) bool {
		return compareNamespacedKey(w.entries[i].Namespace, []byte(w.entries[i].URL), namespace, []byte(url)) < 0
	})
	if pos >= len(w.entries) || w.entries[pos].Namespace != namespace || w.entries[pos].URL != url {
		return notFoundErrorf("no entry with url %c/%s", namespace, url)
	}
	if updated.Namespace != namespace || updated.URL != url {
		return formatErrorf("EditEntry must preserve namespace/url; use RemoveEntry+AddEntry to rename")
	}
	if !updated.IsRedirect() && updated.MimetypeName != "" {
		updated.MimetypeID = w.mimeTypes.IndexOf(updated.MimetypeName)
	}
	titleChanged := updated.Title() != w.entries[pos].Title()
	w.uncountEntry(w.entries[pos])
	w.countEntry(updated)
	w.entries[pos] = updated
	if titleChanged {
		w.retitlePositions()
	}
	w.dirty = true
	return nil
}

// AddCluster stages a new cluster of blobs compressed with tag,
// returning the cluster number it will receive on the next Flush.
func (w *Writer) AddCluster(blobs [][]byte, tag CompressionTag) (uint32, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.addClusterLocked(blobs, tag)
}

func (w *Writer) addClusterLocked(blobs [][]byte, tag CompressionTag) (uint32, error) {
	encoded, err := encodeCluster(blobs, tag, w.registry)
	if err != nil {
		return 0, err
	}
	number := uint32(w.clusterList.Len() + len(w.pendingClusters))
	w.pendingClusters = append(w.pendingClusters, encoded)
	w.dirty = true
	return number, nil
}

// Flush writes every staged change to disk: new clusters, the current
// entries slice re-encoded, the three pointer lists, the MIME table,
// the header, and the MD5 trailer. All allocations for this flush are
// tracked so that if any write fails, the allocator is rolled back and
// none of the staged state is discarded — the caller may retry or
// Close without losing edits.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirty {
		return nil
	}

	rollbackAllocs := w.allocator.Snapshot()
	rollbackFileEnd := w.allocator.FileEnd()
	if err := w.flushLocked(); err != nil {
		w.allocator.free = rollbackAllocs
		w.allocator.fileEnd = rollbackFileEnd
		return err
	}
	w.dirty = false
	return nil
}

// syncCounterEntryLocked rewrites the M/Counter metadata entry from the
// incrementally-maintained Counter, if any counted edit has touched it
// since the Writer was opened. A no-op otherwise, leaving an
// already-correct M/Counter entry (or the absence of one, for archives
// that never had one) untouched.
func (w *Writer) syncCounterEntryLocked() error {
	if w.counter == nil {
		return nil
	}
	if bytes.Equal(w.counter.Encode(), w.counterSynced) {
		// Unchanged since the last flush: skip writing a fresh cluster
		// for it. Cluster bytes are never reclaimed once flushed (see
		// allocator.go), so rewriting an identical counter on every
		// flush would leak a little space forever.
		return nil
	}
	// Stage the M/Counter entry before encoding, so that a newly added
	// one is itself part of the tally it records.
	entry := &Entry{
		MimetypeID:    w.mimeTypes.IndexOf("text/plain"),
		Namespace:     NamespaceMetadata,
		URL:           "Counter",
		ClusterNumber: uint32(w.clusterList.Len() + len(w.pendingClusters)),
		BlobNumber:    0,
	}
	if err := w.addEntryLocked(entry, true); err != nil {
		return err
	}
	body := w.counter.Encode()
	if _, err := w.addClusterLocked([][]byte{body}, CompressionNone1); err != nil {
		return err
	}
	w.counterSynced = body
	return nil
}

// isClusterReferenced reports whether any current entry points at
// cluster number.
func (w *Writer) isClusterReferenced(number uint32) bool {
	for _, e := range w.entries {
		if !e.IsRedirect() && e.ClusterNumber == number {
			return true
		}
	}
	return false
}

// dropUnreferencedPendingClusters drops not-yet-flushed clusters from
// the tail of pendingClusters that ended up referenced by nothing (e.g.
// AddCluster followed by RemoveEntry before the next Flush). Since
// these clusters were never written to disk, nothing needs releasing;
// this purely avoids paying for (and permanently leaking, per
// allocator.go's no-cluster-reclamation policy) a cluster nothing
// points at. Only the tail can be dropped without renumbering every
// entry that references a later pending cluster.
func (w *Writer) dropUnreferencedPendingClusters() {
	for len(w.pendingClusters) > 0 {
		last := uint32(w.clusterList.Len() + len(w.pendingClusters) - 1)
		if w.isClusterReferenced(last) {
			return
		}
		w.pendingClusters = w.pendingClusters[:len(w.pendingClusters)-1]
	}
}

func (w *Writer) flushLocked() error {
	if err := w.syncCounterEntryLocked(); err != nil {
		return fmt.Errorf("flush: sync counter entry: %w", err)
	}
	w.dropUnreferencedPendingClusters()

	// Every entry and table gets rewritten below regardless of whether
	// its content actually changed, so free their previous disk space
	// first: the allocator then hands those same bytes straight back
	// out, which is what lets an edit-then-revert flush reproduce the
	// original layout instead of growing the file.
	for _, r := range w.prevEntryRanges {
		w.allocator.Release(r.Offset, r.Size)
	}
	w.allocator.Release(w.prevMimeRange.Offset, w.prevMimeRange.Size)
	w.allocator.Release(w.prevURLListRange.Offset, w.prevURLListRange.Size)
	w.allocator.Release(w.prevTitleListRange.Offset, w.prevTitleListRange.Size)
	w.allocator.Release(w.prevClusterListRange.Offset, w.prevClusterListRange.Size)
	w.allocator.Release(w.prevChecksumRange.Offset, w.prevChecksumRange.Size)

	for _, encoded := range w.pendingClusters {
		offset := w.allocator.Allocate(uint64(len(encoded)))
		if _, err := w.file.WriteAt(encoded, int64(offset)); err != nil {
			return fmt.Errorf("flush: write cluster: %w", err)
		}
		w.clusterList.Append(offset)
	}
	w.pendingClusters = nil

	newEntryRanges := make([]freeRange, len(w.entries))
	for i, e := range w.entries {
		encoded := e.Encode()
		offset := w.allocator.Allocate(uint64(len(encoded)))
		if _, err := w.file.WriteAt(encoded, int64(offset)); err != nil {
			return fmt.Errorf("flush: write entry: %w", err)
		}
		w.urlList.Set(i, offset)
		newEntryRanges[i] = freeRange{Offset: offset, Size: uint64(len(encoded))}
	}

	mimeBuf := w.mimeTypes.Encode()
	mimePos := w.allocator.Allocate(uint64(len(mimeBuf)))
	if _, err := w.file.WriteAt(mimeBuf, int64(mimePos)); err != nil {
		return fmt.Errorf("flush: write mime table: %w", err)
	}

	urlBuf := w.urlList.Encode()
	urlPos := w.allocator.Allocate(uint64(len(urlBuf)))
	if _, err := w.file.WriteAt(urlBuf, int64(urlPos)); err != nil {
		return fmt.Errorf("flush: write url pointer list: %w", err)
	}

	titleBuf := w.titleList.Encode()
	titlePos := w.allocator.Allocate(uint64(len(titleBuf)))
	if _, err := w.file.WriteAt(titleBuf, int64(titlePos)); err != nil {
		return fmt.Errorf("flush: write title pointer list: %w", err)
	}

	clusterBuf := w.clusterList.Encode()
	clusterPos := w.allocator.Allocate(uint64(len(clusterBuf)))
	if _, err := w.file.WriteAt(clusterBuf, int64(clusterPos)); err != nil {
		return fmt.Errorf("flush: write cluster pointer list: %w", err)
	}

	w.header.EntryCount = uint32(len(w.entries))
	w.header.ClusterCount = uint32(w.clusterList.Len())
	w.header.MimeListPosition = uint64(mimePos)
	w.header.URLPointerPosition = uint64(urlPos)
	w.header.TitlePointerPos = uint64(titlePos)
	w.header.ClusterPointerPos = uint64(clusterPos)
	checksumPos := w.allocator.FileEnd()
	w.header.ChecksumPosition = checksumPos

	if _, err := w.file.WriteAt(w.header.Encode(), 0); err != nil {
		return fmt.Errorf("flush: write header: %w", err)
	}

	checksum, err := computeChecksum(w.file, int64(checksumPos))
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if _, err := w.file.WriteAt(checksum[:], int64(checksumPos)); err != nil {
		return fmt.Errorf("flush: write checksum: %w", err)
	}

	fileEnd := int64(checksumPos) + ChecksumLength
	if w.policy.TruncateAfterWrite {
		if err := w.file.Truncate(fileEnd); err != nil {
			return fmt.Errorf("flush: truncate: %w", err)
		}
	}

	w.prevEntryRanges = newEntryRanges
	w.prevMimeRange = freeRange{Offset: mimePos, Size: uint64(len(mimeBuf))}
	w.prevURLListRange = freeRange{Offset: urlPos, Size: uint64(len(urlBuf))}
	w.prevTitleListRange = freeRange{Offset: titlePos, Size: uint64(len(titleBuf))}
	w.prevClusterListRange = freeRange{Offset: clusterPos, Size: uint64(len(clusterBuf))}
	w.prevChecksumRange = freeRange{Offset: checksumPos, Size: ChecksumLength}

	w.policy.Logger.Debug("flush complete", "entries", len(w.entries), "clusters", w.clusterList.Len(), "fileEnd", fileEnd)
	return nil
}

// CheckConsistency checks the allocator's accounting against the file,
// similar to pyzim's archive-level consistency checks: the allocator's
// file end must not exceed the file's actual size, its free bytes must
// not exceed that file end, and the staged entry count must match the
// URL pointer list length. It does not sum the live regions. Not run
// automatically on every Flush; callers invoke it explicitly.
func (w *Writer) CheckConsistency() error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	if w.allocator.FileEnd() > uint64(info.Size()) {
		return formatErrorf("allocator file end %d exceeds actual file size %d", w.allocator.FileEnd(), info.Size())
	}
	if w.allocator.FreeBytes() > w.allocator.FileEnd() {
		return formatErrorf("free bytes %d exceed file end %d", w.allocator.FreeBytes(), w.allocator.FileEnd())
	}
	if uint32(len(w.entries)) != uint32(w.urlList.Len()) {
		return formatErrorf("entries count %d disagrees with url pointer list length %d", len(w.entries), w.urlList.Len())
	}
	return nil
}

// Close flushes any pending edits and closes the underlying file,
// joining both errors if they occur.
func (w *Writer) Close() error {
	flushErr := w.Flush()
	closeErr := w.file.Close()
	return errors.Join(flushErr, closeErr)
}

var _ ioutil.Source = (*os.File)(nil)
