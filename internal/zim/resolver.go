package zim

import (
	ioutil "github.com/zimkit/zimkit/internal/ioutil"
)

// This file implements turning a directory entry index into its
// eventual content entry by following redirects, and the lookup
// operations that search the URL/title pointer lists. Grounded on
// pyzim/archive.py's Archive.get_entry_by_id / Archive._follow_redirect,
// which loop with a visited-set guard and a maximum depth rather than
// recursing unboundedly.

// resolveEntry follows e's redirect chain (if any) to the underlying
// content entry, detecting cycles and enforcing the archive's
// RedirectMaxDepth.
func (a *Archive) resolveEntry(e *Entry) (*Entry, error) {
	if !e.IsRedirect() {
		return e, nil
	}
	visited := make(map[uint32]bool)
	current := e
	for depth := 0; ; depth++ {
		if depth >= a.policy.RedirectMaxDepth {
			return nil, ErrRedirectTooDeep
		}
		idx := current.RedirectIndex
		if visited[idx] {
			return nil, ErrRedirectLoop
		}
		visited[idx] = true

		next, err := a.getEntryByIndex(idx)
		if err != nil {
			return nil, err
		}
		if !next.IsRedirect() {
			return next, nil
		}
		current = next
	}
}

// getEntryByIndex returns the directory entry at position idx in the
// URL pointer list (i.e. its "entry index" / "global id"), binding it
// to the archive and populating the entry cache.
func (a *Archive) getEntryByIndex(idx uint32) (*Entry, error) {
	if cached, ok := a.entryCache.Get(idx); ok {
		a.metrics.EntryCacheHits.Add(1)
		return cached, nil
	}
	a.metrics.EntryCacheMisses.Add(1)
	if int(idx) >= a.urlPointers.Len() {
		return nil, notFoundErrorf("entry index %d out of range", idx)
	}
	offset, err := a.urlPointers.Get(int(idx))
	if err != nil {
		return nil, err
	}
	e, _, err := decodeEntry(a.source, int64(offset))
	if err != nil {
		return nil, err
	}
	e.Bind(a)
	a.entryCache.Put(idx, e)
	return e, nil
}

// findByURLKey runs a binary search over the URL pointer list for the
// entry whose (namespace, url) key matches exactly, returning its
// position in the list (== its entry index) or ErrNotFound.
func (a *Archive) findByURLKey(namespace byte, url string) (uint32, error) {
	n := a.urlPointers.Len()
	var searchErr error
	idx := find(n, func(i int) bool {
		offset, err := a.urlPointers.Get(i)
		if err != nil {
			searchErr = err
			return false
		}
		less, err := urlKeyLess(a.source, int64(offset), namespace, url)
		if err != nil {
			searchErr = err
			return false
		}
		return less
	})
	if searchErr != nil {
		return 0, searchErr
	}
	if idx >= n {
		return 0, notFoundErrorf("no entry with url %c/%s", namespace, url)
	}
	offset, err := a.urlPointers.Get(idx)
	if err != nil {
		return 0, err
	}
	ns, u, err := decodeEntryKey(a.source, int64(offset))
	if err != nil {
		return 0, err
	}
	if ns != namespace || u != url {
		return 0, notFoundErrorf("no entry with url %c/%s", namespace, url)
	}
	return uint32(idx), nil
}

// findByTitleKey runs a binary search over the title pointer list,
// whose entries are indices into the URL pointer list sorted by title,
// returning the matching entry's URL-pointer-list index.
func (a *Archive) findByTitleKey(namespace byte, title string) (uint32, error) {
	n := a.titlePointers.Len()
	var searchErr error
	idx := find(n, func(i int) bool {
		urlIdx, err := a.titlePointers.Get(i)
		if err != nil {
			searchErr = err
			return false
		}
		offset, err := a.urlPointers.Get(int(urlIdx))
		if err != nil {
			searchErr = err
			return false
		}
		less, err := titleKeyLess(a.source, int64(offset), namespace, title)
		if err != nil {
			searchErr = err
			return false
		}
		return less
	})
	if searchErr != nil {
		return 0, searchErr
	}
	if idx >= n {
		return 0, notFoundErrorf("no entry with title %c/%s", namespace, title)
	}
	urlIdx, err := a.titlePointers.Get(idx)
	if err != nil {
		return 0, err
	}
	entry, err := a.getEntryByIndex(uint32(urlIdx))
	if err != nil {
		return 0, err
	}
	if entry.Namespace != namespace || entry.Title() != title {
		return 0, notFoundErrorf("no entry with title %c/%s", namespace, title)
	}
	return uint32(urlIdx), nil
}

// titleKeyLess reports whether the entry at offset sorts strictly
// before (namespace, title) by its effective title. Unlike urlKeyLess
// this must decode the full entry, since the title may be absent (and
// fall back to the URL) and lives after the variant-specific fields.
func titleKeyLess(src ioutil.Source, offset int64, namespace byte, title string) (bool, error) {
	e, _, err := decodeEntry(src, offset)
	if err != nil {
		return false, err
	}
	return compareNamespacedKey(e.Namespace, []byte(e.Title()), namespace, []byte(title)) < 0, nil
}
