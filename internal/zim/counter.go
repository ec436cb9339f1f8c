package zim

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// This file implements the MIME-type tally backing the M/Counter
// metadata entry, grounded on pyzim/counter.py: the entry holds a
// text/plain, ';'-separated list of "mimetype=count" pairs, recording
// how many content entries of each MIME type the archive holds.

// Counter tallies content entries by MIME type.
type Counter struct {
	counts map[string]int
}

// NewCounter returns an empty Counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// Add increments the count for mimetype.
func (c *Counter) Add(mimetype string) {
	c.counts[mimetype]++
}

// Remove decrements the count for mimetype, dropping it once it
// reaches zero.
func (c *Counter) Remove(mimetype string) {
	if c.counts[mimetype] <= 1 {
		delete(c.counts, mimetype)
		return
	}
	c.counts[mimetype]--
}

// Count returns the current tally for mimetype.
func (c *Counter) Count(mimetype string) int { return c.counts[mimetype] }

// CountFromArchive builds a Counter by iterating every content entry in
// a, resolving its mimetype. Used to (re)initialize a Writer's counter
// from an archive opened for editing.
func CountFromArchive(a *Archive) (*Counter, error) {
	c := NewCounter()
	err := a.IterEntries(func(e *Entry) error {
		if e.IsRedirect() {
			return nil
		}
		mt, err := e.Mimetype()
		if err != nil {
			return err
		}
		c.Add(mt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Encode renders the counter as the text/plain body of the M/Counter
// entry: "mimetype=count" pairs separated by ';', sorted by mimetype
// for a deterministic encoding (pyzim does not specify an order; sorting
// here just avoids spurious diffs between otherwise-identical archives).
func (c *Counter) Encode() []byte {
	keys := make([]string, 0, len(c.counts))
	for k := range c.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%s=%d", k, c.counts[k])
	}
	return []byte(b.String())
}

// ParseCounter parses the text/plain body of an M/Counter entry.
func ParseCounter(body []byte) (*Counter, error) {
	c := NewCounter()
	text := strings.TrimSpace(string(body))
	if text == "" {
		return c, nil
	}
	for _, pair := range strings.Split(text, ";") {
		eq := strings.LastIndex(pair, "=")
		if eq < 0 {
			return nil, formatErrorf("malformed counter entry %q", pair)
		}
		mimetype := pair[:eq]
		n, err := strconv.Atoi(pair[eq+1:])
		if err != nil {
			return nil, formatErrorf("malformed counter entry %q: %v", pair, err)
		}
		c.counts[mimetype] = n
	}
	return c, nil
}
