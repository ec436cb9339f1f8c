package zim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveIterEntriesVisitsEveryEntry(t *testing.T) {
	path := buildArchive(t)
	a, err := Open(path, DefaultPolicy())
	require.NoError(t, err)
	defer a.Close()

	var urls []string
	err = a.IterEntries(func(e *Entry) error {
		urls = append(urls, e.URL)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, urls, a.EntryCount())
	assert.Contains(t, urls, "hello.html")
	assert.Contains(t, urls, "world.html")
}

func TestArchiveIterClustersVisitsEveryCluster(t *testing.T) {
	path := buildArchive(t)
	a, err := Open(path, DefaultPolicy())
	require.NoError(t, err)
	defer a.Close()

	count := 0
	err = a.IterClusters(func(c *Cluster) error {
		count++
		assert.Greater(t, c.BlobCount(), 0)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, a.ClusterCount(), count)
}

func TestArchiveGetEntryByTitle(t *testing.T) {
	path := buildArchive(t)
	a, err := Open(path, DefaultPolicy())
	require.NoError(t, err)
	defer a.Close()

	e, err := a.GetEntryByTitle(NamespaceContent, "A World")
	require.NoError(t, err)
	assert.Equal(t, "world.html", e.URL)
}

func TestArchiveNoMainOrLayoutPageByDefault(t *testing.T) {
	path := buildArchive(t)
	a, err := Open(path, DefaultPolicy())
	require.NoError(t, err)
	defer a.Close()

	_, err = a.MainPage()
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = a.LayoutPage()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchiveGetEntryByURLNotFound(t *testing.T) {
	path := buildArchive(t)
	a, err := Open(path, DefaultPolicy())
	require.NoError(t, err)
	defer a.Close()

	_, err = a.GetEntryByURL(NamespaceContent, "does-not-exist.html")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchiveGetContentEntryByURLResolvesRedirect(t *testing.T) {
	path := buildArchive(t)
	a, err := Open(path, DefaultPolicy())
	require.NoError(t, err)
	defer a.Close()

	e, err := a.GetContentEntryByURL(NamespaceContent, "alias.html")
	require.NoError(t, err)
	assert.False(t, e.IsRedirect())
	assert.Equal(t, "hello.html", e.URL)
}
