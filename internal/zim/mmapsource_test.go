package zim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMmapSourceReadAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	content := []byte("0123456789abcdef")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	m, err := OpenMmap(path)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, int64(len(content)), m.Size())

	buf := make([]byte, 4)
	n, err := m.ReadAt(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "3456", string(buf))
}

func TestMmapSourceReadAtPastEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o644))

	m, err := OpenMmap(path)
	require.NoError(t, err)
	defer m.Close()

	buf := make([]byte, 10)
	_, err = m.ReadAt(buf, 100)
	assert.Error(t, err)
}

func TestMmapSourceEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	m, err := OpenMmap(path)
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, int64(0), m.Size())
}

func TestOpenMmappedArchive(t *testing.T) {
	path := buildArchive(t)

	a, err := OpenMmapped(path, DefaultPolicy())
	require.NoError(t, err)
	defer a.Close()

	e, err := a.GetEntryByURL(NamespaceContent, "hello.html")
	require.NoError(t, err)
	body, err := e.Read()
	require.NoError(t, err)
	assert.Equal(t, "<html>hello</html>", string(body))
}
