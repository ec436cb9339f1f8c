package ioutil

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAtExact(t *testing.T) {
	src := bytes.NewReader([]byte("hello world"))
	buf := make([]byte, 5)
	require.NoError(t, ReadAt(src, 6, buf))
	assert.Equal(t, "world", string(buf))
}

func TestReadAtShortReadErrors(t *testing.T) {
	src := bytes.NewReader([]byte("short"))
	buf := make([]byte, 100)
	err := ReadAt(src, 0, buf)
	assert.Error(t, err)
}

func TestReadUntilZero(t *testing.T) {
	src := bytes.NewReader([]byte("hello\x00world"))
	got, next, err := ReadUntilZero(src, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
	assert.Equal(t, int64(6), next)
}

func TestReadUntilZeroLongString(t *testing.T) {
	long := bytes.Repeat([]byte("x"), 200)
	data := append(append([]byte{}, long...), 0)
	data = append(data, []byte("trailer")...)

	src := bytes.NewReader(data)
	got, next, err := ReadUntilZero(src, 0)
	require.NoError(t, err)
	assert.Equal(t, long, got)
	assert.Equal(t, int64(len(long)+1), next)
}

func TestReadUntilZeroUnterminated(t *testing.T) {
	src := bytes.NewReader([]byte("no terminator here"))
	_, _, err := ReadUntilZero(src, 0)
	assert.Error(t, err)
}

func TestReadUntilZeroEmptyString(t *testing.T) {
	src := bytes.NewReader([]byte("\x00rest"))
	got, next, err := ReadUntilZero(src, 0)
	require.NoError(t, err)
	assert.Equal(t, "", string(got))
	assert.Equal(t, int64(1), next)
}
