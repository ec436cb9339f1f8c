package zim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterAddRemove(t *testing.T) {
	c := NewCounter()
	c.Add("text/html")
	c.Add("text/html")
	c.Add("image/png")

	assert.Equal(t, 2, c.Count("text/html"))
	assert.Equal(t, 1, c.Count("image/png"))

	c.Remove("text/html")
	assert.Equal(t, 1, c.Count("text/html"))

	c.Remove("text/html")
	assert.Equal(t, 0, c.Count("text/html"), "count should drop out of the map once it reaches zero")
}

func TestCounterEncodeParseRoundTrip(t *testing.T) {
	c := NewCounter()
	c.Add("text/html")
	c.Add("text/html")
	c.Add("image/png")
	c.Add("application/javascript")

	encoded := c.Encode()

	got, err := ParseCounter(encoded)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Count("text/html"))
	assert.Equal(t, 1, got.Count("image/png"))
	assert.Equal(t, 1, got.Count("application/javascript"))
}

func TestCounterEncodeIsSortedByMimetype(t *testing.T) {
	c := NewCounter()
	c.Add("zzz/last")
	c.Add("aaa/first")

	assert.Equal(t, "aaa/first=1;zzz/last=1", string(c.Encode()))
}

func TestParseCounterEmpty(t *testing.T) {
	c, err := ParseCounter([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Count("anything"))
}

func TestParseCounterMalformed(t *testing.T) {
	_, err := ParseCounter([]byte("no-equals-sign"))
	assert.Error(t, err)

	_, err = ParseCounter([]byte("text/html=not-a-number"))
	assert.Error(t, err)
}
