package zim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsHitRateWithNoLookupsIsZero(t *testing.T) {
	var m Metrics
	snap := m.Snapshot()
	assert.Equal(t, float64(0), snap.EntryCacheHitRate())
	assert.Equal(t, float64(0), snap.ClusterCacheHitRate())
}

func TestMetricsHitRate(t *testing.T) {
	var m Metrics
	m.EntryCacheHits.Add(3)
	m.EntryCacheMisses.Add(1)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.EntryCacheHits)
	assert.InDelta(t, 0.75, snap.EntryCacheHitRate(), 0.0001)
}

func TestArchiveMetricsTrackReads(t *testing.T) {
	path := buildArchive(t)
	a, err := Open(path, DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	e, err := a.GetEntryByURL(NamespaceContent, "hello.html")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Read(); err != nil {
		t.Fatal(err)
	}

	snap := a.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.BlobsRead)
	assert.Greater(t, snap.BytesRead, int64(0))
	assert.Equal(t, int64(1), snap.ClustersRead)
}
