package zim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, ClusterOffsetOnly, p.ClusterRepresentationForRead)
	assert.Equal(t, AllocFirstFit, p.AllocStrategy)
	assert.True(t, p.CoalesceFreeRanges)
	assert.NotNil(t, p.Logger)
}

func TestLowMemoryPolicyFavorsStreaming(t *testing.T) {
	p := LowMemoryPolicy()
	assert.Equal(t, ClusterStreaming, p.ClusterRepresentationForRead)
	assert.Less(t, p.EntryCacheCapacity, DefaultPolicy().EntryCacheCapacity)
	assert.Less(t, p.ClusterCacheCapacity, DefaultPolicy().ClusterCacheCapacity)
}

func TestHighPerformancePolicyFavorsMemory(t *testing.T) {
	p := HighPerformancePolicy()
	assert.Equal(t, ClusterInMemory, p.ClusterRepresentationForRead)
	assert.Greater(t, p.EntryCacheCapacity, DefaultPolicy().EntryCacheCapacity)
	assert.Greater(t, p.ClusterCacheCapacity, DefaultPolicy().ClusterCacheCapacity)
}

func TestPolicyNormalizeFillsDefaults(t *testing.T) {
	p := Policy{}
	p.normalize()
	assert.Equal(t, DefaultRedirectMaxDepth, p.RedirectMaxDepth)
	assert.NotNil(t, p.Logger)
}
