package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YoctoVision/labelT/types"
)

func img(path string, hash uint64) types.ImageInfo {
	return types.ImageInfo{Path: path, Hash: hash}
}

func paths(c Cluster) []string {
	out := make([]string, 0, c.Size())
	for _, m := range c.Members {
		out = append(out, m.Path)
	}
	return out
}

func TestPartitionThresholdZeroGroupsIdenticalHashesOnly(t *testing.T) {
	images := []types.ImageInfo{
		img("a.png", 0xdeadbeef),
		img("b.png", 0xdeadbeef),
		img("c.png", 0xdeadbeee), // one bit away from a/b
	}

	clusters, err := Partition(images, 0, false)
	require.NoError(t, err)

	require.Len(t, clusters, 2)
	assert.Equal(t, []string{"a.png", "b.png"}, paths(clusters[0]))
	assert.Equal(t, []string{"c.png"}, paths(clusters[1]))
}

func TestPartitionIsDeterministic(t *testing.T) {
	images := []types.ImageInfo{
		img("a.png", 0x00),
		img("b.png", 0x03),
		img("c.png", 0xff),
		img("d.png", 0x01),
	}

	first, err := Partition(images, 2, false)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := Partition(images, 2, false)
		require.NoError(t, err)
		assert.Equal(t, first, again, "same input order and threshold must give the same partition")
	}
}

func TestPartitionFirstMatchingClusterWins(t *testing.T) {
	// c qualifies for both seeds (distance 1 to a, distance 1 to b);
	// the first cluster in iteration order takes it
	images := []types.ImageInfo{
		img("a.png", 0b0000),
		img("b.png", 0b0011),
		img("c.png", 0b0001),
	}

	clusters, err := Partition(images, 1, false)
	require.NoError(t, err)

	require.Len(t, clusters, 2)
	assert.Equal(t, []string{"a.png", "c.png"}, paths(clusters[0]))
	assert.Equal(t, []string{"b.png"}, paths(clusters[1]))
}

func TestPartitionComparesAgainstSeedNotLatestMember(t *testing.T) {
	// b joins a's cluster; c is within threshold of b but not of the
	// seed a, so it starts its own cluster
	images := []types.ImageInfo{
		img("a.png", 0b00000000),
		img("b.png", 0b00000011),
		img("c.png", 0b00001111),
	}

	clusters, err := Partition(images, 2, false)
	require.NoError(t, err)

	require.Len(t, clusters, 2)
	assert.Equal(t, []string{"a.png", "b.png"}, paths(clusters[0]))
	assert.Equal(t, []string{"c.png"}, paths(clusters[1]))
}

func TestPartitionSkipSingles(t *testing.T) {
	images := []types.ImageInfo{
		img("a.png", 0x00),
		img("b.png", 0x00),
		img("lone.png", 0xffffffffffffffff),
	}

	clusters, err := Partition(images, 0, true)
	require.NoError(t, err)

	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"a.png", "b.png"}, paths(clusters[0]))
}

func TestPartitionThresholdRange(t *testing.T) {
	_, err := Partition(nil, -1, false)
	assert.Error(t, err)

	_, err = Partition(nil, 65, false)
	assert.Error(t, err)

	clusters, err := Partition(nil, 64, false)
	assert.NoError(t, err)
	assert.Empty(t, clusters)
}

func TestSummarize(t *testing.T) {
	images := []types.ImageInfo{
		img("a.png", 0x00),
		img("b.png", 0x00),
		img("lone.png", 0xffffffffffffffff),
	}

	clusters, err := Partition(images, 0, false)
	require.NoError(t, err)

	total, clustered, singletons := Summarize(clusters)
	assert.Equal(t, 2, total)
	assert.Equal(t, 3, clustered)
	assert.Equal(t, 1, singletons)
}
