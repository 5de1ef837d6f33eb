package cluster

import (
	"fmt"

	"github.com/YoctoVision/labelT/imageprocessor"
	"github.com/YoctoVision/labelT/types"
)

// Cluster is a group of images whose hashes sit within the configured
// Hamming distance of the seed member. Members keeps input order; the
// first member is the seed used as the cluster representative.
type Cluster struct {
	Members []types.ImageInfo
}

// Seed returns the representative member of the cluster
func (c *Cluster) Seed() types.ImageInfo {
	return c.Members[0]
}

// Size returns the number of images in the cluster
func (c *Cluster) Size() int {
	return len(c.Members)
}

// Partition groups hashed images by greedy union: each image joins the
// first existing cluster whose seed hash is within threshold, otherwise
// it starts a new cluster. The result is deterministic for a fixed input
// order. With skipSingles set, clusters of size 1 are dropped from the
// output.
func Partition(images []types.ImageInfo, threshold int, skipSingles bool) ([]Cluster, error) {
	if threshold < 0 || threshold > 64 {
		return nil, fmt.Errorf("threshold %d out of range 0-64", threshold)
	}

	var clusters []Cluster
	for _, img := range images {
		joined := false
		for i := range clusters {
			if imageprocessor.HammingDistance(clusters[i].Seed().Hash, img.Hash) <= threshold {
				clusters[i].Members = append(clusters[i].Members, img)
				joined = true
				break
			}
		}
		if !joined {
			clusters = append(clusters, Cluster{Members: []types.ImageInfo{img}})
		}
	}

	if !skipSingles {
		return clusters, nil
	}

	filtered := clusters[:0]
	for _, c := range clusters {
		if c.Size() > 1 {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

// Summarize counts clusters, clustered images and singletons in a partition
func Summarize(clusters []Cluster) (total, clustered, singletons int) {
	for _, c := range clusters {
		total++
		clustered += c.Size()
		if c.Size() == 1 {
			singletons++
		}
	}
	return total, clustered, singletons
}
