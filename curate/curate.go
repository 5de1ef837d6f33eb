// Package curate prunes duplicate images out of clusters: the seed member
// of each cluster stays in the dataset, every other member is moved into
// a quarantine directory together with its label file.
package curate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/YoctoVision/labelT/cluster"
	"github.com/YoctoVision/labelT/labels"
	"github.com/YoctoVision/labelT/logging"
)

// Stats summarizes a prune pass
type Stats struct {
	Moved  int
	Failed int
}

// PruneClusters moves all non-seed members of every cluster into destDir.
// Moves are independent per file; a failed move is reported and the pass
// continues. Files are never deleted, only relocated.
func PruneClusters(clusters []cluster.Cluster, destDir string) (Stats, error) {
	var stats Stats

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return stats, fmt.Errorf("cannot create prune directory %s: %v", destDir, err)
	}

	for _, c := range clusters {
		if c.Size() < 2 {
			continue
		}

		for _, member := range c.Members[1:] {
			if err := moveWithLabel(member.Path, destDir); err != nil {
				stats.Failed++
				logging.LogError("cannot prune %s: %v", member.Path, err)
				continue
			}
			stats.Moved++
		}
	}

	return stats, nil
}

// moveWithLabel relocates an image and, if present, its sidecar label file
func moveWithLabel(imagePath, destDir string) error {
	dest := uniqueDestination(destDir, filepath.Base(imagePath))
	if err := os.Rename(imagePath, dest); err != nil {
		return err
	}

	labelPath := labels.PathFor(imagePath)
	if _, err := os.Stat(labelPath); err == nil {
		labelDest := labels.PathFor(dest)
		if err := os.Rename(labelPath, labelDest); err != nil {
			// The image is already quarantined, report the orphaned label
			logging.LogWarning("moved %s but could not move its label file: %v", imagePath, err)
		}
	}

	return nil
}

// uniqueDestination avoids clobbering when two clusters contain images
// with the same base name
func uniqueDestination(destDir, base string) string {
	dest := filepath.Join(destDir, base)
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return dest
	}

	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	for i := 1; ; i++ {
		dest = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			return dest
		}
	}
}
