package scanner

import (
	"fmt"
	"sync"
	"time"

	"github.com/YoctoVision/labelT/logging"
	"github.com/YoctoVision/labelT/types"
)

// progressTracker tracks progress of a hashing pass and collects the
// per-image results
type progressTracker struct {
	processed  int
	cached     int
	errors     int
	totalFiles int
	infos      map[string]types.ImageInfo
	ticker     *time.Ticker
	done       chan bool
	finished   chan bool
	mu         sync.Mutex
}

// newProgressTracker initializes the progress tracker
func newProgressTracker(totalFiles int, resultsChan chan ProcessResult) *progressTracker {
	tracker := &progressTracker{
		ticker:     time.NewTicker(500 * time.Millisecond),
		done:       make(chan bool),
		finished:   make(chan bool),
		totalFiles: totalFiles,
		infos:      make(map[string]types.ImageInfo, totalFiles),
	}

	// Start progress display goroutine
	go tracker.displayProgress()

	// Start result collector goroutine
	go tracker.processResults(resultsChan)

	return tracker
}

// displayProgress shows the progress periodically
func (p *progressTracker) displayProgress() {
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C:
			p.mu.Lock()
			if p.errors > 0 {
				fmt.Printf("\rProgress: %d/%d (cached: %d, errors: %d)",
					p.processed, p.totalFiles, p.cached, p.errors)
			} else {
				fmt.Printf("\rProgress: %d/%d (cached: %d)",
					p.processed, p.totalFiles, p.cached)
			}
			p.mu.Unlock()
		}
	}
}

// processResults updates the tracker state based on hashing results
func (p *progressTracker) processResults(resultsChan chan ProcessResult) {
	for result := range resultsChan {
		p.mu.Lock()
		p.processed++

		if result.Cached {
			p.cached++
		}

		if !result.Success {
			p.errors++
			if result.Error != nil {
				logging.LogImageProcessed(result.Path, false, result.Error.Error())
			}
		} else {
			p.infos[result.Path] = result.Info
			logging.LogImageProcessed(result.Path, true, "")
		}

		p.mu.Unlock()
	}
	close(p.finished)
}

// info returns the collected result for a path, if hashing succeeded
func (p *progressTracker) info(path string) (types.ImageInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.infos[path]
	return i, ok
}

// stop ends the progress tracking once the results channel is drained
func (p *progressTracker) stop() {
	<-p.finished
	p.ticker.Stop()
	p.done <- true
}
