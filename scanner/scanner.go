package scanner

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/YoctoVision/labelT/database"
	"github.com/YoctoVision/labelT/imageprocessor"
	"github.com/YoctoVision/labelT/logging"
	"github.com/YoctoVision/labelT/types"
)

// Options defines the options for a hashing pass
type Options struct {
	FolderPath   string
	Algorithm    imageprocessor.HashKind
	ForceRewrite bool
	DebugMode    bool
	MaxWorkers   int
}

// ProcessResult holds the result of hashing one image
type ProcessResult struct {
	Path    string
	Info    types.ImageInfo
	Success bool
	Cached  bool
	Error   error
}

// HashFolder walks the folder and computes the perceptual hash of every
// image, using the cache database when it is fresh. Unreadable images are
// reported and excluded, never fatal to the batch. The returned slice
// follows walk order so clustering over it is deterministic. A nil db
// disables caching. Cancellation is checked between per-image dispatches.
func HashFolder(ctx context.Context, db *sql.DB, options Options) ([]types.ImageInfo, error) {
	files, err := ListImageFiles(options.FolderPath)
	if err != nil {
		return nil, err
	}

	printStartupInfo(len(files), options)
	if len(files) == 0 {
		return nil, nil
	}

	var wg sync.WaitGroup
	resultsChan := make(chan ProcessResult, 100)

	maxWorkers := options.MaxWorkers
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	semaphore := make(chan struct{}, maxWorkers)

	tracker := newProgressTracker(len(files), resultsChan)

	startTime := time.Now()
	cancelled := false

	for _, path := range files {
		// Cooperative cancellation between per-image iterations
		select {
		case <-ctx.Done():
			cancelled = true
		default:
		}
		if cancelled {
			break
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(p string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			resultsChan <- hashOneImage(db, p, options)
		}(path)
	}

	wg.Wait()
	close(resultsChan)
	tracker.stop()

	printCompletionStats(tracker, startTime, options)

	// Assemble successful results in walk order
	infos := make([]types.ImageInfo, 0, len(files))
	for _, path := range files {
		if info, ok := tracker.info(path); ok {
			infos = append(infos, info)
		}
	}

	if cancelled {
		return infos, ctx.Err()
	}
	return infos, nil
}

// ListImageFiles walks the folder and returns dataset image paths in walk
// order. Paths that cannot be accessed are skipped.
func ListImageFiles(folderPath string) ([]string, error) {
	var files []string
	err := filepath.Walk(folderPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logging.LogError("Error accessing path %s: %v", path, err)
			return nil
		}
		if !info.IsDir() && imageprocessor.IsImageFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot walk folder %s: %v", folderPath, err)
	}
	return files, nil
}

// hashOneImage computes (or retrieves) the hash for a single image
func hashOneImage(db *sql.DB, path string, options Options) ProcessResult {
	result := ProcessResult{Path: path}

	fileInfo, err := os.Stat(path)
	if err != nil {
		result.Error = fmt.Errorf("cannot stat file %s: %v", path, err)
		return result
	}

	// Use the cached hash if the file has not been modified since
	if db != nil && !options.ForceRewrite {
		cached, err := database.LookupHash(db, path, string(options.Algorithm))
		if err != nil {
			result.Error = err
			return result
		}
		if database.IsFresh(cached, fileInfo.ModTime()) {
			if options.DebugMode {
				logging.DebugLog("Using cached hash for unchanged image: %s", path)
			}
			result.Info = *cached
			result.Success = true
			result.Cached = true
			return result
		}
	}

	img, err := imageprocessor.LoadImage(path)
	if err != nil {
		result.Error = fmt.Errorf("failed to load image %s: %v", path, err)
		return result
	}
	defer img.Close()

	hash, err := imageprocessor.Compute(img, options.Algorithm)
	if err != nil {
		result.Error = fmt.Errorf("cannot compute %s for %s: %v", options.Algorithm, path, err)
		return result
	}

	result.Info = types.ImageInfo{
		Path:       path,
		Width:      img.Cols(),
		Height:     img.Rows(),
		Size:       fileInfo.Size(),
		ModifiedAt: fileInfo.ModTime().Format(time.RFC3339),
		Algorithm:  string(options.Algorithm),
		Hash:       hash,
	}
	result.Success = true

	if db != nil {
		if err := database.StoreHash(db, result.Info); err != nil {
			// Cache write failures do not invalidate the computed hash
			logging.LogWarning("cannot cache hash for %s: %v", path, err)
		}
	}

	return result
}

// printStartupInfo displays information about the pass before starting
func printStartupInfo(total int, options Options) {
	fmt.Printf("Starting hash pass...\nTotal image files to process: %d\n", total)
	fmt.Printf("Hash algorithm: %s\n", options.Algorithm)
	fmt.Printf("Force rewrite mode: %v\n", options.ForceRewrite)

	if options.DebugMode {
		fmt.Printf("Debug mode: enabled\n")
		logging.DebugLog("Found %d image files to hash in %s", total, options.FolderPath)
	}
}

// printCompletionStats displays statistics after the pass completes
func printCompletionStats(tracker *progressTracker, startTime time.Time, options Options) {
	elapsed := time.Since(startTime)

	tracker.mu.Lock()
	processed, cached, errCount := tracker.processed, tracker.cached, tracker.errors
	tracker.mu.Unlock()

	if options.DebugMode {
		logging.DebugLog("Hash pass completed in %v. Processed: %d, Cached: %d, Errors: %d",
			elapsed, processed, cached, errCount)
	}

	fmt.Println("\nHashing complete.")
	fmt.Printf("Processed %d images in %v (%d from cache).\n", processed, elapsed.Round(time.Second), cached)

	if errCount > 0 {
		fmt.Printf("Encountered %d errors during hashing.\n", errCount)
		fmt.Println("Check the log file for details.")
	}
}
