package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/YoctoVision/labelT/imageprocessor"
	"github.com/YoctoVision/labelT/types"

	_ "github.com/mattn/go-sqlite3"
)

// InitDatabase initializes and returns a hash cache connection
func InitDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Create table if it doesn't exist
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS hashes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		hash TEXT NOT NULL,
		width INTEGER,
		height INTEGER,
		size INTEGER,
		created_at TEXT,
		modified_at TEXT,
		UNIQUE(path, algorithm)
	);
	CREATE INDEX IF NOT EXISTS idx_hashes_path ON hashes(path);
	CREATE INDEX IF NOT EXISTS idx_hashes_hash ON hashes(hash);`

	_, err = db.Exec(createTableSQL)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// OpenDatabase opens an existing hash cache
func OpenDatabase(dbPath string) (*sql.DB, error) {
	return sql.Open("sqlite3", dbPath)
}

// LookupHash returns the cached hash for an image, if one exists for the
// given algorithm. The stored modification time is returned so callers can
// decide whether the entry is still fresh.
func LookupHash(db *sql.DB, path string, algorithm string) (*types.ImageInfo, error) {
	var hashHex string
	info := types.ImageInfo{Path: path, Algorithm: algorithm}

	err := db.QueryRow(
		"SELECT hash, width, height, size, modified_at FROM hashes WHERE path = ? AND algorithm = ?",
		path, algorithm,
	).Scan(&hashHex, &info.Width, &info.Height, &info.Size, &info.ModifiedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("database error for %s: %v", path, err)
	}

	hash, err := imageprocessor.ParseHash(hashHex)
	if err != nil {
		// A corrupt row is treated as a cache miss
		return nil, nil
	}
	info.Hash = hash

	return &info, nil
}

// IsFresh reports whether a cached entry is still valid for a file with the
// given modification time. Cache entries are invalidated whenever the file
// has been modified after they were stored. The stored timestamp has
// second precision, so the file's modification time is compared at that
// same precision; otherwise any sub-second mtime component would mark an
// unchanged file stale on every run.
func IsFresh(info *types.ImageInfo, modTime time.Time) bool {
	if info == nil {
		return false
	}
	storedTime, err := time.Parse(time.RFC3339, info.ModifiedAt)
	if err != nil {
		return false
	}
	return !modTime.Truncate(time.Second).After(storedTime)
}

// StoreHash stores or refreshes a computed hash in the cache
func StoreHash(db *sql.DB, info types.ImageInfo) error {
	now := time.Now().Format(time.RFC3339)

	stmt, err := db.Prepare(`
		INSERT OR REPLACE INTO hashes (
			path, algorithm, hash, width, height, size, created_at, modified_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("cannot prepare statement for %s: %v", info.Path, err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(
		info.Path,
		info.Algorithm,
		imageprocessor.FormatHash(info.Hash),
		info.Width,
		info.Height,
		info.Size,
		now,
		info.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("cannot insert data for %s: %v", info.Path, err)
	}

	return nil
}

// CacheStats contains statistics about the hash cache
type CacheStats struct {
	TotalEntries int
	UniqueHashes int
}

// GetCacheStats retrieves statistics about cached hashes
func GetCacheStats(db *sql.DB, algorithm string) (*CacheStats, error) {
	var stats CacheStats

	err := db.QueryRow("SELECT COUNT(*) FROM hashes WHERE algorithm = ?", algorithm).
		Scan(&stats.TotalEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to count cache entries: %v", err)
	}

	err = db.QueryRow("SELECT COUNT(DISTINCT hash) FROM hashes WHERE algorithm = ?", algorithm).
		Scan(&stats.UniqueHashes)
	if err != nil {
		return nil, fmt.Errorf("failed to count unique hashes: %v", err)
	}

	return &stats, nil
}
