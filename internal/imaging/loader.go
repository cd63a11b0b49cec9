package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

type cachedFrame struct {
	img     image.Image
	modTime time.Time
	size    int64
}

// ImageCache holds decoded frames keyed by file path. A cached frame is
// reused only while the file's size and modification time are unchanged, so
// a directory that another process keeps overwriting replays fresh images.
//
// ImageCache is safe for concurrent use by multiple goroutines.
type ImageCache struct {
	mu      sync.RWMutex
	entries map[string]cachedFrame
	hits    uint64
	misses  uint64
}

// NewImageCache creates an empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{entries: make(map[string]cachedFrame)}
}

// Load returns the decoded image at path. Supported formats are PNG, JPEG
// and GIF.
func (c *ImageCache) Load(path string) (image.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat frame: %w", err)
	}

	c.mu.RLock()
	e, ok := c.entries[path]
	c.mu.RUnlock()
	if ok && e.size == info.Size() && e.modTime.Equal(info.ModTime()) {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return e.img, nil
	}

	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[path] = cachedFrame{img: img, modTime: info.ModTime(), size: info.Size()}
	c.misses++
	c.mu.Unlock()
	return img, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Len returns the number of cached frames.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns cache hits and decodes since creation.
func (c *ImageCache) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Retain drops every cached frame whose path is not in paths. DirSource
// calls it after relisting so deleted files do not pin memory.
func (c *ImageCache) Retain(paths []string) {
	keep := make(map[string]bool, len(paths))
	for _, p := range paths {
		keep[p] = true
	}
	c.mu.Lock()
	for p := range c.entries {
		if !keep[p] {
			delete(c.entries, p)
		}
	}
	c.mu.Unlock()
}

// ImageFiles lists the decodable image files in dir, sorted by name.
// Subdirectories are not descended into.
func ImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg", ".gif":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
