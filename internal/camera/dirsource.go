package camera

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ironsheep/smart-ocr/internal/imaging"
)

// ErrNoSource is returned by DirSource.Start when no directory is set.
var ErrNoSource = errors.New("no frame directory configured")

// DirSource replays the images in a directory as a camera feed. It stands in
// for a camera on machines without one and drives demos and tests.
type DirSource struct {
	Dir      string
	Interval time.Duration
	Rotation int

	// Loop restarts from the first image after the last one. The directory
	// is listed again on every pass, so added and removed files are picked up.
	Loop bool

	Cache *imaging.ImageCache
	Log   *log.Logger
}

// Start lists the directory and begins emitting one image per Interval.
func (s *DirSource) Start(ctx context.Context) (<-chan *Frame, error) {
	if s.Dir == "" {
		return nil, ErrNoSource
	}
	files, err := imaging.ImageFiles(s.Dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no frames in %s", s.Dir)
	}
	if s.Cache == nil {
		s.Cache = imaging.NewImageCache()
	}
	interval := s.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	out := make(chan *Frame, 1)
	go func() {
		defer close(out)
		defer s.logCache()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			if i == len(files) {
				if !s.Loop {
					return
				}
				files = s.relist(files)
				i = 0
			}

			img, err := s.Cache.Load(files[i])
			if err != nil {
				if s.Log != nil {
					s.Log.Warn("Skipping unreadable frame", "file", files[i], "err", err)
				}
			} else {
				select {
				case out <- NewFrame(img, s.Rotation, nil):
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *DirSource) logCache() {
	if s.Log == nil {
		return
	}
	hits, misses := s.Cache.Stats()
	s.Log.Debug("Frame replay ended", "dir", s.Dir, "cached", s.Cache.Len(), "hits", hits, "decodes", misses)
}

// relist reads the directory again, keeping prev when it is unreadable or
// has emptied.
func (s *DirSource) relist(prev []string) []string {
	files, err := imaging.ImageFiles(s.Dir)
	if err != nil || len(files) == 0 {
		if s.Log != nil {
			s.Log.Warn("Keeping previous frame list", "dir", s.Dir, "err", err, "found", len(files))
		}
		return prev
	}
	s.Cache.Retain(files)
	return files
}
