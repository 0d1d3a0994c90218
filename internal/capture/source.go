// Package capture defines the frame source contract of the coin counter and
// a replay source that reads frames from image files.
//
// A Source is a scoped resource: it is opened once, read every cycle, and must
// be closed on every exit path so the underlying device is not left locked.
package capture

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ironsheep/coin-counter/internal/imaging"
)

// ErrNoFrame reports a transient capture failure: the device returned no data
// for this cycle. Callers skip the cycle and retry.
var ErrNoFrame = errors.New("no frame available")

// Source produces frames.
//
// Read returns ErrNoFrame for transient failures and io.EOF once a finite
// source is exhausted. Sources are not safe for concurrent use.
type Source interface {
	Read() (image.Image, error)
	Close() error
}

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// DirSource replays the image files of a directory in lexical order.
type DirSource struct {
	paths  []string
	cache  *imaging.ImageCache
	loop   bool
	next   int
	closed bool
}

// OpenDir lists the image files in dir. With loop set, the replay restarts
// after the last file instead of returning io.EOF; decoded frames are cached
// so later passes do not touch the disk.
func OpenDir(dir string, loop bool) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay directory: %w", err)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images found in %s", dir)
	}
	sort.Strings(paths)

	return &DirSource{
		paths: paths,
		cache: imaging.NewImageCache(),
		loop:  loop,
	}, nil
}

// Read returns the next frame. Files that fail to decode are reported as
// ErrNoFrame so a single corrupt file behaves like a dropped frame.
func (s *DirSource) Read() (image.Image, error) {
	if s.closed {
		return nil, io.EOF
	}
	if s.next >= len(s.paths) {
		if !s.loop {
			return nil, io.EOF
		}
		s.next = 0
	}

	path := s.paths[s.next]
	s.next++

	img, err := s.cache.Load(path)
	if !s.loop {
		s.cache.Evict(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	return img, nil
}

// Len returns the number of frames in one pass.
func (s *DirSource) Len() int {
	return len(s.paths)
}

// Close releases cached frames. Reads after Close return io.EOF.
func (s *DirSource) Close() error {
	s.closed = true
	s.cache.Clear()
	return nil
}
