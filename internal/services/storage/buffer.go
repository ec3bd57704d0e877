package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"droneaid/internal/logger"
)

// CaptureTimeLayout prefixes every capture file name.
const CaptureTimeLayout = "2006-01-02_15-04_05.000"

// Capture is an annotated stream frame waiting to be written.
type Capture struct {
	Timestamp time.Time
	Source    string
	Classes   []string
	Data      []byte
}

// Filename is "<time>_<source>_<class1>_<class2>....jpg".
func (c Capture) Filename() string {
	parts := []string{c.Timestamp.Format(CaptureTimeLayout), sanitize(c.Source)}
	for _, class := range c.Classes {
		parts = append(parts, sanitize(class))
	}
	return strings.Join(parts, "_") + ".jpg"
}

// sanitize keeps ASCII letters, digits and '-'; everything else, including
// '_', '.' and path separators, becomes '-'.
func sanitize(s string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '-'
	}, s)
	if strings.Trim(clean, "-") == "" {
		return "unknown"
	}
	return clean
}

// inside reports whether path lies in dir.
func inside(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// BufferService batches captures in memory and flushes them to disk.
type BufferService struct {
	capturesDir string
	captures    []Capture
	bufferLimit int
	mu          sync.Mutex
	logger      *logger.Logger
}

func NewBufferService(capturesDir string, bufferLimit int, logger *logger.Logger) *BufferService {
	return &BufferService{
		capturesDir: capturesDir,
		bufferLimit: bufferLimit,
		captures:    make([]Capture, 0),
		logger:      logger,
	}
}

// Dir returns the capture directory.
func (s *BufferService) Dir() string {
	return s.capturesDir
}

// Run flushes every interval until ctx is done, then flushes once more.
func (s *BufferService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Add queues a capture. It reports false when the buffer is full.
func (s *BufferService) Add(c Capture) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	if len(s.captures) >= s.bufferLimit {
		s.logger.Warning("Capture buffer full (%d), dropping frame from %s", s.bufferLimit, c.Source)
		return false
	}
	s.captures = append(s.captures, c)
	s.logger.Debug("Buffer size: %d/%d", len(s.captures), s.bufferLimit)
	return true
}

// Pending returns the number of buffered captures.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.captures)
}

// Flush writes all buffered captures and returns how many were written.
func (s *BufferService) Flush() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.captures) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.capturesDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return 0
	}

	written := 0
	for _, c := range s.captures {
		fullpath := filepath.Join(s.capturesDir, c.Filename())
		if !inside(s.capturesDir, fullpath) {
			s.logger.Error("Refusing to write capture outside %s: %s", s.capturesDir, fullpath)
			continue
		}
		if err := os.WriteFile(fullpath, c.Data, 0644); err != nil {
			s.logger.Error("Error saving capture %s: %v", fullpath, err)
			continue
		}
		written++
	}

	s.logger.Info("Flushed %d captures to disk", written)
	s.captures = s.captures[:0]
	return written
}
