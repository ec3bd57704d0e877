package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"droneaid/internal/logger"
	"droneaid/internal/services/storage"

	"github.com/gin-gonic/gin"
)

// CaptureInfo represents parsed metadata about a stored capture.
type CaptureInfo struct {
	Name    string    `json:"name"`
	Taken   time.Time `json:"-"`
	Source  string    `json:"source"`
	Classes []string  `json:"classes"`
}

// MarshalJSON formats the capture time as date and time of day.
func (p CaptureInfo) MarshalJSON() ([]byte, error) {
	type Alias CaptureInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      p.Taken.Format("02-01-2006"),
		TimeOfDay: p.Taken.Format("15:04"),
		Alias:     (Alias)(p),
	})
}

// CapturesData is a paginated response payload for the captures gallery.
type CapturesData struct {
	Captures    []CaptureInfo `json:"captures"`
	Size        int64         `json:"size"`
	Length      int           `json:"length"`
	TotalPages  int           `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	Limit       int           `json:"pageSize"`
}

// CaptureFilters narrow the capture list.
type CaptureFilters struct {
	Source     string
	Class      string
	DateAfter  time.Time
	DateBefore time.Time
}

// ListCapturesHandler lists saved stream captures with filtering and
// pagination, newest first.
func ListCapturesHandler(buffer *storage.BufferService, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := atoiDefault(c.Query("page"), 1)
		limit := atoiDefault(c.Query("limit"), 24)

		filters := CaptureFilters{
			Source:     c.Query("source"),
			Class:      c.Query("class"),
			DateAfter:  parseDate(c.Query("dateAfter")),
			DateBefore: parseDate(c.Query("dateBefore")),
		}

		files, err := os.ReadDir(buffer.Dir())
		if err != nil && !os.IsNotExist(err) {
			logger.Error("Error reading capture directory: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Unable to read capture directory"})
			return
		}

		filtered, totalSize := getFilteredCaptures(filters, files, logger)

		slices.SortFunc(filtered, func(a, b CaptureInfo) int {
			return strings.Compare(b.Name, a.Name)
		})

		start := (page - 1) * limit
		if start > len(filtered) {
			start = len(filtered)
		}
		end := start + limit
		if end > len(filtered) {
			end = len(filtered)
		}

		c.JSON(http.StatusOK, CapturesData{
			Captures:    filtered[start:end],
			Size:        totalSize,
			Length:      len(filtered),
			TotalPages:  (len(filtered) + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// ViewCaptureHandler serves a single capture named by the "image" query.
func ViewCaptureHandler(buffer *storage.BufferService) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := filepath.Base(c.Query("image"))
		if name == "" || name == "." || name == string(filepath.Separator) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Image parameter is required"})
			return
		}
		filePath := filepath.Join(buffer.Dir(), name)
		if _, err := os.Stat(filePath); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Capture not found"})
			return
		}
		c.File(filePath)
	}
}

// ClearCapturesHandler deletes every file in the capture directory.
func ClearCapturesHandler(buffer *storage.BufferService, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		files, err := os.ReadDir(buffer.Dir())
		if err != nil && !os.IsNotExist(err) {
			logger.Error("Error reading capture directory: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Unable to read capture directory"})
			return
		}

		for _, file := range files {
			if file.IsDir() {
				continue
			}
			if err := os.Remove(filepath.Join(buffer.Dir(), file.Name())); err != nil {
				logger.Error("Error deleting file %s: %v", file.Name(), err)
			}
		}
		logger.Info("All captures cleared from directory: %s", buffer.Dir())
		c.Status(http.StatusNoContent)
	}
}

// getFilteredCaptures returns captures that match filters and sums their size.
func getFilteredCaptures(filters CaptureFilters, files []os.DirEntry, logger *logger.Logger) ([]CaptureInfo, int64) {
	var (
		filtered  = []CaptureInfo{}
		totalSize int64
	)

	for _, e := range files {
		if e.IsDir() {
			continue
		}

		name := e.Name()
		info, err := e.Info()
		if err != nil {
			logger.Error("Error getting file info for %s: %v", name, err)
			continue
		}

		capture, err := parseCaptureName(name)
		if err != nil {
			logger.Warning("Skipping %s: %v", name, err)
			continue
		}

		if !checkMatch(capture, filters) {
			continue
		}
		filtered = append(filtered, capture)
		totalSize += info.Size()
	}

	return filtered, totalSize
}

// checkMatch returns true if the capture matches the given filters.
func checkMatch(capture CaptureInfo, filters CaptureFilters) bool {
	if filters.Source != "" && !strings.EqualFold(capture.Source, filters.Source) {
		return false
	}
	if filters.Class != "" && !slices.ContainsFunc(capture.Classes, func(c string) bool {
		return strings.EqualFold(c, filters.Class)
	}) {
		return false
	}
	day := time.Date(capture.Taken.Year(), capture.Taken.Month(), capture.Taken.Day(), 0, 0, 0, 0, time.UTC)
	if !filters.DateAfter.IsZero() && day.Before(filters.DateAfter) {
		return false
	}
	if !filters.DateBefore.IsZero() && day.After(filters.DateBefore) {
		return false
	}
	return true
}

// atoiDefault converts s to int or returns def when conversion fails or the value is <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses "2006-01-02" (HTML date input).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseCaptureName parses names written by storage.Capture.Filename:
// 2006-01-02_15-04_05.000_source_class1_classN.jpg
func parseCaptureName(filename string) (CaptureInfo, error) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(base, "_")

	// [date, HH-MM, SS.mmm, source, class...]
	if len(parts) < 4 {
		return CaptureInfo{}, errors.New("invalid capture name format")
	}
	taken, err := time.Parse(storage.CaptureTimeLayout, strings.Join(parts[:3], "_"))
	if err != nil {
		return CaptureInfo{}, errors.New("invalid capture name format")
	}
	classes := append([]string{}, parts[4:]...)

	return CaptureInfo{
		Name:    filename,
		Taken:   taken,
		Source:  parts[3],
		Classes: classes,
	}, nil
}
