package handlers

import (
	"net/http"

	"droneaid/internal/logger"
	"droneaid/internal/model"
	"droneaid/internal/repository"

	"github.com/gin-gonic/gin"
)

// SamplesData is a paginated page of catalogued samples of one class.
type SamplesData struct {
	Samples     []model.Sample `json:"samples"`
	Length      int            `json:"length"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Limit       int            `json:"pageSize"`
}

// ListSamplesHandler returns the catalogued samples of the "class" query.
func ListSamplesHandler(repo repository.SampleRepository, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if repo == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Sample catalog is not configured"})
			return
		}
		class := c.Query("class")
		if class == "" {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "class parameter is required"})
			return
		}
		page := atoiDefault(c.Query("page"), 1)
		limit := atoiDefault(c.Query("limit"), 50)

		samples, err := repo.ListByClass(class)
		if err != nil {
			logger.Error("Error listing samples: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to list samples"})
			return
		}
		if split := c.Query("split"); split != "" {
			kept := samples[:0]
			for _, s := range samples {
				if s.Split == split {
					kept = append(kept, s)
				}
			}
			samples = kept
		}

		start := (page - 1) * limit
		if start > len(samples) {
			start = len(samples)
		}
		end := start + limit
		if end > len(samples) {
			end = len(samples)
		}

		pageItems := samples[start:end]
		if pageItems == nil {
			pageItems = []model.Sample{}
		}
		c.JSON(http.StatusOK, SamplesData{
			Samples:     pageItems,
			Length:      len(samples),
			TotalPages:  (len(samples) + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// SampleStatsHandler returns per-class, per-split sample counts.
func SampleStatsHandler(repo repository.SampleRepository, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if repo == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Sample catalog is not configured"})
			return
		}
		counts, err := repo.CountBySplit()
		if err != nil {
			logger.Error("Error counting samples: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to count samples"})
			return
		}
		total, err := repo.GetTotalCount()
		if err != nil {
			logger.Error("Error counting samples: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to count samples"})
			return
		}
		if counts == nil {
			counts = []model.SplitCount{}
		}
		c.JSON(http.StatusOK, gin.H{"total": total, "counts": counts})
	}
}
