package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"droneaid/internal/config"
	"droneaid/internal/detector"
	"droneaid/internal/imageio"
	"droneaid/internal/logger"

	"github.com/gin-gonic/gin"
)

const (
	ServiceName    = "DroneAid 2026 Inference API"
	ServiceVersion = "2.0.0"
)

// RootHandler describes the service and its endpoints.
func RootHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": ServiceName,
			"version": ServiceVersion,
			"status":  "running",
			"endpoints": gin.H{
				"health":           "/health",
				"classes":          "/classes",
				"detect":           "/detect (POST with image file)",
				"detect_base64":    "/detect/base64 (POST with base64 image)",
				"detect_visualize": "/detect/visualize (POST with image file)",
				"stream":           "/ws/stream",
				"view":             "/ws/view",
			},
		})
	}
}

// HealthHandler reports whether a model is loaded.
func HealthHandler(det *detector.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var modelPath interface{}
		if path, ok := det.ModelPath(); ok {
			modelPath = path
		}
		c.JSON(http.StatusOK, gin.H{
			"status":       "healthy",
			"model_loaded": det.Loaded(),
			"model_path":   modelPath,
		})
	}
}

// ClassesHandler lists the detectable symbol classes.
func ClassesHandler(det *detector.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		names := det.ClassNames()
		c.JSON(http.StatusOK, gin.H{
			"classes": names,
			"count":   len(names),
		})
	}
}

// DetectHandler runs detection on a multipart "file" upload.
func DetectHandler(det *detector.Service, cfg *config.Config, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		threshold, err := confThreshold(c, nil, cfg.DefaultConfidence)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}

		data, err := readUpload(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}

		img, err := imageio.Decode(data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid image file"})
			return
		}

		result, err := det.Detect(img, threshold)
		if err != nil {
			detectionFailed(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// Base64Request is the JSON body of /detect/base64.
type Base64Request struct {
	ImageData     string   `json:"image_data"`
	ConfThreshold *float64 `json:"conf_threshold"`
}

// DetectBase64Handler runs detection on a base64 (or data URL) payload.
func DetectBase64Handler(det *detector.Service, cfg *config.Config, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req Base64Request
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body: " + err.Error()})
				return
			}
		}
		if req.ImageData == "" {
			req.ImageData = c.Query("image_data")
		}
		if req.ImageData == "" {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "image_data is required"})
			return
		}

		threshold, err := confThreshold(c, req.ConfThreshold, cfg.DefaultConfidence)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}

		img, err := imageio.DecodeBase64(req.ImageData)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid image data"})
			return
		}

		result, err := det.Detect(img, threshold)
		if err != nil {
			detectionFailed(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// VisualizeHandler returns the uploaded image with detections drawn on it.
// The "format" parameter selects jpeg (default) or webp.
func VisualizeHandler(det *detector.Service, cfg *config.Config, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		threshold, err := confThreshold(c, nil, cfg.DefaultConfidence)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}
		format := c.DefaultQuery("format", c.DefaultPostForm("format", imageio.FormatJPEG))
		if format != imageio.FormatJPEG && format != imageio.FormatWebP {
			c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("unsupported format %q", format)})
			return
		}

		data, err := readUpload(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}
		img, err := imageio.Decode(data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid image file"})
			return
		}

		result, annotated, err := det.DetectWithVisualization(img, threshold)
		if err != nil {
			detectionFailed(c, logger, err)
			return
		}

		var buf bytes.Buffer
		if err := imageio.Encode(&buf, annotated, format, 0); err != nil {
			detectionFailed(c, logger, err)
			return
		}
		c.Header("X-Detection-Count", strconv.Itoa(len(result.Detections)))
		c.Header("X-Processing-Time-Ms", strconv.FormatFloat(result.ProcessingTimeMs, 'f', 2, 64))
		c.Data(http.StatusOK, imageio.ContentType(format), buf.Bytes())
	}
}

func readUpload(c *gin.Context) ([]byte, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, errors.New("file is required")
	}
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return data, nil
}

// confThreshold resolves the threshold from the JSON body, the query string
// or the form, in that order.
func confThreshold(c *gin.Context, fromBody *float64, def float64) (float64, error) {
	if fromBody != nil {
		return checkThreshold(*fromBody)
	}
	raw, ok := c.GetQuery("conf_threshold")
	if !ok {
		raw, ok = c.GetPostForm("conf_threshold")
	}
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("conf_threshold must be a number, got %q", raw)
	}
	return checkThreshold(v)
}

func checkThreshold(v float64) (float64, error) {
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("conf_threshold must be between 0 and 1, got %v", v)
	}
	return v, nil
}

func detectionFailed(c *gin.Context, logger *logger.Logger, err error) {
	if errors.Is(err, imageio.ErrInvalidImage) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid image file"})
		return
	}
	logger.Error("Detection failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"detail": "Detection failed: " + err.Error()})
}
