package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"droneaid/internal/logger"

	"github.com/gin-gonic/gin"
)

var logFiles = map[string]string{
	"info":    "info.log",
	"warning": "warning.log",
	"error":   "error.log",
}

// ShowLogsHandler serves the log file for the :level path parameter.
func ShowLogsHandler(logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filename, ok := logFiles[c.Param("level")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Unknown log level: " + c.Param("level")})
			return
		}
		serveLogFile(c, logger.Dir(), filename)
	}
}

// ClearLogsHandler truncates the log file for the :level path parameter.
func ClearLogsHandler(logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filename, ok := logFiles[c.Param("level")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Unknown log level: " + c.Param("level")})
			return
		}
		if err := logger.CleanLogs(filename); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func serveLogFile(c *gin.Context, logDir, filename string) {
	filePath := filepath.Join(logDir, filename)

	if logDir == "" {
		c.String(http.StatusNotFound, "Log file not found: %s", filename)
		return
	}
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		c.String(http.StatusNotFound, "Log file not found: %s", filename)
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.File(filePath)
}
