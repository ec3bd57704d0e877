package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"droneaid/internal/config"
	"droneaid/internal/imageio"
	"droneaid/internal/logger"
	"droneaid/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const readTimeout = 60 * time.Second

// StreamWebsocketHandler accepts encoded frames (binary or base64 text) from
// a drone or camera and answers each processed frame with its detections.
// Query: id (source name), conf_threshold.
func StreamWebsocketHandler(manager *services.Manager, cfg *config.Config, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		source := c.DefaultQuery("id", "stream")
		threshold := cfg.DefaultConfidence
		if raw := c.Query("conf_threshold"); raw != "" {
			if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 && v <= 1 {
				threshold = v
			}
		}

		connection, err := Upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		if !manager.OpenStream(connection) {
			connection.Close()
			return
		}
		connection.SetReadLimit(cfg.MaxRequestBytes)
		connection.SetReadDeadline(time.Now().Add(readTimeout))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(readTimeout))
			return nil
		})
		defer connection.Close()
		defer manager.ResetFrameCounter(source)
		defer manager.CloseStream(connection)

		logger.Info("Stream connected: %s", source)

		for {
			kind, msg, err := connection.ReadMessage()
			if err != nil {
				logger.Info("Stream %s closed: %v", source, err)
				break
			}
			connection.SetReadDeadline(time.Now().Add(readTimeout))

			frame := msg
			if kind == websocket.TextMessage {
				frame, err = decodeTextFrame(msg)
				if err != nil {
					writeJSON(connection, gin.H{"detail": "Invalid image data"}, logger)
					continue
				}
			}

			result, err := manager.HandleFrame(frame, source, threshold)
			if err != nil {
				writeJSON(connection, gin.H{"detail": err.Error()}, logger)
				continue
			}
			if result == nil {
				continue
			}
			writeJSON(connection, result.Result, logger)
		}
	}
}

// ViewWebsocketHandler registers a viewer that receives every processed
// frame with its annotated image.
func ViewWebsocketHandler(manager *services.Manager, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		connection, err := Upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(readTimeout))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(readTimeout))
			return nil
		})

		manager.GetWebsocketService().Register(connection)
		defer manager.GetWebsocketService().Unregister(connection)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				break
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, v interface{}, logger *logger.Logger) {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.Error("Failed to marshal websocket message: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		logger.Error("Error writing websocket message: %v", err)
	}
}

// decodeTextFrame turns a base64 or data URL text message into image bytes.
func decodeTextFrame(msg []byte) ([]byte, error) {
	return base64.StdEncoding.DecodeString(imageio.StripDataURL(string(msg)))
}
