package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"droneaid/internal/detector"
	"droneaid/internal/imageio"
	"droneaid/internal/logger"
	"droneaid/internal/services/storage"
	"droneaid/internal/services/websocket"
)

// FrameResult is what stream clients and viewers receive per processed frame.
type FrameResult struct {
	Source string `json:"source"`
	Frame  int    `json:"frame"`
	*detector.Result
	Image string `json:"image,omitempty"`
}

// Manager runs live frames through the detector, fans results out to
// viewers and buffers frames that contain detections.
type Manager struct {
	detector         *detector.Service
	bufferService    *storage.BufferService
	websocketService *websocket.HubService
	logger           *logger.Logger

	frameCounters   map[string]int
	processEveryNth int
	frameCounterMu  sync.Mutex

	streams  map[io.Closer]struct{}
	closing  bool
	streamMu sync.Mutex
	streamWG sync.WaitGroup
}

func NewManager(det *detector.Service, bufferService *storage.BufferService, websocketService *websocket.HubService, processEveryNth int, logger *logger.Logger) *Manager {
	if processEveryNth < 1 {
		processEveryNth = 1
	}
	manager := &Manager{
		detector:         det,
		bufferService:    bufferService,
		websocketService: websocketService,
		frameCounters:    make(map[string]int),
		streams:          make(map[io.Closer]struct{}),
		processEveryNth:  processEveryNth,
		logger:           logger,
	}

	manager.logger.Info("Stream manager started - processing every %d frame(s)", manager.processEveryNth)
	return manager
}

// HandleFrame decodes one encoded frame from source and, on every Nth frame,
// runs detection. Skipped frames return a nil result and no error.
func (m *Manager) HandleFrame(data []byte, source string, confThreshold float64) (*FrameResult, error) {
	m.frameCounterMu.Lock()
	m.frameCounters[source]++
	frame := m.frameCounters[source]
	m.frameCounterMu.Unlock()

	if frame%m.processEveryNth != 0 {
		return nil, nil
	}

	img, err := imageio.Decode(data)
	if err != nil {
		return nil, err
	}

	result, annotated, err := m.detector.DetectWithVisualization(img, confThreshold)
	if err != nil {
		return nil, err
	}

	var encoded bytes.Buffer
	if err := imageio.Encode(&encoded, annotated, imageio.FormatJPEG, 0); err != nil {
		return nil, fmt.Errorf("failed to encode annotated frame: %w", err)
	}

	out := &FrameResult{Source: source, Frame: frame, Result: result}

	if len(result.Detections) > 0 && m.bufferService != nil {
		classes := make([]string, 0, len(result.Detections))
		for _, d := range result.Detections {
			classes = append(classes, d.ClassName)
		}
		m.bufferService.Add(storage.Capture{
			Timestamp: time.Now(),
			Source:    source,
			Classes:   classes,
			Data:      encoded.Bytes(),
		})
	}

	m.SendToViewers(out, encoded.Bytes())
	return out, nil
}

// SendToViewers broadcasts a result together with its annotated frame.
func (m *Manager) SendToViewers(result *FrameResult, frame []byte) {
	if m.websocketService == nil {
		return
	}
	msg := *result
	msg.Image = base64.StdEncoding.EncodeToString(frame)

	payload, err := json.Marshal(msg)
	if err != nil {
		m.logger.Error("Failed to marshal frame result: %v", err)
		return
	}
	m.websocketService.Broadcast(payload)
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.websocketService
}

func (m *Manager) GetBufferService() *storage.BufferService {
	return m.bufferService
}

func (m *Manager) GetDetectorService() *detector.Service {
	return m.detector
}

// ResetFrameCounter forgets a source, e.g. when its stream disconnects.
func (m *Manager) ResetFrameCounter(source string) {
	m.frameCounterMu.Lock()
	delete(m.frameCounters, source)
	m.frameCounterMu.Unlock()
}

// OpenStream tracks an ingest connection until CloseStream. It returns false
// once CloseStreams has started; the caller must then drop the connection.
func (m *Manager) OpenStream(conn io.Closer) bool {
	m.streamMu.Lock()
	defer m.streamMu.Unlock()
	if m.closing {
		return false
	}
	m.streams[conn] = struct{}{}
	m.streamWG.Add(1)
	return true
}

// CloseStream marks a connection opened with OpenStream as finished. No
// frame from it may be processed afterwards.
func (m *Manager) CloseStream(conn io.Closer) {
	m.streamMu.Lock()
	_, ok := m.streams[conn]
	delete(m.streams, conn)
	m.streamMu.Unlock()
	if ok {
		m.streamWG.Done()
	}
}

// CloseStreams closes every ingest connection and waits for their handlers
// to finish, so the detector can be released safely afterwards.
func (m *Manager) CloseStreams(ctx context.Context) error {
	m.streamMu.Lock()
	m.closing = true
	open := len(m.streams)
	for conn := range m.streams {
		conn.Close()
	}
	m.streamMu.Unlock()

	if open > 0 {
		m.logger.Info("Closing %d stream(s)", open)
	}

	done := make(chan struct{})
	go func() {
		m.streamWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("streams still open: %w", ctx.Err())
	}
}
