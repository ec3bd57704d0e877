package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"droneaid/internal/config"
	"droneaid/internal/detector"
	"droneaid/internal/detector/yolo"
	"droneaid/internal/logger"
	"droneaid/internal/repository"
	"droneaid/internal/repository/sqlite"
	"droneaid/internal/routes"
	"droneaid/internal/services"
	"droneaid/internal/services/storage"
	"droneaid/internal/services/websocket"
)

type App struct {
	config        *config.Config
	logger        *logger.Logger
	detector      *detector.Service
	bufferService *storage.BufferService
	hubService    *websocket.HubService
	manager       *services.Manager
	catalog       *sqlite.DB
	samples       repository.SampleRepository
}

// NewApp wires the inference server. A missing model is not an error: the
// server starts and reports model_loaded=false.
func NewApp(cfg *config.Config, log *logger.Logger) (*App, error) {
	det := detector.New(yolo.Load, cfg.ModelPath, log.WithField("component", "detector"))
	buffer := storage.NewBufferService(cfg.CaptureDirectory, cfg.CaptureBufferLimit, log.WithField("component", "captures"))
	hub := websocket.NewHubService(log.WithField("component", "hub"))
	mng := services.NewManager(det, buffer, hub, cfg.StreamEveryNth, log.WithField("component", "stream"))

	a := &App{
		config:        cfg,
		logger:        log,
		detector:      det,
		bufferService: buffer,
		hubService:    hub,
		manager:       mng,
	}

	if cfg.CatalogPath != "" {
		db, err := sqlite.New(cfg.CatalogPath)
		if err != nil {
			det.Close()
			return nil, fmt.Errorf("failed to open catalog: %w", err)
		}
		a.catalog = db
		a.samples = sqlite.NewSampleRepository(db)
	}

	return a, nil
}

// Handler returns the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return routes.SetupRoutes(routes.Dependencies{
		Detector: a.detector,
		Manager:  a.manager,
		Samples:  a.samples,
	}, a.config, a.logger)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start background services
	go a.bufferService.Run(ctx, a.config.CaptureFlushInterval)
	go a.hubService.Run(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	modelPath, _ := a.detector.ModelPath()
	a.logger.Info("DroneAid inference server on http://localhost:%d", a.config.Port)
	a.logger.Info("Model: %q (loaded=%v), classes: %v", modelPath, a.detector.Loaded(), a.detector.ClassNames())
	a.logger.Info("Captures: %s, catalog: %q", a.config.CaptureDirectory, a.config.CatalogPath)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	err := server.Shutdown(shutdownCtx)
	// Websocket connections are hijacked, Shutdown does not wait for them.
	if serr := a.manager.CloseStreams(shutdownCtx); serr != nil {
		a.logger.Warning("%v", serr)
	}
	return err
}

// Close stops the live streams, then releases the model and the catalog.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := a.manager.CloseStreams(ctx); serr != nil {
		a.logger.Warning("%v", serr)
	}

	err := a.detector.Close()
	if a.catalog != nil {
		if cerr := a.catalog.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
