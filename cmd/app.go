package cmd

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/kozaktomas/face-recognizer/internal/embedder"
	"github.com/kozaktomas/face-recognizer/internal/logger"
	"github.com/kozaktomas/face-recognizer/internal/opencv"
	"github.com/kozaktomas/face-recognizer/internal/service"
)

// loadConfig reads the configuration and builds the logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, log, nil
}

// buildModels loads the detector and the configured embedder.
func buildModels(cfg *config.Config, log *zap.Logger) (service.Components, error) {
	det, err := opencv.NewSSDDetector(cfg.Detector)
	if err != nil {
		return service.Components{}, fmt.Errorf("loading face detector: %w", err)
	}
	log.Info("face detector loaded", zap.String("model", cfg.Detector.Model))

	c := service.Components{Detector: det, Closers: []io.Closer{det}}

	switch cfg.Embedder.Backend {
	case config.EmbedderBackendRemote:
		c.Embedder = embedder.NewRemote(cfg.Embedder.URL, cfg.Embedder.Timeout, cfg.Embedder.Dim)
		log.Info("using remote embedder", zap.String("url", cfg.Embedder.URL))
	default:
		emb, err := opencv.NewDNNEmbedder(cfg.Embedder)
		if err != nil {
			det.Close()
			return service.Components{}, fmt.Errorf("loading face embedder: %w", err)
		}
		c.Embedder = emb
		c.Closers = append(c.Closers, emb)
		log.Info("face embedder loaded", zap.String("model", cfg.Embedder.Model))
	}
	return c, nil
}

// openService loads everything a recognition or enrollment command needs.
func openService(ctx context.Context) (*service.Service, *zap.Logger, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	c, err := buildModels(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	backend, closer, err := service.OpenBackend(ctx, cfg, log)
	if err != nil {
		for _, cl := range c.Closers {
			cl.Close()
		}
		return nil, nil, fmt.Errorf("opening embedding store: %w", err)
	}
	c.Backend = backend
	c.Closers = append(c.Closers, closer)

	svc, err := service.New(ctx, cfg, log, c)
	if err != nil {
		return nil, nil, err
	}
	return svc, log, nil
}

// openStore loads the embedding store without the models.
func openStore(ctx context.Context) (*config.Config, *database.EmbeddingStore, io.Closer, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	backend, closer, err := service.OpenBackend(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening embedding store: %w", err)
	}
	store := database.NewEmbeddingStore(backend)
	if err := store.Load(ctx); err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, nil, nil, err
	}
	return cfg, store, closer, nil
}
