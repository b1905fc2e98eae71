package modelserver

import (
	"context"
	"fmt"
	"log/slog"
)

// ProvisionConfig describes a managed model server.
type ProvisionConfig struct {
	RepoID string
	Docker DockerConfig // Docker.ModelFile doubles as the artifact filename
}

// Provision downloads the model artifact if needed and starts the server
// container. The caller owns the returned manager and should Stop and Close
// it at shutdown.
func Provision(ctx context.Context, dl *Downloader, cfg ProvisionConfig, logger *slog.Logger) (*DockerManager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dl == nil {
		dl = NewDownloader(logger)
	}

	if _, err := dl.Ensure(ctx, cfg.RepoID, cfg.Docker.ModelFile, cfg.Docker.ModelDir); err != nil {
		return nil, err
	}

	mgr, err := NewDockerManager(cfg.Docker)
	if err != nil {
		return nil, err
	}

	if err := mgr.ValidateExisting(ctx); err != nil {
		mgr.Close()
		return nil, fmt.Errorf("existing model container is incompatible: %w", err)
	}

	if err := mgr.Start(ctx); err != nil {
		mgr.Close()
		return nil, err
	}

	logger.Info("model server container started",
		"container", mgr.containerName,
		"image", mgr.imageName,
		"url", mgr.BaseURL())
	return mgr, nil
}
