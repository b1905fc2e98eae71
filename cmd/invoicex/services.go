package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/invoicex/internal/config"
	"github.com/jackzampolin/invoicex/internal/extraction"
	"github.com/jackzampolin/invoicex/internal/extraction/tesseract"
	"github.com/jackzampolin/invoicex/internal/fields"
	"github.com/jackzampolin/invoicex/internal/home"
	"github.com/jackzampolin/invoicex/internal/invoice"
	"github.com/jackzampolin/invoicex/internal/modelserver"
	"github.com/jackzampolin/invoicex/internal/pipeline"
	"github.com/jackzampolin/invoicex/internal/providers"
)

// startModelServer provisions the managed container when configured and
// returns the base URL the model client should use. mgr is nil when the model
// endpoint is external.
func startModelServer(ctx context.Context, cfg *config.Config, h *home.Dir, logger *slog.Logger) (mgr *modelserver.DockerManager, baseURL string, err error) {
	if !cfg.Model.Server.Managed {
		return nil, cfg.Model.BaseURL, nil
	}

	sc := cfg.Model.Server
	modelDir := sc.ModelDir
	if modelDir == "" {
		if err := h.EnsureExists(); err != nil {
			return nil, "", err
		}
		modelDir = h.ModelsPath()
	}

	mgr, err = modelserver.Provision(ctx, modelserver.NewDownloader(logger), modelserver.ProvisionConfig{
		RepoID: sc.RepoID,
		Docker: modelserver.DockerConfig{
			ContainerName: sc.ContainerName,
			Image:         sc.Image,
			ModelDir:      modelDir,
			ModelFile:     sc.Filename,
			HostPort:      sc.Port,
			ContextSize:   sc.ContextSize,
			GPULayers:     sc.GPULayers,
		},
	}, logger)
	if err != nil {
		return nil, "", fmt.Errorf("provision model server: %w", err)
	}
	return mgr, mgr.BaseURL(), nil
}

// newModelClient builds the chat client for the model endpoint.
func newModelClient(cfg *config.Config, baseURL string) *providers.OpenAIChatClient {
	return providers.NewOpenAIChatClient(providers.OpenAIChatConfig{
		BaseURL:   baseURL,
		APIKey:    cfg.Model.ResolvedAPIKey(),
		Model:     cfg.Model.Name,
		RateLimit: cfg.Model.RateLimit,
		Timeout:   cfg.Model.Timeout,
	})
}

// newPipeline wires text acquisition, field extraction and validation.
func newPipeline(cfg *config.Config, client providers.LLMClient, logger *slog.Logger) *pipeline.Pipeline {
	ocr := cfg.Extraction.OCR
	router := extraction.NewRouter(extraction.RouterConfig{
		Pages:               extraction.PDFCPUPageCounter{},
		Text:                extraction.LedongthucText{},
		Rasterizer:          extraction.PopplerRasterizer{DPI: ocr.DPI},
		Recognizer:          tesseract.New(ocr.Languages, ocr.DPI),
		MinTextCharsPerPage: cfg.Extraction.MinTextCharsPerPage,
		Preprocess:          ocr.Preprocess,
		Logger:              logger,
	})
	return pipeline.New(
		router,
		fields.NewExtractor(client, cfg.Model.Name, logger),
		invoice.NewValidator(logger),
		logger,
	)
}
