package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/invoicex/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the invoicex server",
	Long: `Start the invoicex HTTP server.

With model.server.managed enabled, the model file is downloaded if missing
and a llama.cpp container is started. It is stopped again on shutdown
(Ctrl+C or SIGTERM).

The server provides:
  - GET  /health          - Liveness and model readiness
  - POST /api/v1/extract  - Upload a PDF, receive the five fields
  - GET  /swagger.json    - OpenAPI document

Extraction requests return 503 until the model endpoint answers.

Examples:
  invoicex serve                    # Start on the configured port (8000)
  invoicex serve --port 3000        # Start on a custom port
  invoicex serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := cfgManager.Get()

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		mgr, baseURL, err := startModelServer(ctx, cfg, homePaths, logger)
		if err != nil {
			return err
		}

		client := newModelClient(cfg, baseURL)
		srvCfg := server.Config{
			Host:           host,
			Port:           port,
			APIKey:         cfg.Server.ResolvedAPIKey(),
			MaxFileSize:    cfg.Server.MaxFileSizeBytes(),
			RequestTimeout: cfg.Server.RequestTimeout,
			Pipeline:       newPipeline(cfg, client, logger),
			ModelChecker:   client,
			ReadyTimeout:   cfg.Model.ReadyTimeout,
			Logger:         logger,
		}
		if mgr != nil {
			srvCfg.ModelServer = mgr
		}
		if srvCfg.APIKey == "" {
			logger.Warn("server.api_key is empty; all extraction requests will be rejected")
		}

		srv, err := server.New(srvCfg)
		if err != nil {
			if mgr != nil {
				_ = mgr.Stop(ctx)
				mgr.Close()
			}
			return err
		}

		cfgManager.WatchConfig(logger)

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to (overrides server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "8000", "Port to listen on (overrides server.port)")

	rootCmd.AddCommand(serveCmd)
}
