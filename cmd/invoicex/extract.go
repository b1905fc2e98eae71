package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/invoicex/internal/api"
	"github.com/jackzampolin/invoicex/internal/export"
	"github.com/jackzampolin/invoicex/internal/invoice"
	"github.com/jackzampolin/invoicex/internal/modelserver"
)

var (
	extractWorkers int
	extractXLSX    string
	extractExport  bool
)

// extractOutput is one document's entry in the command output.
type extractOutput struct {
	File           string          `json:"file" yaml:"file"`
	ExtractionPath string          `json:"extraction_path,omitempty" yaml:"extraction_path,omitempty"`
	Result         *invoice.Result `json:"result,omitempty" yaml:"result,omitempty"`
	Error          string          `json:"error,omitempty" yaml:"error,omitempty"`
}

var extractCmd = &cobra.Command{
	Use:   "extract FILE...",
	Short: "Extract invoice fields from local PDFs",
	Long: `Run the extraction pipeline on local PDF files without starting the
HTTP server. The model endpoint must be reachable (or managed, see
model.server.managed).

Examples:
  invoicex extract invoice.pdf
  invoicex extract -o json scans/*.pdf --workers 4
  invoicex extract scans/*.pdf --xlsx invoices.xlsx
  invoicex extract scans/*.pdf --export     # writes to ~/.invoicex/exports`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := cfgManager.Get()

		mgr, baseURL, err := startModelServer(ctx, cfg, homePaths, logger)
		if err != nil {
			return err
		}
		if mgr != nil {
			defer func() {
				logger.Info("stopping model server")
				if err := mgr.Stop(ctx); err != nil {
					logger.Error("model server stop error", "error", err)
				}
				mgr.Close()
			}()
		}

		client := newModelClient(cfg, baseURL)
		logger.Info("waiting for model", "url", baseURL, "timeout", cfg.Model.ReadyTimeout)
		if err := modelserver.WaitReady(ctx, client, cfg.Model.ReadyTimeout, modelserver.DefaultPollInterval); err != nil {
			return fmt.Errorf("model not ready: %w", err)
		}

		p := newPipeline(cfg, client, logger)
		rows := make([]export.Row, len(args))

		g := new(errgroup.Group)
		g.SetLimit(max(extractWorkers, 1))
		for i, path := range args {
			g.Go(func() error {
				rows[i].File = path
				data, err := os.ReadFile(path)
				if err != nil {
					rows[i].Err = err
					return nil
				}
				result, strategy, err := p.Run(ctx, data)
				rows[i].Result, rows[i].Strategy, rows[i].Err = result, strategy, err
				if err != nil {
					logger.Warn("extraction failed", "file", path, "error", err)
				}
				return nil
			})
		}
		_ = g.Wait()

		out := make([]extractOutput, len(rows))
		failed := 0
		for i, r := range rows {
			out[i] = extractOutput{File: r.File}
			if r.Err != nil {
				out[i].Error = r.Err.Error()
				failed++
				continue
			}
			out[i].ExtractionPath = string(r.Strategy)
			out[i].Result = &rows[i].Result
		}

		if path := xlsxPath(); path != "" {
			if err := export.SaveXLSX(path, rows); err != nil {
				return err
			}
			logger.Info("exported spreadsheet", "path", path, "rows", len(rows))
		}

		if err := api.Output(out); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d documents failed", failed, len(rows))
		}
		return nil
	},
}

// xlsxPath resolves the spreadsheet target from --xlsx and --export.
func xlsxPath() string {
	if extractXLSX != "" {
		return extractXLSX
	}
	if !extractExport {
		return ""
	}
	name := fmt.Sprintf("invoices-%s.xlsx", time.Now().Format("20060102-150405"))
	return filepath.Join(homePaths.ExportsPath(), name)
}

func init() {
	extractCmd.Flags().IntVar(&extractWorkers, "workers", 2, "documents processed concurrently")
	extractCmd.Flags().StringVar(&extractXLSX, "xlsx", "", "also write results to this spreadsheet")
	extractCmd.Flags().BoolVar(&extractExport, "export", false, "also write a spreadsheet to the home exports directory")

	rootCmd.AddCommand(extractCmd)
}
