package endpoints

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/invoicex/internal/api"
	"github.com/jackzampolin/invoicex/internal/extraction"
	"github.com/jackzampolin/invoicex/internal/invoice"
	"github.com/jackzampolin/invoicex/internal/svcctx"
)

const (
	// ExtractPath is the upload route.
	ExtractPath = "/api/v1/extract"

	// FileField is the multipart form field holding the PDF.
	FileField = "file"

	pdfContentType = "application/pdf"

	// Room for multipart boundaries and part headers on top of the file limit.
	multipartOverhead = 64 << 10
)

var pdfMagic = []byte("%PDF")

// ExtractEndpoint handles POST /api/v1/extract.
type ExtractEndpoint struct{}

var _ api.Endpoint = (*ExtractEndpoint)(nil)

func (e *ExtractEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", ExtractPath, e.handler
}

func (e *ExtractEndpoint) Protected() bool { return true }

// handler godoc
//
//	@Summary		Extract invoice fields
//	@Description	Upload one PDF and receive the invoice date, reference and net/VAT/total amounts. Fields that cannot be determined are null.
//	@Tags			extract
//	@Accept			mpfd
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Param			file	formData	file	true	"Invoice PDF"
//	@Success		200		{object}	invoice.Result
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		413		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/v1/extract [post]
func (e *ExtractEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	services := svcctx.ServicesFrom(r.Context())
	if services == nil || services.Pipeline == nil {
		writeFailure(w, r, errors.New("extraction pipeline not configured"))
		return
	}

	pdf, err := readUpload(w, r, services.MaxFileSize)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	ctx := r.Context()
	if services.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, services.RequestTimeout)
		defer cancel()
	}

	result, strategy, err := services.Pipeline.Run(ctx, pdf)
	if err != nil {
		if errors.Is(err, extraction.ErrEmptyDocument) || errors.Is(err, extraction.ErrUnreadableDocument) {
			svcctx.LoggerFrom(r.Context()).Warn("unreadable document",
				"request_id", svcctx.RequestIDFrom(r.Context()),
				"error", err)
			writeFailure(w, r, &RequestError{Status: http.StatusUnprocessableEntity, Message: MsgUnreadablePDF})
			return
		}
		writeFailure(w, r, fmt.Errorf("pipeline: %w", err))
		return
	}

	svcctx.Annotate(r.Context(),
		"extraction_path", string(strategy),
		"null_fields", result.NullFields())
	writeJSON(w, http.StatusOK, result)
}

// readUpload returns the bytes of the "file" part after checking its
// content type, size and PDF signature.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, badRequest(MsgNoFile)
	}

	part, err := findPart(mr, FileField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, tooLarge(maxBytes)
		}
		return nil, badRequest(MsgNoFile)
	}
	defer part.Close()

	mediaType, _, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
	if err != nil || mediaType != pdfContentType {
		return nil, badRequest(MsgInvalidType)
	}

	src := io.Reader(part)
	if maxBytes > 0 {
		src = io.LimitReader(part, maxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, tooLarge(maxBytes)
		}
		return nil, badRequest(MsgNoFile)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, tooLarge(maxBytes)
	}

	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, badRequest(MsgInvalidPDF)
	}
	return data, nil
}

func findPart(mr *multipart.Reader, name string) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == name {
			return part, nil
		}
		part.Close()
	}
}

func (e *ExtractEndpoint) Command(newClient func() *api.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "extract FILE",
		Short: "Extract invoice fields from a PDF via the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			var result invoice.Result
			if err := newClient().PostFile(cmd.Context(), ExtractPath, FileField, filepath.Base(args[0]), pdfContentType, f, &result); err != nil {
				return err
			}
			return api.Output(result)
		},
	}
}
