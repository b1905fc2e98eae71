package endpoints

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackzampolin/invoicex/internal/svcctx"
)

// Messages returned to clients. Internal failures never leak details.
const (
	MsgInvalidAPIKey  = "Invalid or missing API key"
	MsgModelNotLoaded = "Model not loaded"
	MsgNoFile         = "No file provided"
	MsgInvalidType    = "Invalid file type: expected application/pdf"
	MsgInvalidPDF     = "Invalid PDF file"
	MsgUnreadablePDF  = "Unable to read PDF document"
	MsgInternal       = "internal server error"
)

// RequestError is a client-facing failure with its HTTP status.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func badRequest(msg string) *RequestError {
	return &RequestError{Status: http.StatusBadRequest, Message: msg}
}

func tooLarge(maxBytes int64) *RequestError {
	return &RequestError{
		Status:  http.StatusRequestEntityTooLarge,
		Message: fmt.Sprintf("File too large: maximum size is %d MB", maxBytes/(1024*1024)),
	}
}

// writeFailure renders err. RequestErrors keep their status and message;
// anything else is logged and rendered as a generic 500.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		WriteError(w, reqErr.Status, reqErr.Message)
		return
	}
	svcctx.LoggerFrom(r.Context()).Error("request failed",
		"request_id", svcctx.RequestIDFrom(r.Context()),
		"path", r.URL.Path,
		"error", err)
	WriteError(w, http.StatusInternalServerError, MsgInternal)
}
