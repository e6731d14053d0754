package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"pdfchat/internal/app"
	"pdfchat/internal/transport/http/middleware"
	"pdfchat/internal/transport/http/response"
	"pdfchat/internal/upstream"
)

const maxUploadBytes = 50 << 20

type UploadHandler struct {
	processor       *upstream.ProcessorClient
	documentService *app.DocumentService
}

func NewUploadHandler(processor *upstream.ProcessorClient, documentService *app.DocumentService) *UploadHandler {
	return &UploadHandler{
		processor:       processor,
		documentService: documentService,
	}
}

// Upload forwards the multipart files to the processing service and records
// the accepted documents. The processing service's HTTP failures are relayed
// with their original status; network-level failures map to 502.
func (h *UploadHandler) Upload(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid multipart payload")
		return
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "no files provided")
		return
	}

	parts := make([]upstream.UploadPart, 0, len(fileHeaders))
	var total int64
	for _, fh := range fileHeaders {
		total += fh.Size
		if total > maxUploadBytes {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "upload too large")
			return
		}

		f, openErr := fh.Open()
		if openErr != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "unreadable file part")
			return
		}
		content, readErr := io.ReadAll(f)
		f.Close()
		if readErr != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "unreadable file part")
			return
		}
		parts = append(parts, upstream.UploadPart{FileName: fh.Filename, Content: content})
	}

	files, err := h.processor.UploadFiles(c.Request.Context(), parts)
	if err != nil {
		var apiErr *upstream.APIError
		switch {
		case errors.As(err, &apiErr):
			response.Error(c, apiErr.Status, response.CodeUpstreamFailure, "document processing failed")
		case errors.Is(err, upstream.ErrUnreachable):
			response.Error(c, http.StatusBadGateway, response.CodeUpstreamFailure, "document processing service unreachable")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "document processing failed")
		}
		return
	}

	docs, err := h.documentService.RegisterProcessed(c.Request.Context(), userID, parts, files)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "persisting processed files failed")
		return
	}

	response.OK(c, gin.H{"files": docs})
}

// ListUploads reports the caller's uploaded documents, newest first.
func (h *UploadHandler) ListUploads(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	docs, err := h.documentService.List(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list uploads failed")
		return
	}

	response.OK(c, gin.H{"files": docs})
}
