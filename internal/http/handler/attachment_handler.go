package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/straye-as/measure-api/internal/auth"
	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/storage"
	"go.uber.org/zap"
)

// AttachmentHandler stores measurement sheets and photos. The returned attachment
// reference is embedded in a measurement detail payload.
type AttachmentHandler struct {
	storage     storage.Storage
	maxUploadMB int64
	logger      *zap.Logger
}

func NewAttachmentHandler(store storage.Storage, maxUploadMB int64, logger *zap.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		storage:     store,
		maxUploadMB: maxUploadMB,
		logger:      logger,
	}
}

// Upload godoc
// @Summary Upload attachment
// @Tags Attachments
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Success 201 {object} domain.Attachment
// @Failure 400 {object} domain.APIError
// @Failure 413 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /attachments [post]
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := h.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large: maximum size is %dMB", h.maxUploadMB))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid file upload: file field is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	storagePath, size, err := h.storage.Upload(r.Context(), header.Filename, contentType, file)
	if err != nil {
		h.logger.Error("failed to upload attachment", zap.Error(err), zap.String("filename", header.Filename))
		respondWithError(w, http.StatusInternalServerError, "Failed to upload attachment")
		return
	}

	userID := ""
	if userCtx, ok := auth.FromContext(r.Context()); ok {
		userID = userCtx.UserID
	}
	h.logger.Info("attachment uploaded",
		zap.String("storage_path", storagePath),
		zap.Int64("size", size),
		zap.String("user_id", userID))

	respondJSON(w, http.StatusCreated, domain.Attachment{
		FileName:    header.Filename,
		StoragePath: storagePath,
		ContentType: contentType,
		Size:        size,
	})
}

// Download godoc
// @Summary Download attachment
// @Tags Attachments
// @Produce application/octet-stream
// @Param path query string true "Storage path returned by the upload"
// @Success 200
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /attachments/download [get]
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	storagePath := r.URL.Query().Get("path")
	if storagePath == "" {
		respondWithError(w, http.StatusBadRequest, "path is required")
		return
	}

	reader, err := h.storage.Download(r.Context(), storagePath)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidPath):
			respondWithError(w, http.StatusBadRequest, "Invalid attachment path")
		case errors.Is(err, storage.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "Attachment not found")
		default:
			h.logger.Error("failed to download attachment", zap.Error(err), zap.String("storage_path", storagePath))
			respondWithError(w, http.StatusInternalServerError, "Failed to download attachment")
		}
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(storagePath)}))
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = io.Copy(w, reader)
}
