package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"mailblast/internal/core"
	"mailblast/internal/images"
	"mailblast/internal/types"
)

// maxUploadBytes caps the whole multipart body. Newsletter header images are
// small; anything bigger is a mistake.
const maxUploadBytes = 10 << 20 // 10 MB

// uploadResponse is the success body: the public URL to paste into the
// compose form's image field.
type uploadResponse struct {
	URL string `json:"url"`
}

// UploadHandler stores operator-uploaded images and hands back a public URL.
type UploadHandler struct {
	store  images.UploadStore
	logger *slog.Logger
}

// NewUploadHandler creates an UploadHandler with the provided dependencies.
func NewUploadHandler(store images.UploadStore, logger *slog.Logger) *UploadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{
		store:  store,
		logger: logger,
	}
}

// RegisterRoutes mounts the upload route on the provided chi.Router.
func (h *UploadHandler) RegisterRoutes(r chi.Router) {
	r.Post("/upload", h.Upload)
}

// Upload handles POST /upload with a multipart "image" file.
//
// The content type is sniffed from the bytes, not trusted from the client
// header; only image/* payloads are stored. Success answers {"url": ...},
// failures answer {"error": ...} with a 4xx/5xx status.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationUpload,
			"upload must be a multipart form with an image file",
			err,
		))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationUpload,
			"an image file is required",
			err,
		))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationUpload,
			"failed to read uploaded file",
			err,
		))
		return
	}
	if len(data) == 0 {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationUpload,
			"uploaded file is empty",
			nil,
		))
		return
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationUpload,
			"only image uploads are accepted",
			nil,
		))
		return
	}

	url, err := h.store.Save(r.Context(), header.Filename, contentType, data)
	if err != nil {
		h.logger.Error("upload failed", "filename", header.Filename, "error", err)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, uploadResponse{URL: url})
}
