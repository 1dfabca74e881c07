package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/vedran77/reviewhub/internal/service"
)

// multipart overhead allowed on top of the file size limit
const uploadSlack = 64 << 10

type UploadHandler struct {
	uploadService *service.UploadService
}

func NewUploadHandler(uploadService *service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadService.MaxBytes()+uploadSlack)
	if err := r.ParseMultipartForm(h.uploadService.MaxBytes()); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_FORM", "Expected a multipart form")
		return
	}

	file, header, err := formFile(r, "image", "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_FILE", "No image file found in the request")
		return
	}
	defer file.Close()

	folder := r.URL.Query().Get("folder")
	result, err := h.uploadService.Upload(r.Context(), folder, header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotImage):
			writeError(w, http.StatusUnsupportedMediaType, "NOT_IMAGE", "Only image files are allowed")
		case errors.Is(err, service.ErrFileTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File is too large")
		default:
			writeInternal(w, "upload", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func formFile(r *http.Request, fields ...string) (multipart.File, *multipart.FileHeader, error) {
	var lastErr error
	for _, field := range fields {
		file, header, err := r.FormFile(field)
		if err == nil {
			return file, header, nil
		}
		lastErr = err
	}
	return nil, nil, lastErr
}
