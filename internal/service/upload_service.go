package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/reviewhub/internal/storage"
	"github.com/vedran77/reviewhub/pkg/validator"
)

var (
	ErrNotImage     = errors.New("only image uploads are allowed")
	ErrFileTooLarge = errors.New("file is too large")
)

type UploadResult struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"mimetype"`
	Size        int64  `json:"size"`
}

type UploadService struct {
	store    storage.Storage
	maxBytes int64
}

func NewUploadService(store storage.Storage, maxBytes int64) *UploadService {
	return &UploadService{store: store, maxBytes: maxBytes}
}

func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload stores an image under a fresh key in folder and returns where it is served.
func (s *UploadService) Upload(ctx context.Context, folder, filename, contentType string, size int64, body io.Reader) (*UploadResult, error) {
	if !strings.HasPrefix(contentType, "image/") || !validator.HasImageExtension(filename) {
		return nil, ErrNotImage
	}
	if size > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	folder = strings.Trim(folder, "/")
	if folder == "" {
		folder = "images"
	}
	key := fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), strings.ToLower(filepath.Ext(filename)))

	url, err := s.store.Save(ctx, key, contentType, io.LimitReader(body, s.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	return &UploadResult{URL: url, Key: key, ContentType: contentType, Size: size}, nil
}
