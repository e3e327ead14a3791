package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"quill/internal/models"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const maxUploadBytes = 10 << 20

// imageExtensions maps sniffed formats to stored file extensions. Formats
// outside this set are rejected regardless of the uploaded filename.
var imageExtensions = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"webp": ".webp",
}

// MediaService stores post image attachments under the media directory. Names
// are random; the original filename never reaches the filesystem.
type MediaService struct {
	dir string
}

func NewMediaService(dir string) *MediaService {
	return &MediaService{dir: dir}
}

// Store sniffs the upload, writes it as posts/<uuid>.<ext> under the media
// dir, and returns that relative path for the post record.
func (s *MediaService) Store(content []byte) (string, error) {
	if len(content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if len(content) > maxUploadBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", maxUploadBytes>>20))
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	ext, ok := imageExtensions[format]
	if !ok {
		return "", models.NewValidationError("Unsupported image format")
	}

	name := filepath.Join("posts", uuid.NewString()+ext)
	full := filepath.Join(s.dir, name)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", models.NewInternalError(err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return "", models.NewInternalError(err)
	}
	return filepath.ToSlash(name), nil
}
