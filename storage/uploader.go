package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

// MaxLogoSize is the largest club logo accepted, in bytes.
const MaxLogoSize = 2 << 20

var ErrUnsupportedContentType = errors.New("unsupported logo content type")

var logoExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// LogoKey builds a fresh object key for a club logo of the given content type.
func LogoKey(clubID int, contentType string) (string, error) {
	ext, ok := logoExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	return fmt.Sprintf("clubs/%d/logo/%s%s", clubID, uuid.NewString(), ext), nil
}
