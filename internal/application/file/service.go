package file

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/testiflow-api/internal/domain"
	"github.com/testiflow-api/internal/pkg/id"
)

// MaxLogoSize caps the size of an uploaded logo in bytes.
const MaxLogoSize = 2 << 20

// allowedLogoTypes maps accepted MIME types to the extension used in the object key.
var allowedLogoTypes = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// ObjectStore is the blob storage the service writes logos to.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

type UploadInput struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	AccountID   string
}

type Service interface {
	UploadLogo(ctx context.Context, input UploadInput) (string, error)
}

type service struct {
	store ObjectStore
}

func NewService(store ObjectStore) Service {
	return &service{store: store}
}

// UploadLogo stores an image under logos/<accountID>/ and returns its URL.
func (s *service) UploadLogo(ctx context.Context, input UploadInput) (string, error) {
	if input.AccountID == "" {
		return "", fmt.Errorf("missing uploader: %w", domain.ErrUnauthorized)
	}
	contentType := normaliseContentType(input.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFromName(sanitizeFilename(input.Filename))
	}
	ext, ok := allowedLogoTypes[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported logo type %q: %w", contentType, domain.ErrValidation)
	}
	key := fmt.Sprintf("logos/%s/%s%s", input.AccountID, strings.ToLower(id.New()), ext)
	return s.store.Upload(ctx, key, input.Reader, contentType)
}

func normaliseContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func contentTypeFromName(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".svg"):
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}

// sanitizeFilename strips directory components and keeps only safe characters
// (alphanumeric, dot, dash, underscore).
func sanitizeFilename(name string) string {
	name = path.Base(name)
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if result := b.String(); result != "" && result != "." {
		return result
	}
	return "_"
}
