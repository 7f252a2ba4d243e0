package file

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/testiflow-api/internal/domain"
)

type mockObjectStore struct{ mock.Mock }

func (m *mockObjectStore) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	args := m.Called(ctx, key, r, contentType)
	return args.String(0), args.Error(1)
}

var logoKey = regexp.MustCompile(`^logos/acc-1/[0-9a-z]{26}\.png$`)

func TestUploadLogo_StoresUnderAccountPrefix(t *testing.T) {
	store := new(mockObjectStore)
	svc := NewService(store)
	store.On("Upload", mock.Anything, mock.MatchedBy(logoKey.MatchString), mock.Anything, "image/png").
		Return("https://cdn.example.com/logos/acc-1/x.png", nil)

	url, err := svc.UploadLogo(context.Background(), UploadInput{
		Reader:      strings.NewReader("png-bytes"),
		Filename:    "../../logo.png",
		ContentType: "image/png",
		AccountID:   "acc-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/logos/acc-1/x.png", url)
	store.AssertExpectations(t)
}

func TestUploadLogo_InfersTypeFromFilename(t *testing.T) {
	store := new(mockObjectStore)
	svc := NewService(store)
	store.On("Upload", mock.Anything, mock.Anything, mock.Anything, "image/svg+xml").Return("u", nil)

	_, err := svc.UploadLogo(context.Background(), UploadInput{
		Reader:      strings.NewReader("<svg/>"),
		Filename:    "brand.SVG",
		ContentType: "application/octet-stream",
		AccountID:   "acc-1",
	})
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestUploadLogo_RejectsNonImage(t *testing.T) {
	store := new(mockObjectStore)
	svc := NewService(store)

	_, err := svc.UploadLogo(context.Background(), UploadInput{
		Reader:      strings.NewReader("%PDF"),
		Filename:    "doc.pdf",
		ContentType: "application/pdf",
		AccountID:   "acc-1",
	})
	assert.True(t, errors.Is(err, domain.ErrValidation))
	store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadLogo_ContentTypeParams(t *testing.T) {
	assert.Equal(t, "image/jpeg", normaliseContentType("Image/JPEG; charset=binary"))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "passwd", sanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "my_logo.png", sanitizeFilename("my logo.png"))
	assert.Equal(t, "_", sanitizeFilename("/"))
}
