// Package images validates uploaded credential images and stores them on
// local disk or in S3-compatible object storage.
package images

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// DefaultMaxSize is the upload limit when none is configured.
const DefaultMaxSize int64 = 5 << 20

// allowed maps accepted file extensions to the content type the file body
// must actually have.
var allowed = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Store keeps image bytes somewhere and hands back an opaque path that is
// persisted with the credential.
type Store interface {
	Save(ctx context.Context, u *Upload) (string, error)
	Remove(ctx context.Context, path string) error
	URL(ctx context.Context, path string) (string, error)
}

// Opener is implemented by stores that cannot hand out a URL of their own.
// The HTTP layer streams these files after the owner check.
type Opener interface {
	Open(ctx context.Context, path string) (*os.File, error)
}

// Upload is an image that passed validation, held in memory.
type Upload struct {
	Ext         string
	ContentType string
	Data        []byte
}

// NewUpload reads body (at most maxSize bytes) and checks that filename has
// an allowed extension and the content really is that kind of image.
func NewUpload(filename string, body io.Reader, maxSize int64) (*Upload, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	ext := strings.ToLower(filepath.Ext(filename))
	want, ok := allowed[ext]
	if !ok {
		return nil, common.ErrUnsupportedImage
	}

	data, err := io.ReadAll(io.LimitReader(body, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, common.ErrImageTooLarge
	}

	if !mimetype.Detect(data).Is(want) {
		return nil, common.ErrUnsupportedImage
	}

	return &Upload{Ext: ext, ContentType: want, Data: data}, nil
}

func (u *Upload) reader() io.Reader {
	return bytes.NewReader(u.Data)
}

// newObjectName returns a random, date-partitioned name for u.
func newObjectName(u *Upload, now time.Time) string {
	return fmt.Sprintf("%d/%02d/%02d/%s%s", now.Year(), now.Month(), now.Day(), uuid.New(), u.Ext)
}
