package attach

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrEmptyPayload is returned when the attachment body is empty.
var ErrEmptyPayload = errors.New("attachment payload is empty")

// Store persists raw attachment bytes and hands back a retrievable
// URL. Messages only ever carry the URL and the original filename,
// never the bytes.
type Store interface {
	// Save writes the payload and returns its URL. The kind is
	// sniffed from the content ("image" or "file").
	Save(ctx context.Context, data []byte, filename string) (url, kind string, err error)
}

// DiskStore writes attachments under a local directory served
// statically by the HTTP layer.
type DiskStore struct {
	dir     string
	baseURL string
}

// NewDiskStore creates the upload directory if needed.
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Save writes the payload under a fresh object name. The extension
// comes from the sniffed content type, falling back to the original
// filename's extension.
func (s *DiskStore) Save(_ context.Context, data []byte, filename string) (string, string, error) {
	if len(data) == 0 {
		return "", "", ErrEmptyPayload
	}

	mime := mimetype.Detect(data)

	ext := mime.Extension()
	if ext == "" {
		ext = filepath.Ext(filename)
	}

	name := uuid.NewString() + ext
	dst := filepath.Join(s.dir, name)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", "", fmt.Errorf("write attachment: %w", err)
	}

	kind := "file"
	if strings.HasPrefix(mime.String(), "image/") {
		kind = "image"
	}

	return s.baseURL + "/" + path.Clean(name), kind, nil
}
