package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"billing-lifecycle/internal/domain/ports/adapter"
)

var _ adapter.EvidenceStore = (*DirStore)(nil)

// DirStore keeps evidence on local disk. Development fallback when no object
// storage is configured.
type DirStore struct {
	root string
}

func NewDirStore(root string) (*DirStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &DirStore{root: root}, nil
}

func (s *DirStore) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, body); err != nil {
		return "", err
	}
	return fmt.Sprintf("file://%s", path), nil
}
