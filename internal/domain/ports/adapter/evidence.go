package adapter

import (
	"context"
	"io"
)

// EvidenceStore accepts an uploaded proof-of-payment document and returns an
// opaque reference to it. The core never reads the blob back.
type EvidenceStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (ref string, err error)
}
