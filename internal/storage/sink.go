package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// Sink stores rendered reports so they can be downloaded by batch ID later.
type Sink interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Key places a report under its batch: "<batch-id>/<name>".
func Key(batchID uuid.UUID, name string) string {
	return path.Join(batchID.String(), path.Base(name))
}

func cleanKey(key string) (string, error) {
	k := path.Clean(strings.TrimPrefix(key, "/"))
	if k == "." || k == ".." || strings.HasPrefix(k, "../") {
		return "", fmt.Errorf("storage key %q: %w", key, common.ErrInvalidInput)
	}
	return k, nil
}
