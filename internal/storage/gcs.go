package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// GCSSink keeps reports in a Cloud Storage bucket. Objects are written once; a batch's
// report never changes after it is rendered.
type GCSSink struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	prefix string
	logger *slog.Logger
}

// NewGCSSink uses application default credentials.
func NewGCSSink(ctx context.Context, bucket, prefix string, logger *slog.Logger) (*GCSSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w: %w", common.ErrStorage, err)
	}
	return &GCSSink{client: client, bucket: client.Bucket(bucket), prefix: prefix, logger: logger}, nil
}

func (s *GCSSink) object(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if s.prefix != "" {
		k = path.Join(s.prefix, k)
	}
	return k, nil
}

func (s *GCSSink) Put(ctx context.Context, key, contentType string, data []byte) error {
	name, err := s.object(key)
	if err != nil {
		return err
	}
	w := s.bucket.Object(name).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return s.putErr(name, err)
	}
	if err := w.Close(); err != nil {
		return s.putErr(name, err)
	}
	s.logger.Info("storage.gcs.put", "object", name, "bytes", len(data))
	return nil
}

func (s *GCSSink) putErr(name string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		s.logger.Info("storage.gcs.exists", "object", name)
		return nil
	}
	s.logger.Error("storage.gcs.put_failed", "object", name, "error", err)
	return fmt.Errorf("put %s: %w: %w", name, common.ErrStorage, err)
}

func (s *GCSSink) Get(ctx context.Context, key string) ([]byte, error) {
	name, err := s.object(key)
	if err != nil {
		return nil, err
	}
	r, err := s.bucket.Object(name).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("report %s: %w", name, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w: %w", name, common.ErrStorage, err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w: %w", name, common.ErrStorage, err)
	}
	return b, nil
}

func (s *GCSSink) Close() error { return s.client.Close() }
