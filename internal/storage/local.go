package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// LocalSink keeps reports under a directory on disk.
type LocalSink struct {
	dir    string
	logger *slog.Logger
}

func NewLocalSink(dir string, logger *slog.Logger) (*LocalSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report dir: %w: %w", common.ErrStorage, err)
	}
	return &LocalSink{dir: dir, logger: logger}, nil
}

// Put writes through a temp file and renames, so readers never see a partial report.
func (s *LocalSink) Put(_ context.Context, key, _ string, data []byte) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	dst := filepath.Join(s.dir, filepath.FromSlash(k))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("put %s: %w: %w", k, common.ErrStorage, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return fmt.Errorf("put %s: %w: %w", k, common.ErrStorage, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("put %s: %w: %w", k, common.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("put %s: %w: %w", k, common.ErrStorage, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("put %s: %w: %w", k, common.ErrStorage, err)
	}
	s.logger.Debug("storage.local.put", "key", k, "bytes", len(data))
	return nil
}

func (s *LocalSink) Get(_ context.Context, key string) ([]byte, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(k)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("report %s: %w", k, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w: %w", k, common.ErrStorage, err)
	}
	return b, nil
}
