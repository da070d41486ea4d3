package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

// FileResult is the per-file collection outcome.
type FileResult struct {
	Path         string
	HashHex      string
	Size         int64
	Deduplicated bool
	Err          string
}

// Stats summarizes a collection run.
type Stats struct {
	Scanned      uint32
	Matched      uint32
	Collected    uint32
	Deduplicated uint32
	Failed       uint32
}

type Options struct {
	SkipHidden     bool
	SkipDuplicates bool // drop files whose content was already collected in this run
	MaxFileBytes   int64
}

// Collector turns paths (files or directories) into uploaded documents for a batch.
type Collector struct {
	opts   Options
	logger *slog.Logger
}

func NewCollector(opts Options, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{opts: opts, logger: logger}
}

// Collect keeps argument order; files inside a directory come in lexical order. Explicit file
// arguments are taken regardless of extension so the parser can report them as not_pdf.
func (c *Collector) Collect(ctx context.Context, paths []string) ([]*entity.UploadedDocument, []FileResult, Stats, error) {
	var (
		docs    []*entity.UploadedDocument
		results []FileResult
		stats   Stats
	)
	seen := map[string]struct{}{}

	add := func(path string) {
		stats.Matched++
		r := FileResult{Path: path}
		content, err := c.read(path)
		if err != nil {
			r.Err = err.Error()
			stats.Failed++
			results = append(results, r)
			c.logger.Warn("ingest.file.failed", "path", path, "error", err)
			return
		}
		sum := sha256.Sum256(content)
		r.HashHex = hex.EncodeToString(sum[:])
		r.Size = int64(len(content))
		if _, dup := seen[r.HashHex]; dup && c.opts.SkipDuplicates {
			r.Deduplicated = true
			stats.Deduplicated++
			results = append(results, r)
			c.logger.Info("ingest.file.duplicate", "path", path, "sha256", r.HashHex)
			return
		}
		seen[r.HashHex] = struct{}{}
		docs = append(docs, &entity.UploadedDocument{Filename: filepath.Base(path), Content: content})
		stats.Collected++
		results = append(results, r)
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, results, stats, err
		}
		info, err := os.Stat(p)
		if err != nil {
			stats.Scanned++
			stats.Failed++
			results = append(results, FileResult{Path: p, Err: err.Error()})
			continue
		}
		if !info.IsDir() {
			stats.Scanned++
			add(p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				stats.Scanned++
				stats.Failed++
				results = append(results, FileResult{Path: path, Err: walkErr.Error()})
				return nil
			}
			if path != p && c.opts.SkipHidden && IsHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			stats.Scanned++
			if !AllowedExt(filepath.Ext(path)) {
				return nil
			}
			add(path)
			return ctx.Err()
		})
		if err != nil {
			return nil, results, stats, fmt.Errorf("walk %s: %w", p, err)
		}
	}

	c.logger.Info("ingest.collect.ok",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"collected", stats.Collected,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return docs, results, stats, nil
}

func (c *Collector) read(path string) ([]byte, error) {
	if c.opts.MaxFileBytes > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.Size() > c.opts.MaxFileBytes {
			return nil, fmt.Errorf("file is %d bytes, limit %d", info.Size(), c.opts.MaxFileBytes)
		}
	}
	return os.ReadFile(path)
}

// AllowedExt checks if a file extension is in the allowed set.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
