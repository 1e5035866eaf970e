// Package fsutil holds the filesystem primitives used by the privacy sweep.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"
)

// SweepStats summarizes what a sweep removed.
type SweepStats struct {
	Files int64
	Bytes int64
}

// Sweeper deletes engine directories from disk.
type Sweeper struct {
	logger *zap.Logger
}

// NewSweeper creates a sweeper. A nil logger discards output.
func NewSweeper(logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{logger: logger}
}

// DeleteDirectory removes path and everything below it. A missing path is not
// an error.
func (s *Sweeper) DeleteDirectory(path string) error {
	if path == "" {
		return nil
	}
	stats, err := Measure(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("measure failed", zap.String("path", path), zap.Error(err))
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}

	s.logger.Debug("directory deleted",
		zap.String("path", path),
		zap.Int64("files", stats.Files),
		zap.Int64("bytes", stats.Bytes),
	)
	return nil
}

// TruncateDirectory removes every entry inside path but keeps path itself.
// Entries that cannot be removed are skipped and reported in the returned
// error; the remaining entries are still removed.
func (s *Sweeper) TruncateDirectory(path string) error {
	if path == "" {
		return nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	var errs []error
	var removed int
	for _, entry := range entries {
		target := filepath.Join(path, entry.Name())
		if err := os.RemoveAll(target); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", target, err))
			continue
		}
		removed++
	}

	s.logger.Debug("directory truncated",
		zap.String("path", path),
		zap.Int("entries", removed),
	)
	return errors.Join(errs...)
}

// Measure counts the regular files and bytes below root.
func Measure(root string) (SweepStats, error) {
	if _, err := os.Lstat(root); err != nil {
		return SweepStats{}, err
	}

	var files, size atomic.Int64
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			// Entries vanishing mid-walk are expected during a sweep.
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		files.Add(1)
		if info, err := d.Info(); err == nil {
			size.Add(info.Size())
		}
		return nil
	})

	return SweepStats{Files: files.Load(), Bytes: size.Load()}, err
}
