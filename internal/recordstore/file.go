package recordstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	lockRetryInterval = 5 * time.Millisecond
	staleLockAge      = 30 * time.Second
)

// FileStore keeps each collection as a JSON document under a data directory.
// The version of a collection lives next to it in <name>.version, and every
// access holds <name>.lock, so several processes may share one directory.
type FileStore struct {
	baseDir string
	logger  *slog.Logger
}

// NewFileStore creates the data directory if needed
func NewFileStore(baseDir string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", baseDir, err)
	}

	logger.Info("File record store ready",
		slog.String("data_dir", baseDir),
	)

	return &FileStore{
		baseDir: baseDir,
		logger:  logger,
	}, nil
}

// Path returns the file backing a collection
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.baseDir, name+".json")
}

func (s *FileStore) versionPath(name string) string {
	return filepath.Join(s.baseDir, name+".version")
}

func (s *FileStore) lockPath(name string) string {
	return filepath.Join(s.baseDir, name+".lock")
}

// Load reads the collection file and its version under the collection lock
func (s *FileStore) Load(ctx context.Context, name string) (Document, error) {
	unlock, err := s.lock(ctx, name)
	if err != nil {
		return Document{}, err
	}
	defer unlock()

	version, err := s.version(name)
	if err != nil {
		return Document{}, err
	}

	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{Version: version}, nil
		}
		return Document{}, fmt.Errorf("failed to read collection %s: %w", name, err)
	}

	return Document{Data: data, Version: version}, nil
}

// Replace overwrites the collection whatever its current version
func (s *FileStore) Replace(ctx context.Context, name string, data []byte) error {
	unlock, err := s.lock(ctx, name)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := s.version(name)
	if err != nil {
		return err
	}

	return s.write(ctx, name, data, current+1)
}

// CompareAndReplace overwrites the collection only if no writer, in this
// process or another, changed it since version was loaded
func (s *FileStore) CompareAndReplace(ctx context.Context, name string, data []byte, version int64) error {
	unlock, err := s.lock(ctx, name)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := s.version(name)
	if err != nil {
		return err
	}
	if current != version {
		return ErrVersionConflict
	}

	return s.write(ctx, name, data, current+1)
}

// Close is a no-op; the store holds no open files between calls
func (s *FileStore) Close() error {
	return nil
}

// lock takes the cross-process lock of a collection by creating its lock file
// exclusively. A lock older than staleLockAge is left over from a crashed
// process and is broken.
func (s *FileStore) lock(ctx context.Context, name string) (func(), error) {
	path := s.lockPath(name)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("failed to lock collection %s: %w", name, err)
		}

		if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) > staleLockAge {
			s.logger.Warn("Breaking stale collection lock",
				slog.String("collection", name),
				slog.Duration("age", time.Since(info.ModTime())),
			)
			os.Remove(path)
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// version returns the stored version of a collection. Callers hold the lock.
func (s *FileStore) version(name string) (int64, error) {
	raw, err := os.ReadFile(s.versionPath(name))
	if err == nil {
		v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse version of collection %s: %w", name, err)
		}
		return v, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("failed to read version of collection %s: %w", name, err)
	}

	// a collection file without a version file predates version tracking
	if _, err := os.Stat(s.Path(name)); err == nil {
		return 1, nil
	}
	return 0, nil
}

// write stores data then the new version. Callers hold the lock.
func (s *FileStore) write(ctx context.Context, name string, data []byte, version int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.replaceFile(s.Path(name), data); err != nil {
		return fmt.Errorf("failed to write collection %s: %w", name, err)
	}

	if err := s.replaceFile(s.versionPath(name), []byte(strconv.FormatInt(version, 10))); err != nil {
		return fmt.Errorf("failed to write version of collection %s: %w", name, err)
	}

	s.logger.Debug("Collection written",
		slog.String("collection", name),
		slog.Int("bytes", len(data)),
		slog.Int64("version", version),
	)

	return nil
}

// replaceFile swaps the file in with a rename so readers never see a partial document
func (s *FileStore) replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.baseDir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return nil
}
