package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	pomodorout "studypomo/internal/modules/pomodoro/port/out"
	apperrors "studypomo/internal/platform/errors"
)

const stateFileExt = ".json"

// FileStateStore writes one file per key under dir. Writes go through a temp
// file and a rename so readers never see a partial snapshot.
type FileStateStore struct {
	dir    string
	logger zerolog.Logger
}

func NewFileStateStore(dir string, logger zerolog.Logger) *FileStateStore {
	return &FileStateStore{dir: dir, logger: logger.With().Str("component", "file_state").Logger()}
}

var _ pomodorout.PersistenceAdapter = (*FileStateStore)(nil)

func (s *FileStateStore) Get(_ context.Context, key string) (string, error) {
	path, err := s.path(key)
	if err != nil {
		return "", err
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("read state %s: %w", key, err)
	}
	return string(payload), nil
}

func (s *FileStateStore) Set(_ context.Context, key, value string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+key+"-*")
	if err != nil {
		return fmt.Errorf("create temp state %s: %w", key, err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write state %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close state %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace state %s: %w", key, err)
	}
	return nil
}

func (s *FileStateStore) Remove(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state %s: %w", key, err)
	}
	return nil
}

// Watch reports keys changed by any writer, this process included, until ctx
// is done. onChange runs on the watcher goroutine.
func (s *FileStateStore) Watch(ctx context.Context, onChange func(key string)) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create state watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch state dir %s: %w", s.dir, err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				if key, ok := keyFromPath(event.Name); ok {
					onChange(key)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn().Err(err).Msg("state watcher")
			}
		}
	}()
	return nil
}

func (s *FileStateStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("%w: invalid state key %q", apperrors.ErrInvalidInput, key)
	}
	return filepath.Join(s.dir, key+stateFileExt), nil
}

func keyFromPath(path string) (string, bool) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, stateFileExt) {
		return "", false
	}
	return strings.TrimSuffix(name, stateFileExt), true
}
