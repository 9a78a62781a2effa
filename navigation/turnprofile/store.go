package turnprofile

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/loadlifter/aislenav/logging"
)

// Store loads a calibration file lazily on first use and can reload it when it changes.
type Store struct {
	path   string
	logger logging.Logger

	once    sync.Once
	mu      sync.RWMutex
	profile *Profile
}

// NewStore returns a store for path. Nothing is read until Profile is called.
func NewStore(path string, logger logging.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// NewStaticStore returns a store that always serves p.
func NewStaticStore(p *Profile, logger logging.Logger) *Store {
	s := &Store{logger: logger, profile: p}
	s.once.Do(func() {})
	return s
}

// Path returns the calibration file path.
func (s *Store) Path() string {
	return s.path
}

// Profile returns the current calibration, or nil when there is none. A file that cannot be
// parsed is logged and treated as absent.
func (s *Store) Profile() *Profile {
	s.once.Do(func() {
		if err := s.Reload(); err != nil {
			s.logger.Warnw("ignoring turn calibration", "path", s.path, "error", err)
		}
	})
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Reload reads the file again. On error the previous profile is kept.
func (s *Store) Reload() error {
	p, err := Load(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.profile = p
	s.mu.Unlock()
	s.logger.Debugw("turn calibration loaded", "path", s.path, "present", p != nil)
	return nil
}

// Watch reloads the profile whenever the file is written or replaced, until ctx is done.
// Bursts of events within settle are coalesced into one reload.
func (s *Store) Watch(ctx context.Context, settle time.Duration) error {
	if s.path == "" {
		return errors.New("no calibration file to watch")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			s.logger.Debugw("closing calibration watcher", "error", err)
		}
	}()
	// Editors usually replace files, so the directory is watched rather than the file.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return errors.Wrapf(err, "cannot watch %q", s.path)
	}

	target := filepath.Clean(s.path)
	debounced := debounce.New(settle)
	reload := func() {
		if err := s.Reload(); err != nil {
			s.logger.Warnw("turn calibration reload failed", "path", s.path, "error", err)
			return
		}
		s.logger.Infow("turn calibration reloaded", "path", s.path)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				debounced(reload)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warnw("calibration watcher error", "error", err)
		}
	}
}
