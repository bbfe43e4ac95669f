// Package policies supplies the policy corpus that transcripts are checked against.
package policies

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/wolfman30/incident-response-ai/pkg/logging"
)

//go:embed default_policies.txt
var defaultCorpus string

// Default returns the embedded corpus.
func Default() string { return strings.TrimSpace(defaultCorpus) }

// Store holds the current corpus. Text is safe for concurrent use while a
// reload swaps the value underneath.
type Store struct {
	path   string
	logger *logging.Logger

	mu   sync.RWMutex
	text string

	debounce time.Duration
}

// NewStore loads the corpus from path. An empty path, or a file that cannot
// be read, leaves the embedded corpus in place.
func NewStore(path string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Store{
		path:     strings.TrimSpace(path),
		logger:   logger,
		text:     Default(),
		debounce: 100 * time.Millisecond,
	}
	if s.path == "" {
		logger.Info("using embedded policy corpus")
		return s
	}
	if err := s.Reload(); err != nil {
		logger.Warn("failed to load policy file, using embedded corpus", "path", s.path, "error", err)
	}
	return s
}

// Text returns the current corpus.
func (s *Store) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

// Reload re-reads the policy file. The current corpus is kept on error.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("policies: read %s: %w", s.path, err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return fmt.Errorf("policies: %s is empty", s.path)
	}
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
	s.logger.Info("policy corpus loaded", "path", s.path, "bytes", len(text))
	return nil
}

// Watch reloads the corpus whenever the policy file changes until ctx ends.
// The parent directory is watched so editors that replace the file by rename
// are picked up.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return errors.New("policies: no policy file to watch")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("policies: create watcher: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return fmt.Errorf("policies: watch %s: %w", dir, err)
	}
	go s.watchLoop(ctx, fsw)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer fsw.Close()

	target := filepath.Clean(s.path)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(s.debounce, func() {
				if err := s.Reload(); err != nil {
					s.logger.Warn("policy reload failed, keeping previous corpus", "path", s.path, "error", err)
				}
			})

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			s.logger.Error("policy watcher error", "error", err)
		}
	}
}
