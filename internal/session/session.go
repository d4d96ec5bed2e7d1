// Package session stores the phone identity and bearer credential the
// transport layer sends with every request. The on-disk file can be
// rewritten by a login in another terminal; long-lived commands watch it
// and pick the new credential up without restarting.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"telecopy/internal/logger"
)

// ErrNoSession means no session file exists; the user has to log in.
var ErrNoSession = errors.New("no active session, run 'telecopy login'")

type Session struct {
	Phone string `json:"phone_number"`
	Token string `json:"token"`
}

// Store keeps the current session in memory and implements
// oauth2.TokenSource for the transport client.
type Store struct {
	path string

	mu      sync.RWMutex
	current Session
	loaded  bool

	watcher *fsnotify.Watcher
	doneCh  chan struct{}
}

func Open(path string) (*Store, error) {
	s := &Store{path: path, doneCh: make(chan struct{})}
	if err := s.reload(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return s, nil
}

// Save writes a new session file and updates the in-memory copy.
func (s *Store) Save(sess Session) error {
	buf, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.WriteFile(s.path, buf, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	s.mu.Lock()
	s.current = sess
	s.loaded = true
	s.mu.Unlock()

	return nil
}

// Clear removes the session file; the CLI calls it when the service
// answers 401 so the next command forces a fresh login.
func (s *Store) Clear() error {
	s.forget()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}

	return nil
}

func (s *Store) Phone() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Phone
}

func (s *Store) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Token implements oauth2.TokenSource.
func (s *Store) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded || s.current.Token == "" {
		return nil, ErrNoSession
	}

	return &oauth2.Token{AccessToken: s.current.Token, TokenType: "Bearer"}, nil
}

// Watch reloads the session whenever the file changes on disk.
func (s *Store) Watch() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create session watcher: %w", err)
	}

	// Watch the directory: editors and logins replace the file rather
	// than writing it in place.
	if err := fw.Add(filepath.Dir(s.path)); err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to watch session dir: %w", err)
	}

	s.watcher = fw
	go s.run()

	logger.Log.Debug("session watcher started",
		zap.String("path", s.path))

	return nil
}

func (s *Store) Close() {
	close(s.doneCh)
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
}

func (s *Store) run() {
	for {
		select {
		case <-s.doneCh:
			return

		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}

			// A removed file means a logout elsewhere; the in-memory
			// credential must not outlive it.
			if ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
				s.forget()
				logger.Log.Info("session file removed, credential dropped")
				continue
			}

			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}

			if err := s.reload(); err != nil {
				logger.Log.Warn("failed to reload session",
					zap.Error(err))
				continue
			}

			logger.Log.Info("session reloaded",
				zap.String("phone", s.Phone()))

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Log.Error("session watcher error",
				zap.Error(err))
		}
	}
}

func (s *Store) forget() {
	s.mu.Lock()
	s.current = Session{}
	s.loaded = false
	s.mu.Unlock()
}

func (s *Store) reload() error {
	buf, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var sess Session
	if err := json.Unmarshal(buf, &sess); err != nil {
		return fmt.Errorf("failed to parse session file: %w", err)
	}

	s.mu.Lock()
	s.current = sess
	s.loaded = true
	s.mu.Unlock()

	return nil
}
