package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/logger"
)

// credentialEntry is one [[credentials]] block in the TOML file.
type credentialEntry struct {
	Platform string `toml:"platform"`
	Tier     string `toml:"tier"`
	Secret   string `toml:"secret"`
	Status   string `toml:"status"`
	Label    string `toml:"label"`
}

// credentialsDocument is the TOML file shape.
type credentialsDocument struct {
	Credentials []credentialEntry `toml:"credentials"`
}

// LoadCredentials reads a credential pool from a TOML file. A missing
// file yields an empty pool; a malformed entry fails the whole load so
// a typo never silently drops a credential.
func LoadCredentials(path string) ([]domain.Credential, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	var doc credentialsDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	creds := make([]domain.Credential, 0, len(doc.Credentials))
	for i, entry := range doc.Credentials {
		if entry.Platform == "" {
			return nil, fmt.Errorf("credential %d: platform is required", i+1)
		}
		if entry.Secret == "" {
			return nil, fmt.Errorf("credential %d (%s): secret is required", i+1, entry.Platform)
		}
		tier, err := domain.ParseTier(entry.Tier)
		if err != nil {
			return nil, fmt.Errorf("credential %d (%s): %w", i+1, entry.Platform, err)
		}
		status := domain.CredentialStatus(entry.Status)
		if status == "" {
			status = domain.CredentialActive
		}
		creds = append(creds, domain.Credential{
			ID:        uuid.NewString(),
			Platform:  entry.Platform,
			Tier:      tier,
			Secret:    entry.Secret,
			Status:    status,
			Label:     entry.Label,
			CreatedAt: time.Now().UTC(),
		})
	}
	return creds, nil
}

// CredentialsWatcher reloads the credential file whenever it changes on
// disk, so operators can rotate credentials without restarting the
// engine. Reload events are debounced to survive editors that write in
// several bursts.
type CredentialsWatcher struct {
	path    string
	reload  func([]domain.Credential)
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	running bool
	pending time.Time
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewCredentialsWatcher creates a watcher that calls reload with the
// freshly parsed pool after each change to path.
func NewCredentialsWatcher(path string, reload func([]domain.Credential)) (*CredentialsWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	return &CredentialsWatcher{
		path:    path,
		reload:  reload,
		watcher: watcher,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the watch loop runs in a
// goroutine until Stop is called or the context is cancelled.
func (w *CredentialsWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil // Already running
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.path); err != nil {
		// The file may not exist yet. Watching the file's directory
		// catches its later creation.
		logger.Debug("credentials watcher: watching %s directly failed: %v", w.path, err)
		if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
			return fmt.Errorf("watching credentials file: %w", err)
		}
	}

	go w.run(ctx)
	return nil
}

// Stop shuts the watcher down and waits for the watch loop to exit.
func (w *CredentialsWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logger.Warn("credentials watcher: close: %v", err)
	}
}

// run is the watch loop.
func (w *CredentialsWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	debounce := time.NewTicker(100 * time.Millisecond)
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("credentials watcher: %v", err)

		case <-debounce.C:
			w.maybeReload()
		}
	}
}

// maybeReload performs the reload once a pending change has settled.
func (w *CredentialsWatcher) maybeReload() {
	w.mu.Lock()
	pending := w.pending
	w.mu.Unlock()
	if pending.IsZero() || time.Since(pending) < 200*time.Millisecond {
		return
	}

	creds, err := LoadCredentials(w.path)
	if err != nil {
		// Keep serving the previous pool rather than replacing it with
		// a half-written file.
		logger.Warn("credentials watcher: reload: %v", err)
		w.mu.Lock()
		w.pending = time.Time{}
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.pending = time.Time{}
	w.mu.Unlock()

	w.reload(creds)
	logger.Info("Credential pool reloaded: %d credentials from %s", len(creds), w.path)
}
