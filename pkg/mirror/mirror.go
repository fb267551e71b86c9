// Package mirror keeps a local directory and a remote blob prefix in sync.
// The local directory is authoritative; the remote copy is a full replica
// that is pulled once when a store opens and pushed in full after writes.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/folio/pkg/fileutil"
	"github.com/JaimeStill/folio/pkg/storage"
)

// ErrUnavailable indicates the remote replica could not be reached.
var ErrUnavailable = errors.New("replica unavailable")

// Mirror synchronizes a local root directory with a remote key prefix.
type Mirror struct {
	store       storage.System
	root        string
	prefix      string
	concurrency int
	logger      *slog.Logger

	mu       sync.Mutex
	degraded bool
	pushMu   sync.Mutex
}

// New creates a Mirror between root and prefix. A nil store produces a
// local-only mirror whose Pull and Push are no-ops.
func New(store storage.System, root, prefix string, concurrency int, logger *slog.Logger) *Mirror {
	if concurrency < 1 {
		concurrency = 1
	}
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	return &Mirror{
		store:       store,
		root:        root,
		prefix:      prefix,
		concurrency: concurrency,
		logger:      logger.With("system", "mirror", "prefix", prefix),
	}
}

// Enabled reports whether writes are replicated remotely.
func (m *Mirror) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store != nil && !m.degraded
}

// Pull downloads every object under the prefix into the local root,
// overwriting local files with the same relative path. If the replica is
// unreachable the mirror degrades to local-only for the rest of its life
// and Pull returns nil after logging a warning.
func (m *Mirror) Pull(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}

	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return fmt.Errorf("create mirror root: %w", err)
	}

	if err := m.store.Ensure(ctx); err != nil {
		m.degrade(err)
		return nil
	}

	objects, err := m.store.List(ctx, m.prefix)
	if err != nil {
		m.degrade(err)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for _, obj := range objects {
		rel := strings.TrimPrefix(obj.Key, m.prefix)
		if rel == "" || strings.HasSuffix(rel, "/") {
			continue
		}
		g.Go(func() error {
			return m.download(gctx, obj.Key, rel)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("pull %s: %w", m.prefix, err)
	}

	m.logger.Info("replica pulled", "objects", len(objects))
	return nil
}

// Push uploads every file under the local root to the prefix. Temporary
// files left by atomic writes are skipped. Concurrent pushes are serialized.
func (m *Mirror) Push(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}

	m.pushMu.Lock()
	defer m.pushMu.Unlock()

	files, err := m.localFiles()
	if err != nil {
		return fmt.Errorf("scan mirror root: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for _, rel := range files {
		g.Go(func() error {
			return m.upload(gctx, rel)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	m.logger.Debug("replica pushed", "files", len(files))
	return nil
}

func (m *Mirror) degrade(err error) {
	m.mu.Lock()
	m.degraded = true
	m.mu.Unlock()

	m.logger.Warn("replica unreachable, continuing local-only", "error", err)
}

func (m *Mirror) localFiles() ([]string, error) {
	files := make([]string, 0)

	err := filepath.WalkDir(m.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || fileutil.IsTemp(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(m.root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})

	return files, err
}

func (m *Mirror) upload(ctx context.Context, rel string) error {
	f, err := os.Open(filepath.Join(m.root, filepath.FromSlash(rel)))
	if err != nil {
		return err
	}
	defer f.Close()

	return m.store.Upload(ctx, m.prefix+rel, f, contentType(rel))
}

func (m *Mirror) download(ctx context.Context, key, rel string) error {
	target := filepath.Join(m.root, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, filepath.Clean(m.root)+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", storage.ErrInvalidKey, key)
	}

	body, err := m.store.Download(ctx, key)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	f, err := os.Create(target)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func contentType(rel string) string {
	switch path.Ext(rel) {
	case ".md":
		return "text/markdown"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
