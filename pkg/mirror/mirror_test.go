package mirror_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/JaimeStill/folio/pkg/mirror"
	"github.com/JaimeStill/folio/pkg/storage"
)

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	ensureErr error
	uploadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Ensure(ctx context.Context) error { return f.ensureErr }

func (f *fakeStore) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]storage.Object, 0)
	for k, v := range f.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, storage.Object{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (f *fakeStore) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestPushUploadsAllFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.md"), "alpha")
	writeFile(t, filepath.Join(root, "nested", "b.json"), "{}")
	writeFile(t, filepath.Join(root, "c.md.tmp.123"), "partial")

	store := newFakeStore()
	m := mirror.New(store, root, "content_store", 2, slog.Default())

	if err := m.Push(context.Background()); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	got := store.keys()
	want := []string{"content_store/a.md", "content_store/nested/b.json"}
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keys[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestPullRestoresFiles(t *testing.T) {
	store := newFakeStore()
	store.objects["checkpoints/t1.json"] = []byte(`{"thread_id":"t1"}`)
	store.objects["other/skip.json"] = []byte(`{}`)

	root := t.TempDir()
	m := mirror.New(store, root, "checkpoints/", 4, slog.Default())

	if err := m.Pull(context.Background()); err != nil {
		t.Fatalf("Pull() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "t1.json"))
	if err != nil {
		t.Fatalf("read pulled file: %v", err)
	}
	if string(data) != `{"thread_id":"t1"}` {
		t.Errorf("pulled content = %s", data)
	}
	if _, err := os.Stat(filepath.Join(root, "skip.json")); !os.IsNotExist(err) {
		t.Error("object outside prefix should not be pulled")
	}
}

func TestPullDegradesWhenUnreachable(t *testing.T) {
	store := newFakeStore()
	store.ensureErr = errors.New("connection refused")

	root := t.TempDir()
	m := mirror.New(store, root, "content_store", 1, slog.Default())

	if err := m.Pull(context.Background()); err != nil {
		t.Fatalf("Pull() error = %v, want nil", err)
	}
	if m.Enabled() {
		t.Fatal("mirror should be disabled after unreachable pull")
	}

	writeFile(t, filepath.Join(root, "a.md"), "alpha")
	if err := m.Push(context.Background()); err != nil {
		t.Fatalf("Push() after degrade error = %v", err)
	}
	if len(store.keys()) != 0 {
		t.Error("degraded mirror should not upload")
	}
}

func TestPushFailureWrapsUnavailable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.md"), "alpha")

	store := newFakeStore()
	store.uploadErr = errors.New("503")
	m := mirror.New(store, root, "content_store", 1, slog.Default())

	err := m.Push(context.Background())
	if !errors.Is(err, mirror.ErrUnavailable) {
		t.Errorf("Push() error = %v, want ErrUnavailable", err)
	}
}

func TestNilStoreIsLocalOnly(t *testing.T) {
	m := mirror.New(nil, t.TempDir(), "content_store", 1, slog.Default())

	if m.Enabled() {
		t.Error("nil store mirror should not be enabled")
	}
	if err := m.Pull(context.Background()); err != nil {
		t.Errorf("Pull() error = %v", err)
	}
	if err := m.Push(context.Background()); err != nil {
		t.Errorf("Push() error = %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
