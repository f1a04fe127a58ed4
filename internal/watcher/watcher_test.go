package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	texts   []string
	removed bool
}

func (r *recorder) handle(text string, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	r.removed = removed
}

func (r *recorder) last() (string, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.texts) == 0 {
		return "", 0, r.removed
	}
	return r.texts[len(r.texts)-1], len(r.texts), r.removed
}

func TestNewValidatesPath(t *testing.T) {
	dir := t.TempDir()

	_, err := New(filepath.Join(dir, "missing.hbs"), time.Millisecond, func(string, bool) {})
	assert.Error(t, err)

	_, err = New(dir, time.Millisecond, func(string, bool) {})
	assert.Error(t, err)

	path := filepath.Join(dir, "t.hbs")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	_, err = New(path, time.Millisecond, nil)
	assert.Error(t, err)
}

func TestWatcherReportsSettledContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.hbs")
	require.NoError(t, os.WriteFile(path, []byte("{{a}}"), 0o644))

	rec := &recorder{}
	fw, err := New(path, 30*time.Millisecond, rec.handle)
	require.NoError(t, err)
	require.NoError(t, fw.Start(context.Background()))
	defer fw.Stop()

	require.NoError(t, os.WriteFile(path, []byte("{{b}}"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("{{b}} {{c}}"), 0o644))

	require.Eventually(t, func() bool {
		text, _, _ := rec.last()
		return text == "{{b}} {{c}}"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.hbs")
	require.NoError(t, os.WriteFile(path, []byte("{{a}}"), 0o644))

	rec := &recorder{}
	fw, err := New(path, 10*time.Millisecond, rec.handle)
	require.NoError(t, err)
	require.NoError(t, fw.Start(context.Background()))
	defer fw.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.hbs"), []byte("x"), 0o644))
	time.Sleep(100 * time.Millisecond)

	_, n, _ := rec.last()
	assert.Equal(t, 0, n)
}

func TestWatcherReportsRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.hbs")
	require.NoError(t, os.WriteFile(path, []byte("{{a}}"), 0o644))

	rec := &recorder{}
	fw, err := New(path, 10*time.Millisecond, rec.handle)
	require.NoError(t, err)
	require.NoError(t, fw.Start(context.Background()))
	defer fw.Stop()

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		_, _, removed := rec.last()
		return removed
	}, 3*time.Second, 10*time.Millisecond)
}
