package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/videgen/internal/apperr"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(t.TempDir(), "/temp")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	return s
}

func TestAllocateProjectConcurrentIDsAreUnique(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 64
	var (
		mu  sync.Mutex
		ids = make(map[string]bool, n)
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			id, err := s.AllocateProject(gctx)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if ids[id] {
				t.Errorf("duplicate project id %q", id)
			}
			ids[id] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("AllocateProject: %v", err)
	}
	if len(ids) != n {
		t.Fatalf("ids: want=%d got=%d", n, len(ids))
	}
	for id := range ids {
		if st, err := os.Stat(filepath.Join(s.Root(), id)); err != nil || !st.IsDir() {
			t.Fatalf("project dir for %q missing: %v", id, err)
		}
	}
}

func TestAllocateProjectFailsWhenRootUnwritable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	root := t.TempDir()
	s, err := NewLocalStore(root, "")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	if err := os.Chmod(root, 0o500); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(root, 0o755) })

	_, err = s.AllocateProject(context.Background())
	if !apperr.Is(err, apperr.KindStorage) {
		t.Fatalf("AllocateProject: want storage error, got=%v", err)
	}
}

func TestSaveCreatesMissingProjectDirectory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	loc, err := s.Save(ctx, "project-never-allocated", "image-1.jpg", []byte("jpeg"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if loc != "/temp/project-never-allocated/image-1.jpg" {
		t.Fatalf("locator: want=%q got=%q", "/temp/project-never-allocated/image-1.jpg", loc)
	}
	data, err := os.ReadFile(filepath.Join(s.Root(), "project-never-allocated", "image-1.jpg"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "jpeg" {
		t.Fatalf("content: want=%q got=%q", "jpeg", data)
	}
}

func TestSaveLastWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.AllocateProject(ctx)
	if err != nil {
		t.Fatalf("AllocateProject: %v", err)
	}

	for _, body := range []string{"first", "second version"} {
		if _, err := s.Save(ctx, id, "audio.mp3", []byte(body)); err != nil {
			t.Fatalf("Save(%q): %v", body, err)
		}
	}

	rc, err := s.Open(ctx, id, "audio.mp3")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "second version" {
		t.Fatalf("content: want=%q got=%q", "second version", got)
	}

	entries, err := os.ReadDir(filepath.Join(s.Root(), id))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries: want=1 got=%d (temp files left behind?)", len(entries))
	}
}

func TestEnsureProjectDirectoryIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		if err := s.EnsureProjectDirectory(context.Background(), "project-1"); err != nil {
			t.Fatalf("EnsureProjectDirectory #%d: %v", i, err)
		}
	}
}

func TestRejectsEscapingIdentifiers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"", "..", "../etc", "a/b", ".hidden", strings.Repeat("a", 200)} {
		if _, err := s.Save(ctx, id, "x.txt", nil); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("Save(id=%q): want validation error, got=%v", id, err)
		}
	}
	for _, name := range []string{"", "..", "a/b", `a\b`} {
		if _, err := s.Save(ctx, "project-1", name, nil); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("Save(filename=%q): want validation error, got=%v", name, err)
		}
	}
}

func TestResolveAndProjectOf(t *testing.T) {
	s := newTestStore(t)

	path, ok := s.Resolve("/temp/project-9/audio.wav")
	if !ok {
		t.Fatalf("Resolve: expected ok")
	}
	if want := filepath.Join(s.Root(), "project-9", "audio.wav"); path != want {
		t.Fatalf("Resolve: want=%q got=%q", want, path)
	}
	if id, ok := s.ProjectOf("/temp/project-9/audio.wav"); !ok || id != "project-9" {
		t.Fatalf("ProjectOf: want=project-9 got=%q ok=%v", id, ok)
	}

	for _, loc := range []string{
		"https://images.unsplash.com/photo.jpg",
		"/temp/../secret/file",
		"/other/project-9/audio.wav",
		"/temp/project-9",
		"/temp/project-9/a/b",
	} {
		if _, ok := s.Resolve(loc); ok {
			t.Fatalf("Resolve(%q): expected not ok", loc)
		}
	}
}
