package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"comicloader/internal/archive/archivetest"
	"comicloader/internal/core/logger"
	"comicloader/internal/core/types"
	"comicloader/internal/loader"
	"comicloader/internal/source"

	"github.com/google/go-cmp/cmp"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	base := t.TempDir()
	cfg := types.DefaultConfig()
	cfg.Cache.ThumbnailDir = filepath.Join(base, "thumbnails")
	cfg.Cache.PageDir = filepath.Join(base, "pages")
	cfg.Cache.SpoolDir = filepath.Join(base, "spool")
	cfg.Library.Database = filepath.Join(base, "library.db")

	a, err := New(context.Background(), &cfg, WithLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := a.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return a
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestCoverAndPages(t *testing.T) {
	a := newTestApp(t)
	ctx := testContext(t)
	path := archivetest.WriteZip(t, t.TempDir(), "comic.cbz", archivetest.Pages(t, "1.png", "2.png", "3.png"))

	entry, err := a.Entry(ctx, path)
	if err != nil {
		t.Fatalf("Entry() error = %v", err)
	}
	cover, err := a.Cover(ctx, entry)
	if err != nil {
		t.Fatalf("Cover() error = %v", err)
	}
	if want := entry.Hashkey + ".png"; filepath.Base(cover) != want {
		t.Errorf("cover path = %s, want file %s", cover, want)
	}
	if _, err := os.Stat(cover); err != nil {
		t.Errorf("cover not on disk: %v", err)
	}

	var (
		mu  sync.Mutex
		got []int
	)
	f, err := a.Pages(ctx, entry, 1, 2, func(p loader.Progress) {
		mu.Lock()
		got = append(got, p.Key.Slot.Page())
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Pages() error = %v", err)
	}
	if f.Pages != 3 {
		t.Errorf("Finished.Pages = %d, want 3", f.Pages)
	}
	mu.Lock()
	slices.Sort(got)
	if diff := cmp.Diff([]int{1, 2}, got); diff != "" {
		t.Errorf("delivered pages mismatch (-want +got):\n%s", diff)
	}
	mu.Unlock()

	again, err := a.Entry(ctx, path)
	if err != nil {
		t.Fatalf("Entry() error = %v", err)
	}
	if again.PageCount() != 3 || again.CurrentPage != 1 {
		t.Errorf("restored entry: pages=%d current=%d, want 3 and 1", again.PageCount(), again.CurrentPage)
	}
}

func TestEntryErrors(t *testing.T) {
	a := newTestApp(t)
	ctx := testContext(t)

	if _, err := a.Entry(ctx, filepath.Join(t.TempDir(), "missing.cbz")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Entry(missing) error = %v, want ErrNotExist", err)
	}
	if _, err := a.Entry(ctx, "ftp://host/comic.cbz"); !errors.Is(err, source.ErrUnsupportedScheme) {
		t.Errorf("Entry(ftp) error = %v, want ErrUnsupportedScheme", err)
	}

	dir, err := a.Entry(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Entry(dir) error = %v", err)
	}
	if !dir.IsDir {
		t.Error("a directory resolved to an archive entry")
	}
}

func TestWarmLibrary(t *testing.T) {
	a := newTestApp(t)
	ctx := testContext(t)

	root := t.TempDir()
	archivetest.WriteZip(t, root, "a.cbz", archivetest.Pages(t, "1.png"))
	if err := os.WriteFile(filepath.Join(root, "broken.cbr"), []byte("not a rar"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	archivetest.WriteZip(t, filepath.Join(root, "sub"), "b.cbz", archivetest.Pages(t, "1.png", "2.png"))

	var (
		mu     sync.Mutex
		queued []string
	)
	result, err := a.Warm(ctx, root, func(e *types.Entry) {
		mu.Lock()
		queued = append(queued, e.Identity)
		mu.Unlock()
	}, nil)
	if err != nil {
		t.Fatalf("Warm() error = %v", err)
	}

	wantQueued := []string{
		filepath.Join(root, "a.cbz"),
		filepath.Join(root, "broken.cbr"),
		filepath.Join(root, "sub", "b.cbz"),
		filepath.Join(root, "sub"),
		root,
	}
	if diff := cmp.Diff(wantQueued, queued); diff != "" {
		t.Errorf("queued entries mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(WarmResult{Requested: 5, Succeeded: 4, Failed: 1}, result); diff != "" {
		t.Errorf("warm result mismatch (-want +got):\n%s", diff)
	}

	stats, err := a.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Covers != 4 || stats.Pages != 0 || stats.Comics != 2 {
		t.Errorf("stats = %+v, want 4 covers, 0 pages, 2 comics", stats)
	}
}

func TestPruneEvictsVanishedComics(t *testing.T) {
	a := newTestApp(t)
	ctx := testContext(t)

	dir := t.TempDir()
	kept := archivetest.WriteZip(t, dir, "kept.cbz", archivetest.Pages(t, "1.png"))
	gone := archivetest.WriteZip(t, dir, "gone.cbz", archivetest.Pages(t, "1.png", "2.png"))
	for _, path := range []string{kept, gone} {
		entry, err := a.Entry(ctx, path)
		if err != nil {
			t.Fatalf("Entry() error = %v", err)
		}
		if _, err := a.Pages(ctx, entry, 0, 2, func(loader.Progress) {}); err != nil {
			t.Fatalf("Pages(%s) error = %v", path, err)
		}
	}
	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}

	pruned, err := a.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if diff := cmp.Diff([]string{gone}, pruned); diff != "" {
		t.Errorf("pruned mismatch (-want +got):\n%s", diff)
	}

	comics, err := a.Comics(ctx)
	if err != nil {
		t.Fatalf("Comics() error = %v", err)
	}
	if len(comics) != 1 || comics[0].Identity != kept {
		t.Errorf("comics after prune = %+v, want only %s", comics, kept)
	}
	stats, err := a.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Pages != 1 {
		t.Errorf("pages left = %d, want 1", stats.Pages)
	}
}

func TestPagesTrimsCacheToBudget(t *testing.T) {
	a := newTestApp(t)
	ctx := testContext(t)
	dir := t.TempDir()

	first := archivetest.WriteZip(t, dir, "first.cbz", archivetest.Pages(t, "1.png", "2.png"))
	second := archivetest.WriteZip(t, dir, "second.cbz", archivetest.Pages(t, "1.png", "2.png"))

	entry, err := a.Entry(ctx, first)
	if err != nil {
		t.Fatalf("Entry() error = %v", err)
	}
	if _, err := a.Pages(ctx, entry, 0, 2, func(loader.Progress) {}); err != nil {
		t.Fatalf("Pages() error = %v", err)
	}

	// Any budget below two page sets drops the older comic but never the
	// one just read.
	a.cfg.Cache.MaxPageSize = 1
	entry, err = a.Entry(ctx, second)
	if err != nil {
		t.Fatalf("Entry() error = %v", err)
	}
	if _, err := a.Pages(ctx, entry, 0, 2, func(loader.Progress) {}); err != nil {
		t.Fatalf("Pages() error = %v", err)
	}

	stats, err := a.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Pages != 2 {
		t.Errorf("pages left = %d, want the 2 of the last comic", stats.Pages)
	}
	if _, err := os.Stat(a.store.PathFor(types.PageKey(entry.Hashkey, 0))); err != nil {
		t.Errorf("pages of the current comic were trimmed: %v", err)
	}
}
