package files

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/driftwood/driftwood/internal/category"
	"github.com/driftwood/driftwood/internal/config"
	"github.com/driftwood/driftwood/internal/pathutil"
	"github.com/driftwood/driftwood/internal/testutil"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()

	root := t.TempDir()
	// TempDir may sit behind a symlink (macOS /tmp); keep the resolved
	// form so disk paths match what the guard returns.
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatalf("failed to resolve temp dir: %v", err)
	}

	cfg := config.Default().Storage
	cfg.Root = resolved
	svc := NewService(cfg, category.New(cfg), testutil.NopLogger())
	return svc, resolved
}

func TestListOrdersDirsFirstThenCaseInsensitive(t *testing.T) {
	svc, root := newTestService(t)
	ctx := context.Background()

	testutil.MkdirAll(t, root, "zeta")
	testutil.MkdirAll(t, root, "Alpha")
	testutil.WriteFile(t, root, "beta.txt", "b")
	testutil.WriteFile(t, root, "Aardvark.txt", "a")
	testutil.WriteFile(t, root, "upload.abc123xy.part", "partial")

	result, err := svc.List(ctx, "")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}

	var got []string
	for _, e := range result.Entries {
		got = append(got, e.Name)
	}
	want := []string{"Alpha", "zeta", "Aardvark.txt", "beta.txt"}
	if len(got) != len(want) {
		t.Fatalf("List() returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// Repeating on an unchanged directory yields the same order.
	again, err := svc.List(ctx, "")
	if err != nil {
		t.Fatalf("List() second call error: %v", err)
	}
	for i := range result.Entries {
		if again.Entries[i].Name != result.Entries[i].Name {
			t.Errorf("List() order not deterministic at %d: %q vs %q",
				i, again.Entries[i].Name, result.Entries[i].Name)
		}
	}
}

func TestListMissingAndFilePaths(t *testing.T) {
	svc, root := newTestService(t)
	ctx := context.Background()

	if _, err := svc.List(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("List(missing) error = %v, want ErrNotFound", err)
	}

	testutil.WriteFile(t, root, "file.txt", "x")
	if _, err := svc.List(ctx, "file.txt"); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("List(file) error = %v, want ErrNotDirectory", err)
	}

	if _, err := svc.List(ctx, "../outside"); !errors.Is(err, pathutil.ErrPathEscapesRoot) {
		t.Errorf("List(traversal) error = %v, want ErrPathEscapesRoot", err)
	}
}

func TestListBreadcrumbsAndParent(t *testing.T) {
	svc, root := newTestService(t)

	testutil.MkdirAll(t, root, "docs/reports")

	result, err := svc.List(context.Background(), "docs/reports")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}

	if result.Parent != "docs" {
		t.Errorf("Parent = %q, want %q", result.Parent, "docs")
	}

	wantCrumbs := []Breadcrumb{
		{Name: "Home", Path: ""},
		{Name: "docs", Path: "docs"},
		{Name: "reports", Path: "docs/reports"},
	}
	if len(result.Breadcrumbs) != len(wantCrumbs) {
		t.Fatalf("Breadcrumbs = %v, want %v", result.Breadcrumbs, wantCrumbs)
	}
	for i, want := range wantCrumbs {
		if result.Breadcrumbs[i] != want {
			t.Errorf("Breadcrumbs[%d] = %v, want %v", i, result.Breadcrumbs[i], want)
		}
	}
}

func TestSaveClassifiesAndRoundTrips(t *testing.T) {
	svc, root := newTestService(t)
	ctx := context.Background()

	content := []byte("portable network graphics")
	saved, err := svc.Save(ctx, UploadItem{Name: "photo.PNG", Reader: bytes.NewReader(content)})
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if saved.Category != "Images" {
		t.Errorf("Save() category = %q, want Images", saved.Category)
	}
	if saved.Path != "Images/photo.PNG" {
		t.Errorf("Save() path = %q, want Images/photo.PNG", saved.Path)
	}

	d, err := svc.Open(ctx, saved.Path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer d.File.Close()

	got, err := io.ReadAll(d.File)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("downloaded content = %q, want %q", got, content)
	}
	if d.Name != "photo.PNG" {
		t.Errorf("download name = %q, want photo.PNG", d.Name)
	}

	// No stray partials once the upload finalized.
	entries, err := os.ReadDir(filepath.Join(root, "Images"))
	if err != nil {
		t.Fatalf("read Images dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".part") {
			t.Errorf("stale partial left behind: %s", e.Name())
		}
	}
}

func TestSaveRejectsDisallowedExtension(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Save(context.Background(), UploadItem{Name: "clip.mkv", Reader: strings.NewReader("x")})
	if !errors.Is(err, ErrExtensionNotAllowed) {
		t.Errorf("Save(clip.mkv) error = %v, want ErrExtensionNotAllowed", err)
	}
}

func TestSaveSanitizesTraversalNames(t *testing.T) {
	svc, root := newTestService(t)

	saved, err := svc.Save(context.Background(), UploadItem{
		Name:   "../../escape.txt",
		Reader: strings.NewReader("contained"),
	})
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if saved.Name != "escape.txt" {
		t.Errorf("Save() name = %q, want escape.txt", saved.Name)
	}
	if _, err := os.Stat(filepath.Join(root, "Documents", "escape.txt")); err != nil {
		t.Errorf("sanitized file missing under Documents: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(root), "escape.txt")); err == nil {
		t.Error("file escaped the storage root")
	}
}

func TestSaveOverwritesExisting(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, content := range []string{"first", "second"} {
		if _, err := svc.Save(ctx, UploadItem{Name: "notes.txt", Reader: strings.NewReader(content)}); err != nil {
			t.Fatalf("Save() error: %v", err)
		}
	}

	d, err := svc.Open(ctx, "Documents/notes.txt")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer d.File.Close()

	got, _ := io.ReadAll(d.File)
	if string(got) != "second" {
		t.Errorf("content after overwrite = %q, want %q", got, "second")
	}
}

func TestDeleteFileAndRecursiveDirectory(t *testing.T) {
	svc, root := newTestService(t)
	ctx := context.Background()

	testutil.WriteFile(t, root, "docs/nested/deep.txt", "x")
	testutil.WriteFile(t, root, "docs/top.txt", "y")

	parent, err := svc.Delete(ctx, "docs/top.txt")
	if err != nil {
		t.Fatalf("Delete(file) error: %v", err)
	}
	if parent != "docs" {
		t.Errorf("Delete(file) parent = %q, want docs", parent)
	}

	parent, err = svc.Delete(ctx, "docs")
	if err != nil {
		t.Fatalf("Delete(dir) error: %v", err)
	}
	if parent != "" {
		t.Errorf("Delete(dir) parent = %q, want root", parent)
	}

	if _, err := os.Stat(filepath.Join(root, "docs")); !os.IsNotExist(err) {
		t.Error("directory still exists after recursive delete")
	}

	result, err := svc.List(ctx, "")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	for _, e := range result.Entries {
		if e.Name == "docs" {
			t.Error("parent listing still contains deleted directory")
		}
	}
}

func TestDeleteErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Delete(ctx, "missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Delete(ctx, ""); !errors.Is(err, ErrRootImmutable) {
		t.Errorf("Delete(root) error = %v, want ErrRootImmutable", err)
	}
	if _, err := svc.Delete(ctx, "../../etc"); !errors.Is(err, pathutil.ErrPathEscapesRoot) {
		t.Errorf("Delete(traversal) error = %v, want ErrPathEscapesRoot", err)
	}
}

func TestCreateFolderNonIdempotent(t *testing.T) {
	svc, root := newTestService(t)
	ctx := context.Background()

	if err := svc.CreateFolder(ctx, "", "projects"); err != nil {
		t.Fatalf("CreateFolder() error: %v", err)
	}

	marker := testutil.WriteFile(t, root, "projects/keep.txt", "keep")

	err := svc.CreateFolder(ctx, "", "projects")
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("CreateFolder(second) error = %v, want ErrAlreadyExists", err)
	}

	// The first call's state is untouched by the failed second call.
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("existing folder content disturbed: %v", err)
	}
}

func TestCreateFolderErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.CreateFolder(ctx, "missing", "sub"); !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateFolder(missing parent) error = %v, want ErrNotFound", err)
	}
	if err := svc.CreateFolder(ctx, "", "><|"); !errors.Is(err, pathutil.ErrEmptyName) {
		t.Errorf("CreateFolder(unsafe name) error = %v, want ErrEmptyName", err)
	}
	if err := svc.CreateFolder(ctx, "../..", "x"); !errors.Is(err, pathutil.ErrPathEscapesRoot) {
		t.Errorf("CreateFolder(traversal) error = %v, want ErrPathEscapesRoot", err)
	}
}

func TestOpenErrors(t *testing.T) {
	svc, root := newTestService(t)
	ctx := context.Background()

	testutil.MkdirAll(t, root, "folder")

	if _, err := svc.Open(ctx, "folder"); !errors.Is(err, ErrIsDirectory) {
		t.Errorf("Open(dir) error = %v, want ErrIsDirectory", err)
	}
	if _, err := svc.Open(ctx, "missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Open(ctx, "../secret"); !errors.Is(err, pathutil.ErrPathEscapesRoot) {
		t.Errorf("Open(traversal) error = %v, want ErrPathEscapesRoot", err)
	}
}

func TestStats(t *testing.T) {
	svc, root := newTestService(t)

	testutil.WriteFile(t, root, "Images/a.png", "1234")
	testutil.WriteFile(t, root, "Images/b.jpg", "12")
	testutil.WriteFile(t, root, "Documents/c.txt", "123")
	testutil.WriteFile(t, root, "loose.txt", "1")
	testutil.WriteFile(t, root, "Images/stale.zz11aa22.part", "ignored")

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}

	if stats.TotalFiles != 4 {
		t.Errorf("TotalFiles = %d, want 4", stats.TotalFiles)
	}
	if stats.TotalBytes != 10 {
		t.Errorf("TotalBytes = %d, want 10", stats.TotalBytes)
	}

	byLabel := make(map[string]CategoryCount)
	for _, c := range stats.Categories {
		byLabel[c.Label] = c
	}
	if got := byLabel["Images"]; got.Files != 2 || got.Bytes != 6 {
		t.Errorf("Images count = %+v, want 2 files / 6 bytes", got)
	}
	if got := byLabel["Documents"]; got.Files != 1 || got.Bytes != 3 {
		t.Errorf("Documents count = %+v, want 1 file / 3 bytes", got)
	}
}

func TestSweepPartials(t *testing.T) {
	svc, root := newTestService(t)
	ctx := context.Background()

	stale := testutil.WriteFile(t, root, "Images/old.11112222.part", "stale")
	fresh := testutil.WriteFile(t, root, "Images/new.33334444.part", "fresh")
	keep := testutil.WriteFile(t, root, "Images/real.png", "keep")

	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("failed to age partial: %v", err)
	}

	removed, err := svc.SweepPartials(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("SweepPartials() error: %v", err)
	}
	if removed != 1 {
		t.Errorf("SweepPartials() removed = %d, want 1", removed)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale partial still exists")
	}
	for _, path := range []string{fresh, keep} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s removed by sweep: %v", filepath.Base(path), err)
		}
	}
}
