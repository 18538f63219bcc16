package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestScannerList(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"b.png":          "bb",
		"A.JPG":          "a",
		"c.webp":         "ccc",
		"notes.txt":      "x",
		".hidden.png":    "x",
		"sub/one.jpeg":   "1",
		"sub/skip.gif":   "1",
		"sub/deep/x.png": "1",
	})

	s := NewScanner(root)
	listing, err := s.List("", SortByName, SortAsc)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	var names []string
	for _, it := range listing.Items {
		names = append(names, it.Name)
	}
	if got := strings.Join(names, ","); got != "sub,A.JPG,b.png,c.webp" {
		t.Errorf("items = %s", got)
	}

	sub := listing.Items[0]
	if !sub.IsDir || sub.ItemCount != 2 {
		t.Errorf("sub = %+v, want dir with 2 items", sub)
	}
	if listing.Items[1].MimeType != "image/jpeg" {
		t.Errorf("A.JPG mime = %q", listing.Items[1].MimeType)
	}
	if listing.Items[2].ThumbnailURL != "/api/thumbnail?path=b.png" {
		t.Errorf("ThumbnailURL = %q", listing.Items[2].ThumbnailURL)
	}
}

func TestScannerListSorting(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"small.png": "1", "large.png": "12345", "mid.png": "123"})

	listing, err := NewScanner(root).List("", SortBySize, SortDesc)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"large.png", "mid.png", "small.png"}
	for i, it := range listing.Items {
		if it.Name != want[i] {
			t.Errorf("item %d = %s, want %s", i, it.Name, want[i])
		}
	}
}

func TestScannerListNaturalOrder(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"img10.png": "x", "IMG2.png": "x", "img1.png": "x"})

	listing, err := NewScanner(root).List("", SortByName, SortAsc)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"img1.png", "IMG2.png", "img10.png"}
	for i, it := range listing.Items {
		if it.Name != want[i] {
			t.Errorf("item %d = %s, want %s", i, it.Name, want[i])
		}
	}
}

func TestScannerListNested(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a/b/img.png": "x"})

	listing, err := NewScanner(root).List("a/b", SortByName, SortAsc)
	if err != nil {
		t.Fatal(err)
	}
	if listing.Parent != "a" || listing.Name != "b" {
		t.Errorf("Parent = %q, Name = %q", listing.Parent, listing.Name)
	}
	if len(listing.Breadcrumb) != 3 || listing.Breadcrumb[2].Path != "a/b" {
		t.Errorf("Breadcrumb = %+v", listing.Breadcrumb)
	}
	if listing.Items[0].Path != "a/b/img.png" {
		t.Errorf("item path = %q", listing.Items[0].Path)
	}
}

func TestScannerListErrors(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"img.png": "x"})
	s := NewScanner(root)

	if _, err := s.List("missing", SortByName, SortAsc); KindOf(err) != KindIO {
		t.Errorf("missing dir: KindOf = %v, want io", KindOf(err))
	}
	if _, err := s.List("img.png", SortByName, SortAsc); KindOf(err) != KindInvalidInput {
		t.Errorf("file as dir: KindOf = %v, want invalid_input", KindOf(err))
	}
}

func TestScannerResolve(t *testing.T) {
	root := t.TempDir()
	s := NewScanner(root)

	tests := []struct {
		in   string
		want string
	}{
		{"a.png", filepath.Join(s.Root(), "a.png")},
		{"/sub/a.png", filepath.Join(s.Root(), "sub", "a.png")},
		{"../../etc/passwd", filepath.Join(s.Root(), "etc", "passwd")},
		{"sub/../../a.png", filepath.Join(s.Root(), "a.png")},
		{"", s.Root()},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := s.Resolve(tt.in)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
			if s.Relative(got) == ".." {
				t.Errorf("resolved path %q escapes root", got)
			}
		})
	}

	if rel := s.Relative(filepath.Join(s.Root(), "x", "y.png")); rel != "x/y.png" {
		t.Errorf("Relative() = %q", rel)
	}
}

func TestScannerWatch(t *testing.T) {
	root := t.TempDir()
	s := NewScanner(root)

	ctx, cancel := context.WithCancel(context.Background())
	changed := make(chan string, 16)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, func(path string) {
			select {
			case changed <- path:
			default:
			}
		})
	}()

	target := filepath.Join(s.Root(), "new.png")
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	// The watcher registers asynchronously; keep writing until it reports.
loop:
	for {
		select {
		case got := <-changed:
			if got != target {
				t.Errorf("onChange(%q), want %q", got, target)
			}
			break loop
		case <-tick.C:
			if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(s.Root(), "ignored.txt"), []byte("x"), 0o644); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("no change reported within 5s")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
