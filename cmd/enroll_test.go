package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"alice.jpg", "bob.JPEG", "carol.png", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.jpg"), 0o700); err != nil {
		t.Fatal(err)
	}

	images, err := listImages(dir)
	if err != nil {
		t.Fatalf("listImages: %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("expected 3 images, got %v", images)
	}
	want := []string{"alice", "bob", "carol"}
	for i, img := range images {
		if got := identityFromPath(img); got != want[i] {
			t.Errorf("identityFromPath(%q) = %q, want %q", img, got, want[i])
		}
	}
}

func TestListImages_MissingDir(t *testing.T) {
	if _, err := listImages(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{2*time.Minute + 5*time.Second, "2m5s"},
		{3*time.Hour + 7*time.Minute, "3h7m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
