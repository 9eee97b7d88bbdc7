package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	safeDir := filepath.Join(tmpDir, "frames")
	outside := filepath.Join(tmpDir, "outside")
	for _, d := range []string{safeDir, outside} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", d, err)
		}
	}
	if err := os.Symlink(outside, filepath.Join(safeDir, "link")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		name      string
		filePath  string
		wantError bool
	}{
		{"file in directory", filepath.Join(safeDir, "cam0.png"), false},
		{"nested file", filepath.Join(safeDir, "cams", "cam0.yaml"), false},
		{"directory itself", safeDir, false},
		{"parent traversal", filepath.Join(safeDir, "..", "outside", "x.png"), true},
		{"sibling directory", filepath.Join(outside, "x.png"), true},
		{"symlink escape", filepath.Join(safeDir, "link", "x.png"), true},
		{"symlink escape to missing file", filepath.Join(safeDir, "link", "new", "x.png"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.filePath, safeDir)
			if (err != nil) != tt.wantError {
				t.Fatalf("ValidatePathWithinDirectory(%q) error = %v, wantError %v", tt.filePath, err, tt.wantError)
			}
			if err != nil && !errors.Is(err, ErrPathEscape) {
				t.Errorf("error %v is not ErrPathEscape", err)
			}
		})
	}
}

func TestValidatePathWithinDirectory_MissingBase(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nope")
	if err := ValidatePathWithinDirectory(filepath.Join(base, "a"), base); err == nil {
		t.Fatal("expected error for missing base directory")
	}
}

func TestResolveWithin(t *testing.T) {
	dir := t.TempDir()

	got, err := ResolveWithin(dir, "cams/zed0.yaml")
	if err != nil {
		t.Fatalf("ResolveWithin: %v", err)
	}
	if want := filepath.Join(dir, "cams", "zed0.yaml"); got != want {
		t.Errorf("ResolveWithin = %q, want %q", got, want)
	}

	for _, p := range []string{"", "../secret.yaml", "/etc/passwd"} {
		if _, err := ResolveWithin(dir, p); err == nil {
			t.Errorf("ResolveWithin(%q) succeeded, want error", p)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"zed0_left":     "zed0_left",
		"/camera/front": "camera_front",
		"a  b//c":       "a_b_c",
		"..":            "unknown",
		"":              "unknown",
		"cam-1.v2":      "cam-1.v2",
		"__x__":         "x",
		"câmera":        "c_mera",
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
