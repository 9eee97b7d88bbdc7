package testutil

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

func TestGetAndDecodeJSON(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"path":"` + r.URL.Path + `"}`))
	})
	rec := Get(t, h, "/health")
	AssertStatusCode(t, rec.Code, http.StatusOK)

	var body map[string]string
	DecodeJSON(t, rec, &body)
	if body["path"] != "/health" {
		t.Errorf("path = %q, want /health", body["path"])
	}
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := WriteFile(t, dir, "cams/zed0.yaml", []byte("width: 1"))
	if p != filepath.Join(dir, "cams", "zed0.yaml") {
		t.Errorf("path = %q", p)
	}
	got, err := os.ReadFile(p)
	if err != nil || string(got) != "width: 1" {
		t.Errorf("ReadFile = %q, %v", got, err)
	}
}
