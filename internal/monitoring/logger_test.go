package monitoring

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/sensor.fusion/internal/fusion"
)

func TestSetup_Streams(t *testing.T) {
	defer Mute()

	var ops bytes.Buffer
	trace := filepath.Join(t.TempDir(), "trace.log")
	closeFn, err := Setup(Options{Ops: &ops, TracePath: trace})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	fusion.Opsf("camera %s skipped", "zed0")
	fusion.Diagf("diag hidden")
	fusion.Tracef("stage timing")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if !strings.Contains(ops.String(), "[fusion] ") || !strings.Contains(ops.String(), "camera zed0 skipped") {
		t.Errorf("ops output = %q", ops.String())
	}
	if strings.Contains(ops.String(), "diag hidden") {
		t.Error("diag stream written without Debug")
	}
	data, err := os.ReadFile(trace)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if !strings.Contains(string(data), "stage timing") {
		t.Errorf("trace output = %q", data)
	}
}

func TestSetup_Debug(t *testing.T) {
	defer Mute()

	var ops bytes.Buffer
	closeFn, err := Setup(Options{Ops: &ops, Debug: true})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer closeFn()

	fusion.Diagf("frame summary")
	if !strings.Contains(ops.String(), "frame summary") {
		t.Errorf("diag not routed to ops writer: %q", ops.String())
	}
}

func TestSetup_BadTracePath(t *testing.T) {
	defer Mute()
	if _, err := Setup(Options{TracePath: filepath.Join(t.TempDir(), "missing", "trace.log")}); err == nil {
		t.Fatal("expected error for unwritable trace path")
	}
}
