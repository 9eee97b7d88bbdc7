package fusion

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLogWriters_RoutesStreams(t *testing.T) {
	var ops, diag bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Diag: &diag})
	t.Cleanup(func() { SetLogWriters(LogWriters{}) })

	Opsf("camera %s dropped", "zed0")
	Diagf("frame %d", 7)
	Tracef("never written")

	if !strings.Contains(ops.String(), "[fusion] ") || !strings.Contains(ops.String(), "camera zed0 dropped") {
		t.Errorf("ops stream = %q", ops.String())
	}
	if !strings.Contains(diag.String(), "frame 7") {
		t.Errorf("diag stream = %q", diag.String())
	}
	if strings.Contains(ops.String()+diag.String(), "never written") {
		t.Error("trace output leaked into another stream")
	}
}

func TestSetLogWriters_NilDisables(t *testing.T) {
	SetLogWriters(LogWriters{})
	// Must not panic with every stream disabled.
	Opsf("x")
	Diagf("y")
	Tracef("z")
}
