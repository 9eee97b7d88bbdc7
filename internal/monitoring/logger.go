// Package monitoring configures the process-wide log streams.
package monitoring

import (
	"io"
	"os"

	"github.com/banshee-data/sensor.fusion/internal/fusion"
	"github.com/banshee-data/sensor.fusion/internal/fusion/pipeline"
)

// Options selects where each stream goes.
type Options struct {
	// Ops receives actionable warnings and errors. Nil means stderr.
	Ops io.Writer
	// Debug sends per-frame diagnostics to the ops writer.
	Debug bool
	// TracePath, when set, appends per-stage trace output to that file.
	TracePath string
}

// Setup routes the fusion and pipeline streams according to opts. The
// returned function closes the trace file, if any.
func Setup(opts Options) (func() error, error) {
	w := fusion.LogWriters{Ops: opts.Ops}
	if w.Ops == nil {
		w.Ops = os.Stderr
	}
	if opts.Debug {
		w.Diag = w.Ops
	}
	closeFn := func() error { return nil }
	if opts.TracePath != "" {
		f, err := os.OpenFile(opts.TracePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		w.Trace = f
		closeFn = f.Close
	}
	fusion.SetLogWriters(w)
	pipeline.SetLogWriters(w.Ops, w.Diag, w.Trace)
	return closeFn, nil
}

// Mute disables every stream.
func Mute() {
	fusion.SetLogWriters(fusion.LogWriters{})
	pipeline.SetLogWriters(nil, nil, nil)
}
