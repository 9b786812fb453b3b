// Package streams carries the stdin/stdout/stderr triple a command writes to,
// so commands can be run against buffers in tests. Modelled on the IOStreams
// of k8s.io/cli-runtime/pkg/genericclioptions.
package streams

import (
	"bytes"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// IO is the set of streams a command reads from and writes to. Logs go to
// ErrOut when Out carries machine-readable output.
type IO struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

// NewStdIO returns the process streams
func NewStdIO() IO {
	return IO{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

// NewTestIO returns an IO backed by buffers, and the buffers
func NewTestIO() (IO, *bytes.Buffer, *bytes.Buffer, *bytes.Buffer) {
	in, out, errOut := &bytes.Buffer{}, &bytes.Buffer{}, &bytes.Buffer{}
	return IO{In: in, Out: out, ErrOut: errOut}, in, out, errOut
}

// IsTerminal reports whether w is a file attached to a terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
