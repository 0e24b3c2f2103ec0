package cmd

import (
	"fmt"
	"io"
	"sync"
)

// progressReporter prints phase banners and step counters to the
// command's error stream. Step is called concurrently by the pyramid
// builder, so updates are serialized.
type progressReporter struct {
	w io.Writer

	mu    sync.Mutex
	phase string
}

func newProgressReporter(w io.Writer) *progressReporter {
	return &progressReporter{w: w}
}

func (p *progressReporter) Phase(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase != "" {
		fmt.Fprintln(p.w)
	}
	p.phase = name
	fmt.Fprintf(p.w, "%s\n", name)
}

func (p *progressReporter) Step(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\r  %d/%d", done, total)
	if done == total {
		fmt.Fprintln(p.w)
		p.phase = ""
	}
}
