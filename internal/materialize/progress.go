package materialize

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// TerminalWriter returns f when it is a terminal and nil otherwise, for use
// with WithProgress.
func TerminalWriter(f *os.File) io.Writer {
	if f == nil {
		return nil
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return f
	}
	return nil
}

// progress is a shared byte bar across concurrent downloads. A nil
// *progress is valid and renders nothing.
type progress struct {
	bar *progressbar.ProgressBar
}

func newProgress(w io.Writer, total int64, files int) *progress {
	if w == nil {
		return nil
	}
	if total <= 0 {
		total = -1
	}
	noun := "wheels"
	if files == 1 {
		noun = "wheel"
	}
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(fmt.Sprintf("[charmcraftcache] Downloading %d %s", files, noun)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	return &progress{bar: bar}
}

// track returns a writer that advances the bar and can undo its own
// contribution when an attempt is abandoned.
func (p *progress) track() *counter {
	if p == nil {
		return &counter{}
	}
	return &counter{bar: p.bar}
}

func (p *progress) finish() {
	if p == nil {
		return
	}
	_ = p.bar.Finish()
}

type counter struct {
	bar *progressbar.ProgressBar
	n   int64
}

func (c *counter) Write(b []byte) (int, error) {
	c.n += int64(len(b))
	if c.bar != nil {
		_ = c.bar.Add(len(b))
	}
	return len(b), nil
}

func (c *counter) rollback() {
	if c.bar != nil && c.n > 0 {
		_ = c.bar.Add64(-c.n)
	}
	c.n = 0
}
