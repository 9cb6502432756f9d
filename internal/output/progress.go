package output

import (
	"io"
	"sync"

	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"
)

// ProgressBar renders run progress as a terminal bar. Feed it from
// ObserverOptions.OnUpdate.
type ProgressBar struct {
	mu       sync.Mutex
	progress *mpb.Progress
	bar      *mpb.Bar
	done     bool
}

// NewProgressBar draws a bar for total iterations on w.
func NewProgressBar(w io.Writer, name string, total int) *ProgressBar {
	if w == nil {
		w = io.Discard
	}
	p := mpb.New(mpb.WithOutput(w), mpb.WithWidth(48))
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DidentRight}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
		),
	)
	return &ProgressBar{progress: p, bar: bar}
}

// Update moves the bar to the completed count in stats.
func (b *ProgressBar) Update(stats RunStatistics) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	b.bar.SetCurrent(int64(stats.Completed))
	if stats.Final {
		b.finishLocked()
	}
}

// Stop finishes the bar and waits for the last render. A run that stopped
// short of its plan leaves the bar where it was.
func (b *ProgressBar) Stop() {
	b.mu.Lock()
	if !b.done {
		b.finishLocked()
	}
	b.mu.Unlock()
	b.progress.Wait()
}

// finishLocked releases the bar so Wait can return even when the run ended
// before reaching its total.
func (b *ProgressBar) finishLocked() {
	if !b.bar.Completed() {
		b.bar.Abort(false)
	}
	b.done = true
}
