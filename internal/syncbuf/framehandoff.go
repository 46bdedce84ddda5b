// Package syncbuf provides the concurrency primitives that hand frames and
// audio samples from the emulation goroutine to the presentation goroutine
// without either side blocking the other's real-time budget.
package syncbuf

import "sync"

// FrameHandoff passes completed framebuffers from the emulation goroutine
// to the presentation goroutine. The emulator always writes into its own
// back buffer and only swaps it into place once a frame completes; the
// presentation side reads whatever is currently front without waiting on
// emulation, so a slow renderer drops frames instead of stalling emulation.
type FrameHandoff struct {
	mu    sync.Mutex
	front []uint32
	back  []uint32
	ready bool
}

// NewFrameHandoff creates a handoff sized for one NES framebuffer.
func NewFrameHandoff(size int) *FrameHandoff {
	return &FrameHandoff{
		front: make([]uint32, size),
		back:  make([]uint32, size),
	}
}

// Back returns the buffer the emulator should render the next frame into.
func (f *FrameHandoff) Back() []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.back
}

// Publish swaps the just-rendered back buffer into front, making it visible
// to the next Front() call. Called once per completed NES frame.
func (f *FrameHandoff) Publish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.front, f.back = f.back, f.front
	f.ready = true
}

// Front returns the most recently published frame and whether a frame has
// ever been published. The presentation side owns the returned slice until
// its next call to Front; it must copy out anything it needs to keep.
func (f *FrameHandoff) Front() ([]uint32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.front, f.ready
}
