package vm

import "sync"

// VideoController holds a framebuffer window pulled out of the bus's Vram region on demand. It
// is read-only over the bus; rendering pixels from the framebuffer bytes is a host concern
// (1bpp/2bpp packing is a presentation detail, not part of this contract).
type VideoController struct {
	mut         sync.Mutex
	width       int
	height      int
	framebuffer []Byte
	vramBase    Word
}

// NewVideoController allocates a framebuffer of width*height bits, packed 8 per byte, rooted at
// vramBase in the bus's address space.
func NewVideoController(width, height int, vramBase Word) *VideoController {
	size := (width*height + 7) / 8

	return &VideoController{
		width:       width,
		height:      height,
		framebuffer: make([]Byte, size),
		vramBase:    vramBase,
	}
}

// Update copies len(vc.framebuffer) bytes from slice into the framebuffer.
func (vc *VideoController) Update(slice []Byte) {
	vc.mut.Lock()
	defer vc.mut.Unlock()

	copy(vc.framebuffer, slice)
}

// Refresh pulls the current VRAM window out of bus and copies it into the framebuffer.
func (vc *VideoController) Refresh(bus *Bus) {
	end := vc.vramBase + Word(len(vc.framebuffer))
	vc.Update(bus.View(vc.vramBase, end))
}

// Framebuffer returns a copy of the current framebuffer bytes.
func (vc *VideoController) Framebuffer() []Byte {
	vc.mut.Lock()
	defer vc.mut.Unlock()

	out := make([]Byte, len(vc.framebuffer))
	copy(out, vc.framebuffer)

	return out
}

// Dimensions returns the pixel width and height of the framebuffer.
func (vc *VideoController) Dimensions() (int, int) {
	return vc.width, vc.height
}
