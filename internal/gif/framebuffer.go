package gif

import (
	"fmt"
	"image"
	"time"
)

// FrameStatus tracks how much of a FrameBuffer has been produced.
type FrameStatus int

const (
	// FrameEmpty means the buffer holds no pixels.
	FrameEmpty FrameStatus = iota
	// FramePartial means decoding has started.
	FramePartial
	// FrameComplete means the frame is finished.
	FrameComplete
)

func (s FrameStatus) String() string {
	switch s {
	case FrameEmpty:
		return "Empty"
	case FramePartial:
		return "Partial"
	case FrameComplete:
		return "Complete"
	default:
		return fmt.Sprintf("FrameStatus(%d)", int(s))
	}
}

// FrameBuffer is a canvas-sized RGBA bitmap for one frame. Alpha is always 0
// or 255, so the pixels read the same premultiplied or not.
type FrameBuffer struct {
	width  int
	height int
	pix    []byte

	status   FrameStatus
	hasAlpha bool
	sawAlpha bool
	rect     image.Rectangle
	duration time.Duration
	disposal DisposalMethod
}

// Width returns the buffer width in pixels.
func (b *FrameBuffer) Width() int { return b.width }

// Height returns the buffer height in pixels.
func (b *FrameBuffer) Height() int { return b.height }

// Pix exposes the RGBA bytes, four per pixel, row-major.
func (b *FrameBuffer) Pix() []byte { return b.pix }

// Status returns the decode status.
func (b *FrameBuffer) Status() FrameStatus { return b.status }

// HasAlpha reports whether any pixel may be transparent.
func (b *FrameBuffer) HasAlpha() bool { return b.hasAlpha }

// OriginalFrameRect returns the rectangle the frame itself decoded into.
func (b *FrameBuffer) OriginalFrameRect() image.Rectangle { return b.rect }

// Duration returns the declared frame delay.
func (b *FrameBuffer) Duration() time.Duration { return b.duration }

// DisposalMethod returns the frame's disposal method.
func (b *FrameBuffer) DisposalMethod() DisposalMethod { return b.disposal }

// Image wraps the pixels as an *image.NRGBA without copying. It returns nil
// while the buffer holds no pixels.
func (b *FrameBuffer) Image() *image.NRGBA {
	if b.pix == nil {
		return nil
	}
	return &image.NRGBA{
		Pix:    b.pix,
		Stride: b.width * 4,
		Rect:   image.Rect(0, 0, b.width, b.height),
	}
}

// At returns the RGBA bytes at (x, y), or zeros when out of range.
func (b *FrameBuffer) At(x, y int) (r, g, bl, a byte) {
	if b.pix == nil || x < 0 || y < 0 || x >= b.width || y >= b.height {
		return 0, 0, 0, 0
	}
	i := (y*b.width + x) * 4
	return b.pix[i], b.pix[i+1], b.pix[i+2], b.pix[i+3]
}

// setSize allocates a zeroed (fully transparent) bitmap.
func (b *FrameBuffer) setSize(width, height int) {
	b.width, b.height = width, height
	b.pix = make([]byte, width*height*4)
	b.hasAlpha = true
}

// copyBitmapData takes over other's pixels and alpha state.
func (b *FrameBuffer) copyBitmapData(other *FrameBuffer) {
	b.width, b.height = other.width, other.height
	b.pix = make([]byte, len(other.pix))
	copy(b.pix, other.pix)
	b.hasAlpha = other.hasAlpha
}

// clearPixelData drops the pixels but keeps the metadata initFrame and
// eviction rely on.
func (b *FrameBuffer) clearPixelData() {
	b.pix = nil
	b.status = FrameEmpty
}

func (b *FrameBuffer) offset(x, y int) int { return (y*b.width + x) * 4 }

func (b *FrameBuffer) setRGBA(i int, r, g, bl, a byte) {
	b.pix[i] = r
	b.pix[i+1] = g
	b.pix[i+2] = bl
	b.pix[i+3] = a
}

// zeroRect clears rect, which must already lie inside the buffer.
func (b *FrameBuffer) zeroRect(rect image.Rectangle) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		clear(b.pix[b.offset(rect.Min.X, y):b.offset(rect.Max.X, y)])
	}
}

// copyRowNTimes replicates row yBegin over [yBegin+1, yEnd) for columns
// [xBegin, xEnd).
func (b *FrameBuffer) copyRowNTimes(xBegin, xEnd, yBegin, yEnd int) {
	src := b.pix[b.offset(xBegin, yBegin):b.offset(xEnd, yBegin)]
	for y := yBegin + 1; y < yEnd; y++ {
		copy(b.pix[b.offset(xBegin, y):], src)
	}
}
