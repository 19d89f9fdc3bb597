package gif

import (
	"image"
	"time"
)

// NotFound is returned by RequiredPreviousFrameIndex when a frame starts from
// an empty canvas.
const NotFound = -1

// Compositor owns the frame buffers of a decode session and implements Client.
type Compositor struct {
	width         int
	height        int
	sizeAvailable bool
	frames        []*FrameBuffer
	streamDone    bool
}

// NewCompositor constructs a compositor with no canvas.
func NewCompositor() *Compositor {
	return &Compositor{}
}

// SetSize declares the canvas size, rejecting canvases over maxCanvasPixels.
func (c *Compositor) SetSize(width, height int) bool {
	if width < 0 || height < 0 || int64(width)*int64(height) > maxCanvasPixels {
		return false
	}
	c.width, c.height = width, height
	c.sizeAvailable = true
	return true
}

// SizeAvailable reports whether SetSize has succeeded.
func (c *Compositor) SizeAvailable() bool { return c.sizeAvailable }

// Size returns the canvas size.
func (c *Compositor) Size() (int, int) { return c.width, c.height }

// StreamComplete records that the trailer was reached.
func (c *Compositor) StreamComplete() { c.streamDone = true }

// StreamDone reports whether StreamComplete has been called.
func (c *Compositor) StreamDone() bool { return c.streamDone }

// EnsureFrames grows the buffer cache to n entries.
func (c *Compositor) EnsureFrames(n int) {
	for len(c.frames) < n {
		c.frames = append(c.frames, &FrameBuffer{})
	}
}

// Frame returns buffer i, or nil when i is outside the cache.
func (c *Compositor) Frame(i int) *FrameBuffer {
	if i < 0 || i >= len(c.frames) {
		return nil
	}
	return c.frames[i]
}

func (c *Compositor) frame(i int) *FrameBuffer {
	c.EnsureFrames(i + 1)
	return c.frames[i]
}

func (c *Compositor) canvas() image.Rectangle {
	return image.Rect(0, 0, c.width, c.height)
}

// effectivePredecessor walks back from frame i-1 over frames disposed with
// restore-to-previous, which leave no trace on later frames.
func (c *Compositor) effectivePredecessor(i int) (int, *FrameBuffer) {
	j := i - 1
	prev := c.frames[j]
	for j > 0 && prev.disposal == DisposeOverwritePrevious {
		j--
		prev = c.frames[j]
	}
	return j, prev
}

// RequiredPreviousFrameIndex returns the frame whose pixels frame i starts
// from, or NotFound when frame i starts from a transparent canvas.
func (c *Compositor) RequiredPreviousFrameIndex(i int) int {
	if i <= 0 || i >= len(c.frames) {
		return NotFound
	}
	j, prev := c.effectivePredecessor(i)
	switch prev.disposal {
	case DisposeNotSpecified, DisposeKeep:
		return j
	default:
		if j == 0 || c.canvas().In(prev.rect) {
			return NotFound
		}
		return j
	}
}

// initFrame sets the starting pixels of frame f from its predecessor's
// disposal method.
func (c *Compositor) initFrame(f *FrameContext) bool {
	buf := c.frame(f.Index)
	canvas := c.canvas()
	buf.rect = f.Rect().Intersect(canvas)

	if f.Index == 0 {
		buf.setSize(c.width, c.height)
	} else {
		j, prev := c.effectivePredecessor(f.Index)
		switch prev.disposal {
		case DisposeNotSpecified, DisposeKeep:
			if prev.status != FrameComplete {
				return false
			}
			buf.copyBitmapData(prev)
		default:
			if j == 0 || canvas.In(prev.rect) {
				buf.setSize(c.width, c.height)
				break
			}
			if prev.status != FrameComplete {
				return false
			}
			buf.copyBitmapData(prev)
			buf.zeroRect(prev.rect)
			if !prev.rect.Empty() {
				buf.hasAlpha = true
			}
		}
	}

	buf.status = FramePartial
	buf.sawAlpha = false
	return true
}

// HaveDecodedRow writes one row of palette indices into frame f's buffer.
func (c *Compositor) HaveDecodedRow(f *FrameContext, row []byte, rowNumber, repeatCount int, writeTransparent bool) bool {
	xBegin := f.XOffset
	yBegin := f.YOffset + rowNumber
	xEnd := min(f.XOffset+len(row), c.width)
	yEnd := min(f.YOffset+rowNumber+repeatCount, c.height)
	if len(row) == 0 || xEnd <= xBegin || yEnd <= yBegin {
		return true
	}

	colorMap := f.ColorMap()
	if len(colorMap) == 0 {
		return true
	}

	buf := c.frame(f.Index)
	if buf.status == FrameEmpty && !c.initFrame(f) {
		return false
	}

	i := buf.offset(xBegin, yBegin)
	for x := xBegin; x < xEnd; x++ {
		src := row[x-xBegin]
		if (!f.Transparent || src != f.TransparentIndex) && int(src) < len(colorMap) {
			p := colorMap[src]
			buf.setRGBA(i, p.R, p.G, p.B, 0xff)
		} else {
			buf.sawAlpha = true
			// Later progressive passes must overwrite the rows replicated by
			// earlier ones.
			if writeTransparent {
				buf.setRGBA(i, 0, 0, 0, 0)
			}
		}
		i += 4
	}

	if repeatCount > 1 {
		buf.copyRowNTimes(xBegin, xEnd, yBegin, yEnd)
	}
	return true
}

// FrameComplete finalizes frame f and settles its alpha flag.
func (c *Compositor) FrameComplete(f *FrameContext) bool {
	buf := c.frame(f.Index)
	if buf.status == FrameEmpty && !c.initFrame(f) {
		return false
	}
	buf.status = FrameComplete
	buf.duration = time.Duration(f.DelayMs) * time.Millisecond
	buf.disposal = f.Disposal

	if buf.sawAlpha {
		return true
	}
	if c.canvas().In(buf.rect) {
		buf.hasAlpha = false
	} else if f.Index > 0 {
		// Keep and unspecified predecessors already passed their alpha state
		// on through initFrame.
		_, prev := c.effectivePredecessor(f.Index)
		if prev.disposal == DisposeOverwriteBackground && !prev.hasAlpha && prev.rect.In(buf.rect) {
			buf.hasAlpha = false
		}
	}
	return true
}

// ClearCacheBefore drops the pixels of frames before k that no later frame
// needs. Frame k-1 and the frame a future initFrame would copy from are kept.
func (c *Compositor) ClearCacheBefore(k int) {
	if len(c.frames) == 0 {
		return
	}
	end := min(k-1, len(c.frames)-1)
	if end <= 0 {
		return
	}

	i := end
	for ; i > 0 && (c.frames[i].status == FrameEmpty || c.frames[i].disposal == DisposeOverwritePrevious); i-- {
		if c.frames[i].status == FrameComplete && i != end {
			c.frames[i].clearPixelData()
		}
	}
	for j := 0; j < i; j++ {
		if c.frames[j].status == FrameComplete {
			c.frames[j].clearPixelData()
		}
	}
}
