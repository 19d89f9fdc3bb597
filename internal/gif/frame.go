package gif

import (
	"image"
	"image/color"
)

// ColorMap is a global or local color table.
type ColorMap []color.RGBA

// newColorMap builds a table from packed RGB triples.
func newColorMap(rgb []byte) ColorMap {
	m := make(ColorMap, len(rgb)/bytesPerColorMapEntry)
	for i := range m {
		p := rgb[i*bytesPerColorMapEntry:]
		m[i] = color.RGBA{R: p[0], G: p[1], B: p[2], A: 0xff}
	}
	return m
}

// LZWBlock references one compressed sub-block inside the Stream.
type LZWBlock struct {
	Position int
	Size     int
}

// FrameContext describes one frame as parsed from the stream. It carries no
// pixels; those live in the compositor's FrameBuffer.
type FrameContext struct {
	Index            int
	XOffset          int
	YOffset          int
	Width            int
	Height           int
	Interlaced       bool
	Transparent      bool
	TransparentIndex byte
	Disposal         DisposalMethod
	// DelayMs is the declared delay in milliseconds.
	DelayMs            int
	LocalColorMap      ColorMap
	ProgressiveDisplay bool

	dataSize        int
	dataSizeDefined bool
	headerDefined   bool
	complete        bool
	blocks          []LZWBlock

	activeColorMap ColorMap
	lzw            *lzwDecoder
	currentBlock   int
	decoded        bool
}

func newFrameContext(index int) *FrameContext {
	return &FrameContext{Index: index}
}

// Rect returns the frame rectangle in canvas coordinates.
func (f *FrameContext) Rect() image.Rectangle {
	return image.Rect(f.XOffset, f.YOffset, f.XOffset+f.Width, f.YOffset+f.Height)
}

// ColorMap returns the palette rows are mapped through: the local table when
// present, otherwise the global one. It is nil until decoding starts.
func (f *FrameContext) ColorMap() ColorMap { return f.activeColorMap }

// HeaderDefined reports whether the image descriptor has been parsed.
func (f *FrameContext) HeaderDefined() bool { return f.headerDefined }

// IsComplete reports whether the terminating zero-length sub-block was seen.
func (f *FrameContext) IsComplete() bool { return f.complete }

// DataSize returns the LZW minimum code size.
func (f *FrameContext) DataSize() int { return f.dataSize }

// Blocks returns the recorded LZW sub-block references.
func (f *FrameContext) Blocks() []LZWBlock { return f.blocks }

func (f *FrameContext) addLZWBlock(pos, size int) {
	f.blocks = append(f.blocks, LZWBlock{Position: pos, Size: size})
}

// Client receives decoded output from the Reader.
type Client interface {
	// SetSize declares the canvas size. Returning false is fatal.
	SetSize(width, height int) bool
	// HaveDecodedRow delivers one row of palette indices for frame. The row is
	// drawn at rowNumber and repeated over repeatCount rows.
	HaveDecodedRow(frame *FrameContext, row []byte, rowNumber, repeatCount int, writeTransparent bool) bool
	// FrameComplete finalizes frame once all its rows have been delivered.
	FrameComplete(frame *FrameContext) bool
	// StreamComplete is called once the trailer has been parsed.
	StreamComplete()
}
