// Package giftest assembles GIF byte streams block by block for tests and
// fixture generation.
package giftest

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Palette is a color table of RGB triples.
type Palette [][3]byte

// sizeBits returns the packed-field exponent for p and its padded length.
func (p Palette) sizeBits() (int, int) {
	bits := 1
	for 1<<bits < len(p) && bits < 8 {
		bits++
	}
	return bits - 1, 1 << bits
}

func (p Palette) bytes() []byte {
	_, n := p.sizeBits()
	out := make([]byte, n*3)
	for i, c := range p {
		if i >= n {
			break
		}
		copy(out[i*3:], c[:])
	}
	return out
}

// Gray returns an n-entry grayscale ramp.
func Gray(n int) Palette {
	p := make(Palette, n)
	for i := range p {
		v := byte(i * 255 / max(1, n-1))
		p[i] = [3]byte{v, v, v}
	}
	return p
}

// Control is a graphic control extension.
type Control struct {
	Disposal         int
	DelayCS          int
	Transparent      bool
	TransparentIndex byte
	// DeclaredSize overrides the block length byte; the four payload bytes
	// are written regardless.
	DeclaredSize int
}

// Frame is an image descriptor plus its pixel data.
type Frame struct {
	X, Y          int
	Width, Height int
	Interlaced    bool
	Local         Palette
	// DataSize is the LZW minimum code size; zero picks one from the palette.
	DataSize int
	// Pixels holds palette indices in display order.
	Pixels []byte
	// ClearEvery forces a clear code after that many codes.
	ClearEvery int
	// BlockSize caps sub-block length; zero means 255.
	BlockSize int
	// Stdlib selects compress/lzw instead of EncodeLZW.
	Stdlib bool
}

// Builder appends GIF blocks to an in-memory stream.
type Builder struct {
	buf        bytes.Buffer
	globalBits int
	err        error
}

// New starts a stream with the given signature ("GIF87a" or "GIF89a") and
// logical screen. A nil palette omits the global color table.
func New(signature string, width, height int, global Palette) *Builder {
	b := &Builder{}
	b.buf.WriteString(signature)
	b.u16(width)
	b.u16(height)
	var flags byte
	if global != nil {
		bits, _ := global.sizeBits()
		flags = 0x80 | byte(bits)
		b.globalBits = bits + 1
	}
	b.buf.Write([]byte{flags, 0, 0})
	if global != nil {
		b.buf.Write(global.bytes())
	}
	return b
}

func (b *Builder) u16(v int) {
	var p [2]byte
	binary.LittleEndian.PutUint16(p[:], uint16(v))
	b.buf.Write(p[:])
}

// Raw appends arbitrary bytes.
func (b *Builder) Raw(p ...byte) *Builder {
	b.buf.Write(p)
	return b
}

// Loop appends a NETSCAPE2.0 loop count block.
func (b *Builder) Loop(count int) *Builder {
	b.buf.Write([]byte{'!', 0xff, 11})
	b.buf.WriteString("NETSCAPE2.0")
	b.buf.Write([]byte{3, 1})
	b.u16(count)
	b.buf.WriteByte(0)
	return b
}

// Comment appends a comment extension.
func (b *Builder) Comment(text string) *Builder {
	b.buf.Write([]byte{'!', 0xfe})
	b.buf.Write(SubBlocks([]byte(text), 255))
	return b
}

// Control appends a graphic control extension.
func (b *Builder) Control(c Control) *Builder {
	size := c.DeclaredSize
	if size == 0 {
		size = 4
	}
	var packed byte
	if c.Transparent {
		packed |= 0x01
	}
	packed |= byte(c.Disposal&0x07) << 2
	b.buf.Write([]byte{'!', 0xf9, byte(size), packed})
	b.u16(c.DelayCS)
	b.buf.Write([]byte{c.TransparentIndex, 0})
	return b
}

// Frame appends an image descriptor, optional local table and LZW data.
func (b *Builder) Frame(f Frame) *Builder {
	b.buf.WriteByte(',')
	b.u16(f.X)
	b.u16(f.Y)
	b.u16(f.Width)
	b.u16(f.Height)
	var flags byte
	dataSize := b.globalBits
	if f.Local != nil {
		bits, _ := f.Local.sizeBits()
		flags |= 0x80 | byte(bits)
		dataSize = bits + 1
	}
	if f.Interlaced {
		flags |= 0x40
	}
	b.buf.WriteByte(flags)
	if f.Local != nil {
		b.buf.Write(f.Local.bytes())
	}
	if f.DataSize > 0 {
		dataSize = f.DataSize
	}
	dataSize = max(2, dataSize)
	b.buf.WriteByte(byte(dataSize))

	pixels := f.Pixels
	if f.Interlaced {
		pixels = Interlace(pixels, f.Width, f.Height)
	}
	var data []byte
	if f.Stdlib {
		var err error
		if data, err = EncodeStdLZW(pixels, dataSize); err != nil && b.err == nil {
			b.err = fmt.Errorf("giftest: frame: %w", err)
		}
	} else {
		data = EncodeLZW(pixels, dataSize, f.ClearEvery)
	}
	b.buf.Write(SubBlocks(data, f.BlockSize))
	return b
}

// Trailer appends the ';' trailer.
func (b *Builder) Trailer() *Builder {
	b.buf.WriteByte(';')
	return b
}

// Bytes returns the stream assembled so far.
func (b *Builder) Bytes() []byte {
	return bytes.Clone(b.buf.Bytes())
}

// Err returns the first encoding error.
func (b *Builder) Err() error { return b.err }

// InterlaceRows returns display row numbers in GIF interlaced storage order.
func InterlaceRows(height int) []int {
	rows := make([]int, 0, height)
	for _, pass := range [4][2]int{{0, 8}, {4, 8}, {2, 4}, {1, 2}} {
		for y := pass[0]; y < height; y += pass[1] {
			rows = append(rows, y)
		}
	}
	return rows
}

// Interlace reorders display-order pixels into interlaced storage order.
func Interlace(pixels []byte, width, height int) []byte {
	out := make([]byte, 0, len(pixels))
	for _, y := range InterlaceRows(height) {
		out = append(out, pixels[y*width:(y+1)*width]...)
	}
	return out
}
