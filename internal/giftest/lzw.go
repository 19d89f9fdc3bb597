package giftest

import (
	"bytes"
	"compress/lzw"
)

const maxCodes = 4096

type bitWriter struct {
	buf  []byte
	acc  uint32
	bits uint
}

func (w *bitWriter) write(code, width int) {
	w.acc |= uint32(code) << w.bits
	w.bits += uint(width)
	for w.bits >= 8 {
		w.buf = append(w.buf, byte(w.acc))
		w.acc >>= 8
		w.bits -= 8
	}
}

func (w *bitWriter) flush() []byte {
	if w.bits > 0 {
		w.buf = append(w.buf, byte(w.acc))
		w.acc, w.bits = 0, 0
	}
	return w.buf
}

// EncodeLZW compresses palette indices with GIF's variable-width LZW. When
// clearEvery is positive a clear code is emitted after every clearEvery data
// codes, resetting the dictionary mid-stream.
func EncodeLZW(indices []byte, dataSize, clearEvery int) []byte {
	clearCode := 1 << dataSize
	endCode := clearCode + 1

	var w bitWriter
	codeSize := dataSize + 1
	next := clearCode + 2
	dict := make(map[[2]int]int)
	sinceClear := 0

	reset := func() {
		clear(dict)
		codeSize = dataSize + 1
		next = clearCode + 2
		sinceClear = 0
	}
	// grow mirrors the decoder learning one entry.
	grow := func() {
		if next < maxCodes {
			next++
			if next-1 == 1<<codeSize && codeSize < 12 {
				codeSize++
			}
		}
	}

	w.write(clearCode, codeSize)
	prefix := -1
	for _, c := range indices {
		if prefix < 0 {
			prefix = int(c)
			continue
		}
		key := [2]int{prefix, int(c)}
		if code, ok := dict[key]; ok {
			prefix = code
			continue
		}
		w.write(prefix, codeSize)
		sinceClear++
		if next < maxCodes {
			dict[key] = next
		}
		grow()
		if clearEvery > 0 && sinceClear == clearEvery {
			w.write(clearCode, codeSize)
			reset()
		}
		prefix = int(c)
	}
	if prefix >= 0 {
		w.write(prefix, codeSize)
		sinceClear++
		if sinceClear > 1 {
			grow()
		}
	}
	w.write(endCode, codeSize)
	return w.flush()
}

// EncodeStdLZW compresses indices with compress/lzw, the encoder image/gif
// uses. dataSize must be between 2 and 8.
func EncodeStdLZW(indices []byte, dataSize int) ([]byte, error) {
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, lzw.LSB, dataSize)
	if _, err := w.Write(indices); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SubBlocks splits data into length-prefixed sub-blocks of at most size bytes
// and appends the zero-length terminator.
func SubBlocks(data []byte, size int) []byte {
	if size <= 0 || size > 255 {
		size = 255
	}
	out := make([]byte, 0, len(data)+len(data)/size+2)
	for len(data) > 0 {
		n := min(size, len(data))
		out = append(out, byte(n))
		out = append(out, data[:n]...)
		data = data[n:]
	}
	return append(out, 0)
}
