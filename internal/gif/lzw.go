package gif

// rowSink receives rows as the decoder completes them.
type rowSink func(row []byte, rowNumber, repeatCount int, writeTransparent bool) bool

// lzwDecoder holds the per-frame dictionary and row state. It survives across
// sub-blocks so decoding can resume whenever more of the frame arrives.
type lzwDecoder struct {
	sink rowSink

	width              int
	height             int
	interlaced         bool
	progressiveDisplay bool

	dataSize  int
	clearCode int
	avail     int
	oldCode   int
	firstChar byte
	codeSize  int
	codeMask  int
	datum     int
	bits      int

	ipass         int
	irow          int
	rowsRemaining int
	rowBuf        []byte
	rowPos        int

	prefix [maxBytes]uint16
	suffix [maxBytes]byte
	stack  [maxBytes]byte
}

func newLZWDecoder(f *FrameContext, sink rowSink) (*lzwDecoder, error) {
	if f.dataSize >= maxDictionaryEntryBits {
		return nil, ErrBadDataSize
	}
	d := &lzwDecoder{
		sink:               sink,
		width:              f.Width,
		height:             f.Height,
		interlaced:         f.Interlaced,
		progressiveDisplay: f.ProgressiveDisplay,
		dataSize:           f.dataSize,
		clearCode:          1 << f.dataSize,
		oldCode:            -1,
		codeSize:           f.dataSize + 1,
		rowsRemaining:      f.Height,
		rowBuf:             make([]byte, f.Width),
	}
	d.codeMask = 1<<d.codeSize - 1
	d.avail = d.clearCode + 2
	if d.interlaced {
		d.ipass = 1
	}
	for i := 0; i < d.clearCode; i++ {
		d.suffix[i] = byte(i)
	}
	return d, nil
}

func (d *lzwDecoder) hasRemainingRows() bool { return d.rowsRemaining > 0 }

// decode feeds one sub-block. Bytes past the last row are ignored.
func (d *lzwDecoder) decode(block []byte) error {
	if d.rowsRemaining == 0 {
		return nil
	}
	for _, b := range block {
		d.datum += int(b) << d.bits
		d.bits += 8
		for d.bits >= d.codeSize {
			code := d.datum & d.codeMask
			d.datum >>= d.codeSize
			d.bits -= d.codeSize

			if code == d.clearCode {
				d.codeSize = d.dataSize + 1
				d.codeMask = 1<<d.codeSize - 1
				d.avail = d.clearCode + 2
				d.oldCode = -1
				continue
			}
			if code == d.clearCode+1 {
				if d.rowsRemaining == 0 {
					return nil
				}
				return ErrPrematureEndCode
			}

			if d.oldCode == -1 {
				if code >= maxBytes {
					return ErrInvalidCode
				}
				d.firstChar = d.suffix[code]
				d.oldCode = code
				done, err := d.put(d.firstChar)
				if err != nil || done {
					return err
				}
				continue
			}

			inCode := code
			sp := 0
			if code >= d.avail {
				d.stack[sp] = d.firstChar
				sp++
				code = d.oldCode
			}
			for code >= d.clearCode {
				if code >= maxBytes || code == int(d.prefix[code]) {
					return ErrLZWCycle
				}
				d.stack[sp] = d.suffix[code]
				sp++
				code = int(d.prefix[code])
				if sp == maxBytes {
					return ErrLZWStackOverflow
				}
			}
			d.firstChar = d.suffix[code]
			d.stack[sp] = d.firstChar
			sp++

			if d.avail < maxDictionaryEntries {
				d.prefix[d.avail] = uint16(d.oldCode)
				d.suffix[d.avail] = d.firstChar
				d.avail++
				if d.avail&d.codeMask == 0 && d.avail < maxDictionaryEntries {
					d.codeSize++
					d.codeMask += d.avail
				}
			}
			d.oldCode = inCode

			for sp > 0 {
				sp--
				done, err := d.put(d.stack[sp])
				if err != nil || done {
					return err
				}
			}
		}
	}
	return nil
}

// put appends one index to the row buffer, flushing full rows. It reports
// true once the last row has been emitted.
func (d *lzwDecoder) put(c byte) (bool, error) {
	d.rowBuf[d.rowPos] = c
	d.rowPos++
	if d.rowPos < len(d.rowBuf) {
		return false, nil
	}
	if err := d.outputRow(); err != nil {
		return false, err
	}
	d.rowsRemaining--
	d.rowPos = 0
	return d.rowsRemaining == 0, nil
}

// outputRow hands the row buffer to the sink and advances to the next
// scanline, following the four interlace passes when needed.
func (d *lzwDecoder) outputRow() error {
	rowStart, rowEnd := d.irow, d.irow
	progressive := d.progressiveDisplay && d.interlaced && d.ipass < 4

	// Replicate early passes over the rows they stand in for.
	if progressive {
		var rowDup, rowShift int
		switch d.ipass {
		case 1:
			rowDup, rowShift = 7, 3
		case 2:
			rowDup, rowShift = 3, 1
		case 3:
			rowDup, rowShift = 1, 0
		}
		rowStart -= rowShift
		rowEnd = rowStart + rowDup
		if (d.height-1)-rowEnd <= rowShift {
			rowEnd = d.height - 1
		}
		if rowStart < 0 {
			rowStart = 0
		}
		if rowEnd >= d.height {
			rowEnd = d.height - 1
		}
	}

	if rowStart < d.height {
		writeTransparent := d.progressiveDisplay && d.interlaced && d.ipass > 1
		if !d.sink(d.rowBuf, rowStart, rowEnd-rowStart+1, writeTransparent) {
			return ErrClientAborted
		}
	}

	if !d.interlaced {
		d.irow++
		return nil
	}
	for {
		switch d.ipass {
		case 1:
			d.irow += 8
			if d.irow >= d.height {
				d.ipass++
				d.irow = 4
			}
		case 2:
			d.irow += 8
			if d.irow >= d.height {
				d.ipass++
				d.irow = 2
			}
		case 3:
			d.irow += 4
			if d.irow >= d.height {
				d.ipass++
				d.irow = 1
			}
		case 4:
			d.irow += 2
			if d.irow >= d.height {
				d.ipass++
				d.irow = 0
			}
		}
		if d.irow <= d.height-1 || d.ipass > 4 {
			break
		}
	}
	return nil
}
