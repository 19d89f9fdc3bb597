package gif

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ParserState names the structural unit the Reader expects next.
type ParserState int

const (
	StateSignature ParserState = iota
	StateScreenHeader
	StateGlobalColorTable
	StateBlockIntroducer
	StateExtension
	StateControlExtension
	StateApplicationExtension
	StateNetscapeSubBlockSize
	StateNetscapeSubBlock
	StateCommentSubBlockSize
	StateCommentBytes
	StateSkipSubBlockSize
	StateSkipSubBlock
	StateImageDescriptor
	StateLocalColorTable
	StateLZWMinCodeSize
	StateSubBlockSize
	StateLZWSubBlock
	StateDone
)

var parserStateNames = [...]string{
	StateSignature:            "Signature",
	StateScreenHeader:         "ScreenHeader",
	StateGlobalColorTable:     "GlobalColorTable",
	StateBlockIntroducer:      "BlockIntroducer",
	StateExtension:            "Extension",
	StateControlExtension:     "ControlExtension",
	StateApplicationExtension: "ApplicationExtension",
	StateNetscapeSubBlockSize: "NetscapeSubBlockSize",
	StateNetscapeSubBlock:     "NetscapeSubBlock",
	StateCommentSubBlockSize:  "CommentSubBlockSize",
	StateCommentBytes:         "CommentBytes",
	StateSkipSubBlockSize:     "SkipSubBlockSize",
	StateSkipSubBlock:         "SkipSubBlock",
	StateImageDescriptor:      "ImageDescriptor",
	StateLocalColorTable:      "LocalColorTable",
	StateLZWMinCodeSize:       "LZWMinCodeSize",
	StateSubBlockSize:         "SubBlockSize",
	StateLZWSubBlock:          "LZWSubBlock",
	StateDone:                 "Done",
}

func (s ParserState) String() string {
	if s >= 0 && int(s) < len(parserStateNames) {
		return parserStateNames[s]
	}
	return fmt.Sprintf("ParserState(%d)", int(s))
}

var (
	sigGIF87a   = []byte("GIF87a")
	sigGIF89a   = []byte("GIF89a")
	appNetscape = []byte("NETSCAPE2.0")
	appAnimExts = []byte("ANIMEXTS1.0")
)

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	// ProgressiveDisplay enables row replication for interlaced first frames.
	ProgressiveDisplay bool
	// Warnf, when set, receives notes about tolerated malformations.
	Warnf func(format string, args ...any)
}

// Reader is the incremental GIF stream parser. It reads from a Stream and
// reports decoded output to a Client.
type Reader struct {
	stream *Stream
	client Client
	opts   ReaderOptions

	state          ParserState
	bytesToConsume int

	version         int
	screenWidth     int
	screenHeight    int
	backgroundIndex byte
	globalColorMap  ColorMap

	frames         []*FrameContext
	loopCount      int
	parseCompleted bool
	nextDecode     int

	err error
}

// NewReader constructs a Reader positioned at the start of stream.
func NewReader(stream *Stream, client Client, opts ReaderOptions) *Reader {
	return &Reader{
		stream:         stream,
		client:         client,
		opts:           opts,
		state:          StateSignature,
		bytesToConsume: len(sigGIF89a),
		loopCount:      LoopCountNotSeen,
	}
}

// State returns the current parser state.
func (r *Reader) State() ParserState { return r.state }

// Err returns the fatal error, if any.
func (r *Reader) Err() error { return r.err }

// ParseCompleted reports whether the trailer has been parsed.
func (r *Reader) ParseCompleted() bool { return r.parseCompleted }

// Version returns 87 or 89 once the signature is known, otherwise 0.
func (r *Reader) Version() int { return r.version }

// ScreenSize returns the logical screen size.
func (r *Reader) ScreenSize() (int, int) { return r.screenWidth, r.screenHeight }

// BackgroundIndex returns the declared background color index.
func (r *Reader) BackgroundIndex() byte { return r.backgroundIndex }

// GlobalColorMap returns the global color table, nil when absent.
func (r *Reader) GlobalColorMap() ColorMap { return r.globalColorMap }

// LoopCount returns the NETSCAPE2.0 loop count, LoopCountInfinite, or
// LoopCountNotSeen.
func (r *Reader) LoopCount() int { return r.loopCount }

// FrameCount returns the number of frames whose image descriptor has been
// parsed.
func (r *Reader) FrameCount() int {
	n := len(r.frames)
	if n > 0 && !r.frames[n-1].headerDefined {
		n--
	}
	return n
}

// Frame returns the context of frame i, or nil.
func (r *Reader) Frame(i int) *FrameContext {
	if i < 0 || i >= r.FrameCount() {
		return nil
	}
	return r.frames[i]
}

// Advance parses as much of the stream as the query needs. QueryFull also
// decodes frames up to and including haltAtFrame.
func (r *Reader) Advance(q Query, haltAtFrame int) (CodecStatus, error) {
	if r.err != nil {
		return CodecStatusError, r.err
	}
	if err := r.parse(q); err != nil {
		return r.fail(err)
	}
	if q == QueryFull {
		for r.nextDecode <= haltAtFrame && r.nextDecode < r.FrameCount() {
			done, err := r.decodeFrame(r.nextDecode)
			if err != nil {
				return r.fail(err)
			}
			if !done {
				return CodecStatusToBeContinued, nil
			}
			r.nextDecode++
		}
	}
	if r.parseCompleted && (q != QueryFull || r.nextDecode >= r.FrameCount()) {
		return CodecStatusFinished, nil
	}
	return CodecStatusToBeContinued, nil
}

func (r *Reader) fail(err error) (CodecStatus, error) {
	r.err = err
	return CodecStatusError, err
}

func (r *Reader) getN(n int, s ParserState) {
	r.bytesToConsume = n
	r.state = s
}

func (r *Reader) warnf(format string, args ...any) {
	if r.opts.Warnf != nil {
		r.opts.Warnf(format, args...)
	}
}

// currentFrameIsFirstFrame reports whether the frame being parsed is frame 0.
func (r *Reader) currentFrameIsFirstFrame() bool {
	return len(r.frames) == 0 || (len(r.frames) == 1 && !r.frames[0].headerDefined)
}

// addFrameIfNecessary starts a new frame unless the last one is still
// waiting for its image descriptor.
func (r *Reader) addFrameIfNecessary() *FrameContext {
	if n := len(r.frames); n == 0 || r.frames[n-1].headerDefined {
		r.frames = append(r.frames, newFrameContext(n))
	}
	return r.frames[len(r.frames)-1]
}

func (r *Reader) lastFrame() *FrameContext {
	return r.frames[len(r.frames)-1]
}

func (r *Reader) parse(q Query) error {
	if q == QuerySize && r.state > StateScreenHeader {
		return nil
	}
	for !r.parseCompleted {
		n := r.bytesToConsume
		pos := r.stream.Consumed()
		data, ok := r.stream.Peek(n)
		if !ok {
			return nil
		}

		switch r.state {
		case StateSignature:
			switch {
			case bytes.Equal(data, sigGIF89a):
				r.version = 89
			case bytes.Equal(data, sigGIF87a):
				r.version = 87
			default:
				return fmt.Errorf("%w: %q", ErrBadSignature, data)
			}
			r.getN(7, StateScreenHeader)

		case StateScreenHeader:
			r.screenWidth = int(binary.LittleEndian.Uint16(data[0:]))
			r.screenHeight = int(binary.LittleEndian.Uint16(data[2:]))
			r.backgroundIndex = data[5]
			if !r.client.SetSize(r.screenWidth, r.screenHeight) {
				return fmt.Errorf("%w: %dx%d", ErrImageTooLarge, r.screenWidth, r.screenHeight)
			}
			if data[4]&flagColorTable != 0 {
				size := 2 << (data[4] & maskColorTableSize)
				r.getN(bytesPerColorMapEntry*size, StateGlobalColorTable)
			} else {
				r.getN(1, StateBlockIntroducer)
			}
			if q == QuerySize {
				r.stream.Consume(n)
				return nil
			}

		case StateGlobalColorTable:
			r.globalColorMap = newColorMap(data)
			r.getN(1, StateBlockIntroducer)

		case StateBlockIntroducer:
			switch data[0] {
			case introducerExtension:
				r.getN(2, StateExtension)
			case introducerImage:
				r.getN(9, StateImageDescriptor)
			case introducerTrailer:
				r.getN(0, StateDone)
			default:
				return fmt.Errorf("%w: 0x%02x at offset %d", ErrBadBlockIntroducer, data[0], pos)
			}

		case StateExtension:
			size := int(data[1])
			next := StateSkipSubBlock
			switch data[0] {
			case labelGraphicControl:
				next = StateControlExtension
				if size < minControlExtensionSize {
					r.warnf("gif: graphic control extension declares %d bytes, reading %d", size, minControlExtensionSize)
					size = minControlExtensionSize
				}
			case labelApplication:
				next = StateApplicationExtension
			case labelComment:
				next = StateCommentBytes
			case labelPlainText:
			default:
				r.warnf("gif: skipping unknown extension 0x%02x", data[0])
			}
			if size > 0 {
				r.getN(size, next)
			} else {
				r.getN(1, StateBlockIntroducer)
			}

		case StateControlExtension:
			r.parseControlExtension(data)
			r.getN(1, StateSkipSubBlockSize)

		case StateSkipSubBlockSize:
			if data[0] == 0 {
				r.getN(1, StateBlockIntroducer)
			} else {
				r.getN(int(data[0]), StateSkipSubBlock)
			}

		case StateSkipSubBlock:
			r.getN(1, StateSkipSubBlockSize)

		case StateCommentSubBlockSize:
			if data[0] == 0 {
				r.getN(1, StateBlockIntroducer)
			} else {
				r.getN(int(data[0]), StateCommentBytes)
			}

		case StateCommentBytes:
			r.getN(1, StateCommentSubBlockSize)

		case StateApplicationExtension:
			if n == len(appNetscape) && (bytes.Equal(data, appNetscape) || bytes.Equal(data, appAnimExts)) {
				r.getN(1, StateNetscapeSubBlockSize)
			} else {
				r.getN(1, StateSkipSubBlockSize)
			}

		case StateNetscapeSubBlockSize:
			if size := int(data[0]); size > 0 {
				r.getN(max(3, size), StateNetscapeSubBlock)
			} else {
				r.getN(1, StateBlockIntroducer)
			}

		case StateNetscapeSubBlock:
			switch data[0] & 0x07 {
			case 1:
				r.loopCount = int(binary.LittleEndian.Uint16(data[1:]))
				if r.loopCount == 0 {
					r.loopCount = LoopCountInfinite
				}
			case 2:
				// Buffering hint; the reservoir already handles it.
			default:
				return fmt.Errorf("%w: sub-code %d", ErrUnknownNetscapeExtension, data[0]&0x07)
			}
			r.getN(1, StateNetscapeSubBlockSize)

		case StateImageDescriptor:
			if err := r.parseImageDescriptor(data); err != nil {
				return err
			}

		case StateLocalColorTable:
			r.lastFrame().LocalColorMap = newColorMap(data)
			r.getN(1, StateLZWMinCodeSize)

		case StateLZWMinCodeSize:
			f := r.lastFrame()
			f.dataSize = int(data[0])
			f.dataSizeDefined = true
			r.getN(1, StateSubBlockSize)

		case StateSubBlockSize:
			if size := int(data[0]); size > 0 {
				r.getN(size, StateLZWSubBlock)
			} else {
				// Frames that end before all rows are decoded are still complete.
				r.lastFrame().complete = true
				r.getN(1, StateBlockIntroducer)
			}

		case StateLZWSubBlock:
			r.lastFrame().addLZWBlock(pos, n)
			r.getN(1, StateSubBlockSize)

		case StateDone:
			r.parseCompleted = true
			r.client.StreamComplete()
			return nil

		default:
			return fmt.Errorf("gif: unexpected parser state %v", r.state)
		}

		r.stream.Consume(n)
	}
	return nil
}

func (r *Reader) parseControlExtension(data []byte) {
	f := r.addFrameIfNecessary()
	f.Transparent = data[0]&0x01 != 0
	if f.Transparent {
		f.TransparentIndex = data[3]
	}
	switch method := int(data[0]>>2) & 0x07; {
	case method < 4:
		f.Disposal = DisposalMethod(method)
	case method == 4:
		r.warnf("gif: frame %d uses disposal 4, treating as restore-to-previous", f.Index)
		f.Disposal = DisposeOverwritePrevious
	}
	f.DelayMs = int(binary.LittleEndian.Uint16(data[1:])) * 10
}

// parseImageDescriptor handles the 9-byte image descriptor.
func (r *Reader) parseImageDescriptor(data []byte) error {
	xOffset := int(binary.LittleEndian.Uint16(data[0:]))
	yOffset := int(binary.LittleEndian.Uint16(data[2:]))
	width := int(binary.LittleEndian.Uint16(data[4:]))
	height := int(binary.LittleEndian.Uint16(data[6:]))

	if width == 0 || height == 0 {
		width, height = r.screenWidth, r.screenHeight
		if width == 0 || height == 0 {
			return ErrZeroSizeFrame
		}
	}

	first := r.currentFrameIsFirstFrame()
	if first && (r.screenHeight < height || r.screenWidth < width || r.version == 87) {
		r.screenWidth, r.screenHeight = width, height
		xOffset, yOffset = 0, 0
		if !r.client.SetSize(r.screenWidth, r.screenHeight) {
			return fmt.Errorf("%w: %dx%d", ErrImageTooLarge, width, height)
		}
	}

	f := r.addFrameIfNecessary()
	f.XOffset, f.YOffset = xOffset, yOffset
	f.Width, f.Height = width, height
	f.Interlaced = data[8]&flagInterlaced != 0
	f.ProgressiveDisplay = first && r.opts.ProgressiveDisplay
	f.headerDefined = true

	if data[8]&flagColorTable != 0 {
		size := 2 << (data[8] & maskColorTableSize)
		r.getN(bytesPerColorMapEntry*size, StateLocalColorTable)
	} else {
		r.getN(1, StateLZWMinCodeSize)
	}
	return nil
}

// DecodeFrame decodes as much of frame i as has arrived. It reports true once
// the frame is finished and the client has been told. Errors are fatal for
// the Reader.
func (r *Reader) DecodeFrame(i int) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	done, err := r.decodeFrame(i)
	if err != nil {
		r.err = err
	}
	return done, err
}

func (r *Reader) decodeFrame(i int) (bool, error) {
	f := r.Frame(i)
	if f == nil {
		return false, nil
	}
	if f.decoded {
		return true, nil
	}
	if f.lzw == nil {
		if !f.dataSizeDefined || !f.headerDefined {
			return false, nil
		}
		f.activeColorMap = f.LocalColorMap
		if f.activeColorMap == nil {
			f.activeColorMap = r.globalColorMap
		}
		lzw, err := newLZWDecoder(f, func(row []byte, rowNumber, repeatCount int, writeTransparent bool) bool {
			return r.client.HaveDecodedRow(f, row, rowNumber, repeatCount, writeTransparent)
		})
		if err != nil {
			return false, fmt.Errorf("frame %d: %w", i, err)
		}
		f.lzw = lzw
		f.currentBlock = 0
	}

	for f.currentBlock < len(f.blocks) && f.lzw.hasRemainingRows() {
		b := f.blocks[f.currentBlock]
		data, ok := r.stream.Slice(b.Position, b.Size)
		if !ok {
			return false, fmt.Errorf("%w: frame %d block at %d", ErrTruncated, i, b.Position)
		}
		if err := f.lzw.decode(data); err != nil {
			f.lzw = nil
			return false, fmt.Errorf("frame %d: %w", i, err)
		}
		f.currentBlock++
	}

	if !f.complete {
		return false, nil
	}
	f.lzw = nil
	f.decoded = true
	if !r.client.FrameComplete(f) {
		return false, fmt.Errorf("%w: frame %d", ErrClientAborted, i)
	}
	return true, nil
}

// ResetFrame discards decode progress for frame i so it can be decoded again
// from its recorded sub-blocks.
func (r *Reader) ResetFrame(i int) {
	if f := r.Frame(i); f != nil {
		f.lzw = nil
		f.currentBlock = 0
		f.decoded = false
	}
}

// FrameDecoded reports whether frame i has been fully decoded at least once
// since its last reset.
func (r *Reader) FrameDecoded(i int) bool {
	f := r.Frame(i)
	return f != nil && f.decoded
}
