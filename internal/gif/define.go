package gif

import (
	"errors"
	"fmt"
)

// Block introducers.
const (
	introducerExtension = '!'
	introducerImage     = ','
	introducerTrailer   = ';'
)

// Extension labels.
const (
	labelPlainText      = 0x01
	labelGraphicControl = 0xf9
	labelComment        = 0xfe
	labelApplication    = 0xff
)

// Packed-field masks shared by the screen and image descriptors.
const (
	flagColorTable     = 0x80
	flagInterlaced     = 0x40
	maskColorTableSize = 0x07
)

const (
	bytesPerColorMapEntry = 3

	// minControlExtensionSize is the GCE payload length the parser always reads,
	// whatever the block declares.
	minControlExtensionSize = 4

	// maxDictionaryEntryBits caps LZW code width.
	maxDictionaryEntryBits = 12
	maxDictionaryEntries   = 1 << maxDictionaryEntryBits

	// maxBytes bounds dictionary references and the decoding stack.
	maxBytes = maxDictionaryEntries + 1

	// maxCanvasPixels is the largest canvas the compositor accepts.
	maxCanvasPixels = 1<<29 - 1
)

// Loop counts reported by the parser.
const (
	// LoopCountInfinite is a declared loop count of zero.
	LoopCountInfinite = -1
	// LoopCountNotSeen means no looping extension was parsed.
	LoopCountNotSeen = -2
)

var (
	// ErrBadSignature reports a stream that does not start with GIF87a or GIF89a.
	ErrBadSignature = errors.New("gif: not a GIF87a or GIF89a stream")
	// ErrBadBlockIntroducer reports a byte that is not '!', ',' or ';' where a
	// block must start.
	ErrBadBlockIntroducer = errors.New("gif: illegal block introducer")
	// ErrImageTooLarge reports a canvas the client refused.
	ErrImageTooLarge = errors.New("gif: canvas too large")
	// ErrZeroSizeFrame reports a zero-size frame on a zero-size screen.
	ErrZeroSizeFrame = errors.New("gif: frame and screen both have zero size")
	// ErrUnknownNetscapeExtension reports a looping sub-block other than 1 or 2.
	ErrUnknownNetscapeExtension = errors.New("gif: unknown netscape extension")
	// ErrBadDataSize reports an LZW minimum code size of 12 or more.
	ErrBadDataSize = errors.New("gif: LZW minimum code size out of range")
	// ErrPrematureEndCode reports an end code before the frame's last row.
	ErrPrematureEndCode = errors.New("gif: LZW end code before last row")
	// ErrInvalidCode reports a code past the dictionary capacity.
	ErrInvalidCode = errors.New("gif: LZW code out of range")
	// ErrLZWCycle reports a dictionary entry that is its own prefix.
	ErrLZWCycle = errors.New("gif: LZW dictionary cycle")
	// ErrLZWStackOverflow reports a prefix chain longer than the dictionary.
	ErrLZWStackOverflow = errors.New("gif: LZW stack overflow")
	// ErrTruncated reports a stream that ended before its structure did.
	ErrTruncated = errors.New("gif: stream truncated")
	// ErrClientAborted reports a Client callback that returned false.
	ErrClientAborted = errors.New("gif: frame sink rejected data")
)

// DisposalMethod tells the compositor how to treat a frame's pixels before the
// next frame is drawn. The values match the wire encoding.
type DisposalMethod int

const (
	// DisposeNotSpecified leaves the frame in place.
	DisposeNotSpecified DisposalMethod = iota
	// DisposeKeep leaves the frame in place.
	DisposeKeep
	// DisposeOverwriteBackground clears the frame's rectangle to transparent.
	DisposeOverwriteBackground
	// DisposeOverwritePrevious restores the canvas the frame was drawn on.
	DisposeOverwritePrevious
)

func (m DisposalMethod) String() string {
	switch m {
	case DisposeNotSpecified:
		return "NotSpecified"
	case DisposeKeep:
		return "Keep"
	case DisposeOverwriteBackground:
		return "OverwriteBackground"
	case DisposeOverwritePrevious:
		return "OverwritePrevious"
	default:
		return fmt.Sprintf("DisposalMethod(%d)", int(m))
	}
}

// Query selects how deep Advance walks the stream.
type Query int

const (
	// QuerySize stops once the logical screen size is known.
	QuerySize Query = iota
	// QueryFrameCount parses every received block without decoding pixels.
	QueryFrameCount
	// QueryFull also decodes frames up to the requested index.
	QueryFull
)

func (q Query) String() string {
	switch q {
	case QuerySize:
		return "Size"
	case QueryFrameCount:
		return "FrameCount"
	case QueryFull:
		return "Full"
	default:
		return fmt.Sprintf("Query(%d)", int(q))
	}
}

// CodecStatus represents the processing state of a decode session.
type CodecStatus int

const (
	// CodecStatusReady indicates nothing has been parsed.
	CodecStatusReady CodecStatus = iota
	// CodecStatusToBeContinued indicates more data or more work is needed.
	CodecStatusToBeContinued
	// CodecStatusFinished indicates the query was fully answered.
	CodecStatusFinished
	// CodecStatusError indicates a fatal error.
	CodecStatusError
)

func (s CodecStatus) String() string {
	switch s {
	case CodecStatusReady:
		return "Ready"
	case CodecStatusToBeContinued:
		return "ToBeContinued"
	case CodecStatusFinished:
		return "Finished"
	case CodecStatusError:
		return "Error"
	default:
		return fmt.Sprintf("CodecStatus(%d)", int(s))
	}
}
