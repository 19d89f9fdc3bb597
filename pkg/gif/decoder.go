package gif

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"time"

	"github.com/jdeng/gogif/internal/gif"
)

// Loop counts returned by RepetitionCount besides a positive count.
const (
	// LoopCountInfinite means the animation repeats forever.
	LoopCountInfinite = gif.LoopCountInfinite
	// LoopCountOnce means the stream never declared a loop count.
	LoopCountOnce = gif.LoopCountNotSeen
)

const (
	minFrameDuration     = 11 * time.Millisecond
	defaultFrameDuration = 100 * time.Millisecond
)

var (
	// ErrWriteAfterEnd is returned by Write once SetAllDataReceived was called.
	ErrWriteAfterEnd = errors.New("gif: write after all data received")
	// ErrTruncated reports a stream that ended before its trailer.
	ErrTruncated = gif.ErrTruncated
	// ErrBadSignature reports input that is not GIF87a or GIF89a.
	ErrBadSignature = gif.ErrBadSignature
)

// Options configures a decode session.
type Options struct {
	// ProgressiveDisplay replicates the early passes of an interlaced first
	// frame so partially received images render coarse-to-fine.
	ProgressiveDisplay bool
	// Logger receives failures and tolerated malformations. Nil disables logging.
	Logger *log.Logger
}

// Decoder is one incremental decode session. Bytes are pushed with Write and
// every query decodes as far as the received bytes allow. A Decoder must not
// be used from more than one goroutine at a time.
type Decoder struct {
	opts   Options
	stream *gif.Stream
	comp   *gif.Compositor
	reader *gif.Reader

	err              error
	failedFrameCount int
}

// New creates a decode session.
func New(opts Options) *Decoder {
	d := &Decoder{
		opts:   opts,
		stream: gif.NewStream(),
		comp:   gif.NewCompositor(),
	}
	d.reader = gif.NewReader(d.stream, d.comp, gif.ReaderOptions{
		ProgressiveDisplay: opts.ProgressiveDisplay,
		Warnf:              d.logf,
	})
	return d
}

// ReadAll feeds everything from r into a new session and decodes every
// frame. The returned Decoder is usable even when err is non-nil; it holds
// the frames that completed before the failure.
func ReadAll(r io.Reader, opts Options) (*Decoder, error) {
	d := New(opts)
	if _, err := io.Copy(d, r); err != nil {
		return d, fmt.Errorf("gif: reading input: %w", err)
	}
	d.SetAllDataReceived()
	for i := 0; i < d.FrameCount(); i++ {
		d.FrameBufferAtIndex(i)
	}
	if !d.IsSizeAvailable() && d.err == nil {
		return d, ErrTruncated
	}
	return d, d.err
}

func (d *Decoder) logf(format string, args ...any) {
	if d.opts.Logger != nil {
		d.opts.Logger.Printf(format, args...)
	}
}

// Write appends newly received bytes. It never decodes by itself.
func (d *Decoder) Write(p []byte) (int, error) {
	if d.stream.AllDataReceived() {
		return 0, ErrWriteAfterEnd
	}
	d.stream.Append(p)
	return len(p), nil
}

// SetAllDataReceived marks the end of input. From then on a structurally
// incomplete stream is reported as failed.
func (d *Decoder) SetAllDataReceived() {
	d.stream.SetAllDataReceived()
}

// Failed reports whether the session hit a fatal error.
func (d *Decoder) Failed() bool { return d.err != nil }

// Err returns the fatal error, if any.
func (d *Decoder) Err() error { return d.err }

// Status summarizes the session.
func (d *Decoder) Status() CodecStatus {
	switch {
	case d.err != nil:
		return CodecStatusError
	case d.stream.Len() == 0:
		return CodecStatusReady
	case d.reader.ParseCompleted() && d.allFramesDecoded():
		return CodecStatusFinished
	default:
		return CodecStatusToBeContinued
	}
}

func (d *Decoder) allFramesDecoded() bool {
	for i := 0; i < d.reader.FrameCount(); i++ {
		if !d.reader.FrameDecoded(i) {
			return false
		}
	}
	return true
}

func (d *Decoder) setFailed(err error) {
	if d.err != nil {
		return
	}
	d.err = err
	n := 0
	for n < d.reader.FrameCount() && d.reader.FrameDecoded(n) {
		n++
	}
	d.failedFrameCount = n
	d.logf("gif: decode failed after %d frames: %v", n, err)
}

func (d *Decoder) advance(q gif.Query, haltAtFrame int) {
	if d.err != nil {
		return
	}
	if _, err := d.reader.Advance(q, haltAtFrame); err != nil {
		d.setFailed(err)
	}
}

// IsSizeAvailable parses just far enough to learn the canvas size. A failed
// session keeps reporting its size while it still holds completed frames.
func (d *Decoder) IsSizeAvailable() bool {
	if d.err == nil && !d.comp.SizeAvailable() {
		d.advance(gif.QuerySize, 0)
		if d.err == nil && !d.comp.SizeAvailable() && d.stream.AllDataReceived() {
			d.setFailed(gif.ErrTruncated)
		}
	}
	if !d.comp.SizeAvailable() {
		return false
	}
	return d.err == nil || d.failedFrameCount > 0
}

// Size returns the canvas size, or zeros when it is not yet known.
func (d *Decoder) Size() (int, int) {
	d.IsSizeAvailable()
	if !d.comp.SizeAvailable() {
		return 0, 0
	}
	return d.comp.Size()
}

// FrameCount returns the number of frames whose descriptor has arrived. After
// a failure it returns the number of frames that decoded completely.
func (d *Decoder) FrameCount() int {
	d.advance(gif.QueryFrameCount, 0)
	if d.err != nil {
		return d.failedFrameCount
	}
	n := d.reader.FrameCount()
	d.comp.EnsureFrames(n)
	return n
}

// RepetitionCount returns the declared loop count, LoopCountInfinite, or
// LoopCountOnce when no loop count was declared or the stream has no frames.
func (d *Decoder) RepetitionCount() int {
	if d.FrameCount() == 0 {
		return LoopCountOnce
	}
	return d.reader.LoopCount()
}

// FrameBufferAtIndex decodes up to and including frame i and returns it. A
// partially decoded frame is returned while bytes are still arriving; after a
// failure only completed frames are returned.
func (d *Decoder) FrameBufferAtIndex(i int) *Frame {
	if i < 0 || i >= d.FrameCount() {
		return nil
	}
	if buf := d.comp.Frame(i); d.err == nil && buf != nil && buf.Status() != gif.FrameComplete {
		if d.reader.FrameDecoded(i) {
			d.redecode(i)
		} else {
			d.advance(gif.QueryFull, i)
		}
		d.checkTruncation(i)
	}

	buf := d.comp.Frame(i)
	if buf == nil || buf.Status() == gif.FrameEmpty || (d.err != nil && buf.Status() != gif.FrameComplete) {
		return nil
	}
	return &Frame{buf: buf}
}

// redecode rebuilds an evicted frame, starting from the nearest frame in its
// dependency chain that still holds pixels.
func (d *Decoder) redecode(i int) {
	var chain []int
	for j := i; j != gif.NotFound; j = d.comp.RequiredPreviousFrameIndex(j) {
		if d.comp.Frame(j).Status() == gif.FrameComplete {
			break
		}
		chain = append(chain, j)
	}
	for k := len(chain) - 1; k >= 0; k-- {
		d.reader.ResetFrame(chain[k])
		done, err := d.reader.DecodeFrame(chain[k])
		if err != nil {
			d.setFailed(err)
			return
		}
		if !done {
			return
		}
	}
}

// checkTruncation fails the session when no more bytes are coming, the
// trailer was never seen, and frame i is the last one that could complete.
func (d *Decoder) checkTruncation(i int) {
	if d.err != nil || !d.stream.AllDataReceived() || d.reader.ParseCompleted() {
		return
	}
	complete := d.reader.FrameCount()
	if complete > 0 && !d.reader.Frame(complete-1).IsComplete() {
		complete--
	}
	if i+1 >= complete {
		d.setFailed(fmt.Errorf("%w: %d of %d frames complete", gif.ErrTruncated, complete, d.reader.FrameCount()))
	}
}

// FrameDurationAtIndex returns how long frame i is shown. Durations under
// 11ms are reported as 100ms, which is how browsers play such frames.
func (d *Decoder) FrameDurationAtIndex(i int) time.Duration {
	if i < 0 || i >= d.FrameCount() {
		return 0
	}
	dur := time.Duration(d.reader.Frame(i).DelayMs) * time.Millisecond
	if dur < minFrameDuration {
		return defaultFrameDuration
	}
	return dur
}

// FrameIsCompleteAtIndex reports whether all of frame i's data has arrived.
func (d *Decoder) FrameIsCompleteAtIndex(i int) bool {
	if i < 0 || i >= d.FrameCount() {
		return false
	}
	return d.reader.Frame(i).IsComplete()
}

// ClearFrameBufferCache releases the pixels of frames before k that are not
// needed to decode later frames. Cleared frames are decoded again on demand.
func (d *Decoder) ClearFrameBufferCache(k int) {
	d.comp.ClearCacheBefore(k)
}

// BackgroundIndex returns the logical screen's background color index.
func (d *Decoder) BackgroundIndex() int {
	return int(d.reader.BackgroundIndex())
}

// CodecStatus represents the current state of the decoder.
type CodecStatus int

const (
	// CodecStatusReady indicates no data has been received yet.
	CodecStatusReady CodecStatus = iota
	// CodecStatusToBeContinued indicates more data or more queries are needed.
	CodecStatusToBeContinued
	// CodecStatusFinished indicates every frame has been decoded.
	CodecStatusFinished
	// CodecStatusError indicates a fatal error.
	CodecStatusError
)

func (status CodecStatus) String() string {
	return gif.CodecStatus(status).String()
}

// FrameStatus reports how much of a frame has been decoded.
type FrameStatus int

const (
	// FrameEmpty means no pixels have been decoded.
	FrameEmpty FrameStatus = iota
	// FramePartial means some rows have been decoded.
	FramePartial
	// FrameComplete means every row has been decoded.
	FrameComplete
)

func (s FrameStatus) String() string {
	return gif.FrameStatus(s).String()
}

// DisposalMethod says what happens to a frame's pixels before the next frame.
type DisposalMethod int

const (
	// DisposeNotSpecified leaves the frame in place.
	DisposeNotSpecified DisposalMethod = iota
	// DisposeKeep leaves the frame in place.
	DisposeKeep
	// DisposeOverwriteBackground clears the frame's rectangle.
	DisposeOverwriteBackground
	// DisposeOverwritePrevious restores the canvas the frame was drawn on.
	DisposeOverwritePrevious
)

func (m DisposalMethod) String() string {
	return gif.DisposalMethod(m).String()
}

// Frame is a decoded, canvas-sized frame.
type Frame struct {
	buf *gif.FrameBuffer
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int {
	if f == nil || f.buf == nil {
		return 0
	}
	return f.buf.Width()
}

// Height returns the frame height in pixels.
func (f *Frame) Height() int {
	if f == nil || f.buf == nil {
		return 0
	}
	return f.buf.Height()
}

// Pix returns the RGBA bytes, four per pixel, row-major. The slice is shared
// with the decoder.
func (f *Frame) Pix() []byte {
	if f == nil || f.buf == nil {
		return nil
	}
	return f.buf.Pix()
}

// Image returns the frame as an *image.NRGBA sharing the decoder's pixels.
func (f *Frame) Image() *image.NRGBA {
	if f == nil || f.buf == nil {
		return nil
	}
	return f.buf.Image()
}

// Status returns the frame's decode status.
func (f *Frame) Status() FrameStatus {
	if f == nil || f.buf == nil {
		return FrameEmpty
	}
	return FrameStatus(f.buf.Status())
}

// HasAlpha reports whether the frame may contain transparent pixels.
func (f *Frame) HasAlpha() bool {
	if f == nil || f.buf == nil {
		return true
	}
	return f.buf.HasAlpha()
}

// OriginalFrameRect returns the part of the canvas this frame decoded into.
func (f *Frame) OriginalFrameRect() image.Rectangle {
	if f == nil || f.buf == nil {
		return image.Rectangle{}
	}
	return f.buf.OriginalFrameRect()
}

// DisposalMethod returns the frame's disposal method.
func (f *Frame) DisposalMethod() DisposalMethod {
	if f == nil || f.buf == nil {
		return DisposeNotSpecified
	}
	return DisposalMethod(f.buf.DisposalMethod())
}
