package gif

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdeng/gogif/internal/giftest"
)

type recordingClient struct {
	sizes      [][2]int
	rows       int
	completed  []int
	streamDone bool
	maxPixels  int
}

func (c *recordingClient) SetSize(width, height int) bool {
	c.sizes = append(c.sizes, [2]int{width, height})
	return c.maxPixels == 0 || width*height <= c.maxPixels
}

func (c *recordingClient) HaveDecodedRow(*FrameContext, []byte, int, int, bool) bool {
	c.rows++
	return true
}

func (c *recordingClient) FrameComplete(f *FrameContext) bool {
	c.completed = append(c.completed, f.Index)
	return true
}

func (c *recordingClient) StreamComplete() { c.streamDone = true }

func newTestReader(data []byte, client Client) *Reader {
	s := NewStream()
	s.Append(data)
	return NewReader(s, client, ReaderOptions{})
}

func threeFrameStream() []byte {
	return giftest.New("GIF89a", 4, 4, giftest.Gray(4)).
		Loop(2).
		Control(giftest.Control{Disposal: 1, DelayCS: 5}).
		Frame(giftest.Frame{Width: 4, Height: 4, Pixels: randomIndices(1, 16, 4)}).
		Control(giftest.Control{Disposal: 2, DelayCS: 10}).
		Frame(giftest.Frame{X: 1, Y: 1, Width: 2, Height: 2, Pixels: randomIndices(2, 4, 4)}).
		Control(giftest.Control{Disposal: 3, DelayCS: 20}).
		Frame(giftest.Frame{Width: 4, Height: 4, Interlaced: true, Pixels: randomIndices(3, 16, 4)}).
		Trailer().
		Bytes()
}

func TestReaderRejectsBadSignature(t *testing.T) {
	valid := threeFrameStream()
	for _, sig := range []string{"GIF88a", "gif89a", "GIF89b", "\x89PNG\r\n", "GIF87A"} {
		t.Run(fmt.Sprintf("%q", sig), func(t *testing.T) {
			data := append([]byte(sig), valid[6:]...)
			client := &recordingClient{}
			r := newTestReader(data, client)

			status, err := r.Advance(QueryFull, 10)
			require.ErrorIs(t, err, ErrBadSignature)
			assert.Equal(t, CodecStatusError, status)
			assert.Empty(t, client.sizes)
			assert.Zero(t, client.rows)
			assert.Empty(t, client.completed)

			_, err = r.Advance(QueryFrameCount, 0)
			assert.ErrorIs(t, err, ErrBadSignature, "failure is terminal")
		})
	}
}

func TestReaderSizeQueryStopsAtScreen(t *testing.T) {
	client := &recordingClient{}
	r := newTestReader(threeFrameStream(), client)

	status, err := r.Advance(QuerySize, 0)
	require.NoError(t, err)
	assert.Equal(t, CodecStatusToBeContinued, status)
	assert.Equal(t, [][2]int{{4, 4}}, client.sizes)
	assert.Equal(t, 13, r.stream.Consumed())
	assert.Equal(t, StateGlobalColorTable, r.State())
	assert.Zero(t, r.FrameCount())

	status, err = r.Advance(QueryFrameCount, 0)
	require.NoError(t, err)
	assert.Equal(t, CodecStatusFinished, status)
	assert.Equal(t, 3, r.FrameCount())
	assert.Zero(t, client.rows, "frame count queries never decode")
	assert.True(t, client.streamDone)
}

func TestReaderStarvationKeepsCursor(t *testing.T) {
	data := threeFrameStream()
	r := newTestReader(data[:10], &recordingClient{})

	status, err := r.Advance(QueryFrameCount, 0)
	require.NoError(t, err)
	assert.Equal(t, CodecStatusToBeContinued, status)
	assert.Equal(t, 6, r.stream.Consumed())
	assert.Equal(t, StateScreenHeader, r.State())

	r.stream.Append(data[10:])
	status, err = r.Advance(QueryFrameCount, 0)
	require.NoError(t, err)
	assert.Equal(t, CodecStatusFinished, status)
	assert.Equal(t, 3, r.FrameCount())
}

func TestReaderByteAtATimeMatchesOneShot(t *testing.T) {
	data := threeFrameStream()

	whole := &recordingClient{}
	ref := newTestReader(data, whole)
	_, err := ref.Advance(QueryFull, 10)
	require.NoError(t, err)

	chunked := &recordingClient{}
	s := NewStream()
	r := NewReader(s, chunked, ReaderOptions{})
	for i := range data {
		s.Append(data[i : i+1])
		_, err := r.Advance(QueryFull, 10)
		require.NoError(t, err, "after byte %d", i)
	}

	assert.Equal(t, StateDone, r.State())
	assert.Equal(t, whole.completed, chunked.completed)
	assert.Equal(t, whole.rows, chunked.rows)
	assert.Equal(t, ref.LoopCount(), r.LoopCount())
	require.Equal(t, ref.FrameCount(), r.FrameCount())
	for i := 0; i < r.FrameCount(); i++ {
		assert.Equal(t, ref.Frame(i).Blocks(), r.Frame(i).Blocks(), "frame %d", i)
		assert.Equal(t, ref.Frame(i).Rect(), r.Frame(i).Rect(), "frame %d", i)
	}
}

func TestReaderExtensions(t *testing.T) {
	var warnings []string
	data := giftest.New("GIF89a", 2, 2, giftest.Gray(2)).
		Loop(0).
		Comment("made by hand").
		Control(giftest.Control{Disposal: 4, DelayCS: 7, Transparent: true, TransparentIndex: 1, DeclaredSize: 2}).
		Frame(giftest.Frame{Width: 2, Height: 2, Pixels: []byte{0, 1, 1, 0}}).
		Trailer().
		Bytes()

	s := NewStream()
	s.Append(data)
	r := NewReader(s, &recordingClient{}, ReaderOptions{
		Warnf: func(format string, args ...any) { warnings = append(warnings, fmt.Sprintf(format, args...)) },
	})
	status, err := r.Advance(QueryFrameCount, 0)
	require.NoError(t, err)
	assert.Equal(t, CodecStatusFinished, status)

	require.Equal(t, 1, r.FrameCount())
	f := r.Frame(0)
	assert.Equal(t, DisposeOverwritePrevious, f.Disposal)
	assert.Equal(t, 70, f.DelayMs)
	assert.True(t, f.Transparent)
	assert.Equal(t, byte(1), f.TransparentIndex)
	assert.Equal(t, LoopCountInfinite, r.LoopCount())
	assert.Len(t, warnings, 2)
}

func TestReaderLoopCount(t *testing.T) {
	netscape := func(id string, sub byte, count uint16) []byte {
		p := append([]byte{'!', 0xff, 11}, id...)
		return append(p, 3, sub, byte(count), byte(count>>8), 0)
	}
	tests := []struct {
		name    string
		block   []byte
		want    int
		wantErr error
	}{
		{"none", nil, LoopCountNotSeen, nil},
		{"infinite", netscape("NETSCAPE2.0", 1, 0), LoopCountInfinite, nil},
		{"three", netscape("NETSCAPE2.0", 1, 3), 3, nil},
		{"animexts alias", netscape("ANIMEXTS1.0", 1, 5), 5, nil},
		{"buffering hint", netscape("NETSCAPE2.0", 2, 100), LoopCountNotSeen, nil},
		{"unknown sub-code", netscape("NETSCAPE2.0", 5, 0), 0, ErrUnknownNetscapeExtension},
		{"other application", netscape("XMP DataXMP", 1, 9), LoopCountNotSeen, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := giftest.New("GIF89a", 1, 1, giftest.Gray(2)).
				Raw(tt.block...).
				Frame(giftest.Frame{Width: 1, Height: 1, Pixels: []byte{1}}).
				Trailer().
				Bytes()
			r := newTestReader(data, &recordingClient{})
			_, err := r.Advance(QueryFrameCount, 0)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.LoopCount())
		})
	}
}

func TestReaderBadBlockIntroducer(t *testing.T) {
	data := giftest.New("GIF89a", 1, 1, nil).Raw(0x00, ';').Bytes()
	r := newTestReader(data, &recordingClient{})
	status, err := r.Advance(QueryFrameCount, 0)
	assert.ErrorIs(t, err, ErrBadBlockIntroducer)
	assert.Equal(t, CodecStatusError, status)
	assert.Equal(t, err, r.Err())
}

func TestReaderZeroSizeFrame(t *testing.T) {
	data := giftest.New("GIF89a", 3, 2, giftest.Gray(4)).
		Frame(giftest.Frame{Pixels: randomIndices(5, 6, 4)}).
		Trailer().
		Bytes()
	client := &recordingClient{}
	r := newTestReader(data, client)
	_, err := r.Advance(QueryFull, 0)
	require.NoError(t, err)
	f := r.Frame(0)
	assert.Equal(t, 3, f.Width)
	assert.Equal(t, 2, f.Height)
	assert.Equal(t, 2, client.rows)

	data = giftest.New("GIF89a", 0, 0, giftest.Gray(4)).
		Frame(giftest.Frame{Pixels: []byte{1}}).
		Bytes()
	_, err = newTestReader(data, &recordingClient{}).Advance(QueryFrameCount, 0)
	assert.ErrorIs(t, err, ErrZeroSizeFrame)
}

func TestReaderFirstFrameCorrectsScreen(t *testing.T) {
	tests := []struct {
		name      string
		signature string
		screen    [2]int
		frame     giftest.Frame
		wantSizes [][2]int
	}{
		{"undersized screen", "GIF89a", [2]int{2, 2},
			giftest.Frame{X: 1, Y: 1, Width: 4, Height: 3, Pixels: make([]byte, 12)},
			[][2]int{{2, 2}, {4, 3}}},
		{"gif87a", "GIF87a", [2]int{8, 8},
			giftest.Frame{X: 2, Y: 2, Width: 4, Height: 4, Pixels: make([]byte, 16)},
			[][2]int{{8, 8}, {4, 4}}},
		{"consistent screen", "GIF89a", [2]int{8, 8},
			giftest.Frame{X: 2, Y: 2, Width: 4, Height: 4, Pixels: make([]byte, 16)},
			[][2]int{{8, 8}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := giftest.New(tt.signature, tt.screen[0], tt.screen[1], giftest.Gray(4)).
				Frame(tt.frame).
				Frame(giftest.Frame{Width: 16, Height: 16, Pixels: make([]byte, 256)}).
				Trailer().
				Bytes()
			client := &recordingClient{}
			r := newTestReader(data, client)
			_, err := r.Advance(QueryFrameCount, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSizes, client.sizes, "later frames never resize")

			f := r.Frame(0)
			if len(tt.wantSizes) > 1 {
				assert.Zero(t, f.XOffset)
				assert.Zero(t, f.YOffset)
			} else {
				assert.Equal(t, tt.frame.X, f.XOffset)
			}
		})
	}
}

func TestReaderSizeRejected(t *testing.T) {
	data := giftest.New("GIF89a", 100, 100, nil).Bytes()
	_, err := newTestReader(data, &recordingClient{maxPixels: 50}).Advance(QuerySize, 0)
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestReaderRecordsSubBlocks(t *testing.T) {
	pixels := randomIndices(9, 64, 4)
	data := giftest.New("GIF89a", 8, 8, giftest.Gray(4)).
		Frame(giftest.Frame{Width: 8, Height: 8, Pixels: pixels, BlockSize: 10}).
		Trailer().
		Bytes()
	client := &recordingClient{}
	r := newTestReader(data, client)
	_, err := r.Advance(QueryFrameCount, 0)
	require.NoError(t, err)

	f := r.Frame(0)
	require.True(t, f.IsComplete())
	assert.Equal(t, 2, f.DataSize())
	var joined bytes.Buffer
	for _, b := range f.Blocks() {
		assert.LessOrEqual(t, b.Size, 10)
		p, ok := r.stream.Slice(b.Position, b.Size)
		require.True(t, ok)
		joined.Write(p)
	}
	assert.Equal(t, giftest.EncodeLZW(pixels, 2, 0), joined.Bytes())
	assert.Zero(t, client.rows)
}

func TestReaderFullQueryHaltsAtFrame(t *testing.T) {
	client := &recordingClient{}
	r := newTestReader(threeFrameStream(), client)

	status, err := r.Advance(QueryFull, 0)
	require.NoError(t, err)
	assert.Equal(t, CodecStatusToBeContinued, status)
	assert.Equal(t, []int{0}, client.completed)

	status, err = r.Advance(QueryFull, 2)
	require.NoError(t, err)
	assert.Equal(t, CodecStatusFinished, status)
	assert.Equal(t, []int{0, 1, 2}, client.completed)
	assert.True(t, client.streamDone)
	assert.Equal(t, 2, r.LoopCount())
}

func TestReaderPartialFrameResumes(t *testing.T) {
	pixels := randomIndices(11, 32*32, 16)
	data := giftest.New("GIF89a", 32, 32, giftest.Gray(16)).
		Frame(giftest.Frame{Width: 32, Height: 32, Pixels: pixels, BlockSize: 16}).
		Trailer().
		Bytes()
	client := &recordingClient{}
	s := NewStream()
	r := NewReader(s, client, ReaderOptions{})

	half := len(data) / 2
	s.Append(data[:half])
	status, err := r.Advance(QueryFull, 0)
	require.NoError(t, err)
	assert.Equal(t, CodecStatusToBeContinued, status)
	assert.Equal(t, 1, r.FrameCount())
	assert.False(t, r.Frame(0).IsComplete())
	partialRows := client.rows
	assert.Positive(t, partialRows)
	assert.Less(t, partialRows, 32)

	s.Append(data[half:])
	status, err = r.Advance(QueryFull, 0)
	require.NoError(t, err)
	assert.Equal(t, CodecStatusFinished, status)
	assert.Equal(t, 32, client.rows)
	assert.Equal(t, []int{0}, client.completed)
}

func TestReaderHeaderlessTrailingFrame(t *testing.T) {
	data := giftest.New("GIF89a", 1, 1, giftest.Gray(2)).
		Frame(giftest.Frame{Width: 1, Height: 1, Pixels: []byte{1}}).
		Control(giftest.Control{Disposal: 1}).
		Bytes()
	r := newTestReader(data, &recordingClient{})
	_, err := r.Advance(QueryFrameCount, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, r.FrameCount())
	assert.Nil(t, r.Frame(1))
}

func TestReaderCompressionErrorsAreFatal(t *testing.T) {
	tests := []struct {
		name  string
		frame giftest.Frame
		want  error
	}{
		{"premature end code", giftest.Frame{Width: 4, Height: 4, Pixels: make([]byte, 8)}, ErrPrematureEndCode},
		{"data size too large", giftest.Frame{Width: 2, Height: 1, DataSize: 12, Pixels: []byte{1, 2}}, ErrBadDataSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := giftest.New("GIF89a", 4, 4, giftest.Gray(4)).
				Frame(giftest.Frame{Width: 4, Height: 4, Pixels: make([]byte, 16)}).
				Frame(tt.frame).
				Trailer().
				Bytes()
			client := &recordingClient{}
			r := newTestReader(data, client)

			_, err := r.Advance(QueryFull, 1)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, "frame 1: "+tt.want.Error(), err.Error())
			assert.Equal(t, []int{0}, client.completed)

			status, err := r.Advance(QueryFull, 1)
			assert.Equal(t, CodecStatusError, status)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParserStateString(t *testing.T) {
	assert.Equal(t, "ImageDescriptor", StateImageDescriptor.String())
	assert.Equal(t, "ParserState(99)", ParserState(99).String())
	assert.Equal(t, "OverwritePrevious", DisposeOverwritePrevious.String())
	assert.Equal(t, "ToBeContinued", CodecStatusToBeContinued.String())
	assert.Equal(t, "Full", QueryFull.String())
}
