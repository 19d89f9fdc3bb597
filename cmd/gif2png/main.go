package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"golang.org/x/image/draw"

	"github.com/jdeng/gogif/pkg/format"
	"github.com/jdeng/gogif/pkg/gif"
)

type config struct {
	input       string
	output      string
	chunk       int
	progressive bool
	background  string
	maxFrames   int
	verbose     bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.input, "input", "", "Input GIF file (.gif or .gif.zst)")
	flag.StringVar(&cfg.output, "output", "", "Output directory (optional, defaults to the input name without extension)")
	flag.IntVar(&cfg.chunk, "chunk", 4096, "Bytes fed to the decoder per step, 0 feeds the whole file at once")
	flag.BoolVar(&cfg.progressive, "progressive", false, "Replicate rows of an interlaced first frame while it arrives")
	flag.StringVar(&cfg.background, "bg", "", "Flatten frames over this RRGGBB color instead of keeping alpha")
	flag.IntVar(&cfg.maxFrames, "frames", 0, "Maximum number of frames to write, 0 writes all")
	flag.BoolVar(&cfg.verbose, "v", false, "Log decoder warnings")
	flag.Parse()

	if cfg.input == "" {
		log.Fatal("Input file is required. Use -input flag.")
	}

	n, err := run(afero.NewOsFs(), cfg)
	if err != nil {
		log.Fatalf("Failed to convert %s: %v", cfg.input, err)
	}
	fmt.Printf("Successfully wrote %d frames from %s\n", n, cfg.input)
}

// run converts cfg.input into one PNG per frame and returns the number of
// frames written. Frames decoded before a stream error are still written.
func run(fs afero.Fs, cfg config) (int, error) {
	var bg color.Color
	if cfg.background != "" {
		c, err := parseHexColor(cfg.background)
		if err != nil {
			return 0, err
		}
		bg = c
	}

	in, err := fs.Open(cfg.input)
	if err != nil {
		return 0, fmt.Errorf("opening input: %w", err)
	}
	defer in.Close()

	var src io.Reader = in
	if strings.HasSuffix(cfg.input, ".zst") {
		zr, err := zstd.NewReader(in)
		if err != nil {
			return 0, fmt.Errorf("opening zstd stream: %w", err)
		}
		defer zr.Close()
		src = zr
	}

	opts := gif.Options{ProgressiveDisplay: cfg.progressive}
	if cfg.verbose {
		opts.Logger = log.Default()
	}
	dec, err := feed(src, cfg.chunk, opts)
	if err != nil {
		return 0, err
	}

	output := cfg.output
	if output == "" {
		output = strings.TrimSuffix(cfg.input, ".zst")
		output = strings.TrimSuffix(output, filepath.Ext(output))
	}
	if err := fs.MkdirAll(output, 0o755); err != nil {
		return 0, fmt.Errorf("creating output directory: %w", err)
	}

	count := dec.FrameCount()
	if cfg.maxFrames > 0 {
		count = min(count, cfg.maxFrames)
	}
	written := 0
	for i := 0; i < count; i++ {
		frame := dec.FrameBufferAtIndex(i)
		if frame == nil {
			break
		}
		var img image.Image = frame.Image()
		if bg != nil {
			img = flatten(frame.Image(), bg)
		}
		name := path.Join(output, fmt.Sprintf("frame_%03d.png", i))
		if err := writePNG(fs, name, img); err != nil {
			return written, err
		}
		if cfg.verbose {
			log.Printf("frame %d: %v, %s", i, frame.OriginalFrameRect(), dec.FrameDurationAtIndex(i))
		}
		written++
	}

	if dec.Failed() {
		return written, dec.Err()
	}
	return written, nil
}

// feed pushes src into a new session chunk bytes at a time, decoding the
// newest frame after every step as a streaming consumer would.
func feed(src io.Reader, chunk int, opts gif.Options) (*gif.Decoder, error) {
	prefix := make([]byte, format.SniffLen)
	n, err := io.ReadFull(src, prefix)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	prefix = prefix[:n]

	sd, err := format.NewDecoder(prefix, opts)
	if err != nil {
		return nil, err
	}
	if _, err := sd.Write(prefix); err != nil {
		return nil, err
	}
	dec := sd.GIF

	if chunk <= 0 {
		if _, err := io.Copy(sd, src); err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
	} else {
		buf := make([]byte, chunk)
		for {
			n, err := src.Read(buf)
			if n > 0 {
				if _, werr := sd.Write(buf[:n]); werr != nil {
					return nil, werr
				}
				if c := dec.FrameCount(); c > 0 {
					dec.FrameBufferAtIndex(c - 1)
				}
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("reading input: %w", err)
			}
		}
	}
	sd.SetAllDataReceived()

	if !dec.IsSizeAvailable() {
		return nil, fmt.Errorf("no image size: %w", dec.Err())
	}
	return dec, nil
}

func flatten(src *image.NRGBA, bg color.Color) *image.NRGBA {
	dst := image.NewNRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Over)
	return dst
}

func writePNG(fs afero.Fs, name string, img image.Image) error {
	file, err := fs.Create(name)
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	if err := imaging.Encode(file, img, imaging.PNG); err != nil {
		file.Close()
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	return file.Close()
}

func parseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid -bg color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid -bg color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
