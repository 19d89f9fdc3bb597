package main

import (
	"flag"
	"fmt"
	"log"
	"path"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/afero"

	"github.com/jdeng/gogif/internal/giftest"
)

var palette = giftest.Palette{
	{0, 0, 0}, {255, 255, 255}, {255, 0, 0}, {0, 255, 0},
	{0, 0, 255}, {255, 255, 0}, {0, 255, 255}, {255, 0, 255},
}

// fixture is one generated test file.
type fixture struct {
	name  string
	build func(faker *gofakeit.Faker, size int) []byte
}

var fixtures = []fixture{
	{"disposal.gif", disposalGIF},
	{"interlaced.gif", interlacedGIF},
	{"transparent.gif", transparentGIF},
	{"gif87a.gif", gif87aGIF},
	{"truncated.gif", truncatedGIF},
}

func randomPixels(faker *gofakeit.Faker, n, colors int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(faker.IntRange(0, colors-1))
	}
	return p
}

// disposalGIF cycles through every disposal method on a looping animation.
func disposalGIF(faker *gofakeit.Faker, size int) []byte {
	b := giftest.New("GIF89a", size, size, palette).Loop(0)
	b.Control(giftest.Control{Disposal: 1, DelayCS: 10}).
		Frame(giftest.Frame{Width: size, Height: size, Pixels: randomPixels(faker, size*size, len(palette))})
	half := size / 2
	for i, disposal := range []int{1, 2, 3, 0} {
		x := faker.IntRange(0, size-half)
		y := faker.IntRange(0, size-half)
		b.Control(giftest.Control{Disposal: disposal, DelayCS: 5 * (i + 1)}).
			Frame(giftest.Frame{X: x, Y: y, Width: half, Height: half, Pixels: randomPixels(faker, half*half, len(palette))})
	}
	return b.Trailer().Bytes()
}

// interlacedGIF has an interlaced first frame with a local palette.
func interlacedGIF(faker *gofakeit.Faker, size int) []byte {
	return giftest.New("GIF89a", size, size, nil).
		Frame(giftest.Frame{
			Width: size, Height: size, Interlaced: true, Local: giftest.Gray(256),
			Pixels: randomPixels(faker, size*size, 256), BlockSize: 64,
		}).
		Trailer().
		Bytes()
}

// transparentGIF punches holes through a keep-disposed background.
func transparentGIF(faker *gofakeit.Faker, size int) []byte {
	return giftest.New("GIF89a", size, size, palette).
		Control(giftest.Control{Disposal: 1, DelayCS: 20}).
		Frame(giftest.Frame{Width: size, Height: size, Pixels: randomPixels(faker, size*size, 4)}).
		Control(giftest.Control{Transparent: true, TransparentIndex: 0, DelayCS: 20}).
		Frame(giftest.Frame{Width: size, Height: size, Pixels: randomPixels(faker, size*size, 2), Stdlib: true}).
		Trailer().
		Bytes()
}

// gif87aGIF declares a larger screen than its only frame.
func gif87aGIF(faker *gofakeit.Faker, size int) []byte {
	half := size / 2
	return giftest.New("GIF87a", size, size, palette).
		Frame(giftest.Frame{X: half / 2, Y: half / 2, Width: half, Height: half, Pixels: randomPixels(faker, half*half, len(palette))}).
		Trailer().
		Bytes()
}

// truncatedGIF stops in the middle of its last frame.
func truncatedGIF(faker *gofakeit.Faker, size int) []byte {
	data := giftest.New("GIF89a", size, size, palette).
		Frame(giftest.Frame{Width: size, Height: size, Pixels: randomPixels(faker, size*size, len(palette))}).
		Frame(giftest.Frame{Width: size, Height: size, Pixels: randomPixels(faker, size*size, len(palette))}).
		Bytes()
	return data[:len(data)-size/2]
}

// generate writes every fixture into dir and returns the file names.
func generate(fs afero.Fs, dir string, seed uint64, size int) ([]string, error) {
	if size < 4 {
		return nil, fmt.Errorf("size %d is too small, need at least 4", size)
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	faker := gofakeit.New(seed)
	var names []string
	for _, f := range fixtures {
		name := path.Join(dir, f.name)
		if err := afero.WriteFile(fs, name, f.build(faker, size), 0o644); err != nil {
			return names, fmt.Errorf("writing %s: %w", name, err)
		}
		names = append(names, name)
	}
	return names, nil
}

func main() {
	var outputDir = flag.String("output", "testdata", "Directory for the generated GIF files")
	var seed = flag.Uint64("seed", 1, "Random seed for pixel data")
	var size = flag.Int("size", 32, "Canvas width and height in pixels")
	flag.Parse()

	names, err := generate(afero.NewOsFs(), *outputDir, *seed, *size)
	if err != nil {
		log.Fatalf("Failed to create test files: %v", err)
	}
	for _, name := range names {
		fmt.Printf("Created %s\n", name)
	}
}
