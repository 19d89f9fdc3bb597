// Package format identifies image streams by their leading bytes and hands
// them to the matching decoder.
package format

import (
	"errors"
	"fmt"

	"github.com/jdeng/gogif/pkg/gif"
)

// Format is the closed set of stream formats this module knows about.
type Format int

const (
	Unknown Format = iota
	GIF
)

func (f Format) String() string {
	switch f {
	case Unknown:
		return "unknown"
	case GIF:
		return "gif"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// SniffLen is the number of leading bytes Detect needs.
const SniffLen = 6

// ErrUnsupported is returned for streams no decoder accepts.
var ErrUnsupported = errors.New("format: unsupported image format")

// Detect matches the "GIF8?a" magic.
func Detect(prefix []byte) Format {
	if len(prefix) >= SniffLen && string(prefix[:4]) == "GIF8" && prefix[5] == 'a' {
		return GIF
	}
	return Unknown
}

// Decoder is a decode session tagged with its format. Exactly one of the
// per-format fields is set.
type Decoder struct {
	Format Format
	GIF    *gif.Decoder
}

// NewDecoder sniffs prefix and creates the matching session. The prefix is
// not written into the session.
func NewDecoder(prefix []byte, opts gif.Options) (*Decoder, error) {
	switch f := Detect(prefix); f {
	case GIF:
		return &Decoder{Format: f, GIF: gif.New(opts)}, nil
	default:
		return nil, ErrUnsupported
	}
}

// Write forwards bytes to the underlying session.
func (d *Decoder) Write(p []byte) (int, error) {
	switch d.Format {
	case GIF:
		return d.GIF.Write(p)
	default:
		return 0, ErrUnsupported
	}
}

// SetAllDataReceived forwards the end-of-input mark.
func (d *Decoder) SetAllDataReceived() {
	switch d.Format {
	case GIF:
		d.GIF.SetAllDataReceived()
	}
}
